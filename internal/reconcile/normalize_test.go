package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bardavid-law/intake-cli/internal/registry"
)

func TestNormalize(t *testing.T) {
	date := &registry.FieldDef{Key: "date_of_birth", Type: "date"}
	phone := &registry.FieldDef{Key: "cell_phone", Type: "phone"}
	ident := &registry.FieldDef{Key: "a_number", Type: "identifier"}
	text := &registry.FieldDef{Key: "first_name"}

	cases := []struct {
		name string
		def  *registry.FieldDef
		in   string
		want string
	}{
		{"date us format", date, "04/12/1990", "1990-04-12"},
		{"date already canonical", date, "1990-04-12", "1990-04-12"},
		{"date day first", date, "25/12/1990", "1990-12-25"},
		{"date unparseable kept verbatim", date, "spring 1990", "spring 1990"},
		{"phone strips punctuation", phone, "(917) 555-0100", "9175550100"},
		{"identifier uppercased and stripped", ident, "a 123-456-789", "A123456789"},
		{"text case folded", text, "  MARIA ", "maria"},
		{"nil def case folded", nil, "Lopez", "lopez"},
		{"empty", text, "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.def, tc.in))
		})
	}
}
