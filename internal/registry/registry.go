// Package registry defines the document types the analyzer understands
// and the field mappings between extracted keys and record-store
// attributes. Definitions ship embedded in the binary and can be
// overridden by a local YAML file.
package registry

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed doctypes.yaml
var embeddedDefs []byte

// ErrUnknownDocumentType is returned when a document type has no
// definition. This is a configuration gap, fatal to the run.
var ErrUnknownDocumentType = eris.New("registry: unknown document type")

// FieldDef describes one extractable field of a document type.
type FieldDef struct {
	Key           string `yaml:"key"`
	Label         string `yaml:"label"`
	StoreField    string `yaml:"store_field,omitempty"`
	Biographic    bool   `yaml:"biographic,omitempty"`
	DocumentField bool   `yaml:"document_field,omitempty"`
	Type          string `yaml:"type,omitempty"`
	Required      bool   `yaml:"required,omitempty"`
}

// IsDate reports whether the field holds a calendar date.
func (f FieldDef) IsDate() bool { return f.Type == "date" }

// DocumentType is one recognized intake document kind.
type DocumentType struct {
	Key         string     `yaml:"key"`
	DisplayName string     `yaml:"display_name"`
	Description string     `yaml:"description,omitempty"`
	Fields      []FieldDef `yaml:"fields"`

	byKey map[string]*FieldDef
}

// Field returns the field definition for key, or nil.
func (d *DocumentType) Field(key string) *FieldDef {
	return d.byKey[key]
}

// RequiredFields returns the required fields in definition order.
func (d *DocumentType) RequiredFields() []FieldDef {
	var out []FieldDef
	for _, f := range d.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Registry is the indexed set of document type definitions.
type Registry struct {
	Types []DocumentType `yaml:"document_types"`

	byKey map[string]*DocumentType
}

// Load parses the embedded document type definitions.
func Load() (*Registry, error) {
	return parse(embeddedDefs)
}

// LoadFile parses definitions from an override file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	return parse(data)
}

func parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "registry: parse definitions")
	}
	if len(r.Types) == 0 {
		return nil, eris.New("registry: no document types defined")
	}
	r.byKey = make(map[string]*DocumentType, len(r.Types))
	for i := range r.Types {
		dt := &r.Types[i]
		if dt.Key == "" {
			return nil, eris.New("registry: document type with empty key")
		}
		dt.byKey = make(map[string]*FieldDef, len(dt.Fields))
		for j := range dt.Fields {
			f := &dt.Fields[j]
			if f.Key == "" {
				return nil, eris.Errorf("registry: %s has a field with empty key", dt.Key)
			}
			dt.byKey[f.Key] = f
		}
		r.byKey[dt.Key] = dt
	}
	return &r, nil
}

// Type returns the definition for a document type key.
func (r *Registry) Type(key string) (*DocumentType, error) {
	dt, ok := r.byKey[key]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownDocumentType, "%q", key)
	}
	return dt, nil
}

// Keys lists all defined document type keys in definition order.
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.Types))
	for _, dt := range r.Types {
		out = append(out, dt.Key)
	}
	return out
}
