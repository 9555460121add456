package reconcile

import (
	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/registry"
	"github.com/bardavid-law/intake-cli/pkg/recordstore"
)

// BuildChanges diffs every extracted field that maps to a store
// attribute against the matched record. A nil record means no match was
// accepted, so every change classifies as new. Fields are walked in
// registry order so the output is stable.
func BuildChanges(result *model.ExtractionResult, docType *registry.DocumentType, record *recordstore.Record) []model.FieldChange {
	var out []model.FieldChange
	for i := range docType.Fields {
		def := &docType.Fields[i]
		if def.StoreField == "" {
			continue
		}
		f, ok := result.Fields[def.Key]
		if !ok || f.Value == "" {
			continue
		}
		current := ""
		if record != nil {
			current = record.Attr(def.StoreField)
		}
		class := model.Classify(Normalize(def, current), Normalize(def, f.Value))
		out = append(out, model.FieldChange{
			FieldName:      def.Key,
			FieldLabel:     def.Label,
			StoreField:     def.StoreField,
			Biographic:     def.Biographic,
			CurrentValue:   current,
			ProposedValue:  f.Value,
			Confidence:     f.Confidence,
			Classification: class,
			// Real changes start approved; reviewers opt out.
			Approved: class != model.ChangeUnchanged,
		})
	}
	return out
}
