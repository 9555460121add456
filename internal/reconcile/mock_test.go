package reconcile

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/bardavid-law/intake-cli/pkg/recordstore"
)

// fakeSearcher serves canned search results keyed on the lookup
// arguments and records the order of calls made.
type fakeSearcher struct {
	calls []string

	byIdentifier map[string][]recordstore.Record
	byNameDOB    map[string][]recordstore.Record
	byName       map[string][]recordstore.Record
	records      map[string]*recordstore.Record

	err error
}

func (f *fakeSearcher) SearchByIdentifier(_ context.Context, identifier string) ([]recordstore.Record, error) {
	f.calls = append(f.calls, "identifier:"+identifier)
	return f.byIdentifier[identifier], f.err
}

func (f *fakeSearcher) SearchByNameDOB(_ context.Context, first, last, dob string) ([]recordstore.Record, error) {
	f.calls = append(f.calls, "name_dob:"+first+"|"+last+"|"+dob)
	return f.byNameDOB[first+"|"+last+"|"+dob], f.err
}

func (f *fakeSearcher) SearchByName(_ context.Context, first, last string) ([]recordstore.Record, error) {
	f.calls = append(f.calls, "name:"+first+"|"+last)
	return f.byName[first+"|"+last], f.err
}

func (f *fakeSearcher) GetRecord(_ context.Context, id string) (*recordstore.Record, error) {
	f.calls = append(f.calls, "get:"+id)
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, eris.Errorf("no record %s", id)
	}
	return rec, nil
}

func record(id, name string, attrs map[string]string) recordstore.Record {
	return recordstore.Record{ID: id, DisplayName: name, Attributes: attrs}
}

func recordsByKey(key string, recs ...recordstore.Record) map[string][]recordstore.Record {
	return map[string][]recordstore.Record{key: recs}
}
