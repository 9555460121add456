package recordstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Contact mirrors the store's contact record.
type Contact struct {
	ID           string `json:"Id" salesforce:"Id"`
	FirstName    string `json:"FirstName" salesforce:"FirstName"`
	MiddleName   string `json:"MiddleName" salesforce:"MiddleName"`
	LastName     string `json:"LastName" salesforce:"LastName"`
	DisplayAs    string `json:"Name" salesforce:"Name"`
	BirthDate    string `json:"Birthdate" salesforce:"Birthdate"`
	CellPhone    string `json:"MobilePhone" salesforce:"MobilePhone"`
	HomePhone    string `json:"HomePhone" salesforce:"HomePhone"`
	Email        string `json:"Email" salesforce:"Email"`
	MailingStreet string `json:"MailingStreet" salesforce:"MailingStreet"`
	MailingCity  string `json:"MailingCity" salesforce:"MailingCity"`
	MailingState string `json:"MailingState" salesforce:"MailingState"`
	MailingZip   string `json:"MailingPostalCode" salesforce:"MailingPostalCode"`
}

// Biographic mirrors the biographic sub-record attached to a contact.
type Biographic struct {
	ID                string `json:"Id" salesforce:"Id"`
	ContactID         string `json:"Contact__c" salesforce:"Contact__c"`
	AlienNumber       string `json:"AlienNumber__c" salesforce:"AlienNumber__c"`
	BirthCity         string `json:"BirthCity__c" salesforce:"BirthCity__c"`
	BirthCountry      string `json:"BirthCountry__c" salesforce:"BirthCountry__c"`
	Gender            string `json:"Gender__c" salesforce:"Gender__c"`
	MaritalStatus     string `json:"MaritalStatus__c" salesforce:"MaritalStatus__c"`
	Citizenship       string `json:"Citizenship1Country__c" salesforce:"Citizenship1Country__c"`
	ImmigrationStatus string `json:"CurrentImmigrationStatus__c" salesforce:"CurrentImmigrationStatus__c"`
	DateOfEntry       string `json:"DateOfEntryToUsa__c" salesforce:"DateOfEntryToUsa__c"`
	NativeLanguage    string `json:"NativeLanguage__c" salesforce:"NativeLanguage__c"`
}

var contactFields = []string{
	"Id", "FirstName", "MiddleName", "LastName", "Name", "Birthdate",
	"MobilePhone", "HomePhone", "Email",
	"MailingStreet", "MailingCity", "MailingState", "MailingPostalCode",
}

var biographicFields = []string{
	"Id", "Contact__c", "AlienNumber__c", "BirthCity__c", "BirthCountry__c",
	"Gender__c", "MaritalStatus__c", "Citizenship1Country__c",
	"CurrentImmigrationStatus__c", "DateOfEntryToUsa__c", "NativeLanguage__c",
}

// Querier is the minimal query surface of the underlying Salesforce
// client, extracted so tests can inject a fake.
type Querier interface {
	Query(ctx context.Context, soql string, out any) error
}

// sfQuerier adapts go-salesforce/v3 to Querier.
//
// NOTE: the underlying library does not accept context.Context, so the
// ctx is only consulted by the rate limiter wait; callers can still
// cancel that wait.
type sfQuerier struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

func (q *sfQuerier) Query(ctx context.Context, soql string, out any) error {
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "recordstore: rate limit")
		}
	}
	if err := q.sf.Query(soql, out); err != nil {
		return eris.Wrap(err, "recordstore: query")
	}
	return nil
}

// StoreOption configures the Salesforce-backed store.
type StoreOption func(*sfStore)

// WithRateLimit sets a per-second rate limit on store queries.
func WithRateLimit(rps float64) StoreOption {
	return func(s *sfStore) {
		if rps > 0 {
			if q, ok := s.q.(*sfQuerier); ok {
				q.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
			}
		}
	}
}

// sfStore implements Searcher over the Salesforce contact schema.
type sfStore struct {
	q Querier
}

// NewSalesforce creates a Searcher backed by a go-salesforce instance.
func NewSalesforce(sf *salesforce.Salesforce, opts ...StoreOption) Searcher {
	s := &sfStore{q: &sfQuerier{sf: sf}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWithQuerier creates a Searcher over an arbitrary Querier. Used by
// tests and alternative store backends.
func NewWithQuerier(q Querier) Searcher {
	return &sfStore{q: q}
}

func (s *sfStore) SearchByIdentifier(ctx context.Context, identifier string) ([]Record, error) {
	digits := digitsOnly(identifier)
	if digits == "" {
		return nil, nil
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM ContactBiographic__c WHERE AlienNumber__c = '%s' LIMIT 10",
		strings.Join(biographicFields, ", "),
		escapeSoql(digits),
	)
	var bios []Biographic
	if err := s.q.Query(ctx, soql, &bios); err != nil {
		return nil, eris.Wrap(err, "recordstore: search by identifier")
	}

	var records []Record
	for _, b := range bios {
		if b.ContactID == "" {
			continue
		}
		rec, err := s.GetRecord(ctx, b.ContactID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (s *sfStore) SearchByNameDOB(ctx context.Context, firstName, lastName, dob string) ([]Record, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE FirstName = '%s' AND LastName = '%s' AND Birthdate = %s LIMIT 10",
		strings.Join(contactFields, ", "),
		escapeSoql(firstName),
		escapeSoql(lastName),
		escapeSoql(dob),
	)
	var contacts []Contact
	if err := s.q.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, "recordstore: search by name+dob")
	}
	return s.attach(ctx, contacts)
}

func (s *sfStore) SearchByName(ctx context.Context, firstName, lastName string) ([]Record, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE FirstName = '%s' AND LastName = '%s' LIMIT 25",
		strings.Join(contactFields, ", "),
		escapeSoql(firstName),
		escapeSoql(lastName),
	)
	var contacts []Contact
	if err := s.q.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, "recordstore: search by name")
	}
	return s.attach(ctx, contacts)
}

func (s *sfStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Id = '%s' LIMIT 1",
		strings.Join(contactFields, ", "),
		escapeSoql(id),
	)
	var contacts []Contact
	if err := s.q.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrapf(err, "recordstore: get record %s", id)
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	recs, err := s.attach(ctx, contacts)
	if err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// attach converts contacts to Records and folds in each contact's
// biographic attributes with one query per contact.
func (s *sfStore) attach(ctx context.Context, contacts []Contact) ([]Record, error) {
	records := make([]Record, 0, len(contacts))
	for _, c := range contacts {
		rec := toRecord(c)

		soql := fmt.Sprintf(
			"SELECT %s FROM ContactBiographic__c WHERE Contact__c = '%s' LIMIT 1",
			strings.Join(biographicFields, ", "),
			escapeSoql(c.ID),
		)
		var bios []Biographic
		if err := s.q.Query(ctx, soql, &bios); err != nil {
			return nil, eris.Wrapf(err, "recordstore: biographic for %s", c.ID)
		}
		if len(bios) > 0 {
			mergeBiographic(&rec, bios[0])
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(c Contact) Record {
	attrs := map[string]string{
		"FirstName":     c.FirstName,
		"MiddleName":    c.MiddleName,
		"LastName":      c.LastName,
		"BirthDate":     c.BirthDate,
		"CellPhone":     c.CellPhone,
		"HomePhone":     c.HomePhone,
		"EmailPersonal": c.Email,
		"AddressLine1":  c.MailingStreet,
		"City":          c.MailingCity,
		"State":         c.MailingState,
		"PostalZipCode": c.MailingZip,
	}
	for k, v := range attrs {
		if v == "" {
			delete(attrs, k)
		}
	}
	return Record{ID: c.ID, DisplayName: c.DisplayAs, Attributes: attrs}
}

func mergeBiographic(rec *Record, b Biographic) {
	for k, v := range map[string]string{
		"AlienNumber":              b.AlienNumber,
		"BirthCity":                b.BirthCity,
		"BirthCountry":             b.BirthCountry,
		"Gender":                   b.Gender,
		"MaritalStatus":            b.MaritalStatus,
		"Citizenship1Country":      b.Citizenship,
		"CurrentImmigrationStatus": b.ImmigrationStatus,
		"DateOfEntryToUsa":         b.DateOfEntry,
		"NativeLanguage":           b.NativeLanguage,
	} {
		if v != "" {
			rec.Attributes[k] = v
		}
	}
}

func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
