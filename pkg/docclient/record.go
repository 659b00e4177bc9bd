package docclient

import (
	"errors"

	json "github.com/goccy/go-json"
)

// Record is a document as returned by the document API. Its structure is
// not interpreted; the raw JSON bytes are kept so that key order survives
// formatting.
type Record json.RawMessage

// ParseRecord validates b as JSON and returns it as a Record.
func ParseRecord(b []byte) (Record, error) {
	if !json.Valid(b) {
		return nil, errors.New("document record is not valid JSON")
	}
	r := make(Record, len(b))
	copy(r, b)
	return r, nil
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(b []byte) error {
	if r == nil {
		return errors.New("docclient.Record: UnmarshalJSON on nil pointer")
	}
	*r = append((*r)[0:0], b...)
	return nil
}

// String returns the raw JSON.
func (r Record) String() string {
	return string(r)
}
