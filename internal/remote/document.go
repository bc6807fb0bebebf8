package remote

import (
	"encoding/json"
	"time"
)

// Remote collection names. Documents are keyed by the entity's stable
// identifier, never by store-generated keys, so every write is an idempotent
// upsert.
const (
	CollectionStudents        = "students"
	CollectionExams           = "exams"
	CollectionPerformances    = "questionPerformances"
	CollectionPendingRequests = "pendingRequests"
	CollectionTeachers        = "teachers"
)

// Document is a remote field-map as delivered by the document store.
type Document map[string]interface{}

// String returns the field as a string when present and well-typed.
func (d Document) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringOr returns the field or a fallback when absent or mistyped.
func (d Document) StringOr(key, fallback string) string {
	if s, ok := d.String(key); ok {
		return s
	}
	return fallback
}

// Float returns the field as a float64. JSON decoding yields float64 for all
// numbers; json.Number and int are accepted for callers building documents in
// code.
func (d Document) Float(key string) (float64, bool) {
	switch v := d[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// FloatOr returns the field or a fallback when absent or mistyped.
func (d Document) FloatOr(key string, fallback float64) float64 {
	if f, ok := d.Float(key); ok {
		return f
	}
	return fallback
}

// Int returns the field as an int, tolerating float64-decoded JSON numbers.
func (d Document) Int(key string) (int, bool) {
	f, ok := d.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// IntOr returns the field or a fallback when absent or mistyped.
func (d Document) IntOr(key string, fallback int) int {
	if n, ok := d.Int(key); ok {
		return n
	}
	return fallback
}

// Time parses the field as an RFC3339 timestamp.
func (d Document) Time(key string) (time.Time, bool) {
	s, ok := d.String(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Child returns a nested field-map, such as the student targets block.
func (d Document) Child(key string) (Document, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	switch m := v.(type) {
	case map[string]interface{}:
		return Document(m), true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

// Timestamp renders a time in the wire format used by all collections.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
