// Package recordstore talks to the external spreadsheet-style database that
// holds users, orders, products and promo codes.  Records are addressed by
// an opaque ID inside a named table and carry a bag of named fields; the
// repository layer maps them onto typed domain entities.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a record ID does not exist in a table.
	ErrNotFound = errors.New("recordstore: record not found")
	// ErrTimeout is returned when the store did not answer before the
	// configured deadline.  The request is cancelled.
	ErrTimeout = errors.New("recordstore: request timed out")
)

// APIError carries a non-2xx answer from the store.  Message is logged but
// never surfaced to API clients.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("recordstore: status %d: %s %s", e.Status, e.Type, e.Message)
}

// Fields is the named-field payload of a record.  A nil value in an update
// clears the field.
type Fields map[string]any

// Record is one row of a table.
type Record struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`
	Fields      Fields    `json:"fields"`
}

// ListOptions narrows a List call.
type ListOptions struct {
	Filter     *Filter
	MaxRecords int
}

// Store is the generic key-field document store.  Implementations must be
// safe for concurrent use.  There is no conditional write: Update is a plain
// partial overwrite and concurrent writers race (last writer wins).
type Store interface {
	List(ctx context.Context, table string, opts ListOptions) ([]Record, error)
	Get(ctx context.Context, table, id string) (Record, error)
	Create(ctx context.Context, table string, fields Fields) (Record, error)
	Update(ctx context.Context, table, id string, fields Fields) (Record, error)
	Delete(ctx context.Context, table, id string) error
}

// String returns the field as a string.  Numbers are formatted; missing
// fields yield "".
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool accepts checkbox booleans as well as "true"/"1" strings.
func (f Fields) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// Float returns numeric fields; numeric strings are parsed.  ok is false when
// the field is absent or not numeric.
func (f Fields) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Time parses RFC3339 timestamps and plain YYYY-MM-DD dates.  A nil result
// means the field is empty or unparseable.
func (f Fields) Time(key string) *time.Time {
	switch v := f[key].(type) {
	case time.Time:
		t := v.UTC()
		return &t
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

// Has reports whether the key is present with a non-nil value.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

func copyFields(in Fields) Fields {
	out := make(Fields, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
