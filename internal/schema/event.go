// Package schema defines the canonical event format for Phalanx.
// Every event checked or loaded into history is normalized to this structure.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event represents one occurrence to be scored: a transaction, a loan
// application, a data-retention record or a configuration change.
type Event struct {
	UserID    string `json:"user_id" validate:"required,max=256"`
	Timestamp string `json:"timestamp" validate:"required,max=64"`
	EventType string `json:"event_type" validate:"required,event_type_format"`
	Data      Fields `json:"data"`
}

// Well-known event types. The set is open: policies match on the raw string.
const (
	EventTypeTransaction  = "transaction"
	EventTypeLoan         = "loan_application"
	EventTypeDataRecord   = "data_record"
	EventTypeSystemConfig = "system_config"
)

// Serialize renders the event as the canonical descriptive string that
// embeddings are computed from. The payload fields appear in document order.
// Changing this format invalidates every stored embedding; the history store
// guards against that with a scheme version.
func (e *Event) Serialize() string {
	var b strings.Builder
	fmt.Fprintf(&b, "User %s triggered a %s event with data: ", e.UserID, e.EventType)
	for i, k := range e.Data.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		v, _ := e.Data.Get(k)
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(formatScalar(v))
	}
	return b.String()
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	c.Data = e.Data.Clone()
	return &c
}

// formatScalar renders a payload value deterministically.
func formatScalar(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Fields is an insertion-ordered map of payload field name to scalar value.
// JSON round-trips preserve key order, which keeps Serialize deterministic
// between insert time and query time.
type Fields struct {
	keys   []string
	values map[string]any
}

// NewFields returns an empty Fields.
func NewFields() Fields {
	return Fields{values: make(map[string]any)}
}

// Set stores a value, appending the key on first use.
func (f *Fields) Set(key string, value any) {
	if f.values == nil {
		f.values = make(map[string]any)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key and whether it is present.
func (f *Fields) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Keys returns the field names in document order.
func (f *Fields) Keys() []string {
	return f.keys
}

// Len returns the number of fields.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Clone returns a copy sharing no state with the original.
func (f Fields) Clone() Fields {
	c := Fields{values: make(map[string]any, len(f.values))}
	c.keys = append(c.keys, f.keys...)
	for k, v := range f.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON encodes the fields as a JSON object in insertion order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(f.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order. Only scalar
// values (string, number, boolean, null) are accepted; nested objects and
// arrays are rejected.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("data must be a JSON object")
	}

	*f = NewFields()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("invalid object key %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		if _, isDelim := valTok.(json.Delim); isDelim {
			return fmt.Errorf("field %q: nested values are not supported", key)
		}
		f.Set(key, valTok)
	}

	// Consume closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
