package notification

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the free-form key/value map carried by events and deliveries.
// Callers define their own template variables per event kind, so the shape
// is deliberately untyped; values are JSON-compatible scalars, arrays or
// objects.
type Payload map[string]any

// String returns the trimmed string value under key, or "" when the key is
// absent, not a string, or blank after trimming.
func (p Payload) String(key string) string {
	value, ok := p[key]
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Bool reads a boolean value under key. String forms "true"/"false" are
// accepted as well. The second return reports whether a usable value was
// present.
func (p Payload) Bool(key string) (bool, bool) {
	value, ok := p[key]
	if !ok {
		return false, false
	}
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		if v == "true" {
			return true, true
		}
		if v == "false" {
			return false, true
		}
	}
	return false, false
}

// Clone returns a shallow copy so per-attempt mutations never leak back
// into the row loaded from storage.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer, serializing the payload as JSON for a
// jsonb column.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for jsonb columns.
func (p *Payload) Scan(src any) error {
	if src == nil {
		*p = Payload{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into Payload", src)
	}
}
