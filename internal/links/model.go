package links

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Known placement zones.
const (
	LocationNav  = "nav"
	LocationMenu = "menu"
)

const (
	keyID       = "id"
	keyHref     = "href"
	keyIcon     = "icon"
	keyLocation = "location"
	keyActive   = "active"
)

// Fields is a loosely typed set of link attributes: a create body, a set of
// update overrides, or a payload read back from a store. The key "id" is
// never treated as an attribute.
type Fields map[string]any

// Record is a single custom link.
type Record struct {
	Href     string
	Icon     string
	Location string
	Active   bool
	// Extra holds caller attributes that are carried through unvalidated.
	Extra map[string]any
}

// Entry pairs a record with its registry id.
type Entry struct {
	ID     string
	Record Record
}

// Fields returns the record as attributes, suitable for merging overrides.
func (r Record) Fields() Fields {
	f := make(Fields, len(r.Extra)+4)
	for k, v := range r.Extra {
		f[k] = copyValue(v)
	}
	f[keyHref] = r.Href
	f[keyIcon] = r.Icon
	f[keyLocation] = r.Location
	f[keyActive] = r.Active
	return f
}

// Payload returns the persisted form of the record, with active as 0 or 1.
func (r Record) Payload() map[string]any {
	p := map[string]any(r.Fields())
	p[keyActive] = boolInt(r.Active)
	return p
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Payload())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	rec, err := DecodeRecord(f)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func (r Record) clone() Record {
	if r.Extra != nil {
		extra := make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			extra[k] = copyValue(v)
		}
		r.Extra = extra
	}
	return r
}

// copyValue deep-copies the container shapes produced by JSON, YAML and
// JSONB decoding. Scalars are returned as is.
func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = copyValue(e)
		}
		return out
	case Fields:
		out := make(Fields, len(v))
		for k, e := range v {
			out[k] = copyValue(e)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(v))
		for k, e := range v {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func (e Entry) MarshalJSON() ([]byte, error) {
	p := e.Record.Payload()
	p[keyID] = e.ID
	return json.Marshal(p)
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	id, _ := f[keyID].(string)
	rec, err := DecodeRecord(f)
	if err != nil {
		return err
	}
	*e = Entry{ID: id, Record: rec}
	return nil
}

func (e Entry) clone() Entry {
	return Entry{ID: e.ID, Record: e.Record.clone()}
}

// DecodeRecord converts attributes into a Record, checking types and
// coercing active but applying no validation rules. A missing active
// decodes as false. Stores use it to read their payloads back.
func DecodeRecord(f Fields) (Record, error) {
	return decodeRecord(f, false)
}

func decodeRecord(f Fields, defaultActive bool) (Record, error) {
	var rec Record
	var err error

	if rec.Href, err = stringField(f, keyHref); err != nil {
		return Record{}, err
	}
	if rec.Icon, err = stringField(f, keyIcon); err != nil {
		return Record{}, err
	}
	if rec.Location, err = stringField(f, keyLocation); err != nil {
		return Record{}, err
	}

	rec.Active = defaultActive
	if v, ok := f[keyActive]; ok && v != nil {
		if rec.Active, err = ParseActive(v); err != nil {
			return Record{}, err
		}
	}

	for k, v := range f {
		switch k {
		case keyID, keyHref, keyIcon, keyLocation, keyActive:
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = copyValue(v)
	}

	return rec, nil
}

func stringField(f Fields, key string) (string, error) {
	v, ok := f[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return strings.TrimSpace(s), nil
}

// ParseActive coerces an active flag to a bool. Numbers are true when
// non-zero. Strings are false when empty or one of 0, false, f, no, n, off
// (any case) and true otherwise.
func ParseActive(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case int8:
		return x != 0, nil
	case int16:
		return x != 0, nil
	case int32:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case uint:
		return x != 0, nil
	case uint8:
		return x != 0, nil
	case uint16:
		return x != 0, nil
	case uint32:
		return x != 0, nil
	case uint64:
		return x != 0, nil
	case float32:
		return x != 0 && !math.IsNaN(float64(x)), nil
	case float64:
		return x != 0 && !math.IsNaN(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return false, fmt.Errorf("active: invalid number %q", x.String())
		}
		return f != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "f", "no", "n", "off":
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("active must be a boolean, number or string, got %T", v)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
