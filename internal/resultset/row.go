package resultset

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Row is one normalised result row: an ordered mapping from column name to a
// scalar rendered as a string. Rows are immutable once built.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow builds a row whose column order is keys followed by any remaining keys
// of values in sorted order. Keys listed but missing from values are dropped.
func NewRow(keys []string, values map[string]string) Row {
	ordered := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, k := range keys {
		if _, ok := values[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		ordered = append(ordered, k)
	}

	var rest []string
	for k := range values {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	ordered = append(ordered, rest...)

	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Row{keys: ordered, values: copied}
}

// Keys returns the column names in order.
func (r Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Get returns the value of column k, or "" when the column is absent.
func (r Row) Get(k string) string {
	return r.values[k]
}

// Lookup returns the value of column k and whether the column is present.
func (r Row) Lookup(k string) (string, bool) {
	v, ok := r.values[k]
	return v, ok
}

// Has reports whether column k is present with a non-empty value.
func (r Row) Has(k string) bool {
	return r.values[k] != ""
}

// First returns the first non-empty value among the given columns.
func (r Row) First(keys ...string) string {
	for _, k := range keys {
		if v := r.values[k]; v != "" {
			return v
		}
	}
	return ""
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the row as an object, keeping column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
