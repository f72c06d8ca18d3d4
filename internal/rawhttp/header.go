package rawhttp

import (
	"golang.org/x/text/cases"
)

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

// Header is an ordered list of header fields. Unlike http.Header it keeps
// the order and spelling of names as received and does not merge repeated
// fields.
type Header []Field

func foldName(name string) string {
	// Casers are stateful, so each lookup gets its own.
	return cases.Fold().String(name)
}

// Get returns the value of the first field named name, compared
// case-insensitively, or "" if there is none.
func (h Header) Get(name string) string {
	v, _ := h.Lookup(name)
	return v
}

// Lookup is like Get but also reports whether the field was present.
func (h Header) Lookup(name string) (string, bool) {
	key := foldName(name)
	for _, f := range h {
		if foldName(f.Name) == key {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value for name in order of appearance.
func (h Header) Values(name string) []string {
	key := foldName(name)
	var out []string
	for _, f := range h {
		if foldName(f.Name) == key {
			out = append(out, f.Value)
		}
	}
	return out
}

// Has reports whether a field named name is present.
func (h Header) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

// With returns a copy of h with the field appended. h is not modified.
func (h Header) With(name, value string) Header {
	out := make(Header, len(h), len(h)+1)
	copy(out, h)
	return append(out, Field{Name: name, Value: value})
}

// Clone returns a copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	copy(out, h)
	return out
}
