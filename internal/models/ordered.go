package models

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// OrderedMap is a string-keyed map that remembers insertion order.
//
// It encodes as a JSON object whose keys appear in insertion order and decodes
// objects back in document order. The zero value is ready to use.
type OrderedMap[V any] struct {
	keys []string
	vals map[string]V
}

// Set stores v under key. A new key is appended; an existing key keeps its position.
func (m *OrderedMap[V]) Set(key string, v V) {
	if m.vals == nil {
		m.vals = make(map[string]V)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get returns the value stored under key.
func (m OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m OrderedMap[V]) Has(key string) bool {
	_, ok := m.vals[key]
	return ok
}

// Len returns the number of keys.
func (m OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order.
func (m OrderedMap[V]) Each(fn func(key string, v V)) {
	for _, k := range m.keys {
		fn(k, m.vals[k])
	}
}

// MarshalJSON encodes the map as an object in insertion order.
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping keys in document order.
// A JSON null leaves the map empty.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.vals = nil

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := stdjson.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(stdjson.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}

		var raw stdjson.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read value for %q: %w", key, err)
		}

		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("failed to decode value for %q: %w", key, err)
		}
		m.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Entry is a key with its integer total.
type Entry struct {
	Key   string
	Value int
}

// Tally is an insertion-ordered counter.
type Tally struct {
	OrderedMap[int]
}

// Add increments key by n, registering key at the end when it is new.
func (t *Tally) Add(key string, n int) {
	v, _ := t.Get(key)
	t.Set(key, v+n)
}

// Total sums every value.
func (t Tally) Total() int {
	total := 0
	for _, k := range t.keys {
		total += t.vals[k]
	}
	return total
}

// Entries returns every entry in insertion order.
func (t Tally) Entries() []Entry {
	out := make([]Entry, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, Entry{Key: k, Value: t.vals[k]})
	}
	return out
}

// Top returns the n largest entries by value. Equal values keep insertion order.
// n <= 0 returns every entry ranked.
func (t Tally) Top(n int) []Entry {
	out := t.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Truncated returns a new Tally holding only the top n entries, in ranked order.
func (t Tally) Truncated(n int) Tally {
	var out Tally
	for _, e := range t.Top(n) {
		out.Set(e.Key, e.Value)
	}
	return out
}
