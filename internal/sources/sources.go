// Package sources holds the recognized shipment source countries as an
// immutable configuration value. Extending the list returns a new value
// rather than mutating shared state.
package sources

import "sort"

// Config is an immutable set of recognized source countries.
type Config struct {
	names []string
	index map[string]struct{}
}

// defaultNames are the countries recognized out of the box.
var defaultNames = []string{
	"Sri Lanka",
	"Thailand",
	"Singapore",
	"Malaysia",
	"Indonesia",
	"Philippines",
	"Vietnam",
	"China",
	"India",
	"Brazil",
}

// New builds a config from the given names, dropping duplicates while
// preserving first-seen order.
func New(names ...string) Config {
	c := Config{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, ok := c.index[n]; ok {
			continue
		}
		c.index[n] = struct{}{}
		c.names = append(c.names, n)
	}
	return c
}

// Default returns the standard source country set.
func Default() Config {
	return New(defaultNames...)
}

// Contains reports whether the name is a recognized source. Matching is
// exact, including case.
func (c Config) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// With returns a config extended by the given names. The receiver is never
// modified; adding an already-present name returns an equal config.
func (c Config) With(names ...string) Config {
	combined := make([]string, 0, len(c.names)+len(names))
	combined = append(combined, c.names...)
	combined = append(combined, names...)
	return New(combined...)
}

// List returns the source names in insertion order. The returned slice is a
// copy the caller may modify freely.
func (c Config) List() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Sorted returns the source names in lexical order.
func (c Config) Sorted() []string {
	out := c.List()
	sort.Strings(out)
	return out
}

// Len returns the number of recognized sources.
func (c Config) Len() int {
	return len(c.names)
}
