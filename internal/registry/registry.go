// Package registry indexes converters by name and by format and resolves
// which converter handles a given input/output pair.
//
// A Registry is built once at startup and passed explicitly to the
// components that need it; it is safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/transmute/internal/converters"
	"github.com/dmitrijs2005/transmute/internal/formats"
)

var (
	ErrNilConverter = errors.New("nil converter")
	ErrNoName       = errors.New("converter has no name")
	ErrNoFormats    = errors.New("converter declares no formats")
)

// Descriptor is a read-only summary of a registered converter.
type Descriptor struct {
	Name    string
	Formats []string
}

type Registry struct {
	mu     sync.RWMutex
	byName map[string]converters.Converter
	// byFormat maps a format to converter names in registration order.
	// Re-registering a name appends again, so entries may repeat.
	byFormat map[string][]string
}

// New builds a registry and registers cs in order.
func New(cs ...converters.Converter) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]converters.Converter),
		byFormat: make(map[string][]string),
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c. A later registration under the same name replaces the
// earlier one in the name table.
func (r *Registry) Register(c converters.Converter) error {
	if c == nil {
		return ErrNilConverter
	}
	name := strings.TrimSpace(c.Name())
	if name == "" {
		return ErrNoName
	}
	declared := normalizedFormats(c)
	if len(declared) == 0 {
		return fmt.Errorf("%w: %s", ErrNoFormats, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[name] = c
	for _, f := range declared {
		r.byFormat[f] = append(r.byFormat[f], name)
	}
	return nil
}

// ConverterByName returns the converter registered under name.
func (r *Registry) ConverterByName(name string) (converters.Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[strings.TrimSpace(name)]
	return c, ok
}

// ConvertersForFormat returns the converters declaring format, in
// registration order and without duplicates. Lookup is case-insensitive.
func (r *Registry) ConvertersForFormat(format string) []converters.Converter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forFormatLocked(formats.Normalize(format))
}

func (r *Registry) forFormatLocked(format string) []converters.Converter {
	var out []converters.Converter
	seen := make(map[string]bool)
	for _, name := range r.byFormat[format] {
		if seen[name] {
			continue
		}
		seen[name] = true
		c := r.byName[name]
		// a replacement registration may have dropped the format
		if c == nil || !slices.Contains(normalizedFormats(c), format) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Resolve picks the converter for input -> output. The pair must be
// structurally convertible; among converters declaring both formats and
// accepting the pair, the one with the lexicographically smallest name wins.
// Resolve never fails: an impossible pair is reported as false.
func (r *Registry) Resolve(input, output string) (converters.Converter, bool) {
	in, out := formats.Normalize(input), formats.Normalize(output)
	if !formats.IsStructurallyConvertible(in, out) {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(in, out)
}

func (r *Registry) resolveLocked(in, out string) (converters.Converter, bool) {
	outputs := r.forFormatLocked(out)
	var best converters.Converter
	for _, c := range r.forFormatLocked(in) {
		if !slices.ContainsFunc(outputs, func(o converters.Converter) bool { return o.Name() == c.Name() }) {
			continue
		}
		if !c.CanConvert(in, out) {
			continue
		}
		if best == nil || c.Name() < best.Name() {
			best = c
		}
	}
	return best, best != nil
}

// CompatibleFormats lists, sorted, every other format input can be
// converted to with the registered converters.
func (r *Registry) CompatibleFormats(input string) []string {
	in := formats.Normalize(input)

	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make(map[string]struct{})
	for _, c := range r.forFormatLocked(in) {
		for _, f := range normalizedFormats(c) {
			candidates[f] = struct{}{}
		}
	}

	out := make([]string, 0, len(candidates))
	for f := range candidates {
		if f == in || !formats.IsStructurallyConvertible(in, f) {
			continue
		}
		if _, ok := r.resolveLocked(in, f); ok {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}

// List describes every registered converter, sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.byName))
	for name, c := range r.byName {
		fs := normalizedFormats(c)
		slices.Sort(fs)
		out = append(out, Descriptor{Name: name, Formats: fs})
	}
	slices.SortFunc(out, func(a, b Descriptor) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func normalizedFormats(c converters.Converter) []string {
	var out []string
	for _, f := range c.SupportedFormats() {
		if n := formats.Normalize(f); n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}
