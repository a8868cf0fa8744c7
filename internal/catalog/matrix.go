package catalog

import "strings"

// KeySeparator joins the ordered option values of a matrix key.
const KeySeparator = "|"

// MatrixKey serializes an ordered tuple of option values.
func MatrixKey(values []string) string {
	return strings.Join(values, KeySeparator)
}

// Matrix maps every resolvable combination of option values to its variant.
// It is derived from a single product and never persisted.
type Matrix struct {
	product      *Product
	combinations [][]string
	entries      map[string]*Variant
}

// BuildMatrix enumerates the cartesian product of the product's option values, first option
// outermost, and records the variant matching each combination. A variant matches when its value
// for every option equals the combination's value at that option's position. Combinations without
// a variant are left out of the matrix.
func BuildMatrix(p *Product) *Matrix {
	m := &Matrix{
		product: p,
		entries: make(map[string]*Variant),
	}
	if p == nil {
		return m
	}

	if len(p.Options) == 0 {
		m.combinations = [][]string{{}}
		if len(p.Variants) == 1 {
			m.entries[""] = &p.Variants[0]
		}
		return m
	}

	m.combinations = combinations(p.Options)
	for _, combo := range m.combinations {
		if v := matchVariant(p, combo); v != nil {
			m.entries[MatrixKey(combo)] = v
		}
	}
	return m
}

func combinations(options []Option) [][]string {
	out := [][]string{{}}
	for _, opt := range options {
		next := make([][]string, 0, len(out)*len(opt.Values))
		for _, prefix := range out {
			for _, v := range opt.Values {
				combo := make([]string, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, v.Value))
			}
		}
		out = next
	}
	return out
}

func matchVariant(p *Product, combo []string) *Variant {
	for i := range p.Variants {
		v := &p.Variants[i]
		matched := true
		for pos, opt := range p.Options {
			value, ok := v.OptionValue(opt.ID)
			if !ok || value != combo[pos] {
				matched = false
				break
			}
		}
		if matched {
			return v
		}
	}
	return nil
}

// SelectVariant returns the variant for a fully selected, ordered tuple of option values.
// A nil selection means the shopper has not finished choosing and always resolves to nothing.
func SelectVariant(m *Matrix, selected []string) (*Variant, bool) {
	if m == nil || selected == nil {
		return nil, false
	}
	v, ok := m.entries[MatrixKey(selected)]
	return v, ok
}

// SelectByOption resolves a selection keyed by option ID, ordering it by the product's options.
// Any option left unselected resolves to nothing.
func (m *Matrix) SelectByOption(selected map[string]string) (*Variant, bool) {
	values, ok := m.OrderedSelection(selected)
	if !ok {
		return nil, false
	}
	return SelectVariant(m, values)
}

// OrderedSelection converts a selection keyed by option ID into the product's option order.
// It returns false while any option is still unselected.
func (m *Matrix) OrderedSelection(selected map[string]string) ([]string, bool) {
	if m == nil || m.product == nil {
		return nil, false
	}
	values := make([]string, 0, len(m.product.Options))
	for _, opt := range m.product.Options {
		v := selected[opt.ID]
		if v == "" {
			return nil, false
		}
		values = append(values, v)
	}
	return values, true
}

// Combinations returns every theoretical combination in enumeration order, including the ones
// with no variant.
func (m *Matrix) Combinations() [][]string {
	if m == nil {
		return nil
	}
	out := make([][]string, len(m.combinations))
	for i, c := range m.combinations {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// Keys returns the resolvable keys in enumeration order.
func (m *Matrix) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.entries))
	for _, c := range m.combinations {
		k := MatrixKey(c)
		if _, ok := m.entries[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len is the number of resolvable combinations.
func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Lookup returns the variant stored under a serialized key.
func (m *Matrix) Lookup(key string) (*Variant, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.entries[key]
	return v, ok
}

// Product returns the product the matrix was built from.
func (m *Matrix) Product() *Product {
	if m == nil {
		return nil
	}
	return m.product
}
