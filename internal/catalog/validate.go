package catalog

import (
	"storefront/pkg/errors"
)

// Validate checks that a product fetched from a source is internally consistent: option IDs are
// unique, option values are unique per option, and every variant assigns exactly one declared value
// to every option. The selection and pricing functions never call it and stay total on bad input.
func Validate(p *Product) error {
	if p == nil {
		return errors.NewInvalidProductError("", "product is nil")
	}
	if p.ID == "" {
		return errors.NewInvalidProductError("", "product id is empty")
	}

	declared := make(map[string]map[string]struct{}, len(p.Options))
	for _, opt := range p.Options {
		if opt.ID == "" {
			return errors.NewInvalidProductError(p.ID, "option %q has an empty id", opt.Title)
		}
		if _, dup := declared[opt.ID]; dup {
			return errors.NewInvalidProductError(p.ID, "duplicate option id %s", opt.ID)
		}
		values := make(map[string]struct{}, len(opt.Values))
		for _, v := range opt.Values {
			if _, dup := values[v.Value]; dup {
				return errors.NewInvalidProductError(p.ID, "option %s declares value %q twice", opt.ID, v.Value)
			}
			values[v.Value] = struct{}{}
		}
		declared[opt.ID] = values
	}

	for _, v := range p.Variants {
		seen := make(map[string]struct{}, len(v.Options))
		for _, vo := range v.Options {
			values, ok := declared[vo.OptionID]
			if !ok {
				return errors.NewInvalidProductError(p.ID, "variant %s references unknown option %s", v.ID, vo.OptionID)
			}
			if _, ok := values[vo.Value]; !ok {
				return errors.NewInvalidProductError(p.ID, "variant %s uses undeclared value %q for option %s", v.ID, vo.Value, vo.OptionID)
			}
			if _, dup := seen[vo.OptionID]; dup {
				return errors.NewInvalidProductError(p.ID, "variant %s assigns option %s twice", v.ID, vo.OptionID)
			}
			seen[vo.OptionID] = struct{}{}
		}
		if len(seen) != len(declared) {
			return errors.NewInvalidProductError(p.ID, "variant %s assigns %d of %d options", v.ID, len(seen), len(declared))
		}
	}
	return nil
}
