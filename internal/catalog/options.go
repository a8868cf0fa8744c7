package catalog

// FilteredOptionValues returns the values of currentOptionID that are still reachable given the
// selections made on the other options. Empty selections, keys that are not options of p and the
// current option's own selection are ignored; with nothing else selected every declared value is returned. Output follows the option's
// declared value order.
func FilteredOptionValues(p *Product, selected map[string]string, currentOptionID string) []OptionValue {
	current, ok := p.Option(currentOptionID)
	if !ok {
		return []OptionValue{}
	}

	others := make(map[string]string, len(selected))
	for optionID, value := range selected {
		if optionID == currentOptionID || value == "" {
			continue
		}
		if _, ok := p.Option(optionID); !ok {
			continue
		}
		others[optionID] = value
	}
	if len(others) == 0 {
		return append([]OptionValue{}, current.Values...)
	}

	reachable := make(map[string]struct{})
	for i := range p.Variants {
		v := &p.Variants[i]
		if !matchesSelection(v, others) {
			continue
		}
		if value, ok := v.OptionValue(currentOptionID); ok {
			reachable[value] = struct{}{}
		}
	}

	out := make([]OptionValue, 0, len(current.Values))
	for _, ov := range current.Values {
		if _, ok := reachable[ov.Value]; ok {
			out = append(out, ov)
		}
	}
	return out
}

func matchesSelection(v *Variant, selected map[string]string) bool {
	for optionID, want := range selected {
		got, ok := v.OptionValue(optionID)
		if !ok || got != want {
			return false
		}
	}
	return true
}
