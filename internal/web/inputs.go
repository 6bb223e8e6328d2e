package web

import (
	"net/url"
	"sort"

	"github.com/dunamismax/stylize/internal/function"
)

// inputsFromForm turns a posted options modal back into form inputs.
// Browsers omit unchecked checkboxes, so toggles come from the schema and
// their checked state from field presence.
func inputsFromForm(schema function.Schema, values url.Values) []function.Input {
	var inputs []function.Input
	toggles := make(map[string]bool)
	for _, p := range schema.Params {
		if p.Kind != function.ParamToggle {
			continue
		}
		toggles[p.Key] = true
		inputs = append(inputs, function.Input{
			ID:      p.Key,
			Kind:    function.InputCheckbox,
			Checked: values.Has(p.Key),
		})
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if toggles[key] {
			continue
		}
		kind := function.InputText
		if p, ok := schema.Param(key); ok && p.Kind == function.ParamNumber {
			kind = function.InputNumber
		}
		inputs = append(inputs, function.Input{ID: key, Kind: kind, Value: values.Get(key)})
	}
	return inputs
}
