package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Conversion describes the conversion-tracking call fired for one event name.
type Conversion struct {
	Label    string  `yaml:"label"`
	Value    float64 `yaml:"value"`
	Currency string  `yaml:"currency"`
}

// Conversions maps a conversion event name to its tracking parameters.
type Conversions map[string]Conversion

// DefaultConversions returns the built-in conversion table.
func DefaultConversions() Conversions {
	return Conversions{
		"sinastria_completed": {Label: "sinastria_purchase", Value: 6.90, Currency: "EUR"},
		"tema_completed":      {Label: "tema_purchase", Value: 4.90, Currency: "EUR"},
		"oroscopo_completed":  {Label: "oroscopo_purchase", Value: 2.90, Currency: "EUR"},
	}
}

// Merge returns a copy of c with every entry of overlay applied on top.
// Overlay entries with an empty currency inherit the base currency.
func (c Conversions) Merge(overlay Conversions) Conversions {
	out := make(Conversions, len(c)+len(overlay))
	for name, conv := range c {
		out[name] = conv
	}
	for name, conv := range overlay {
		if conv.Currency == "" {
			conv.Currency = out[name].Currency
		}
		out[name] = conv
	}
	return out
}

// LoadConversions parses a YAML file of the form:
//
//	conversions:
//	  tema_completed:
//	    label: tema_purchase
//	    value: 4.9
//	    currency: EUR
func LoadConversions(path string) (Conversions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc struct {
		Conversions Conversions `yaml:"conversions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for name, conv := range doc.Conversions {
		if conv.Label == "" {
			return nil, fmt.Errorf("conversion %q: missing label", name)
		}
	}
	return doc.Conversions, nil
}
