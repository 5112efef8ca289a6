package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CustomCatalog is the on-disk format for user-supplied model entries. It
// covers aggregator and custom-endpoint models the builtin catalogue does not
// know about.
type CustomCatalog struct {
	Models []*Capability `json:"models"`
}

// LoadCustomCatalog reads a JSON catalogue document and registers its entries.
// Entries default to the custom provider tag and a standard range constraint
// when the document omits them.
func LoadCustomCatalog(c *Catalog, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read custom catalog: %w", err)
	}
	var doc CustomCatalog
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse custom catalog %s: %w", path, err)
	}
	for _, cap := range doc.Models {
		if cap.Provider == "" {
			cap.Provider = ProviderCustom
		}
		if cap.Temperature.Kind == "" {
			cap.Temperature = RangeConstraint(0, 1, 0.5)
		}
		if cap.Category == "" {
			cap.Category = CategoryBalanced
		}
		if err := c.Register(cap); err != nil {
			return fmt.Errorf("custom catalog %s: %w", path, err)
		}
	}
	return nil
}

// SaveCustomCatalog serializes the given capabilities back into the on-disk
// format. Loading the output yields the same entries.
func SaveCustomCatalog(caps []*Capability) ([]byte, error) {
	return json.MarshalIndent(CustomCatalog{Models: caps}, "", "  ")
}

// Restrictions is a per-provider allow-list. A provider absent from the map is
// unrestricted; a present provider only serves the listed canonical names.
type Restrictions map[string]map[string]bool

// ParseRestrictions builds restrictions from comma-separated allow-list
// values keyed by provider tag. Entries that do not resolve in the catalogue
// are kept verbatim (lowercased) and reported so startup can log them.
func ParseRestrictions(c *Catalog, lists map[string]string) (Restrictions, []string) {
	r := Restrictions{}
	var unresolved []string
	for provider, raw := range lists {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		allowed := map[string]bool{}
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if canonical, ok := c.Resolve(name); ok {
				allowed[strings.ToLower(canonical)] = true
			} else {
				allowed[strings.ToLower(name)] = true
				unresolved = append(unresolved, provider+":"+name)
			}
		}
		r[provider] = allowed
	}
	return r, unresolved
}

// Allows reports whether a model is permitted for a provider.
func (r Restrictions) Allows(provider, canonical string) bool {
	allowed, ok := r[provider]
	if !ok || len(allowed) == 0 {
		return true
	}
	return allowed[strings.ToLower(canonical)]
}
