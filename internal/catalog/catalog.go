// Package catalog provides the model capability registry: which models exist,
// what they can do, and how their names resolve.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Category identifies a model's capability class for auto selection.
type Category string

const (
	CategoryFast      Category = "fast"
	CategoryBalanced  Category = "balanced"
	CategoryReasoning Category = "reasoning"
)

// TemperatureKind selects how a model constrains the temperature parameter.
type TemperatureKind string

const (
	TemperatureFixed    TemperatureKind = "fixed"
	TemperatureDiscrete TemperatureKind = "discrete"
	TemperatureRange    TemperatureKind = "range"
)

// TemperatureConstraint describes the legal temperature values for a model.
type TemperatureConstraint struct {
	Kind    TemperatureKind `json:"kind"`
	Fixed   float64         `json:"fixed,omitempty"`
	Allowed []float64       `json:"allowed,omitempty"`
	Min     float64         `json:"min,omitempty"`
	Max     float64         `json:"max,omitempty"`
	Default float64         `json:"default"`
}

// RangeConstraint returns a continuous-range constraint.
func RangeConstraint(min, max, def float64) TemperatureConstraint {
	return TemperatureConstraint{Kind: TemperatureRange, Min: min, Max: max, Default: def}
}

// FixedConstraint returns a fixed-value constraint.
func FixedConstraint(value float64) TemperatureConstraint {
	return TemperatureConstraint{Kind: TemperatureFixed, Fixed: value, Default: value}
}

// DiscreteConstraint returns a discrete-set constraint. The first value is the default.
func DiscreteConstraint(allowed ...float64) TemperatureConstraint {
	c := TemperatureConstraint{Kind: TemperatureDiscrete, Allowed: allowed}
	if len(allowed) > 0 {
		c.Default = allowed[0]
	}
	return c
}

// Validate reports whether t is acceptable under the constraint.
func (c TemperatureConstraint) Validate(t float64) bool {
	switch c.Kind {
	case TemperatureFixed:
		return t == c.Fixed
	case TemperatureDiscrete:
		for _, v := range c.Allowed {
			if t == v {
				return true
			}
		}
		return false
	case TemperatureRange:
		return t >= c.Min && t <= c.Max
	default:
		return true
	}
}

// Clamp coerces t to the nearest acceptable value.
func (c TemperatureConstraint) Clamp(t float64) float64 {
	switch c.Kind {
	case TemperatureFixed:
		return c.Fixed
	case TemperatureDiscrete:
		if len(c.Allowed) == 0 {
			return c.Default
		}
		best := c.Allowed[0]
		for _, v := range c.Allowed[1:] {
			if abs(v-t) < abs(best-t) {
				best = v
			}
		}
		return best
	case TemperatureRange:
		if t < c.Min {
			return c.Min
		}
		if t > c.Max {
			return c.Max
		}
		return t
	default:
		return t
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Capability describes a single model: its identity, limits and features.
// Instances are immutable after registration.
type Capability struct {
	// Name is the canonical model identifier used in API calls.
	Name string `json:"name"`

	// FriendlyName is a human-readable display name.
	FriendlyName string `json:"friendly_name,omitempty"`

	// Provider is the tag of the driver family that owns this model.
	Provider string `json:"provider"`

	// ContextWindow is the total context size in tokens.
	ContextWindow int `json:"context_window"`

	// MaxOutputTokens limits a single response.
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`

	// SupportsThinking indicates extended-thinking support.
	SupportsThinking bool `json:"supports_thinking,omitempty"`

	// SupportsVision indicates image input support.
	SupportsVision bool `json:"supports_vision,omitempty"`

	// MaxImageBytes caps a single attached image. Zero means no images.
	MaxImageBytes int64 `json:"max_image_bytes,omitempty"`

	// Temperature constrains the temperature parameter.
	Temperature TemperatureConstraint `json:"temperature"`

	// Aliases are alternative names resolving to this model (case-insensitive).
	Aliases []string `json:"aliases,omitempty"`

	// Category is the capability class used by auto-mode selection.
	Category Category `json:"category"`

	// Description is a brief free-form description.
	Description string `json:"description,omitempty"`
}

// Errors returned by catalog operations.
var (
	ErrModelNotFound  = errors.New("model not found in catalog")
	ErrDuplicateModel = errors.New("duplicate canonical model name")
	ErrAliasCollision = errors.New("alias already registered for provider")
	ErrAliasChain     = errors.New("alias resolves to another alias")
)

// Catalog is the model capability registry. It is populated at startup and
// read-only afterwards, so lookups take no lock.
type Catalog struct {
	byName  map[string]*Capability // lowercase canonical -> capability
	byAlias map[string]string      // lowercase alias -> canonical
	order   []string               // canonical names in declaration order
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		byName:  map[string]*Capability{},
		byAlias: map[string]string{},
	}
}

// Register adds a capability to the catalog. Canonical names must be globally
// unique; aliases must be disjoint within a provider and must not resolve to
// another alias. When providers share an alias the global index keeps the
// first registration, so provider-less resolution follows declaration order,
// the same order routing priority uses.
func (c *Catalog) Register(cap *Capability) error {
	if cap == nil || cap.Name == "" {
		return errors.New("capability requires a canonical name")
	}
	key := strings.ToLower(cap.Name)
	if _, ok := c.byName[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, cap.Name)
	}
	for _, alias := range cap.Aliases {
		ak := strings.ToLower(alias)
		if _, ok := c.byName[ak]; ok {
			return fmt.Errorf("%w: alias %q shadows a canonical name", ErrAliasChain, alias)
		}
		if existing, ok := c.byAlias[ak]; ok {
			if owner := c.byName[strings.ToLower(existing)]; owner != nil && owner.Provider == cap.Provider {
				return fmt.Errorf("%w: %q already maps to %s", ErrAliasCollision, alias, existing)
			}
		}
	}
	c.byName[key] = cap
	c.order = append(c.order, cap.Name)
	for _, alias := range cap.Aliases {
		ak := strings.ToLower(alias)
		if _, ok := c.byAlias[ak]; !ok {
			c.byAlias[ak] = cap.Name
		}
	}
	return nil
}

// Resolve maps any accepted spelling of a model name to its canonical name.
// Resolution order: canonical match, alias match, then unique prefix of a
// canonical name. All comparisons are case-insensitive.
func (c *Catalog) Resolve(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	if cap, ok := c.byName[key]; ok {
		return cap.Name, true
	}
	if canonical, ok := c.byAlias[key]; ok {
		return canonical, true
	}
	var match string
	for lower, cap := range c.byName {
		if strings.HasPrefix(lower, key) {
			if match != "" {
				return "", false // ambiguous
			}
			match = cap.Name
		}
	}
	if match != "" {
		return match, true
	}
	return "", false
}

// Get returns the capability for a canonical name.
func (c *Catalog) Get(canonical string) (*Capability, bool) {
	cap, ok := c.byName[strings.ToLower(canonical)]
	return cap, ok
}

// List returns all capabilities in declaration order.
func (c *Catalog) List() []*Capability {
	out := make([]*Capability, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[strings.ToLower(name)])
	}
	return out
}

// ModelsForCategory returns canonical names in deterministic order: names from
// the override list first (those that resolve and match the category), then
// remaining catalogue entries in declaration order.
func (c *Catalog) ModelsForCategory(cat Category, override []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range override {
		canonical, ok := c.Resolve(name)
		if !ok {
			continue
		}
		cap, _ := c.Get(canonical)
		if cap.Category != cat || seen[canonical] {
			continue
		}
		out = append(out, canonical)
		seen[canonical] = true
	}
	for _, name := range c.order {
		cap := c.byName[strings.ToLower(name)]
		if cap.Category != cat || seen[cap.Name] {
			continue
		}
		out = append(out, cap.Name)
		seen[cap.Name] = true
	}
	return out
}

// ProviderModels returns the capabilities owned by a provider tag, in
// declaration order.
func (c *Catalog) ProviderModels(provider string) []*Capability {
	var out []*Capability
	for _, name := range c.order {
		cap := c.byName[strings.ToLower(name)]
		if cap.Provider == provider {
			out = append(out, cap)
		}
	}
	return out
}
