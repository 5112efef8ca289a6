package catalog

import (
	"errors"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := New()
	caps := []*Capability{
		{
			Name:        "vendor-large-1",
			Provider:    "vendor",
			Aliases:     []string{"large", "big"},
			Category:    CategoryReasoning,
			Temperature: RangeConstraint(0, 1, 0.5),
		},
		{
			Name:        "vendor-small-1",
			Provider:    "vendor",
			Aliases:     []string{"small"},
			Category:    CategoryFast,
			Temperature: RangeConstraint(0, 2, 0.7),
		},
		{
			Name:        "other-mid-1",
			Provider:    "other",
			Category:    CategoryBalanced,
			Temperature: FixedConstraint(1),
		},
	}
	for _, cap := range caps {
		if err := c.Register(cap); err != nil {
			t.Fatalf("Register(%s): %v", cap.Name, err)
		}
	}
	return c
}

func TestResolve(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"canonical", "vendor-large-1", "vendor-large-1", true},
		{"canonical case-insensitive", "Vendor-Large-1", "vendor-large-1", true},
		{"alias", "large", "vendor-large-1", true},
		{"alias case-insensitive", "LARGE", "vendor-large-1", true},
		{"second alias", "big", "vendor-large-1", true},
		{"unique prefix", "other-", "other-mid-1", true},
		{"ambiguous prefix", "vendor-", "", false},
		{"unknown", "nope", "", false},
		{"empty", "", "", false},
		{"whitespace", "  large  ", "vendor-large-1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Resolve(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolveRoundTrip(t *testing.T) {
	// Resolving a canonical name always returns itself.
	c := testCatalog(t)
	for _, cap := range c.List() {
		got, ok := c.Resolve(cap.Name)
		if !ok || got != cap.Name {
			t.Errorf("Resolve(%q) = (%q, %v), want identity", cap.Name, got, ok)
		}
	}
}

func TestRegisterDuplicateCanonical(t *testing.T) {
	c := testCatalog(t)
	err := c.Register(&Capability{Name: "Vendor-Large-1", Provider: "vendor"})
	if !errors.Is(err, ErrDuplicateModel) {
		t.Errorf("expected ErrDuplicateModel, got %v", err)
	}
}

func TestRegisterAliasCollisionSameProvider(t *testing.T) {
	c := testCatalog(t)
	err := c.Register(&Capability{
		Name:     "vendor-other",
		Provider: "vendor",
		Aliases:  []string{"large"},
	})
	if !errors.Is(err, ErrAliasCollision) {
		t.Errorf("expected ErrAliasCollision, got %v", err)
	}
}

func TestRegisterAliasAcrossProviders(t *testing.T) {
	// The same alias may exist under a different provider; routing priority
	// disambiguates. The global index keeps the first registration, so a
	// later provider never steals an established alias.
	c := testCatalog(t)
	err := c.Register(&Capability{
		Name:     "third-model",
		Provider: "third",
		Aliases:  []string{"large", "third"},
	})
	if err != nil {
		t.Errorf("cross-provider alias should register, got %v", err)
	}
	if got, ok := c.Resolve("large"); !ok || got != "vendor-large-1" {
		t.Errorf("Resolve(large) = (%q, %v), want first registration vendor-large-1", got, ok)
	}
	if got, ok := c.Resolve("third"); !ok || got != "third-model" {
		t.Errorf("Resolve(third) = (%q, %v), want third-model", got, ok)
	}
}

func TestRegisterAliasShadowingCanonical(t *testing.T) {
	c := testCatalog(t)
	err := c.Register(&Capability{
		Name:     "new-model",
		Provider: "vendor",
		Aliases:  []string{"vendor-small-1"},
	})
	if !errors.Is(err, ErrAliasChain) {
		t.Errorf("expected ErrAliasChain, got %v", err)
	}
}

func TestModelsForCategory(t *testing.T) {
	c := testCatalog(t)

	got := c.ModelsForCategory(CategoryReasoning, nil)
	if len(got) != 1 || got[0] != "vendor-large-1" {
		t.Errorf("reasoning models = %v", got)
	}

	// An override resolving to a matching model moves it to the front and is
	// not duplicated by the declaration-order pass.
	got = c.ModelsForCategory(CategoryFast, []string{"small", "vendor-small-1"})
	if len(got) != 1 || got[0] != "vendor-small-1" {
		t.Errorf("fast models with override = %v", got)
	}

	// Overrides of the wrong category are ignored.
	got = c.ModelsForCategory(CategoryBalanced, []string{"large"})
	if len(got) != 1 || got[0] != "other-mid-1" {
		t.Errorf("balanced models = %v", got)
	}
}

func TestTemperatureConstraints(t *testing.T) {
	tests := []struct {
		name      string
		c         TemperatureConstraint
		in        float64
		valid     bool
		clamped   float64
	}{
		{"range inside", RangeConstraint(0, 1, 0.5), 0.3, true, 0.3},
		{"range at min", RangeConstraint(0, 1, 0.5), 0, true, 0},
		{"range at max", RangeConstraint(0, 1, 0.5), 1, true, 1},
		{"range below", RangeConstraint(0, 1, 0.5), -0.1, false, 0},
		{"range above", RangeConstraint(0, 1, 0.5), 1.5, false, 1},
		{"fixed match", FixedConstraint(1), 1, true, 1},
		{"fixed mismatch", FixedConstraint(1), 0.2, false, 1},
		{"discrete match", DiscreteConstraint(0, 0.5, 1), 0.5, true, 0.5},
		{"discrete nearest", DiscreteConstraint(0, 0.5, 1), 0.6, false, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Validate(tt.in); got != tt.valid {
				t.Errorf("Validate(%v) = %v, want %v", tt.in, got, tt.valid)
			}
			if got := tt.c.Clamp(tt.in); got != tt.clamped {
				t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.clamped)
			}
		})
	}
}

func TestBuiltinRegisters(t *testing.T) {
	c := NewBuiltin()
	if len(c.List()) == 0 {
		t.Fatal("builtin catalog is empty")
	}
	// Well-known aliases resolve.
	for alias, provider := range map[string]string{
		"sonnet": ProviderAnthropic,
		"mini":   ProviderOpenAI,
		"flash":  ProviderGemini,
	} {
		canonical, ok := c.Resolve(alias)
		if !ok {
			t.Errorf("alias %q does not resolve", alias)
			continue
		}
		cap, _ := c.Get(canonical)
		if cap.Provider != provider {
			t.Errorf("alias %q resolved to provider %s, want %s", alias, cap.Provider, provider)
		}
	}
}

func TestRestrictions(t *testing.T) {
	c := testCatalog(t)
	r, unresolved := ParseRestrictions(c, map[string]string{
		"vendor": "large, unknown-model",
		"other":  "",
	})
	if len(unresolved) != 1 || unresolved[0] != "vendor:unknown-model" {
		t.Errorf("unresolved = %v", unresolved)
	}
	if !r.Allows("vendor", "vendor-large-1") {
		t.Error("allow-listed model rejected")
	}
	if r.Allows("vendor", "vendor-small-1") {
		t.Error("non-listed model allowed")
	}
	// Absent or empty providers are unrestricted.
	if !r.Allows("other", "other-mid-1") {
		t.Error("empty allow-list should be unrestricted")
	}
	if !r.Allows("third", "anything") {
		t.Error("absent provider should be unrestricted")
	}
}
