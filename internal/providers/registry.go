package providers

import (
	"errors"
	"fmt"

	"github.com/haasonsaas/zen/internal/catalog"
)

// Routing errors.
var (
	// ErrNoProviderForModel means no registered driver owns the model and no
	// aggregator is configured to catch it.
	ErrNoProviderForModel = errors.New("no provider for model")

	// ErrNoModelInCategory means auto selection found no usable model.
	ErrNoModelInCategory = errors.New("no available model in category")
)

// RestrictedError reports a model that resolved but is disallowed by the
// provider's allow-list.
type RestrictedError struct {
	Model    string
	Provider string
}

func (e *RestrictedError) Error() string {
	return fmt.Sprintf("model %s is restricted for provider %s", e.Model, e.Provider)
}

// Registry holds driver instances in a fixed priority order:
//
//  1. native vendor drivers, in registration order
//  2. the custom/local endpoint driver
//  3. the aggregator gateway driver (catch-all)
//
// It is built once at startup and read-only afterwards.
type Registry struct {
	natives    []Driver
	custom     Driver
	aggregator Driver

	catalog      *catalog.Catalog
	restrictions catalog.Restrictions
	categoryPref map[catalog.Category][]string
}

// NewRegistry creates a registry over the full catalogue with the given
// restrictions.
func NewRegistry(full *catalog.Catalog, restrictions catalog.Restrictions) *Registry {
	return &Registry{
		catalog:      full,
		restrictions: restrictions,
		categoryPref: map[catalog.Category][]string{},
	}
}

// RegisterNative appends a native vendor driver to the priority order.
func (r *Registry) RegisterNative(d Driver) { r.natives = append(r.natives, d) }

// RegisterCustom sets the custom/local endpoint driver.
func (r *Registry) RegisterCustom(d Driver) { r.custom = d }

// RegisterAggregator sets the catch-all aggregator driver.
func (r *Registry) RegisterAggregator(d Driver) { r.aggregator = d }

// SetCategoryPreference installs an explicit ordering override for a
// category, consulted before catalogue declaration order.
func (r *Registry) SetCategoryPreference(cat catalog.Category, models []string) {
	r.categoryPref[cat] = models
}

// HasDrivers reports whether at least one driver is registered.
func (r *Registry) HasDrivers() bool {
	return len(r.natives) > 0 || r.custom != nil || r.aggregator != nil
}

// ordered returns all drivers in priority order.
func (r *Registry) ordered() []Driver {
	out := make([]Driver, 0, len(r.natives)+2)
	out = append(out, r.natives...)
	if r.custom != nil {
		out = append(out, r.custom)
	}
	if r.aggregator != nil {
		out = append(out, r.aggregator)
	}
	return out
}

// PickDriver walks the priority order and returns the first driver that owns
// the model, together with the canonical name. A model that resolves but is
// disallowed by restrictions yields a *RestrictedError.
func (r *Registry) PickDriver(model string) (Driver, string, error) {
	for _, d := range r.ordered() {
		if !d.SupportsModel(model) {
			continue
		}
		cap, ok := d.Capabilities(model)
		if !ok {
			continue
		}
		if !r.restrictions.Allows(d.Tag(), cap.Name) {
			return nil, "", &RestrictedError{Model: cap.Name, Provider: d.Tag()}
		}
		return d, cap.Name, nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNoProviderForModel, model)
}

// PickModelForCategory returns the first usable model for a category:
// explicit preference order first, then catalogue declaration order, skipping
// models whose driver is absent or whose name is restricted.
func (r *Registry) PickModelForCategory(cat catalog.Category) (string, Driver, error) {
	for _, name := range r.catalog.ModelsForCategory(cat, r.categoryPref[cat]) {
		d, canonical, err := r.PickDriver(name)
		if err != nil {
			continue
		}
		return canonical, d, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNoModelInCategory, cat)
}

// Available describes a model exposed by a registered driver, for the
// listmodels surface.
type Available struct {
	Capability *catalog.Capability
	Provider   string
}

// ListAvailable returns every catalogue model whose driver is registered and
// whose name passes restrictions, in declaration order.
func (r *Registry) ListAvailable() []Available {
	var out []Available
	for _, cap := range r.catalog.List() {
		for _, d := range r.ordered() {
			if d.Tag() != cap.Provider {
				continue
			}
			if r.restrictions.Allows(d.Tag(), cap.Name) {
				out = append(out, Available{Capability: cap, Provider: d.Tag()})
			}
			break
		}
	}
	return out
}

// Tags returns the tags of all registered drivers in priority order.
func (r *Registry) Tags() []string {
	var out []string
	for _, d := range r.ordered() {
		out = append(out, d.Tag())
	}
	return out
}
