package llm

import (
	"fmt"
	"strings"
)

// Registry holds the configured providers by canonical name, in
// registration order, plus the name of the default provider.
// A Registry is read-only after construction and safe for concurrent use.
type Registry struct {
	order     []string
	providers map[string]Provider
	def       string
}

// NewRegistry creates a registry from providers. The first provider is the
// default unless SetDefault changes it. Duplicate names keep the first.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		name := p.Name()
		if _, exists := r.providers[name]; exists {
			continue
		}
		r.providers[name] = p
		r.order = append(r.order, name)
	}
	if len(r.order) > 0 {
		r.def = r.order[0]
	}
	return r
}

// SetDefault selects the default provider. Aliases ("claude", "google") are accepted.
func (r *Registry) SetDefault(name string) error {
	canonical, ok := r.canonical(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	r.def = canonical
	return nil
}

// Get returns the provider registered under name or one of its aliases.
func (r *Registry) Get(name string) (Provider, bool) {
	canonical, ok := r.canonical(name)
	if !ok {
		return nil, false
	}
	return r.providers[canonical], true
}

// Resolve returns the named provider, or the default when name is empty or unknown.
// Returns nil only for an empty registry.
func (r *Registry) Resolve(name string) Provider {
	if p, ok := r.Get(name); ok {
		return p
	}
	return r.Default()
}

// Default returns the default provider, or nil if the registry is empty.
func (r *Registry) Default() Provider {
	if r.def == "" {
		return nil
	}
	return r.providers[r.def]
}

// DefaultName returns the default provider's name.
func (r *Registry) DefaultName() string {
	return r.def
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Providers returns providers in registration order.
func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.order)
}

// Chain returns the named providers in order, skipping unknown and duplicate
// names. The default provider is appended when it is not already present.
func (r *Registry) Chain(names ...string) []Provider {
	all := make([]string, 0, len(names)+1)
	all = append(all, names...)
	all = append(all, r.def)

	seen := make(map[string]bool, len(all))
	var out []Provider
	for _, name := range all {
		canonical, ok := r.canonical(name)
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, r.providers[canonical])
	}
	return out
}

func (r *Registry) canonical(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	if _, ok := r.providers[name]; ok {
		return name, true
	}
	pt, err := ParseProviderType(name)
	if err != nil {
		return "", false
	}
	if _, ok := r.providers[pt.String()]; ok {
		return pt.String(), true
	}
	return "", false
}
