// Package registry manages named rule factories.
//
// Rule implementations are external collaborators of the engine; the
// registry is how an embedding program exposes them to declarative
// configuration. Each rule kind registers a factory that parses its own
// raw JSON configuration and returns a ready rule, and operators then
// describe whole rule sets as ordered lists of kind/config pairs.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/rule"
)

// Factory creates a rule instance from raw JSON configuration. The factory
// parses and validates its own config; a factory for a parameterless rule
// kind may ignore the argument entirely.
type Factory func(rawConfig json.RawMessage) (rule.Rule, error)

// Registration holds factory and metadata for a rule kind
type Registration struct {
	Name        string  `json:"name"`        // Rule kind (e.g. "allow-all")
	Description string  `json:"description"` // Human-readable description
	Version     string  `json:"version"`     // Rule kind version
	Factory     Factory `json:"-"`           // Factory function (not serializable)
}

// Spec describes one rule in a declarative rule set.
type Spec struct {
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Registry provides thread-safe registration and lookup of rule factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]*Registration
}

// NewRegistry creates a new empty rule registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
	}
}

// RegisterFactory registers a rule kind. Registering the same kind twice
// is rejected: a silent overwrite would change the meaning of existing
// declarative rule sets.
func (r *Registry) RegisterFactory(registration *Registration) error {
	if registration == nil || registration.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Registry", "RegisterFactory", "registration validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"Registry", "RegisterFactory", "factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[registration.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("kind %q: %w", registration.Name, errors.ErrDuplicateRuleKind),
			"Registry", "RegisterFactory", "duplicate registration")
	}

	r.factories[registration.Name] = registration
	return nil
}

// Build creates a rule of the given kind from raw configuration.
func (r *Registry) Build(kind string, rawConfig json.RawMessage) (rule.Rule, error) {
	r.mu.RLock()
	registration, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("kind %q: %w", kind, errors.ErrUnknownRuleKind),
			"Registry", "Build", "factory lookup")
	}

	built, err := registration.Factory(rawConfig)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "Build",
			fmt.Sprintf("construct rule kind %q", kind))
	}
	return built, nil
}

// BuildSet creates an ordered rule sequence from specs. Order is preserved
// because it is significant for cost and short-circuit behavior. A single
// unknown kind or failing factory aborts the whole build; a rule set is
// never partially constructed.
func (r *Registry) BuildSet(specs []Spec) ([]rule.Rule, error) {
	rules := make([]rule.Rule, 0, len(specs))
	for i, spec := range specs {
		built, err := r.Build(spec.Kind, spec.Config)
		if err != nil {
			return nil, errors.Wrap(err, "Registry", "BuildSet",
				fmt.Sprintf("spec %d", i))
		}
		rules = append(rules, built)
	}
	return rules, nil
}

// List returns metadata for all registered kinds, sorted by name.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.factories))
	for _, registration := range r.factories {
		out = append(out, *registration)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	list := r.List()
	kinds := make([]string, len(list))
	for i, registration := range list {
		kinds[i] = registration.Name
	}
	return kinds
}
