// Package registry holds the type table for a traced system: the set of
// valid operation types, their permitted parent types, and the rule sets
// applied during linking and derivation. Registration happens once at
// startup; after Freeze the table is immutable and safe for concurrent
// readers.
package registry

import (
	"fmt"

	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/rules"
)

// RuleSet is everything registered for one operation type.
type RuleSet struct {
	// Parents lists permitted parent types. Empty marks the root type.
	Parents []string
	Linking []rules.LinkingRule
	Visual  []rules.VisualizationRule
}

// Registry is the type table. Single-writer-then-freeze: Register until
// Freeze, then only Lookup. It carries no locks; the freeze discipline is
// the synchronization contract.
type Registry struct {
	types  map[string]RuleSet
	order  []string
	root   string
	frozen bool
}

func New() *Registry {
	return &Registry{types: make(map[string]RuleSet)}
}

// Register adds one operation type with its permitted parents and rules.
// A type without parents is the root; there must be exactly one.
func (r *Registry) Register(typ string, set RuleSet) error {
	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register %q", typ)
	}
	if typ == "" {
		return fmt.Errorf("operation type must not be empty")
	}
	if _, dup := r.types[typ]; dup {
		return fmt.Errorf("operation type %q registered twice", typ)
	}

	r.types[typ] = set
	r.order = append(r.order, typ)
	return nil
}

// Freeze validates the table and makes it immutable. It checks that every
// declared parent type exists, that every linking rule targets a permitted
// parent, and that exactly one root type (no parents) is present.
func (r *Registry) Freeze() error {
	if r.frozen {
		return nil
	}

	var roots []string
	for _, typ := range r.order {
		set := r.types[typ]

		if len(set.Parents) == 0 {
			roots = append(roots, typ)
		}
		for _, parent := range set.Parents {
			if _, ok := r.types[parent]; !ok {
				return fmt.Errorf("type %q declares unregistered parent %q", typ, parent)
			}
		}
		for _, rule := range set.Linking {
			if !contains(set.Parents, rule.ParentType()) {
				return fmt.Errorf("type %q has a linking rule targeting %q, which is not a permitted parent",
					typ, rule.ParentType())
			}
		}
	}

	if len(roots) != 1 {
		return fmt.Errorf("expected exactly one root type, found %d: %v", len(roots), roots)
	}

	r.root = roots[0]
	r.frozen = true
	return nil
}

// Lookup returns the rule set for a type. Callers must Freeze first.
func (r *Registry) Lookup(typ string) (RuleSet, error) {
	set, ok := r.types[typ]
	if !ok {
		return RuleSet{}, fmt.Errorf("%w: %q", model.ErrUnknownType, typ)
	}
	return set, nil
}

// RootType returns the designated root type. Empty before Freeze.
func (r *Registry) RootType() string {
	return r.root
}

// Types returns all registered type names in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
