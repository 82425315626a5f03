package archive

import (
	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/registry"
)

// Linker resolves parent/child relationships among instantiated models by
// applying each type's linking rules in declaration order. Input order is
// the tie-break source: given the same records in the same order, the
// engine produces the same tree and the same violations.
type Linker struct {
	reg *registry.Registry
}

func NewLinker(reg *registry.Registry) *Linker {
	return &Linker{reg: reg}
}

// Link attaches every linkable operation to its resolved parent. It
// returns the root (nil if root resolution failed), the operations that
// stayed unlinked, and all violations in encounter order. Unlinked
// operations are retained, never dropped.
func (l *Linker) Link(ops []*model.Operation) (*model.Operation, []*model.Operation, []model.BuildError) {
	var errs []model.BuildError
	var unlinked []*model.Operation

	for _, op := range ops {
		set, err := l.reg.Lookup(op.Type)
		if err != nil {
			// Factory rejects unknown types before linking; an op of an
			// unregistered type here cannot be linked anywhere.
			unlinked = append(unlinked, op)
			continue
		}
		if len(set.Linking) == 0 {
			// Root type, or a type with no declared relationships.
			continue
		}

		parent, verdict := l.resolve(op, set, ops)
		switch {
		case parent != nil:
			if err := op.SetParent(parent); err == nil {
				continue
			}
			// Parent already set: a rule resolved the same op twice.
			// Unreachable with the closed rule set, but keep the op.
			unlinked = append(unlinked, op)
		case verdict != nil:
			errs = append(errs, *verdict)
			unlinked = append(unlinked, op)
		default:
			// Every rule abstained (keyed rules with no match). Report
			// against the first declared rule's target type.
			errs = append(errs, model.BuildError{
				Kind:         model.KindMissingParent,
				NodeID:       op.ID,
				ExpectedType: set.Linking[0].ParentType(),
			})
			unlinked = append(unlinked, op)
		}
	}

	root, rootErr := l.resolveRoot(ops)
	if rootErr != nil {
		errs = append(errs, *rootErr)
	}

	return root, unlinked, errs
}

// resolve applies the type's linking rules in declaration order and stops
// at the first rule with a verdict, so disambiguation rules declared
// earlier take precedence over uniqueness rules declared later.
func (l *Linker) resolve(op *model.Operation, set registry.RuleSet, pool []*model.Operation) (*model.Operation, *model.BuildError) {
	for _, rule := range set.Linking {
		parent, verdict := rule.TryLink(op, pool)
		if parent != nil || verdict != nil {
			return parent, verdict
		}
	}
	return nil, nil
}

// resolveRoot finds the single operation of the designated root type.
func (l *Linker) resolveRoot(ops []*model.Operation) (*model.Operation, *model.BuildError) {
	rootType := l.reg.RootType()

	var candidates []*model.Operation
	for _, op := range ops {
		if op.Type == rootType {
			candidates = append(candidates, op)
		}
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}

	ids := make([]string, len(candidates))
	for i, op := range candidates {
		ids[i] = op.ID
	}
	return nil, &model.BuildError{
		Kind:         model.KindNoRoot,
		ExpectedType: rootType,
		CandidateIDs: ids,
	}
}
