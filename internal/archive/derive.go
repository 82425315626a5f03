package archive

import (
	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/registry"
)

// Deriver walks a linked tree and applies each node's visualization rules.
// Traversal is post-order so aggregation rules see fully derived children.
// Artifacts are never recomputed once set, which makes derivation
// idempotent as long as metrics are unchanged.
type Deriver struct {
	reg *registry.Registry
}

func NewDeriver(reg *registry.Registry) *Deriver {
	return &Deriver{reg: reg}
}

// Derive populates artifact mappings for root and every descendant,
// returning missing-metric errors in traversal order.
func (d *Deriver) Derive(root *model.Operation) []model.BuildError {
	var errs []model.BuildError

	root.Walk(func(op *model.Operation) {
		set, err := d.reg.Lookup(op.Type)
		if err != nil {
			return
		}

		for _, rule := range set.Visual {
			name := rule.ArtifactName()
			if _, done := op.Artifacts[name]; done {
				continue
			}
			artifact, ruleErrs := rule.Derive(op)
			op.Artifacts[name] = artifact
			errs = append(errs, ruleErrs...)
		}
	})

	return errs
}
