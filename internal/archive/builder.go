package archive

import (
	"errors"

	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/registry"
)

// Builder orchestrates one archive build: instantiate every record, link
// the models, derive artifacts, and assemble the result. It owns error
// accumulation: everything except a failed root resolution is non-fatal
// and lands in the archive's error list.
type Builder struct {
	factory *Factory
	linker  *Linker
	deriver *Deriver
}

func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{
		factory: NewFactory(reg),
		linker:  NewLinker(reg),
		deriver: NewDeriver(reg),
	}
}

// Build turns raw records into an archive. Records of unknown type are
// skipped with an accumulated error. A nil archive is returned only when
// root resolution fails; the returned error is then the *model.BuildError
// of kind no_root.
func (b *Builder) Build(records []model.Record) (*model.Archive, error) {
	var errs []model.BuildError

	ops := make([]*model.Operation, 0, len(records))
	for _, rec := range records {
		op, err := b.factory.Create(rec)
		if errors.Is(err, model.ErrUnknownType) {
			errs = append(errs, model.BuildError{
				Kind:         model.KindUnknownType,
				NodeID:       rec.ID,
				ExpectedType: rec.Type,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	root, unlinked, linkErrs := b.linker.Link(ops)
	errs = append(errs, linkErrs...)

	if root == nil {
		for i := range linkErrs {
			if linkErrs[i].Kind == model.KindNoRoot {
				return nil, &linkErrs[i]
			}
		}
		// Link reports the root verdict whenever it returns no root.
		return nil, &model.BuildError{Kind: model.KindNoRoot}
	}

	errs = append(errs, b.deriver.Derive(root)...)

	return &model.Archive{
		Root:     root,
		Unlinked: unlinked,
		Errors:   errs,
	}, nil
}
