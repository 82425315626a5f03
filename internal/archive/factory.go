// Package archive implements the build pipeline: instantiate operation
// models from raw records, resolve parent/child links against the type
// table, derive visualization artifacts, and assemble the final archive.
package archive

import (
	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/registry"
)

// Factory instantiates operation models from raw records. It only
// validates that the record's type is registered; linking and derivation
// happen later in the pipeline.
type Factory struct {
	reg *registry.Registry
}

func NewFactory(reg *registry.Registry) *Factory {
	return &Factory{reg: reg}
}

// Create builds one unlinked operation from a raw record. Returns an
// error wrapping model.ErrUnknownType for unregistered types.
func (f *Factory) Create(rec model.Record) (*model.Operation, error) {
	if _, err := f.reg.Lookup(rec.Type); err != nil {
		return nil, err
	}
	return model.NewOperation(rec), nil
}
