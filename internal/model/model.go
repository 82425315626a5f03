// Package model defines the data types shared by the archive pipeline:
// raw trace records, operation models, derived artifacts, and the build
// error taxonomy. It has no dependencies on the engines that mutate it.
package model

import "fmt"

// Record is one raw trace record as produced by an ingestion source.
// Metrics values are scalars: string, bool, int64, or float64.
type Record struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Metrics map[string]any `json:"metrics"`
}

// Field is one name/value pair inside an artifact. Order matters: a
// visualization rule declares the projection order and the archive
// preserves it.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Artifact is an ordered list of fields derived by one visualization rule.
type Artifact []Field

// Operation is one record instantiated into the archive. Its parent is a
// non-owning back-reference; children are owned in discovery order.
type Operation struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Metrics  map[string]any `json:"metrics,omitempty"`
	Children []*Operation   `json:"children,omitempty"`

	// Artifacts is populated by derivation, keyed by artifact name.
	Artifacts map[string]Artifact `json:"artifacts,omitempty"`

	parent *Operation
}

// NewOperation creates an unlinked operation from a raw record, copying
// the record's metrics verbatim.
func NewOperation(rec Record) *Operation {
	metrics := make(map[string]any, len(rec.Metrics))
	for k, v := range rec.Metrics {
		metrics[k] = v
	}
	return &Operation{
		Type:      rec.Type,
		ID:        rec.ID,
		Metrics:   metrics,
		Artifacts: make(map[string]Artifact),
	}
}

// Parent returns the operation's parent, or nil if it is unlinked.
func (op *Operation) Parent() *Operation {
	return op.parent
}

// SetParent attaches op under parent. Parentage is write-once; a second
// call with a different parent is a programming error in the linker and
// is reported rather than silently re-parenting.
func (op *Operation) SetParent(parent *Operation) error {
	if op.parent != nil {
		return fmt.Errorf("operation %s already has parent %s", op.ID, op.parent.ID)
	}
	op.parent = parent
	parent.Children = append(parent.Children, op)
	return nil
}

// Metric returns the named metric value and whether it is present.
func (op *Operation) Metric(name string) (any, bool) {
	v, ok := op.Metrics[name]
	return v, ok
}

// Walk visits op and all its descendants in post-order: children before
// their parent. Derivation relies on this so aggregation rules see
// finalized children.
func (op *Operation) Walk(visit func(*Operation)) {
	for _, child := range op.Children {
		child.Walk(visit)
	}
	visit(op)
}

// Descendants returns the number of operations below op in the tree.
func (op *Operation) Descendants() int {
	n := 0
	for _, child := range op.Children {
		n += 1 + child.Descendants()
	}
	return n
}

// Archive is the build output: the linked tree plus every non-fatal error
// accumulated along the way, in the order it was encountered. Unlinked
// operations failed linking but are retained rather than dropped.
type Archive struct {
	Root     *Operation
	Unlinked []*Operation
	Errors   []BuildError
}
