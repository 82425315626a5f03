package rules

import (
	"fmt"

	"github.com/tobert/tracearc/internal/model"
)

// VisualizationRule derives one named artifact from an operation. Rules
// read only the operation's own metrics and its already-derived children,
// never its parent, so a post-order traversal is always safe.
type VisualizationRule interface {
	// ArtifactName is the key the derived artifact is stored under.
	ArtifactName() string
	Derive(op *model.Operation) (model.Artifact, []model.BuildError)
}

// MainInfoTable projects a declared, ordered list of metric names into a
// table artifact. Absent metrics are reported and omitted rather than
// failing the node.
type MainInfoTable struct {
	Name    string
	Metrics []string
}

func (r MainInfoTable) ArtifactName() string {
	if r.Name == "" {
		return "MainTable"
	}
	return r.Name
}

func (r MainInfoTable) Derive(op *model.Operation) (model.Artifact, []model.BuildError) {
	artifact := make(model.Artifact, 0, len(r.Metrics))
	var errs []model.BuildError

	for _, name := range r.Metrics {
		v, ok := op.Metric(name)
		if !ok {
			errs = append(errs, model.BuildError{
				Kind:   model.KindMissingMetric,
				NodeID: op.ID,
				Metric: name,
			})
			continue
		}
		artifact = append(artifact, model.Field{Name: name, Value: v})
	}

	return artifact, errs
}

// AggregateOp names a ChildAggregation reduction.
type AggregateOp string

const (
	AggregateSum   AggregateOp = "sum"
	AggregateAvg   AggregateOp = "avg"
	AggregateMax   AggregateOp = "max"
	AggregateCount AggregateOp = "count"
)

// ChildAggregation reduces a numeric metric across direct children into a
// single-field artifact, e.g. total task duration on a stage. Children
// lacking the metric (or holding a non-numeric value) are skipped.
type ChildAggregation struct {
	Name   string
	Metric string
	Op     AggregateOp
}

func (r ChildAggregation) ArtifactName() string {
	if r.Name == "" {
		return fmt.Sprintf("%s(%s)", r.Op, r.Metric)
	}
	return r.Name
}

func (r ChildAggregation) Derive(op *model.Operation) (model.Artifact, []model.BuildError) {
	var values []float64
	for _, child := range op.Children {
		if v, ok := child.Metric(r.Metric); ok {
			if f, ok := toFloat(v); ok {
				values = append(values, f)
			}
		}
	}

	var result float64
	switch r.Op {
	case AggregateCount:
		result = float64(len(values))
	case AggregateSum:
		for _, v := range values {
			result += v
		}
	case AggregateAvg:
		if len(values) > 0 {
			for _, v := range values {
				result += v
			}
			result /= float64(len(values))
		}
	case AggregateMax:
		// Seed from the first value so all-negative metrics don't max to 0.
		if len(values) > 0 {
			result = values[0]
			for _, v := range values[1:] {
				if v > result {
					result = v
				}
			}
		}
	}

	field := model.Field{
		Name:  fmt.Sprintf("%s(%s)", r.Op, r.Metric),
		Value: result,
	}
	return model.Artifact{field}, nil
}
