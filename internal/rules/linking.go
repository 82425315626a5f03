// Package rules implements the declarative rule set attached to operation
// types at registration time: linking rules resolve parent/child
// relationships, visualization rules derive named display artifacts.
// It is a closed set of concrete strategies behind two small interfaces.
package rules

import "github.com/tobert/tracearc/internal/model"

// LinkingRule selects a parent for a child operation out of a candidate
// pool. TryLink returns one of:
//   - (parent, nil): the rule resolved a unique parent
//   - (nil, err): the rule has a verdict but it is a violation
//   - (nil, nil): the rule abstains; the next declared rule is consulted
//
// Rules are applied in declaration order, so a disambiguating rule placed
// before a uniqueness rule takes precedence.
type LinkingRule interface {
	// ParentType names the type this rule searches for.
	ParentType() string
	TryLink(child *model.Operation, pool []*model.Operation) (*model.Operation, *model.BuildError)
}

// UniqueParentLinking requires exactly one candidate of the parent type to
// exist in scope. Zero candidates is a missing parent; more than one is
// ambiguous and attaches nothing.
type UniqueParentLinking struct {
	Parent string
}

func (r UniqueParentLinking) ParentType() string { return r.Parent }

func (r UniqueParentLinking) TryLink(child *model.Operation, pool []*model.Operation) (*model.Operation, *model.BuildError) {
	candidates := ofType(pool, r.Parent)

	switch len(candidates) {
	case 0:
		return nil, &model.BuildError{
			Kind:         model.KindMissingParent,
			NodeID:       child.ID,
			ExpectedType: r.Parent,
		}
	case 1:
		return candidates[0], nil
	default:
		return nil, &model.BuildError{
			Kind:         model.KindAmbiguousParent,
			NodeID:       child.ID,
			ExpectedType: r.Parent,
			CandidateIDs: ids(candidates),
		}
	}
}

// KeyedParentLinking disambiguates by a foreign-key metric: a candidate
// matches when its ParentKey metric equals the child's ChildKey metric.
// ParentKey defaults to ChildKey, covering tables where both sides carry
// the same key name (Spark's stage_id) as well as asymmetric pairs like
// parent_span_id/span_id. The rule abstains when the child has no key
// metric or nothing matches, so a later UniqueParentLinking can still
// decide.
type KeyedParentLinking struct {
	Parent    string
	ChildKey  string
	ParentKey string
}

func (r KeyedParentLinking) ParentType() string { return r.Parent }

func (r KeyedParentLinking) parentKey() string {
	if r.ParentKey == "" {
		return r.ChildKey
	}
	return r.ParentKey
}

func (r KeyedParentLinking) TryLink(child *model.Operation, pool []*model.Operation) (*model.Operation, *model.BuildError) {
	key, ok := child.Metric(r.ChildKey)
	if !ok {
		return nil, nil
	}

	var matched []*model.Operation
	for _, candidate := range ofType(pool, r.Parent) {
		if v, ok := candidate.Metric(r.parentKey()); ok && metricEqual(v, key) {
			matched = append(matched, candidate)
		}
	}

	switch len(matched) {
	case 0:
		return nil, nil
	case 1:
		return matched[0], nil
	default:
		return nil, &model.BuildError{
			Kind:         model.KindAmbiguousParent,
			NodeID:       child.ID,
			ExpectedType: r.Parent,
			CandidateIDs: ids(matched),
		}
	}
}

func ofType(pool []*model.Operation, typ string) []*model.Operation {
	var out []*model.Operation
	for _, op := range pool {
		if op.Type == typ {
			out = append(out, op)
		}
	}
	return out
}

func ids(ops []*model.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.ID
	}
	return out
}

// metricEqual compares two metric values, treating all numeric types as
// equivalent so a JSON-decoded float64 matches an int64 from OTLP. Only
// scalars can match: non-scalar values (arrays, objects smuggled in via
// JSONL) never equal anything rather than panicking under ==.
func metricEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
