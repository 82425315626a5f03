package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType is returned by registry lookups for unregistered types.
var ErrUnknownType = errors.New("unknown operation type")

// ErrorKind classifies a build error.
type ErrorKind string

const (
	// KindUnknownType: a raw record declared a type that was never
	// registered. The record is skipped, the build continues.
	KindUnknownType ErrorKind = "unknown_type"

	// KindMissingParent: no candidate of the expected parent type existed
	// for a child. The child stays unlinked.
	KindMissingParent ErrorKind = "missing_parent"

	// KindAmbiguousParent: more than one equally valid parent candidate
	// existed. No parent is attached, preserving determinism.
	KindAmbiguousParent ErrorKind = "ambiguous_parent"

	// KindNoRoot: zero or more than one model of the root type. The only
	// fatal condition; no archive tree is produced.
	KindNoRoot ErrorKind = "no_root"

	// KindMissingMetric: a visualization rule referenced a metric absent
	// from the node. The single field is omitted from the artifact.
	KindMissingMetric ErrorKind = "missing_metric"
)

// BuildError is one entry in an archive's error list. Only the fields
// relevant to its kind are set.
type BuildError struct {
	Kind         ErrorKind
	NodeID       string
	ExpectedType string
	CandidateIDs []string
	Metric       string
}

func (e *BuildError) Error() string {
	switch e.Kind {
	case KindUnknownType:
		return fmt.Sprintf("record %s: unknown type %q", e.NodeID, e.ExpectedType)
	case KindMissingParent:
		return fmt.Sprintf("operation %s: no parent of type %q found", e.NodeID, e.ExpectedType)
	case KindAmbiguousParent:
		return fmt.Sprintf("operation %s: ambiguous parent of type %q, candidates [%s]",
			e.NodeID, e.ExpectedType, strings.Join(e.CandidateIDs, ", "))
	case KindNoRoot:
		if len(e.CandidateIDs) == 0 {
			return fmt.Sprintf("no operation of root type %q in trace", e.ExpectedType)
		}
		return fmt.Sprintf("%d operations of root type %q in trace: [%s]",
			len(e.CandidateIDs), e.ExpectedType, strings.Join(e.CandidateIDs, ", "))
	case KindMissingMetric:
		return fmt.Sprintf("operation %s: metric %q not present", e.NodeID, e.Metric)
	}
	return fmt.Sprintf("build error %s on %s", e.Kind, e.NodeID)
}
