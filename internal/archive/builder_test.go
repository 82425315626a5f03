package archive

import (
	"errors"
	"testing"

	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/registry"
	"github.com/tobert/tracearc/internal/rules"
)

// twoLevelRegistry registers Job -> Application with a MainTable rule on
// Job projecting duration.
func twoLevelRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	r := registry.New()
	if err := r.Register("Application", registry.RuleSet{}); err != nil {
		t.Fatal(err)
	}
	err := r.Register("Job", registry.RuleSet{
		Parents: []string{"Application"},
		Linking: []rules.LinkingRule{rules.UniqueParentLinking{Parent: "Application"}},
		Visual:  []rules.VisualizationRule{rules.MainInfoTable{Metrics: []string{"duration"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Freeze(); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestBuild_HappyPath(t *testing.T) {
	b := NewBuilder(twoLevelRegistry(t))

	arc, err := b.Build([]model.Record{
		{ID: "app1", Type: "Application", Metrics: map[string]any{}},
		{ID: "job1", Type: "Job", Metrics: map[string]any{"duration": int64(120)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(arc.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", arc.Errors)
	}
	if arc.Root == nil || arc.Root.ID != "app1" {
		t.Fatalf("expected root app1, got %v", arc.Root)
	}
	if arc.Root.Descendants() != 1 {
		t.Errorf("expected 1 descendant, got %d", arc.Root.Descendants())
	}

	job := arc.Root.Children[0]
	if job.ID != "job1" {
		t.Fatalf("expected child job1, got %s", job.ID)
	}
	table := job.Artifacts["MainTable"]
	if len(table) != 1 || table[0].Name != "duration" || table[0].Value != int64(120) {
		t.Errorf("expected MainTable [duration=120], got %v", table)
	}
}

func TestBuild_UnknownTypeIsSkippedNotFatal(t *testing.T) {
	b := NewBuilder(twoLevelRegistry(t))

	arc, err := b.Build([]model.Record{
		{ID: "app1", Type: "Application"},
		{ID: "x1", Type: "Bogus"},
		{ID: "job1", Type: "Job", Metrics: map[string]any{"duration": int64(1)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arc.Root.Descendants() != 1 {
		t.Errorf("bogus record must be skipped, got %d descendants", arc.Root.Descendants())
	}
	if len(arc.Errors) != 1 || arc.Errors[0].Kind != model.KindUnknownType {
		t.Fatalf("expected one unknown_type error, got %v", arc.Errors)
	}
	if arc.Errors[0].NodeID != "x1" || arc.Errors[0].ExpectedType != "Bogus" {
		t.Errorf("wrong error context: %+v", arc.Errors[0])
	}
}

func TestBuild_MissingParent(t *testing.T) {
	// Three-level table so the build stays rooted while a stage finds no
	// job to link to.
	r := registry.New()
	_ = r.Register("Application", registry.RuleSet{})
	_ = r.Register("Job", registry.RuleSet{
		Parents: []string{"Application"},
		Linking: []rules.LinkingRule{rules.UniqueParentLinking{Parent: "Application"}},
	})
	_ = r.Register("Stage", registry.RuleSet{
		Parents: []string{"Job"},
		Linking: []rules.LinkingRule{rules.UniqueParentLinking{Parent: "Job"}},
	})
	if err := r.Freeze(); err != nil {
		t.Fatal(err)
	}

	arc, err := NewBuilder(r).Build([]model.Record{
		{ID: "app1", Type: "Application"},
		{ID: "stage1", Type: "Stage"}, // no Job present
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(arc.Errors) != 1 || arc.Errors[0].Kind != model.KindMissingParent {
		t.Fatalf("expected one missing_parent, got %v", arc.Errors)
	}
	if arc.Errors[0].NodeID != "stage1" || arc.Errors[0].ExpectedType != "Job" {
		t.Errorf("wrong error context: %+v", arc.Errors[0])
	}
	if len(arc.Unlinked) != 1 || arc.Unlinked[0].ID != "stage1" {
		t.Errorf("unlinked op must be retained, got %v", arc.Unlinked)
	}
	if arc.Unlinked[0].Parent() != nil {
		t.Error("failed link must not set a parent")
	}
}

func TestBuild_NoRootIsFatal(t *testing.T) {
	b := NewBuilder(twoLevelRegistry(t))

	for name, records := range map[string][]model.Record{
		"zero roots": {
			{ID: "job1", Type: "Job", Metrics: map[string]any{"duration": int64(1)}},
		},
		"two roots": {
			{ID: "app1", Type: "Application"},
			{ID: "app2", Type: "Application"},
			{ID: "job1", Type: "Job", Metrics: map[string]any{"duration": int64(1)}},
		},
	} {
		arc, err := b.Build(records)
		if arc != nil {
			t.Errorf("%s: expected no archive, got %v", name, arc)
		}
		var buildErr *model.BuildError
		if !errors.As(err, &buildErr) || buildErr.Kind != model.KindNoRoot {
			t.Errorf("%s: expected no_root error, got %v", name, err)
		}
	}
}

func TestBuild_TwoRootsListsCandidates(t *testing.T) {
	b := NewBuilder(twoLevelRegistry(t))

	_, err := b.Build([]model.Record{
		{ID: "app1", Type: "Application"},
		{ID: "app2", Type: "Application"},
	})

	var buildErr *model.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected *model.BuildError, got %v", err)
	}
	if len(buildErr.CandidateIDs) != 2 {
		t.Errorf("expected both root candidates listed, got %v", buildErr.CandidateIDs)
	}
}

func TestBuild_MissingMetricOmitsField(t *testing.T) {
	r := registry.New()
	_ = r.Register("Application", registry.RuleSet{})
	_ = r.Register("Job", registry.RuleSet{
		Parents: []string{"Application"},
		Linking: []rules.LinkingRule{rules.UniqueParentLinking{Parent: "Application"}},
		Visual:  []rules.VisualizationRule{rules.MainInfoTable{Metrics: []string{"duration", "retries"}}},
	})
	if err := r.Freeze(); err != nil {
		t.Fatal(err)
	}

	arc, err := NewBuilder(r).Build([]model.Record{
		{ID: "app1", Type: "Application"},
		{ID: "job1", Type: "Job", Metrics: map[string]any{"duration": int64(120)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	table := arc.Root.Children[0].Artifacts["MainTable"]
	for _, f := range table {
		if f.Name == "retries" {
			t.Error("missing metric must be omitted from the artifact")
		}
	}
	if len(arc.Errors) != 1 || arc.Errors[0].Kind != model.KindMissingMetric {
		t.Fatalf("expected one missing_metric, got %v", arc.Errors)
	}
}

func TestBuild_FullSparkHierarchy(t *testing.T) {
	reg, err := registry.Spark()
	if err != nil {
		t.Fatal(err)
	}

	records := []model.Record{
		{ID: "app", Type: "Application", Metrics: map[string]any{"spark_version": "3.5.0", "user": "wing"}},
		{ID: "job0", Type: "Job", Metrics: map[string]any{"duration": int64(300), "result": "succeeded", "job_id": int64(0)}},
		{ID: "stage0", Type: "Stage", Metrics: map[string]any{"duration": int64(140), "num_tasks": int64(2), "job_id": int64(0), "stage_id": int64(0)}},
		{ID: "task0", Type: "Task", Metrics: map[string]any{"duration": int64(70), "host": "w1", "status": "ok", "stage_id": int64(0)}},
		{ID: "task1", Type: "Task", Metrics: map[string]any{"duration": int64(60), "host": "w2", "status": "ok", "stage_id": int64(0)}},
	}

	arc, err := NewBuilder(reg).Build(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(arc.Errors) != 0 {
		t.Fatalf("expected clean build, got %v", arc.Errors)
	}
	if got := arc.Root.Descendants(); got != len(records)-1 {
		t.Errorf("expected %d descendants, got %d", len(records)-1, got)
	}

	stage := arc.Root.Children[0].Children[0]
	if stage.ID != "stage0" || len(stage.Children) != 2 {
		t.Fatalf("expected stage0 with two tasks, got %s (%d children)", stage.ID, len(stage.Children))
	}
	summary := stage.Artifacts["TaskSummary"]
	if len(summary) != 1 || summary[0].Value != float64(65) {
		t.Errorf("expected avg task duration 65, got %v", summary)
	}
}

func TestDerive_Idempotent(t *testing.T) {
	b := NewBuilder(twoLevelRegistry(t))

	arc, err := b.Build([]model.Record{
		{ID: "app1", Type: "Application"},
		{ID: "job1", Type: "Job", Metrics: map[string]any{"duration": int64(120)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	job := arc.Root.Children[0]
	first := job.Artifacts["MainTable"]

	// A second derivation pass must change nothing and report nothing.
	d := NewDeriver(twoLevelRegistry(t))
	if errs := d.Derive(arc.Root); len(errs) != 0 {
		t.Errorf("re-derivation produced errors: %v", errs)
	}
	second := job.Artifacts["MainTable"]
	if len(first) != len(second) {
		t.Fatalf("artifact changed across derivations: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("field %d changed: %v vs %v", i, first[i], second[i])
		}
	}
}
