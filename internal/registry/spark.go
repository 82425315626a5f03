package registry

import "github.com/tobert/tracearc/internal/rules"

// Spark returns the builtin type table for Spark execution traces:
// Application → Job → Stage → Task. Stages and tasks carry foreign-key
// metrics (job_id, stage_id) emitted by the Spark event log, so keyed
// disambiguation runs before plain uniqueness.
func Spark() (*Registry, error) {
	r := New()

	register := func(typ string, set RuleSet) {
		// Builtin table; registration cannot collide.
		_ = r.Register(typ, set)
	}

	register("Application", RuleSet{
		Visual: []rules.VisualizationRule{
			rules.MainInfoTable{Metrics: []string{"spark_version", "user"}},
			rules.ChildAggregation{Name: "JobSummary", Metric: "duration", Op: rules.AggregateSum},
		},
	})

	register("Job", RuleSet{
		Parents: []string{"Application"},
		Linking: []rules.LinkingRule{
			rules.UniqueParentLinking{Parent: "Application"},
		},
		Visual: []rules.VisualizationRule{
			rules.MainInfoTable{Metrics: []string{"duration", "result"}},
		},
	})

	register("Stage", RuleSet{
		Parents: []string{"Job"},
		Linking: []rules.LinkingRule{
			rules.KeyedParentLinking{Parent: "Job", ChildKey: "job_id"},
			rules.UniqueParentLinking{Parent: "Job"},
		},
		Visual: []rules.VisualizationRule{
			rules.MainInfoTable{Metrics: []string{"duration", "num_tasks"}},
			rules.ChildAggregation{Name: "TaskSummary", Metric: "duration", Op: rules.AggregateAvg},
		},
	})

	register("Task", RuleSet{
		Parents: []string{"Stage"},
		Linking: []rules.LinkingRule{
			rules.KeyedParentLinking{Parent: "Stage", ChildKey: "stage_id"},
			rules.UniqueParentLinking{Parent: "Stage"},
		},
		Visual: []rules.VisualizationRule{
			rules.MainInfoTable{Metrics: []string{"duration", "host", "status"}},
		},
	})

	if err := r.Freeze(); err != nil {
		return nil, err
	}
	return r, nil
}
