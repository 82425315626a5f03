package cli

import (
	"fmt"
	"os"

	"github.com/tobert/tracearc/internal/registry"
	"github.com/tobert/tracearc/internal/rules"
	"gopkg.in/yaml.v3"
)

// RegistryFile is the YAML shape of a registry declaration. Each entry
// declares one operation type with its permitted parents and rules.
type RegistryFile struct {
	Types []TypeDecl `yaml:"types"`
}

// TypeDecl declares one operation type.
type TypeDecl struct {
	Name    string       `yaml:"name"`
	Parents []string     `yaml:"parents"`
	Linking []LinkDecl   `yaml:"linking"`
	Visual  []VisualDecl `yaml:"visual"`
}

// LinkDecl declares one linking rule. Kind is "unique_parent" or
// "keyed_parent". ParentKey defaults to ChildKey when omitted.
type LinkDecl struct {
	Kind      string `yaml:"kind"`
	Parent    string `yaml:"parent"`
	ChildKey  string `yaml:"child_key"`
	ParentKey string `yaml:"parent_key"`
}

// VisualDecl declares one visualization rule. Kind is "main_info_table"
// or "child_aggregation".
type VisualDecl struct {
	Kind    string   `yaml:"kind"`
	Name    string   `yaml:"name"`
	Metrics []string `yaml:"metrics"` // main_info_table
	Metric  string   `yaml:"metric"`  // child_aggregation
	Op      string   `yaml:"op"`      // child_aggregation: sum, avg, max, count
}

// LoadRegistryFile reads a YAML registry declaration, builds the registry,
// and freezes it. Rule validation errors surface from Freeze.
func LoadRegistryFile(path string) (*registry.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var decl RegistryFile
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	return BuildRegistry(&decl)
}

// BuildRegistry turns a parsed declaration into a frozen registry.
func BuildRegistry(decl *RegistryFile) (*registry.Registry, error) {
	if len(decl.Types) == 0 {
		return nil, fmt.Errorf("registry file declares no types")
	}

	reg := registry.New()
	for _, td := range decl.Types {
		set := registry.RuleSet{Parents: td.Parents}

		for _, ld := range td.Linking {
			rule, err := buildLinkingRule(ld)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", td.Name, err)
			}
			set.Linking = append(set.Linking, rule)
		}

		for _, vd := range td.Visual {
			rule, err := buildVisualRule(vd)
			if err != nil {
				return nil, fmt.Errorf("type %s: %w", td.Name, err)
			}
			set.Visual = append(set.Visual, rule)
		}

		if err := reg.Register(td.Name, set); err != nil {
			return nil, err
		}
	}

	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	return reg, nil
}

func buildLinkingRule(ld LinkDecl) (rules.LinkingRule, error) {
	if ld.Parent == "" {
		return nil, fmt.Errorf("linking rule %q has no parent", ld.Kind)
	}

	switch ld.Kind {
	case "unique_parent":
		return rules.UniqueParentLinking{Parent: ld.Parent}, nil
	case "keyed_parent":
		if ld.ChildKey == "" {
			return nil, fmt.Errorf("keyed_parent rule for %s has no child_key", ld.Parent)
		}
		return rules.KeyedParentLinking{
			Parent:    ld.Parent,
			ChildKey:  ld.ChildKey,
			ParentKey: ld.ParentKey,
		}, nil
	default:
		return nil, fmt.Errorf("unknown linking rule kind %q", ld.Kind)
	}
}

func buildVisualRule(vd VisualDecl) (rules.VisualizationRule, error) {
	switch vd.Kind {
	case "main_info_table":
		if len(vd.Metrics) == 0 {
			return nil, fmt.Errorf("main_info_table rule has no metrics")
		}
		return rules.MainInfoTable{Name: vd.Name, Metrics: vd.Metrics}, nil
	case "child_aggregation":
		if vd.Metric == "" {
			return nil, fmt.Errorf("child_aggregation rule has no metric")
		}
		op, err := parseAggregateOp(vd.Op)
		if err != nil {
			return nil, err
		}
		return rules.ChildAggregation{Name: vd.Name, Metric: vd.Metric, Op: op}, nil
	default:
		return nil, fmt.Errorf("unknown visualization rule kind %q", vd.Kind)
	}
}

func parseAggregateOp(s string) (rules.AggregateOp, error) {
	switch s {
	case "sum":
		return rules.AggregateSum, nil
	case "avg":
		return rules.AggregateAvg, nil
	case "max":
		return rules.AggregateMax, nil
	case "count":
		return rules.AggregateCount, nil
	default:
		return "", fmt.Errorf("unknown aggregation op %q", s)
	}
}
