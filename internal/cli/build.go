package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/tobert/tracearc/internal/archive"
	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/reader"
	"github.com/tobert/tracearc/internal/registry"
	"github.com/tobert/tracearc/internal/viz"
	"github.com/urfave/cli/v3"
)

// BuildCommand returns the CLI command definition for the 'build' subcommand.
// This command reads trace records from a directory of .jsonl files, builds
// the archive, and prints it as a tree.
func BuildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Build an archive from a directory of trace files",
		ArgsUsage: "[log-dir]",
		Description: `Reads every .jsonl file in the directory, instantiates the records
against the registry, links them into a tree, derives visualization
artifacts, and prints the result. Lines can be native records or
OTLP/JSON spans.

Build problems (unknown types, unlinkable records, missing metrics)
are reported but do not fail the build. The only fatal condition is
an archive with no root.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a config file (overrides discovery)",
			},
			&cli.StringFlag{
				Name:    "registry",
				Aliases: []string{"r"},
				Usage:   "YAML registry file (default: built-in Spark registry)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the archive as JSON to this path",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
			},
		},
		Action: runBuild,
	}
}

// archiveDocument is the JSON layout written by --output.
type archiveDocument struct {
	Root     *model.Operation   `json:"root"`
	Unlinked []*model.Operation `json:"unlinked,omitempty"`
	Errors   []string           `json:"errors,omitempty"`
}

func runBuild(ctx context.Context, cmd *cli.Command) error {
	cfg, err := LoadEffectiveConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	cfg = MergeConfigs(cfg, &Config{
		LogDir:       cmd.Args().First(),
		RegistryFile: cmd.String("registry"),
		OutputPath:   cmd.String("output"),
		Verbose:      cmd.Bool("verbose"),
	})

	if cfg.LogDir == "" {
		return fmt.Errorf("no log directory: pass one as an argument or set log_dir in config")
	}

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	records, err := reader.Load(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to load trace files: %w", err)
	}
	if cfg.Verbose {
		log.Printf("📖 Loaded %d records from %s\n", len(records), cfg.LogDir)
	}

	arc, err := archive.NewBuilder(reg).Build(records)
	if err != nil {
		return fmt.Errorf("archive build failed: %w", err)
	}

	fmt.Println(viz.Tree(toNodeInfo(arc.Root), 100))
	fmt.Println()
	fmt.Println(viz.Summary(collectStats(reg, arc), len(arc.Errors)))

	for _, be := range arc.Errors {
		log.Printf("⚠️  %s\n", be.Error())
	}

	if cfg.OutputPath != "" {
		if err := writeArchive(arc, cfg.OutputPath); err != nil {
			return err
		}
		if cfg.Verbose {
			log.Printf("💾 Wrote archive to %s\n", cfg.OutputPath)
		}
	}

	return nil
}

// loadRegistry resolves the registry for a run: the YAML file when one is
// configured, the built-in Spark registry otherwise.
func loadRegistry(cfg *Config) (*registry.Registry, error) {
	if cfg.RegistryFile != "" {
		return LoadRegistryFile(cfg.RegistryFile)
	}
	return registry.Spark()
}

// toNodeInfo flattens an operation and its artifacts into the shape the
// tree renderer wants. Artifact fields keep their declaration order.
func toNodeInfo(op *model.Operation) viz.NodeInfo {
	n := viz.NodeInfo{Type: op.Type, ID: op.ID}
	for _, name := range sortedArtifactNames(op) {
		for _, f := range op.Artifacts[name] {
			n.Fields = append(n.Fields, viz.FieldInfo{
				Name:  f.Name,
				Value: fmt.Sprint(f.Value),
			})
		}
	}
	for _, child := range op.Children {
		n.Children = append(n.Children, toNodeInfo(child))
	}
	return n
}

func sortedArtifactNames(op *model.Operation) []string {
	names := make([]string, 0, len(op.Artifacts))
	for name := range op.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectStats(reg *registry.Registry, arc *model.Archive) []viz.TypeStats {
	counts := make(map[string]*viz.TypeStats)
	order := reg.Types()
	for _, t := range order {
		counts[t] = &viz.TypeStats{Type: t}
	}

	if arc.Root != nil {
		arc.Root.Walk(func(op *model.Operation) {
			if s, ok := counts[op.Type]; ok {
				s.Count++
			}
		})
	}
	for _, op := range arc.Unlinked {
		if s, ok := counts[op.Type]; ok {
			s.Count++
			s.Unlinked++
		}
	}

	stats := make([]viz.TypeStats, 0, len(order))
	for _, t := range order {
		stats = append(stats, *counts[t])
	}
	return stats
}

func writeArchive(arc *model.Archive, path string) error {
	doc := archiveDocument{
		Root:     arc.Root,
		Unlinked: arc.Unlinked,
	}
	for _, be := range arc.Errors {
		doc.Errors = append(doc.Errors, be.Error())
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}
