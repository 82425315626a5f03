package cli

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/tobert/tracearc/internal/archive"
	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/otlpingest"
	"github.com/tobert/tracearc/internal/reader"
	"github.com/tobert/tracearc/internal/registry"
	"github.com/tobert/tracearc/internal/store"
	"github.com/tobert/tracearc/internal/webui"
	"github.com/urfave/cli/v3"
)

// ServeCommand returns the CLI command definition for the 'serve' subcommand.
// This command starts the OTLP gRPC receiver, an optional trace file watcher,
// and the web UI, rebuilding the archive as records arrive.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the OTLP receiver and archive web UI",
		Description: `Starts an OTLP gRPC receiver on localhost:0 (ephemeral port) and a web
UI that renders the live archive. With --log-dir, also tails .jsonl
trace files in that directory. The archive is rebuilt lazily whenever
a viewer asks and new records have arrived since the last build.`,
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
				Name:  "log-dir",
				Usage: "Directory of .jsonl trace files to tail",
			},
			&cli.IntFlag{
				Name:  "record-buffer-size",
				Usage: "Number of records to buffer",
				Value: 100_000,
			},
			&cli.StringFlag{
				Name:  "otlp-host",
				Usage: "OTLP server bind address",
				Value: "127.0.0.1",
			},
			&cli.IntFlag{
				Name:  "otlp-port",
				Usage: "OTLP server port (0 for ephemeral)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "http-host",
				Usage: "Web UI bind address",
				Value: "127.0.0.1",
			},
			&cli.IntFlag{
				Name:  "http-port",
				Usage: "Web UI port",
				Value: 4381,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable verbose logging",
			},
		},
		Action: runServe,
	}
}

// runServe is the action handler for the serve command.
// It wires together all components: record store, OTLP receiver, file
// watcher, and web UI.
func runServe(cliCtx context.Context, cmd *cli.Command) error {
	cfg, err := LoadEffectiveConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	cfg = MergeConfigs(cfg, &Config{
		RegistryFile:     cmd.String("registry"),
		LogDir:           cmd.String("log-dir"),
		RecordBufferSize: cmd.Int("record-buffer-size"),
		OTLPHost:         cmd.String("otlp-host"),
		OTLPPort:         cmd.Int("otlp-port"),
		HTTPHost:         cmd.String("http-host"),
		HTTPPort:         cmd.Int("http-port"),
		Verbose:          cmd.Bool("verbose"),
	})

	if cfg.Verbose {
		log.Println("🔧 Configuration:")
		log.Printf("  Record buffer: %d records\n", cfg.RecordBufferSize)
		log.Printf("  OTLP bind: %s:%d\n", cfg.OTLPHost, cfg.OTLPPort)
		log.Printf("  Web UI bind: %s:%d\n", cfg.HTTPHost, cfg.HTTPPort)
		if cfg.LogDir != "" {
			log.Printf("  Log dir: %s\n", cfg.LogDir)
		}
		log.Println()
	}

	// 1. Load the registry
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		log.Printf("✅ Registry frozen with %d types (root: %s)\n", len(reg.Types()), reg.RootType())
	}

	// 2. Create record storage with configured buffer size
	recordStore := store.NewRecordStore(cfg.RecordBufferSize)

	// 3. Create and start OTLP gRPC receiver
	otlpServer, err := otlpingest.NewServer(
		otlpingest.Config{
			Host: cfg.OTLPHost,
			Port: cfg.OTLPPort,
		},
		recordStore,
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP server: %w", err)
	}

	ctx, cancel := context.WithCancel(cliCtx)
	defer cancel()

	otlpErrChan := make(chan error, 1)
	go func() {
		otlpErrChan <- otlpServer.Start(ctx)
	}()

	endpoint := otlpServer.Endpoint()
	log.Printf("🌐 OTLP gRPC server listening on %s\n", endpoint)
	if cfg.Verbose {
		log.Printf("   Programs can send traces with: OTEL_EXPORTER_OTLP_ENDPOINT=%s\n", endpoint)
	}

	// 4. Optionally tail trace files
	if cfg.LogDir != "" {
		source, err := reader.New(reader.Config{
			Directory: cfg.LogDir,
			Verbose:   cfg.Verbose,
		}, recordStore)
		if err != nil {
			return fmt.Errorf("failed to create file source: %w", err)
		}
		if err := source.Start(ctx); err != nil {
			return fmt.Errorf("failed to start file source: %w", err)
		}
		defer source.Stop()
		log.Printf("📁 Tailing trace files in %s\n", cfg.LogDir)
	}

	// 5. Setup graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		if cfg.Verbose {
			log.Printf("📡 Received signal %v, initiating graceful shutdown...\n", sig)
		}
		cancel()
		otlpServer.Stop()
	}()

	// 6. Run the web UI (blocks until context cancelled)
	addr := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))
	ui := webui.New(newLiveSource(recordStore, reg))

	log.Printf("🎯 Web UI ready on http://%s/ui/\n", addr)

	if err := ui.ListenAndServe(ctx, addr); err != nil {
		// Check if the OTLP server had an error
		select {
		case otlpErr := <-otlpErrChan:
			if otlpErr != nil {
				return fmt.Errorf("OTLP server error: %w", otlpErr)
			}
		default:
		}

		return fmt.Errorf("web UI error: %w", err)
	}

	return nil
}

// liveSource rebuilds the archive from the record store on demand, caching
// the result per store generation so idle viewers don't trigger rebuilds.
type liveSource struct {
	store *store.RecordStore
	reg   *registry.Registry

	mu        sync.Mutex
	built     bool
	cachedGen uint64
	cached    *model.Archive
	cachedErr error
}

func newLiveSource(s *store.RecordStore, reg *registry.Registry) *liveSource {
	return &liveSource{store: s, reg: reg}
}

func (s *liveSource) Archive() (*model.Archive, error) {
	gen := s.store.Generation()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.built || gen != s.cachedGen {
		s.cached, s.cachedErr = archive.NewBuilder(s.reg).Build(s.store.Records())
		s.cachedGen = gen
		s.built = true
	}
	return s.cached, s.cachedErr
}

func (s *liveSource) Generation() uint64 { return s.store.Generation() }

func (s *liveSource) RecordCount() int { return s.store.Len() }

func (s *liveSource) Subscribe() (<-chan struct{}, func()) { return s.store.Subscribe() }
