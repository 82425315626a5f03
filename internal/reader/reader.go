// Package reader loads raw trace records from JSONL log directories. Two
// line shapes are accepted: native records ({"id","type","metrics"}) and
// OTLP trace payloads as written by the OpenTelemetry Collector's file
// exporter, which are converted span-by-span. A FileSource additionally
// watches the directory and feeds appended lines into a receiver, so a
// live build can follow a job that is still writing its log.
package reader

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/tobert/tracearc/internal/model"
	"github.com/tobert/tracearc/internal/otlpingest"
)

const (
	// JSONL line scanning limits. OTLP JSON lines with batched spans can
	// be large.
	lineBufferInitial = 1 * 1024 * 1024
	lineBufferMax     = 10 * 1024 * 1024
)

// Load reads every .jsonl file in dir once, oldest first, and returns the
// decoded records. Unparseable lines are skipped with a count in the
// returned error only if nothing at all could be read.
func Load(ctx context.Context, dir string) ([]model.Record, error) {
	files, err := findJSONLFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .jsonl files in %s", dir)
	}

	var records []model.Record
	for _, file := range files {
		if err := readFrom(ctx, file, 0, func(recs []model.Record) {
			records = append(records, recs...)
		}); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// RecordReceiver is the sink a FileSource feeds. store.RecordStore
// implements it.
type RecordReceiver interface {
	Receive(ctx context.Context, records []model.Record) error
}

// FileSource tails a log directory and forwards new records as files grow.
type FileSource struct {
	directory string
	receiver  RecordReceiver
	verbose   bool

	watcher *fsnotify.Watcher

	// Per-file read positions so only appended data is re-read.
	mu          sync.Mutex
	fileOffsets map[string]int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds configuration for a FileSource.
type Config struct {
	Directory string
	Verbose   bool
}

func New(cfg Config, receiver RecordReceiver) (*FileSource, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("directory is required")
	}

	info, err := os.Stat(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %s: %w", cfg.Directory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Directory)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FileSource{
		directory:   cfg.Directory,
		receiver:    receiver,
		verbose:     cfg.Verbose,
		watcher:     watcher,
		fileOffsets: make(map[string]int64),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start loads existing files, then watches for appends in the background.
// It returns after the initial load completes.
func (fs *FileSource) Start(ctx context.Context) error {
	if err := fs.watcher.Add(fs.directory); err != nil {
		return fmt.Errorf("could not watch %s: %w", fs.directory, err)
	}
	if fs.verbose {
		log.Printf("📁 FileSource: watching %s\n", fs.directory)
	}

	files, err := findJSONLFiles(fs.directory)
	if err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}
	for _, file := range files {
		count, err := fs.loadFile(ctx, file)
		if err != nil {
			log.Printf("⚠️  FileSource: error loading %s: %v\n", file, err)
			continue
		}
		if fs.verbose && count > 0 {
			log.Printf("📁 FileSource: loaded %d records from %s\n", count, filepath.Base(file))
		}
	}

	fs.wg.Add(1)
	go fs.watchLoop()
	return nil
}

// Stop halts the watcher and waits for the event loop to finish.
func (fs *FileSource) Stop() {
	fs.cancel()
	fs.watcher.Close()
	fs.wg.Wait()
}

// Directory returns the directory being watched.
func (fs *FileSource) Directory() string {
	return fs.directory
}

// loadFile reads a file from its last known offset and forwards parsed
// records, returning how many were forwarded.
func (fs *FileSource) loadFile(ctx context.Context, path string) (int, error) {
	fs.mu.Lock()
	offset := fs.fileOffsets[path]
	fs.mu.Unlock()

	count := 0
	err := readFrom(ctx, path, offset, func(recs []model.Record) {
		if err := fs.receiver.Receive(ctx, recs); err == nil {
			count += len(recs)
		}
	})
	if err != nil {
		return count, err
	}

	info, statErr := os.Stat(path)
	if statErr == nil {
		fs.mu.Lock()
		fs.fileOffsets[path] = info.Size()
		fs.mu.Unlock()
	}
	return count, nil
}

func (fs *FileSource) watchLoop() {
	defer fs.wg.Done()

	for {
		select {
		case <-fs.ctx.Done():
			return

		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}

			count, err := fs.loadFile(fs.ctx, event.Name)
			if err != nil {
				log.Printf("⚠️  FileSource: error reading %s: %v\n", event.Name, err)
			} else if fs.verbose && count > 0 {
				log.Printf("📁 FileSource: loaded %d new records from %s\n", count, filepath.Base(event.Name))
			}

		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  FileSource: watcher error: %v\n", err)
		}
	}
}

// readFrom scans a JSONL file from offset, decoding each line and handing
// batches to emit. A bad line is skipped rather than aborting the file.
func readFrom(ctx context.Context, path string, offset int64, emit func([]model.Record)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			// Rotated underneath us; start over.
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, lineBufferInitial), lineBufferMax)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		recs, err := decodeLine(line)
		if err != nil {
			continue
		}
		if len(recs) > 0 {
			emit(recs)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// decodeLine parses one JSONL line as either a native record or an OTLP
// trace payload.
func decodeLine(line []byte) ([]model.Record, error) {
	var probe struct {
		ID            string          `json:"id"`
		Type          string          `json:"type"`
		Metrics       map[string]any  `json:"metrics"`
		ResourceSpans json.RawMessage `json:"resourceSpans"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, fmt.Errorf("parse record JSON: %w", err)
	}

	if len(probe.ResourceSpans) > 0 {
		var data tracepb.TracesData
		if err := protojson.Unmarshal(line, &data); err != nil {
			return nil, fmt.Errorf("parse OTLP trace JSON: %w", err)
		}
		return otlpingest.RecordsFromResourceSpans(data.ResourceSpans), nil
	}

	if probe.ID == "" || probe.Type == "" {
		return nil, fmt.Errorf("record line missing id or type")
	}
	return []model.Record{{ID: probe.ID, Type: probe.Type, Metrics: probe.Metrics}}, nil
}

// findJSONLFiles returns .jsonl files in dir sorted by modification time,
// oldest first, so records load in roughly chronological order.
func findJSONLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}
