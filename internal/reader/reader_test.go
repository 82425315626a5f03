package reader

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tobert/tracearc/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_NativeRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trace.jsonl",
		`{"id":"app1","type":"Application","metrics":{"user":"wing"}}
{"id":"job1","type":"Job","metrics":{"duration":120}}

not json, skipped
{"id":"job2","type":"Job","metrics":{}}
`)

	records, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "app1" || records[0].Metrics["user"] != "wing" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	// JSON numbers decode as float64.
	if records[1].Metrics["duration"] != float64(120) {
		t.Errorf("expected duration 120, got %v", records[1].Metrics["duration"])
	}
}

func TestLoad_OTLPLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "otlp.jsonl",
		`{"resourceSpans":[{"resource":{"attributes":[{"key":"service.name","value":{"stringValue":"driver"}}]},"scopeSpans":[{"spans":[{"traceId":"3q0=","spanId":"AQI=","name":"run","attributes":[{"key":"tracearc.type","value":{"stringValue":"Application"}}]}]}]}]}
`)

	records, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Type != "Application" {
		t.Errorf("expected Application from OTLP line, got %q", records[0].Type)
	}
	if records[0].Metrics["service"] != "driver" {
		t.Errorf("expected service metric, got %v", records[0].Metrics["service"])
	}
}

func TestLoad_EmptyDirectory(t *testing.T) {
	if _, err := Load(context.Background(), t.TempDir()); err == nil {
		t.Error("expected error for directory with no .jsonl files")
	}
}

func TestDecodeLine_RejectsPartialRecords(t *testing.T) {
	if _, err := decodeLine([]byte(`{"id":"x"}`)); err == nil {
		t.Error("expected error for record without type")
	}
	if _, err := decodeLine([]byte(`{"type":"Job"}`)); err == nil {
		t.Error("expected error for record without id")
	}
}

// collectReceiver accumulates records for FileSource tests.
type collectReceiver struct {
	mu      sync.Mutex
	records []model.Record
}

func (c *collectReceiver) Receive(_ context.Context, records []model.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, records...)
	return nil
}

func (c *collectReceiver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func TestFileSource_InitialLoadAndAppend(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "trace.jsonl",
		`{"id":"app1","type":"Application","metrics":{}}
`)

	receiver := &collectReceiver{}
	fs, err := New(Config{Directory: dir}, receiver)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer fs.Stop()

	if err := fs.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if receiver.count() != 1 {
		t.Fatalf("expected 1 record from initial load, got %d", receiver.count())
	}

	// Append one record; only the new line should be read.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`{"id":"job1","type":"Job","metrics":{}}` + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for receiver.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if receiver.count() != 2 {
		t.Fatalf("expected 2 records after append, got %d", receiver.count())
	}
}

func TestNew_RequiresDirectory(t *testing.T) {
	if _, err := New(Config{}, &collectReceiver{}); err == nil {
		t.Error("expected error for missing directory")
	}
	if _, err := New(Config{Directory: filepath.Join(t.TempDir(), "nope")}, &collectReceiver{}); err == nil {
		t.Error("expected error for nonexistent directory")
	}
}
