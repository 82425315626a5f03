package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tobert/tracearc/internal/archive"
	"github.com/tobert/tracearc/internal/otlpingest"
	"github.com/tobert/tracearc/internal/reader"
	"github.com/tobert/tracearc/internal/registry"
	"github.com/tobert/tracearc/internal/store"
)

func strAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func intAttr(key string, value int64) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: value}},
	}
}

func span(spanID byte, name string, attrs ...*commonpb.KeyValue) *tracepb.Span {
	now := uint64(time.Now().UnixNano())
	return &tracepb.Span{
		TraceId:           []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanId:            []byte{spanID, 2, 3, 4, 5, 6, 7, 8},
		Name:              name,
		StartTimeUnixNano: now,
		EndTimeUnixNano:   now,
		Attributes:        attrs,
		Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK},
	}
}

// TestEndToEnd verifies the complete workflow:
// 1. Create a record store
// 2. Start the OTLP gRPC receiver
// 3. Send typed spans via OTLP gRPC
// 4. Build the archive from the stored records
// 5. Verify the linked tree and derived artifacts
func TestEndToEnd(t *testing.T) {
	recordStore := store.NewRecordStore(1000)

	otlpServer, err := otlpingest.NewServer(
		otlpingest.Config{
			Host: "127.0.0.1",
			Port: 0, // ephemeral port
		},
		recordStore,
	)
	if err != nil {
		t.Fatalf("failed to create OTLP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := otlpServer.Start(ctx); err != nil {
			t.Logf("OTLP server stopped: %v", err)
		}
	}()
	defer otlpServer.Stop()

	endpoint := otlpServer.Endpoint()
	t.Logf("OTLP server listening on %s", endpoint)

	time.Sleep(100 * time.Millisecond)

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create grpc client: %v", err)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)

	// A small Spark run: one application, one job, one stage, two tasks.
	_, err = client.Export(context.Background(), &collectortrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{strAttr("service.name", "spark-driver")},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Spans: []*tracepb.Span{
							span(1, "app",
								strAttr(otlpingest.TypeAttribute, "Application"),
								strAttr("spark_version", "3.5.1"),
								strAttr("user", "e2e")),
							span(2, "job",
								strAttr(otlpingest.TypeAttribute, "Job"),
								intAttr("job_id", 0),
								intAttr("duration", 120)),
							span(3, "stage",
								strAttr(otlpingest.TypeAttribute, "Stage"),
								intAttr("job_id", 0),
								intAttr("stage_id", 0),
								intAttr("duration", 100)),
							span(4, "task",
								strAttr(otlpingest.TypeAttribute, "Task"),
								intAttr("stage_id", 0),
								intAttr("duration", 40)),
							span(5, "task",
								strAttr(otlpingest.TypeAttribute, "Task"),
								intAttr("stage_id", 0),
								intAttr("duration", 60)),
						},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to export spans: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if got := recordStore.Len(); got != 5 {
		t.Fatalf("record store has %d records, want 5", got)
	}

	reg, err := registry.Spark()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	arc, err := archive.NewBuilder(reg).Build(recordStore.Records())
	if err != nil {
		t.Fatalf("archive build failed: %v", err)
	}

	if arc.Root == nil || arc.Root.Type != "Application" {
		t.Fatalf("root = %+v, want an Application", arc.Root)
	}
	if len(arc.Unlinked) != 0 {
		t.Errorf("%d records failed to link", len(arc.Unlinked))
	}
	if got := arc.Root.Descendants(); got != 4 {
		t.Errorf("root has %d descendants, want 4", got)
	}

	// Walk down to the stage and check its aggregated task durations.
	job := arc.Root.Children[0]
	if job.Type != "Job" {
		t.Fatalf("root child type = %q, want Job", job.Type)
	}
	stage := job.Children[0]
	if stage.Type != "Stage" {
		t.Fatalf("job child type = %q, want Stage", stage.Type)
	}
	summary, ok := stage.Artifacts["TaskSummary"]
	if !ok {
		t.Fatal("stage has no TaskSummary artifact")
	}
	if summary[0].Value != float64(50) {
		t.Errorf("avg task duration = %v, want 50", summary[0].Value)
	}

	t.Log("End-to-end test passed: OTLP -> Store -> Archive")
}

// TestFilesToArchive covers the file path: native records written as
// JSONL, loaded in one shot, and built into an archive.
func TestFilesToArchive(t *testing.T) {
	dir := t.TempDir()
	lines := `{"id":"app1","type":"Application","metrics":{"spark_version":"3.5.1","user":"e2e"}}
{"id":"job1","type":"Job","metrics":{"job_id":0,"duration":120}}
{"id":"stage1","type":"Stage","metrics":{"job_id":0,"stage_id":0,"duration":100}}
`
	if err := os.WriteFile(filepath.Join(dir, "run.jsonl"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := reader.Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("failed to load records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("loaded %d records, want 3", len(records))
	}

	reg, err := registry.Spark()
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	arc, err := archive.NewBuilder(reg).Build(records)
	if err != nil {
		t.Fatalf("archive build failed: %v", err)
	}

	if arc.Root == nil || arc.Root.ID != "app1" {
		t.Fatalf("root = %+v, want app1", arc.Root)
	}
	if got := arc.Root.Descendants(); got != 2 {
		t.Errorf("root has %d descendants, want 2", got)
	}
	if _, ok := arc.Root.Artifacts["MainTable"]; !ok {
		t.Error("root has no MainTable artifact")
	}
}
