package main

import (
	"context"
	"fmt"
	"os"
	"time"

	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Simple program to send a sample Spark run to a running tracearc server.
// Usage: go run send_trace.go <endpoint>
// Example: go run send_trace.go 127.0.0.1:38279
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <endpoint>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s 127.0.0.1:38279\n", os.Args[0])
		os.Exit(1)
	}

	endpoint := os.Args[1]
	fmt.Printf("📡 Connecting to OTLP endpoint: %s\n", endpoint)

	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to create grpc client: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	client := collectortrace.NewTraceServiceClient(conn)

	now := time.Now()
	traceID := []byte{0xde, 0xad, 0xbe, 0xef, 0xca, 0xfe, 0xba, 0xbe, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	str := func(key, value string) *commonpb.KeyValue {
		return &commonpb.KeyValue{
			Key:   key,
			Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
		}
	}
	num := func(key string, value int64) *commonpb.KeyValue {
		return &commonpb.KeyValue{
			Key:   key,
			Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: value}},
		}
	}
	mkSpan := func(id byte, name string, dur time.Duration, attrs ...*commonpb.KeyValue) *tracepb.Span {
		return &tracepb.Span{
			TraceId:           traceID,
			SpanId:            []byte{id, id, id, id, id, id, id, id},
			Name:              name,
			StartTimeUnixNano: uint64(now.UnixNano()),
			EndTimeUnixNano:   uint64(now.Add(dur).UnixNano()),
			Attributes:        attrs,
			Status:            &tracepb.Status{Code: tracepb.Status_STATUS_CODE_OK},
		}
	}

	// One application with a job, a stage, and two tasks. Enough for the
	// archive to link everything and derive a full table set.
	spans := []*tracepb.Span{
		mkSpan(0x11, "spark-app", 500*time.Millisecond,
			str("tracearc.type", "Application"),
			str("spark_version", "3.5.1"),
			str("user", "demo")),
		mkSpan(0x22, "job-0", 400*time.Millisecond,
			str("tracearc.type", "Job"),
			num("job_id", 0),
			num("duration", 400),
			str("result", "JOB_SUCCEEDED")),
		mkSpan(0x33, "stage-0", 350*time.Millisecond,
			str("tracearc.type", "Stage"),
			num("job_id", 0),
			num("stage_id", 0),
			num("duration", 350),
			num("num_tasks", 2)),
		mkSpan(0x44, "task-0", 150*time.Millisecond,
			str("tracearc.type", "Task"),
			num("stage_id", 0),
			num("duration", 150),
			str("host", "worker-1"),
			str("status", "SUCCESS")),
		mkSpan(0x55, "task-1", 200*time.Millisecond,
			str("tracearc.type", "Task"),
			num("stage_id", 0),
			num("duration", 200),
			str("host", "worker-2"),
			str("status", "SUCCESS")),
	}

	fmt.Printf("🚀 Sending Spark run with %d spans...\n", len(spans))
	_, err = client.Export(context.Background(), &collectortrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{
			{
				Resource: &resourcepb.Resource{
					Attributes: []*commonpb.KeyValue{
						str("service.name", "spark-driver"),
						str("deployment.environment", "development"),
					},
				},
				ScopeSpans: []*tracepb.ScopeSpans{
					{
						Spans: spans,
					},
				},
			},
		},
	})

	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to export spans: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Spark run exported successfully!")
	fmt.Println("   - Application (spark_version=3.5.1)")
	fmt.Println("     - Job 0 (400ms) → Stage 0 → 2 tasks")
}
