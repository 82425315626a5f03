// Package otlpingest receives OTLP trace spans over gRPC and converts
// them into raw trace records for the archive pipeline. Spans declare
// their operation type through the tracearc.type attribute; span timings,
// status, and attributes become the record's metric mapping.
package otlpingest

import (
	"context"
	"fmt"

	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tobert/tracearc/internal/model"
)

// TypeAttribute is the span attribute naming the operation type. Spans
// without it fall back to the span name.
const TypeAttribute = "tracearc.type"

// RecordReceiver is the sink for converted records. Implementations must
// be safe for concurrent calls, since Export may run in parallel.
type RecordReceiver interface {
	Receive(ctx context.Context, records []model.Record) error
}

// RecordsFromResourceSpans flattens an OTLP trace payload into records,
// preserving span order within each scope.
func RecordsFromResourceSpans(resourceSpans []*tracepb.ResourceSpans) []model.Record {
	var records []model.Record

	for _, rs := range resourceSpans {
		service := serviceName(rs.Resource)
		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				records = append(records, recordFromSpan(span, service))
			}
		}
	}
	return records
}

func recordFromSpan(span *tracepb.Span, service string) model.Record {
	metrics := map[string]any{
		"service":  service,
		"span_id":  idToString(span.SpanId),
		"trace_id": idToString(span.TraceId),
		"status":   statusString(span.Status),
	}
	if len(span.ParentSpanId) > 0 {
		metrics["parent_span_id"] = idToString(span.ParentSpanId)
	}
	if span.EndTimeUnixNano >= span.StartTimeUnixNano {
		metrics["duration_ms"] = float64(span.EndTimeUnixNano-span.StartTimeUnixNano) / 1e6
	}

	opType := span.Name
	for _, attr := range span.Attributes {
		if attr.Key == TypeAttribute {
			if s := attr.Value.GetStringValue(); s != "" {
				opType = s
			}
			continue
		}
		if v, ok := scalarValue(attr.Value); ok {
			metrics[attr.Key] = v
		}
	}

	return model.Record{
		ID:      idToString(span.SpanId),
		Type:    opType,
		Metrics: metrics,
	}
}

// serviceName extracts service.name from an OTLP resource, defaulting to
// "unknown".
func serviceName(resource *resourcepb.Resource) string {
	if resource == nil {
		return "unknown"
	}
	for _, attr := range resource.Attributes {
		if attr.Key == "service.name" {
			if s := attr.Value.GetStringValue(); s != "" {
				return s
			}
		}
	}
	return "unknown"
}

// scalarValue converts an OTLP attribute value to a record metric scalar.
// Array and kvlist attributes have no metric representation and are
// skipped.
func scalarValue(v *commonpb.AnyValue) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch val := v.Value.(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue, true
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue, true
	case *commonpb.AnyValue_IntValue:
		return val.IntValue, true
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue, true
	}
	return nil, false
}

func statusString(status *tracepb.Status) string {
	if status == nil {
		return "UNSET"
	}
	switch status.Code {
	case tracepb.Status_STATUS_CODE_OK:
		return "OK"
	case tracepb.Status_STATUS_CODE_ERROR:
		return "ERROR"
	}
	return "UNSET"
}

func idToString(id []byte) string {
	return fmt.Sprintf("%x", id)
}
