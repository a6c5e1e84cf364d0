package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each record becomes a span with:
//   - Span name: record.Msg (e.g., "step_start", "child_attached")
//   - Attributes: workflow ID, node ID, kind, and all record.Meta fields
//   - Status: Set to error if record.Meta["error"] exists
//
// Records represent points in time, so spans are ended immediately after
// creation and exported through whatever span processor the provider is
// configured with.
//
// Usage:
//
//	tracer := otel.Tracer("flowtree-go")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter backed by the given tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and immediately ends an OpenTelemetry span for the record.
func (o *OTelEmitter) Emit(record Record) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, record.Msg)
	defer span.End()

	o.addStandardAttributes(span, record)
	o.addMetaAttributes(span, record.Meta)

	if errText, ok := record.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errText)
		span.RecordError(fmt.Errorf("%s", errText))
	}
}

// Flush forces export of all pending spans.
//
// OpenTelemetry typically buffers spans in a batch span processor; call
// Flush before application shutdown to ensure buffered spans reach the
// backend. Providers without flush support (e.g. the noop provider) are
// a no-op.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()

	type flusher interface {
		ForceFlush(context.Context) error
	}

	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) addStandardAttributes(span trace.Span, record Record) {
	span.SetAttributes(
		attribute.String("flowtree.workflow_id", record.WorkflowID),
		attribute.String("flowtree.node_id", record.NodeID),
		attribute.String("flowtree.kind", record.Kind),
	)
}

// addMetaAttributes converts record metadata to span attributes.
//
// Handles common types directly (string, int, int64, float64, bool),
// converts time.Duration to milliseconds, and falls back to a string
// representation for anything else.
func (o *OTelEmitter) addMetaAttributes(span trace.Span, meta map[string]interface{}) {
	if meta == nil {
		return
	}

	for key, value := range meta {
		attrKey := "flowtree." + key

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
