package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter records each Event as an immediately-ended span rather than a
// duration-spanning one: events in this system mark points in time
// (step.started, step.finished, run.paused, ...), not work in progress, so
// there's no matching Start/End pair to bracket.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter wraps tracer. Pass otel.Tracer("workflow-engine") or
// equivalent.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(e Event) {
	_, span := o.tracer.Start(context.Background(), e.Msg, trace.WithTimestamp(e.Timestamp))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("run_id", e.RunID),
	}
	if e.StepID != "" {
		attrs = append(attrs, attribute.String("step_id", e.StepID))
	}
	if e.BlockID != "" {
		attrs = append(attrs, attribute.String("block_id", e.BlockID))
	}
	for k, v := range e.Meta {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	span.SetAttributes(attrs...)

	if errVal, ok := e.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errVal)
		span.RecordError(fmt.Errorf("%s", errVal))
	}
}

// EmitBatch emits each event as its own span. Kept separate from Emit so
// callers with a batch of buffered events (e.g. a store's PendingEvents)
// don't pay per-call context.Background() overhead in a hot loop.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		_, span := o.tracer.Start(ctx, e.Msg, trace.WithTimestamp(e.Timestamp))
		attrs := []attribute.KeyValue{attribute.String("run_id", e.RunID)}
		if e.StepID != "" {
			attrs = append(attrs, attribute.String("step_id", e.StepID))
		}
		if e.BlockID != "" {
			attrs = append(attrs, attribute.String("block_id", e.BlockID))
		}
		for k, v := range e.Meta {
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
		}
		span.SetAttributes(attrs...)
		if errVal, ok := e.Meta["error"].(string); ok {
			span.SetStatus(codes.Error, errVal)
			span.RecordError(fmt.Errorf("%s", errVal))
		}
		span.End()
	}
	return nil
}
