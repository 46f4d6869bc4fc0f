package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for the dispatch path.
const (
	AttrSessionID = attribute.Key("talaash.session_id")
	AttrEventKind = attribute.Key("talaash.event_kind")
	AttrAgent     = attribute.Key("talaash.agent")
	AttrPhase     = attribute.Key("talaash.phase")
)

// StartDispatch opens a span around one dispatcher mutation.
func StartDispatch(ctx context.Context, tracer trace.Tracer, sessionID, kind, agent string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dispatch.apply",
		trace.WithAttributes(
			AttrSessionID.String(sessionID),
			AttrEventKind.String(kind),
			AttrAgent.String(agent),
		),
	)
}

// EndWithError records err on the span (when non-nil) and ends it.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
