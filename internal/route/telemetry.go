package route

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "gridroute/route"

// telemetry holds the tracer and instruments for Run. Instruments that fail
// to register stay nil and are skipped.
type telemetry struct {
	tracer    trace.Tracer
	runs      metric.Int64Counter
	bytesSent metric.Int64Counter
	bytesRecv metric.Int64Counter
	messages  metric.Int64Counter
	duration  metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) *telemetry {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	t := &telemetry{tracer: tp.Tracer(instrumentationName)}
	meter := mp.Meter(instrumentationName)
	t.runs, _ = meter.Int64Counter("gridroute.route.runs",
		metric.WithUnit("{run}"),
		metric.WithDescription("Number of route runs"),
	)
	t.bytesSent, _ = meter.Int64Counter("gridroute.route.bytes_sent",
		metric.WithUnit("By"),
		metric.WithDescription("Payload bytes sent to other PETs"),
	)
	t.bytesRecv, _ = meter.Int64Counter("gridroute.route.bytes_received",
		metric.WithUnit("By"),
		metric.WithDescription("Payload bytes received from other PETs"),
	)
	t.messages, _ = meter.Int64Counter("gridroute.route.messages",
		metric.WithUnit("{message}"),
		metric.WithDescription("Messages sent to other PETs"),
	)
	t.duration, _ = meter.Float64Histogram("gridroute.route.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of route runs"),
	)
	return t
}

type runToken struct {
	span  trace.Span
	start time.Time
}

func (t *telemetry) start(ctx context.Context, r *Route) (context.Context, runToken) {
	ctx, span := t.tracer.Start(ctx, "route.Run",
		trace.WithAttributes(
			attribute.String("gridroute.route.id", r.id),
			attribute.String("gridroute.route.op", r.op),
			attribute.String("gridroute.route.kind", r.kind.String()),
			attribute.String("gridroute.route.options", r.opts.String()),
			attribute.Int("gridroute.pet", r.tr.Rank()),
		),
	)
	return ctx, runToken{span: span, start: time.Now()}
}

func (t *telemetry) end(ctx context.Context, tok runToken, r *Route, rs RunStats, err error) {
	status := "ok"
	if err != nil {
		status = string(CodeOf(err))
		if status == "" {
			status = "error"
		}
	}
	attrs := metric.WithAttributes(
		attribute.String("gridroute.route.op", r.op),
		attribute.String("status", status),
	)
	if t.runs != nil {
		t.runs.Add(ctx, 1, attrs)
	}
	if t.bytesSent != nil {
		t.bytesSent.Add(ctx, rs.BytesSent, attrs)
	}
	if t.bytesRecv != nil {
		t.bytesRecv.Add(ctx, rs.BytesRecv, attrs)
	}
	if t.messages != nil {
		t.messages.Add(ctx, rs.Messages, attrs)
	}
	if t.duration != nil {
		t.duration.Record(ctx, time.Since(tok.start).Seconds(), attrs)
	}

	if tok.span.IsRecording() {
		tok.span.SetAttributes(
			attribute.Int64("gridroute.route.bytes_sent", rs.BytesSent),
			attribute.Int64("gridroute.route.bytes_received", rs.BytesRecv),
			attribute.Int64("gridroute.route.messages", rs.Messages),
		)
		if err != nil {
			tok.span.RecordError(err)
			tok.span.SetStatus(codes.Error, err.Error())
		} else {
			tok.span.SetStatus(codes.Ok, "")
		}
	}
	tok.span.End()
}
