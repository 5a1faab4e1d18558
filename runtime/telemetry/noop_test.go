package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

// These assert the no-op implementations satisfy the seam interfaces and
// never panic regardless of arguments, since components wire them in as a
// transport-free default (e.g. session.New's log parameter, the tracer of
// summarizer.Traced in tests).
func TestNoopImplementationsSatisfyInterfaces(t *testing.T) {
	var _ Logger = NoopLogger{}
	var _ Metrics = NoopMetrics{}
	var _ Tracer = NoopTracer{}
}

func TestNoopLoggerDiscardsAllLevels(t *testing.T) {
	ctx := context.Background()
	log := NewNoopLogger()
	log.Debug(ctx, "debug", "k", "v")
	log.Info(ctx, "info")
	log.Warn(ctx, "warn", "count", 3)
	log.Error(ctx, "error", "err", errors.New("boom"))
}

func TestNoopMetricsDiscardsAllKinds(t *testing.T) {
	m := NewNoopMetrics()
	m.IncCounter("writes", 1, "sink", "native")
	m.RecordTimer("gap", 2*time.Second)
	m.RecordGauge("buffer.bytes", 1024)
}

func TestNoopTracerProducesUsableSpan(t *testing.T) {
	tracer := NewNoopTracer()
	ctx, span := tracer.Start(context.Background(), "session.status_update")
	require.NotNil(t, ctx)
	span.AddEvent("started")
	span.SetStatus(codes.Ok, "")
	span.RecordError(errors.New("boom"))
	span.End()

	same := tracer.Span(ctx)
	same.End()
}
