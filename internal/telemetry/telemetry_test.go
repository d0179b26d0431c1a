package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestContextHandler_AddsTraceIDs(t *testing.T) {
	var spans bytes.Buffer
	shutdown, err := SetupTracer(context.Background(), "cartsync-test", &spans)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	var logs bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&logs, nil))).
		With(slog.String("session", "abc"))

	ctx, span := otel.Tracer("test").Start(context.Background(), "cart.view_cart")
	logger.InfoContext(ctx, "inside span")
	span.End()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &rec))
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["span_id"])
	assert.Equal(t, "abc", rec["session"], "WithAttrs must keep the wrapper")

	assert.Contains(t, spans.String(), "cart.view_cart", "syncer exports on End")
}

func TestContextHandler_NoSpan(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&logs, nil)))

	logger.InfoContext(context.Background(), "plain")

	assert.False(t, strings.Contains(logs.String(), "trace_id"))
}

func TestSetupTracer_NoExporter(t *testing.T) {
	shutdown, err := SetupTracer(context.Background(), "cartsync-test", nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
