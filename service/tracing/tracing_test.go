package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/goleak"

	"github.com/khaledhikmat/ws-go/service/lgr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSetup_SpansCarryIDsIntoLogs(t *testing.T) {
	shutdown := Setup("ws-go-test")
	t.Cleanup(func() { require.NoError(t, shutdown(context.Background())) })

	ctx, span := otel.Tracer("tracing-test").Start(context.Background(), "detection")
	defer span.End()

	sc := span.SpanContext()
	require.True(t, sc.IsValid())
	assert.True(t, sc.IsSampled())

	var console, file bytes.Buffer
	logger := slog.New(lgr.NewHandler(&console, &file, slog.LevelInfo))
	logger.InfoContext(ctx, "waste item classified")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, sc.TraceID().String(), entry["trace_id"])
	assert.Equal(t, sc.SpanID().String(), entry["span_id"])
}
