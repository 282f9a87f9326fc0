package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, EntityKind(ctx))
	assert.Empty(t, EntityName(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithEntity(ctx, "deployment", "etl")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "deployment", EntityKind(ctx))
	assert.Equal(t, "etl", EntityName(ctx))
}

func TestCorrelationHandler_InjectsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithEntity(WithRequestID(context.Background(), "req-9"), "work_pool", "k8s")
	logger.InfoContext(ctx, "payload admitted")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-9", record["request_id"])
	assert.Equal(t, "work_pool", record["entity_kind"])
	assert.Equal(t, "k8s", record["entity_name"])
	assert.Equal(t, "payload admitted", record["msg"])
}

func TestCorrelationHandler_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("bare")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "request_id")
	assert.NotContains(t, record, "entity_kind")
}

func TestCorrelationHandler_WithAttrsPreservesWrapping(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))
	logger := base.With(slog.String("component", "admission"))

	ctx := WithRequestID(context.Background(), "req-2")
	logger.InfoContext(ctx, "still correlated")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "req-2", record["request_id"])
	assert.Equal(t, "admission", record["component"])
}
