package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("reason", "duplicate_reading"),
		attribute.String("account_id", "1234"),
		attribute.String("outcome", "partial"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("reason"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordUpload(context.Background(), 1, 1, time.Second)
		m.RecordRowsRejected(context.Background(), "unknown_account", 2)
		m.RecordRateLimitDenied(context.Background(), "/meter-reading-uploads", "rate")
	})
}

func TestNew_WithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordUpload(context.Background(), 0, 0, time.Millisecond)
		m.RecordRowsRejected(context.Background(), "malformed_row", 1)
	})
}
