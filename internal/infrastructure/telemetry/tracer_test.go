package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/erp/connector/internal/infrastructure/telemetry"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "order-connector",
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Provider())

	// disabled providers still hand out no-op tracers
	_, span := tp.Tracer("test").Start(ctx, "noop")
	span.End()

	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_ExportsSpans(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:        true,
		SamplingRatio:  1.0,
		ServiceName:    "order-connector",
		ServiceVersion: "1.2.3",
	}, logger, telemetry.WithSpanExporter(exporter), telemetry.WithoutGlobalProvider())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	assert.True(t, tp.IsEnabled())

	_, span := tp.Tracer("test").Start(ctx, "order_sync.fetch")
	span.End()

	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "order_sync.fetch", spans[0].Name)

	var serviceName, serviceVersion string
	for _, attr := range spans[0].Resource.Attributes() {
		switch attr.Key {
		case "service.name":
			serviceName = attr.Value.AsString()
		case "service.version":
			serviceVersion = attr.Value.AsString()
		}
	}
	assert.Equal(t, "order-connector", serviceName)
	assert.Equal(t, "1.2.3", serviceVersion)
}

func TestNewTracerProvider_SamplingRatios(t *testing.T) {
	tests := []struct {
		name      string
		ratio     float64
		wantSpans int
	}{
		{name: "always", ratio: 1.0, wantSpans: 1},
		{name: "never", ratio: 0.0, wantSpans: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			exporter := tracetest.NewInMemoryExporter()

			tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
				Enabled:       true,
				SamplingRatio: tt.ratio,
				ServiceName:   "order-connector",
			}, zaptest.NewLogger(t), telemetry.WithSpanExporter(exporter), telemetry.WithoutGlobalProvider())
			require.NoError(t, err)

			_, span := tp.Tracer("test").Start(ctx, "span")
			span.End()

			require.NoError(t, tp.ForceFlush(ctx))
			assert.Len(t, exporter.GetSpans(), tt.wantSpans)
			assert.NoError(t, tp.Shutdown(ctx))
		})
	}
}

func TestTracerProvider_ShutdownWithCancelledContext(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, tp.Shutdown(ctx))
}
