package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/config"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	provider, err := New(context.Background(), config.Config{ServiceName: "test"}, zap.NewNop())
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()

	require.IsType(t, propagation.TraceContext{}, otel.GetTextMapPropagator())
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewWithEndpointExportsSpans(t *testing.T) {
	provider, err := New(context.Background(), config.Config{
		ServiceName:       "test",
		Environment:       "test",
		TelemetryEndpoint: "127.0.0.1:4318",
		TelemetryInsecure: true,
	}, zap.NewNop())
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	_, span := provider.Tracer().Start(context.Background(), "sampled")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	// Nothing listens on the endpoint, so only a cancelled flush is guaranteed to return.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = provider.Shutdown(ctx)
}

func TestNilProviderIsSafe(t *testing.T) {
	var provider *Provider
	require.False(t, provider.Enabled())
	require.NotNil(t, provider.Tracer())
	require.NoError(t, provider.Shutdown(context.Background()))
}
