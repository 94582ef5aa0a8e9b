package otelcol

import (
	"testing"

	"careerloop-engine/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestEndpoint(t *testing.T) {
	require.Equal(t, "collector:4317", Endpoint("http://collector:4317"))
	require.Equal(t, "collector:4318", Endpoint("https://collector:4318"))
	require.Equal(t, "collector:4317", Endpoint("collector:4317"))
}

func TestProviders_NoopWithoutAddr(t *testing.T) {
	cfg := &config.Config{AppName: "careerloop-engine"}
	res, err := NewResource(cfg)
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	tp, err := NewTracerProvider(lc, cfg, res)
	require.NoError(t, err)
	require.NotNil(t, tp)

	mp, err := NewMeterProvider(lc, cfg, res)
	require.NoError(t, err)
	require.NotNil(t, mp)

	_, span := tp.Tracer("test").Start(t.Context(), "noop")
	require.False(t, span.SpanContext().IsValid())
	span.End()
}
