package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracingWithoutExporter(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), Config{Enabled: true, SampleRatio: 0.5})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInjectWritesTraceParent(t *testing.T) {
	_, err := InitTracing(context.Background(), Config{})
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	attrs := map[string]string{}
	Inject(ctx, attrs)
	span.End()

	require.Contains(t, attrs, "traceparent")
	require.Len(t, recorder.Ended(), 1)

	got := otel.GetTextMapPropagator().Extract(context.Background(), MapCarrier(attrs))
	require.NotNil(t, got)
	require.ElementsMatch(t, []string{"traceparent"}, MapCarrier(attrs).Keys())
}

func TestSamplerRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  sdktrace.SamplingDecision
	}{
		{name: "zero drops", ratio: 0, want: sdktrace.Drop},
		{name: "negative drops", ratio: -1, want: sdktrace.Drop},
		{name: "one samples", ratio: 1, want: sdktrace.RecordAndSample},
		{name: "above one samples", ratio: 2, want: sdktrace.RecordAndSample},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := sampler(tc.ratio).ShouldSample(sdktrace.SamplingParameters{
				ParentContext: context.Background(),
				TraceID:       trace.TraceID{0x01, 0x02, 0x03},
				Name:          "task.scrape",
				Kind:          trace.SpanKindInternal,
			})
			require.Equal(t, tc.want, res.Decision)
		})
	}
}
