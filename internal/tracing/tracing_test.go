package tracing

import (
	"context"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestSetupDisabledInstallsPropagator(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	h := http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(h))
	out := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out))
	if out.Get("traceparent") == "" {
		t.Fatal("expected W3C trace context propagation even with tracing disabled")
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"collector:4317":            "collector:4317",
		"http://collector:4317":     "collector:4317",
		"https://otel.example.com/": "otel.example.com",
		"collector:4317/":           "collector:4317",
	}
	for in, want := range tests {
		if got := sanitizeEndpoint(in); got != want {
			t.Errorf("sanitizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSampleRatio(t *testing.T) {
	if ParseSampleRatio("0.25") != 0.25 {
		t.Fatal("expected 0.25")
	}
	if ParseSampleRatio("abc") != 0 || ParseSampleRatio(" ") != 0 {
		t.Fatal("expected 0 for invalid input")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "b", "c"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("got %q", got)
	}
}
