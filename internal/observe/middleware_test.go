package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type middlewareFixture struct {
	mw     func(http.Handler) http.Handler
	reader *sdkmetric.ManualReader
	spans  *tracetest.InMemoryExporter
}

func newMiddlewareFixture(t *testing.T) middlewareFixture {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return middlewareFixture{mw: Middleware(m), reader: reader, spans: useTracerProvider(t)}
}

// durationPoints collects the request duration histogram.
func (f middlewareFixture) durationPoints(t *testing.T) []metricdata.HistogramDataPoint[float64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := f.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "barkeep.http.duration")
	if met == nil {
		t.Fatal("barkeep.http.duration not recorded")
	}
	return met.Data.(metricdata.Histogram[float64]).DataPoints
}

func attrValue(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.Emit()
}

func TestMiddleware_Requests(t *testing.T) {
	const incomingTrace = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		path        string
		traceparent string
		status      int
		wantTrace   string
	}{
		{name: "new trace", path: "/v1/drinks", status: http.StatusOK},
		{name: "not found", path: "/missing", status: http.StatusNotFound},
		{name: "rate limited", path: "/v1/tts/synthesize", status: http.StatusTooManyRequests},
		{
			name:        "continues caller trace",
			path:        "/v1/sessions",
			traceparent: "00-" + incomingTrace + "-00f067aa0ba902b7-01",
			status:      http.StatusCreated,
			wantTrace:   incomingTrace,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMiddlewareFixture(t)

			var seen string
			h := f.mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = CorrelationID(r.Context())
				w.WriteHeader(tt.status)
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.traceparent != "" {
				req.Header.Set("traceparent", tt.traceparent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if len(seen) != 32 {
				t.Fatalf("handler correlation id = %q", seen)
			}
			if tt.wantTrace != "" && seen != tt.wantTrace {
				t.Errorf("correlation id = %q, want %q", seen, tt.wantTrace)
			}
			if got := rec.Header().Get("X-Correlation-ID"); got != seen {
				t.Errorf("X-Correlation-ID = %q, want %q", got, seen)
			}
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}

			spans := f.spans.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			if want := "HTTP GET " + tt.path; spans[0].Name != want {
				t.Errorf("span name = %q, want %q", spans[0].Name, want)
			}
			var code int64
			for _, a := range spans[0].Attributes {
				if a.Key == "http.response.status_code" {
					code = a.Value.AsInt64()
				}
			}
			if code != int64(tt.status) {
				t.Errorf("span status attribute = %d, want %d", code, tt.status)
			}

			points := f.durationPoints(t)
			if len(points) != 1 || points[0].Count != 1 {
				t.Fatalf("duration points = %+v", points)
			}
			if got := attrValue(points[0].Attributes, "path"); got != tt.path {
				t.Errorf("path attribute = %q, want %q", got, tt.path)
			}
			if got := attrValue(points[0].Attributes, "method"); got != http.MethodGet {
				t.Errorf("method attribute = %q", got)
			}
		})
	}
}

func TestMiddleware_GroupsByRoutePattern(t *testing.T) {
	f := newMiddlewareFixture(t)

	r := chi.NewRouter()
	r.Use(f.mw)
	r.Get("/v1/sessions/{id}/context", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id+"/context", nil))
	}

	points := f.durationPoints(t)
	if len(points) != 1 || points[0].Count != 3 {
		t.Fatalf("want one route series with 3 samples, got %+v", points)
	}
	if got := attrValue(points[0].Attributes, "path"); got != "/v1/sessions/{id}/context" {
		t.Errorf("path attribute = %q", got)
	}
}

func TestStatusRecorder_Unwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, statusCode: http.StatusOK}
	if sr.Unwrap() != rec {
		t.Error("Unwrap did not return the wrapped writer")
	}
	if _, _, err := sr.Hijack(); err == nil {
		t.Error("Hijack on a recorder should fail")
	}
	sr.Flush()
	if !rec.Flushed {
		t.Error("Flush not forwarded")
	}
}
