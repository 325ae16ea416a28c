package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                         "/",
		"/metrics":                 "/metrics",
		"/api/users":               "/api/users",
		"/api/users/01J0ABC":       "/api/users/:id",
		"/api/roles/01J0ABC?x=1":   "/api/roles/:id",
		"/api/auth/me":             "/api/auth/me",
		"/api/health/ready":        "/api/health/ready",
		"/api/users/01J0ABC/extra": "/api/users/01J0ABC/extra",
		"/api/users?limit=10":      "/api/users",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	Init()
	Init()

	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := value(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/roles/:id", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/roles/abc", nil))
	after := value(t, httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/roles/:id", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request recorded, got %v", after-before)
	}
}

func TestReadyGauge(t *testing.T) {
	SetReady(true)
	if v := value(t, ready); v != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
	SetReady(false)
	if v := value(t, ready); v != 0 {
		t.Fatalf("expected 0, got %v", v)
	}
}

func TestLogRequestWritesJSON(t *testing.T) {
	var buf strings.Builder
	restore := SetOutput(&buf)
	defer restore()

	LogRequest(map[string]any{"msg": "hello", "status": 200})
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Fatalf("unexpected log line %q", buf.String())
	}
}
