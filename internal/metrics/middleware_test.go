package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func observations(t *testing.T, method, route, code string) uint64 {
	t.Helper()
	h, err := adminRequestDuration.GetMetricWithLabelValues(method, route, code)
	if err != nil {
		t.Fatalf("metric: %v", err)
	}
	m := &dto.Metric{}
	if err := h.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("write: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMiddleware_RecordsRoutePatterns(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/admin/commit", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Put("/admin/commit-mode/{mode}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	tests := []struct {
		method, path, route, code string
	}{
		{http.MethodPost, "/admin/commit", "/admin/commit", "502"},
		{http.MethodPut, "/admin/commit-mode/deferred", "/admin/commit-mode/{mode}", "200"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			before := observations(t, tc.method, tc.route, tc.code)
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tc.method, tc.path, http.NoBody))
			if after := observations(t, tc.method, tc.route, tc.code); after != before+1 {
				t.Errorf("observations %s %s: %d -> %d", tc.route, tc.code, before, after)
			}
		})
	}
	if v := testutil.ToFloat64(adminRequestsInFlight); v != 0 {
		t.Errorf("in flight = %v after all requests finished", v)
	}
}

func TestRouteOf_OutsideRouter(t *testing.T) {
	if got := routeOf(httptest.NewRequest(http.MethodGet, "/x", http.NoBody)); got != unmatchedRoute {
		t.Errorf("route = %q", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
}
