package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	almagestAuth "github.com/almagest-io/almagestAuth"
	"github.com/almagest-io/almagestAuth/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot almagestAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() almagestAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                    { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: almagestAuth.MetricsSnapshot{
			Counters:   map[almagestAuth.MetricID]uint64{},
			Histograms: map[almagestAuth.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: almagestAuth.MetricsSnapshot{
			Counters: map[almagestAuth.MetricID]uint64{
				almagestAuth.MetricLoginSuccess: 7,
			},
			Histograms: map[almagestAuth.MetricID][]uint64{
				almagestAuth.MetricAuthenticateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "almagest_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "almagest_authenticate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "almagest_authenticate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "almagest_auth_events_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: almagestAuth.MetricsSnapshot{
			Counters:   map[almagestAuth.MetricID]uint64{almagestAuth.MetricLoginSuccess: 1},
			Histograms: map[almagestAuth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: almagestAuth.MetricsSnapshot{
			Counters: map[almagestAuth.MetricID]uint64{
				almagestAuth.MetricLoginSuccess:   1000,
				almagestAuth.MetricAuthFailure:    40,
				almagestAuth.MetricRefreshValid:   800,
				almagestAuth.MetricRefreshInvalid: 10,
				almagestAuth.MetricRefreshIssued:  800,
				almagestAuth.MetricLogout:         20,
				almagestAuth.MetricPasswordReset:  3,
			},
			Histograms: map[almagestAuth.MetricID][]uint64{
				almagestAuth.MetricAuthenticateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

func TestRenderListsEveryCounter(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{dropped: 1})

	out := exp.Render()
	for _, def := range internaldefs.CounterDefs {
		if strings.Count(out, "# TYPE "+def.Name+" counter") != 1 {
			t.Fatalf("expected exactly one %s series, got:\n%s", def.Name, out)
		}
	}
}
