package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goCampus "github.com/MrEthical07/goCampus"
	"github.com/MrEthical07/goCampus/internal/mockapi"
	"github.com/MrEthical07/goCampus/session"
)

type fakeSource struct {
	snapshot goCampus.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goCampus.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goCampus.MetricsSnapshot{
			Counters:   map[goCampus.MetricID]uint64{},
			Histograms: map[goCampus.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistograms(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goCampus.MetricsSnapshot{
			Counters: map[goCampus.MetricID]uint64{
				goCampus.MetricLoginSuccess:        7,
				goCampus.MetricRequestUnauthorized: 1,
			},
			Histograms: map[goCampus.MetricID][]uint64{
				goCampus.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gocampus_login_success_total 7",
		"gocampus_request_unauthorized_total 1",
		"gocampus_logout_total 0",
		`gocampus_request_latency_seconds_bucket{le="0.005"} 1`,
		`gocampus_request_latency_seconds_bucket{le="+Inf"} 36`,
		"gocampus_request_latency_seconds_count 36",
		"gocampus_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "gocampus_upload_latency_seconds") {
		t.Fatal("histograms missing from the snapshot must be omitted")
	}
}

func TestExportersReadOnlyTheirOwnSource(t *testing.T) {
	a := NewPrometheusExporterFromSource(fakeSource{snapshot: goCampus.MetricsSnapshot{
		Counters: map[goCampus.MetricID]uint64{goCampus.MetricLoginSuccess: 3},
	}})
	b := NewPrometheusExporterFromSource(fakeSource{snapshot: goCampus.MetricsSnapshot{
		Counters: map[goCampus.MetricID]uint64{goCampus.MetricLoginSuccess: 5},
	}})

	outA, outB := a.Render(), b.Render()
	if !strings.Contains(outA, "gocampus_login_success_total 3\n") || strings.Contains(outA, "total 5\n") {
		t.Fatalf("exporter a leaked another source:\n%s", outA)
	}
	if !strings.Contains(outB, "gocampus_login_success_total 5\n") {
		t.Fatalf("exporter b missing its own count:\n%s", outB)
	}
}

func TestHandlerServesLiveClient(t *testing.T) {
	mock, err := mockapi.New(mockapi.Config{})
	if err != nil {
		t.Fatalf("mockapi.New: %v", err)
	}
	srv := httptest.NewServer(mock.Router())
	defer srv.Close()

	cfg := goCampus.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	client, err := goCampus.New().WithConfig(cfg).WithHTTPClient(srv.Client()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer client.Close()

	client.Login(context.Background(), session.Credentials{Username: "alice", Password: "secret"})

	rec := httptest.NewRecorder()
	NewPrometheusExporter(client).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "gocampus_login_success_total 1") || !strings.Contains(body, "gocampus_request_success_total 1") {
		t.Fatalf("expected login and request counters, got:\n%s", body)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goCampus.MetricsSnapshot{
			Counters: map[goCampus.MetricID]uint64{
				goCampus.MetricLoginSuccess:         1000,
				goCampus.MetricLoginFailure:         40,
				goCampus.MetricRequestSuccess:       8000,
				goCampus.MetricRequestBusinessError: 10,
			},
			Histograms: map[goCampus.MetricID][]uint64{
				goCampus.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
				goCampus.MetricUploadLatency:  {0, 0, 1, 2, 3, 0, 0, 0},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
