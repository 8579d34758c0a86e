package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_Initialization(t *testing.T) {
	pm := NewPrometheusMetrics()
	if pm == nil {
		t.Fatalf("NewPrometheusMetrics returned nil")
	}
	if pm.GetRegistry() == nil {
		t.Fatalf("GetRegistry returned nil")
	}

	before := pm.GetUptime()
	time.Sleep(10 * time.Millisecond)
	after := pm.GetUptime()
	if before >= after {
		t.Fatalf("expected uptime to increase, before=%v after=%v", before, after)
	}
}

func TestPrometheusMetrics_HTTPHandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.IncrementProbesTotal("quick", "success")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	handler := promhttp.HandlerFor(pm.GetRegistry(), promhttp.HandlerOpts{})
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "tellix_probe_invocations_total") {
		end := min(200, len(body))
		t.Fatalf("expected invocation metric in output, got: %s", body[:end])
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Errorf("expected go runtime collector in output")
	}
}

func TestPrometheusMetrics_ProbeMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementProbesTotal("quick", "success")
	pm.IncrementProbesTotal("quick", "success")
	pm.IncrementProbesTotal("full", "error")

	if count := testutil.CollectAndCount(pm.probesTotal); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
	if v := testutil.ToFloat64(pm.probesTotal.WithLabelValues("quick", "success")); v != 2 {
		t.Errorf("expected quick/success = 2, got %v", v)
	}

	pm.RecordProbeDuration("quick", 5*time.Second)
	pm.RecordProbeDuration("complete", 3*time.Second)
	if count := testutil.CollectAndCount(pm.probeDuration); count != 2 {
		t.Errorf("expected 2 duration series, got %d", count)
	}

	pm.IncrementProbeErrors("quick", "TIMEOUT")
	if v := testutil.ToFloat64(pm.probeErrors.WithLabelValues("quick", "TIMEOUT")); v != 1 {
		t.Errorf("expected 1 timeout error, got %v", v)
	}

	pm.AddRecords("quick", 3)
	pm.AddRecords("quick", 2)
	if v := testutil.ToFloat64(pm.recordsTotal.WithLabelValues("quick")); v != 5 {
		t.Errorf("expected 5 records, got %v", v)
	}

	pm.AddTargets("complete", 4)
	if v := testutil.ToFloat64(pm.targetsTotal.WithLabelValues("complete")); v != 4 {
		t.Errorf("expected 4 targets, got %v", v)
	}
}

func TestPrometheusMetrics_ActiveProbes(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ProbeStarted()
	pm.ProbeStarted()
	pm.ProbeFinished()

	if v := testutil.ToFloat64(pm.activeProbes); v != 1 {
		t.Errorf("expected 1 active probe, got %v", v)
	}
}

func TestPrometheusMetrics_CleanupAndJanitor(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementCleanupFailures()
	if v := testutil.ToFloat64(pm.cleanupFailures); v != 1 {
		t.Errorf("expected 1 cleanup failure, got %v", v)
	}

	pm.IncrementJanitorSweeps("success")
	pm.IncrementJanitorSweeps("error")
	pm.AddJanitorRemoved(3)

	if count := testutil.CollectAndCount(pm.janitorSweeps); count != 2 {
		t.Errorf("expected 2 sweep series, got %d", count)
	}
	if v := testutil.ToFloat64(pm.janitorRemoved); v != 3 {
		t.Errorf("expected 3 removed workspaces, got %v", v)
	}
}

func TestPrometheusMetrics_APIMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementHTTPRequests("POST", "/api/v1/probe", "200")
	pm.IncrementHTTPRequests("GET", "/api/v1/health", "200")
	pm.RecordHTTPDuration("POST", "/api/v1/probe", 120*time.Millisecond)

	if count := testutil.CollectAndCount(pm.httpRequests); count != 2 {
		t.Errorf("expected 2 request series, got %d", count)
	}
	if count := testutil.CollectAndCount(pm.httpDuration); count != 1 {
		t.Errorf("expected 1 duration series, got %d", count)
	}
}

func TestGetGlobalMetrics(t *testing.T) {
	first := GetGlobalMetrics()
	second := GetGlobalMetrics()
	if first == nil || first != second {
		t.Fatalf("expected a single global metrics instance")
	}
}
