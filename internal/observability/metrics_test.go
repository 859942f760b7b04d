package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveInvocationLabelsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	collector.ObserveInvocation("rfluxmtx", nil)
	collector.ObserveInvocation("rfluxmtx", nil)
	collector.ObserveInvocation("rfluxmtx", errors.New("exit status 1"))
	collector.ObserveInvocation("oconv", nil)

	if got := testutil.ToFloat64(collector.Invocations.WithLabelValues("rfluxmtx", "ok")); got != 2 {
		t.Fatalf("radvf_invocations_total{rfluxmtx,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Invocations.WithLabelValues("rfluxmtx", "error")); got != 1 {
		t.Fatalf("radvf_invocations_total{rfluxmtx,error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Invocations.WithLabelValues("oconv", "ok")); got != 1 {
		t.Fatalf("radvf_invocations_total{oconv,ok} = %v, want 1", got)
	}
}

func TestObserveWaveRecordsDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}

	collector.ObserveWave(StageSimulation, 120*time.Millisecond)
	collector.ObserveWave(StageSimulation, 80*time.Millisecond)

	if count := histogramSampleCount(t, reg, "radvf_wave_duration_seconds", map[string]string{
		"stage": StageSimulation,
	}); count != 2 {
		t.Fatalf("radvf_wave_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestMetricsHandlerExposesRegistryGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("NewSimulationCollector: %v", err)
	}
	collector.SetRegistryCounts(7, 12)
	collector.ObserveInvocation("rfluxmtx", nil)
	collector.ObserveWave(StageIngestion, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"radvf_invocations_total",
		"radvf_wave_duration_seconds",
		"radvf_registry_surfaces",
		"radvf_pending_invocations",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
	if !strings.Contains(body, "radvf_registry_surfaces 7") || !strings.Contains(body, "radvf_pending_invocations 12") {
		t.Fatalf("/metrics output missing registry gauge values: %s", body)
	}
}

func TestNewSimulationCollectorTolerateReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("first NewSimulationCollector: %v", err)
	}
	second, err := NewSimulationCollector(reg)
	if err != nil {
		t.Fatalf("second NewSimulationCollector: %v", err)
	}
	if first.Invocations != second.Invocations {
		t.Fatalf("re-registration must return the existing collector")
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
