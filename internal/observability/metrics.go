package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimulationCollector bundles Prometheus metrics for the view-factor
// pipeline: external-tool invocations, wave durations per stage, and the
// current registry shape.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	Invocations   *prometheus.CounterVec
	WaveDurations *prometheus.HistogramVec

	RegistrySurfaces   prometheus.Gauge
	PendingInvocations prometheus.Gauge
}

// Pipeline stage labels for WaveDurations.
const (
	StageVisibility = "visibility"
	StageInputs     = "inputs"
	StageSimulation = "simulation"
	StageIngestion  = "ingestion"
)

// NewSimulationCollector registers simulation Prometheus metrics against
// the provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	invocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radvf_invocations_total",
		Help: "Total number of external ray-tracing invocations, labeled by tool and outcome.",
	}, []string{"tool", "outcome"})
	invocations, err := registerCounterVec(reg, invocations, "radvf_invocations_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radvf_wave_duration_seconds",
		Help:    "Duration of one batched pipeline wave, labeled by stage.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	}, []string{"stage"})
	durations, err = registerHistogramVec(reg, durations, "radvf_wave_duration_seconds")
	if err != nil {
		return nil, err
	}

	surfaces, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radvf_registry_surfaces",
		Help: "Current number of surfaces held by the registry.",
	}), "radvf_registry_surfaces")
	if err != nil {
		return nil, err
	}
	pending, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radvf_pending_invocations",
		Help: "Current number of queued external-tool invocations.",
	}), "radvf_pending_invocations")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:           gatherer,
		Invocations:        invocations,
		WaveDurations:      durations,
		RegistrySurfaces:   surfaces,
		PendingInvocations: pending,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveInvocation records one external-tool run.
func (c *SimulationCollector) ObserveInvocation(tool string, err error) {
	if c == nil || c.Invocations == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Invocations.WithLabelValues(tool, outcome).Inc()
}

// ObserveWave records the duration of one pipeline stage.
func (c *SimulationCollector) ObserveWave(stage string, d time.Duration) {
	if c == nil || c.WaveDurations == nil {
		return
	}
	c.WaveDurations.WithLabelValues(stage).Observe(d.Seconds())
}

// SetRegistryCounts satisfies the registry's metrics recorder hook so
// surface and queue gauges follow its mutators.
func (c *SimulationCollector) SetRegistryCounts(surfaces, pendingInvocations int) {
	if c == nil {
		return
	}
	if c.RegistrySurfaces != nil {
		c.RegistrySurfaces.Set(float64(surfaces))
	}
	if c.PendingInvocations != nil {
		c.PendingInvocations.Set(float64(pendingInvocations))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
