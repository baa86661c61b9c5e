// Package metrics holds the Prometheus instruments of the display service.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	instructionsReceived   *prometheus.CounterVec
	instructionsRejected   *prometheus.CounterVec
	instructionsSuppressed prometheus.Counter
	instructionsDropped    prometheus.Counter
	modeTransitions        *prometheus.CounterVec
	framesCommitted        prometheus.Counter
	renderErrors           prometheus.Counter
	pushDegraded           prometheus.Gauge
	weatherAge             prometheus.Gauge
	weatherFetchErrors     prometheus.Counter
	rtcDrift               prometheus.Gauge
}

// New creates the instruments on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		instructionsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixd_instructions_received_total",
			Help: "Instructions accepted by the reconciler, by source.",
		}, []string{"source"}),
		instructionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixd_instructions_rejected_total",
			Help: "Payloads that failed to parse, by reason.",
		}, []string{"reason"}),
		instructionsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matrixd_instructions_suppressed_total",
			Help: "Instructions dropped as duplicates of the previous instruction.",
		}),
		instructionsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matrixd_instructions_dropped_total",
			Help: "Queued instructions discarded because the queue was full.",
		}),
		modeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixd_mode_transitions_total",
			Help: "Display mode transitions, by target mode.",
		}, []string{"mode"}),
		framesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matrixd_frames_committed_total",
			Help: "Frames pushed to the matrix.",
		}),
		renderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matrixd_render_errors_total",
			Help: "Frame commits that failed.",
		}),
		pushDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matrixd_push_degraded",
			Help: "1 when the push transport has been silent past its liveness window.",
		}),
		weatherAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matrixd_weather_age_seconds",
			Help: "Age of the latest weather snapshot.",
		}),
		weatherFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matrixd_weather_fetch_errors_total",
			Help: "Failed weather feed requests.",
		}),
		rtcDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matrixd_rtc_drift_seconds",
			Help: "Last observed difference between the RTC and the system clock.",
		}),
	}

	m.registry.MustRegister(
		m.instructionsReceived,
		m.instructionsRejected,
		m.instructionsSuppressed,
		m.instructionsDropped,
		m.modeTransitions,
		m.framesCommitted,
		m.renderErrors,
		m.pushDegraded,
		m.weatherAge,
		m.weatherFetchErrors,
		m.rtcDrift,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) InstructionReceived(source string) {
	if m != nil {
		m.instructionsReceived.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) InstructionRejected(reason string) {
	if m != nil {
		m.instructionsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) InstructionSuppressed() {
	if m != nil {
		m.instructionsSuppressed.Inc()
	}
}

func (m *Metrics) InstructionDropped() {
	if m != nil {
		m.instructionsDropped.Inc()
	}
}

func (m *Metrics) ModeTransition(mode string) {
	if m != nil {
		m.modeTransitions.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) FrameCommitted() {
	if m != nil {
		m.framesCommitted.Inc()
	}
}

func (m *Metrics) RenderError() {
	if m != nil {
		m.renderErrors.Inc()
	}
}

func (m *Metrics) SetPushDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.pushDegraded.Set(1)
	} else {
		m.pushDegraded.Set(0)
	}
}

func (m *Metrics) SetWeatherAge(seconds float64) {
	if m != nil {
		m.weatherAge.Set(seconds)
	}
}

func (m *Metrics) WeatherFetchError() {
	if m != nil {
		m.weatherFetchErrors.Inc()
	}
}

func (m *Metrics) SetRTCDrift(seconds float64) {
	if m != nil {
		m.rtcDrift.Set(seconds)
	}
}
