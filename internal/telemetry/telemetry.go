// Package telemetry exposes the logging and metrics capabilities server
// components depend on, keeping the simulation free of direct prometheus
// imports.
package telemetry

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger is the printf-style surface components use for operational notes
// that do not warrant a structured event.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts a function into the Logger interface.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Metrics is the process-wide instrument set. All methods tolerate a nil
// receiver so tests can pass nothing.
type Metrics struct {
	roomsActive     prometheus.Gauge
	playersActive   prometheus.Gauge
	ticksTotal      *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	broadcastBytes  prometheus.Counter
	inputsDropped   prometheus.Counter
	actionsRejected *prometheus.CounterVec
	roomsSwept      prometheus.Counter
}

// NewMetrics registers the instrument set on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "partyhall_rooms_active",
			Help: "Number of live rooms.",
		}),
		playersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "partyhall_players_active",
			Help: "Number of joined player connections.",
		}),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partyhall_ticks_total",
			Help: "Simulation ticks executed, by mode.",
		}, []string{"mode"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "partyhall_tick_duration_seconds",
			Help:    "Wall-clock cost of one simulation tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		broadcastBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "partyhall_broadcast_bytes_total",
			Help: "Snapshot bytes written to sessions.",
		}),
		inputsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "partyhall_inputs_dropped_total",
			Help: "Input frames discarded because a session queue was full.",
		}),
		actionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partyhall_actions_rejected_total",
			Help: "Attack declarations refused, by reason.",
		}, []string{"reason"}),
		roomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "partyhall_rooms_swept_total",
			Help: "Idle lobby rooms reclaimed by the sweeper.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.roomsActive, m.playersActive, m.ticksTotal, m.tickDuration,
			m.broadcastBytes, m.inputsDropped, m.actionsRejected, m.roomsSwept,
		)
	}
	return m
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.roomsActive.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.roomsActive.Dec()
	}
}

func (m *Metrics) PlayerJoined() {
	if m != nil {
		m.playersActive.Inc()
	}
}

func (m *Metrics) PlayerLeft() {
	if m != nil {
		m.playersActive.Dec()
	}
}

func (m *Metrics) ObserveTick(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(mode).Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) AddBroadcastBytes(n int) {
	if m != nil && n > 0 {
		m.broadcastBytes.Add(float64(n))
	}
}

func (m *Metrics) InputDropped() {
	if m != nil {
		m.inputsDropped.Inc()
	}
}

func (m *Metrics) ActionRejected(reason string) {
	if m != nil {
		m.actionsRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RoomSwept() {
	if m != nil {
		m.roomsSwept.Inc()
	}
}
