package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
)

const (
	namespace = "robot"
	subSystem = "control"
)

// Metrics exports samples as prometheus metrics.
type Metrics struct {
	ticks       prometheus.Counter
	tickPeriod  prometheus.Histogram
	readings    *prometheus.CounterVec
	distance    prometheus.Gauge
	ground      *prometheus.GaugeVec
	duty        *prometheus.GaugeVec
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name: "ticks_total",
			Help: "Total number of control loop iterations",
		}),
		tickPeriod: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name:    "tick_period_seconds",
			Help:    "Time between control loop iterations",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name: "range_readings_total",
			Help: "Front rangefinder readings by outcome",
		}, []string{"outcome"}),
		distance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name: "front_distance_cm",
			Help: "Last valid front distance",
		}),
		ground: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name: "ground_sensing",
			Help: "1 while the ground sensor reports the ground",
		}, []string{"side"}),
		duty: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name: "wheel_duty",
			Help: "Signed wheel duty cycle",
		}, []string{"side"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name: "behavior_state",
			Help: "1 for the active behavior state",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subSystem,
			Name: "behavior_transitions_total",
			Help: "Behavior state changes by target state",
		}, []string{"to"}),
	}
	reg.MustRegister(m.ticks, m.tickPeriod, m.readings, m.distance,
		m.ground, m.duty, m.state, m.transitions)
	return m
}

func (m *Metrics) Emit(s Sample) {
	m.ticks.Inc()
	if s.DT > 0 {
		m.tickPeriod.Observe(s.DT.Seconds())
	}
	m.readings.WithLabelValues(Outcome(s.Front)).Inc()
	if s.Front.Valid() {
		m.distance.Set(s.Front.DistanceCM)
	}
	m.ground.WithLabelValues("left").Set(boolToFloat(s.LeftGround))
	m.ground.WithLabelValues("right").Set(boolToFloat(s.RightGround))
	m.duty.WithLabelValues("left").Set(s.LeftDuty)
	m.duty.WithLabelValues("right").Set(s.RightDuty)
	for _, k := range []behavior.Kind{behavior.Off, behavior.Wander, behavior.TurnLeft, behavior.TurnRight} {
		m.state.WithLabelValues(k.String()).Set(boolToFloat(k == s.State.Kind))
	}
}

// Transition counts a behavior state change; register it with
// behavior.Controller.Notify.
func (m *Metrics) Transition(from, to behavior.State) {
	m.transitions.WithLabelValues(to.Kind.String()).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
