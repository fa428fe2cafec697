package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clickrace"

// Recorder holds the service's collectors. A nil *Recorder records nothing, so
// components can be built without metrics in tests.
type Recorder struct {
	clicks       prometheus.Counter
	gamesStarted prometheus.Counter
	gamesEnded   prometheus.Counter
	deliveries   *prometheus.CounterVec
	connections  prometheus.Gauge
	actions      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		clicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Clicks counted across all rooms.",
		}),
		gamesStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Rooms that moved from waiting to playing.",
		}),
		gamesEnded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_ended_total",
			Help:      "Rooms that moved from playing to ended.",
		}),
		deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Per-recipient broadcast deliveries by result.",
		}, []string{"result"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Inbound actions by name and outcome.",
		}, []string{"action", "outcome"}),
	}
}

func (r *Recorder) Click() {
	if r == nil {
		return
	}
	r.clicks.Inc()
}

func (r *Recorder) GameStarted() {
	if r == nil {
		return
	}
	r.gamesStarted.Inc()
}

func (r *Recorder) GameEnded() {
	if r == nil {
		return
	}
	r.gamesEnded.Inc()
}

func (r *Recorder) Delivery(ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.deliveries.WithLabelValues(result).Inc()
}

func (r *Recorder) ConnectionOpened() {
	if r == nil {
		return
	}
	r.connections.Inc()
}

func (r *Recorder) ConnectionClosed() {
	if r == nil {
		return
	}
	r.connections.Dec()
}

// Action counts one handled inbound action; outcome is "ok" or an error kind.
func (r *Recorder) Action(action, outcome string) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(action, outcome).Inc()
}
