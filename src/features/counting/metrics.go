package counting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's prometheus collectors, shared by the bridge and
// the engine.
type Metrics struct {
	// Events counts raw filesystem notifications by outcome:
	// forwarded, ignored_op, ignored_path, deduped, dropped.
	Events *prometheus.CounterVec
	// Recounts counts counter invocations by outcome: ok, error, stale.
	Recounts *prometheus.CounterVec
	// Coalesced counts triggers collapsed into an already-pending recount.
	Coalesced prometheus.Counter

	FileWords  *prometheus.GaugeVec
	TotalWords prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordwatch",
			Name:      "events_total",
			Help:      "Filesystem notifications by outcome.",
		}, []string{"result"}),
		Recounts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wordwatch",
			Name:      "recounts_total",
			Help:      "Recount invocations by outcome.",
		}, []string{"result"}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wordwatch",
			Name:      "coalesced_triggers_total",
			Help:      "Change triggers collapsed into a pending recount.",
		}),
		FileWords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wordwatch",
			Name:      "file_words",
			Help:      "Current word count per watched file.",
		}, []string{"file"}),
		TotalWords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "wordwatch",
			Name:      "total_words",
			Help:      "Current aggregate word count.",
		}),
	}
}

// SetInitial seeds the gauges from the startup snapshot.
func (m *Metrics) SetInitial(snap Snapshot) {
	for _, f := range snap.Files {
		m.FileWords.WithLabelValues(f.Display).Set(float64(f.Count))
	}
	m.TotalWords.Set(float64(snap.Total))
}
