package converter

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a converter. A nil *Metrics
// records nothing.
type Metrics struct {
	buffersIn    prometheus.Counter
	buffersOut   prometheus.Counter
	bytesOut     prometheus.Counter
	negotiations *prometheus.CounterVec // by media type and result
	capsUpdates  prometheus.Counter     // src caps publications
	errors       *prometheus.CounterVec // by innermost kind
}

// NewMetrics creates the converter collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		buffersIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tensorconv",
			Subsystem: "converter",
			Name:      "buffers_in_total",
			Help:      "Total number of buffers received",
		}),
		buffersOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tensorconv",
			Subsystem: "converter",
			Name:      "buffers_out_total",
			Help:      "Total number of tensor buffers pushed downstream",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tensorconv",
			Subsystem: "converter",
			Name:      "bytes_out_total",
			Help:      "Total number of tensor bytes pushed downstream",
		}),
		negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tensorconv",
			Subsystem: "converter",
			Name:      "negotiations_total",
			Help:      "Caps negotiations by input media type and result",
		}, []string{"media", "result"}),
		capsUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tensorconv",
			Subsystem: "converter",
			Name:      "caps_updates_total",
			Help:      "Total number of output caps publications",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tensorconv",
			Subsystem: "converter",
			Name:      "errors_total",
			Help:      "Converter errors by the kind of their cause",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{
		m.buffersIn, m.buffersOut, m.bytesOut, m.negotiations, m.capsUpdates, m.errors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) bufferIn() {
	if m != nil {
		m.buffersIn.Inc()
	}
}

func (m *Metrics) bufferOut(size int) {
	if m != nil {
		m.buffersOut.Inc()
		m.bytesOut.Add(float64(size))
	}
}

func (m *Metrics) negotiation(media, result string) {
	if m != nil {
		m.negotiations.WithLabelValues(media, result).Inc()
	}
}

func (m *Metrics) capsUpdate() {
	if m != nil {
		m.capsUpdates.Inc()
	}
}

func (m *Metrics) recordError(err error) {
	if m != nil {
		m.errors.WithLabelValues(CauseOf(err).String()).Inc()
	}
}
