package smartbin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smartbin"

type Metrics struct {
	Cycles          *prometheus.CounterVec
	CycleSeconds    prometheus.Histogram
	Classifications *prometheus.CounterVec
	Fullness        *prometheus.GaugeVec
	Commands        *prometheus.CounterVec
	SensorTimeouts  prometheus.Counter
	UploadFailures  prometheus.Counter
	State           prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Press-triggered cycles by outcome.",
		}, []string{"outcome"}),
		CycleSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds",
			Help:    "Wall time of a press-triggered cycle.",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 60, 120, 300},
		}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "classifications_total",
			Help: "Classifier answers by label.",
		}, []string{"label"}),
		Fullness: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "fullness_percent",
			Help: "Last measured fill level per compartment.",
		}, []string{"category"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total",
			Help: "Remote commands by action (open, close, ignored, dropped, duplicate).",
		}, []string{"action"}),
		SensorTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sensor_timeouts_total",
			Help: "Ranging calls that never saw an echo edge.",
		}),
		UploadFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "upload_failures_total",
			Help: "Captures that could not be staged for classification.",
		}),
		State: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cycle_state",
			Help: "Current cycle state (0 idle, 1 capturing, 2 classifying, 3 actuating, 4 measuring, 5 reporting).",
		}),
	}
}

// ChannelStatus is what the health and metrics endpoints read from the
// telemetry channel.
type ChannelStatus interface {
	IsConnected() bool
	Pending() int
}

// RegisterChannelMetrics exposes broker connectivity and outbox depth.
func RegisterChannelMetrics(reg prometheus.Registerer, ch ChannelStatus) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "broker_connected",
		Help: "1 when the MQTT session is up.",
	}, func() float64 {
		if ch.IsConnected() {
			return 1
		}
		return 0
	})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "outbox_pending",
		Help: "Messages queued while the broker is unreachable.",
	}, func() float64 { return float64(ch.Pending()) })
}
