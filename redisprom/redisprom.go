// Package redisprom provides a Prometheus implementation of the
// redisc.Metrics interface.
package redisprom

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/slotroute/redisc"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

type metrics struct {
	commandDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	attempts        prometheus.Histogram
	redirectsTotal  *prometheus.CounterVec
	connsTotal      *prometheus.CounterVec
	refreshesTotal  *prometheus.CounterVec
}

// NewMetrics creates the Prometheus metrics of a cluster client and
// registers them with reg.
func NewMetrics(reg prometheus.Registerer) redisc.Metrics {
	m := &metrics{
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redisc_command_duration_seconds",
			Help:    "Command latency in seconds, including retries",
			Buckets: defaultBuckets,
		}, []string{"command"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redisc_commands_total",
			Help: "Total number of commands executed",
		}, []string{"command", "success"}),

		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "redisc_command_attempts",
			Help:    "Number of attempts made per command",
			Buckets: []float64{1, 2, 3, 4, 5, 10, 20},
		}),

		redirectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redisc_redirects_total",
			Help: "Total number of MOVED, ASK and TRYAGAIN replies that led to a retry",
		}, []string{"kind"}),

		connsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redisc_connections_total",
			Help: "Total number of connection attempts",
		}, []string{"addr", "success"}),

		refreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "redisc_refreshes_total",
			Help: "Total number of slot mapping refreshes",
		}, []string{"success"}),
	}

	reg.MustRegister(
		m.commandDuration,
		m.commandsTotal,
		m.attempts,
		m.redirectsTotal,
		m.connsTotal,
		m.refreshesTotal,
	)
	return m
}

func (m *metrics) CommandDone(cmd string, attempts int, err error, d time.Duration) {
	m.commandDuration.WithLabelValues(cmd).Observe(d.Seconds())
	m.commandsTotal.WithLabelValues(cmd, success(err)).Inc()
	if attempts > 0 {
		m.attempts.Observe(float64(attempts))
	}
}

func (m *metrics) Redirected(kind string) {
	m.redirectsTotal.WithLabelValues(kind).Inc()
}

func (m *metrics) ConnCreated(addr string, err error) {
	m.connsTotal.WithLabelValues(addr, success(err)).Inc()
}

func (m *metrics) Refreshed(err error) {
	m.refreshesTotal.WithLabelValues(success(err)).Inc()
}

func success(err error) string {
	return strconv.FormatBool(err == nil)
}
