package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/switchboard/pkg/command"
)

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "switchboard",
		Name:      "commands_total",
		Help:      "Commands dispatched through the gateway, by outcome.",
	}, []string{"command", "outcome"})

	metricRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "switchboard",
		Name:      "http_request_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	metricListening = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "switchboard",
		Name:      "gateway_listening",
		Help:      "Whether the gateway listener is bound (1) or not (0).",
	})
)

func setListening(up bool) {
	if up {
		metricListening.Set(1)
		return
	}
	metricListening.Set(0)
}

// observeCommand counts a dispatch. Names outside the catalog collapse to
// one label so callers cannot grow metric cardinality.
func observeCommand(name string, success bool, _ time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	if !command.Known(name) {
		name = "(unknown)"
	}
	metricCommands.WithLabelValues(name, outcome).Inc()
}

func observeRequest(method, route string, elapsed time.Duration) {
	metricRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
