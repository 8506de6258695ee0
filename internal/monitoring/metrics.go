package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the Prometheus series this service exposes at /metrics.
// Grouped by the component that owns them: connection lifecycle,
// the RPC command surface, and the ingestion scheduler.
var (
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_rate_ws_connections_total",
		Help: "Total WebSocket connections accepted",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "exchange_rate_ws_connections_active",
		Help: "Current number of open WebSocket connections",
	})

	CommandsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_ws_commands_received_total",
		Help: "Commands received by action",
	}, []string{"action"})

	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_ws_command_errors_total",
		Help: "Commands rejected, by reason",
	}, []string{"reason"})

	PointsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_rate_ws_points_emitted_total",
		Help: "Live point envelopes emitted to subscribed clients",
	})

	IngestionTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_ingestion_ticks_total",
		Help: "Ingestion worker ticks, by outcome",
	}, []string{"outcome"})

	IngestionPointsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exchange_rate_ingestion_points_inserted_total",
		Help: "Points newly inserted into the store by the ingestion scheduler",
	})

	UpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_rate_upstream_errors_total",
		Help: "Upstream fetch failures, by error class",
	}, []string{"class"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ConnectionsActive,
		CommandsReceived,
		CommandErrors,
		PointsEmitted,
		IngestionTicks,
		IngestionPointsInserted,
		UpstreamErrors,
	)
}

// Handler serves the Prometheus exposition format at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
