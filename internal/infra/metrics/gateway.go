package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(wsConnections, outboundDroppedTotal, insightsTotal, eventBatchesLimited) }

var wsConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "gateway_connections",
		Help: "Currently open websocket connections.",
	},
)

var outboundDroppedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_outbound_dropped_total",
		Help: "Outbound events dropped, labeled by reason (no_connection, slow_client).",
	},
	[]string{"reason"},
)

var insightsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gateway_insights_total",
		Help: "Insights delivered from the interaction analyzer.",
	},
)

var eventBatchesLimited = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gateway_event_batches_limited_total",
		Help: "Interaction event batches rejected by the per-session rate limit.",
	},
)

func IncConnections()          { wsConnections.Inc() }
func DecConnections()          { wsConnections.Dec() }
func IncDropped(reason string) { outboundDroppedTotal.WithLabelValues(norm(reason)).Inc() }
func IncInsights()             { insightsTotal.Inc() }
func IncBatchLimited()         { eventBatchesLimited.Inc() }
