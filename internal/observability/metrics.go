package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "remind_api_requests_total", Help: "Admin API requests"},
		[]string{"endpoint", "status"},
	)
	SchedulesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "remind_schedules_generated_total", Help: "Reminder schedules created"},
	)
	Dispatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "remind_dispatch_total", Help: "Dispatch outcomes"},
		[]string{"result"},
	)
	DeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "remind_delivery_latency_seconds", Help: "Mail delivery latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, SchedulesGenerated, Dispatch, DeliveryLatency)
}
