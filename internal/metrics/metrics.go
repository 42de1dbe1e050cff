package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "yoketrip"

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend API requests by endpoint and status code (0 = transport error).",
		},
		[]string{"endpoint", "code"},
	)

	boardRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_refreshes_total",
			Help:      "Booking list refetches by trigger.",
		},
		[]string{"reason"},
	)

	realtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Socket events received by name.",
		},
		[]string{"event"},
	)

	bookingActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_actions_total",
			Help:      "Accept/reject/cancel dispatches by outcome.",
		},
		[]string{"action", "result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, boardRefreshes, realtimeEvents, bookingActions)
	})
}

func IncAPI(endpoint string, code int) {
	apiRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func IncRefresh(reason string) {
	boardRefreshes.WithLabelValues(reason).Inc()
}

func IncRealtimeEvent(event string) {
	realtimeEvents.WithLabelValues(event).Inc()
}

func IncAction(action, result string) {
	bookingActions.WithLabelValues(action, result).Inc()
}
