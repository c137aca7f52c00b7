package mqtt

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bambulink_mqtt_messages_total",
			Help: "Messages received from the printer, by kind.",
		},
		[]string{"kind"},
	)
	messagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bambulink_mqtt_messages_dropped_total",
			Help: "Malformed messages dropped.",
		},
	)
	reconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bambulink_mqtt_reconnect_attempts_total",
			Help: "Session dial attempts after the first.",
		},
	)
	publishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bambulink_mqtt_publishes_total",
			Help: "Commands published, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(messagesReceived)
	prometheus.MustRegister(messagesDropped)
	prometheus.MustRegister(reconnectAttempts)
	prometheus.MustRegister(publishes)
}
