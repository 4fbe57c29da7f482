package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultHandled   = "handled"
	resultFailed    = "handler_error"
	resultMalformed = "malformed"
)

var (
	consumedMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steppr",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka records read by topic, event type and result.",
	}, []string{"topic", "event_type", "result"})

	consumerLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "steppr",
		Subsystem: "consumer",
		Name:      "lag_seconds",
		Help:      "Age of the last handled record per topic at the time it was committed.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(consumedMessages, consumerLag)
}

func recordResult(topic, eventType, result string) {
	consumedMessages.WithLabelValues(topic, eventType, result).Inc()
}

func recordHandled(msg Message, now time.Time) {
	recordResult(msg.Topic, msg.EventType, resultHandled)
	if !msg.Timestamp.IsZero() {
		consumerLag.WithLabelValues(msg.Topic).Set(now.Sub(msg.Timestamp).Seconds())
	}
}
