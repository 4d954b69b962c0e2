package metrics

import "time"

// Conversion statuses
const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusCodec   = "codec"
	StatusError   = "error"
)

// ConversionObserved records a conversion attempt and, on success, its duration.
func ConversionObserved(kind, status string, duration time.Duration) {
	ConversionsTotal.WithLabelValues(kind, status).Inc()
	if status == StatusSuccess {
		ConversionDuration.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// QuotaDecision records the result of the quota gate: "premium", "admitted" or "denied".
func QuotaDecision(result string) {
	QuotaDecisionsTotal.WithLabelValues(result).Inc()
}

// PaymentOrder records an order creation attempt.
func PaymentOrder(status string) {
	PaymentOrdersTotal.WithLabelValues(status).Inc()
}

// PaymentVerification records a confirmation check: "verified", "rejected" or "error".
func PaymentVerification(status string) {
	PaymentVerificationsTotal.WithLabelValues(status).Inc()
}
