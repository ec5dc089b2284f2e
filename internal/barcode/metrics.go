package barcode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decodeAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codereader_decode_attempts_total",
		Help: "Total number of decode passes",
	},
	[]string{"attempt", "result"}, // attempt: direct, rotated; result: hit, miss
)

func recordAttempt(a Attempt, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	decodeAttemptsTotal.WithLabelValues(a.String(), result).Inc()
}
