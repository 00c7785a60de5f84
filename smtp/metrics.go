package smtp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection lifecycle counters. Mode is "plain", "ssl" or "suppressed".
var (
	sessionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailconn",
		Subsystem: "smtp",
		Name:      "sessions_opened_total",
		Help:      "Sessions that reached the configured state.",
	}, []string{"mode"})

	sessionOpenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mailconn",
		Subsystem: "smtp",
		Name:      "session_open_failures_total",
		Help:      "Open attempts that failed and left the session terminal.",
	}, []string{"mode"})

	sessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mailconn",
		Subsystem: "smtp",
		Name:      "sessions_closed_total",
		Help:      "Sessions closed by the caller.",
	})
)

func connectionMode(cfg Config) string {
	switch {
	case cfg.SuppressSend:
		return "suppressed"
	case cfg.UseSSL:
		return "ssl"
	default:
		return "plain"
	}
}
