package latpay

import (
	"time"

	"github.com/vitwit/latpay/logger"
	"github.com/vitwit/latpay/metrics"
	"github.com/vitwit/latpay/outcome"
)

type Option func(*Orchestrator)

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = r
	}
}

func WithNotifier(n outcome.Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithTimeout bounds read-only chain calls, overriding the config's
// ReadTimeout.
func WithTimeout(t time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeout = t
	}
}
