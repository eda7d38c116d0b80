package tally

import (
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ryhazerus/tally/store"
	"go.uber.org/zap"
)

// Option configures the Service.
type Option func(*Service)

// WithStore sets the backing store for counters.
// If not provided, an in-memory store is used by default.
func WithStore(s store.Store) Option {
	return func(svc *Service) {
		svc.store = s
	}
}

// WithLogger sets the logger used for operation and failure logs.
func WithLogger(l *zap.Logger) Option {
	return func(svc *Service) {
		svc.logger = l
	}
}

// WithClock sets the clock that stamps CreatedAt and UpdatedAt.
func WithClock(c clock.Clock) Option {
	return func(svc *Service) {
		svc.clock = c
	}
}

// WithMetrics registers operation counters and latency histograms with r.
func WithMetrics(r prometheus.Registerer) Option {
	return func(svc *Service) {
		svc.metrics = newMetrics(r)
	}
}
