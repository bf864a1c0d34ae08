package rstream

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/system-design-library/pkg/resilience"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
)

// ResilientProducerConfig configures ResilientSuperStreamProducer's
// circuit breaker and retry behavior.
type ResilientProducerConfig struct {
	CircuitBreakerEnabled   bool
	CircuitBreakerThreshold int64
	CircuitBreakerTimeout   time.Duration

	RetryEnabled     bool
	RetryMaxAttempts int
	RetryBackoff     time.Duration
}

// ResilientSuperStreamProducer wraps a SuperStreamProducer with a circuit
// breaker and retry, the same wrap-and-delegate shape
// pkg/messaging/resilient.go uses for ResilientBroker.
type ResilientSuperStreamProducer struct {
	next     *SuperStreamProducer
	cb       *resilience.CircuitBreaker
	retryCfg resilience.RetryConfig
}

func NewResilientSuperStreamProducer(next *SuperStreamProducer, cfg ResilientProducerConfig) *ResilientSuperStreamProducer {
	rp := &ResilientSuperStreamProducer{next: next}

	if cfg.CircuitBreakerEnabled {
		rp.cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "rstream",
			FailureThreshold: cfg.CircuitBreakerThreshold,
			SuccessThreshold: 2,
			Timeout:          cfg.CircuitBreakerTimeout,
		})
	}
	if cfg.RetryEnabled {
		rp.retryCfg = resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		}
	}
	return rp
}

func (rp *ResilientSuperStreamProducer) execute(ctx context.Context, fn resilience.Executor) error {
	operation := fn
	if rp.cb != nil {
		cbFn := operation
		operation = func(ctx context.Context) error {
			return rp.cb.Execute(ctx, cbFn)
		}
	}
	if rp.retryCfg.MaxAttempts > 0 {
		return resilience.Retry(ctx, rp.retryCfg, operation)
	}
	return operation(ctx)
}

func (rp *ResilientSuperStreamProducer) Send(ctx context.Context, publishingID uint64, msg *Message) error {
	return rp.execute(ctx, func(ctx context.Context) error {
		return rp.next.Send(ctx, publishingID, msg)
	})
}

func (rp *ResilientSuperStreamProducer) BatchSend(ctx context.Context, batch []PublishingMessage) error {
	return rp.execute(ctx, func(ctx context.Context) error {
		return rp.next.BatchSend(ctx, batch)
	})
}

func (rp *ResilientSuperStreamProducer) SubEntrySend(ctx context.Context, publishingID uint64, msgs []*Message, compressionType compression.Type) error {
	return rp.execute(ctx, func(ctx context.Context) error {
		return rp.next.SubEntrySend(ctx, publishingID, msgs, compressionType)
	})
}

func (rp *ResilientSuperStreamProducer) GetLastPublishingID(ctx context.Context) uint64 {
	return rp.next.GetLastPublishingID(ctx)
}

func (rp *ResilientSuperStreamProducer) IsOpen() bool {
	return rp.next.IsOpen()
}

func (rp *ResilientSuperStreamProducer) Close(ctx context.Context) error {
	return rp.next.Close(ctx)
}
