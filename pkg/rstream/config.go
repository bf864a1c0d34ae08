package rstream

import (
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

// OffsetSpec is a consumer's requested starting point in a stream.
type OffsetSpec = wire.OffsetSpec

// OffsetKind selects how an OffsetSpec is resolved.
type OffsetKind = wire.OffsetKind

const (
	OffsetNext      = wire.OffsetNext
	OffsetFirst     = wire.OffsetFirst
	OffsetLast      = wire.OffsetLast
	OffsetAbsolute  = wire.OffsetAbsolute
	OffsetTimestamp = wire.OffsetTimestamp
)

// ProducerConfig configures a SuperStreamProducer. SuperStream and Routing
// are required and are validated synchronously, before any network call,
// so a caller gets a ConfigError immediately
// rather than after a failed round trip.
type ProducerConfig struct {
	SuperStream        string
	Routing            RoutingStrategy
	Reference          string
	ClientProvidedName string
	ConfirmHandler     ConfirmHandler
}

func (c ProducerConfig) validate() error {
	if c.SuperStream == "" {
		return ErrConfig("super stream name is required")
	}
	if c.Routing == nil {
		return ErrConfig("routing strategy is required")
	}
	return nil
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Stream string

	// SuperStream is set when Stream is one partition of a super-stream,
	// so the single-active-consumer property can be advertised correctly.
	SuperStream string

	Offset          OffsetSpec
	Handler         MessageHandler
	MetadataHandler func(stream string, code uint16)

	Reference            string
	SingleActiveConsumer bool
}

func (c ConsumerConfig) validate() error {
	if c.Stream == "" {
		return ErrConfig("stream name is required")
	}
	if c.Handler == nil {
		return ErrConfig("message handler is required")
	}
	if c.SingleActiveConsumer && c.Reference == "" {
		return ErrConfig("reference is required for single active consumer")
	}
	return nil
}
