package rstream

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

// MessageProperties carries the small set of broker-meaningful fields a
// message can set, independent of its opaque payload.
type MessageProperties struct {
	MessageID string
}

// Message is the unit this package sends and receives. The payload is
// opaque to rstream; only a RoutingStrategy looks inside it, via its own
// Extractor, to compute a routing key.
type Message struct {
	Payload               []byte
	Properties            MessageProperties
	ApplicationProperties map[string]string
	Timestamp             time.Time
}

// PublishingMessage pairs a caller-assigned publishing id with the
// message it confirms, the unit BatchSend and SubEntrySend operate on.
type PublishingMessage struct {
	PublishingID uint64
	Message      *Message
}

// ResponseCode is the broker's per-operation status, reported back to the
// confirm handler alongside the publishing id it applies to.
type ResponseCode = wire.ResponseCode

const (
	ResponseOK                    = wire.ResponseOK
	ResponseStreamDoesNotExist    = wire.ResponseStreamDoesNotExist
	ResponsePublisherDoesNotExist = wire.ResponsePublisherDoesNotExist
)

// Confirmation reports the outcome of one publishing id.
type Confirmation struct {
	PublishingID uint64
	Code         ResponseCode
}

// PartitionConfirmation tags a Confirmation with the partition it was
// published to, the shape SuperStreamProducer's confirm handler receives.
type PartitionConfirmation struct {
	Partition    string
	Confirmation Confirmation
}

// ConfirmHandler is invoked once per publishing id as the broker
// acknowledges it.
type ConfirmHandler func(partition string, c Confirmation)

// MessageHandler is invoked once per decoded record delivered to a
// Consumer.
type MessageHandler func(ctx context.Context, consumer *Consumer, msg *Message) error

// RoutingStrategy computes the destination partitions for a message out
// of the super-stream's currently known partition list. Implementations
// live in pkg/rstream/routing; this package only declares the shape they
// satisfy structurally, to avoid an import cycle (routing needs Message).
type RoutingStrategy interface {
	Route(msg *Message, partitions []string) ([]string, error)
}
