// Package wire declares the lower-layer surface a super-stream producer and
// consumer depend on: publisher/subscriber lifecycle, chunk framing, and
// connection/metadata signaling. A real client's TCP connection and binary
// command codec implement Transport; this package also ships an in-memory
// fake (MemoryTransport) for tests.
package wire

import "context"

// OffsetKind selects how a consumer's starting point in a stream is
// resolved.
type OffsetKind int

const (
	OffsetNext OffsetKind = iota
	OffsetFirst
	OffsetLast
	OffsetAbsolute
	OffsetTimestamp
)

// OffsetSpec is a consumer's requested starting point. Offset is only
// meaningful when Kind is OffsetAbsolute; Timestamp only when
// OffsetTimestamp.
type OffsetSpec struct {
	Kind      OffsetKind
	Offset    uint64
	Timestamp int64
}

// SubscriptionConfig describes a consumer's subscribe request.
type SubscriptionConfig struct {
	Stream     string
	Offset     OffsetSpec
	Properties map[string]string
}

// Chunk is one broker delivery: ChunkID is the absolute offset of its
// first logical record, NumRecords the total record count once any
// sub-entry batches inside Data are expanded, and Data the still-framed
// entry bytes DecodeChunk walks.
type Chunk struct {
	ChunkID    uint64
	Timestamp  int64
	NumRecords uint32
	Data       []byte
}

// DecodedRecord is one message extracted from a Chunk, tagged with its
// absolute stream offset.
type DecodedRecord struct {
	Offset uint64
	Data   []byte
}

// Entry is a single already wire-framed producer entry: either a standard
// entry (RecordCount 1) or a sub-entry batch (RecordCount > 1).
// PublishingID correlates it back to a confirm, not part of the framed
// bytes themselves.
type Entry struct {
	PublishingID uint64
	Framed       []byte
	RecordCount  uint32
}

// ResponseCode mirrors the broker's per-operation status code.
type ResponseCode uint16

const (
	ResponseOK                    ResponseCode = 0x01
	ResponseStreamDoesNotExist    ResponseCode = 0x02
	ResponsePublisherDoesNotExist ResponseCode = 0x08
)

// MetadataUpdate signals a stream's topology changed: its leader moved or
// it was deleted out from under an open producer or consumer.
type MetadataUpdate struct {
	Stream string
	Code   uint16
}

const MetadataStreamNotAvailable uint16 = 0x02

// DeliverHandler receives one decoded Chunk for a subscription.
type DeliverHandler func(subscriberID byte, chunk Chunk)

// ConsumerUpdateHandler is invoked when the broker asks this subscription
// to become (or stop being) the single active consumer for its group.
type ConsumerUpdateHandler func(active bool) error

// Transport is the broker connection surface rstream depends on.
type Transport interface {
	DeclarePublisher(ctx context.Context, stream, reference string) (publisherID byte, err error)
	SendEntries(ctx context.Context, publisherID byte, entries []Entry) (ResponseCode, error)
	DeletePublisher(ctx context.Context, publisherID byte) error
	QueryPublisherSequence(ctx context.Context, stream, reference string) (uint64, error)

	Subscribe(ctx context.Context, cfg SubscriptionConfig, credit uint16, deliver DeliverHandler, update ConsumerUpdateHandler) (subscriberID byte, err error)
	Credit(ctx context.Context, subscriberID byte, n uint16) error
	Unsubscribe(ctx context.Context, subscriberID byte) error
	StoreOffset(ctx context.Context, reference, stream string, offset uint64) error

	QueryPartitions(ctx context.Context, superStream string) ([]string, error)

	// ConnectionClosed and MetadataUpdates are persistent signal channels
	// for the lifetime of the transport; reconnect.go's metadataWatcher
	// selects over both.
	ConnectionClosed() <-chan error
	MetadataUpdates() <-chan MetadataUpdate
}
