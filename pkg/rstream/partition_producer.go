package rstream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chris-alexander-pop/system-design-library/pkg/errors"
	"github.com/chris-alexander-pop/system-design-library/pkg/logger"
	"github.com/chris-alexander-pop/system-design-library/pkg/resilience"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

type producerState int32

const (
	producerCreating producerState = iota
	producerOpen
	producerReconnecting
	producerClosed
)

// PartitionProducer owns one publisher against one partition stream. Its
// state moves creating -> open -> (reconnecting <-> open) -> closed;
// Send/BatchSend/SubEntrySend refuse to run once reconnecting or closed.
type PartitionProducer struct {
	partition   string
	reference   string
	transport   wire.Transport
	compressors *compression.Registry
	confirm     ConfirmHandler

	state atomic.Int32

	mu          sync.Mutex
	publisherID byte
}

func newPartitionProducer(ctx context.Context, transport wire.Transport, partition, reference string, compressors *compression.Registry, confirm ConfirmHandler) (*PartitionProducer, error) {
	p := &PartitionProducer{
		partition:   partition,
		reference:   reference,
		transport:   transport,
		compressors: compressors,
		confirm:     confirm,
	}
	p.state.Store(int32(producerCreating))
	if err := p.declare(ctx); err != nil {
		p.state.Store(int32(producerClosed))
		return nil, err
	}
	p.state.Store(int32(producerOpen))
	return p, nil
}

func (p *PartitionProducer) declare(ctx context.Context) error {
	id, err := p.transport.DeclarePublisher(ctx, p.partition, p.reference)
	if err != nil {
		return errors.Wrap(err, "failed to declare publisher for partition "+p.partition)
	}
	p.mu.Lock()
	p.publisherID = id
	p.mu.Unlock()
	return nil
}

func (p *PartitionProducer) stateValue() producerState {
	return producerState(p.state.Load())
}

// IsOpen reports whether the producer can currently accept sends.
func (p *PartitionProducer) IsOpen() bool {
	return p.stateValue() == producerOpen
}

func (p *PartitionProducer) checkSendable() error {
	switch p.stateValue() {
	case producerClosed:
		return ErrAlreadyDisposed()
	case producerReconnecting, producerCreating:
		return ErrNotConnected(p.partition)
	}
	return nil
}

// Send publishes a single message under publishingID.
func (p *PartitionProducer) Send(ctx context.Context, publishingID uint64, msg *Message) error {
	if err := p.checkSendable(); err != nil {
		return err
	}
	framed := wire.EncodeStandardEntry(msg.Payload)
	return p.sendEntries(ctx, []wire.Entry{{PublishingID: publishingID, Framed: framed, RecordCount: 1}})
}

// BatchSend publishes a batch of independently publishing-id'd messages in
// one frame, preserving their relative order.
func (p *PartitionProducer) BatchSend(ctx context.Context, batch []PublishingMessage) error {
	if err := p.checkSendable(); err != nil {
		return err
	}
	entries := make([]wire.Entry, len(batch))
	for i, pm := range batch {
		entries[i] = wire.Entry{PublishingID: pm.PublishingID, Framed: wire.EncodeStandardEntry(pm.Message.Payload), RecordCount: 1}
	}
	return p.sendEntries(ctx, entries)
}

// SubEntrySend compresses msgs into one sub-entry batch sharing a single
// publishingID.
func (p *PartitionProducer) SubEntrySend(ctx context.Context, publishingID uint64, msgs []*Message, compressionType compression.Type) error {
	if err := p.checkSendable(); err != nil {
		return err
	}
	payloads := make([][]byte, len(msgs))
	for i, m := range msgs {
		payloads[i] = m.Payload
	}
	framed, err := wire.EncodeSubEntry(p.compressors, compressionType, payloads)
	if err != nil {
		return errors.Wrap(err, "failed to encode sub-entry batch")
	}
	return p.sendEntries(ctx, []wire.Entry{{PublishingID: publishingID, Framed: framed, RecordCount: uint32(len(msgs))}})
}

func (p *PartitionProducer) sendEntries(ctx context.Context, entries []wire.Entry) error {
	p.mu.Lock()
	id := p.publisherID
	p.mu.Unlock()

	code, err := p.transport.SendEntries(ctx, id, entries)
	if err != nil {
		return errors.Wrap(err, "failed to send entries to partition "+p.partition)
	}
	if p.confirm != nil {
		for _, e := range entries {
			p.confirm(p.partition, Confirmation{PublishingID: e.PublishingID, Code: code})
		}
	}
	return nil
}

// GetLastPublishingID returns the highest publishing id the broker has
// recorded for this producer's reference, or 0 if no reference was
// configured.
func (p *PartitionProducer) GetLastPublishingID(ctx context.Context) uint64 {
	if p.reference == "" {
		return 0
	}
	seq, err := p.transport.QueryPublisherSequence(ctx, p.partition, p.reference)
	if err != nil {
		logger.L().Warn("failed to query publisher sequence", "partition", p.partition, "error", err)
		return 0
	}
	return seq
}

// Close deletes this producer's publisher. Idempotent.
func (p *PartitionProducer) Close(ctx context.Context) error {
	if producerState(p.state.Swap(int32(producerClosed))) == producerClosed {
		return nil
	}
	p.mu.Lock()
	id := p.publisherID
	p.mu.Unlock()
	if err := p.transport.DeletePublisher(ctx, id); err != nil {
		return errors.Wrap(err, "failed to close partition producer "+p.partition)
	}
	return nil
}

// markReconnecting flips an open producer into reconnecting; a no-op if
// it's already reconnecting, creating, or closed.
func (p *PartitionProducer) markReconnecting() {
	p.state.CompareAndSwap(int32(producerOpen), int32(producerReconnecting))
}

// reconnect re-declares the publisher with backoff, returning to open on
// success or closed if retries are exhausted.
func (p *PartitionProducer) reconnect(ctx context.Context, retry resilience.RetryConfig) error {
	err := resilience.Retry(ctx, retry, func(ctx context.Context) error {
		return p.declare(ctx)
	})
	if err != nil {
		p.state.Store(int32(producerClosed))
		return err
	}
	p.state.Store(int32(producerOpen))
	return nil
}
