package rstream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/system-design-library/pkg/errors"
	"github.com/chris-alexander-pop/system-design-library/pkg/logger"
	"github.com/chris-alexander-pop/system-design-library/pkg/resilience"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

// SuperStreamProducer routes messages across a super-stream's partitions,
// lazily declaring one PartitionProducer per destination partition the
// first time something routes there.
type SuperStreamProducer struct {
	superStream string
	routing     RoutingStrategy
	reference   string
	confirm     ConfirmHandler
	transport   wire.Transport
	compressors *compression.Registry
	retry       resilience.RetryConfig

	table  *partitionTable
	closed atomic.Bool

	confirmCh chan PartitionConfirmation
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// NewSuperStreamProducer looks up the super-stream's partitions and
// starts a producer bound to them. cfg is validated synchronously before
// any network call.
func NewSuperStreamProducer(ctx context.Context, transport wire.Transport, cfg ProducerConfig) (*SuperStreamProducer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	partitions, err := transport.QueryPartitions(ctx, cfg.SuperStream)
	if err != nil {
		return nil, ErrCreateProducer("failed to look up super stream partitions", err)
	}
	if len(partitions) == 0 {
		return nil, ErrCreateProducer("super stream has no partitions: "+cfg.SuperStream, nil)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sp := &SuperStreamProducer{
		superStream: cfg.SuperStream,
		routing:     cfg.Routing,
		reference:   cfg.Reference,
		confirm:     cfg.ConfirmHandler,
		transport:   transport,
		compressors: compression.NewRegistry(),
		retry:       resilience.DefaultRetryConfig(),
		table:       newPartitionTable(partitions),
		confirmCh:   make(chan PartitionConfirmation, 256),
		cancel:      cancel,
	}

	sp.wg.Add(1)
	go sp.fanInConfirms()

	watcher := newMetadataWatcher(transport, sp.onConnectionClosed, sp.onMetadataUpdate)
	sp.wg.Add(1)
	go func() {
		defer sp.wg.Done()
		watcher.run(runCtx)
	}()

	return sp, nil
}

func (sp *SuperStreamProducer) fanInConfirms() {
	defer sp.wg.Done()
	for pc := range sp.confirmCh {
		if sp.confirm != nil {
			sp.confirm(pc.Partition, pc.Confirmation)
		}
	}
}

func (sp *SuperStreamProducer) onConnectionClosed(error) {
	sp.table.each(func(_ string, p *PartitionProducer) {
		p.markReconnecting()
	})
}

func (sp *SuperStreamProducer) onMetadataUpdate(upd wire.MetadataUpdate) {
	if upd.Code != wire.MetadataStreamNotAvailable {
		return
	}
	logger.L().Warn("super stream partition no longer available", "super_stream", sp.superStream, "partition", upd.Stream)
	sp.table.remove(upd.Stream)
}

func (sp *SuperStreamProducer) partitionConfirm(partition string) ConfirmHandler {
	return func(_ string, c Confirmation) {
		select {
		case sp.confirmCh <- PartitionConfirmation{Partition: partition, Confirmation: c}:
		default:
			logger.L().Warn("confirm fan-in channel full, dropping confirmation", "partition", partition)
		}
	}
}

// getOrCreate returns the cached PartitionProducer for name, declaring it
// (or reconnecting it) on first use. Concurrent callers for the same
// never-seen partition serialize on a per-partition lock so only one
// declare happens.
func (sp *SuperStreamProducer) getOrCreate(ctx context.Context, name string) (*PartitionProducer, error) {
	if p, ok := sp.table.get(name); ok && p.IsOpen() {
		return p, nil
	}

	lock := sp.table.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if p, ok := sp.table.get(name); ok {
		if p.IsOpen() {
			return p, nil
		}
		if err := p.reconnect(ctx, sp.retry); err != nil {
			return nil, errors.Wrap(err, "failed to reconnect partition producer "+name)
		}
		return p, nil
	}

	p, err := newPartitionProducer(ctx, sp.transport, name, sp.reference, sp.compressors, sp.partitionConfirm(name))
	if err != nil {
		return nil, ErrCreateProducer("failed to open partition producer "+name, err)
	}
	sp.table.set(name, p)
	return p, nil
}

func (sp *SuperStreamProducer) route(msg *Message) (string, error) {
	partitions := sp.table.list()
	targets, err := sp.routing.Route(msg, partitions)
	if err != nil {
		return "", err
	}
	if len(targets) == 0 {
		return "", ErrRouting("routing strategy returned no partition", nil)
	}
	return targets[0], nil
}

// Send routes msg to a partition and publishes it there under
// publishingID.
func (sp *SuperStreamProducer) Send(ctx context.Context, publishingID uint64, msg *Message) error {
	if sp.closed.Load() {
		return ErrAlreadyDisposed()
	}
	partition, err := sp.route(msg)
	if err != nil {
		return err
	}
	p, err := sp.getOrCreate(ctx, partition)
	if err != nil {
		return err
	}
	return p.Send(ctx, publishingID, msg)
}

// BatchSend groups batch by destination partition, preserving each
// partition's relative input order, and sends each group in one frame.
func (sp *SuperStreamProducer) BatchSend(ctx context.Context, batch []PublishingMessage) error {
	if sp.closed.Load() {
		return ErrAlreadyDisposed()
	}
	grouped := make(map[string][]PublishingMessage)
	order := make([]string, 0, 4)
	for _, pm := range batch {
		partition, err := sp.route(pm.Message)
		if err != nil {
			return err
		}
		if _, ok := grouped[partition]; !ok {
			order = append(order, partition)
		}
		grouped[partition] = append(grouped[partition], pm)
	}
	for _, partition := range order {
		p, err := sp.getOrCreate(ctx, partition)
		if err != nil {
			return err
		}
		if err := p.BatchSend(ctx, grouped[partition]); err != nil {
			return err
		}
	}
	return nil
}

// SubEntrySend groups msgs by destination partition and sub-entry-batches
// each group under publishingID, preserving each partition's relative
// input order.
func (sp *SuperStreamProducer) SubEntrySend(ctx context.Context, publishingID uint64, msgs []*Message, compressionType compression.Type) error {
	if sp.closed.Load() {
		return ErrAlreadyDisposed()
	}
	grouped := make(map[string][]*Message)
	order := make([]string, 0, 4)
	for _, msg := range msgs {
		partition, err := sp.route(msg)
		if err != nil {
			return err
		}
		if _, ok := grouped[partition]; !ok {
			order = append(order, partition)
		}
		grouped[partition] = append(grouped[partition], msg)
	}
	for _, partition := range order {
		p, err := sp.getOrCreate(ctx, partition)
		if err != nil {
			return err
		}
		if err := p.SubEntrySend(ctx, publishingID, grouped[partition], compressionType); err != nil {
			return err
		}
	}
	return nil
}

// GetLastPublishingID returns the maximum last-publishing-id across every
// partition this producer currently knows about.
func (sp *SuperStreamProducer) GetLastPublishingID(ctx context.Context) uint64 {
	var max uint64
	sp.table.each(func(_ string, p *PartitionProducer) {
		if seq := p.GetLastPublishingID(ctx); seq > max {
			max = seq
		}
	})
	return max
}

// IsOpen reports whether Close has not yet been called.
func (sp *SuperStreamProducer) IsOpen() bool {
	return !sp.closed.Load()
}

// Close closes every partition producer this SuperStreamProducer has
// opened and stops its background watchers. Idempotent.
func (sp *SuperStreamProducer) Close(ctx context.Context) error {
	if !sp.closed.CompareAndSwap(false, true) {
		return nil
	}
	sp.cancel()

	var first error
	sp.table.each(func(_ string, p *PartitionProducer) {
		if err := p.Close(ctx); err != nil && first == nil {
			first = err
		}
	})

	close(sp.confirmCh)
	sp.wg.Wait()
	return first
}

// Dispose closes the producer with a short grace period, for callers that
// don't have a context of their own (e.g. a deferred cleanup).
func (sp *SuperStreamProducer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sp.Close(ctx)
}
