package rstream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/system-design-library/pkg/errors"
	"github.com/chris-alexander-pop/system-design-library/pkg/logger"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

// initialCredit is how many chunks a subscription is allowed in flight
// before it has to wait for the broker to honor a Credit grant.
const initialCredit = 10

type consumerState int32

const (
	consumerOpen consumerState = iota
	consumerClosed
)

// Consumer subscribes to one stream (a super-stream partition or a
// standalone stream) and delivers decoded chunk records to a handler,
// filtering by the configured offset spec and granting credit for the
// next chunk before parsing the current one, so the network path stays
// busy while the handler runs.
type Consumer struct {
	stream          string
	subscriberID    byte
	transport       wire.Transport
	compressors     *compression.Registry
	handler         MessageHandler
	metadataHandler func(stream string, code uint16)
	offset          OffsetSpec

	state  atomic.Int32
	runCtx context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConsumer subscribes to cfg.Stream and starts delivering records to
// cfg.Handler. cfg is validated synchronously before any network call.
func NewConsumer(ctx context.Context, transport wire.Transport, cfg ConsumerConfig) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		stream:          cfg.Stream,
		transport:       transport,
		compressors:     compression.NewRegistry(),
		handler:         cfg.Handler,
		metadataHandler: cfg.MetadataHandler,
		offset:          cfg.Offset,
		runCtx:          runCtx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}

	props := map[string]string{}
	if cfg.SingleActiveConsumer {
		props["single-active-consumer"] = "true"
		if cfg.SuperStream != "" {
			props["super-stream"] = cfg.SuperStream
		}
	}

	subCfg := wire.SubscriptionConfig{Stream: cfg.Stream, Offset: cfg.Offset, Properties: props}
	id, err := transport.Subscribe(ctx, subCfg, initialCredit, c.onDeliver, c.onConsumerUpdate)
	if err != nil {
		cancel()
		return nil, ErrCreateConsumer("failed to subscribe to stream "+cfg.Stream, err)
	}
	c.subscriberID = id

	watcher := newMetadataWatcher(transport, c.onConnectionClosed, func(upd wire.MetadataUpdate) {
		c.onMetadataUpdate(upd.Stream, upd.Code)
	})
	go func() {
		defer close(c.done)
		watcher.run(runCtx)
	}()

	return c, nil
}

func (c *Consumer) onConnectionClosed(error) {
	// A dropped connection invalidates this subscription; the caller is
	// expected to recreate the Consumer once reconnected, the same as the
	// broker-side subscription state that no longer exists.
}

func (c *Consumer) onConsumerUpdate(active bool) error {
	logger.L().Debug("consumer active state changed", "stream", c.stream, "active", active)
	return nil
}

func (c *Consumer) onMetadataUpdate(stream string, code uint16) {
	if c.metadataHandler != nil {
		c.metadataHandler(stream, code)
	}
}

func (c *Consumer) onDeliver(subscriberID byte, chunk wire.Chunk) {
	if consumerState(c.state.Load()) == consumerClosed {
		return
	}

	// Grant credit for the next chunk before parsing this one: the flow
	// control policy keeps the broker's delivery pipeline busy instead of
	// waiting on this handler.
	if err := c.transport.Credit(c.runCtx, subscriberID, 1); err != nil {
		logger.L().Warn("failed to grant credit", "stream", c.stream, "error", err)
	}

	ctx := c.runCtx
	_, skipped, err := wire.DecodeChunk(ctx, chunk, c.compressors, func(rec wire.DecodedRecord) error {
		if c.offset.Kind == OffsetAbsolute && rec.Offset < c.offset.Offset {
			return nil
		}
		msg := &Message{Payload: rec.Data}
		return c.handler(ctx, c, msg)
	})
	if skipped > 0 {
		logger.L().Warn("skipped malformed chunk records", "stream", c.stream, "count", skipped)
	}
	if err != nil {
		logger.L().Warn("chunk parse stopped early", "stream", c.stream, "error", err)
	}
}

// Close unsubscribes, waiting up to 3s for the broker to acknowledge.
// Idempotent.
func (c *Consumer) Close(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(consumerOpen), int32(consumerClosed)) {
		return nil
	}
	c.cancel()

	unsubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.transport.Unsubscribe(unsubCtx, c.subscriberID); err != nil {
		return errors.Wrap(err, "failed to unsubscribe from stream "+c.stream)
	}
	return nil
}

// Dispose closes the consumer with a short grace period, for callers that
// don't have a context of their own.
func (c *Consumer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.Close(ctx)
}
