package rstream

import (
	"context"

	"github.com/chris-alexander-pop/system-design-library/pkg/logger"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

// metadataWatcher selects over a transport's connection-closed and
// metadata-update signal channels for the lifetime of a run context,
// grounded on the Pulsar client's runEventsLoop: a single goroutine
// dispatching broker-pushed signals to the owner's callbacks.
type metadataWatcher struct {
	transport        wire.Transport
	onConnClosed     func(error)
	onMetadataUpdate func(wire.MetadataUpdate)
}

func newMetadataWatcher(transport wire.Transport, onConnClosed func(error), onMetadataUpdate func(wire.MetadataUpdate)) *metadataWatcher {
	return &metadataWatcher{transport: transport, onConnClosed: onConnClosed, onMetadataUpdate: onMetadataUpdate}
}

func (w *metadataWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.transport.ConnectionClosed():
			if !ok {
				return
			}
			logger.L().Warn("stream transport connection closed", "error", err)
			if w.onConnClosed != nil {
				w.onConnClosed(err)
			}
		case upd, ok := <-w.transport.MetadataUpdates():
			if !ok {
				return
			}
			if w.onMetadataUpdate != nil {
				w.onMetadataUpdate(upd)
			}
		}
	}
}
