package wire

import (
	"context"
	"fmt"
	"sync"
)

type storedEntry struct {
	entry       Entry
	startOffset uint64
}

type memStream struct {
	entries     []storedEntry
	nextOffset  uint64
	dedup       map[string]uint64 // reference -> highest publishing id stored
	unavailable bool
}

type memPublisher struct {
	stream    string
	reference string
}

type memSubscriber struct {
	stream  string
	update  ConsumerUpdateHandler
	deliver DeliverHandler
	cursor  int
	credit  int
}

// MemoryTransport is an in-process fake satisfying Transport, standing in
// for a live broker connection in this package's and pkg/rstream's tests
// the same way pkg/messaging/adapters/memory stands in for a real broker
// in the messaging package's tests.
type MemoryTransport struct {
	mu sync.Mutex

	partitions map[string][]string
	streams    map[string]*memStream

	nextPublisherID  byte
	publishers       map[byte]*memPublisher
	nextSubscriberID byte
	subscribers      map[byte]*memSubscriber

	connClosed  chan error
	metaUpdates chan MetadataUpdate
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		partitions:  make(map[string][]string),
		streams:     make(map[string]*memStream),
		publishers:  make(map[byte]*memPublisher),
		subscribers: make(map[byte]*memSubscriber),
		connClosed:  make(chan error, 1),
		metaUpdates: make(chan MetadataUpdate, 64),
	}
}

// DeclareSuperStream registers a super-stream and its ordered partitions,
// the test-setup equivalent of the broker's management API.
func (t *MemoryTransport) DeclareSuperStream(name string, partitions []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partitions[name] = append([]string{}, partitions...)
	for _, p := range partitions {
		if _, ok := t.streams[p]; !ok {
			t.streams[p] = &memStream{dedup: make(map[string]uint64)}
		}
	}
}

// DeclareStream registers a single, standalone stream, for consumer-only
// tests that don't need a super-stream.
func (t *MemoryTransport) DeclareStream(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.streams[name]; !ok {
		t.streams[name] = &memStream{dedup: make(map[string]uint64)}
	}
}

// RemoveStream simulates the broker deleting a stream: publishers and new
// subscribes against it fail, and a metadata-update signal is pushed so
// watchers can react.
func (t *MemoryTransport) RemoveStream(name string) {
	t.mu.Lock()
	if st, ok := t.streams[name]; ok {
		st.unavailable = true
	}
	t.mu.Unlock()
	select {
	case t.metaUpdates <- MetadataUpdate{Stream: name, Code: MetadataStreamNotAvailable}:
	default:
	}
}

// KillConnection simulates the shared transport connection dropping.
func (t *MemoryTransport) KillConnection(reason error) {
	select {
	case t.connClosed <- reason:
	default:
	}
}

func (t *MemoryTransport) QueryPartitions(_ context.Context, superStream string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	partitions, ok := t.partitions[superStream]
	if !ok {
		return nil, fmt.Errorf("super stream %q not found", superStream)
	}
	out := make([]string, len(partitions))
	copy(out, partitions)
	return out, nil
}

func (t *MemoryTransport) DeclarePublisher(_ context.Context, stream, reference string) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.streams[stream]
	if !ok || st.unavailable {
		return 0, fmt.Errorf("stream %q not available", stream)
	}
	id := t.nextPublisherID
	t.nextPublisherID++
	t.publishers[id] = &memPublisher{stream: stream, reference: reference}
	return id, nil
}

func (t *MemoryTransport) DeletePublisher(_ context.Context, publisherID byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.publishers, publisherID)
	return nil
}

func (t *MemoryTransport) SendEntries(_ context.Context, publisherID byte, entries []Entry) (ResponseCode, error) {
	t.mu.Lock()
	pub, ok := t.publishers[publisherID]
	if !ok {
		t.mu.Unlock()
		return 0, fmt.Errorf("unknown publisher %d", publisherID)
	}
	st, ok := t.streams[pub.stream]
	if !ok || st.unavailable {
		t.mu.Unlock()
		return ResponseStreamDoesNotExist, fmt.Errorf("stream %q not available", pub.stream)
	}

	for _, e := range entries {
		if pub.reference != "" {
			if last, seen := st.dedup[pub.reference]; seen && e.PublishingID <= last {
				continue // already seen this (reference, publishing-id) pair
			}
			st.dedup[pub.reference] = e.PublishingID
		}
		st.entries = append(st.entries, storedEntry{entry: e, startOffset: st.nextOffset})
		st.nextOffset += uint64(e.RecordCount)
	}
	stream := pub.stream
	t.mu.Unlock()

	t.deliverPending(stream)
	return ResponseOK, nil
}

func (t *MemoryTransport) QueryPublisherSequence(_ context.Context, stream, reference string) (uint64, error) {
	if reference == "" {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.streams[stream]
	if !ok {
		return 0, fmt.Errorf("stream %q not found", stream)
	}
	return st.dedup[reference], nil
}

func (t *MemoryTransport) Subscribe(_ context.Context, cfg SubscriptionConfig, credit uint16, deliver DeliverHandler, update ConsumerUpdateHandler) (byte, error) {
	t.mu.Lock()
	st, ok := t.streams[cfg.Stream]
	if !ok || st.unavailable {
		t.mu.Unlock()
		return 0, fmt.Errorf("stream %q not found", cfg.Stream)
	}

	cursor := resolveCursor(st, cfg.Offset)
	id := t.nextSubscriberID
	t.nextSubscriberID++
	t.subscribers[id] = &memSubscriber{stream: cfg.Stream, deliver: deliver, update: update, cursor: cursor, credit: int(credit)}
	t.mu.Unlock()

	t.deliverPending(cfg.Stream)
	return id, nil
}

// resolveCursor picks the stored-entry index a new subscription starts
// replaying from. OffsetTimestamp isn't tracked per entry in this fake
// (no timestamps are recorded on store) so it degrades to "next", the
// safest default for a test double.
func resolveCursor(st *memStream, spec OffsetSpec) int {
	switch spec.Kind {
	case OffsetFirst:
		return 0
	case OffsetLast:
		if len(st.entries) == 0 {
			return 0
		}
		return len(st.entries) - 1
	case OffsetAbsolute:
		for i := len(st.entries) - 1; i >= 0; i-- {
			if st.entries[i].startOffset <= spec.Offset {
				return i
			}
		}
		return 0
	default: // OffsetNext, OffsetTimestamp
		return len(st.entries)
	}
}

func (t *MemoryTransport) Credit(_ context.Context, subscriberID byte, n uint16) error {
	t.mu.Lock()
	sub, ok := t.subscribers[subscriberID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("unknown subscriber %d", subscriberID)
	}
	sub.credit += int(n)
	stream := sub.stream
	t.mu.Unlock()
	t.deliverPending(stream)
	return nil
}

func (t *MemoryTransport) Unsubscribe(_ context.Context, subscriberID byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, subscriberID)
	return nil
}

func (t *MemoryTransport) StoreOffset(_ context.Context, _, _ string, _ uint64) error {
	return nil
}

func (t *MemoryTransport) ConnectionClosed() <-chan error {
	return t.connClosed
}

func (t *MemoryTransport) MetadataUpdates() <-chan MetadataUpdate {
	return t.metaUpdates
}

// deliverPending pushes one chunk per unit of available credit to every
// subscriber on stream, each chunk containing every entry accumulated
// since that subscriber's cursor. The transport's own lock is released
// before invoking a subscriber's deliver callback, so a handler that
// calls back into the transport (Credit, Unsubscribe) can't deadlock on
// it.
func (t *MemoryTransport) deliverPending(stream string) {
	for {
		t.mu.Lock()
		var (
			sub      *memSubscriber
			subID    byte
			chunk    Chunk
			hasChunk bool
		)
		for id, s := range t.subscribers {
			if s.stream != stream || s.credit <= 0 {
				continue
			}
			st := t.streams[stream]
			if s.cursor >= len(st.entries) {
				continue
			}
			var data []byte
			var numRecords uint32
			startOffset := st.entries[s.cursor].startOffset
			for i := s.cursor; i < len(st.entries); i++ {
				data = append(data, st.entries[i].entry.Framed...)
				numRecords += st.entries[i].entry.RecordCount
			}
			chunk = Chunk{ChunkID: startOffset, NumRecords: numRecords, Data: data}
			s.cursor = len(st.entries)
			s.credit--
			sub, subID, hasChunk = s, id, true
			break
		}
		t.mu.Unlock()
		if !hasChunk {
			return
		}
		sub.deliver(subID, chunk)
	}
}
