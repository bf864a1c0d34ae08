package rstream

import (
	"sync"

	"github.com/chris-alexander-pop/system-design-library/pkg/datastructures/concurrentmap"
)

// partitionTable caches PartitionProducer instances by partition name and
// tracks the super-stream's current ordered partition list. Reads (the
// hot send path) go through the sharded, RWMutex-backed map; a dedicated
// create-lock per partition name serializes the lazy create-or-get path
// so concurrent sends for the same never-seen partition don't race to
// declare it twice.
type partitionTable struct {
	producers *concurrentmap.ShardedMap[string, *PartitionProducer]

	mu         sync.RWMutex
	partitions []string

	createMu sync.Mutex
	creating map[string]*sync.Mutex
}

func newPartitionTable(partitions []string) *partitionTable {
	return &partitionTable{
		producers:  concurrentmap.New[string, *PartitionProducer](16),
		partitions: append([]string{}, partitions...),
		creating:   make(map[string]*sync.Mutex),
	}
}

func (t *partitionTable) list() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.partitions))
	copy(out, t.partitions)
	return out
}

func (t *partitionTable) get(name string) (*PartitionProducer, bool) {
	return t.producers.Get(name)
}

func (t *partitionTable) set(name string, p *PartitionProducer) {
	t.producers.Set(name, p)
}

// lockFor returns the per-partition create-or-get mutex for name, creating
// it on first use. Callers hold it only while declaring (or reconnecting)
// that partition's PartitionProducer.
func (t *partitionTable) lockFor(name string) *sync.Mutex {
	t.createMu.Lock()
	defer t.createMu.Unlock()
	l, ok := t.creating[name]
	if !ok {
		l = &sync.Mutex{}
		t.creating[name] = l
	}
	return l
}

// remove drops name from both the producer cache and the ordered
// partition list, used when a metadata update reports the partition is
// gone.
func (t *partitionTable) remove(name string) {
	t.producers.Delete(name)
	t.mu.Lock()
	filtered := t.partitions[:0]
	for _, p := range t.partitions {
		if p != name {
			filtered = append(filtered, p)
		}
	}
	t.partitions = filtered
	t.mu.Unlock()
}

// each visits every cached PartitionProducer. fn must not call back into
// the table.
func (t *partitionTable) each(fn func(name string, p *PartitionProducer)) {
	t.producers.Range(func(k string, v *PartitionProducer) bool {
		fn(k, v)
		return true
	})
}
