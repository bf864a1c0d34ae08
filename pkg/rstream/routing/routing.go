// Package routing implements the partition routing strategies a
// SuperStreamProducer uses to pick a destination partition per message.
package routing

import (
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream"
	"github.com/twmb/murmur3"
)

const hashSeed = 104729

// Extractor pulls the routing key out of a message, e.g. its message-id
// property or an application property.
type Extractor func(msg *rstream.Message) string

// HashStrategy routes by MurmurHash3 x86-32 of the extracted key, modulo
// the current partition count. Deterministic: the same (key, partition
// list) always routes to the same partition, so it satisfies
// rstream.RoutingStrategy without this package needing to import it as an
// interface value.
type HashStrategy struct {
	Extractor Extractor
}

func NewHashStrategy(extractor Extractor) *HashStrategy {
	return &HashStrategy{Extractor: extractor}
}

func (s *HashStrategy) Route(msg *rstream.Message, partitions []string) ([]string, error) {
	if len(partitions) == 0 {
		return nil, nil
	}
	key := s.Extractor(msg)
	if key == "" {
		return nil, rstream.ErrRouting("routing key extractor returned an empty key", nil)
	}

	h := murmur3.New32WithSeed(hashSeed)
	_, _ = h.Write([]byte(key))
	idx := int(h.Sum32()) % len(partitions)
	if idx < 0 {
		idx += len(partitions)
	}
	return []string{partitions[idx]}, nil
}

// KeyStrategy routes by exact match against a routing table built from
// the broker's bind keys. An unrecognized key is a routing error rather
// than a silent no-op, so callers notice a stale or missing binding
// immediately.
type KeyStrategy struct {
	Extractor Extractor
	Table     map[string][]string
}

func NewKeyStrategy(extractor Extractor, table map[string][]string) *KeyStrategy {
	return &KeyStrategy{Extractor: extractor, Table: table}
}

func (s *KeyStrategy) Route(msg *rstream.Message, _ []string) ([]string, error) {
	key := s.Extractor(msg)
	if key == "" {
		return nil, rstream.ErrRouting("routing key extractor returned an empty key", nil)
	}
	targets, ok := s.Table[key]
	if !ok {
		return nil, rstream.ErrRouting("no route for key: "+key, nil)
	}
	return targets, nil
}
