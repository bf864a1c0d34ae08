package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

func TestEncodeDecodeStandardEntries(t *testing.T) {
	var data []byte
	payloads := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, p := range payloads {
		data = append(data, wire.EncodeStandardEntry(p)...)
	}

	chunk := wire.Chunk{ChunkID: 100, NumRecords: uint32(len(payloads)), Data: data}

	var got []wire.DecodedRecord
	delivered, skipped, err := wire.DecodeChunk(context.Background(), chunk, compression.NewRegistry(), func(r wire.DecodedRecord) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no skipped records, got %d", skipped)
	}
	if delivered != len(payloads) {
		t.Fatalf("delivered = %d, want %d", delivered, len(payloads))
	}
	for i, p := range payloads {
		if string(got[i].Data) != string(p) {
			t.Errorf("record %d data = %q, want %q", i, got[i].Data, p)
		}
		if got[i].Offset != chunk.ChunkID+uint64(i) {
			t.Errorf("record %d offset = %d, want %d", i, got[i].Offset, chunk.ChunkID+uint64(i))
		}
	}
}

func TestEncodeDecodeSubEntryBatch(t *testing.T) {
	registry := compression.NewRegistry()
	payloads := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}

	entry, err := wire.EncodeSubEntry(registry, compression.Gzip, payloads)
	if err != nil {
		t.Fatalf("EncodeSubEntry: %v", err)
	}

	chunk := wire.Chunk{ChunkID: 5, NumRecords: uint32(len(payloads)), Data: entry}

	var got []wire.DecodedRecord
	delivered, skipped, err := wire.DecodeChunk(context.Background(), chunk, registry, func(r wire.DecodedRecord) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no skipped records, got %d", skipped)
	}
	if delivered != len(payloads) {
		t.Fatalf("delivered = %d, want %d", delivered, len(payloads))
	}
	for i, p := range payloads {
		if string(got[i].Data) != string(p) {
			t.Errorf("record %d data = %q, want %q", i, got[i].Data, p)
		}
		if got[i].Offset != chunk.ChunkID+uint64(i) {
			t.Errorf("record %d offset = %d, want %d", i, got[i].Offset, chunk.ChunkID+uint64(i))
		}
	}
}

func TestDecodeChunkMixedStandardAndSubEntry(t *testing.T) {
	registry := compression.NewRegistry()

	var data []byte
	data = append(data, wire.EncodeStandardEntry([]byte("solo"))...)
	sub, err := wire.EncodeSubEntry(registry, compression.None, [][]byte{[]byte("x"), []byte("y")})
	if err != nil {
		t.Fatalf("EncodeSubEntry: %v", err)
	}
	data = append(data, sub...)

	chunk := wire.Chunk{ChunkID: 0, NumRecords: 3, Data: data}

	var got [][]byte
	_, skipped, err := wire.DecodeChunk(context.Background(), chunk, registry, func(r wire.DecodedRecord) error {
		got = append(got, r.Data)
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("expected no skipped records, got %d", skipped)
	}
	want := []string{"solo", "x", "y"}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != want[i] {
			t.Errorf("record %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecodeChunkSkipsTruncatedEntry(t *testing.T) {
	data := wire.EncodeStandardEntry([]byte("ok"))
	// Truncated second entry: length header claims more bytes than are present.
	data = append(data, wire.EncodeStandardEntry([]byte("this one gets cut"))[:5]...)

	chunk := wire.Chunk{ChunkID: 0, NumRecords: 2, Data: data}

	var got []string
	delivered, skipped, err := wire.DecodeChunk(context.Background(), chunk, compression.NewRegistry(), func(r wire.DecodedRecord) error {
		got = append(got, string(r.Data))
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("got %v, want [ok]", got)
	}
}

func TestDecodeChunkSkipsUnknownCompressionType(t *testing.T) {
	// Hand-craft a sub-entry header advertising a reserved compression
	// type that NewRegistry never preloads, since EncodeSubEntry itself
	// refuses to encode with an unregistered type.
	payload := wire.EncodeStandardEntry([]byte("a"))
	header := make([]byte, 1+2+4+4)
	header[0] = 0x80 | 0x0f
	header[1], header[2] = 0, 1
	header[3], header[4], header[5], header[6] = 0, 0, 0, byte(len(payload))
	header[7], header[8], header[9], header[10] = 0, 0, 0, byte(len(payload))
	data := append(header, payload...)

	chunk := wire.Chunk{ChunkID: 0, NumRecords: 1, Data: data}
	delivered, skipped, err := wire.DecodeChunk(context.Background(), chunk, compression.NewRegistry(), func(wire.DecodedRecord) error {
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if delivered != 0 || skipped != 1 {
		t.Fatalf("delivered=%d skipped=%d, want delivered=0 skipped=1", delivered, skipped)
	}
}

func TestDecodeChunkHandleErrorStopsEarly(t *testing.T) {
	var data []byte
	data = append(data, wire.EncodeStandardEntry([]byte("first"))...)
	data = append(data, wire.EncodeStandardEntry([]byte("second"))...)

	chunk := wire.Chunk{ChunkID: 0, NumRecords: 2, Data: data}

	boom := errors.New("handler failed")
	var calls int
	_, _, err := wire.DecodeChunk(context.Background(), chunk, compression.NewRegistry(), func(wire.DecodedRecord) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
}

func TestDecodeChunkStopsOnCancelledContext(t *testing.T) {
	data := wire.EncodeStandardEntry([]byte("x"))
	chunk := wire.Chunk{ChunkID: 0, NumRecords: 1, Data: data}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := wire.DecodeChunk(ctx, chunk, compression.NewRegistry(), func(wire.DecodedRecord) error {
		t.Fatal("handler should not be called once context is cancelled")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
