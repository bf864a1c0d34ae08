package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chris-alexander-pop/system-design-library/pkg/errors"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/wire"
)

func publishStandardEntries(t *testing.T, tr *wire.MemoryTransport, stream string, payloads ...string) {
	t.Helper()
	pubID, err := tr.DeclarePublisher(context.Background(), stream, "")
	if err != nil {
		t.Fatalf("DeclarePublisher: %v", err)
	}
	for i, p := range payloads {
		entry := wire.Entry{
			PublishingID: uint64(i + 1),
			Framed:       wire.EncodeStandardEntry([]byte(p)),
			RecordCount:  1,
		}
		if _, err := tr.SendEntries(context.Background(), pubID, []wire.Entry{entry}); err != nil {
			t.Fatalf("SendEntries: %v", err)
		}
	}
}

func TestNewConsumerValidatesConfig(t *testing.T) {
	tr := wire.NewMemoryTransport()
	tr.DeclareStream("orders")

	_, err := rstream.NewConsumer(context.Background(), tr, rstream.ConsumerConfig{
		Handler: func(context.Context, *rstream.Consumer, *rstream.Message) error { return nil },
	})
	if errors.CodeOf(err) != rstream.CodeConfigError {
		t.Fatalf("missing Stream: code = %v, want %v", errors.CodeOf(err), rstream.CodeConfigError)
	}

	_, err = rstream.NewConsumer(context.Background(), tr, rstream.ConsumerConfig{Stream: "orders"})
	if errors.CodeOf(err) != rstream.CodeConfigError {
		t.Fatalf("missing Handler: code = %v, want %v", errors.CodeOf(err), rstream.CodeConfigError)
	}

	_, err = rstream.NewConsumer(context.Background(), tr, rstream.ConsumerConfig{
		Stream:               "orders",
		SingleActiveConsumer: true,
		Handler:              func(context.Context, *rstream.Consumer, *rstream.Message) error { return nil },
	})
	if errors.CodeOf(err) != rstream.CodeConfigError {
		t.Fatalf("single active consumer without reference: code = %v, want %v", errors.CodeOf(err), rstream.CodeConfigError)
	}
}

func TestConsumerDeliversRecordsInOrder(t *testing.T) {
	tr := wire.NewMemoryTransport()
	tr.DeclareStream("orders")
	publishStandardEntries(t, tr, "orders", "a", "b", "c")

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	c, err := rstream.NewConsumer(context.Background(), tr, rstream.ConsumerConfig{
		Stream: "orders",
		Offset: rstream.OffsetSpec{Kind: rstream.OffsetFirst},
		Handler: func(_ context.Context, _ *rstream.Consumer, msg *rstream.Message) error {
			mu.Lock()
			got = append(got, string(msg.Payload))
			n := len(got)
			mu.Unlock()
			if n == 3 {
				close(done)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	defer c.Dispose()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected 3 messages to be delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v, want [a b c] in order", got)
	}
}

func TestConsumerFiltersBelowAbsoluteOffset(t *testing.T) {
	tr := wire.NewMemoryTransport()
	tr.DeclareStream("orders")
	publishStandardEntries(t, tr, "orders", "a", "b", "c", "d")

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	var once sync.Once

	c, err := rstream.NewConsumer(context.Background(), tr, rstream.ConsumerConfig{
		Stream: "orders",
		Offset: rstream.OffsetSpec{Kind: rstream.OffsetAbsolute, Offset: 2},
		Handler: func(_ context.Context, _ *rstream.Consumer, msg *rstream.Message) error {
			mu.Lock()
			got = append(got, string(msg.Payload))
			n := len(got)
			mu.Unlock()
			if n == 2 {
				once.Do(func() { close(done) })
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	defer c.Dispose()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected records at or after offset 2 to be delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Fatalf("got %v, want [c d] (offsets 0 and 1 not delivered)", got)
	}
}

func TestConsumerCloseIsIdempotent(t *testing.T) {
	tr := wire.NewMemoryTransport()
	tr.DeclareStream("orders")

	c, err := rstream.NewConsumer(context.Background(), tr, rstream.ConsumerConfig{
		Stream:  "orders",
		Offset:  rstream.OffsetSpec{Kind: rstream.OffsetFirst},
		Handler: func(context.Context, *rstream.Consumer, *rstream.Message) error { return nil },
	})
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}

	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
