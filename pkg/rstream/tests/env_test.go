package tests

import (
	"context"
	"testing"

	"github.com/chris-alexander-pop/system-design-library/pkg/rstream"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/routing"
)

func TestLoadProducerConfigMergesEnvAndGeneratesClientName(t *testing.T) {
	t.Setenv("RSTREAM_SUPER_STREAM", "orders")
	t.Setenv("RSTREAM_PRODUCER_REFERENCE", "producer-1")
	t.Setenv("RSTREAM_CLIENT_PROVIDED_NAME", "")

	cfg, err := rstream.LoadProducerConfig(rstream.ProducerConfig{
		Routing: routing.NewHashStrategy(byID),
	})
	if err != nil {
		t.Fatalf("LoadProducerConfig: %v", err)
	}
	if cfg.SuperStream != "orders" {
		t.Fatalf("SuperStream = %q, want orders", cfg.SuperStream)
	}
	if cfg.Reference != "producer-1" {
		t.Fatalf("Reference = %q, want producer-1", cfg.Reference)
	}
	if cfg.ClientProvidedName == "" {
		t.Fatal("expected a generated ClientProvidedName when the env var is blank")
	}
	if cfg.Routing == nil {
		t.Fatal("expected the caller-supplied Routing strategy to survive the merge")
	}
}

func TestLoadProducerConfigFailsWithoutRequiredSuperStream(t *testing.T) {
	t.Setenv("RSTREAM_SUPER_STREAM", "")
	_, err := rstream.LoadProducerConfig(rstream.ProducerConfig{
		Routing: routing.NewHashStrategy(byID),
	})
	if err == nil {
		t.Fatal("expected an error when RSTREAM_SUPER_STREAM is unset")
	}
}

func TestLoadConsumerConfigMergesEnv(t *testing.T) {
	t.Setenv("RSTREAM_STREAM", "orders-0")
	t.Setenv("RSTREAM_CONSUMER_REFERENCE", "consumer-1")
	t.Setenv("RSTREAM_SINGLE_ACTIVE_CONSUMER", "true")

	cfg, err := rstream.LoadConsumerConfig(rstream.ConsumerConfig{
		Handler: func(context.Context, *rstream.Consumer, *rstream.Message) error { return nil },
	})
	if err != nil {
		t.Fatalf("LoadConsumerConfig: %v", err)
	}
	if cfg.Stream != "orders-0" {
		t.Fatalf("Stream = %q, want orders-0", cfg.Stream)
	}
	if cfg.Reference != "consumer-1" {
		t.Fatalf("Reference = %q, want consumer-1", cfg.Reference)
	}
	if !cfg.SingleActiveConsumer {
		t.Fatal("expected SingleActiveConsumer to be true")
	}
}
