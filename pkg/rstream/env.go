package rstream

import (
	"github.com/chris-alexander-pop/system-design-library/pkg/config"
	"github.com/google/uuid"
)

// ProducerEnvConfig holds the environment-loadable half of ProducerConfig.
// Routing and ConfirmHandler aren't expressible as env vars and are set by
// the caller after loading.
type ProducerEnvConfig struct {
	SuperStream        string `env:"RSTREAM_SUPER_STREAM" validate:"required"`
	Reference          string `env:"RSTREAM_PRODUCER_REFERENCE"`
	ClientProvidedName string `env:"RSTREAM_CLIENT_PROVIDED_NAME"`
}

// LoadProducerConfig reads ProducerEnvConfig via pkg/config.Load and merges
// it onto a ProducerConfig whose Routing (and optionally ConfirmHandler)
// the caller has already chosen. A blank ClientProvidedName is assigned a
// generated one, the same default-on-blank-ID pattern
// pkg/messaging/adapters/kafka/producer.go uses for outgoing message ids.
func LoadProducerConfig(base ProducerConfig) (ProducerConfig, error) {
	var env ProducerEnvConfig
	if err := config.Load(&env); err != nil {
		return ProducerConfig{}, ErrConfig("failed to load producer config from environment: " + err.Error())
	}

	base.SuperStream = env.SuperStream
	base.Reference = env.Reference
	base.ClientProvidedName = env.ClientProvidedName
	if base.ClientProvidedName == "" {
		base.ClientProvidedName = uuid.New().String()
	}
	return base, nil
}

// ConsumerEnvConfig holds the environment-loadable half of ConsumerConfig.
type ConsumerEnvConfig struct {
	Stream               string `env:"RSTREAM_STREAM" validate:"required"`
	Reference            string `env:"RSTREAM_CONSUMER_REFERENCE"`
	SingleActiveConsumer bool   `env:"RSTREAM_SINGLE_ACTIVE_CONSUMER" env-default:"false"`
}

// LoadConsumerConfig reads ConsumerEnvConfig via pkg/config.Load and merges
// it onto a ConsumerConfig whose Handler (and optionally Offset/
// MetadataHandler) the caller has already chosen.
func LoadConsumerConfig(base ConsumerConfig) (ConsumerConfig, error) {
	var env ConsumerEnvConfig
	if err := config.Load(&env); err != nil {
		return ConsumerConfig{}, ErrConfig("failed to load consumer config from environment: " + err.Error())
	}

	base.Stream = env.Stream
	base.Reference = env.Reference
	base.SingleActiveConsumer = env.SingleActiveConsumer
	return base, nil
}
