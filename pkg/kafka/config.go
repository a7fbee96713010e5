package kafka

import "time"

// ProducerOption configures Producer.
type ProducerOption func(*ProducerConfig)

// ProducerConfig holds producer configuration.
type ProducerConfig struct {
	Brokers      []string      `yaml:"-"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=none gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
	Async        bool          `yaml:"async"`
	// LeastBytes swaps the default key-hash balancer, which keeps per-key
	// ordering, for least-bytes spreading.
	LeastBytes bool `yaml:"least_bytes"`
}

// WithProducerConfig replaces the whole config. Brokers already set are kept
// when pc has none.
func WithProducerConfig(pc ProducerConfig) ProducerOption {
	return func(c *ProducerConfig) {
		brokers := c.Brokers
		*c = pc
		if len(pc.Brokers) == 0 {
			c.Brokers = brokers
		}
	}
}

// WithBrokers sets Kafka brokers.
func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Brokers = brokers
	}
}

// WithCompression sets compression type.
func WithCompression(compression string) ProducerOption {
	return func(c *ProducerConfig) {
		c.Compression = compression
	}
}

// WithBatchTimeout sets batch timeout.
func WithBatchTimeout(timeout time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.BatchTimeout = timeout
	}
}

// WithAsync toggles fire-and-forget writes.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.Async = async
	}
}

// WithLeastBytes toggles the least-bytes balancer.
func WithLeastBytes(on bool) ProducerOption {
	return func(c *ProducerConfig) {
		c.LeastBytes = on
	}
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string      `yaml:"-"`
	GroupID     string        `yaml:"group_id" default:"finfuse"`
	StartOffset string        `yaml:"start_offset" default:"earliest" validate:"oneof=earliest latest"`
	Workers     int           `yaml:"workers" default:"2" validate:"gte=1"`
	BufferSize  int           `yaml:"buffer_size" default:"64" validate:"gte=1"`
	RetryMax    int           `yaml:"retry_max" default:"3"`
	BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
	BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
	DLQTopic    string        `yaml:"dlq_topic"`
	MinBytes    int           `yaml:"min_bytes" default:"1"`
	MaxBytes    int           `yaml:"max_bytes" default:"10000000"`
}

// WithConsumerConfig replaces the whole config. Brokers already set are kept
// when cc has none.
func WithConsumerConfig(cc ConsumerConfig) ConsumerOption {
	return func(c *ConsumerConfig) {
		brokers := c.Brokers
		*c = cc
		if len(cc.Brokers) == 0 {
			c.Brokers = brokers
		}
	}
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerWorkers sets number of worker goroutines.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Workers = count
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets a Kafka topic name for DLQ.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
	}
}
