package sink

import (
	"context"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer used by the Kafka sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes every record to a topic per layer named <topic>.<layer>,
// using the record key as message key so that updates of the same article
// land in the same partition.
type Kafka struct {
	w     messageWriter
	topic string
}

var _ Sink = (*Kafka)(nil)

func NewKafka(brokers []string, topic string, opts Options) *Kafka {
	if topic == "" {
		topic = opts.TablePrefix
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	if opts.BatchSize > 0 {
		w.BatchSize = opts.BatchSize
	}
	if opts.BatchTimeout > 0 {
		w.BatchTimeout = opts.BatchTimeout
	}
	return &Kafka{w: w, topic: topic}
}

// Topic returns the topic receiving the records of layer.
func (s *Kafka) Topic(layer Layer) string {
	return s.topic + "." + string(layer)
}

func (s *Kafka) Write(ctx context.Context, layer Layer, key string, v interface{}) error {
	blob, err := encode(v)
	if err != nil {
		return err
	}
	err = s.w.WriteMessages(ctx, kafka.Message{
		Topic: s.Topic(layer),
		Key:   []byte(key),
		Value: blob,
		Headers: []kafka.Header{
			{Key: "layer", Value: []byte(layer)},
		},
	})
	return errors.Wrapf(err, "publishing %s record", layer)
}

// Flush is a no-op since the writer is synchronous: WriteMessages returns
// once the brokers acknowledged the batch.
func (s *Kafka) Flush(ctx context.Context) error { return nil }

func (s *Kafka) Close() error {
	return s.w.Close()
}
