package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafka(t *testing.T) {
	w := &fakeWriter{}
	s := &Kafka{w: w, topic: "pmc"}

	require.NoError(t, s.Write(context.Background(), LayerGold, "PMC1", record{PMCID: "1"}))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "pmc.gold", msg.Topic)
	assert.Equal(t, "PMC1", string(msg.Key))
	assert.JSONEq(t, `{"pmcid":"1","title":""}`, string(msg.Value))
	assert.Equal(t, []kafka.Header{{Key: "layer", Value: []byte("gold")}}, msg.Headers)

	w.err = errors.New("leader not available")
	assert.Error(t, s.Write(context.Background(), LayerGold, "PMC2", record{}))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestNewKafka(t *testing.T) {
	s := NewKafka([]string{"localhost:9092"}, "", Options{TablePrefix: "oa", BatchSize: 10})
	w, ok := s.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, 10, w.BatchSize)
	assert.Equal(t, "oa.bronze", s.Topic(LayerBronze))
}
