package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FinFuse/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error { return nil }

func (r *chanReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func (w *recordingWriter) Messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type funcHandler struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h funcHandler) Topic() string                               { return h.topic }
func (h funcHandler) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

func newTestConsumer(t *testing.T, reader *chanReader, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(logger.Nop(), nil, opts...)
	require.NoError(t, err)
	c.newReader = func(string) Reader { return reader }
	return c
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 4)}
	c := newTestConsumer(t, reader)

	var got atomic.Int32
	c.RegisterHandler(funcHandler{topic: "signals", fn: func(_ context.Context, b []byte) error {
		assert.Equal(t, "payload", string(b))
		got.Add(1)
		return nil
	}})
	require.NoError(t, c.Start())

	for i := 0; i < 3; i++ {
		reader.msgs <- kafka.Message{Topic: "signals", Offset: int64(i), Value: []byte("payload")}
	}
	assert.Eventually(t, func() bool { return len(reader.Committed()) == 3 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 3, got.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestConsumer_RetriesThenDeadLetters(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 1)}
	c := newTestConsumer(t, reader, WithConsumerDLQ("signals.dlq"))
	dlq := &recordingWriter{}
	c.dlq = dlq

	var attempts atomic.Int32
	c.RegisterHandler(funcHandler{topic: "signals", fn: func(context.Context, []byte) error {
		attempts.Add(1)
		return errors.New("boom")
	}})
	require.NoError(t, c.Start())

	reader.msgs <- kafka.Message{Topic: "signals", Offset: 7, Key: []byte("AAPL"), Value: []byte("bad")}
	assert.Eventually(t, func() bool { return len(dlq.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 3, attempts.Load())

	m := dlq.Messages()[0]
	assert.Equal(t, "signals.dlq", m.Topic)
	assert.Equal(t, "AAPL", string(m.Key))
	assert.Eventually(t, func() bool { return len(reader.Committed()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestConsumer_NoDLQLeavesFailedMessageUncommitted(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 1)}
	c := newTestConsumer(t, reader, WithConsumerRetry(0, time.Millisecond, time.Millisecond))

	done := make(chan struct{})
	c.RegisterHandler(funcHandler{topic: "signals", fn: func(context.Context, []byte) error {
		close(done)
		return errors.New("boom")
	}})
	require.NoError(t, c.Start())
	reader.msgs <- kafka.Message{Topic: "signals", Offset: 1}
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	assert.Empty(t, reader.Committed())
}

func TestConsumer_StartWithoutHandlers(t *testing.T) {
	c := newTestConsumer(t, &chanReader{msgs: make(chan kafka.Message)})
	assert.Error(t, c.Start())
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer(logger.Nop(), nil)
	assert.Error(t, err)
}

func TestHookChain_TraceAndPanic(t *testing.T) {
	var afterOrder []string
	chain := NewHookChain(
		TraceHook{},
		HookFuncs{After: func(context.Context, string, kafka.Message, []byte, error) { afterOrder = append(afterOrder, "second") }},
		nil,
	)
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := chain.BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceID(ctx))
	chain.AfterHandle(ctx, "t", km, nil, nil)
	assert.Equal(t, []string{"second"}, afterOrder)

	panicky := NewHookChain(HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("nope")
	}})
	_, _, _, err = panicky.BeforeHandle(context.Background(), "t", km, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestProducer_PublishEncodesJSON(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, "gzip", nil)

	require.NoError(t, p.Publish(context.Background(), "fused", []byte("AAPL"), map[string]int{"n": 1}))
	require.NoError(t, p.PublishBatch(context.Background(), "fused", []Message{{Key: []byte("X"), Value: "raw"}}))
	require.NoError(t, p.PublishBatch(context.Background(), "fused", nil))

	msgs := w.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "fused", msgs[0].Topic)
	assert.JSONEq(t, `{"n":1}`, string(msgs[0].Value))
	assert.Equal(t, "raw", string(msgs[1].Value))
}
