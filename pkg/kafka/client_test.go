package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pizzeria-rag-go/pkg/tasks"
)

type flakyProcessor struct {
	fail  bool
	calls int
}

func (f *flakyProcessor) Process(context.Context, tasks.IngestTask) error {
	f.calls++
	if f.fail {
		return errors.New("extraction failed")
	}
	return nil
}

func newTestConsumer(t *testing.T, proc tasks.TaskProcessor) (*Consumer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Consumer{rdb: rdb, processor: proc, maxAttempts: 3}, mr
}

func TestHandleRetriesUntilMaxAttempts(t *testing.T) {
	proc := &flakyProcessor{fail: true}
	c, mr := newTestConsumer(t, proc)
	ctx := context.Background()
	msg := []byte(`{"document_id":"chez_luigi"}`)

	assert.False(t, c.handle(ctx, msg))
	assert.False(t, c.handle(ctx, msg))
	assert.True(t, c.handle(ctx, msg))
	assert.Equal(t, 3, proc.calls)

	v, err := mr.Get("kafka:attempts:chez_luigi")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
	assert.Positive(t, mr.TTL("kafka:attempts:chez_luigi"))
}

func TestHandleSuccessClearsAttempts(t *testing.T) {
	proc := &flakyProcessor{fail: true}
	c, mr := newTestConsumer(t, proc)
	ctx := context.Background()
	msg := []byte(`{"document_id":"marco_fuso"}`)

	assert.False(t, c.handle(ctx, msg))
	assert.True(t, mr.Exists("kafka:attempts:marco_fuso"))

	proc.fail = false
	assert.True(t, c.handle(ctx, msg))
	assert.False(t, mr.Exists("kafka:attempts:marco_fuso"))
}

func TestHandleCommitsMalformedMessages(t *testing.T) {
	proc := &flakyProcessor{}
	c, _ := newTestConsumer(t, proc)
	assert.True(t, c.handle(context.Background(), []byte("not json")))
	assert.True(t, c.handle(context.Background(), []byte(`{"file_name":"x.pdf"}`)))
	assert.Zero(t, proc.calls)
}

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, brokers(" k1:9092, ,k2:9092"))
	assert.Nil(t, brokers(""))
}
