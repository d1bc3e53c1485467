package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingProcessor) Process(_ context.Context, task IngestTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, task.DocumentID)
	if task.DocumentID == "broken" {
		return errors.New("extraction failed")
	}
	return nil
}

func TestInlineQueueProcessesInOrder(t *testing.T) {
	proc := &recordingProcessor{}
	q := NewInlineQueue(proc, 4)
	q.Start(context.Background())

	ctx := context.Background()
	for _, id := range []string{"chez_luigi", "broken", "marco_fuso"} {
		require.NoError(t, q.Enqueue(ctx, IngestTask{DocumentID: id}))
	}
	require.NoError(t, q.Close())

	assert.Equal(t, []string{"chez_luigi", "broken", "marco_fuso"}, proc.seen)
	assert.ErrorIs(t, q.Enqueue(ctx, IngestTask{DocumentID: "late"}), ErrQueueClosed)
	assert.NoError(t, q.Close())
}
