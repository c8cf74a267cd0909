package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueue_PriorityOrder(t *testing.T) {
	q := NewJobQueue()
	q.Push(Job{Kind: JobFull, Priority: PriorityPeriodic, Reason: "periodic"})
	q.Push(Job{Kind: JobCategory, CategoryKey: "TRVALY_5Y", Priority: PriorityManual})
	q.Push(Job{Kind: JobFull, Priority: PriorityStartup, Reason: "startup"})

	ctx := context.Background()

	job, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "startup", job.Reason)

	job, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, JobCategory, job.Kind)

	job, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "periodic", job.Reason)
}

func TestJobQueue_FIFOWithinPriority(t *testing.T) {
	q := NewJobQueue()
	keys := []string{"a", "b", "c", "d"}
	for _, key := range keys {
		q.Push(Job{Kind: JobCategory, CategoryKey: key, Priority: PriorityManual})
	}

	for _, want := range keys {
		job, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, job.CategoryKey)
	}
}

func TestJobQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewJobQueue()

	got := make(chan Job, 1)
	go func() {
		job, err := q.Pop(context.Background())
		if err == nil {
			got <- job
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(Job{Kind: JobFull, Reason: "late"})

	select {
	case job := <-got:
		assert.Equal(t, "late", job.Reason)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up on Push")
	}
}

func TestJobQueue_PopHonorsCancellation(t *testing.T) {
	q := NewJobQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
