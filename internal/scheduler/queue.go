package scheduler

import (
	"container/heap"
	"context"
	"sync"
)

// JobKind distinguishes a sweep over every enabled category from a single
// category re-check.
type JobKind string

const (
	JobFull     JobKind = "full"
	JobCategory JobKind = "category"
)

// Job priorities. Higher runs first; equal priorities run in submission order.
const (
	PriorityPeriodic = 0
	PriorityManual   = 5
	PriorityStartup  = 10
)

// Job is one unit of scheduler work.
type Job struct {
	Kind        JobKind
	CategoryKey string // set for JobCategory
	Priority    int
	Reason      string

	seq uint64
}

// jobQueue is a max-heap on priority with FIFO tie-breaking by sequence.
type jobQueue []*Job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *jobQueue) Push(x interface{}) { *q = append(*q, x.(*Job)) }

func (q *jobQueue) Pop() interface{} {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return job
}

// JobQueue is a blocking priority queue consumed by the single scheduler
// worker. Producers (ticker, operator commands, startup) push from any
// goroutine.
type JobQueue struct {
	mu      sync.Mutex
	heap    jobQueue
	nextSeq uint64
	wake    chan struct{}
}

func NewJobQueue() *JobQueue {
	q := &JobQueue{wake: make(chan struct{}, 1)}
	heap.Init(&q.heap)
	return q
}

// Push enqueues a job. Never blocks.
func (q *JobQueue) Push(job Job) {
	q.mu.Lock()
	job.seq = q.nextSeq
	q.nextSeq++
	heap.Push(&q.heap, &job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop blocks until a job is available or ctx is cancelled.
func (q *JobQueue) Pop(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if q.heap.Len() > 0 {
			job := heap.Pop(&q.heap).(*Job)
			q.mu.Unlock()
			return *job, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
}

// Len reports the number of queued jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
