package api

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned by MemoryStore when every queue slot is taken.
var ErrQueueFull = errors.New("task queue is full")

// MemoryStore implements TaskStore in process memory. It is used when no Redis
// address is configured. Finished tasks are dropped once they are older than ttl.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*ScanTask
	queue chan string
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates an in-memory store whose queue holds up to queueSize pending ids.
func NewMemoryStore(queueSize int, ttl time.Duration) *MemoryStore {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &MemoryStore{
		tasks: make(map[string]*ScanTask),
		queue: make(chan string, queueSize),
		ttl:   ttl,
		now:   time.Now,
	}
}

// CreateTask stores a copy of task.
func (s *MemoryStore) CreateTask(_ context.Context, task *ScanTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// GetTask returns a copy of the stored task.
func (s *MemoryStore) GetTask(_ context.Context, id string) (*ScanTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(task), nil
}

// UpdateTask replaces the stored task.
func (s *MemoryStore) UpdateTask(_ context.Context, task *ScanTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return ErrTaskNotFound
	}
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// PushToQueue enqueues a task ID. It fails with ErrQueueFull instead of blocking the caller.
func (s *MemoryStore) PushToQueue(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.queue <- taskID:
		return nil
	default:
		return ErrQueueFull
	}
}

// PopFromQueue blocks until a task ID is available.
func (s *MemoryStore) PopFromQueue(ctx context.Context) (string, error) {
	select {
	case id := <-s.queue:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *MemoryStore) evictExpiredLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, task := range s.tasks {
		if task.CompletedAt != nil && task.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
}

func cloneTask(task *ScanTask) *ScanTask {
	c := *task
	if task.Results != nil {
		c.Results = append(c.Results[:0:0], task.Results...)
	}
	if task.CompletedAt != nil {
		t := *task.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
