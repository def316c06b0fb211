package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TaskStore defines persistence operations for scan tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *ScanTask) error
	GetTask(ctx context.Context, id string) (*ScanTask, error)
	UpdateTask(ctx context.Context, task *ScanTask) error
	PushToQueue(ctx context.Context, taskID string) error
	// PopFromQueue blocks until a task ID is available or ctx is done.
	PopFromQueue(ctx context.Context) (string, error)
}

var (
	// ErrTaskNotFound indicates the requested task doesn't exist in the store.
	ErrTaskNotFound = errors.New("task not found")
)

const (
	queueKey   = "portsight:scans:queue"
	popTimeout = 5 * time.Second
)

// RedisStore implements TaskStore using Redis as backend.
// Task hashes expire after ttl so results only live for the polling window.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed task store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) taskKey(id string) string {
	return fmt.Sprintf("portsight:scan:%s", id)
}

// CreateTask persists a new scan task in Redis.
func (s *RedisStore) CreateTask(ctx context.Context, task *ScanTask) error {
	return s.save(ctx, task)
}

// GetTask retrieves a task by ID.
func (s *RedisStore) GetTask(ctx context.Context, id string) (*ScanTask, error) {
	cmd := s.client.HGetAll(ctx, s.taskKey(id))
	res, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrTaskNotFound
	}
	var rec taskRecord
	if err := cmd.Scan(&rec); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return rec.task()
}

// UpdateTask updates an existing task in Redis and refreshes its expiry.
func (s *RedisStore) UpdateTask(ctx context.Context, task *ScanTask) error {
	return s.save(ctx, task)
}

func (s *RedisStore) save(ctx context.Context, task *ScanTask) error {
	rec, err := newTaskRecord(task)
	if err != nil {
		return err
	}
	key := s.taskKey(task.ID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, rec)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// PushToQueue enqueues a task ID for workers to process.
func (s *RedisStore) PushToQueue(ctx context.Context, taskID string) error {
	return s.client.LPush(ctx, queueKey, taskID).Err()
}

// PopFromQueue blocks until a task ID is available. BRPOP is re-issued every
// popTimeout so a cancelled ctx is noticed.
func (s *RedisStore) PopFromQueue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := s.client.BRPop(ctx, popTimeout, queueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", err
		}
		if len(res) != 2 {
			return "", errors.New("unexpected response size from BRPOP")
		}
		return res[1], nil
	}
}

// taskRecord is the Redis hash layout of a ScanTask. Timestamps are RFC 3339 strings
// and results a JSON array so the hash stays readable from redis-cli.
type taskRecord struct {
	ID          string `redis:"id"`
	Status      string `redis:"status"`
	Target      string `redis:"target"`
	StartPort   uint16 `redis:"start_port"`
	EndPort     uint16 `redis:"end_port"`
	TimeoutMs   uint64 `redis:"timeout_ms"`
	Results     string `redis:"results"`
	CreatedAt   string `redis:"created_at"`
	CompletedAt string `redis:"completed_at"`
	Error       string `redis:"error"`
}

func newTaskRecord(task *ScanTask) (*taskRecord, error) {
	rec := &taskRecord{
		ID:        task.ID,
		Status:    task.Status,
		Target:    task.Target,
		StartPort: task.StartPort,
		EndPort:   task.EndPort,
		TimeoutMs: task.TimeoutMs,
		CreatedAt: task.CreatedAt.Format(time.RFC3339Nano),
		Error:     task.Error,
	}
	if task.Results != nil {
		encoded, err := json.Marshal(task.Results)
		if err != nil {
			return nil, fmt.Errorf("encode results: %w", err)
		}
		rec.Results = string(encoded)
	}
	if task.CompletedAt != nil {
		rec.CompletedAt = task.CompletedAt.Format(time.RFC3339Nano)
	}
	return rec, nil
}

func (r *taskRecord) task() (*ScanTask, error) {
	task := &ScanTask{
		ID:        r.ID,
		Status:    r.Status,
		Target:    r.Target,
		StartPort: r.StartPort,
		EndPort:   r.EndPort,
		TimeoutMs: r.TimeoutMs,
		Error:     r.Error,
	}
	if r.Results != "" {
		if err := json.Unmarshal([]byte(r.Results), &task.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	if r.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("decode created_at: %w", err)
		}
		task.CreatedAt = t
	}
	if r.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, r.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("decode completed_at: %w", err)
		}
		task.CompletedAt = &t
	}
	return task, nil
}
