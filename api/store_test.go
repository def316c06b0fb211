package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"portsight/scanner"
)

func TestTaskRecordRoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	completed := created.Add(90 * time.Second)
	task := &ScanTask{
		ID:        "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678",
		Status:    StatusCompleted,
		Target:    "scanme.example",
		StartPort: 0,
		EndPort:   65535,
		TimeoutMs: 750,
		Results: []scanner.PortResult{
			{Port: 22, Banner: "SSH-2.0-OpenSSH_8.9"},
			{Port: 443},
		},
		CreatedAt:   created,
		CompletedAt: &completed,
	}

	rec, err := newTaskRecord(task)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := rec.task()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != task.ID || got.Status != task.Status || got.Target != task.Target {
		t.Fatalf("identity fields = %+v", got)
	}
	if got.StartPort != 0 || got.EndPort != 65535 || got.TimeoutMs != 750 {
		t.Fatalf("range fields = %d-%d timeout %d", got.StartPort, got.EndPort, got.TimeoutMs)
	}
	if len(got.Results) != 2 || got.Results[0] != task.Results[0] || got.Results[1] != task.Results[1] {
		t.Fatalf("results = %+v", got.Results)
	}
	if !got.CreatedAt.Equal(created) || got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Fatalf("timestamps = %v %v", got.CreatedAt, got.CompletedAt)
	}
}

func TestTaskRecordRejectsCorruptFields(t *testing.T) {
	cases := map[string]taskRecord{
		"results":      {ID: "x", Results: "[{"},
		"created_at":   {ID: "x", CreatedAt: "yesterday"},
		"completed_at": {ID: "x", CompletedAt: "2024-13-01"},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := rec.task(); err == nil {
				t.Fatalf("expected error for corrupt %s", name)
			}
		})
	}
}

func TestTaskRecordOmitsMissingResults(t *testing.T) {
	rec, err := newTaskRecord(&ScanTask{ID: "x", Status: StatusPending})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if rec.Results != "" || rec.CompletedAt != "" {
		t.Fatalf("record = %+v", rec)
	}
	got, err := rec.task()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Results != nil || got.CompletedAt != nil {
		t.Fatalf("task = %+v", got)
	}
}

func TestRedisPopHonoursCancelledContext(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	store := NewRedisStore(client, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.PopFromQueue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestMemoryStoreCopiesTasks(t *testing.T) {
	store := NewMemoryStore(1, time.Hour)
	ctx := context.Background()
	task := &ScanTask{ID: "t1", Status: StatusPending, Results: []scanner.PortResult{{Port: 1}}}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	task.Status = StatusFailed
	task.Results[0].Port = 2

	got, err := store.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending || got.Results[0].Port != 1 {
		t.Fatalf("store shares memory with caller: %+v", got)
	}
}

func TestMemoryStoreUnknownTask(t *testing.T) {
	store := NewMemoryStore(1, time.Hour)
	ctx := context.Background()
	if _, err := store.GetTask(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("get err = %v", err)
	}
	if err := store.UpdateTask(ctx, &ScanTask{ID: "missing"}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("update err = %v", err)
	}
}

func TestMemoryStoreQueueOrderAndCancel(t *testing.T) {
	store := NewMemoryStore(2, time.Hour)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := store.PushToQueue(ctx, id); err != nil {
			t.Fatalf("push %s: %v", id, err)
		}
	}
	if err := store.PushToQueue(ctx, "c"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("push to full queue err = %v, want ErrQueueFull", err)
	}
	for _, want := range []string{"a", "b"} {
		got, err := store.PopFromQueue(ctx)
		if err != nil || got != want {
			t.Fatalf("pop = %q, %v; want %q", got, err, want)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := store.PopFromQueue(cctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pop on empty queue err = %v", err)
	}
}

func TestMemoryStoreEvictsExpiredTasks(t *testing.T) {
	store := NewMemoryStore(1, time.Hour)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	old := now.Add(-2 * time.Hour)
	recent := now.Add(-time.Minute)
	_ = store.CreateTask(ctx, &ScanTask{ID: "old", Status: StatusCompleted, CompletedAt: &old})
	_ = store.CreateTask(ctx, &ScanTask{ID: "recent", Status: StatusCompleted, CompletedAt: &recent})
	_ = store.CreateTask(ctx, &ScanTask{ID: "pending", Status: StatusPending})

	if _, err := store.GetTask(ctx, "old"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expired task still present: %v", err)
	}
	for _, id := range []string{"recent", "pending"} {
		if _, err := store.GetTask(ctx, id); err != nil {
			t.Fatalf("task %s evicted: %v", id, err)
		}
	}
}
