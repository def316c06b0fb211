package api

import (
	"context"
	"testing"
	"time"
)

func queueTask(t *testing.T, store TaskStore, task *ScanTask) {
	t.Helper()
	id, err := generateUUID()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	task.ID = id
	task.Status = StatusPending
	task.CreatedAt = time.Now().UTC()
	ctx := context.Background()
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.PushToQueue(ctx, id); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func TestProcessTaskCompletesWithResults(t *testing.T) {
	port := startGreeter(t, "SSH-2.0-OpenSSH_9.6\r\n")
	store := NewMemoryStore(4, time.Hour)
	task := &ScanTask{Target: "127.0.0.1", StartPort: port, EndPort: port, TimeoutMs: 500}
	queueTask(t, store, task)

	processTask(context.Background(), store, discardLogger(), task.ID, 4)

	got, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %q (error %q), want completed", got.Status, got.Error)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if len(got.Results) != 1 || got.Results[0].Port != port || got.Results[0].Banner != "SSH-2.0-OpenSSH_9.6" {
		t.Fatalf("results = %+v", got.Results)
	}
}

func TestProcessTaskFailsOnInvalidRange(t *testing.T) {
	store := NewMemoryStore(4, time.Hour)
	task := &ScanTask{Target: "127.0.0.1", StartPort: 10, EndPort: 5}
	queueTask(t, store, task)

	processTask(context.Background(), store, discardLogger(), task.ID, 4)

	got, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFailed || got.Error == "" {
		t.Fatalf("task = %+v, want failed with error", got)
	}
}

func TestProcessTaskInterruptedByShutdown(t *testing.T) {
	store := NewMemoryStore(4, time.Hour)
	task := &ScanTask{Target: "127.0.0.1", StartPort: 1, EndPort: 1024}
	queueTask(t, store, task)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	processTask(ctx, store, discardLogger(), task.ID, 4)

	got, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusFailed || got.Error != "scan interrupted by shutdown" {
		t.Fatalf("task = %+v, want failed by shutdown", got)
	}
}

func TestStartWorkersDrainQueueAndStop(t *testing.T) {
	port := startGreeter(t, "220 mail.example.com ESMTP Postfix\r\n")
	store := NewMemoryStore(4, time.Hour)
	task := &ScanTask{Target: "127.0.0.1", StartPort: port, EndPort: port, TimeoutMs: 500}
	queueTask(t, store, task)

	ctx, cancel := context.WithCancel(context.Background())
	wg := StartWorkers(ctx, store, discardLogger(), 2, 8)

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.GetTask(context.Background(), task.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status == StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task still %q after 5s", got.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not exit after cancellation")
	}
}
