package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Jayphen/habisnooze/internal/types"
)

// setupTestRedis creates a test Redis client with miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	client := NewFromRedis(rdb)
	return client, mr
}

func sampleSummary(runID string, status types.RunStatus) *types.RunSummary {
	started := time.Date(2025, 6, 10, 21, 0, 0, 0, time.UTC)
	return &types.RunSummary{
		RunID:         runID,
		Status:        status,
		StartedAt:     started,
		FinishedAt:    started.Add(2 * time.Second),
		ReferenceDate: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		Fetched:       4,
		Eligible:      2,
		Created:       1,
		Failed:        1,
		Snoozed:       []types.SnoozedTask{{DailyID: "d-1", Text: "Stretch", TodoID: "t-1"}},
		Failures:      []types.SnoozedTask{{DailyID: "d-2", Text: "Read", Error: "status 400"}},
	}
}

func TestSetAndGetRunSummary(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	tests := []struct {
		name    string
		summary *types.RunSummary
	}{
		{name: "partial run", summary: sampleSummary("run-1", types.RunPartial)},
		{name: "fetch failure", summary: &types.RunSummary{
			RunID:  "run-2",
			Status: types.RunFetchFailed,
			Error:  "habitica list tasks: transport error",
		}},
		{name: "no tasks", summary: &types.RunSummary{RunID: "run-3", Status: types.RunNoTasks}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := client.SetRunSummary(ctx, tt.summary); err != nil {
				t.Fatalf("SetRunSummary failed: %v", err)
			}

			got, err := client.GetRunSummary(ctx)
			if err != nil {
				t.Fatalf("GetRunSummary failed: %v", err)
			}
			if got == nil {
				t.Fatal("GetRunSummary returned nil")
			}

			if got.RunID != tt.summary.RunID {
				t.Errorf("RunID mismatch: got %s, want %s", got.RunID, tt.summary.RunID)
			}
			if got.Status != tt.summary.Status {
				t.Errorf("Status mismatch: got %s, want %s", got.Status, tt.summary.Status)
			}
			if got.Created != tt.summary.Created || got.Failed != tt.summary.Failed {
				t.Errorf("counts mismatch: got %d/%d, want %d/%d",
					got.Created, got.Failed, tt.summary.Created, tt.summary.Failed)
			}
			if got.Error != tt.summary.Error {
				t.Errorf("Error mismatch: got %q, want %q", got.Error, tt.summary.Error)
			}
			if !got.StartedAt.Equal(tt.summary.StartedAt) {
				t.Errorf("StartedAt mismatch: got %v, want %v", got.StartedAt, tt.summary.StartedAt)
			}
			if len(got.Snoozed) != len(tt.summary.Snoozed) {
				t.Errorf("Snoozed length mismatch: got %d, want %d", len(got.Snoozed), len(tt.summary.Snoozed))
			}
		})
	}
}

func TestGetRunSummary_NotFound(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	got, err := client.GetRunSummary(context.Background())
	if err != nil {
		t.Fatalf("GetRunSummary failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil summary, got %+v", got)
	}
}

func TestGetRunSummary_Corrupt(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	if err := mr.Set(LastRunKey, "{not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := client.GetRunSummary(context.Background()); err == nil {
		t.Error("Expected decode error, got nil")
	}
}

func TestRunSummaryExpiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	if err := client.SetRunSummary(ctx, sampleSummary("run-1", types.RunCompleted)); err != nil {
		t.Fatalf("SetRunSummary failed: %v", err)
	}

	for _, key := range []string{LastRunKey, RunHistoryKey} {
		ttl := mr.TTL(key)
		if ttl < SummaryTTL-time.Second || ttl > SummaryTTL+time.Second {
			t.Errorf("%s TTL mismatch: got %v, want ~%v", key, ttl, SummaryTTL)
		}
	}

	mr.FastForward(SummaryTTL + time.Second)

	got, err := client.GetRunSummary(ctx)
	if err != nil {
		t.Fatalf("GetRunSummary failed: %v", err)
	}
	if got != nil {
		t.Error("Expected summary to expire")
	}
}

func TestGetRunHistory(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := client.SetRunSummary(ctx, sampleSummary(fmt.Sprintf("run-%d", i), types.RunCompleted)); err != nil {
			t.Fatalf("SetRunSummary failed: %v", err)
		}
	}

	runs, err := client.GetRunHistory(ctx, 10)
	if err != nil {
		t.Fatalf("GetRunHistory failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-3" || runs[2].RunID != "run-1" {
		t.Errorf("Expected newest first, got %s..%s", runs[0].RunID, runs[2].RunID)
	}

	limited, err := client.GetRunHistory(ctx, 2)
	if err != nil {
		t.Fatalf("GetRunHistory failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(limited))
	}
}

func TestRunHistory_MaxLimit(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	for i := 0; i < MaxRunHistory+10; i++ {
		if err := client.SetRunSummary(ctx, sampleSummary(fmt.Sprintf("run-%d", i), types.RunCompleted)); err != nil {
			t.Fatalf("SetRunSummary failed: %v", err)
		}
	}

	runs, err := client.GetRunHistory(ctx, 0)
	if err != nil {
		t.Fatalf("GetRunHistory failed: %v", err)
	}
	if len(runs) != MaxRunHistory {
		t.Errorf("Expected %d runs, got %d", MaxRunHistory, len(runs))
	}
}

func TestGetRunHistory_SkipsCorrupt(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	if err := client.SetRunSummary(ctx, sampleSummary("run-1", types.RunCompleted)); err != nil {
		t.Fatalf("SetRunSummary failed: %v", err)
	}
	if _, err := mr.Lpush(RunHistoryKey, "garbage"); err != nil {
		t.Fatal(err)
	}

	runs, err := client.GetRunHistory(ctx, 10)
	if err != nil {
		t.Fatalf("GetRunHistory failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-1" {
		t.Errorf("Expected only run-1, got %+v", runs)
	}
}

func TestRunLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	ok, err := client.AcquireRunLock(ctx, "replica-a", time.Minute)
	if err != nil {
		t.Fatalf("AcquireRunLock failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected replica-a to acquire the lock")
	}

	ok, err = client.AcquireRunLock(ctx, "replica-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireRunLock failed: %v", err)
	}
	if ok {
		t.Error("Expected replica-b to be refused while replica-a holds the lock")
	}

	owner, err := client.RunLockOwner(ctx)
	if err != nil {
		t.Fatalf("RunLockOwner failed: %v", err)
	}
	if owner != "replica-a" {
		t.Errorf("Owner mismatch: got %q, want replica-a", owner)
	}

	// A release by a non-owner leaves the lock in place.
	if err := client.ReleaseRunLock(ctx, "replica-b"); err != nil {
		t.Fatalf("ReleaseRunLock failed: %v", err)
	}
	if !mr.Exists(RunLockKey) {
		t.Error("Lock released by a non-owner")
	}

	if err := client.ReleaseRunLock(ctx, "replica-a"); err != nil {
		t.Fatalf("ReleaseRunLock failed: %v", err)
	}
	if mr.Exists(RunLockKey) {
		t.Error("Lock still present after owner released it")
	}

	owner, err = client.RunLockOwner(ctx)
	if err != nil {
		t.Fatalf("RunLockOwner failed: %v", err)
	}
	if owner != "" {
		t.Errorf("Expected no owner, got %q", owner)
	}
}

func TestRunLockExpiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	if ok, err := client.AcquireRunLock(ctx, "replica-a", time.Minute); err != nil || !ok {
		t.Fatalf("AcquireRunLock = %v, %v", ok, err)
	}

	mr.FastForward(time.Minute + time.Second)

	ok, err := client.AcquireRunLock(ctx, "replica-b", time.Minute)
	if err != nil {
		t.Fatalf("AcquireRunLock failed: %v", err)
	}
	if !ok {
		t.Error("Expected the expired lock to be free")
	}
}

func TestNewClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewClient("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	defer client.Close()

	if !IsAvailable("redis://" + mr.Addr()) {
		t.Error("Expected Redis to be available")
	}
}

func TestNewClient_Errors(t *testing.T) {
	if _, err := NewClient("not-a-url"); err == nil {
		t.Error("Expected parse error, got nil")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewClient("redis://" + addr); err == nil {
		t.Error("Expected connection error, got nil")
	}
	if IsAvailable("redis://" + addr) {
		t.Error("Expected Redis to be unavailable")
	}
}

func TestClose(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	err := client.Close()
	if err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Verify connection is closed (operations should fail)
	ctx := context.Background()
	err = client.rdb.Ping(ctx).Err()
	if err == nil {
		t.Error("Expected error after closing connection, got nil")
	}
}
