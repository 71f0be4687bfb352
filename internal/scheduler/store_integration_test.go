//go:build integration

package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	pool, err := NewPool(ctx, os.Getenv("DB_URL"))
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	msg := ScheduledMessage{
		EventID:              uuid.NewString(),
		JobID:                "job-1",
		DestinationQueueName: "emails",
		DeliveryScheduledAt:  time.Now().Add(-time.Minute).UTC().Truncate(time.Second),
		RemainingRetries:     -1,
		Data:                 `{"jobName":"send_email"}`,
	}

	// Повтор eventId игнорируется.
	for range 2 {
		if err := store.ScheduleMessage(ctx, msg); err != nil {
			t.Fatalf("ScheduleMessage: %v", err)
		}
	}

	var got []ScheduledMessage
	n, err := store.Dispatch(ctx, time.Now(), 100, func(m ScheduledMessage) Result {
		if m.EventID == msg.EventID {
			got = append(got, m)
		}
		return Result{Done: true}
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n < 1 || len(got) != 1 {
		t.Fatalf("expected message dispatched once, got %d (%d total)", len(got), n)
	}

	got = nil
	if _, err := store.Dispatch(ctx, time.Now(), 100, func(m ScheduledMessage) Result {
		if m.EventID == msg.EventID {
			got = append(got, m)
		}
		return Result{Done: true}
	}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(got) != 0 {
		t.Error("expected delivered message to be deleted")
	}

	failing := msg
	failing.EventID = uuid.NewString()
	if err := store.ScheduleMessage(ctx, failing); err != nil {
		t.Fatalf("ScheduleMessage: %v", err)
	}

	retryAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	if _, err := store.Dispatch(ctx, time.Now(), 100, func(m ScheduledMessage) Result {
		if m.EventID == failing.EventID {
			return Result{RetryAt: retryAt}
		}
		return Result{Done: true}
	}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var retried []ScheduledMessage
	if _, err := store.Dispatch(ctx, retryAt.Add(time.Minute), 100, func(m ScheduledMessage) Result {
		if m.EventID == failing.EventID {
			retried = append(retried, m)
		}
		return Result{Done: true}
	}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(retried) != 1 || retried[0].DeliveryAttempts != 1 || !retried[0].DeliveryScheduledAt.Equal(retryAt) {
		t.Errorf("expected message rescheduled with 1 attempt, got %+v", retried)
	}

	ok, err := store.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock: %v, %v", ok, err)
	}
	if err := store.Unlock(ctx); err != nil {
		t.Errorf("Unlock: %v", err)
	}
}
