package delay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

func jobWithAttempts(attempts int) *domain.Job {
	def := &domain.JobDefinition{
		Name:      "report",
		QueueName: "reports",
		Processor: domain.ProcessorFunc(func(context.Context, *domain.Job) error { return nil }),
	}
	job := domain.NewJob(def, nil)
	job.Attempts = attempts
	return job
}

// --- Exponential Tests ---

func TestExponential_Delay(t *testing.T) {
	rule := NewExponential(3*time.Millisecond, 9000*time.Millisecond)

	cases := []struct {
		attempts int
		wantMs   int64
		wantSec  int64
	}{
		{1, 3, 0},
		{2, 6, 0},
		{10, 1536, 1},
		{13, 9000, 9},
		{100, 9000, 9},
	}

	for _, tc := range cases {
		if got := rule.DelayWithMilliseconds(tc.attempts); got != tc.wantMs {
			t.Errorf("attempt %d: expected %dms, got %dms", tc.attempts, tc.wantMs, got)
		}
		if got := rule.Delay(tc.attempts); got != tc.wantSec {
			t.Errorf("attempt %d: expected %ds, got %ds", tc.attempts, tc.wantSec, got)
		}
	}
}

func TestExponential_Doubles(t *testing.T) {
	rule := NewExponential(100*time.Millisecond, time.Hour)

	prev := rule.DelayWithMilliseconds(1)
	for attempt := 2; attempt <= 10; attempt++ {
		cur := rule.DelayWithMilliseconds(attempt)
		if cur != prev*2 {
			t.Fatalf("attempt %d: expected %d, got %d", attempt, prev*2, cur)
		}
		prev = cur
	}
}

func TestExponential_Strategy(t *testing.T) {
	rule := NewExponential(time.Second, time.Minute)

	ms, err := rule.DelayMilliseconds(jobWithAttempts(3), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms != 4000 {
		t.Errorf("expected 4000ms, got %d", ms)
	}
	if q := rule.TargetQueue(jobWithAttempts(3), nil); q != "reports" {
		t.Errorf("expected same queue, got %s", q)
	}
}

// --- Defined Tests ---

func TestDefined_Delay(t *testing.T) {
	rule, err := NewDefined(300*time.Second,
		Threshold{Attempts: 3, Base: 30 * time.Second},
		Threshold{Attempts: 0, Base: 0},
	)
	if err != nil {
		t.Fatalf("NewDefined: %v", err)
	}

	cases := []struct {
		attempts int
		wantSec  int64
	}{
		{1, 0},
		{2, 0},
		{3, 0},
		{4, 120},
		{9, 270},
		{10, 300},
		{50, 300},
	}

	for _, tc := range cases {
		got, err := rule.Delay(tc.attempts)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", tc.attempts, err)
		}
		if got != tc.wantSec {
			t.Errorf("attempt %d: expected %ds, got %ds", tc.attempts, tc.wantSec, got)
		}
	}
}

func TestDefined_MissingZero(t *testing.T) {
	_, err := NewDefined(time.Minute, Threshold{Attempts: 3, Base: time.Second})
	if !errors.Is(err, ErrDelayRule) {
		t.Fatalf("expected ErrDelayRule, got %v", err)
	}
	if !strings.Contains(err.Error(), "Missing definition for 0 attempts") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestDefined_NotDescending(t *testing.T) {
	_, err := NewDefined(time.Minute,
		Threshold{Attempts: 0, Base: 0},
		Threshold{Attempts: 3, Base: 30 * time.Second},
	)
	if !errors.Is(err, ErrDelayRule) {
		t.Fatalf("expected ErrDelayRule, got %v", err)
	}
	if !strings.Contains(err.Error(), "Delays definition keys must be sorted descending") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestDefined_NoMatch(t *testing.T) {
	rule, err := NewDefined(time.Minute, Threshold{Attempts: 0, Base: time.Second})
	if err != nil {
		t.Fatalf("NewDefined: %v", err)
	}

	// attempts = 0 не проходит ни один порог
	if _, err := rule.DelayWithMilliseconds(0); !errors.Is(err, ErrDelayRule) {
		t.Errorf("expected ErrDelayRule, got %v", err)
	}
}

// --- Constant / DifferentQueue Tests ---

func TestConstant(t *testing.T) {
	rule := NewConstant(5 * time.Second)
	job := jobWithAttempts(7)

	ms, err := rule.DelayMilliseconds(job, errors.New("x"))
	if err != nil || ms != 5000 {
		t.Errorf("expected 5000ms, got %d (%v)", ms, err)
	}
	if q := rule.TargetQueue(job, nil); q != "reports" {
		t.Errorf("expected same queue, got %s", q)
	}
	if NewConstant(-time.Second).delayMs != 0 {
		t.Error("negative delay should be clamped to 0")
	}
}

func TestDifferentQueue(t *testing.T) {
	rule := NewDifferentQueue("reports.slow")
	job := jobWithAttempts(2)

	ms, err := rule.DelayMilliseconds(job, nil)
	if err != nil || ms != 0 {
		t.Errorf("expected 0ms, got %d (%v)", ms, err)
	}
	if q := rule.TargetQueue(job, nil); q != "reports.slow" {
		t.Errorf("expected reports.slow, got %s", q)
	}
}

func TestSeconds(t *testing.T) {
	if Seconds(1999) != 1 || Seconds(999) != 0 || Seconds(9000) != 9 {
		t.Error("Seconds must truncate")
	}
	if Duration(1500) != 1500*time.Millisecond {
		t.Error("Duration conversion is wrong")
	}
}
