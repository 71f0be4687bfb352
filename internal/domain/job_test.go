package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func testDefinition(maxAttempts int) *JobDefinition {
	return &JobDefinition{
		Name:        "send_email",
		QueueName:   "emails",
		MaxAttempts: maxAttempts,
		Processor: ProcessorFunc(func(context.Context, *Job) error {
			return nil
		}),
	}
}

// --- Job Tests ---

func TestNewJob(t *testing.T) {
	def := testDefinition(3)
	job := NewJob(def, map[string]any{"to": "a@b.c"})

	if job.UUID == "" {
		t.Error("UUID should be set")
	}
	if job.Name != "send_email" {
		t.Errorf("expected name send_email, got %s", job.Name)
	}
	if job.Attempts != 1 {
		t.Errorf("expected attempts 1, got %d", job.Attempts)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if job.QueueName() != "emails" {
		t.Errorf("expected queue emails, got %s", job.QueueName())
	}
}

func TestJob_IncrementAttempts_Boundary(t *testing.T) {
	job := NewJob(testDefinition(3), nil)

	// 1 → 2 → 3 допустимы
	for want := 2; want <= 3; want++ {
		if err := job.IncrementAttempts(); err != nil {
			t.Fatalf("increment to %d: unexpected error: %v", want, err)
		}
		if job.Attempts != want {
			t.Fatalf("expected attempts %d, got %d", want, job.Attempts)
		}
	}

	// attempts == maxAttempts — следующий инкремент падает
	err := job.IncrementAttempts()
	if !errors.Is(err, ErrMaximumAttemptsExceeded) {
		t.Fatalf("expected ErrMaximumAttemptsExceeded, got %v", err)
	}

	var unresolvable *UnresolvableError
	if !errors.As(err, &unresolvable) {
		t.Fatalf("expected UnresolvableError, got %T", err)
	}
	if unresolvable.Job != job {
		t.Error("error should carry the job")
	}
	if job.Attempts != 3 {
		t.Errorf("attempts must not exceed max, got %d", job.Attempts)
	}
}

func TestJob_IncrementAttempts_Unbounded(t *testing.T) {
	job := NewJob(testDefinition(0), nil)

	for i := 0; i < 100; i++ {
		if err := job.IncrementAttempts(); err != nil {
			t.Fatalf("unbounded job should never fail: %v", err)
		}
	}
	if job.Attempts != 101 {
		t.Errorf("expected attempts 101, got %d", job.Attempts)
	}
}

func TestJob_Parameter_Missing(t *testing.T) {
	job := NewJob(testDefinition(0), map[string]any{"to": "a@b.c"})

	_, err := job.Parameter("subject")
	if !errors.Is(err, ErrJobValidation) {
		t.Fatalf("expected ErrJobValidation, got %v", err)
	}

	var unresolvable *UnresolvableError
	if !errors.As(err, &unresolvable) || unresolvable.Job != job {
		t.Error("validation error should carry the job")
	}
}

func TestJob_TypedParameters(t *testing.T) {
	job := NewJob(testDefinition(0), map[string]any{
		"to":    "a@b.c",
		"count": float64(3),
		"ratio": 1.5,
	})

	to, err := job.StringParameter("to")
	if err != nil || to != "a@b.c" {
		t.Errorf("StringParameter: got %q, %v", to, err)
	}

	count, err := job.IntParameter("count")
	if err != nil || count != 3 {
		t.Errorf("IntParameter: got %d, %v", count, err)
	}

	if _, err := job.IntParameter("ratio"); !errors.Is(err, ErrJobValidation) {
		t.Errorf("non-integer float should fail validation, got %v", err)
	}
	if _, err := job.StringParameter("count"); !errors.Is(err, ErrJobValidation) {
		t.Errorf("number as string should fail validation, got %v", err)
	}
}

func TestJob_SetParameter(t *testing.T) {
	job := &Job{Name: "x"}
	job.SetParameter("key", "value")

	val, err := job.Parameter("key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "value" {
		t.Errorf("expected value, got %v", val)
	}
}

// --- Serialization Tests ---

func TestJob_Encode_WireFormat(t *testing.T) {
	job := NewJob(testDefinition(0), map[string]any{"to": "a@b.c"})

	body, err := job.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, field := range []string{"jobUuid", "jobName", "attempts", "createdAt", "jobParameters", "executionPlannedAt"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("field %s is missing in %s", field, body)
		}
	}
	if raw["executionPlannedAt"] != nil {
		t.Errorf("executionPlannedAt should be null, got %v", raw["executionPlannedAt"])
	}

	createdAt, _ := raw["createdAt"].(string)
	if _, err := time.Parse(time.RFC3339, createdAt); err != nil {
		t.Errorf("createdAt should be RFC3339, got %q", createdAt)
	}
}

func TestJob_RoundTrip(t *testing.T) {
	def := testDefinition(5)
	registry, err := NewDefinitions(def)
	if err != nil {
		t.Fatalf("NewDefinitions: %v", err)
	}

	job := NewJob(def, map[string]any{"to": "a@b.c", "nested": map[string]any{"k": "v"}})
	job.Attempts = 3
	job.PlanExecution(time.Now().Add(time.Hour))

	body, err := job.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	loaded, err := NewJobLoader(registry).Load(body)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.UUID != job.UUID {
		t.Errorf("uuid mismatch: %s != %s", loaded.UUID, job.UUID)
	}
	if loaded.Name != job.Name {
		t.Errorf("name mismatch: %s != %s", loaded.Name, job.Name)
	}
	if loaded.Attempts != 3 {
		t.Errorf("expected attempts 3, got %d", loaded.Attempts)
	}
	if !loaded.CreatedAt.Equal(job.CreatedAt) {
		t.Errorf("createdAt mismatch: %v != %v", loaded.CreatedAt, job.CreatedAt)
	}
	if loaded.ExecutionPlannedAt == nil || !loaded.ExecutionPlannedAt.Equal(*job.ExecutionPlannedAt) {
		t.Errorf("executionPlannedAt mismatch: %v", loaded.ExecutionPlannedAt)
	}
	if loaded.Parameters["to"] != "a@b.c" {
		t.Errorf("parameter mismatch: %v", loaded.Parameters)
	}
	if loaded.Definition != def {
		t.Error("definition should be resolved from registry")
	}
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"empty name", `{"jobUuid":"1","jobName":"","attempts":1}`},
		{"wrong type", `{"jobName":42}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tc.body))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
			if !strings.HasPrefix(err.Error(), "unresolvable:") {
				t.Errorf("expected unresolvable error, got %q", err.Error())
			}
		})
	}
}
