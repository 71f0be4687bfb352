package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// SleepJob — имя sleep job.
const SleepJob = "sleep"

const paramDurationMs = "duration_ms"

// Sleep приостанавливает выполнение на duration_ms миллисекунд.
// Отмена ctx прерывает паузу.
func Sleep(ctx context.Context, job *domain.Job) error {
	ms, err := job.IntParameter(paramDurationMs)
	if err != nil {
		return err
	}
	if ms < 0 {
		return domain.Unresolvable(job, fmt.Errorf("%w: duration_ms must be >= 0", domain.ErrJobValidation))
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
