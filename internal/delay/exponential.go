package delay

import (
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// Exponential — экспоненциальная задержка.
//
//	delay = initialDelay * 2^(attempts-1), но не больше maximumDelay
//
// Попытки нумеруются с 1: первая попытка даёт множитель 2^0 = 1.
type Exponential struct {
	initialMs int64
	maximumMs int64
}

// NewExponential создаёт экспоненциальную стратегию.
// maximum меньше initial поднимается до initial.
func NewExponential(initial, maximum time.Duration) *Exponential {
	initialMs := max(initial.Milliseconds(), 0)
	maximumMs := max(maximum.Milliseconds(), initialMs)

	return &Exponential{initialMs: initialMs, maximumMs: maximumMs}
}

// DelayWithMilliseconds возвращает задержку в миллисекундах для номера попытки.
func (e *Exponential) DelayWithMilliseconds(attempts int) int64 {
	delay := e.initialMs
	if delay == 0 {
		return 0
	}

	// Удваиваем по шагам, чтобы не переполнить int64 на больших attempts
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= e.maximumMs {
			return e.maximumMs
		}
	}

	return min(delay, e.maximumMs)
}

// Delay возвращает задержку в секундах (целочисленное деление).
func (e *Exponential) Delay(attempts int) int64 {
	return Seconds(e.DelayWithMilliseconds(attempts))
}

// DelayMilliseconds реализует domain.FailResolveStrategy.
func (e *Exponential) DelayMilliseconds(job *domain.Job, _ error) (int64, error) {
	return e.DelayWithMilliseconds(job.Attempts), nil
}

// TargetQueue реализует domain.FailResolveStrategy.
func (e *Exponential) TargetQueue(job *domain.Job, _ error) string {
	return sameQueue(job)
}
