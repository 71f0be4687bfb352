package delay

import (
	"errors"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// ErrDelayRule — некорректная конфигурация правила задержки.
var ErrDelayRule = errors.New("delay rule")

// Seconds переводит миллисекунды в секунды с отбрасыванием дробной части.
func Seconds(ms int64) int64 {
	return ms / 1000
}

// Duration переводит миллисекунды в time.Duration.
func Duration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// sameQueue возвращает очередь из определения job.
func sameQueue(job *domain.Job) string {
	return job.QueueName()
}

// Constant — фиксированная задержка, повтор в ту же очередь.
type Constant struct {
	delayMs int64
}

// NewConstant создаёт стратегию с фиксированной задержкой.
func NewConstant(d time.Duration) *Constant {
	if d < 0 {
		d = 0
	}
	return &Constant{delayMs: d.Milliseconds()}
}

// DelayMilliseconds реализует domain.FailResolveStrategy.
func (c *Constant) DelayMilliseconds(*domain.Job, error) (int64, error) {
	return c.delayMs, nil
}

// TargetQueue реализует domain.FailResolveStrategy.
func (c *Constant) TargetQueue(job *domain.Job, _ error) string {
	return sameQueue(job)
}

// DifferentQueue — повтор без задержки в фиксированную очередь.
type DifferentQueue struct {
	queue string
}

// NewDifferentQueue создаёт стратегию перенаправления.
func NewDifferentQueue(queue string) *DifferentQueue {
	return &DifferentQueue{queue: queue}
}

// DelayMilliseconds реализует domain.FailResolveStrategy.
func (d *DifferentQueue) DelayMilliseconds(*domain.Job, error) (int64, error) {
	return 0, nil
}

// TargetQueue реализует domain.FailResolveStrategy.
func (d *DifferentQueue) TargetQueue(*domain.Job, error) string {
	return d.queue
}
