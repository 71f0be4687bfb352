package delay

import (
	"fmt"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// Threshold — строка таблицы задержек.
// Для попыток больше Attempts базовая задержка равна Base.
type Threshold struct {
	Attempts int
	Base     time.Duration
}

// Defined — табличная задержка.
//
// Таблица отсортирована по убыванию порогов и обязательно содержит порог 0.
// Выбирается первый порог, строго меньший текущего числа попыток:
//
//	delay = attempts * base, но не больше maximumDelay
//
// Например, для {3: 30s, 0: 0s} попытки 1..3 дают 0, попытка 4 — 120s.
type Defined struct {
	thresholds []Threshold
	maximumMs  int64
}

// NewDefined создаёт табличную стратегию.
//
// Возвращает ErrDelayRule, если нет порога 0
// или пороги не отсортированы строго по убыванию.
func NewDefined(maximum time.Duration, thresholds ...Threshold) (*Defined, error) {
	hasZero := false
	for _, th := range thresholds {
		if th.Attempts == 0 {
			hasZero = true
			break
		}
	}
	if !hasZero {
		return nil, fmt.Errorf("%w: Missing definition for 0 attempts", ErrDelayRule)
	}

	for i := 1; i < len(thresholds); i++ {
		if thresholds[i].Attempts >= thresholds[i-1].Attempts {
			return nil, fmt.Errorf("%w: Delays definition keys must be sorted descending", ErrDelayRule)
		}
	}

	table := make([]Threshold, len(thresholds))
	copy(table, thresholds)

	return &Defined{
		thresholds: table,
		maximumMs:  max(maximum.Milliseconds(), 0),
	}, nil
}

// DelayWithMilliseconds возвращает задержку в миллисекундах для номера попытки.
func (d *Defined) DelayWithMilliseconds(attempts int) (int64, error) {
	for _, th := range d.thresholds {
		if th.Attempts < attempts {
			delay := int64(attempts) * th.Base.Milliseconds()
			return min(delay, d.maximumMs), nil
		}
	}

	return 0, fmt.Errorf("%w: unable to calculate delay for %d attempts", ErrDelayRule, attempts)
}

// Delay возвращает задержку в секундах.
func (d *Defined) Delay(attempts int) (int64, error) {
	ms, err := d.DelayWithMilliseconds(attempts)
	if err != nil {
		return 0, err
	}
	return Seconds(ms), nil
}

// DelayMilliseconds реализует domain.FailResolveStrategy.
func (d *Defined) DelayMilliseconds(job *domain.Job, _ error) (int64, error) {
	return d.DelayWithMilliseconds(job.Attempts)
}

// TargetQueue реализует domain.FailResolveStrategy.
func (d *Defined) TargetQueue(job *domain.Job, _ error) string {
	return sameQueue(job)
}
