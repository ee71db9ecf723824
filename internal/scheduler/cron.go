package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// cadenceSamples — сколько срабатываний просматривает MaxGap.
const cadenceSamples = 64

// ParseCron разбирает cron-выражение.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// NextFire возвращает следующее срабатывание после from (в UTC).
func NextFire(sched cron.Schedule, from time.Time) time.Time {
	return sched.Next(from.UTC()).UTC()
}

// MaxGap — наибольший промежуток между соседними срабатываниями,
// начиная с from. Смотрит cadenceSamples срабатываний.
func MaxGap(sched cron.Schedule, from time.Time) time.Duration {
	var gap time.Duration
	prev := NextFire(sched, from)
	for range cadenceSamples {
		next := NextFire(sched, prev)
		if next.IsZero() {
			break
		}
		gap = max(gap, next.Sub(prev))
		prev = next
	}
	return gap
}

// CheckCadence проверяет, что триггеры приходят чаще, чем сдвигается курсор.
// Runner догоняет по одному интервалу за вызов, поэтому при редком cron
// отставший курсор не догонит текущий день.
func CheckCadence(sched cron.Schedule, interval time.Duration, from time.Time) error {
	if gap := MaxGap(sched, from); gap >= interval {
		return fmt.Errorf("%w: cron gap %v, interval %v", ErrCadenceTooSlow, gap, interval)
	}
	return nil
}
