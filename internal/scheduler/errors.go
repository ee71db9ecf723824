package scheduler

import "errors"

// ErrCadenceTooSlow — cron задачи срабатывает не чаще её интервала.
var ErrCadenceTooSlow = errors.New("cron cadence is not shorter than task interval")
