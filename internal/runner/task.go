package runner

import (
	"context"
	"fmt"
	"time"
)

// Task — единица работы, выполняемая под блокировкой.
//
// Всё, что зависит от даты (имена файлов, содержимое отчётов), задача
// обязана вычислять от watermark, а не от текущего времени: тогда
// повторный запуск за тот же период даёт тот же результат.
type Task interface {
	// Name — идентичность задачи; входит в имя блокировки.
	Name() string

	// RunWithLock выполняет работу, пока блокировка удерживается.
	RunWithLock(ctx context.Context, watermark time.Time) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context, watermark time.Time) error
}

func (t funcTask) Name() string { return t.name }

func (t funcTask) RunWithLock(ctx context.Context, watermark time.Time) error {
	return t.fn(ctx, watermark)
}

// TaskFunc превращает функцию в Task с именем name.
func TaskFunc(name string, fn func(ctx context.Context, watermark time.Time) error) Task {
	return funcTask{name: name, fn: fn}
}

// LockName — имя блокировки для пары (task, scope): "<task> <scope>".
func LockName(task Task, scope string) string {
	return fmt.Sprintf("%s %s", task.Name(), scope)
}
