// Package scheduler публикует триггеры escrow-задач по расписанию.
//
// Для каждой задачи каталога и каждой её зоны Scheduler хранит cron-расписание
// и время следующего срабатывания. Tick публикует триггер escrow.trigger
// для всех наступивших записей.
//
// Структура:
//   - scheduler.go — Scheduler (New, Tick, Next)
//   - cron.go      — разбор cron-выражений и проверка частоты срабатываний
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Catalog:   catalog,
//	    Publisher: publisher,
//	    Logger:    logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Дубликаты триггеров безопасны: runner выполнит задачу не больше
// одного раза за период.
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package scheduler
