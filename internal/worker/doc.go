// Package worker выполняет escrow-задачи по триггерам.
//
// # Обзор
//
// Worker — stateless компонент, который получает триггеры escrow.trigger
// из RabbitMQ и запускает соответствующую задачу каталога через
// escrow.Service (Locking Rolling Cursor). Повторная доставка триггера
// безопасна: задача выполняется не больше одного раза за период.
//
// # Подтверждение триггеров
//
//	SUCCESS, ALREADY_DONE             → ack
//	LOCK_BUSY, TASK_FAILURE, сбой БД  → escrow.retry (attempt+1), ack
//	attempt >= MaxAttempts            → nack → dlq.triggers
//	неизвестная задача/зона           → nack → dlq.triggers
//
// Повторы идут через очередь escrow.triggers.retry с TTL, а не через
// requeue: занятая блокировка держится до конца задачи, и немедленная
// повторная доставка только крутила бы цикл.
//
// # Sweep
//
// Раз в SweepInterval Worker обходит каталог и запускает все задачи сам.
// Это страховка на случай потерянных триггеров: курсор всё равно
// догонит текущий день.
//
// # Использование
//
//	w := worker.New(worker.Config{
//	    Tasks:     service,
//	    Publisher: publisher,
//	    Conn:      mqConn,
//	    Logger:    logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
package worker
