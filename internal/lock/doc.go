// Package lock реализует именованные блокировки с ограниченным сроком
// аренды поверх транзакционного хранилища.
//
// Структура:
//   - manager.go — Manager: захват набора имён по принципу "всё или ничего",
//     освобождение с проверкой токена, ExecuteWithLocks
//   - store.go   — контракт Store, который реализуют бэкенды
//   - retry.go   — ограниченный retry транзакционных конфликтов
//   - memory.go  — in-process бэкенд
//   - redis.go   — бэкенд на Redis (Lua-скрипты)
//
// Postgres и SQLite бэкенды живут в internal/repo и internal/repo/sqlite.
//
// Использование:
//
//	mgr := lock.NewManager(lock.Config{
//	    Store:  lockRepo,
//	    Clock:  clock.System{},
//	    Logger: logger,
//	})
//
//	h, err := mgr.Acquire(ctx, []string{"rde example"}, "example", time.Hour)
//	if errors.Is(err, lock.ErrLockBusy) {
//	    // кто-то уже работает — повторим позже
//	}
//	defer mgr.Release(ctx, h)
//
// Истечение аренды — только разрешение другим её перехватить.
// Работающего владельца никто не прерывает.
package lock
