// Package api содержит HTTP API сервер escrow.
//
// Структура:
//   - handler.go        — Handler с DI (runner задач, хранилища, clock, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, metrics, recovery)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - escrow_handler.go — каталог, ручной запуск задачи, депозиты
//   - cursor_handler.go — просмотр и сброс курсоров
//   - lock_handler.go   — просмотр блокировок
//
// Ручной запуск отображает исход runner в HTTP статус: 200 SUCCESS,
// 204 ALREADY_DONE, 503 LOCK_BUSY (с Retry-After), 500 TASK_FAILURE.
package api
