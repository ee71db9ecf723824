// Package cli реализует escrowctl — утилиту оператора escrow.
//
// CLI работает через HTTP API и не импортирует внутренние пакеты системы.
//
// Client инкапсулирует HTTP-запросы и разбор ответов (DataResponse,
// ListResponse, ErrorResponse). Ошибки API возвращаются как *APIError;
// для 503 в нём заполнен RetryAfter.
//
// Output печатает таблицы (text/tabwriter) или JSON (--json). Данные
// идут в stdout, сообщения — в stderr, поэтому работает pipe:
//
//	escrowctl cursor list --json | jq .
//
// Команды:
//   - task: list, run
//   - cursor: list, show, set
//   - lock: list
//   - deposit: list
//
// Каждая группа создаётся фабричной функцией (NewTaskCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
