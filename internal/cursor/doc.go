// Package cursor описывает хранилище watermark-курсоров.
//
// Для каждой пары (scope, CursorType) хранится одна метка времени:
// "следующий запуск не нужен раньше этого момента". Отсутствующий курсор
// трактуется как начало текущих суток UTC.
//
// Курсор никогда не двигается назад обычной записью: Save и Advance
// отказывают при попытке регрессии. Откат доступен только
// административно (repo.CursorRepo.Reset).
package cursor
