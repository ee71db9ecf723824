// Package runner реализует паттерн Locking Rolling Cursor.
//
// Runner даёт гарантию "не больше одного успешного выполнения за
// логический период" для задач, которые нельзя сделать идемпотентными
// (например, запись депозита в файл с детерминированным именем),
// при доставке триггеров по схеме at-least-once.
//
// Один вызов RunWithCursorAdvance:
//
//  1. startOfToday = now, обрезанное до начала суток UTC
//  2. читает курсор (нет курсора → startOfToday)
//  3. курсор после startOfToday → ALREADY_DONE, без блокировки и записей
//  4. захватывает блокировку "<task> <tld>"; занята → LOCK_BUSY
//  5. перечитывает курсор под блокировкой
//  6. вызывает задачу с watermark (логическое "сейчас" задачи)
//  7. при успехе сдвигает курсор на watermark + interval
//  8. освобождает блокировку в любом случае
//
// Курсор сдвигается ровно на один interval за вызов, даже если он
// отстал на несколько периодов. Поэтому триггер обязан срабатывать
// чаще, чем interval (например, каждые 12 часов для ежедневной задачи),
// иначе курсор не догонит текущую дату.
package runner
