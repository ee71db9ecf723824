// Package escrow содержит задачи escrow-депозитов и их каталог.
//
// # Задачи
//
// DepositTask — runner.Task, который за период watermark:
//
//  1. берёт следующий номер ревизии депозита (DepositStore.NextRevision)
//  2. снимает количество объектов реестра на момент watermark (Snapshotter)
//  3. рендерит XML-заголовок депозита
//  4. атомарно пишет файл <tld>_<YYYY-MM-DD>_<full|thin>_S1_R<rev>.xml
//  5. записывает депозит в хранилище
//
// Результат зависит только от (tld, watermark, mode, revision, снимок),
// поэтому повторный запуск за тот же период отличается лишь ревизией
// и не перезаписывает ранее сделанный файл.
//
// # Каталог
//
// Job описывает одну периодическую задачу: тип курсора, интервал, аренду
// блокировки, cron-расписание триггера, режим депозита и список TLD.
// По умолчанию:
//
//	rde   RDE_STAGING  24h   каждые 12 часов  FULL
//	brda  BRDA         168h  ежедневно        THIN
//
// # Service
//
// Service связывает каталог с runner: Run(ctx, job, tld) строит задачу
// и вызывает runner.RunWithCursorAdvance с параметрами job.
// Им пользуются HTTP API и воркер триггеров.
package escrow
