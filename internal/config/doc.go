// Package config загружает настройки процессов escrow.
//
// Источники:
//   - переменные окружения (Load) — адреса хранилищ и брокера, порты, backend-ы;
//   - YAML-файл каталога задач (LoadCatalog) — какие задачи, для каких зон и по какому расписанию.
//
// Без CATALOG_PATH используется каталог по умолчанию (rde ежедневно, brda еженедельно).
package config
