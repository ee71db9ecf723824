// Package app собирает зависимости процессов escrow из config.Config.
//
// OpenStores выбирает хранилище курсоров, депозитов и блокировок
// (postgres, sqlite или память) и backend блокировок (хранилище или Redis).
// NewService строит runner и escrow.Service поверх выбранных хранилищ.
// Serve и HealthHandler — общий HTTP-обвес бинарников: /healthz и graceful shutdown.
package app
