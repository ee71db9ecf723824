package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(h.metrics),
		Logging(h.logger),
	)

	// Escrow tasks
	mux.Handle("GET /api/v1/escrow", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("POST /api/v1/escrow/{task}/run", chain(http.HandlerFunc(h.RunTask)))

	// Cursors
	mux.Handle("GET /api/v1/cursors", chain(http.HandlerFunc(h.ListCursors)))
	mux.Handle("GET /api/v1/cursors/{tld}/{type}", chain(http.HandlerFunc(h.GetCursor)))
	mux.Handle("PUT /api/v1/cursors/{tld}/{type}", chain(http.HandlerFunc(h.ResetCursor)))

	// Locks
	mux.Handle("GET /api/v1/locks", chain(http.HandlerFunc(h.ListLocks)))

	// Deposits
	mux.Handle("GET /api/v1/deposits", chain(http.HandlerFunc(h.ListDeposits)))
}
