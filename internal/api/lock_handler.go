package api

import (
	"net/http"
)

// ListLocks возвращает записи блокировок, включая истёкшие.
// GET /api/v1/locks
func (h *Handler) ListLocks(w http.ResponseWriter, r *http.Request) {
	locks, err := h.locks.List(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	now := h.clock.Now()
	result := make([]LockResponse, len(locks))
	for i, l := range locks {
		result[i] = LockFromDomain(l, now)
	}

	List(w, result, len(result))
}
