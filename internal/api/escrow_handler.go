package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/runner"
	"github.com/shaiso/Escrow/internal/telemetry"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListJobs возвращает каталог задач.
// GET /api/v1/escrow
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.tasks.Catalog().Jobs()

	result := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		result[i] = JobFromCatalog(j)
	}

	List(w, result, len(result))
}

// RunTask запускает задачу для зоны.
// POST /api/v1/escrow/{task}/run?tld=...
//
//	SUCCESS      → 200 с результатом
//	ALREADY_DONE → 204
//	LOCK_BUSY    → 503 + Retry-After
//	TASK_FAILURE → 500
func (h *Handler) RunTask(w http.ResponseWriter, r *http.Request) {
	task := r.PathValue("task")
	tld := normalizeTLD(r.URL.Query().Get("tld"))
	if tld == "" {
		BadRequest(w, "tld is required")
		return
	}

	res, err := h.tasks.Run(r.Context(), task, tld)

	switch {
	case err == nil && res.Outcome == domain.OutcomeAlreadyDone:
		NoContent(w)
	case err == nil:
		Success(w, RunFromResult(task, tld, res))
	case errors.Is(err, runner.ErrLockBusy):
		ServiceUnavailable(w, int(h.retryAfter.Seconds()), "task is already running, retry later")
	case res.Outcome == domain.OutcomeTaskFailure:
		logger := telemetry.WithTask(telemetry.WithTLD(telemetry.FromContext(r.Context()), tld), task)
		logger.Error("task failed", "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeTaskFailure, err.Error())
	default:
		HandleStoreError(w, h.logger, err, "")
	}
}

// ListDeposits возвращает записанные депозиты, новые первыми.
// GET /api/v1/deposits?tld=...&limit=...
func (h *Handler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		BadRequest(w, "invalid limit")
		return
	}

	deposits, err := h.deposits.List(r.Context(), normalizeTLD(r.URL.Query().Get("tld")), limit)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]DepositResponse, len(deposits))
	for i, d := range deposits {
		result[i] = DepositFromDomain(d)
	}

	List(w, result, len(result))
}

// parseLimit разбирает limit; пустое значение — defaultListLimit.
func parseLimit(s string) (int, bool) {
	if s == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxListLimit), true
}
