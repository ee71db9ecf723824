package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/domain"
)

// ListCursors возвращает все сохранённые курсоры.
// GET /api/v1/cursors
func (h *Handler) ListCursors(w http.ResponseWriter, r *http.Request) {
	cursors, err := h.cursors.List(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	startOfToday := clock.StartOfDay(h.clock.Now())
	result := make([]CursorResponse, len(cursors))
	for i, c := range cursors {
		result[i] = CursorFromDomain(c, startOfToday)
	}

	List(w, result, len(result))
}

// GetCursor возвращает курсор (tld, type).
// Отсутствующий курсор показывается со значением по умолчанию — началом текущих суток.
// GET /api/v1/cursors/{tld}/{type}
func (h *Handler) GetCursor(w http.ResponseWriter, r *http.Request) {
	tld, ct, ok := cursorKey(w, r)
	if !ok {
		return
	}

	watermark, found, err := h.cursors.Load(r.Context(), tld, ct)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	startOfToday := clock.StartOfDay(h.clock.Now())
	if !found {
		Success(w, CursorResponse{TLD: tld, Type: ct.String(), Watermark: startOfToday, Due: true})
		return
	}

	Success(w, CursorFromDomain(domain.Cursor{Scope: tld, Type: ct, Watermark: watermark}, startOfToday))
}

// ResetCursor устанавливает курсор, в том числе назад.
// Используется оператором для повторной генерации прошедших периодов.
// PUT /api/v1/cursors/{tld}/{type}
func (h *Handler) ResetCursor(w http.ResponseWriter, r *http.Request) {
	tld, ct, ok := cursorKey(w, r)
	if !ok {
		return
	}

	var req ResetCursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Watermark.IsZero() {
		BadRequest(w, "watermark is required")
		return
	}

	watermark := req.Watermark.UTC()
	if err := h.cursors.Reset(r.Context(), tld, ct, watermark); HandleStoreError(w, h.logger, err, "") {
		return
	}

	h.logger.Warn("cursor reset by operator",
		"tld", tld,
		"cursor_type", ct,
		"watermark", watermark,
		"remote_addr", r.RemoteAddr,
	)

	startOfToday := clock.StartOfDay(h.clock.Now())
	Success(w, CursorFromDomain(domain.Cursor{Scope: tld, Type: ct, Watermark: watermark}, startOfToday))
}

// cursorKey разбирает {tld}/{type} из пути. При ошибке пишет 400.
func cursorKey(w http.ResponseWriter, r *http.Request) (string, domain.CursorType, bool) {
	tld := normalizeTLD(r.PathValue("tld"))
	ct, err := domain.ParseCursorType(strings.ToUpper(r.PathValue("type")))
	if err != nil {
		BadRequest(w, err.Error())
		return "", "", false
	}
	return tld, ct, true
}

// normalizeTLD приводит зону к виду, в котором она хранится в каталоге
// и курсорах: без пробелов, в нижнем регистре.
func normalizeTLD(tld string) string {
	return strings.ToLower(strings.TrimSpace(tld))
}
