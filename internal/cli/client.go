package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — задача каталога.
type JobResponse struct {
	Name       string   `json:"name"`
	CursorType string   `json:"cursor_type"`
	Mode       string   `json:"mode"`
	Interval   string   `json:"interval"`
	Timeout    string   `json:"timeout"`
	Cron       string   `json:"cron"`
	TLDs       []string `json:"tlds"`
}

// RunResponse — результат запуска задачи.
type RunResponse struct {
	Task            string  `json:"task"`
	TLD             string  `json:"tld"`
	Outcome         string  `json:"outcome"`
	Watermark       string  `json:"watermark"`
	NextWatermark   string  `json:"next_watermark,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// CursorResponse — курсор.
type CursorResponse struct {
	TLD       string `json:"tld"`
	Type      string `json:"type"`
	Watermark string `json:"watermark"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Persisted bool   `json:"persisted"`
	Due       bool   `json:"due"`
}

// LockResponse — запись блокировки.
type LockResponse struct {
	Name       string `json:"name"`
	Scope      string `json:"scope"`
	AcquiredAt string `json:"acquired_at"`
	ExpiresAt  string `json:"expires_at"`
	Expired    bool   `json:"expired"`
}

// DepositResponse — записанный депозит.
type DepositResponse struct {
	TLD       string `json:"tld"`
	Watermark string `json:"watermark"`
	Mode      string `json:"mode"`
	Revision  int    `json:"revision"`
	FileName  string `json:"file_name"`
	Domains   int64  `json:"domains"`
	Contacts  int64  `json:"contacts"`
	Hosts     int64  `json:"hosts"`
	CreatedAt string `json:"created_at"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибочный ответ API.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration // из заголовка Retry-After (503)
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLockBusy сообщает, что задача уже выполняется (HTTP 503).
func IsLockBusy(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return apiErr, true
	}
	return nil, false
}

// --- Client ---

// Client — HTTP-клиент для Escrow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// Таймаут больше аренды по умолчанию не нужен: run ждёт завершения задачи.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// --- Escrow ---

// ListJobs возвращает каталог задач.
func (c *Client) ListJobs() ([]JobResponse, error) {
	var jobs []JobResponse
	err := c.list("/api/v1/escrow", nil, &jobs)
	return jobs, err
}

// RunTask запускает задачу для зоны.
// ALREADY_DONE (204) возвращается как RunResponse с Outcome ALREADY_DONE.
func (c *Client) RunTask(task, tld string) (*RunResponse, error) {
	path := "/api/v1/escrow/" + url.PathEscape(task) + "/run?" + url.Values{"tld": {tld}}.Encode()

	run := RunResponse{Task: task, TLD: tld, Outcome: "ALREADY_DONE"}
	err := c.post(path, nil, &run)
	return &run, err
}

// --- Cursors ---

// ListCursors возвращает сохранённые курсоры.
func (c *Client) ListCursors() ([]CursorResponse, error) {
	var cursors []CursorResponse
	err := c.list("/api/v1/cursors", nil, &cursors)
	return cursors, err
}

// GetCursor возвращает курсор (tld, type).
func (c *Client) GetCursor(tld, cursorType string) (*CursorResponse, error) {
	var cur CursorResponse
	err := c.get(cursorPath(tld, cursorType), &cur)
	return &cur, err
}

// SetCursor устанавливает курсор (в том числе назад).
func (c *Client) SetCursor(tld, cursorType string, watermark time.Time) (*CursorResponse, error) {
	body := map[string]time.Time{"watermark": watermark.UTC()}
	var cur CursorResponse
	err := c.put(cursorPath(tld, cursorType), body, &cur)
	return &cur, err
}

func cursorPath(tld, cursorType string) string {
	return "/api/v1/cursors/" + url.PathEscape(tld) + "/" + url.PathEscape(cursorType)
}

// --- Locks ---

// ListLocks возвращает записи блокировок.
func (c *Client) ListLocks() ([]LockResponse, error) {
	var locks []LockResponse
	err := c.list("/api/v1/locks", nil, &locks)
	return locks, err
}

// --- Deposits ---

// ListDeposits возвращает депозиты. Пустой tld — все зоны.
func (c *Client) ListDeposits(tld string, limit int) ([]DepositResponse, error) {
	params := url.Values{}
	if tld != "" {
		params.Set("tld", tld)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var deposits []DepositResponse
	err := c.list("/api/v1/deposits", params, &deposits)
	return deposits, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if sec, err := strconv.Atoi(s); err == nil {
			apiErr.RetryAfter = time.Duration(sec) * time.Second
		}
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}

	return apiErr
}
