package escrow

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Escrow/internal/domain"
)

// Job — периодическая escrow-задача из каталога.
type Job struct {
	// Name — имя задачи; входит в имя блокировки и в URL API.
	Name string `json:"name"`

	// CursorType — курсор, который задача сдвигает.
	CursorType domain.CursorType `json:"cursor_type"`

	// Mode — режим депозита.
	Mode domain.DepositMode `json:"mode"`

	// Interval — на сколько сдвигается курсор после успеха.
	Interval time.Duration `json:"interval"`

	// Timeout — аренда блокировки.
	Timeout time.Duration `json:"timeout"`

	// Cron — расписание триггеров (5 полей, robfig/cron).
	Cron string `json:"cron"`

	// TLDs — зоны, для которых задача выполняется.
	TLDs []string `json:"tlds"`
}

// HasTLD проверяет, настроена ли задача для tld.
func (j *Job) HasTLD(tld string) bool {
	return slices.Contains(j.TLDs, tld)
}

// Validate проверяет описание задачи.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidJob)
	}
	if strings.ContainsAny(j.Name, " /") {
		return fmt.Errorf("%w: %s: name must not contain spaces or slashes", ErrInvalidJob, j.Name)
	}
	if _, err := domain.ParseCursorType(string(j.CursorType)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidJob, j.Name, err)
	}
	if _, err := domain.ParseDepositMode(string(j.Mode)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidJob, j.Name, err)
	}
	if j.Interval <= 0 {
		return fmt.Errorf("%w: %s: interval must be > 0", ErrInvalidJob, j.Name)
	}
	if j.Timeout <= 0 {
		return fmt.Errorf("%w: %s: timeout must be > 0", ErrInvalidJob, j.Name)
	}
	if _, err := cron.ParseStandard(j.Cron); err != nil {
		return fmt.Errorf("%w: %s: cron %q: %w", ErrInvalidJob, j.Name, j.Cron, err)
	}
	if len(j.TLDs) == 0 {
		return fmt.Errorf("%w: %s: at least one tld is required", ErrInvalidJob, j.Name)
	}
	return nil
}

// Catalog — набор задач, упорядоченный по имени.
type Catalog struct {
	jobs []Job
}

// NewCatalog проверяет jobs и строит каталог. Повтор имени — ошибка.
func NewCatalog(jobs []Job) (*Catalog, error) {
	seen := make(map[string]bool, len(jobs))
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, err
		}
		if seen[j.Name] {
			return nil, fmt.Errorf("%w: duplicate job %q", ErrInvalidJob, j.Name)
		}
		seen[j.Name] = true

		j.TLDs = slices.Clone(j.TLDs)
		slices.Sort(j.TLDs)
		j.TLDs = slices.Compact(j.TLDs)
		out = append(out, j)
	}
	slices.SortFunc(out, func(a, b Job) int { return strings.Compare(a.Name, b.Name) })
	return &Catalog{jobs: out}, nil
}

// DefaultJobs — каталог по умолчанию для списка зон tlds.
func DefaultJobs(tlds []string) []Job {
	return []Job{
		{
			Name:       "rde",
			CursorType: domain.CursorRDEStaging,
			Mode:       domain.DepositModeFull,
			Interval:   24 * time.Hour,
			Timeout:    2 * time.Hour,
			Cron:       "0 */12 * * *",
			TLDs:       tlds,
		},
		{
			Name:       "brda",
			CursorType: domain.CursorBRDA,
			Mode:       domain.DepositModeThin,
			Interval:   7 * 24 * time.Hour,
			Timeout:    time.Hour,
			Cron:       "0 1 * * *",
			TLDs:       tlds,
		},
	}
}

// Jobs возвращает копию списка задач.
func (c *Catalog) Jobs() []Job {
	return slices.Clone(c.jobs)
}

// Lookup возвращает задачу по имени.
func (c *Catalog) Lookup(name string) (Job, error) {
	for _, j := range c.jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return Job{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
}
