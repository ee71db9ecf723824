package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/escrow"
)

// catalogFile — структура YAML-файла каталога.
//
//	jobs:
//	  - name: rde
//	    cursor_type: RDE_STAGING
//	    mode: full
//	    interval: 24h
//	    timeout: 2h
//	    cron: "0 */12 * * *"
//	    tlds: [example]
type catalogFile struct {
	Jobs []catalogJob `mapstructure:"jobs"`
}

type catalogJob struct {
	Name       string        `mapstructure:"name"`
	CursorType string        `mapstructure:"cursor_type"`
	Mode       string        `mapstructure:"mode"`
	Interval   time.Duration `mapstructure:"interval"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Cron       string        `mapstructure:"cron"`
	TLDs       []string      `mapstructure:"tlds"`
}

// LoadCatalog строит каталог задач.
// Пустой path — каталог по умолчанию для tlds.
// Задача без tlds в файле получает tlds.
func LoadCatalog(path string, tlds []string) (*escrow.Catalog, error) {
	if path == "" {
		return escrow.NewCatalog(escrow.DefaultJobs(tlds))
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("%w: catalog %s has no jobs", ErrInvalidConfig, path)
	}

	jobs := make([]escrow.Job, 0, len(file.Jobs))
	for _, fj := range file.Jobs {
		job, err := fj.toJob(tlds)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		jobs = append(jobs, job)
	}

	return escrow.NewCatalog(jobs)
}

func (fj catalogJob) toJob(defaultTLDs []string) (escrow.Job, error) {
	ct, err := domain.ParseCursorType(fj.CursorType)
	if err != nil {
		return escrow.Job{}, fmt.Errorf("job %q: %w", fj.Name, err)
	}
	mode, err := domain.ParseDepositMode(fj.Mode)
	if err != nil {
		return escrow.Job{}, fmt.Errorf("job %q: %w", fj.Name, err)
	}

	tlds := normalizeTLDs(fj.TLDs)
	if len(tlds) == 0 {
		tlds = defaultTLDs
	}

	return escrow.Job{
		Name:       fj.Name,
		CursorType: ct,
		Mode:       mode,
		Interval:   fj.Interval,
		Timeout:    fj.Timeout,
		Cron:       fj.Cron,
		TLDs:       tlds,
	}, nil
}
