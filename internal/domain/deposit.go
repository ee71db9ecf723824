package domain

import (
	"fmt"
	"time"
)

// DepositMode — режим escrow-депозита.
type DepositMode string

const (
	// DepositModeFull — полный депозит RDE (все объекты реестра).
	DepositModeFull DepositMode = "FULL"

	// DepositModeThin — thin-депозит BRDA (только регистрационные данные доменов).
	DepositModeThin DepositMode = "THIN"
)

// ParseDepositMode парсит строку в DepositMode.
func ParseDepositMode(s string) (DepositMode, error) {
	switch s {
	case "FULL", "full":
		return DepositModeFull, nil
	case "THIN", "thin":
		return DepositModeThin, nil
	default:
		return "", fmt.Errorf("unknown deposit mode %q", s)
	}
}

// Deposit — запись о сгенерированном файле депозита.
//
// Ревизии нумеруются с нуля для каждой тройки (TLD, Watermark, Mode).
// Повторный запуск за тот же период после падения между записью файла
// и сдвигом курсора получает новую ревизию и не перезаписывает старый файл.
type Deposit struct {
	// TLD — зона, для которой сделан депозит.
	TLD string `json:"tld"`

	// Watermark — логическое время снимка.
	Watermark time.Time `json:"watermark"`

	// Mode — FULL или THIN.
	Mode DepositMode `json:"mode"`

	// Revision — номер ревизии (0, 1, ...).
	Revision int `json:"revision"`

	// FileName — имя файла в каталоге депозитов.
	FileName string `json:"file_name"`

	// Objects — число объектов в снимке по типам.
	Objects ObjectCounts `json:"objects"`

	// CreatedAt — время записи.
	CreatedAt time.Time `json:"created_at"`
}

// ObjectCounts — количество объектов реестра, живых на момент watermark.
type ObjectCounts struct {
	Domains  int64 `json:"domains" xml:"domains"`
	Contacts int64 `json:"contacts" xml:"contacts"`
	Hosts    int64 `json:"hosts" xml:"hosts"`
}

// Виды объектов реестра.
const (
	ObjectKindDomain  = "domain"
	ObjectKindContact = "contact"
	ObjectKindHost    = "host"
)

// Add прибавляет n к счётчику вида kind. Неизвестные виды игнорируются.
func (c *ObjectCounts) Add(kind string, n int64) {
	switch kind {
	case ObjectKindDomain:
		c.Domains += n
	case ObjectKindContact:
		c.Contacts += n
	case ObjectKindHost:
		c.Hosts += n
	}
}

// Total возвращает общее число объектов.
func (c ObjectCounts) Total() int64 {
	return c.Domains + c.Contacts + c.Hosts
}

// DepositFileName формирует детерминированное имя файла депозита:
//
//	<tld>_<YYYY-MM-DD>_<full|thin>_S1_R<revision>.xml
func DepositFileName(tld string, watermark time.Time, mode DepositMode, revision int) string {
	kind := "full"
	if mode == DepositModeThin {
		kind = "thin"
	}
	return fmt.Sprintf("%s_%s_%s_S1_R%d.xml", tld, watermark.UTC().Format("2006-01-02"), kind, revision)
}
