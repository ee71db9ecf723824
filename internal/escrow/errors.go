package escrow

import "errors"

// Ошибки escrow.
var (
	// ErrUnknownJob — в каталоге нет задачи с таким именем.
	ErrUnknownJob = errors.New("unknown escrow job")

	// ErrUnknownTLD — задача не настроена для этого TLD.
	ErrUnknownTLD = errors.New("tld is not configured for job")

	// ErrInvalidJob — описание задачи некорректно.
	ErrInvalidJob = errors.New("invalid escrow job")
)
