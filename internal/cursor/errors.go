package cursor

import "errors"

// Ошибки курсоров.
var (
	// ErrCursorMoved — курсор изменился между чтением и Advance.
	ErrCursorMoved = errors.New("cursor moved concurrently")

	// ErrRegression — попытка сдвинуть курсор назад.
	ErrRegression = errors.New("cursor watermark may not move backwards")
)
