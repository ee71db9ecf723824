package config

import "errors"

// ErrInvalidConfig — недопустимое значение настройки.
var ErrInvalidConfig = errors.New("invalid config")
