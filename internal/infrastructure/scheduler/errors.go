package scheduler

import "errors"

// ErrInvalidConfig is returned when configuration is invalid
var ErrInvalidConfig = errors.New("scheduler: invalid configuration")
