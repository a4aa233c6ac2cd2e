// Package store exposes typed record stores over the persisted settlement
// models. The orchestrator only ever talks to these interfaces; the GORM
// implementations live alongside them.
package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")
