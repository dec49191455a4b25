package domain

import (
	"errors"
	"time"
)

// ErrVersionConflict is returned by stores when a conditional rate-state write
// loses to a concurrent writer.
var ErrVersionConflict = errors.New("domain: rate state version conflict")

// RateState is the per-user token counter. A zero ResetAt means the window
// has never been opened.
type RateState struct {
	TokensUsed int
	ResetAt    time.Time
	Version    int64
}
