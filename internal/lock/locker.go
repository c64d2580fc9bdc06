package lock

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

// Locker guards the check-then-insert critical section of a booking so that
// two requests for the same slot cannot both pass the availability check.
type Locker interface {
	WithSlotLock(ctx context.Context, key SlotKey, fn func(ctx context.Context) error) error
}

// SlotKey identifies one (provider, date, time) slot.
type SlotKey struct {
	Provider string
	Date     string
	Time     string
}

func (k SlotKey) String() string {
	return strings.Join([]string{k.Provider, k.Date, k.Time}, "|")
}
