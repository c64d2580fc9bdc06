package lock

import (
	"context"
	"sync"
)

// localLocker serialises every slot behind one mutex. Enough for a single
// clinic running one api-server process.
type localLocker struct {
	mu sync.Mutex
}

func NewLocalLocker() Locker {
	return &localLocker{}
}

func (l *localLocker) WithSlotLock(ctx context.Context, _ SlotKey, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return fn(ctx)
}
