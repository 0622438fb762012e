// Package lock provides the per-account mutual exclusion used by the
// posting engine, in-process or across instances through Redis.
package lock

import (
	"context"
	"slices"
	"sync"
)

// Local is an in-process account locker. Each account has a one-slot
// channel so waiting can be abandoned when the context is done.
type Local struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func NewLocal() *Local {
	return &Local{slots: make(map[int64]chan struct{})}
}

func (l *Local) slot(accountId int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[accountId]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[accountId] = s
	}
	return s
}

func (l *Local) Lock(ctx context.Context, accountIds ...int64) (func(), error) {
	held := make([]chan struct{}, 0, len(accountIds))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range Ordered(accountIds) {
		s := l.slot(id)
		select {
		case s <- struct{}{}:
			held = append(held, s)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// Ordered returns the ids sorted ascending without duplicates. Every locker
// acquires in this order so opposite transfers cannot deadlock.
func Ordered(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
