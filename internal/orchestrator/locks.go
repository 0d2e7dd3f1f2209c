package orchestrator

import (
	"sort"
	"sync"

	"commodity-lab/internal/domain"
)

// TickerLocks hands out one mutex per ticker. Lock acquires a whole set in
// sorted order so overlapping callers cannot deadlock.
type TickerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTickerLocks creates an empty lock table.
func NewTickerLocks() *TickerLocks {
	return &TickerLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until every ticker is held and returns the release function.
func (l *TickerLocks) Lock(tickers ...string) (unlock func()) {
	keys := domain.NormalizeTickers(tickers)
	sort.Strings(keys)

	held := make([]*sync.Mutex, len(keys))
	l.mu.Lock()
	for i, k := range keys {
		m, ok := l.locks[k]
		if !ok {
			m = &sync.Mutex{}
			l.locks[k] = m
		}
		held[i] = m
	}
	l.mu.Unlock()

	for _, m := range held {
		m.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
