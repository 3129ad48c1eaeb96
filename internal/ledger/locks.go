package ledger

import "sync"

// Locks hands out one mutex per bank account. Matching, confirmation and
// discrepancy detection for the same account take it so they never consume
// the same statement entry or internal transaction twice.
type Locks struct {
	mu        sync.Mutex
	byAccount map[int64]*sync.Mutex
}

// NewLocks returns an empty lock registry.
func NewLocks() *Locks {
	return &Locks{byAccount: make(map[int64]*sync.Mutex)}
}

func (l *Locks) get(accountID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.byAccount[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.byAccount[accountID] = m
	}
	return m
}

// Lock blocks until the account's mutex is held and returns its release.
func (l *Locks) Lock(accountID int64) (unlock func()) {
	m := l.get(accountID)
	m.Lock()
	return m.Unlock
}
