package services

import (
	"context"
	"sync"
	"time"

	"chess-matchmaking/models"
)

// Mailbox holds MatchResults that their player has not picked up yet.
// Take is an atomic read-and-remove, so a result is delivered at most once.
type Mailbox interface {
	Put(ctx context.Context, playerID string, result models.MatchResult) error
	// Take returns nil, nil when nothing is waiting for playerID.
	Take(ctx context.Context, playerID string) (*models.MatchResult, error)
	// Sweep drops results stored before cutoff and returns how many went.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

type mailboxEntry struct {
	result   models.MatchResult
	storedAt time.Time
}

// MemoryMailbox is the in-process Mailbox.
type MemoryMailbox struct {
	mu      sync.Mutex
	entries map[string]mailboxEntry
	now     func() time.Time
}

func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{
		entries: make(map[string]mailboxEntry),
		now:     time.Now,
	}
}

func (m *MemoryMailbox) Put(ctx context.Context, playerID string, result models.MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[playerID] = mailboxEntry{result: result, storedAt: m.now()}
	return nil
}

func (m *MemoryMailbox) Take(ctx context.Context, playerID string) (*models.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[playerID]
	if !ok {
		return nil, nil
	}
	delete(m.entries, playerID)
	return &e.result, nil
}

func (m *MemoryMailbox) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if e.storedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// Len is the number of undelivered results.
func (m *MemoryMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
