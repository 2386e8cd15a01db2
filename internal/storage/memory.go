package storage

import (
	"context"
	"sync"
	"time"

	"github.com/ovolkov/sparkbot/internal/models"
)

// MemoryLog keeps the conversation log in memory. Used in development and
// tests; nothing survives a restart.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []models.LogEntry
	nextID  int64
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{nextID: 1}
}

func (l *MemoryLog) Append(ctx context.Context, entry models.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.ID = l.nextID
	l.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.IsUser = entry.Role == models.RoleUser
	l.entries = append(l.entries, entry)
	return nil
}

func (l *MemoryLog) Stats(ctx context.Context, userID int64) (Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{ByType: make(map[models.MessageType]int64)}
	for _, entry := range l.entries {
		if entry.UserID != userID {
			continue
		}
		stats.ByType[entry.Type]++
		stats.Total++
	}
	return stats, nil
}

// Entries returns a copy of everything logged, in append order.
func (l *MemoryLog) Entries() []models.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MemoryLog) Close() error {
	return nil
}
