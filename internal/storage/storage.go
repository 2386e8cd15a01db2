package storage

import (
	"context"

	"github.com/ovolkov/sparkbot/internal/models"
)

// Stats summarizes a user's logged traffic for the /stats command.
type Stats struct {
	Total  int64
	ByType map[models.MessageType]int64
}

// ConversationLog is the append-only audit log of every turn. It is written
// on each exchange and read only for statistics, never back into session
// state. Append failures must be treated as non-fatal by callers.
type ConversationLog interface {
	Append(ctx context.Context, entry models.LogEntry) error
	Stats(ctx context.Context, userID int64) (Stats, error)
	Close() error
}
