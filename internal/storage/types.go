// Package storage keeps an optional append-only audit log of configuration
// changes made through chat commands. Feed and session state stay in memory.
package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file (pure Go driver)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one accepted administrative command.
type AuditEntry struct {
	At        time.Time `json:"at"`
	RequestID string    `json:"rid,omitempty"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id,omitempty"`
	UserID    string    `json:"user_id"`
	Command   string    `json:"command"`
	Value     string    `json:"value"`
	Previous  string    `json:"previous,omitempty"`
}

// Store is the persistence API used by the command router.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	Close() error
}
