// Package chanconfig stores per-channel settings: the agent backend, the
// assistant display name, the backend session id and whether the bot only
// answers when mentioned.
package chanconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/flemzord/cronclaw/internal/agent"
)

// DefaultAssistantName is used when neither the channel nor Options set one.
const DefaultAssistantName = "Assistant"

// Options sets the values reported for channels without an explicit choice.
type Options struct {
	DefaultBackend       agent.Backend
	DefaultAssistantName string
}

// Channel is the stored configuration of one channel. Empty strings mean
// "use the default".
type Channel struct {
	ID            uint64 `json:"channel_id"`
	Backend       string `json:"backend,omitempty"`
	AssistantName string `json:"assistant_name,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	MentionOnly   bool   `json:"mention_only"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// Store reads and writes channel settings. Safe for concurrent use.
type Store struct {
	db   *sql.DB
	opts Options
}

func newStore(db *sql.DB, opts Options) *Store {
	if opts.DefaultBackend == "" {
		opts.DefaultBackend = agent.DefaultBackend
	}
	if strings.TrimSpace(opts.DefaultAssistantName) == "" {
		opts.DefaultAssistantName = DefaultAssistantName
	}
	return &Store{db: db, opts: opts}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefaultBackend returns the backend used for unconfigured channels.
func (s *Store) DefaultBackend() agent.Backend { return s.opts.DefaultBackend }

// DefaultAssistantName returns the name used for unconfigured channels.
func (s *Store) DefaultAssistantName() string { return s.opts.DefaultAssistantName }

// Get returns the raw row for channelID. A channel never written returns a
// zero Channel with MentionOnly set.
func (s *Store) Get(ctx context.Context, channelID uint64) (Channel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT backend, assistant_name, session_id, mention_only, updated_at
		 FROM channels WHERE channel_id = ?`, key(channelID))

	ch := Channel{ID: channelID}
	err := row.Scan(&ch.Backend, &ch.AssistantName, &ch.SessionID, &ch.MentionOnly, &ch.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Channel{ID: channelID, MentionOnly: true}, nil
	}
	if err != nil {
		return Channel{}, fmt.Errorf("chanconfig: get %d: %w", channelID, err)
	}
	return ch, nil
}

// List returns every configured channel ordered by id.
func (s *Store) List(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel_id, backend, assistant_name, session_id, mention_only, updated_at
		 FROM channels ORDER BY CAST(channel_id AS INTEGER)`)
	if err != nil {
		return nil, fmt.Errorf("chanconfig: list: %w", err)
	}
	defer rows.Close()

	var out []Channel
	for rows.Next() {
		var (
			id string
			ch Channel
		)
		if err := rows.Scan(&id, &ch.Backend, &ch.AssistantName, &ch.SessionID, &ch.MentionOnly, &ch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("chanconfig: list: %w", err)
		}
		ch.ID, err = strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chanconfig: list: bad channel id %q: %w", id, err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Backend returns the backend configured for channelID, or the default.
// A stored value that no longer names a backend yields the default and an
// error wrapping agent.ErrUnknownBackend.
func (s *Store) Backend(ctx context.Context, channelID uint64) (agent.Backend, error) {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return s.opts.DefaultBackend, err
	}
	if ch.Backend == "" {
		return s.opts.DefaultBackend, nil
	}
	b, err := agent.ParseBackend(ch.Backend)
	if err != nil {
		return s.opts.DefaultBackend, fmt.Errorf("chanconfig: channel %d: %w", channelID, err)
	}
	return b, nil
}

// SetBackend binds channelID to b.
func (s *Store) SetBackend(ctx context.Context, channelID uint64, b agent.Backend) error {
	if _, err := agent.ParseBackend(string(b)); err != nil {
		return err
	}
	return s.set(ctx, channelID, "backend", string(b))
}

// AssistantName returns the display name for channelID, or the default.
func (s *Store) AssistantName(ctx context.Context, channelID uint64) (string, error) {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return s.opts.DefaultAssistantName, err
	}
	if strings.TrimSpace(ch.AssistantName) == "" {
		return s.opts.DefaultAssistantName, nil
	}
	return ch.AssistantName, nil
}

// SetAssistantName stores name for channelID. An empty name restores the
// default.
func (s *Store) SetAssistantName(ctx context.Context, channelID uint64, name string) error {
	return s.set(ctx, channelID, "assistant_name", strings.TrimSpace(name))
}

// SessionID returns the backend session id stored for channelID, if any.
func (s *Store) SessionID(ctx context.Context, channelID uint64) (string, error) {
	ch, err := s.Get(ctx, channelID)
	return ch.SessionID, err
}

// SetSessionID stores the backend session id for channelID.
func (s *Store) SetSessionID(ctx context.Context, channelID uint64, id string) error {
	return s.set(ctx, channelID, "session_id", id)
}

// ClearSessionID forgets the session id of channelID. Unknown channels are
// left alone.
func (s *Store) ClearSessionID(ctx context.Context, channelID uint64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE channels SET session_id = '', updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		 WHERE channel_id = ?`, key(channelID))
	if err != nil {
		return fmt.Errorf("chanconfig: clear session %d: %w", channelID, err)
	}
	return nil
}

// MentionOnly reports whether the bot only answers mentions in channelID.
// Channels default to true.
func (s *Store) MentionOnly(ctx context.Context, channelID uint64) (bool, error) {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return true, err
	}
	return ch.MentionOnly, nil
}

// SetMentionOnly changes the mention requirement of channelID.
func (s *Store) SetMentionOnly(ctx context.Context, channelID uint64, on bool) error {
	return s.set(ctx, channelID, "mention_only", on)
}

// set upserts a single column. column is always a package constant.
func (s *Store) set(ctx context.Context, channelID uint64, column string, value any) error {
	query := fmt.Sprintf(
		`INSERT INTO channels (channel_id, %[1]s) VALUES (?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET %[1]s = excluded.%[1]s,
		 updated_at = strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ','now')`, column)
	if _, err := s.db.ExecContext(ctx, query, key(channelID), value); err != nil {
		return fmt.Errorf("chanconfig: set %s for %d: %w", column, channelID, err)
	}
	return nil
}

func key(channelID uint64) string {
	return strconv.FormatUint(channelID, 10)
}
