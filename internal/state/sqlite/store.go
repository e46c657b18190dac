// Package sqlite implements types.ConversationStore on an embedded SQLite
// database with a conversations table and an append-only messages table.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/user/gophersearch/internal/state/sqlite/migrations"
	"github.com/user/gophersearch/internal/types"
)

var _ types.ConversationStore = (*Store)(nil)

// Store is a SQLite-backed conversation store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) chat.db inside dataDir and applies pending
// migrations.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "chat.db")

	// WAL mode for concurrent readers; writes are serialized through a
	// single connection so sequence allocation never races.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_conversations.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}

const sessionColumns = "conversation_id, title, created_at, updated_at, turn_count"

func scanSession(row interface{ Scan(...any) error }) (*types.Session, error) {
	var (
		sess             types.Session
		id               string
		created, updated int64
	)
	if err := row.Scan(&id, &sess.Title, &created, &updated, &sess.TurnCount); err != nil {
		return nil, err
	}
	sess.ID = types.SessionID(id)
	sess.CreatedAt = time.Unix(0, created)
	sess.UpdatedAt = time.Unix(0, updated)
	return &sess, nil
}

// CreateSession inserts a conversation row unless one already exists.
func (s *Store) CreateSession(ctx context.Context, id types.SessionID, title string) (*types.Session, bool, error) {
	if id == "" {
		id = types.NewSessionID()
	}
	if title == "" {
		title = types.DefaultSessionTitle
	}

	now := time.Now().UnixNano()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT(conversation_id) DO NOTHING`,
		string(id), title, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("inserting conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return sess, n == 1, nil
}

// GetSession returns the conversation header.
func (s *Store) GetSession(ctx context.Context, id types.SessionID) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM conversations WHERE conversation_id = ?", string(id))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return sess, nil
}

// ListSessions returns every conversation, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM conversations ORDER BY updated_at DESC, conversation_id ASC")
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes the conversation; its messages cascade.
func (s *Store) DeleteSession(ctx context.Context, id types.SessionID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE conversation_id = ?", string(id))
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, id)
	}
	return nil
}

// AppendTurn inserts a message with the next sequence number and bumps the
// conversation header in the same transaction.
func (s *Store) AppendTurn(ctx context.Context, turn *types.Turn) error {
	if turn.At.IsZero() {
		turn.At = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		"SELECT turn_count + 1 FROM conversations WHERE conversation_id = ?", string(turn.SessionID)).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", types.ErrSessionNotFound, turn.SessionID)
	}
	if err != nil {
		return fmt.Errorf("allocating sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, seq, author, description, title, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(turn.SessionID), seq, string(turn.Role), turn.Content, turn.Title(), turn.At.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE conversations SET turn_count = ?, updated_at = ? WHERE conversation_id = ?",
		seq, turn.At.UnixNano(), string(turn.SessionID))
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	turn.Seq = seq
	return nil
}

// ListTurns returns the conversation's messages in sequence order.
func (s *Store) ListTurns(ctx context.Context, id types.SessionID) ([]*types.Turn, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, author, description, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY seq`, string(id))
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var turns []*types.Turn
	for rows.Next() {
		var (
			turn   types.Turn
			author string
			at     int64
		)
		if err := rows.Scan(&turn.Seq, &author, &turn.Content, &at); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		turn.SessionID = id
		turn.Role = types.Role(author)
		turn.At = time.Unix(0, at)
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}
