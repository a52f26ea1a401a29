package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dyike/cortexdesk/models"
)

const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyReflected is returned when a session's lessons were already stored.
	ErrAlreadyReflected = errors.New("session already reflected")
)

// Store persists committee runs, their message logs and role memories.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接避免 WAL 下的写锁竞争
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    trade_date TEXT NOT NULL,
    status TEXT NOT NULL,
    signal TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    state_json TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    role TEXT NOT NULL,
    agent TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(session_id, seq)
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    node TEXT NOT NULL DEFAULT '',
    agent TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reflections (
    session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
    returns REAL NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS memories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    role TEXT NOT NULL,
    situation TEXT NOT NULL,
    lesson TEXT NOT NULL,
    embedding TEXT NOT NULL DEFAULT '',
    embedder TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_symbol ON sessions(symbol, trade_date);
CREATE INDEX IF NOT EXISTS idx_memories_role ON memories(role, id);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// CreateSession starts a run record and returns its id.
func (s *Store) CreateSession(ctx context.Context, symbol, tradeDate string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, symbol, trade_date, status)
VALUES (?, ?, ?, ?)
`, id, symbol, tradeDate, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// SaveRun stores the outcome of a run: final state, message log, signal and
// status. A non-nil runErr marks the session as failed but still keeps the
// partial state.
func (s *Store) SaveRun(ctx context.Context, sessionID string, state *models.TradingState, signal models.Signal, runErr error) error {
	status, errText := StatusDone, ""
	if runErr != nil {
		status, errText = StatusError, runErr.Error()
	}
	stateJSON := ""
	if state != nil {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		stateJSON = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE sessions
SET status = ?, signal = ?, error = ?, state_json = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, status, string(signal), errText, stateJSON, sessionID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if state != nil {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO messages (session_id, seq, role, agent, content)
VALUES (?, ?, ?, ?, ?)
`)
		if err != nil {
			return fmt.Errorf("prepare message insert: %w", err)
		}
		defer stmt.Close()
		for i, msg := range state.Messages {
			if _, err := stmt.ExecContext(ctx, sessionID, i+1, string(msg.Role), msg.Name, messageContent(msg)); err != nil {
				return fmt.Errorf("insert message %d: %w", i+1, err)
			}
		}
	}
	return tx.Commit()
}

// messageContent renders tool requests, which carry no text, as their calls.
func messageContent(msg *schema.Message) string {
	if msg.Content != "" || len(msg.ToolCalls) == 0 {
		return msg.Content
	}
	parts := make([]string, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		parts = append(parts, fmt.Sprintf("[tool_call:%s] %s", tc.Function.Name, tc.Function.Arguments))
	}
	return strings.Join(parts, "\n")
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions s LEFT JOIN reflections r ON r.session_id = s.id
WHERE s.id = ?
`, sessionID)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return rec, err
}

// LoadState returns the saved final state of a session.
func (s *Store) LoadState(ctx context.Context, sessionID string) (*models.TradingState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM sessions WHERE id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if raw == "" {
		return nil, fmt.Errorf("session %s has no saved state", sessionID)
	}
	var state models.TradingState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// ListSessions returns the newest sessions first, optionally for one symbol.
func (s *Store) ListSessions(ctx context.Context, symbol string, limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions s LEFT JOIN reflections r ON r.session_id = s.id
WHERE (? = '' OR s.symbol = ?)
ORDER BY s.created_at DESC, s.rowid DESC
LIMIT ?
`, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]models.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, seq, role, agent, content, created_at
FROM messages WHERE session_id = ?
ORDER BY seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []models.MessageRecord
	for rows.Next() {
		var rec models.MessageRecord
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.Role, &rec.Agent, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const sessionColumns = `s.id, s.symbol, s.trade_date, s.status, s.signal, s.error,
    r.session_id IS NOT NULL, COALESCE(r.returns, 0), s.created_at, s.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.SessionRecord, error) {
	var (
		rec    models.SessionRecord
		signal string
	)
	if err := row.Scan(&rec.ID, &rec.Symbol, &rec.TradeDate, &rec.Status, &signal, &rec.Error, &rec.Reflected, &rec.Returns, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	rec.Signal = models.Signal(signal)
	return &rec, nil
}

// ClaimReflection marks a session as reflected on returns. It fails with
// ErrAlreadyReflected when another reflection got there first; call
// ReleaseReflection if storing the lessons then fails.
func (s *Store) ClaimReflection(ctx context.Context, sessionID string, returns float64) error {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO reflections (session_id, returns)
SELECT id, ? FROM sessions WHERE id = ?
ON CONFLICT(session_id) DO NOTHING
`, returns, sessionID)
	if err != nil {
		return fmt.Errorf("claim reflection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetSession(ctx, sessionID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrAlreadyReflected, sessionID)
	}
	return nil
}

func (s *Store) ReleaseReflection(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reflections WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("release reflection: %w", err)
	}
	return nil
}
