// Package archive keeps an append-only SQLite log of completed turns.
// The archive is a record for the operator; nothing in a turn reads it
// back.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Turn is one archived exchange. ToolCalls lists the capability names
// dispatched, in order.
type Turn struct {
	ID           string
	SessionID    string
	Model        string
	UserText     string
	Response     string
	ToolCalls    []string
	Error        string
	Streamed     bool
	InputTokens  int
	OutputTokens int
	StartedAt    time.Time
	Duration     time.Duration
}

// Failed reports whether the turn ended with an error.
func (t Turn) Failed() bool { return t.Error != "" }

// Archive is a SQLite turn log. All public methods are safe for
// concurrent use.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive schema: %w", err)
	}
	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL,
		model         TEXT NOT NULL,
		user_text     TEXT NOT NULL,
		response      TEXT NOT NULL,
		tool_calls    TEXT NOT NULL DEFAULT '[]',
		error         TEXT,
		streamed      BOOLEAN NOT NULL DEFAULT TRUE,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		started_at    TEXT NOT NULL,
		duration_ms   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_started ON turns(started_at);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, started_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// Record persists a turn. If t.ID is empty, a UUIDv7 is generated.
// The context is used for cancellation only.
func (a *Archive) Record(ctx context.Context, t Turn) error {
	if t.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate turn ID: %w", err)
		}
		t.ID = id.String()
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}
	if t.ToolCalls == nil {
		t.ToolCalls = []string{}
	}
	calls, err := json.Marshal(t.ToolCalls)
	if err != nil {
		return fmt.Errorf("encode tool calls: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO turns
			(id, session_id, model, user_text, response, tool_calls, error,
			 streamed, input_tokens, output_tokens, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.SessionID,
		t.Model,
		t.UserText,
		t.Response,
		string(calls),
		nullString(t.Error),
		t.Streamed,
		t.InputTokens,
		t.OutputTokens,
		t.StartedAt.UTC().Format(timeLayout),
		t.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// Recent returns up to n of the latest turns, oldest first.
func (a *Archive) Recent(ctx context.Context, n int) ([]Turn, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, session_id, model, user_text, response, tool_calls, error,
		        streamed, input_tokens, output_tokens, started_at, duration_ms
		 FROM turns
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t          Turn
			calls      string
			errText    sql.NullString
			started    string
			durationMS int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Model, &t.UserText, &t.Response,
			&calls, &errText, &t.Streamed, &t.InputTokens, &t.OutputTokens,
			&started, &durationMS); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(calls), &t.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool calls for %s: %w", t.ID, err)
		}
		t.Error = errText.String
		if t.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at for %s: %w", t.ID, err)
		}
		t.StartedAt = t.StartedAt.Local()
		t.Duration = time.Duration(durationMS) * time.Millisecond
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Count returns the number of archived turns.
func (a *Archive) Count(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
