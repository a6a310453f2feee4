package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relaykit/relaykit/pkg/persistence"
)

const (
	keyMode    = "mode"
	keySession = "session"
	keyFlags   = "flags"
)

const schema = `
CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS outbox (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	url         TEXT NOT NULL,
	method      TEXT NOT NULL,
	body        BLOB,
	query       TEXT,
	enqueued_at TIMESTAMP NOT NULL
);
`

type SqlitePersistence struct {
	dataDir string
	db      *sql.DB
}

func NewSqlitePersistence(config *persistence.Config) (*SqlitePersistence, error) {
	sp := &SqlitePersistence{
		dataDir: config.DataDir,
	}
	return sp, sp.Initialize()
}

func (sp *SqlitePersistence) Initialize() error {
	if err := os.MkdirAll(sp.dataDir, 0755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite3", filepath.Join(sp.dataDir, "relay.db"))
	if err != nil {
		return err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return err
	}
	sp.db = db
	return nil
}

func (sp *SqlitePersistence) Close() error {
	if sp.db == nil {
		return nil
	}
	return sp.db.Close()
}

func (sp *SqlitePersistence) putState(key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = sp.db.Exec(
		`INSERT INTO state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(value))
	return err
}

func (sp *SqlitePersistence) getState(key string, v any) error {
	var value string
	err := sp.db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(value), v)
}

// SaveModeState persists the operating mode and endpoints
func (sp *SqlitePersistence) SaveModeState(state persistence.ModeState) error {
	return sp.putState(keyMode, state)
}

// LoadModeState loads the operating mode and endpoints
func (sp *SqlitePersistence) LoadModeState() (persistence.ModeState, error) {
	var state persistence.ModeState
	if err := sp.getState(keyMode, &state); err != nil {
		return persistence.ModeState{}, err
	}
	return state, nil
}

// SaveSessionState persists the token and profile
func (sp *SqlitePersistence) SaveSessionState(state persistence.SessionState) error {
	return sp.putState(keySession, state)
}

// LoadSessionState loads the token and profile
func (sp *SqlitePersistence) LoadSessionState() (persistence.SessionState, error) {
	var state persistence.SessionState
	if err := sp.getState(keySession, &state); err != nil {
		return persistence.SessionState{}, err
	}
	return state, nil
}

// ClearSessionState removes the persisted session
func (sp *SqlitePersistence) ClearSessionState() error {
	_, err := sp.db.Exec(`DELETE FROM state WHERE key = ?`, keySession)
	return err
}

// SaveQueue rewrites the whole ordered log in one transaction
func (sp *SqlitePersistence) SaveQueue(entries []persistence.QueuedRequest) error {
	tx, err := sp.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM outbox`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO outbox (id, url, method, body, query, enqueued_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		query, err := json.Marshal(e.Query)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(e.ID, e.URL, e.Method, []byte(e.Body), string(query), e.EnqueuedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadQueue loads the ordered log, oldest first
func (sp *SqlitePersistence) LoadQueue() ([]persistence.QueuedRequest, error) {
	rows, err := sp.db.Query(
		`SELECT id, url, method, body, query, enqueued_at FROM outbox ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []persistence.QueuedRequest{}
	for rows.Next() {
		var e persistence.QueuedRequest
		var body []byte
		var query string
		if err := rows.Scan(&e.ID, &e.URL, &e.Method, &body, &query, &e.EnqueuedAt); err != nil {
			return nil, err
		}
		if len(body) > 0 {
			e.Body = json.RawMessage(body)
		}
		if query != "" && query != "null" {
			if err := json.Unmarshal([]byte(query), &e.Query); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SaveFlags persists markers
func (sp *SqlitePersistence) SaveFlags(flags persistence.Flags) error {
	return sp.putState(keyFlags, flags)
}

// LoadFlags loads markers
func (sp *SqlitePersistence) LoadFlags() (persistence.Flags, error) {
	var flags persistence.Flags
	if err := sp.getState(keyFlags, &flags); err != nil {
		return persistence.Flags{}, err
	}
	return flags, nil
}

// Ensure SqlitePersistence implements Persistence
var _ persistence.Persistence = (*SqlitePersistence)(nil)
