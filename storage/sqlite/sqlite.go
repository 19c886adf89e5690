// Package sqlite is the SQLite-backed durable store: every instance, span,
// span event, and event is appended as a JSON blob keyed by its timestamp.
// It exists purely as a write-ahead log and cold-start rehydration source —
// all querying happens against the engine's in-memory indexes, never
// against this store directly.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/embertrace/engine/model"
)

// Store is a SQLite-backed implementation of storage.Store.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// New opens (creating if absent) a SQLite database at dbPath in WAL mode
// and ensures its schema exists.
func New(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The engine is a single logical writer; one connection avoids
	// SQLITE_BUSY without needing a connection pool.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, dbPath: dbPath}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instances (
		key INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS spans (
		key INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS span_events (
		key INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS events (
		key INTEGER PRIMARY KEY,
		data TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func insertJSON(db *sql.DB, table string, key model.Timestamp, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", table, err)
	}
	_, err = db.Exec(fmt.Sprintf("INSERT OR IGNORE INTO %s (key, data) VALUES (?, ?)", table), int64(key), string(data))
	if err != nil {
		return fmt.Errorf("insert %s record: %w", table, err)
	}
	return nil
}

func getJSON[T any](db *sql.DB, table string, key model.Timestamp) (*T, error) {
	row := db.QueryRow(fmt.Sprintf("SELECT data FROM %s WHERE key = ?", table), int64(key))
	var data string
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query %s record: %w", table, err)
	}
	var out T
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s record: %w", table, err)
	}
	return &out, nil
}

func getAllJSON[T any](db *sql.DB, table string) ([]*T, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT data FROM %s ORDER BY key ASC", table))
	if err != nil {
		return nil, fmt.Errorf("query all %s records: %w", table, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", table, err)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s record: %w", table, err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// InsertInstance appends a new instance record.
func (s *Store) InsertInstance(inst *model.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertJSON(s.db, "instances", inst.Key(), inst)
}

// InsertSpan appends a new span record.
func (s *Store) InsertSpan(span *model.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertJSON(s.db, "spans", span.Key(), span)
}

// InsertSpanEvent appends a new span event record.
func (s *Store) InsertSpanEvent(ev *model.SpanEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertJSON(s.db, "span_events", ev.Key(), ev)
}

// InsertEvent appends a new event record.
func (s *Store) InsertEvent(ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertJSON(s.db, "events", ev.Key(), ev)
}

// GetInstance fetches a single instance by key, or (nil, nil) if absent.
func (s *Store) GetInstance(at model.Timestamp) (*model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getJSON[model.Instance](s.db, "instances", at)
}

// GetSpan fetches a single span by key, or (nil, nil) if absent.
func (s *Store) GetSpan(at model.Timestamp) (*model.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getJSON[model.Span](s.db, "spans", at)
}

// GetSpanEvent fetches a single span event by key, or (nil, nil) if absent.
func (s *Store) GetSpanEvent(at model.Timestamp) (*model.SpanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getJSON[model.SpanEvent](s.db, "span_events", at)
}

// GetEvent fetches a single event by key, or (nil, nil) if absent.
func (s *Store) GetEvent(at model.Timestamp) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getJSON[model.Event](s.db, "events", at)
}

// GetAllInstances returns every stored instance in key order, for
// cold-start index rebuilding.
func (s *Store) GetAllInstances() ([]*model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getAllJSON[model.Instance](s.db, "instances")
}

// GetAllSpans returns every stored span in key order.
func (s *Store) GetAllSpans() ([]*model.Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getAllJSON[model.Span](s.db, "spans")
}

// GetAllSpanEvents returns every stored span event in key order.
func (s *Store) GetAllSpanEvents() ([]*model.SpanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getAllJSON[model.SpanEvent](s.db, "span_events")
}

// GetAllEvents returns every stored event in key order.
func (s *Store) GetAllEvents() ([]*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getAllJSON[model.Event](s.db, "events")
}

// UpdateInstanceDisconnected rewrites the stored instance's disconnect time.
func (s *Store) UpdateInstanceDisconnected(at, disconnectedAt model.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, err := getJSON[model.Instance](s.db, "instances", at)
	if err != nil || inst == nil {
		return err
	}
	ts := disconnectedAt
	inst.DisconnectedAt = &ts
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshal instance record: %w", err)
	}
	_, err = s.db.Exec("UPDATE instances SET data = ? WHERE key = ?", string(data), int64(at))
	if err != nil {
		return fmt.Errorf("update instance record: %w", err)
	}
	return nil
}

// UpdateSpanClosed rewrites the stored span's close time.
func (s *Store) UpdateSpanClosed(at, closedAt model.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	span, err := getJSON[model.Span](s.db, "spans", at)
	if err != nil || span == nil {
		return err
	}
	ts := closedAt
	span.ClosedAt = &ts
	data, err := json.Marshal(span)
	if err != nil {
		return fmt.Errorf("marshal span record: %w", err)
	}
	_, err = s.db.Exec("UPDATE spans SET data = ? WHERE key = ?", string(data), int64(at))
	if err != nil {
		return fmt.Errorf("update span record: %w", err)
	}
	return nil
}

// UpdateSpanFields rewrites the stored span's merged field map.
func (s *Store) UpdateSpanFields(at model.Timestamp, merged model.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	span, err := getJSON[model.Span](s.db, "spans", at)
	if err != nil || span == nil {
		return err
	}
	span.Fields = merged
	data, err := json.Marshal(span)
	if err != nil {
		return fmt.Errorf("marshal span record: %w", err)
	}
	_, err = s.db.Exec("UPDATE spans SET data = ? WHERE key = ?", string(data), int64(at))
	if err != nil {
		return fmt.Errorf("update span record: %w", err)
	}
	return nil
}
