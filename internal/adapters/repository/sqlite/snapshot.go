// Package sqlite stores editor drafts in SQLite through the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
	"github.com/im-knots/ea-monorepo/pkg/serialization"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// SnapshotSaver implements snapshot.Saver for SQLite
type SnapshotSaver struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// Open opens dsn (":memory:" for tests) and prepares the schema. An
// in-memory database is pinned to one connection so every query sees it.
func Open(ctx context.Context, dsn string, serializer *serialization.Serializer) (*SnapshotSaver, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s := NewSnapshotSaver(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSnapshotSaver wraps an open database.
func NewSnapshotSaver(db *sql.DB, serializer *serialization.Serializer) *SnapshotSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &SnapshotSaver{
		db:         db,
		serializer: serializer,
		tableName:  "editor_snapshots",
	}
}

// WithTableName overrides the table name. Only alphanumerics and underscore
// are accepted; anything else is ignored.
func (s *SnapshotSaver) WithTableName(name string) *SnapshotSaver {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

const columns = "id, session_id, agent_id, label, payload, timestamp, version"

// Save upserts a snapshot.
func (s *SnapshotSaver) Save(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return snapshot.ErrNilSnapshot
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	data, err := s.serializer.Serialize(snap.Payload())
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.tableName, columns)
	_, err = s.db.ExecContext(ctx, query,
		snap.ID, snap.SessionID, snap.AgentID, snap.Label, data, snap.Timestamp.UnixNano(), snap.Version)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by ID
func (s *SnapshotSaver) Load(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, snapshot.ErrInvalidSnapshotID
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, columns, s.tableName)
	snap, err := s.scan(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, snapshot.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SnapshotSaver) scan(row scanner) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	var data []byte
	var ts int64
	if err := row.Scan(&snap.ID, &snap.SessionID, &snap.AgentID, &snap.Label, &data, &ts, &snap.Version); err != nil {
		return nil, err
	}
	snap.Timestamp = time.Unix(0, ts)

	var p snapshot.Payload
	if err := s.serializer.Deserialize(data, &p); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	snap.Meta, snap.Graph = p.Meta, p.Graph
	return &snap, nil
}

// List retrieves snapshots matching the filter, newest first.
func (s *SnapshotSaver) List(ctx context.Context, filter snapshot.Filter) ([]*snapshot.Snapshot, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*snapshot.Snapshot
	for rows.Next() {
		snap, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Delete removes a snapshot by ID
func (s *SnapshotSaver) Delete(ctx context.Context, id string) error {
	if id == "" {
		return snapshot.ErrInvalidSnapshotID
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return snapshot.ErrSnapshotNotFound
	}
	return nil
}

// CreateTables creates the snapshot table and its indexes.
func (s *SnapshotSaver) CreateTables(ctx context.Context) error {
	t := s.tableName
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			agent_id TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL DEFAULT '',
			payload BLOB NOT NULL,
			timestamp INTEGER NOT NULL,
			version TEXT NOT NULL DEFAULT '1'
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_id ON %s (session_id);
		CREATE INDEX IF NOT EXISTS idx_%s_agent_id ON %s (agent_id);
		CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp);
	`, t, t, t, t, t, t, t)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *SnapshotSaver) buildListQuery(filter snapshot.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1", columns, s.tableName)
	var args []any

	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, filter.AgentID)
	}
	if filter.Since != nil {
		query += " AND timestamp > ?"
		args = append(args, filter.Since.UnixNano())
	}
	if filter.Before != nil {
		query += " AND timestamp < ?"
		args = append(args, filter.Before.UnixNano())
	}
	query += " ORDER BY timestamp DESC"

	// SQLite only accepts OFFSET after LIMIT; -1 means no limit.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit == 0 {
			limit = -1
		}
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}
	return query, args
}

// Close closes the database connection
func (s *SnapshotSaver) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
