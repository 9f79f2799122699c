// Package postgres stores editor drafts in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
	"github.com/im-knots/ea-monorepo/pkg/serialization"
)

// SnapshotSaver implements snapshot.Saver for PostgreSQL
type SnapshotSaver struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// Connect opens a pool for dsn, verifies it and prepares the schema.
func Connect(ctx context.Context, dsn string, serializer *serialization.Serializer) (*SnapshotSaver, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewSnapshotSaver(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewSnapshotSaver wraps an existing pool.
func NewSnapshotSaver(pool *pgxpool.Pool, serializer *serialization.Serializer) *SnapshotSaver {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &SnapshotSaver{
		pool:       pool,
		serializer: serializer,
		tableName:  "editor_snapshots",
	}
}

const columns = "id, session_id, agent_id, label, payload, created_at, version"

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

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at,
			version = EXCLUDED.version
	`, s.tableName, columns)

	_, err = s.pool.Exec(ctx, query,
		snap.ID, snap.SessionID, snap.AgentID, snap.Label, data, snap.Timestamp, snap.Version)
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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, columns, s.tableName)
	snap, err := s.scan(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, snapshot.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

func (s *SnapshotSaver) scan(row pgx.Row) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	var data []byte
	if err := row.Scan(&snap.ID, &snap.SessionID, &snap.AgentID, &snap.Label, &data, &snap.Timestamp, &snap.Version); err != nil {
		return nil, err
	}
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
	rows, err := s.pool.Query(ctx, query, args...)
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
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName), id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
			payload BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			version TEXT NOT NULL DEFAULT '1'
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_id ON %s (session_id);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, t, t, t, t, t)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *SnapshotSaver) buildListQuery(filter snapshot.Filter) (string, []any) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1", columns, s.tableName)
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.SessionID != "" {
		query += " AND session_id = " + arg(filter.SessionID)
	}
	if filter.AgentID != "" {
		query += " AND agent_id = " + arg(filter.AgentID)
	}
	if filter.Since != nil {
		query += " AND created_at > " + arg(*filter.Since)
	}
	if filter.Before != nil {
		query += " AND created_at < " + arg(*filter.Before)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}
	return query, args
}

// Close releases the pool.
func (s *SnapshotSaver) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
