// Package memory provides an in-process snapshot.Saver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/im-knots/ea-monorepo/internal/core/agent"
	"github.com/im-knots/ea-monorepo/internal/core/graph"
	"github.com/im-knots/ea-monorepo/internal/core/snapshot"
	"github.com/im-knots/ea-monorepo/pkg/serialization"
)

// Config holds configuration for SnapshotSaver
type Config struct {
	TTL             time.Duration             // zero keeps drafts until deleted
	MaxEntries      int                       // least recently used drafts are evicted beyond this
	CleanupInterval time.Duration             // only used when TTL is set
	Serializer      *serialization.Serializer // optional
}

type entry struct {
	snap       *snapshot.Snapshot // header fields only, payload lives in data
	data       []byte
	expiresAt  time.Time
	accessedAt time.Time
}

// SnapshotSaver keeps serialized drafts in a map so loaded snapshots never
// alias the caller's graph.
// PRINCIPLES:
// - KISS: one mutex, one map
// - DIP: Implements snapshot.Saver interface
type SnapshotSaver struct {
	mu         sync.Mutex
	entries    map[string]*entry
	cfg        Config
	serializer *serialization.Serializer
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSnapshotSaver creates a saver and, when a TTL is configured, starts the
// expiry sweeper. Call Close to stop it.
func NewSnapshotSaver(cfg Config) *SnapshotSaver {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Serializer == nil {
		cfg.Serializer = serialization.DefaultSerializer()
	}
	s := &SnapshotSaver{
		entries:    make(map[string]*entry),
		cfg:        cfg,
		serializer: cfg.Serializer,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cfg.TTL > 0 {
		go s.sweep(cfg.CleanupInterval)
	}
	return s
}

// Save stores a snapshot, replacing any with the same ID.
func (s *SnapshotSaver) Save(_ context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return snapshot.ErrNilSnapshot
	}
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("snapshot validation failed: %w", err)
	}
	data, err := s.serializer.Serialize(snap.Payload())
	if err != nil {
		return fmt.Errorf("snapshot serialization failed: %w", err)
	}

	header := *snap
	header.Meta, header.Graph = agent.Meta{}, graph.State{}

	now := s.now()
	e := &entry{snap: &header, data: data, accessedAt: now}
	if s.cfg.TTL > 0 {
		e.expiresAt = now.Add(s.cfg.TTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[snap.ID] = e
	s.evictLocked()
	return nil
}

// Load returns a decoded copy of the snapshot.
func (s *SnapshotSaver) Load(_ context.Context, id string) (*snapshot.Snapshot, error) {
	if id == "" {
		return nil, snapshot.ErrInvalidSnapshotID
	}
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && s.expiredLocked(e) {
		delete(s.entries, id)
		ok = false
	}
	if ok {
		e.accessedAt = s.now()
	}
	s.mu.Unlock()
	if !ok {
		return nil, snapshot.ErrSnapshotNotFound
	}
	return s.decode(e)
}

func (s *SnapshotSaver) decode(e *entry) (*snapshot.Snapshot, error) {
	var p snapshot.Payload
	if err := s.serializer.Deserialize(e.data, &p); err != nil {
		return nil, fmt.Errorf("snapshot deserialization failed: %w", err)
	}
	out := *e.snap
	out.Meta = p.Meta
	out.Graph = p.Graph
	return &out, nil
}

// List returns matching snapshots, newest first.
func (s *SnapshotSaver) List(_ context.Context, filter snapshot.Filter) ([]*snapshot.Snapshot, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	s.mu.Lock()
	var matched []*entry
	for id, e := range s.entries {
		if s.expiredLocked(e) {
			delete(s.entries, id)
			continue
		}
		if filter.Matches(e.snap) {
			matched = append(matched, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].snap.Timestamp.After(matched[j].snap.Timestamp)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*snapshot.Snapshot, 0, len(matched))
	for _, e := range matched {
		snap, err := s.decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Delete removes a snapshot.
func (s *SnapshotSaver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return snapshot.ErrSnapshotNotFound
	}
	delete(s.entries, id)
	return nil
}

// Len reports the number of stored snapshots, expired ones included.
func (s *SnapshotSaver) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper.
func (s *SnapshotSaver) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *SnapshotSaver) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for id, e := range s.entries {
				if s.expiredLocked(e) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

func (s *SnapshotSaver) expiredLocked(e *entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

func (s *SnapshotSaver) evictLocked() {
	for len(s.entries) > s.cfg.MaxEntries {
		var oldestID string
		var oldest time.Time
		for id, e := range s.entries {
			if oldestID == "" || e.accessedAt.Before(oldest) {
				oldestID, oldest = id, e.accessedAt
			}
		}
		delete(s.entries, oldestID)
	}
}
