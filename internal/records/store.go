package records

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"consultoria/internal/core"
	"consultoria/internal/log"
)

// Persister reads and writes the whole snapshot collection.
type Persister interface {
	Load(ctx context.Context) ([]Snapshot, error)
	Save(ctx context.Context, snaps []Snapshot) error
}

type Options struct {
	Logger *log.Logger
	// Now defaults to time.Now; it seeds snapshot ids.
	Now func() time.Time
}

// Store owns the snapshot collection. The in-memory copy is authoritative for
// the life of the process; persistence failures are reported, never fatal.
//
// Concurrent processes writing the same file overwrite each other; only one
// Store per file is supported.
type Store struct {
	mu        sync.RWMutex
	saveMu    sync.Mutex // orders writes
	persister Persister
	logger    *log.Logger
	ids       *core.IDSource

	snaps    []Snapshot
	revision uint64
	saved    uint64
}

func NewStore(p Persister, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Store{
		persister: p,
		logger:    opts.Logger.WithComponent(log.ComponentRecords),
		ids:       core.NewIDSource(opts.Now),
	}
}

// Open creates a store and loads it. A load failure is returned alongside a
// usable, empty store.
func Open(ctx context.Context, p Persister, opts Options) (*Store, error) {
	s := NewStore(p, opts)
	return s, s.Load(ctx)
}

// Load replaces the collection with the persisted one. On failure the
// collection is emptied and the error returned.
func (s *Store) Load(ctx context.Context) error {
	snaps, err := s.persister.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	s.saved = s.revision
	if err != nil {
		s.snaps = nil
		s.logger.ErrorContext(ctx, "Failed to load snapshots, starting empty",
			log.FieldError, err,
			log.FieldOperation, log.OpLoad,
			log.FieldErrorType, log.ErrorTypePersistence)
		return fmt.Errorf("load snapshots: %w", err)
	}
	s.snaps = snaps
	for _, snap := range snaps {
		s.ids.Observe(snap.ID)
	}
	s.logger.InfoContext(ctx, "Snapshots loaded", log.FieldCount, len(snaps))
	return nil
}

// Save writes the whole collection. Saves run one at a time, so a newer
// collection is never overwritten by an older one.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snaps := slices.Clone(s.snaps)
	rev := s.revision
	s.mu.RUnlock()

	if err := s.persister.Save(ctx, snaps); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save snapshots",
			log.FieldError, err,
			log.FieldOperation, log.OpSave,
			log.FieldCount, len(snaps),
			log.FieldErrorType, log.ErrorTypePersistence)
		return fmt.Errorf("save snapshots: %w", err)
	}

	s.mu.Lock()
	if rev > s.saved {
		s.saved = rev
	}
	s.mu.Unlock()
	s.logger.DebugContext(ctx, "Snapshots saved", log.FieldCount, len(snaps), log.FieldRevision, rev)
	return nil
}

// Append adds a snapshot, assigning it an id greater than every stored one.
func (s *Store) Append(snap Snapshot) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap.ID = s.ids.Next()
	s.snaps = append(s.snaps, snap)
	s.revision++
	return snap
}

// UpdateProfileFields overwrites occupation, phone, email, age and sex on
// every snapshot of client. It returns the number of snapshots changed.
func (s *Store) UpdateProfileFields(client string, p core.Profile) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.snaps {
		if s.snaps[i].Client != client {
			continue
		}
		s.snaps[i].Occupation = p.Occupation
		s.snaps[i].Phone = p.Phone
		s.snaps[i].Email = p.Email
		s.snaps[i].Age = p.Age
		s.snaps[i].Sex = p.Sex
		n++
	}
	if n > 0 {
		s.revision++
	}
	return n
}

// DeleteClient removes every snapshot of client and returns how many were
// removed. Unknown clients are a no-op.
func (s *Store) DeleteClient(client string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.snaps)
	s.snaps = slices.DeleteFunc(s.snaps, func(snap Snapshot) bool { return snap.Client == client })
	n := before - len(s.snaps)
	if n > 0 {
		s.revision++
	}
	return n
}

func (s *Store) GroupByClient() []ClientGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return GroupByClient(s.snaps)
}

// All returns a copy of the collection in stored order.
func (s *Store) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snaps)
}

func (s *Store) Find(id int64) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.snaps {
		if snap.ID == id {
			return snap, nil
		}
	}
	return Snapshot{}, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
}

// Len returns the number of snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}

// Revision increases on every change to the collection.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Dirty reports whether there are changes that have not been saved.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision != s.saved
}
