package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"consultoria/internal/export/xlsx"
	"consultoria/internal/sheets"
)

var (
	_ sheets.SummaryWriter = (*Store)(nil)
	_ sheets.SummaryReader = (*Store)(nil)
)

// Store keeps the mirrored Summary in process.
type Store struct {
	mu     sync.Mutex
	rows   []xlsx.SummaryRow
	writes int
	err    error
}

func New() *Store { return &Store{} }

func (s *Store) WriteSummary(ctx context.Context, rows []xlsx.SummaryRow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = slices.Clone(rows)
	s.writes++
	return fmt.Sprintf("mem:%d", s.writes), nil
}

func (s *Store) ReadSummary(_ context.Context) ([]xlsx.SummaryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows), nil
}

// Writes counts successful WriteSummary calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// FailWith makes later writes fail with err; nil restores them.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
