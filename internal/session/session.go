// Package session holds the working state of the consultant's form: the
// client profile, the unsaved ledger, debts, the projection inputs and the
// transaction currently being edited.
package session

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"consultoria/internal/core"
)

// ErrClientRequired is returned when an operation needs a named client.
var ErrClientRequired = errors.New("client name is required")

// DefaultProjectionMonths is the horizon a new session starts with.
const DefaultProjectionMonths = 12

type Options struct {
	// Now defaults to time.Now.
	Now              func() time.Time
	DefaultKind      core.Kind
	ProjectionMonths int
}

type Session struct {
	mu sync.Mutex

	now  func() time.Time
	ids  *core.IDSource
	opts Options

	profile   core.Profile
	ledger    []core.Transaction
	debts     []core.Debt
	editingID int64
	monthly   decimal.Decimal
	months    int
}

// State is a read-only copy of the session used for rendering and exports.
type State struct {
	Profile     core.Profile
	Ledger      []core.Transaction
	Debts       []core.Debt
	Totals      core.Totals
	TotalDebt   decimal.Decimal
	Editing     *core.Transaction
	Projection  core.Projection
	DefaultKind core.Kind
	Today       core.Date
}

func New(opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if !opts.DefaultKind.Valid() {
		opts.DefaultKind = core.KindIncome
	}
	if opts.ProjectionMonths < 1 || opts.ProjectionMonths > core.MaxProjectionMonths {
		opts.ProjectionMonths = DefaultProjectionMonths
	}
	s := &Session{
		now:  opts.Now,
		ids:  core.NewIDSource(opts.Now),
		opts: opts,
	}
	s.resetLocked()
	return s
}

func (s *Session) resetLocked() {
	s.profile = core.DefaultProfile()
	s.ledger = nil
	s.debts = nil
	s.editingID = 0
	s.monthly = decimal.Zero
	s.months = s.opts.ProjectionMonths
}

// Reset discards the ledger, debts, profile and projection inputs.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Profile:     s.profile,
		Ledger:      slices.Clone(s.ledger),
		Debts:       slices.Clone(s.debts),
		Totals:      core.Summarize(s.ledger),
		TotalDebt:   core.TotalDebt(s.debts),
		Projection:  s.projectionLocked(),
		DefaultKind: s.opts.DefaultKind,
		Today:       core.DateOf(s.now()),
	}
	if tx, ok := s.editingLocked(); ok {
		st.Editing = &tx
	}
	return st
}

func (s *Session) Profile() core.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) SetProfile(p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	return nil
}

// RequireClient fails with ErrClientRequired when the profile has no name.
func (s *Session) RequireClient() error {
	if !s.Profile().HasClient() {
		return ErrClientRequired
	}
	return nil
}

// Submit adds a transaction, or replaces the one being edited. The id of an
// edited transaction is preserved and edit mode ends on success.
func (s *Session) Submit(category string, amount decimal.Decimal, kind core.Kind) (core.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.editingLocked(); ok {
		cur.Category, cur.Amount, cur.Kind = category, amount, kind
		if err := cur.Validate(); err != nil {
			return core.Transaction{}, true, err
		}
		i := s.indexLocked(cur.ID)
		s.ledger[i] = cur
		s.editingID = 0
		return cur, true, nil
	}

	tx := core.Transaction{
		Date:     core.DateOf(s.now()),
		Category: category,
		Amount:   amount,
		Kind:     kind,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, false, err
	}
	tx.ID = s.ids.Next()
	s.ledger = append(s.ledger, tx)
	return tx, false, nil
}

// Delete removes a transaction by id. Deleting the transaction being edited
// also leaves edit mode.
func (s *Session) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.ledger = slices.Delete(s.ledger, i, i+1)
	if s.editingID == id {
		s.editingID = 0
	}
	return true
}

// BeginEdit enters edit mode for id. It reports false, leaving edit mode,
// when the transaction does not exist.
func (s *Session) BeginEdit(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		s.editingID = 0
		return false
	}
	s.editingID = id
	return true
}

func (s *Session) CancelEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editingID = 0
}

// Editing returns the transaction being edited. A stale edit id is cleared.
func (s *Session) Editing() (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingLocked()
}

func (s *Session) editingLocked() (core.Transaction, bool) {
	if s.editingID == 0 {
		return core.Transaction{}, false
	}
	i := s.indexLocked(s.editingID)
	if i < 0 {
		s.editingID = 0
		return core.Transaction{}, false
	}
	return s.ledger[i], true
}

func (s *Session) indexLocked(id int64) int {
	return slices.IndexFunc(s.ledger, func(t core.Transaction) bool { return t.ID == id })
}

func (s *Session) AddDebt(creditor string, amount, rate decimal.Decimal) (core.Debt, error) {
	d := core.Debt{Creditor: creditor, Amount: amount, Rate: rate}
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.ids.Next()
	s.debts = append(s.debts, d)
	return d, nil
}

func (s *Session) DeleteDebt(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.debts, func(d core.Debt) bool { return d.ID == id })
	if i < 0 {
		return false
	}
	s.debts = slices.Delete(s.debts, i, i+1)
	return true
}

// SetProjection stores the projection inputs; months is limited to
// 1..core.MaxProjectionMonths.
func (s *Session) SetProjection(monthly decimal.Decimal, months int) (core.Projection, error) {
	if months > core.MaxProjectionMonths {
		months = core.MaxProjectionMonths
	}
	p, err := core.NewProjection(monthly, months)
	if err != nil {
		return core.Projection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthly, s.months = monthly, months
	return p, nil
}

func (s *Session) Projection() core.Projection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectionLocked()
}

func (s *Session) projectionLocked() core.Projection {
	p, err := core.NewProjection(s.monthly, s.months)
	if err != nil {
		p, _ = core.NewProjection(decimal.Zero, DefaultProjectionMonths)
	}
	return p
}
