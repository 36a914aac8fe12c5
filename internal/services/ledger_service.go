package services

import (
	"context"
	"errors"
	"fmt"

	"consultoria/internal/amqp"
	"consultoria/internal/cache"
	"consultoria/internal/core"
	"consultoria/internal/export/pdf"
	"consultoria/internal/log"
	"consultoria/internal/records"
	"consultoria/internal/session"
)

// Ports for the collaborators the service orchestrates.
type (
	EventPublisher interface {
		Publish(ctx context.Context, event *amqp.LedgerEvent) error
	}

	WorkbookExporter interface {
		Export(ctx context.Context, snaps []records.Snapshot) ([]byte, error)
	}

	DocumentExporter interface {
		Analysis(ctx context.Context, a pdf.Analysis) ([]byte, error)
		Projection(ctx context.Context, h pdf.Header, p core.Projection) ([]byte, error)
	}
)

// ErrNotPersisted wraps a save failure after an in-memory change succeeded.
var ErrNotPersisted = errors.New("changes kept in memory but not persisted")

// MutationResult describes the outcome of a change to the record collection.
// Warning is set when the change applied in memory but the save failed.
type MutationResult struct {
	Snapshot records.Snapshot
	Affected int
	Warning  error
}

func (r MutationResult) Persisted() bool { return r.Warning == nil }

type LedgerOptions struct {
	Store     *records.Store
	Workbooks WorkbookExporter
	Documents DocumentExporter
	// Events may be nil; publishing is then skipped.
	Events EventPublisher
	// Cache may be nil; workbooks are then rebuilt on every export.
	Cache  *cache.LRUCache[[]byte]
	Logger *log.Logger
}

// LedgerService orchestrates closing periods, editing stored clients and
// producing exports. Mutations are saved first and announced second; a
// failed announcement never fails the request.
type LedgerService struct {
	store     *records.Store
	workbooks WorkbookExporter
	documents DocumentExporter
	events    EventPublisher
	cache     *cache.LRUCache[[]byte]
	logger    *log.Logger
}

func NewLedgerService(opts LedgerOptions) *LedgerService {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &LedgerService{
		store:     opts.Store,
		workbooks: opts.Workbooks,
		documents: opts.Documents,
		events:    opts.Events,
		cache:     opts.Cache,
		logger:    opts.Logger.WithComponent(log.ComponentRecords),
	}
}

func (s *LedgerService) Store() *records.Store { return s.store }

// ClosePeriod freezes the session into a snapshot of period with its analysis
// document, persists the collection and, once persisted, resets the session.
// The snapshot records the monthly savings of the session projection. When the
// save fails the snapshot stays in memory, the session is kept and the
// result carries a warning.
func (s *LedgerService) ClosePeriod(ctx context.Context, sess *session.Session, period core.Period) (MutationResult, error) {
	if err := sess.RequireClient(); err != nil {
		return MutationResult{}, err
	}
	st := sess.State()

	doc, err := s.documents.Analysis(ctx, pdf.LiveAnalysis(st.Profile, st.Today, st.Ledger))
	if err != nil {
		return MutationResult{}, fmt.Errorf("render analysis document: %w", err)
	}

	snap := s.store.Append(records.NewSnapshot(st.Profile, st.Today, period, st.Totals, st.Projection.Monthly, doc))
	res := MutationResult{Snapshot: snap, Affected: 1}

	sl := log.NewStructuredLogger(s.logger)
	if err := s.store.Save(ctx); err != nil {
		res.Warning = fmt.Errorf("%w: %v", ErrNotPersisted, err)
		sl.LogSnapshotSaved(ctx, snap.ID, snap.Client, snap.PeriodLabel, false)
		return res, nil
	}
	sl.LogSnapshotSaved(ctx, snap.ID, snap.Client, snap.PeriodLabel, true)

	event := amqp.NewLedgerEvent(amqp.EventSnapshotSaved, snap.Client)
	event.SnapshotID = snap.ID
	event.Affected = 1
	s.publish(ctx, event)

	sess.Reset()
	return res, nil
}

// UpdateClientProfile rewrites the profile fields of every snapshot of
// client. The client name itself is the key and is never changed.
func (s *LedgerService) UpdateClientProfile(ctx context.Context, client string, p core.Profile) (MutationResult, error) {
	if err := p.Validate(); err != nil {
		return MutationResult{}, err
	}
	n := s.store.UpdateProfileFields(client, p)
	if n == 0 {
		return MutationResult{}, fmt.Errorf("client %q: %w", client, records.ErrNotFound)
	}
	return s.afterClientChange(ctx, amqp.EventClientUpdated, client, n), nil
}

// DeleteClient removes every snapshot of client.
func (s *LedgerService) DeleteClient(ctx context.Context, client string) (MutationResult, error) {
	n := s.store.DeleteClient(client)
	if n == 0 {
		return MutationResult{}, fmt.Errorf("client %q: %w", client, records.ErrNotFound)
	}
	return s.afterClientChange(ctx, amqp.EventClientDeleted, client, n), nil
}

func (s *LedgerService) afterClientChange(ctx context.Context, typ amqp.EventType, client string, n int) MutationResult {
	res := MutationResult{Affected: n}
	if err := s.store.Save(ctx); err != nil {
		res.Warning = fmt.Errorf("%w: %v", ErrNotPersisted, err)
		return res
	}
	s.logger.InfoContext(ctx, "Client records changed",
		log.FieldOperation, string(typ),
		log.FieldClient, client,
		log.FieldCount, n)

	event := amqp.NewLedgerEvent(typ, client)
	event.Affected = n
	s.publish(ctx, event)
	return res
}

// Flush retries persisting the collection.
func (s *LedgerService) Flush(ctx context.Context) error {
	if err := s.store.Save(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping event",
			log.FieldEventType, event.Type)
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, event.Type,
			log.FieldClient, event.Client,
			log.FieldError, err)
	}
}

// Workbook exports every stored snapshot. The result is cached per store
// revision.
func (s *LedgerService) Workbook(ctx context.Context) ([]byte, error) {
	key := fmt.Sprintf("workbook:%d", s.store.Revision())
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}

	data, err := s.workbooks.Export(ctx, s.store.All())
	if err != nil {
		s.logger.ErrorContext(ctx, "Workbook export failed", log.FieldError, err)
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(key, data)
	}
	s.logger.InfoContext(ctx, "Workbook exported",
		log.FieldCount, s.store.Len(),
		log.FieldBytes, len(data))
	return data, nil
}

// AnalysisDocument renders the analysis report for the live session.
func (s *LedgerService) AnalysisDocument(ctx context.Context, sess *session.Session) ([]byte, error) {
	st := sess.State()
	return s.documents.Analysis(ctx, pdf.LiveAnalysis(st.Profile, st.Today, st.Ledger))
}

// ProjectionDocument renders the savings projection for the live session.
func (s *LedgerService) ProjectionDocument(ctx context.Context, sess *session.Session) ([]byte, error) {
	st := sess.State()
	h := pdf.Header{Client: st.Profile.Name, Occupation: st.Profile.Occupation, Date: st.Today}
	return s.documents.Projection(ctx, h, st.Projection)
}

// SnapshotDocument returns the document frozen with a snapshot, rendering
// one from the snapshot's own values when none was stored.
func (s *LedgerService) SnapshotDocument(ctx context.Context, id int64) (records.Snapshot, []byte, error) {
	snap, err := s.store.Find(id)
	if err != nil {
		return records.Snapshot{}, nil, err
	}
	if snap.HasDocument() {
		return snap, snap.Document, nil
	}
	doc, err := s.documents.Analysis(ctx, pdf.SnapshotAnalysis(snap))
	if err != nil {
		return snap, nil, fmt.Errorf("render snapshot %d: %w", id, err)
	}
	return snap, doc, nil
}
