package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultoria/internal/amqp"
	"consultoria/internal/cache"
	"consultoria/internal/core"
	"consultoria/internal/export/pdf"
	"consultoria/internal/records"
	"consultoria/internal/session"
)

var march = core.Period{Year: 2025, Month: time.March}

type fakeDocs struct {
	analyses []pdf.Analysis
	err      error
}

func (f *fakeDocs) Analysis(_ context.Context, a pdf.Analysis) ([]byte, error) {
	f.analyses = append(f.analyses, a)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-analysis"), nil
}

func (f *fakeDocs) Projection(_ context.Context, _ pdf.Header, p core.Projection) ([]byte, error) {
	return []byte("%PDF-projection " + p.Label()), nil
}

type fakeWorkbooks struct {
	calls int
	err   error
}

func (f *fakeWorkbooks) Export(_ context.Context, snaps []records.Snapshot) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte{byte(len(snaps))}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (f *fakeEvents) Publish(_ context.Context, e *amqp.LedgerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

type fixture struct {
	svc       *LedgerService
	store     *records.Store
	persister *records.Memory
	docs      *fakeDocs
	workbooks *fakeWorkbooks
	events    *fakeEvents
	sess      *session.Session
}

func newFixture(t *testing.T, initial ...records.Snapshot) *fixture {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }
	persister := records.NewMemory(initial...)
	store, err := records.Open(context.Background(), persister, records.Options{Now: now})
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		persister: persister,
		docs:      &fakeDocs{},
		workbooks: &fakeWorkbooks{},
		events:    &fakeEvents{},
		sess:      session.New(session.Options{Now: now}),
	}
	f.svc = NewLedgerService(LedgerOptions{
		Store:     store,
		Workbooks: f.workbooks,
		Documents: f.docs,
		Events:    f.events,
		Cache:     cache.NewLRUCache[[]byte](4, time.Minute),
	})
	return f
}

func (f *fixture) fillSession(t *testing.T, name string) {
	t.Helper()
	p := core.DefaultProfile()
	p.Name = name
	p.Occupation = "Engineer"
	require.NoError(t, f.sess.SetProfile(p))
	_, _, err := f.sess.Submit("Salary", decimal.NewFromInt(1000), core.KindIncome)
	require.NoError(t, err)
	_, _, err = f.sess.Submit("Rent", decimal.NewFromInt(400), core.KindExpense)
	require.NoError(t, err)
	_, err = f.sess.SetProjection(decimal.NewFromInt(100), 12)
	require.NoError(t, err)
}

func TestClosePeriodRequiresClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ClosePeriod(context.Background(), f.sess, march)
	assert.ErrorIs(t, err, session.ErrClientRequired)
	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.docs.analyses)
}

func TestClosePeriodPersistsAndResets(t *testing.T) {
	f := newFixture(t)
	f.fillSession(t, "Ana")

	res, err := f.svc.ClosePeriod(context.Background(), f.sess, march)
	require.NoError(t, err)
	assert.True(t, res.Persisted())

	snap := res.Snapshot
	assert.Equal(t, "Ana", snap.Client)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(600)))
	assert.True(t, snap.Savings().Equal(decimal.NewFromInt(100)), "monthly savings, not the projection total")
	assert.Equal(t, []byte("%PDF-analysis"), snap.Document)
	assert.Equal(t, "March 2025", snap.PeriodLabel)

	require.Len(t, f.docs.analyses, 1)
	assert.Len(t, f.docs.analyses[0].Transactions, 2, "live document itemizes the ledger")

	saved, _ := f.persister.Load(context.Background())
	assert.Len(t, saved, 1)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, amqp.EventSnapshotSaved, f.events.events[0].Type)
	assert.Equal(t, snap.ID, f.events.events[0].SnapshotID)

	assert.False(t, f.sess.Profile().HasClient(), "session resets after a persisted close")
	assert.Empty(t, f.sess.State().Ledger)
}

func TestClosePeriodUsesChosenPeriod(t *testing.T) {
	f := newFixture(t)
	october := func() time.Time { return time.Date(2026, 10, 17, 16, 30, 0, 0, time.UTC) }
	f.sess = session.New(session.Options{Now: october})
	f.fillSession(t, "Luis")
	_, err := f.sess.SetProjection(decimal.NewFromInt(500), 12)
	require.NoError(t, err)

	res, err := f.svc.ClosePeriod(context.Background(), f.sess, march)
	require.NoError(t, err)

	snap := res.Snapshot
	assert.Equal(t, "March 2025", snap.PeriodLabel)
	assert.Equal(t, "March", snap.Month)
	assert.Equal(t, 2025, snap.Year)
	assert.Equal(t, "17/10/2026", snap.Date.Display(), "save date stays the day of the close")
	assert.True(t, snap.Savings().Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "17/10/2026", f.docs.analyses[0].Header.Date.Display())
}

func TestClosePeriodSaveFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.fillSession(t, "Ana")
	f.persister.SetErr(errors.New("disk full"))

	res, err := f.svc.ClosePeriod(context.Background(), f.sess, march)
	require.NoError(t, err)
	assert.False(t, res.Persisted())
	assert.ErrorIs(t, res.Warning, ErrNotPersisted)

	assert.Equal(t, 1, f.store.Len(), "snapshot stays in memory")
	assert.Equal(t, "Ana", f.sess.Profile().Name, "session is kept")
	assert.Empty(t, f.events.events, "nothing announced before persisting")

	f.persister.SetErr(nil)
	require.NoError(t, f.svc.Flush(context.Background()))
	saved, _ := f.persister.Load(context.Background())
	assert.Len(t, saved, 1)
}

func TestClosePeriodPublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.fillSession(t, "Ana")
	f.events.err = errors.New("broker down")

	res, err := f.svc.ClosePeriod(context.Background(), f.sess, march)
	require.NoError(t, err)
	assert.True(t, res.Persisted())
}

func TestClosePeriodDocumentFailure(t *testing.T) {
	f := newFixture(t)
	f.fillSession(t, "Ana")
	f.docs.err = errors.New("no fonts")

	_, err := f.svc.ClosePeriod(context.Background(), f.sess, march)
	assert.Error(t, err)
	assert.Zero(t, f.store.Len())
}

func TestClosePeriodWithoutPublisher(t *testing.T) {
	f := newFixture(t)
	f.svc.events = nil
	f.fillSession(t, "Ana")

	res, err := f.svc.ClosePeriod(context.Background(), f.sess, march)
	require.NoError(t, err)
	assert.True(t, res.Persisted())
}

func stored(id int64, client string) records.Snapshot {
	s := records.NewSnapshot(
		core.Profile{Name: client, Occupation: "Chef", Age: 40, Sex: core.SexMale},
		core.NewDate(2025, 1, 31),
		core.Period{Year: 2025, Month: 1},
		core.Totals{Income: decimal.NewFromInt(10), Expense: decimal.NewFromInt(4)},
		decimal.Zero,
		nil,
	)
	s.ID = id
	return s
}

func TestUpdateClientProfile(t *testing.T) {
	f := newFixture(t, stored(1, "Bob"), stored(2, "Ana"), stored(3, "Bob"))

	p := core.Profile{Name: "ignored", Occupation: "Head Chef", Phone: "1", Email: "b@x", Age: 41, Sex: core.SexMale}
	res, err := f.svc.UpdateClientProfile(context.Background(), "Bob", p)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)

	for _, g := range f.store.GroupByClient() {
		if g.Client == "Bob" {
			for _, s := range g.Snapshots {
				assert.Equal(t, "Head Chef", s.Occupation)
				assert.Equal(t, 41, s.Age)
			}
		}
	}
	require.Len(t, f.events.events, 1)
	assert.Equal(t, amqp.EventClientUpdated, f.events.events[0].Type)
	assert.Equal(t, "Bob", f.events.events[0].Client)

	_, err = f.svc.UpdateClientProfile(context.Background(), "Nobody", p)
	assert.ErrorIs(t, err, records.ErrNotFound)

	p.Age = 0
	_, err = f.svc.UpdateClientProfile(context.Background(), "Bob", p)
	assert.ErrorIs(t, err, core.ErrInvalidProfile)
}

func TestDeleteClient(t *testing.T) {
	f := newFixture(t, stored(1, "Bob"), stored(2, "Ana"), stored(3, "Bob"))

	res, err := f.svc.DeleteClient(context.Background(), "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.Equal(t, 1, f.store.Len())

	_, err = f.svc.DeleteClient(context.Background(), "Bob")
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestWorkbookCachedPerRevision(t *testing.T) {
	f := newFixture(t, stored(1, "Bob"))
	ctx := context.Background()

	first, err := f.svc.Workbook(ctx)
	require.NoError(t, err)
	second, err := f.svc.Workbook(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.workbooks.calls)

	f.store.Append(stored(0, "Ana"))
	third, err := f.svc.Workbook(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.workbooks.calls)
	assert.Equal(t, []byte{2}, third)
}

func TestWorkbookError(t *testing.T) {
	f := newFixture(t)
	f.workbooks.err = errors.New("conflict")
	_, err := f.svc.Workbook(context.Background())
	assert.Error(t, err)
}

func TestSnapshotDocument(t *testing.T) {
	withDoc := stored(1, "Bob")
	withDoc.Document = []byte("%PDF-frozen")
	f := newFixture(t, withDoc, stored(2, "Ana"))
	ctx := context.Background()

	_, doc, err := f.svc.SnapshotDocument(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-frozen"), doc)
	assert.Empty(t, f.docs.analyses)

	snap, doc, err := f.svc.SnapshotDocument(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Ana", snap.Client)
	assert.Equal(t, []byte("%PDF-analysis"), doc)
	require.Len(t, f.docs.analyses, 1)
	assert.Nil(t, f.docs.analyses[0].Transactions, "frozen values only")

	_, _, err = f.svc.SnapshotDocument(ctx, 99)
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestLiveDocuments(t *testing.T) {
	f := newFixture(t)
	f.fillSession(t, "Ana")

	doc, err := f.svc.AnalysisDocument(context.Background(), f.sess)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-analysis"), doc)

	doc, err = f.svc.ProjectionDocument(context.Background(), f.sess)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-projection 1 Year", string(doc))
}
