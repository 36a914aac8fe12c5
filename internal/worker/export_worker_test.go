package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultoria/internal/amqp"
	"consultoria/internal/archive"
	"consultoria/internal/core"
	"consultoria/internal/export/xlsx"
	"consultoria/internal/records"
	"consultoria/internal/sheets/memory"
)

type failingSink struct{ err error }

func (f failingSink) Name() string { return "failing" }
func (f failingSink) Store(context.Context, string, []byte) (string, error) {
	return "", f.err
}

func snapshot(id int64, client string) records.Snapshot {
	s := records.NewSnapshot(
		core.Profile{Name: client, Age: 33, Sex: core.SexFemale},
		core.NewDate(2025, 2, 1),
		core.Period{Year: 2025, Month: 2},
		core.Totals{Income: decimal.NewFromInt(100), Expense: decimal.NewFromInt(30)},
		decimal.Zero,
		[]byte("%PDF"),
	)
	s.ID = id
	return s
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }

func newWorker(t *testing.T, persister *records.Memory, sinks ...archive.Sink) (*ExportWorker, *memory.Store) {
	t.Helper()
	mirror := memory.New()
	w := NewExportWorker(Options{
		Store:     records.NewStore(persister, records.Options{}),
		Workbooks: xlsx.New(xlsx.Options{}),
		Sinks:     sinks,
		Mirror:    mirror,
		Now:       fixedNow,
	})
	return w, mirror
}

func TestRunOnceDistributesWorkbook(t *testing.T) {
	dir := t.TempDir()
	persister := records.NewMemory(snapshot(1, "Ana"), snapshot(2, "Bob"), snapshot(3, "Ana"))
	w, mirror := newWorker(t, persister, archive.NewDir(dir))

	res, skipped, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 2, res.Clients)
	assert.Contains(t, res.Locations, "dir:"+archive.LatestName)
	assert.Contains(t, res.Locations, "sheets")

	f, err := os.Open(filepath.Join(dir, archive.LatestName))
	require.NoError(t, err)
	defer f.Close()
	rows, err := xlsx.ReadSummary(f)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = os.Stat(filepath.Join(dir, archive.WorkbookName(fixedNow())))
	assert.NoError(t, err)

	mirrored, _ := mirror.ReadSummary(context.Background())
	assert.Equal(t, rows, mirrored)
}

func TestRunOnceSkipsUnchanged(t *testing.T) {
	persister := records.NewMemory(snapshot(1, "Ana"))
	w, mirror := newWorker(t, persister, archive.NewDir(t.TempDir()))
	ctx := context.Background()

	_, skipped, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.False(t, skipped)

	_, skipped, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, 1, mirror.Writes())

	require.NoError(t, persister.Save(ctx, []records.Snapshot{snapshot(1, "Ana"), snapshot(2, "Carl")}))
	_, skipped, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, 2, mirror.Writes())
}

func TestRunOnceSinkFailureRetriesNextRun(t *testing.T) {
	boom := errors.New("bucket gone")
	persister := records.NewMemory(snapshot(1, "Ana"))
	w, _ := newWorker(t, persister, failingSink{err: boom})

	_, _, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)

	_, skipped, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, skipped, "a failed run is not remembered")
}

func TestRunOnceLoadFailure(t *testing.T) {
	persister := records.NewMemory()
	persister.SetErr(errors.New("corrupt"))
	w, _ := newWorker(t, persister)

	_, _, err := w.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestHandleEventCollapses(t *testing.T) {
	w, _ := newWorker(t, records.NewMemory())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, w.HandleEvent(ctx, amqp.NewLedgerEvent(amqp.EventSnapshotSaved, "Ana")))
	}
	assert.Len(t, w.trigger, 1)
}

func TestStartStop(t *testing.T) {
	w, mirror := newWorker(t, records.NewMemory(snapshot(1, "Ana")))
	ctx := context.Background()

	assert.False(t, w.IsRunning())
	require.NoError(t, w.Stop(ctx), "stopping an idle worker is a no-op")

	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx), "second start fails")

	require.Eventually(t, func() bool { return mirror.Writes() == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())
}

func TestDefaultConfig(t *testing.T) {
	w := NewExportWorker(Options{})
	assert.Equal(t, DefaultConfig(), w.config)
}
