// Package worker rebuilds the client workbook after ledger changes and
// distributes it to the configured sinks.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"consultoria/internal/amqp"
	"consultoria/internal/archive"
	"consultoria/internal/export/xlsx"
	"consultoria/internal/log"
	"consultoria/internal/records"
	"consultoria/internal/sheets"
)

type Config struct {
	// Interval between exports when no events arrive (default: 15m).
	Interval time.Duration
	// Timeout bounds one export run (default: 2m).
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 15 * time.Minute, Timeout: 2 * time.Minute}
}

type Workbooks interface {
	Export(ctx context.Context, snaps []records.Snapshot) ([]byte, error)
}

// Result summarises one export run.
type Result struct {
	Revision  uint64
	Clients   int
	Bytes     int
	Locations map[string]string
}

// ExportWorker reloads the store, builds the workbook and hands it to every
// sink concurrently. A run is skipped when the store revision has not moved
// since the last successful run.
type ExportWorker struct {
	store     *records.Store
	workbooks Workbooks
	sinks     []archive.Sink
	mirror    sheets.SummaryWriter
	config    Config
	logger    *log.Logger
	now       func() time.Time

	runMu    sync.Mutex
	lastHash string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	trigger chan struct{}
}

type Options struct {
	Store     *records.Store
	Workbooks Workbooks
	Sinks     []archive.Sink
	// Mirror may be nil.
	Mirror sheets.SummaryWriter
	Config Config
	Logger *log.Logger
	Now    func() time.Time
}

func NewExportWorker(opts Options) *ExportWorker {
	def := DefaultConfig()
	if opts.Config.Interval <= 0 {
		opts.Config.Interval = def.Interval
	}
	if opts.Config.Timeout <= 0 {
		opts.Config.Timeout = def.Timeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ExportWorker{
		store:     opts.Store,
		workbooks: opts.Workbooks,
		sinks:     opts.Sinks,
		mirror:    opts.Mirror,
		config:    opts.Config,
		logger:    opts.Logger.WithComponent(log.ComponentWorker),
		now:       opts.Now,
		trigger:   make(chan struct{}, 1),
	}
}

// HandleEvent schedules an export for a ledger event. It never blocks: events
// arriving while a run is pending collapse into that run.
func (w *ExportWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Ledger event received",
		log.FieldEventType, event.Type,
		log.FieldEventID, event.EventID,
		log.FieldClient, event.Client)
	select {
	case w.trigger <- struct{}{}:
	default:
	}
	return nil
}

// RunOnce performs a single export. skipped is true when nothing changed.
func (w *ExportWorker) RunOnce(ctx context.Context) (res Result, skipped bool, err error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if err := w.store.Load(ctx); err != nil {
		return Result{}, false, fmt.Errorf("reload store: %w", err)
	}
	snaps := w.store.All()
	hash := fingerprint(snaps)
	if hash == w.lastHash {
		return Result{}, true, nil
	}

	data, err := w.workbooks.Export(ctx, snaps)
	if err != nil {
		return Result{}, false, fmt.Errorf("build workbook: %w", err)
	}

	res = Result{
		Revision:  w.store.Revision(),
		Clients:   len(records.GroupByClient(snaps)),
		Bytes:     len(data),
		Locations: map[string]string{},
	}
	var mu sync.Mutex
	record := func(key, loc string) {
		mu.Lock()
		res.Locations[key] = loc
		mu.Unlock()
	}

	stamped := archive.WorkbookName(w.now())
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range w.sinks {
		g.Go(func() error {
			for _, name := range []string{stamped, archive.LatestName} {
				loc, err := sink.Store(gctx, name, data)
				if err != nil {
					return fmt.Errorf("%s sink: %w", sink.Name(), err)
				}
				record(sink.Name()+":"+name, loc)
			}
			return nil
		})
	}
	if w.mirror != nil {
		rows := xlsx.SummaryRows(snaps)
		g.Go(func() error {
			loc, err := w.mirror.WriteSummary(gctx, rows)
			if err != nil {
				return fmt.Errorf("sheets mirror: %w", err)
			}
			record("sheets", loc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, false, err
	}

	w.lastHash = hash
	w.logger.InfoContext(ctx, "Workbook exported",
		log.FieldOperation, log.OpExport,
		log.FieldRevision, res.Revision,
		log.FieldCount, res.Clients,
		log.FieldBytes, res.Bytes)
	return res, false, nil
}

// Start runs an export immediately, then on every tick and every event
// until Stop or ctx cancellation. It returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("export worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Export worker started",
		"interval", w.config.Interval,
		"sinks", len(w.sinks),
		"mirror", w.mirror != nil)
	return nil
}

// Stop signals the loop and waits for the run in progress.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Export worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *ExportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.run(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.run(ctx)
		case <-w.trigger:
			w.run(ctx)
		}
	}
}

func (w *ExportWorker) run(ctx context.Context) {
	res, skipped, err := w.RunOnce(ctx)
	switch {
	case err != nil:
		w.logger.ErrorContext(ctx, "Export run failed", log.FieldError, err)
	case skipped:
		w.logger.DebugContext(ctx, "Records unchanged, export skipped")
	default:
		w.logger.DebugContext(ctx, "Export run finished", "locations", len(res.Locations))
	}
}
