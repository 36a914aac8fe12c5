package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"consultoria/internal/chart"
	"consultoria/internal/log"
	"consultoria/internal/middleware/ratelimit"
	"consultoria/internal/middleware/security"
	"consultoria/internal/middleware/trace"
	"consultoria/internal/services"
	"consultoria/internal/session"
	appweb "consultoria/web"
)

// Options configures the dashboard server.
type Options struct {
	Addr    string
	Session *session.Session
	Ledger  *services.LedgerService
	// Charts renders the analysis tab preview; nil disables the image.
	Charts chart.Renderer
	Logger *log.Logger

	Theme          string
	NoticeDuration time.Duration
	// BlockSuspicious rejects requests matching known attack patterns.
	BlockSuspicious bool
	// RateLimit is the number of state-changing requests allowed per client
	// and minute; zero uses the limiter default.
	RateLimit int
}

// Server serves the dashboard for the single working session.
type Server struct {
	http.Server

	templates *template.Template
	logger    *log.Logger

	session *session.Session
	ledger  *services.LedgerService
	charts  chart.Renderer

	theme  string
	notice time.Duration

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and configures routes and
// middleware, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Session == nil || opts.Ledger == nil {
		return nil, errors.New("http server requires a session and a ledger service")
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Theme == "" {
		opts.Theme = "light"
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		templates: t,
		logger:    logger,
		session:   opts.Session,
		ledger:    opts.Ledger,
		charts:    opts.Charts,
		theme:     opts.Theme,
		notice:    opts.NoticeDuration,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit}),
		detector:  security.NewDetector(opts.Logger),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	if opts.BlockSuspicious {
		handler = s.detector.Middleware(handler)
	}
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Pages and partials
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/tab/{tab}", s.handleTab)
	mux.HandleFunc("GET /ui/profile", s.handleProfilePartial)

	// Working session
	mux.HandleFunc("POST /profile", s.handleSetProfile)
	mux.HandleFunc("POST /transactions", s.handleSubmitTransaction)
	mux.HandleFunc("POST /transactions/edit/cancel", s.handleCancelEdit)
	mux.HandleFunc("POST /transactions/{id}/edit", s.handleBeginEdit)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDeleteTransaction)
	mux.HandleFunc("POST /debts", s.handleAddDebt)
	mux.HandleFunc("POST /debts/{id}/delete", s.handleDeleteDebt)
	mux.HandleFunc("POST /projection", s.handleSetProjection)

	// Reports on the working session
	mux.Handle("GET /reports/analysis.pdf", security.NoStore(http.HandlerFunc(s.handleAnalysisReport)))
	mux.Handle("GET /reports/projection.pdf", security.NoStore(http.HandlerFunc(s.handleProjectionReport)))
	mux.Handle("GET /reports/clients.xlsx", security.NoStore(http.HandlerFunc(s.handleWorkbook)))

	// Stored records
	mux.HandleFunc("POST /records/close", s.handleClosePeriod)
	mux.HandleFunc("POST /records/flush", s.handleFlush)
	mux.Handle("GET /records/{id}/document.pdf", security.NoStore(http.HandlerFunc(s.handleSnapshotDocument)))
	mux.HandleFunc("POST /clients/{client}/profile", s.handleUpdateClient)
	mux.HandleFunc("POST /clients/{client}/delete", s.handleDeleteClient)
}

// Shutdown stops the limiter cleanup loop and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "Too many requests").
		TriggerNotification(NotificationWarning, "Too many requests, please slow down", s.notice).
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil || s.ledger.Store() == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
