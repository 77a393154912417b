package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"kobitar/internal/dashboard"
	"kobitar/internal/log"
	"kobitar/internal/middleware/ratelimit"
	"kobitar/internal/middleware/security"
	"kobitar/internal/middleware/trace"
	"kobitar/internal/notify"
	appweb "kobitar/web"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	http.Server
	templates *template.Template
	svc       *dashboard.Service
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	headers  *security.HeadersMiddleware

	checks     map[string]ReadinessCheck
	appMetrics appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime            time.Time
	expensesAdded     atomic.Int64
	expenseFailures   atomic.Int64
	invalidForms      atomic.Int64
	bulkDeletes       atomic.Int64
	collectionUpdates atomic.Int64
	renderFailures    atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentHTTP)
		}
	}
}

// WithReadinessCheck adds a named dependency check to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) {
		if check != nil {
			s.checks[name] = check
		}
	}
}

// WithRateLimit overrides the POST rate limit.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) {
		s.limiter.Stop()
		s.limiter = ratelimit.NewLimiter(cfg)
	}
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server. The service's notifier should include notify.Contextual so
// that notifications reach the HX-Trigger header of the response.
func NewServer(addr string, svc *dashboard.Service, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:      svc,
		logger:   log.Default(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
		headers:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		checks:   make(map[string]ReadinessCheck),
	}
	s.appMetrics.uptime = time.Now()
	for _, opt := range opts {
		opt(s)
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Error("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /personal", s.handlePersonal)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("POST /ui/expense-form/field", s.handleValidateField)
	mux.HandleFunc("GET /ui/expenses", s.handleExpenseList)
	mux.HandleFunc("POST /expenses/delete-all", s.handleDeleteAll)
	mux.HandleFunc("GET /admin", s.handleAdmin)
	mux.HandleFunc("POST /collections", s.handleUpdateCollection)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = withNotifications(mux)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)(h)
	h = s.headers.Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// withNotifications gives every request its own notification recorder.
func withNotifications(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := notify.NewContext(r.Context(), &notify.Recorder{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").
		TriggerErrorNotification("Too many requests. Please try again later.").
		Write(w)
}

// render executes a template into memory so a failing template never
// leaves a half-written response.
func (s *Server) render(ctx context.Context, name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.appMetrics.renderFailures.Add(1)
		log.NewStructuredLogger(log.FromContext(ctx).WithComponent(log.ComponentTemplate)).
			LogError(ctx, "Template execution failed", err, log.OpRender, log.NewFields().WithDataset(name))
		return nil, err
	}
	return buf.Bytes(), nil
}

// respond renders a template and writes it with the request's
// notifications attached. status applies only when rendering succeeds.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.render(r.Context(), name, data)
	if err != nil {
		b = InternalServerError("Failed to render page")
	} else {
		b.BodyHTML(body)
	}
	if rec, ok := notify.RecorderFromContext(r.Context()); ok {
		b.TriggerNotifications(rec.Messages())
	}
	b.Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
