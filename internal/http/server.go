// Package http serves the clinic JSON API: report screens and exports,
// the records ledger, dashboard and receipts, and the intake endpoints.
package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hcms/internal/amqp"
	"hcms/internal/cache"
	applog "hcms/internal/log"
	"hcms/internal/records"
	"hcms/internal/report"
	"hcms/internal/services"
)

// ExportQueue accepts doctor export jobs for the worker.
type ExportQueue interface {
	PublishExportRequest(ctx context.Context, req *amqp.ExportRequest) error
}

type Options struct {
	CacheSize      int
	CacheTTL       time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *applog.Logger
	// Now is the clock the dashboard uses for "today".
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CacheSize < 1 {
		o.CacheSize = 100
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = time.Minute
	}
	if o.RateLimitRPS <= 0 {
		o.RateLimitRPS = 10
	}
	if o.RateLimitBurst < 1 {
		o.RateLimitBurst = 20
	}
	if o.Logger == nil {
		o.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Server struct {
	http.Server
	records records.SnapshotReader
	intake  *services.IntakeService
	jobs    ExportQueue
	logger  *applog.Logger
	now     func() time.Time
	newJob  func() string

	// report screens keyed by selection; purged on every write
	screens *cache.LRUCache[report.Screen]
	caches  *cache.Manager
	// generation counts invalidations; a screen built from a snapshot taken
	// before the latest one is not cached
	screensMu  sync.Mutex
	generation uint64

	limiter *rateLimiter
	metrics securityMetrics

	shutdownOnce sync.Once
}

// NewServer wires the API routes. jobs may be nil, in which case export
// jobs are refused with 503.
func NewServer(addr string, rs records.SnapshotReader, intake *services.IntakeService, jobs ExportQueue, opts Options) *Server {
	opts = opts.withDefaults()
	mux := http.NewServeMux()

	s := &Server{
		Server:  http.Server{Addr: addr, ReadHeaderTimeout: 10 * time.Second},
		records: rs,
		intake:  intake,
		jobs:    jobs,
		logger:  opts.Logger,
		now:     opts.Now,
		newJob:  func() string { return "job_" + uuid.NewString() },
		screens: cache.NewLRUCache[report.Screen](opts.CacheSize, opts.CacheTTL),
		caches:  cache.NewManager(),
		limiter: newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}
	s.caches.Register(s.screens)
	s.caches.StartCleanup(opts.CacheTTL)
	go s.limiter.startCleanup(5 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/reports/summary", s.handleSummary)
	mux.HandleFunc("GET /api/reports/doctors/{id}/export", s.handleDoctorExport)
	mux.HandleFunc("POST /api/reports/doctors/{id}/export-jobs", s.handleCreateExportJob)
	mux.HandleFunc("GET /api/records", s.handleLedger)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/receipts/{kind}/{id}", s.handleReceipt)

	mux.HandleFunc("POST /api/doctors", s.handleAddDoctor)
	mux.HandleFunc("PUT /api/doctors/{id}", s.handleUpdateDoctor)
	mux.HandleFunc("DELETE /api/doctors/{id}", s.handleDeleteDoctor)
	mux.HandleFunc("POST /api/services", s.handleAddService)
	mux.HandleFunc("DELETE /api/services/{id}", s.handleDeleteService)
	mux.HandleFunc("POST /api/lab-tests", s.handleAddLabTest)
	mux.HandleFunc("DELETE /api/lab-tests/{id}", s.handleDeleteLabTest)
	mux.HandleFunc("POST /api/patients", s.handleRegisterPatient)
	mux.HandleFunc("POST /api/patients/{id}/attended", s.handleMarkAttended)
	mux.HandleFunc("POST /api/patients/{id}/referral", s.handleReferOut)
	mux.HandleFunc("POST /api/service-records", s.handleRecordService)
	mux.HandleFunc("POST /api/lab-records", s.handleRecordLab)
	mux.HandleFunc("POST /api/expenses", s.handleAddExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	s.Handler = applog.Middleware(s.logger)(s.withSecurity(mux))
	return s
}

// withSecurity sets response headers, logs suspicious probes and rate
// limits API calls per client IP.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w.Header())
		clientIP := extractClientIP(r)
		logger := applog.FromContext(r.Context())

		if detectSuspiciousRequest(r, &s.metrics) {
			logger.WarnContext(r.Context(), "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
		}

		if strings.HasPrefix(r.URL.Path, "/api/") && !s.limiter.allow(clientIP, &s.metrics) {
			logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldErrorType, applog.ErrorTypeRateLimit)
			w.Header().Set("Retry-After", strconv.Itoa(s.limiter.retryAfter(clientIP)))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// invalidate drops cached report screens after a write.
func (s *Server) invalidate() {
	s.screensMu.Lock()
	defer s.screensMu.Unlock()
	s.generation++
	s.screens.Purge()
}

func (s *Server) screenGeneration() uint64 {
	s.screensMu.Lock()
	defer s.screensMu.Unlock()
	return s.generation
}

// cacheScreen stores screen unless a write landed after gen was read.
func (s *Server) cacheScreen(gen uint64, key string, screen report.Screen) {
	s.screensMu.Lock()
	defer s.screensMu.Unlock()
	if s.generation == gen {
		s.screens.Set(key, screen)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks that the record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.records.Snapshot(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
