package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/foundry/pkgdemo/internal/core/models"
	"github.com/foundry/pkgdemo/internal/core/services"
	"github.com/foundry/pkgdemo/internal/telemetry"
	"github.com/foundry/pkgdemo/internal/util/logging"
)

const (
	supportedAPIVersions  = "2.0"
	deprecatedAPIVersions = "0.1, 1.0"
)

// Options configures a Handler. Journal must be non-nil; a nil Archive
// disables descriptor archiving.
type Options struct {
	Journal         services.Journal
	Archive         services.DescriptorArchive
	CORSOrigins     []string
	DefaultPageSize int
	MaxPageSize     int
	MaxUploadBytes  int64
}

// Handler holds all HTTP handlers and their dependencies.
type Handler struct {
	store   services.PackageStore
	auth    services.Authenticator
	journal services.Journal
	archive services.DescriptorArchive
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	opts    Options
	now     func() time.Time
}

// New creates a new Handler with the given dependencies.
func New(store services.PackageStore, auth services.Authenticator, logger zerolog.Logger, opts Options) *Handler {
	return &Handler{
		store:   store,
		auth:    auth,
		journal: opts.Journal,
		archive: opts.Archive,
		metrics: telemetry.New(store),
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// Metrics returns the handler's Prometheus collectors.
func (h *Handler) Metrics() *telemetry.Metrics {
	return h.metrics
}

// Router returns the chi router with all routes.
//
// Versioned routes live under /api/v1 (deprecated) and /api/v2; the same v2
// routes are also served unversioned under /api.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestIDMiddleware)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.Recoverer)
	if len(h.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"Location", "X-Request-ID", "api-supported-versions", "api-deprecated-versions"},
			MaxAge:         300,
		}))
	}
	r.Use(reportAPIVersions)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", h.v1Routes)
		r.Route("/v2", h.v2Routes)
		r.Get("/v0.1/packagesbyid", h.PackagesByIDDeprecated)
		h.v2Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (h *Handler) v1Routes(r chi.Router) {
	r.Get("/packages", h.ListPackagesDeprecated)
	r.With(h.cacheable).Get("/packages/{id}", h.GetPackageV1)
}

func (h *Handler) v2Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.cacheable)
		r.Get("/packages", h.ListPackages)
		r.Get("/packages/{id}", h.GetPackage)
		r.Get("/packages/{id}/statistics", h.GetStatistics)
		r.Get("/packages/{id}/versions/{version}", h.GetVersion)
	})
	r.Get("/packages/{id}/history", h.GetHistory)
	r.Get("/uploads/{pendingID}", h.GetUploadStatus)
	r.Get("/descriptors/{digest}", h.GetDescriptor)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Put("/packages/{id}", h.PutPackage)
		r.Patch("/packages/{id}", h.PatchPackage)
		r.Delete("/packages/{id}", h.DeletePackage)
		r.Post("/uploads", h.UploadPackage)
	})
}

// requestIDMiddleware adds a unique request ID to each request.
func (h *Handler) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		ctx := logging.WithRequestID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request and records its metrics.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		route := routePattern(r)
		h.metrics.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		logging.LogRequest(h.logger, r.Context(), r.Method, r.URL.Path, route, rw.status, rw.written, elapsed)
	})
}

// authMiddleware validates the bearer token when tokens are configured.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if !h.auth.ValidateToken(token) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cacheable marks read responses publicly cacheable until 00:59 UTC today.
func (h *Handler) cacheable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		y, m, d := h.now().UTC().Date()
		expires := time.Date(y, m, d, 0, 59, 0, 0, time.UTC)
		w.Header().Set("Expires", expires.Format(http.TimeFormat))
		w.Header().Set("Cache-Control", "public")
		next.ServeHTTP(w, r)
	})
}

func reportAPIVersions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("api-supported-versions", supportedAPIVersions)
		w.Header().Set("api-deprecated-versions", deprecatedAPIVersions)
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC().Format(time.RFC3339)
	if err := h.journal.Ping(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("journal health check failed")
		writeJSON(w, http.StatusServiceUnavailable, models.HealthResponse{
			Status: "unhealthy",
			Time:   now,
			Error:  "journal unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "healthy", Time: now})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: msg,
	})
}

// pathParam returns the decoded URL parameter, trimmed of surrounding space.
// chi matches on RawPath when it is set, and the parameter is then still
// escaped; otherwise it comes from the already decoded Path.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		if u, err := url.PathUnescape(v); err == nil {
			v = u
		}
	}
	return strings.TrimSpace(v)
}

// routePattern returns the matched chi route, or telemetry.NoRoute.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return telemetry.NoRoute
	}
	p := rctx.RoutePattern()
	if p == "" || strings.HasSuffix(p, "/*") {
		return telemetry.NoRoute
	}
	return p
}

// responseWriter wraps http.ResponseWriter to capture status and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}
