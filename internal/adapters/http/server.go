package httpadapter

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"trustscan/internal/auth"
	"trustscan/internal/domain"
	"trustscan/internal/ratelimit"
	"trustscan/internal/services/accounts"
	"trustscan/internal/services/reports"
	"trustscan/internal/services/scanner"
)

// ScanService is the scan orchestrator as seen by the handlers.
type ScanService interface {
	Scan(ctx context.Context, req scanner.Request) (*scanner.Result, error)
	Get(ctx context.Context, id string) (*domain.ScanResult, error)
	History(ctx context.Context, userID string) ([]domain.ScanResult, error)
	List(ctx context.Context, page, limit int) ([]domain.ScanResult, scanner.Pagination, error)
	Stats(ctx context.Context) (domain.ScanStats, []domain.ScanResult, error)
	ClearCache(ctx context.Context) error
}

type ProfileService interface {
	GetLatest(ctx context.Context, host string) (*domain.DomainProfile, error)
}

type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (*accounts.Session, error)
	Login(ctx context.Context, in accounts.LoginInput) (*accounts.Session, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	Count(ctx context.Context) (int, error)
}

type ReportService interface {
	File(ctx context.Context, userID string, in reports.Input) (*domain.FraudReport, error)
	Count(ctx context.Context) (int, error)
}

type Deps struct {
	Scans    ScanService
	Profiles ProfileService
	Accounts AccountService
	Reports  ReportService
	Tokens   *auth.Tokens
	// ClientKey derives the rate-limit key; defaults to ratelimit.ByIP.
	ClientKey      ratelimit.KeyFunc
	AllowedOrigins []string
	// TrustProxy rewrites RemoteAddr from forwarding headers. Enable only
	// behind a proxy that overwrites them.
	TrustProxy     bool
	Logger         zerolog.Logger
}

type Server struct {
	scans      ScanService
	profiles   ProfileService
	accounts   AccountService
	reports    ReportService
	tokens     *auth.Tokens
	clientKey  ratelimit.KeyFunc
	origins    []string
	trustProxy bool
	log        zerolog.Logger
}

func New(d Deps) *Server {
	if d.ClientKey == nil {
		d.ClientKey = ratelimit.ByIP
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	return &Server{
		scans:      d.Scans,
		profiles:   d.Profiles,
		accounts:   d.Accounts,
		reports:    d.Reports,
		tokens:     d.Tokens,
		clientKey:  d.ClientKey,
		origins:    d.AllowedOrigins,
		trustProxy: d.TrustProxy,
		log:        d.Logger.With().Str("component", "http").Logger(),
	}
}

// Routes returns the service router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, took time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("took", took).
			Str("req_id", middleware.GetReqID(r.Context())).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Remaining"},
		MaxAge:         300,
	}))
	r.Use(s.identify)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)

	r.Post("/scan", s.postScan)
	r.Get("/scan/{id}", s.getScan)
	r.Get("/profiles/{domain}", s.getProfile)

	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/history", s.history)
		r.Post("/report", s.postReport)
		r.Get("/auth/me", s.me)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth, requireAdmin)
		r.Get("/admin/stats", s.adminStats)
		r.Get("/admin/scans", s.adminScans)
		r.Delete("/admin/cache", s.adminClearCache)
	})
	return r
}

// identify attaches the caller's identity when a valid bearer token is
// present. Invalid tokens leave the request anonymous; protected routes
// reject it in requireAuth.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if ok {
			if id, err := s.tokens.Verify(tok); err == nil {
				r = r.WithContext(auth.WithIdentity(r.Context(), id))
				hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("user_id", id.UserID)
				})
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := auth.FromContext(r.Context()); !id.IsAdmin() {
			writeError(w, r, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
