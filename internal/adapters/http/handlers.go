package httpadapter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trustscan/internal/auth"
	"trustscan/internal/cache"
	"trustscan/internal/domain"
	"trustscan/internal/services/accounts"
	"trustscan/internal/services/reports"
	"trustscan/internal/services/scanner"
)

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":   "trustscan",
		"status": "ok",
		"endpoints": map[string]string{
			"scan":     "POST /scan",
			"getScan":  "GET /scan/{id}",
			"history":  "GET /history",
			"report":   "POST /report",
			"profile":  "GET /profiles/{domain}",
			"register": "POST /auth/register",
			"login":    "POST /auth/login",
			"me":       "GET /auth/me",
			"admin":    "GET /admin/stats, GET /admin/scans, DELETE /admin/cache",
		},
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scanRequest struct {
	URL string `json:"url"`
}

type scanResponse struct {
	ScanID      string               `json:"scanId"`
	URL         string               `json:"url"`
	Domain      string               `json:"domain"`
	RiskScore   int                  `json:"riskScore"`
	TrustRating domain.TrustRating   `json:"trustRating"`
	SSLInfo     domain.SSLInfo       `json:"sslInfo"`
	DomainInfo  domain.DomainInfo    `json:"domainInfo"`
	Blocklist   domain.BlocklistInfo `json:"blocklist"`
	Lexical     domain.LexicalInfo   `json:"lexical"`
	Cached      bool                 `json:"cached"`
	CreatedAt   time.Time            `json:"createdAt"`
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	var body scanRequest
	req := scanner.Request{Malformed: decode(w, r, &body)}
	req.RawURL = body.URL
	id, authed := auth.FromContext(r.Context())
	if authed {
		userID := id.UserID
		req.RequestedBy = &userID
	}
	req.ClientKey = s.clientKey(r, id.UserID)

	res, err := s.scans.Scan(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sc := res.Scan
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	writeJSON(w, http.StatusCreated, scanResponse{
		ScanID:      sc.ID,
		URL:         sc.URL,
		Domain:      sc.Domain,
		RiskScore:   sc.RiskScore,
		TrustRating: sc.TrustRating,
		SSLInfo:     sc.SSLInfo,
		DomainInfo:  sc.DomainInfo,
		Blocklist:   sc.Blocklist,
		Lexical:     sc.Lexical,
		Cached:      res.Outcome == cache.Hit,
		CreatedAt:   sc.CreatedAt,
	})
}

// scanView adds the legacy _id alias to a stored scan.
type scanView struct {
	LegacyID string `json:"_id"`
	*domain.ScanResult
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scanView{LegacyID: sc.ID, ScanResult: sc})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	scans, err := s.scans.History(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.profiles.GetLatest(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *Server) postReport(w http.ResponseWriter, r *http.Request) {
	var in reports.Input
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := auth.FromContext(r.Context())
	report, err := s.reports.File(r.Context(), id.UserID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"reportId": report.ID,
		"message":  "Report submitted successfully",
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in accounts.RegisterInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in accounts.LoginInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.accounts.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	user, err := s.accounts.Me(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) adminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, recent, err := s.scans.Stats(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := s.accounts.Count(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filed, err := s.reports.Count(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalScans":       stats.Total,
		"totalUsers":       users,
		"totalReports":     filed,
		"riskDistribution": stats.RiskDistribution,
		"recentScans":      recent,
	})
}

func (s *Server) adminScans(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scans, p, err := s.scans.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans, "pagination": p})
}

func (s *Server) adminClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.scans.ClearCache(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared"})
}
