package domain

import "time"

// Core domain models. The HTTP adapter serialises these directly; JSON names
// follow the public API.

type TrustRating string

const (
	RatingTrusted    TrustRating = "trusted"
	RatingNeutral    TrustRating = "neutral"
	RatingSuspicious TrustRating = "suspicious"
	RatingMalicious  TrustRating = "malicious"
)

// Ratings lists every band in order of decreasing trust.
var Ratings = []TrustRating{RatingTrusted, RatingNeutral, RatingSuspicious, RatingMalicious}

// SSLInfo describes the TLS posture of a host. Nil pointers mean the probe
// could not establish the value; they serialise as null, never omitted.
type SSLInfo struct {
	Valid     bool       `json:"valid"`
	Issuer    *string    `json:"issuer"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Protocol  *string    `json:"protocol"`
	Status    string     `json:"status"`
	Message   string     `json:"message"`
}

// DomainInfo describes registration data for the registrable domain.
type DomainInfo struct {
	Registrar *string    `json:"registrar"`
	CreatedAt *time.Time `json:"createdAt"`
	AgeInDays *int       `json:"ageInDays"`
	Status    string     `json:"status"`
	Message   string     `json:"message"`
}

// Probe status markers used by SSLInfo and DomainInfo.
const (
	ProbeOK      = "ok"
	ProbeUnknown = "unknown"
)

type BlocklistInfo struct {
	Listed  bool     `json:"listed"`
	Sources []string `json:"sources"`
}

type LexicalInfo struct {
	Patterns []string `json:"patterns"`
}

// Assessment is the scoring outcome for one canonical URL. It is what the
// result cache holds; identity and timestamps belong to ScanResult.
type Assessment struct {
	CanonicalURL string        `json:"canonicalUrl"`
	Domain       string        `json:"domain"`
	RiskScore    int           `json:"riskScore"`
	TrustRating  TrustRating   `json:"trustRating"`
	SSLInfo      SSLInfo       `json:"sslInfo"`
	DomainInfo   DomainInfo    `json:"domainInfo"`
	Blocklist    BlocklistInfo `json:"blocklist"`
	Lexical      LexicalInfo   `json:"lexical"`
	ScoredAt     time.Time     `json:"scoredAt"`
}

// ScanResult is one persisted scan record.
type ScanResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Assessment
	CreatedAt   time.Time `json:"createdAt"`
	RequestedBy *string   `json:"requestedBy"`
}

type FraudReport struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Reason      string    `json:"reason"`
	Description string    `json:"description"`
	ReportedBy  string    `json:"reportedBy"`
	Status      string    `json:"status"` // pending|reviewed|resolved
	CreatedAt   time.Time `json:"createdAt"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User never serialises its password hash.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ScanStats aggregates persisted scans.
type ScanStats struct {
	Total            int                 `json:"totalScans"`
	RiskDistribution map[TrustRating]int `json:"riskDistribution"`
}

// DomainProfile summarises every scan recorded for one domain.
type DomainProfile struct {
	Domain       string      `json:"domain"`
	ScanCount    int         `json:"scanCount"`
	AverageRisk  float64     `json:"averageRisk"`
	LatestScan   *ScanResult `json:"latestScan"`
	FirstScanned time.Time   `json:"firstScanned"`
}
