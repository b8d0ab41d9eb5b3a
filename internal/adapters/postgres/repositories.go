package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

var (
	_ ports.ScanRepository   = (*DB)(nil)
	_ ports.ReportRepository = Reports{}
	_ ports.UserRepository   = Users{}
)

// details is the part of an assessment stored as jsonb.
type details struct {
	SSLInfo    domain.SSLInfo       `json:"sslInfo"`
	DomainInfo domain.DomainInfo    `json:"domainInfo"`
	Blocklist  domain.BlocklistInfo `json:"blocklist"`
	Lexical    domain.LexicalInfo   `json:"lexical"`
	ScoredAt   time.Time            `json:"scoredAt"`
}

const scanColumns = `id, url, canonical_url, domain, risk_score, trust_rating, details, requested_by, created_at`

// ScanRepository

func (db *DB) Save(ctx context.Context, scan *domain.ScanResult) error {
	raw, err := json.Marshal(details{
		SSLInfo:    scan.SSLInfo,
		DomainInfo: scan.DomainInfo,
		Blocklist:  scan.Blocklist,
		Lexical:    scan.Lexical,
		ScoredAt:   scan.ScoredAt,
	})
	if err != nil {
		return errors.Wrap(err, "encode scan details")
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO scans (`+scanColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, scan.ID, scan.URL, scan.CanonicalURL, scan.Domain, scan.RiskScore, string(scan.TrustRating), raw, scan.RequestedBy, scan.CreatedAt)
	return errors.Wrap(err, "insert scan")
}

func (db *DB) Get(ctx context.Context, id string) (*domain.ScanResult, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select scan")
	}
	scan, err := pgx.CollectExactlyOneRow(rows, scanRow)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan row")
	}
	return &scan, nil
}

func (db *DB) ListByUser(ctx context.Context, userID string, limit int) ([]domain.ScanResult, error) {
	return db.scans(ctx, `
        SELECT `+scanColumns+` FROM scans
        WHERE requested_by = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
}

func (db *DB) List(ctx context.Context, offset, limit int) ([]domain.ScanResult, int, error) {
	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM scans`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count scans")
	}
	scans, err := db.scans(ctx, `
        SELECT `+scanColumns+` FROM scans
        ORDER BY created_at DESC
        OFFSET $1 LIMIT $2
    `, offset, limit)
	return scans, total, err
}

func (db *DB) ListByDomain(ctx context.Context, domainName string) ([]domain.ScanResult, error) {
	return db.scans(ctx, `
        SELECT `+scanColumns+` FROM scans
        WHERE domain = $1
        ORDER BY created_at DESC
    `, strings.ToLower(domainName))
}

func (db *DB) Stats(ctx context.Context) (domain.ScanStats, error) {
	stats := domain.ScanStats{RiskDistribution: make(map[domain.TrustRating]int, len(domain.Ratings))}
	for _, r := range domain.Ratings {
		stats.RiskDistribution[r] = 0
	}
	rows, err := db.Pool.Query(ctx, `SELECT trust_rating, count(*) FROM scans GROUP BY trust_rating`)
	if err != nil {
		return stats, errors.Wrap(err, "scan stats")
	}
	defer rows.Close()
	for rows.Next() {
		var rating string
		var n int
		if err := rows.Scan(&rating, &n); err != nil {
			return stats, errors.Wrap(err, "scan stats row")
		}
		stats.RiskDistribution[domain.TrustRating(rating)] = n
		stats.Total += n
	}
	return stats, errors.Wrap(rows.Err(), "scan stats rows")
}

func (db *DB) scans(ctx context.Context, query string, args ...any) ([]domain.ScanResult, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select scans")
	}
	out, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, errors.Wrap(err, "scan rows")
	}
	if out == nil {
		out = []domain.ScanResult{}
	}
	return out, nil
}

func scanRow(row pgx.CollectableRow) (domain.ScanResult, error) {
	var (
		s      domain.ScanResult
		rating string
		raw    []byte
	)
	if err := row.Scan(&s.ID, &s.URL, &s.CanonicalURL, &s.Domain, &s.RiskScore, &rating, &raw, &s.RequestedBy, &s.CreatedAt); err != nil {
		return s, err
	}
	s.TrustRating = domain.TrustRating(rating)
	var d details
	if err := json.Unmarshal(raw, &d); err != nil {
		return s, errors.Wrap(err, "decode scan details")
	}
	s.SSLInfo, s.DomainInfo, s.Blocklist, s.Lexical = d.SSLInfo, d.DomainInfo, d.Blocklist, d.Lexical
	s.ScoredAt = d.ScoredAt
	return s, nil
}

// Reports implements ports.ReportRepository on the shared pool.
type Reports struct{ *DB }

func (r Reports) Create(ctx context.Context, report *domain.FraudReport) error {
	_, err := r.Pool.Exec(ctx, `
        INSERT INTO fraud_reports (id, url, reason, description, reported_by, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, report.ID, report.URL, report.Reason, report.Description, report.ReportedBy, report.Status, report.CreatedAt)
	return errors.Wrap(err, "insert report")
}

func (r Reports) Count(ctx context.Context) (int, error) {
	var n int
	err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM fraud_reports`).Scan(&n)
	return n, errors.Wrap(err, "count reports")
}

// Users implements ports.UserRepository on the shared pool.
type Users struct{ *DB }

const uniqueViolation = "23505"

func (u Users) Create(ctx context.Context, user *domain.User) error {
	_, err := u.Pool.Exec(ctx, `
        INSERT INTO users (id, email, name, role, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, user.ID, strings.ToLower(user.Email), user.Name, string(user.Role), user.PasswordHash, user.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrEmailTaken
	}
	return errors.Wrap(err, "insert user")
}

func (u Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return u.one(ctx, `WHERE email = $1`, strings.ToLower(email))
}

func (u Users) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return u.one(ctx, `WHERE id = $1`, id)
}

func (u Users) Count(ctx context.Context) (int, error) {
	var n int
	err := u.Pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, errors.Wrap(err, "count users")
}

func (u Users) one(ctx context.Context, where string, arg any) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := u.Pool.QueryRow(ctx, `
        SELECT id, email, name, role, password_hash, created_at FROM users `+where, arg,
	).Scan(&user.ID, &user.Email, &user.Name, &role, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	user.Role = domain.Role(role)
	return &user, nil
}
