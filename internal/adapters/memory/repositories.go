package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"trustscan/internal/domain"
)

// Store keeps scans, reports and users in process memory. It is used when
// no DATABASE_URL is configured and by tests.
type Store struct {
	mu      sync.RWMutex
	scans   map[string]domain.ScanResult
	order   []string // scan ids in insertion order
	reports []domain.FraudReport
	users   map[string]domain.User
	emails  map[string]string // lowercased email -> user id
}

func NewStore() *Store {
	return &Store{
		scans:  make(map[string]domain.ScanResult),
		users:  make(map[string]domain.User),
		emails: make(map[string]string),
	}
}

// ScanRepository

func (s *Store) Save(_ context.Context, scan *domain.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scans[scan.ID]; !ok {
		s.order = append(s.order, scan.ID)
	}
	s.scans[scan.ID] = *scan
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scan, ok := s.scans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &scan, nil
}

func (s *Store) ListByUser(_ context.Context, userID string, limit int) ([]domain.ScanResult, error) {
	return s.newest(limit, func(scan domain.ScanResult) bool {
		return scan.RequestedBy != nil && *scan.RequestedBy == userID
	}), nil
}

func (s *Store) List(_ context.Context, offset, limit int) ([]domain.ScanResult, int, error) {
	all := s.newest(0, nil)
	total := len(all)
	if offset < 0 || offset >= total {
		return []domain.ScanResult{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) ListByDomain(_ context.Context, domainName string) ([]domain.ScanResult, error) {
	domainName = strings.ToLower(domainName)
	return s.newest(0, func(scan domain.ScanResult) bool {
		return scan.Domain == domainName
	}), nil
}

func (s *Store) Stats(_ context.Context) (domain.ScanStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.ScanStats{RiskDistribution: make(map[domain.TrustRating]int, len(domain.Ratings))}
	for _, r := range domain.Ratings {
		stats.RiskDistribution[r] = 0
	}
	for _, scan := range s.scans {
		stats.Total++
		stats.RiskDistribution[scan.TrustRating]++
	}
	return stats, nil
}

// newest returns matching scans newest first. limit <= 0 means no limit.
func (s *Store) newest(limit int, match func(domain.ScanResult) bool) []domain.ScanResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ScanResult, 0)
	for _, id := range s.order {
		scan := s.scans[id]
		if match == nil || match(scan) {
			out = append(out, scan)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Reports returns a view of the report store.
func (s *Store) Reports() *Reports { return (*Reports)(s) }

// Users returns a view of the user store.
func (s *Store) Users() *Users { return (*Users)(s) }

// Reports implements ports.ReportRepository over a Store.
type Reports Store

func (r *Reports) Create(_ context.Context, report *domain.FraudReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, *report)
	return nil
}

func (r *Reports) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reports), nil
}

// Users implements ports.UserRepository over a Store.
type Users Store

func (u *Users) Create(_ context.Context, user *domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, taken := u.emails[key]; taken {
		return domain.ErrEmailTaken
	}
	u.users[user.ID] = *user
	u.emails[key] = user.ID
	return nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	id, ok := u.emails[strings.ToLower(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	user := u.users[id]
	return &user, nil
}

func (u *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (u *Users) Count(context.Context) (int, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.users), nil
}
