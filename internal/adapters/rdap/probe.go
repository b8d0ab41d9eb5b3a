// Package rdap looks up domain registration data over RDAP.
package rdap

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"github.com/openrdap/rdap"
	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
)

// Doer is the subset of *rdap.Client the probe needs.
type Doer interface {
	Do(req *rdap.Request) (*rdap.Response, error)
}

type Options struct {
	// RequestsPerSecond throttles outbound lookups across all scans.
	RequestsPerSecond float64
	CacheSize         int
	CacheTTL          time.Duration
	Clock             clockwork.Clock
}

type record struct {
	registrar string
	created   *time.Time
}

// Prober answers ProbeDomain for the registrable domain of a host and keeps
// recent answers, since registration data changes rarely.
type Prober struct {
	client  Doer
	limiter *rate.Limiter
	answers *expirable.LRU[string, record]
	clock   clockwork.Clock
}

var _ ports.DomainProbe = (*Prober)(nil)

func New(client Doer, opts Options) *Prober {
	if client == nil {
		client = &rdap.Client{}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Prober{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		answers: expirable.NewLRU[string, record](opts.CacheSize, nil, opts.CacheTTL),
		clock:   opts.Clock,
	}
}

func (p *Prober) ProbeDomain(ctx context.Context, hostname string) (domain.DomainInfo, error) {
	if net.ParseIP(hostname) != nil {
		return domain.DomainInfo{}, errors.New("no registration data for IP address hosts")
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(hostname))
	if err != nil {
		return domain.DomainInfo{}, errors.Wrapf(err, "registrable domain of %s", hostname)
	}

	rec, ok := p.answers.Get(registrable)
	if !ok {
		rec, err = p.lookup(ctx, registrable)
		if err != nil {
			return domain.DomainInfo{}, err
		}
		p.answers.Add(registrable, rec)
	}
	return p.info(rec), nil
}

func (p *Prober) lookup(ctx context.Context, registrable string) (record, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return record{}, errors.Wrap(err, "rdap throttle")
	}
	req := (&rdap.Request{Type: rdap.DomainRequest, Query: registrable}).WithContext(ctx)
	resp, err := p.client.Do(req)
	if err != nil {
		return record{}, errors.Wrapf(err, "rdap lookup %s", registrable)
	}
	d, ok := resp.Object.(*rdap.Domain)
	if !ok {
		return record{}, errors.Errorf("rdap lookup %s: unexpected %T", registrable, resp.Object)
	}

	var rec record
	for _, ev := range d.Events {
		if ev.Action != "registration" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ev.Date); err == nil {
			t = t.UTC()
			rec.created = &t
		}
	}
	for _, ent := range d.Entities {
		if !hasRole(ent.Roles, "registrar") {
			continue
		}
		if ent.VCard != nil && ent.VCard.Name() != "" {
			rec.registrar = ent.VCard.Name()
		} else {
			rec.registrar = ent.Handle
		}
		break
	}
	return rec, nil
}

// info derives the age at the time of the call so cached records stay
// correct.
func (p *Prober) info(rec record) domain.DomainInfo {
	info := domain.DomainInfo{Status: domain.ProbeOK}
	if rec.registrar != "" {
		registrar := rec.registrar
		info.Registrar = &registrar
	}
	if rec.created == nil {
		info.Message = "Registration date not published"
		return info
	}
	created := *rec.created
	age := int(p.clock.Now().Sub(created) / (24 * time.Hour))
	if age < 0 {
		age = 0
	}
	info.CreatedAt = &created
	info.AgeInDays = &age
	info.Message = "Domain registration found"
	return info
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}
