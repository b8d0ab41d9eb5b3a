// Package tlsprobe inspects the certificate a host presents on its TLS port.
package tlsprobe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"trustscan/internal/domain"
	"trustscan/internal/ports"
	"trustscan/internal/urlnorm"
)

// Prober dials the target, captures the leaf certificate and verifies it
// separately so an untrusted certificate is reported rather than failing
// the handshake.
type Prober struct {
	// Roots overrides the system pool; nil uses the host's roots.
	Roots *x509.CertPool
	Clock clockwork.Clock
}

var _ ports.SSLProbe = (*Prober)(nil)

func New() *Prober { return &Prober{Clock: clockwork.NewRealClock()} }

// ProbeSSL returns an error only when no handshake could be completed.
func (p *Prober) ProbeSSL(ctx context.Context, target urlnorm.NormalizedURL) (domain.SSLInfo, error) {
	host := target.Hostname()
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true, // verified below against Roots
			MinVersion:         tls.VersionTLS10,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, target.Port()))
	if err != nil {
		return domain.SSLInfo{}, errors.Wrapf(err, "tls handshake with %s", host)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return domain.SSLInfo{
			Status:  domain.ProbeOK,
			Message: "No valid SSL certificate found",
		}, nil
	}
	leaf := state.PeerCertificates[0]

	issuer := issuerName(leaf)
	expires := leaf.NotAfter.UTC()
	proto := tls.VersionName(state.Version)
	info := domain.SSLInfo{
		Issuer:    &issuer,
		ExpiresAt: &expires,
		Protocol:  &proto,
		Status:    domain.ProbeOK,
	}

	if err := p.verify(host, state.PeerCertificates); err != nil {
		info.Message = "Invalid SSL certificate: " + err.Error()
		return info, nil
	}
	info.Valid = true
	info.Message = "Valid SSL certificate"
	return info, nil
}

func (p *Prober) verify(host string, chain []*x509.Certificate) error {
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock.Now()
	}
	inter := x509.NewCertPool()
	for _, c := range chain[1:] {
		inter.AddCert(c)
	}
	_, err := chain[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         p.Roots,
		Intermediates: inter,
		CurrentTime:   now,
	})
	return err
}

func issuerName(c *x509.Certificate) string {
	if len(c.Issuer.Organization) > 0 {
		return c.Issuer.Organization[0]
	}
	if c.Issuer.CommonName != "" {
		return c.Issuer.CommonName
	}
	return c.Issuer.String()
}
