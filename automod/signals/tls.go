package signals

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/linkguard/linkguard/automod/event"
)

const (
	ScoreNoTLS           = 0.7
	ScoreUntrustedCert   = 0.8
	ScoreExpiredCert     = 0.8
	ScoreHostMismatch    = 0.7
	ScoreCertUnder7Days  = 0.6
	ScoreCertUnder30Days = 0.3
)

// Inspects the certificate presented on the host's TLS port.
type TLSChecker struct {
	Port int
	// nil means the system roots
	Roots *x509.CertPool
	// defaults to a net.Dialer
	DialContext func(ctx context.Context, network, addr string) (net.Conn, error)
	Now         func() time.Time
}

var _ Checker = (*TLSChecker)(nil)

func (c *TLSChecker) Kind() Kind {
	return KindTLS
}

func (c *TLSChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	return c.CheckHost(ctx, le.Domain)
}

func (c *TLSChecker) dial(ctx context.Context, addr string) (net.Conn, error) {
	if c.DialContext != nil {
		return c.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// A TCP connection which was refused or reset means nothing is serving TLS; name resolution failures and timeouts say nothing about the site
func isNoListener(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

func (c *TLSChecker) CheckHost(ctx context.Context, host string) Result {
	port := c.Port
	if port == 0 {
		port = 443
	}
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}

	conn, err := c.dial(ctx, net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		if isNoListener(err) {
			return Scored(KindTLS, ScoreNoTLS, "no TLS listener", "no-tls")
		}
		return Unavailable(KindTLS, err)
	}
	defer conn.Close()

	// verification is done by hand below, so each failure mode can be scored separately
	tconn := tls.Client(conn, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
	})
	if err := tconn.HandshakeContext(ctx); err != nil {
		if ctx.Err() != nil {
			return Unavailable(KindTLS, ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Unavailable(KindTLS, err)
		}
		return Scored(KindTLS, ScoreNoTLS, fmt.Sprintf("TLS handshake failed: %s", err), "no-tls")
	}
	certs := tconn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return Scored(KindTLS, ScoreUntrustedCert, "no certificate presented", "untrusted-cert")
	}
	return c.scoreCertificates(certs, host, now)
}

func (c *TLSChecker) scoreCertificates(certs []*x509.Certificate, host string, now time.Time) Result {
	leaf := certs[0]
	if now.After(leaf.NotAfter) {
		return Scored(KindTLS, ScoreExpiredCert, fmt.Sprintf("certificate expired %s", leaf.NotAfter.Format(time.DateOnly)), "expired-cert")
	}

	inter := x509.NewCertPool()
	for _, cert := range certs[1:] {
		inter.AddCert(cert)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         c.Roots,
		Intermediates: inter,
		CurrentTime:   now,
	})
	if err != nil {
		flag := "untrusted-cert"
		if leaf.Issuer.String() == leaf.Subject.String() {
			flag = "self-signed-cert"
		}
		return Scored(KindTLS, ScoreUntrustedCert, fmt.Sprintf("certificate not trusted: %s", err), flag)
	}

	if err := leaf.VerifyHostname(host); err != nil {
		return Scored(KindTLS, ScoreHostMismatch, "certificate does not match hostname", "hostname-mismatch")
	}

	age := now.Sub(leaf.NotBefore)
	switch {
	case age < 7*24*time.Hour:
		return Scored(KindTLS, ScoreCertUnder7Days, "certificate issued less than 7 days ago", "new-cert")
	case age < 30*24*time.Hour:
		return Scored(KindTLS, ScoreCertUnder30Days, "certificate issued less than 30 days ago", "recent-cert")
	}
	return Scored(KindTLS, 0.0, "valid certificate")
}
