package signals

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a checker which connects to addr no matter which host is being checked
func tlsCheckerFor(addr string, roots *x509.CertPool) *TLSChecker {
	return &TLSChecker{
		Roots: roots,
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

func TestTLSCheckerHTTPTestServer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	addr := srv.Listener.Addr().String()

	tc := tlsCheckerFor(addr, roots)

	res := tc.CheckHost(ctx, "example.com")
	assert.True(res.Usable())
	assert.Equal(0.0, res.Score)

	res = tc.CheckHost(ctx, "other-host.org")
	assert.Equal(ScoreHostMismatch, res.Score)
	assert.Contains(res.Flags, "hostname-mismatch")

	// far in the future, the test certificate has expired
	tc.Now = func() time.Time { return time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC) }
	res = tc.CheckHost(ctx, "example.com")
	assert.Equal(ScoreExpiredCert, res.Score)

	// not in the system roots
	untrusted := tlsCheckerFor(addr, nil)
	res = untrusted.CheckHost(ctx, "example.com")
	assert.Equal(ScoreUntrustedCert, res.Score)
}

func TestTLSCheckerNoListener(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// plain HTTP: handshake fails
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	res := tlsCheckerFor(srv.Listener.Addr().String(), nil).CheckHost(ctx, "example.com")
	assert.True(res.Usable())
	assert.Equal(ScoreNoTLS, res.Score)

	// nothing listening at all
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()
	res = tlsCheckerFor(addr, nil).CheckHost(ctx, "example.com")
	assert.True(res.Usable())
	assert.Equal(ScoreNoTLS, res.Score)

	// name resolution failure is not evidence either way
	tc := &TLSChecker{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return nil, &net.DNSError{Err: "no such host", Name: "nowhere.example", IsNotFound: true}
		},
	}
	res = tc.CheckHost(ctx, "nowhere.example")
	assert.False(res.Usable())
	assert.NotEmpty(res.Error)
}

// serves TLS with a freshly issued certificate chain for "fresh.example.com"
func startFreshTLSServer(t *testing.T, issued time.Time) (string, *x509.CertPool) {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root"},
		NotBefore:             issued.Add(-365 * 24 * time.Hour),
		NotAfter:              issued.Add(10 * 365 * 24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "fresh.example.com"},
		DNSNames:     []string{"fresh.example.com"},
		NotBefore:    issued,
		NotAfter:     issued.Add(90 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err)

	l, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{leafDER}, PrivateKey: leafKey}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = conn.(*tls.Conn).Handshake()
			}()
		}
	}()

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	return l.Addr().String(), roots
}

func TestTLSCheckerCertificateAge(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	addr, roots := startFreshTLSServer(t, time.Now().Add(-2*24*time.Hour))
	res := tlsCheckerFor(addr, roots).CheckHost(ctx, "fresh.example.com")
	assert.Equal(ScoreCertUnder7Days, res.Score)
	assert.Contains(res.Flags, "new-cert")

	addr, roots = startFreshTLSServer(t, time.Now().Add(-14*24*time.Hour))
	res = tlsCheckerFor(addr, roots).CheckHost(ctx, "fresh.example.com")
	assert.Equal(ScoreCertUnder30Days, res.Score)

	addr, roots = startFreshTLSServer(t, time.Now().Add(-60*24*time.Hour))
	res = tlsCheckerFor(addr, roots).CheckHost(ctx, "fresh.example.com")
	assert.Equal(0.0, res.Score)
	assert.True(res.Usable())
}
