// Dialers and HTTP transports which refuse to connect to non-public network addresses.
//
// Any request whose destination comes from a user-posted link (redirect resolution, page fetches, TLS probes) should go through these, so a link can't be used to probe the service's own network.
//
// Based on the approach described at https://www.agwa.name/blog/post/preventing_server_side_request_forgery_in_golang
package ssrf

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strconv"
	"syscall"
	"time"
)

var reservedIPv4 = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),       // current network
	netip.MustParsePrefix("10.0.0.0/8"),      // private
	netip.MustParsePrefix("100.64.0.0/10"),   // carrier-grade NAT
	netip.MustParsePrefix("127.0.0.0/8"),     // loopback
	netip.MustParsePrefix("169.254.0.0/16"),  // link-local
	netip.MustParsePrefix("172.16.0.0/12"),   // private
	netip.MustParsePrefix("192.0.0.0/24"),    // IETF protocol assignments
	netip.MustParsePrefix("192.0.2.0/24"),    // documentation
	netip.MustParsePrefix("192.88.99.0/24"),  // 6to4 relay
	netip.MustParsePrefix("192.168.0.0/16"),  // private
	netip.MustParsePrefix("198.18.0.0/15"),   // benchmarking
	netip.MustParsePrefix("198.51.100.0/24"), // documentation
	netip.MustParsePrefix("203.0.113.0/24"),  // documentation
	netip.MustParsePrefix("224.0.0.0/4"),     // multicast
	netip.MustParsePrefix("240.0.0.0/4"),     // reserved, and broadcast
}

// only global unicast IPv6 is routable on the public internet
var globalUnicastIPv6 = netip.MustParsePrefix("2000::/3")

// Ports a link fetch may connect to
var DefaultPorts = []string{"80", "443"}

func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.Is4() {
		for _, p := range reservedIPv4 {
			if p.Contains(addr) {
				return false
			}
		}
		return true
	}
	return globalUnicastIPv6.Contains(addr)
}

// Returns a [net.Dialer] Control function which rejects non-TCP networks, non-public addresses, and any port not in ports.
func PublicOnlyControl(ports ...string) func(network, address string, conn syscall.RawConn) error {
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	return func(network, address string, conn syscall.RawConn) error {
		if network != "tcp4" && network != "tcp6" {
			return fmt.Errorf("%s is not a safe network type", network)
		}
		ap, err := netip.ParseAddrPort(address)
		if err != nil {
			return fmt.Errorf("%s is not a valid address: %w", address, err)
		}
		if !IsPublicAddr(ap.Addr()) {
			return fmt.Errorf("%s is not a public IP address", ap.Addr())
		}
		port := strconv.Itoa(int(ap.Port()))
		if !slices.Contains(ports, port) {
			return fmt.Errorf("%s is not a safe port number", port)
		}
		return nil
	}
}

// [net.Dialer] using [PublicOnlyControl]
func PublicOnlyDialer(timeout time.Duration, ports ...string) *net.Dialer {
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control:   PublicOnlyControl(ports...),
	}
}

// [http.Transport] dialing through [PublicOnlyDialer]. Proxies are not used, because they would be dialed instead of the checked address.
func PublicOnlyTransport() *http.Transport {
	dialer := PublicOnlyDialer(10*time.Second, DefaultPorts...)
	return &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
