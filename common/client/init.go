// Package client builds the shared outbound HTTP clients used for every
// upstream vendor call (Anthropic, Vertex, Warp).
package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"

	netutil "github.com/relaygate/core/common/network"
	"github.com/relaygate/core/internal/config"
)

// HTTPClient is the default outbound client for vendor relay calls, bounded
// by config.RelayTimeout.
var HTTPClient *http.Client

// ImpatientHTTPClient is a short-timeout client for quick probes (token
// verification, health checks).
var ImpatientHTTPClient *http.Client

// buildDialContext refuses connections to private/link-local/loopback
// addresses so a misconfigured apiBaseUrl can't be used to reach internal
// infrastructure.
func buildDialContext() func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "split host and port: %s", addr)
		}

		if ip := net.ParseIP(host); ip != nil {
			if netutil.IsForbiddenIP(ip) {
				return nil, errors.Errorf("blocked private address: %s", host)
			}
			return dialer.DialContext(ctx, network, addr)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve host: %s", host)
		}
		if len(ips) == 0 {
			return nil, errors.Errorf("no IPs found for host: %s", host)
		}
		for _, resolved := range ips {
			if netutil.IsForbiddenIP(resolved.IP) {
				return nil, errors.Errorf("blocked private address for host: %s", host)
			}
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
	}
}

// Init builds HTTPClient and ImpatientHTTPClient. It must run once at
// startup, after config.Load.
func Init() {
	transport := &http.Transport{
		TLSNextProto: make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
		DialContext:  buildDialContext(),
	}

	HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   config.RelayTimeout,
	}
	ImpatientHTTPClient = &http.Client{
		Transport: transport,
		Timeout:   5 * time.Second,
	}
}

// NormalizeBaseURL ensures an operator-supplied API base ends at suffix,
// appending it if missing. Used to normalise an Anthropic apiBaseUrl override
// to end at /v1/messages.
func NormalizeBaseURL(base, suffix string) (string, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return "", errors.New("base url is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.Wrap(err, "parse base url")
	}
	if !strings.HasSuffix(parsed.Path, suffix) {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/") + suffix
	}
	return parsed.String(), nil
}
