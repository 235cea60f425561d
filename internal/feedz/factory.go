// ABOUTME: Client factory with region routing between feedz deployments.
// ABOUTME: Builds DNS-caching transports and wires the caller's logger.
package feedz

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/dnscache"
)

// Endpoints are the API and binary feed base URLs of a deployment.
type Endpoints struct {
	API  string
	Feed string
}

// alternateRegionPrefix selects the feedz.xyz deployment.
const alternateRegionPrefix = "xyz"

var (
	DefaultEndpoints = Endpoints{API: "https://feedz.io/api/", Feed: "https://f.feedz.io/"}
	XYZEndpoints     = Endpoints{API: "https://feedz.xyz/api/", Feed: "https://f.feedz.xyz/"}
)

// EndpointsForRegion routes a region name to a deployment.
func EndpointsForRegion(region string) Endpoints {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(region)), alternateRegionPrefix) {
		return XYZEndpoints
	}
	return DefaultEndpoints
}

// Factory creates configured clients.
type Factory struct {
	Logger *slog.Logger
	// DefaultRegion routes clients created without a region.
	DefaultRegion string
	// Overrides replaces region routing for any non-empty field.
	Overrides  Endpoints
	HTTPClient *http.Client
	UserAgent  string
}

// Create returns a client for credential and region. No network I/O happens here.
func (f *Factory) Create(credential, region string) *Client {
	if region == "" {
		region = f.DefaultRegion
	}
	endpoints := EndpointsForRegion(region)
	if f.Overrides.API != "" {
		endpoints.API = f.Overrides.API
	}
	if f.Overrides.Feed != "" {
		endpoints.Feed = f.Overrides.Feed
	}
	endpoints.API = withTrailingSlash(endpoints.API)
	endpoints.Feed = withTrailingSlash(endpoints.Feed)

	if f.Logger != nil {
		f.Logger.Debug("feed client created", "api", endpoints.API, "feed", endpoints.Feed, "authenticated", credential != "")
	}

	return NewClient(credential, endpoints,
		WithLogger(f.Logger),
		WithHTTPClient(f.HTTPClient),
		WithUserAgent(f.UserAgent),
	)
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// NewTransport returns an HTTP transport that caches DNS lookups for the
// lifetime of the process.
func NewTransport() *http.Transport {
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var lastErr error
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, fmt.Errorf("no addresses resolved for %s", host)
		},
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
