// Package client talks HTTP to the claim routes: either this server's proxy
// routes or the vision/agent backend directly.
package client

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client for streaming calls. It sets no overall
// timeout, so a description stream may run as long as the backend keeps it
// open; only dialing and idle connections are bounded.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Transport: transport}
}
