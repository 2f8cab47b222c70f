// Package httputil provides pooled HTTP clients and safe response
// handling for calls to embedding and classification backends.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize bounds how much of a response body gets read. Model
// backends are external services; a misbehaving one must not be able to
// exhaust memory here.
const MaxResponseSize = 2 * 1024 * 1024 // 2MB

// One transport for the process so every backend call reuses pooled TCP
// connections.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// Tier selects a client timeout appropriate to the call.
type Tier int

const (
	// TierProbe for readiness checks against local backends (2s).
	TierProbe Tier = iota
	// TierEmbed for embedding requests (15s).
	TierEmbed
	// TierModel for chat-completion classification calls (30s).
	TierModel
)

var tierTimeouts = map[Tier]time.Duration{
	TierProbe: 2 * time.Second,
	TierEmbed: 15 * time.Second,
	TierModel: 30 * time.Second,
}

var (
	probeClient *http.Client
	embedClient *http.Client
	modelClient *http.Client
	clientOnce  sync.Once
)

func initClients() {
	probeClient = &http.Client{Timeout: tierTimeouts[TierProbe], Transport: sharedTransport}
	embedClient = &http.Client{Timeout: tierTimeouts[TierEmbed], Transport: sharedTransport}
	modelClient = &http.Client{Timeout: tierTimeouts[TierModel], Transport: sharedTransport}
}

// Client returns the shared client for the given tier. Callers must not
// mutate the returned client.
func Client(tier Tier) *http.Client {
	clientOnce.Do(initClients)
	switch tier {
	case TierProbe:
		return probeClient
	case TierEmbed:
		return embedClient
	case TierModel:
		return modelClient
	default:
		return modelClient
	}
}

// ReadBody reads a response body up to maxSize bytes. Zero or negative
// maxSize falls back to MaxResponseSize.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose drains and closes a response body so the connection can
// return to the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
