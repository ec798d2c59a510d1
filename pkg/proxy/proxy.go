// Package proxy forwards editor API traffic to an upstream backend.
//
// The dev server mounts the proxy under a path prefix (typically /api) so a
// frontend served from one origin can talk to a backend on another without
// CORS friction. Requests are forwarded verbatim minus hop-by-hop headers,
// responses are streamed back, and redirects are passed through to the
// client rather than followed.
package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Hop-by-hop headers are connection-scoped and must not be forwarded in
// either direction (RFC 7230 section 6.1).
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy is an http.Handler that forwards requests under Prefix to Upstream.
type Proxy struct {
	prefix   string
	upstream *url.URL
	client   *http.Client
	logger   *zap.Logger
}

// New builds a proxy that strips prefix from incoming paths and resends the
// request to upstream. The upstream URL carries scheme and host only; any
// path on it is prepended to the forwarded path.
func New(prefix, upstream string, logger *zap.Logger) (*Proxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", upstream, err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("upstream URL %q must be http or https", upstream)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{
		prefix:   strings.TrimSuffix(prefix, "/"),
		upstream: target,
		client: &http.Client{
			// Redirects belong to the client, not the proxy.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}, nil
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	outURL := *p.upstream
	outURL.Path = singleJoin(p.upstream.Path, strings.TrimPrefix(r.URL.Path, p.prefix))
	outURL.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), r.Body)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	copyHeaders(out.Header, r.Header)
	out.Header.Set("X-Forwarded-Host", r.Host)
	if r.ContentLength >= 0 {
		out.ContentLength = r.ContentLength
	}

	resp, err := p.client.Do(out)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	defer resp.Body.Close()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Debug("proxy response copy interrupted", zap.Error(err))
	}
}

func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Warn("proxy request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(map[string]string{"detail": "upstream unavailable"})
}

func copyHeaders(dst, src http.Header) {
	// Names nominated by a Connection header are hop-by-hop too.
	nominated := map[string]bool{}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				nominated[http.CanonicalHeaderKey(name)] = true
			}
		}
	}

	for k, vv := range src {
		if nominated[k] || isHopByHop(k) || k == "Host" || k == "Content-Length" {
			continue
		}
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

func singleJoin(a, b string) string {
	switch {
	case strings.HasSuffix(a, "/") && strings.HasPrefix(b, "/"):
		return a + b[1:]
	case !strings.HasSuffix(a, "/") && !strings.HasPrefix(b, "/"):
		return a + "/" + b
	}
	return a + b
}
