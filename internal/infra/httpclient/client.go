package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/jobhunter/server/internal/infra/config"
)

// NewProviderClient builds the pooled client for LLM provider calls.
//
// generateContent is not streamed: response headers only arrive once the model has finished,
// so the header timeout follows ai.request_timeout instead of a network-sized bound. The
// whole exchange is still capped by http_client.response_timeout.
func NewProviderClient(cfg config.HTTPClientConfig, ai config.AIConfig, userAgent string) *http.Client {
	headerTimeout := ai.RequestTimeout
	if headerTimeout <= 0 || (cfg.ResponseTimeout > 0 && headerTimeout > cfg.ResponseTimeout) {
		headerTimeout = cfg.ResponseTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}

	var rt http.RoundTripper = transport
	if userAgent != "" {
		rt = &userAgentTransport{next: transport, userAgent: userAgent}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.ResponseTimeout,
	}
}

// userAgentTransport tags outgoing requests that do not set their own User-Agent.
type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(r)
}
