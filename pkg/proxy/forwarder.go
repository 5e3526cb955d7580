package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nfmesh/scp/pkg/bufpool"
	"github.com/nfmesh/scp/pkg/nrf"
)

// hopByHopHeaders must not be forwarded across a proxy hop, in either
// direction (RFC 9110 §7.6.1). Keys are canonical MIME header form so
// lookups are case-insensitive.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// UpstreamResponse is a fully buffered upstream reply. Buffering before
// relaying means an upstream failure mid-body can never produce a torn
// downstream response.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DefaultUpstreamTimeout bounds one upstream attempt.
const DefaultUpstreamTimeout = 30 * time.Second

// Forwarder issues the upstream HTTP request for one attempt: URL
// composition, hop-by-hop filtering, body relay, and response
// buffering.
type Forwarder struct {
	client *http.Client
}

// NewForwarder creates a Forwarder. A nil client gets the default with
// a 30 s request timeout.
func NewForwarder(client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: DefaultUpstreamTimeout}
	}
	return &Forwarder{client: client}
}

// BuildUpstreamURL composes the upstream URL for a producer profile:
// http://host[path][?query], host being the FQDN if present, else the
// first IPv4 address. TLS to upstream is out of scope, so the scheme is
// fixed.
func BuildUpstreamURL(profile *nrf.Profile, path, rawQuery string) (string, error) {
	host, err := profile.Host()
	if err != nil {
		return "", NewInternal("producer profile is not routable", err)
	}
	if rawQuery != "" {
		return fmt.Sprintf("http://%s%s?%s", host, path, rawQuery), nil
	}
	return fmt.Sprintf("http://%s%s", host, path), nil
}

// Forward performs one upstream attempt. The request body is passed as
// a byte slice so the caller can replay it across attempts. Transport
// failures and 5xx replies come back as *attemptError for the caller to
// classify; a profile that is not routable or a request that cannot be
// built yields an *Error (500).
func (f *Forwarder) Forward(ctx context.Context, profile *nrf.Profile, method, path, rawQuery string, header http.Header, body []byte) (*UpstreamResponse, error) {
	upstreamURL, err := BuildUpstreamURL(profile, path, rawQuery)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, upstreamURL, bodyReader)
	if err != nil {
		return nil, NewInternal("failed to build upstream request", err)
	}
	copyFilteredHeaders(req.Header, header)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &attemptError{Transport: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := bufpool.ReadAll(resp.Body, resp.ContentLength)
	if err != nil {
		return nil, &attemptError{Transport: err}
	}

	upstream := &UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     make(http.Header, len(resp.Header)),
		Body:       respBody,
	}
	copyFilteredHeaders(upstream.Header, resp.Header)

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &attemptError{Response: upstream}
	}

	return upstream, nil
}

// copyFilteredHeaders copies all headers except hop-by-hop ones.
func copyFilteredHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}
