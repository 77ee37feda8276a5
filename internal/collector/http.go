package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ForexFeed/internal/model"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; ForexFeed/1.0)"
	maxBodyBytes = 16 << 20
)

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(timeout time.Duration, proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// base carries what every HTTP-backed fetcher shares.
type base struct {
	desc   model.SourceDescriptor
	apiKey string
	client *http.Client
}

func (b *base) Name() string                       { return b.desc.Name }
func (b *base) Descriptor() model.SourceDescriptor { return b.desc }

// get issues a GET and returns the body of a 2xx response.
func (b *base) get(ctx context.Context, endpoint string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", b.desc.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%s: status %d, body: %s", b.desc.Name, resp.StatusCode, string(body))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", b.desc.Name, err)
	}
	return body, nil
}
