package internal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultBaseURL is the public Cytrus CDN
const DefaultBaseURL = "https://cytrus.cdn.ankama.com"

// CdnClient addresses the Cytrus CDN. Bundles and loose files are both
// sharded by the first two hex characters of their hash.
type CdnClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

// NewCdnClient creates a CdnClient. A nil client uses http.DefaultClient and
// an empty base uses DefaultBaseURL.
func NewCdnClient(client *http.Client, baseURL string) *CdnClient {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &CdnClient{HTTPClient: client, BaseURL: strings.TrimRight(baseURL, "/")}
}

// DescriptorURL returns the address of the version descriptor
func (c *CdnClient) DescriptorURL() string {
	return c.BaseURL + "/cytrus.json"
}

// ManifestURL returns the address of a release manifest
func (c *CdnClient) ManifestURL(game, release, platform, version string) string {
	return fmt.Sprintf("%s/%s/releases/%s/%s/%s.manifest", c.BaseURL, game, release, platform, version)
}

// BundleURL returns the address of a bundle blob
func (c *CdnClient) BundleURL(game, hash string) (string, error) {
	return c.shardedURL(game, "bundles", hash)
}

// HashURL returns the address of a loose file
func (c *CdnClient) HashURL(game, hash string) (string, error) {
	return c.shardedURL(game, "hashes", hash)
}

func (c *CdnClient) shardedURL(game, kind, hash string) (string, error) {
	if len(hash) < 2 {
		return "", ErrTransport.WithMessage("hash %q is too short to be addressed", hash)
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", c.BaseURL, game, kind, hash[:2], hash), nil
}

// Get issues a GET request and returns the response body. Any non-2xx status
// is reported as a transport error. The caller closes the body.
func (c *CdnClient) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrTransport.WithMessage("failed to create request").WithCause(err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, ErrTransport.WithMessage("HTTP request failed").WithDetail("url", url).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, ErrTransport.WithMessage("HTTP error: %s", resp.Status).WithDetail("url", url)
	}

	return resp.Body, nil
}

// GetBytes fetches url fully into memory. Only used for small documents.
func (c *CdnClient) GetBytes(ctx context.Context, url string) ([]byte, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, ErrTransport.WithMessage("failed to read response body").WithDetail("url", url).WithCause(err)
	}
	return data, nil
}
