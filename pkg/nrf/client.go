package nrf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/nfmesh/scp/internal/logger"
)

// Client is the NRF operation set the routing core depends on.
// The core depends on this interface, not the HTTP transport, so tests
// can substitute fakes.
type Client interface {
	// Register asserts (PUT) an NF profile with the NRF. Both 200 and
	// 201 are accepted; the NRF's view of the profile is returned.
	Register(ctx context.Context, profile *Profile) (*Profile, error)

	// Discover queries the NRF for all instances of the given NF type.
	Discover(ctx context.Context, targetNFType string) ([]Profile, error)

	// Deregister removes an NF instance registration.
	Deregister(ctx context.Context, instanceID string) error
}

// HTTPClient talks to a real NRF over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// defaultTimeout bounds every NRF round trip.
const defaultTimeout = 30 * time.Second

// NewHTTPClient creates an NRF client for the given base URI.
// A nil http.Client gets a default with a 30 s timeout.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Register implements Client.
func (c *HTTPClient) Register(ctx context.Context, profile *Profile) (*Profile, error) {
	endpoint := fmt.Sprintf("%s/nnrf-nfm/v1/nf-instances/%s", c.baseURL, profile.NFInstanceID)

	body, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NF profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send registration request to NRF: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		var registered Profile
		if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
			return nil, fmt.Errorf("failed to parse NRF registration response: %w", err)
		}
		logger.Info("registered NF instance with NRF",
			logger.KeyInstanceID, profile.NFInstanceID,
		)
		return &registered, nil
	default:
		return nil, fmt.Errorf("NRF registration failed with status %d: %s",
			resp.StatusCode, readErrorBody(resp.Body))
	}
}

// Discover implements Client.
func (c *HTTPClient) Discover(ctx context.Context, targetNFType string) ([]Profile, error) {
	endpoint := fmt.Sprintf("%s/nnrf-disc/v1/nf-instances?%s", c.baseURL,
		url.Values{"target-nf-type": []string{targetNFType}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send discovery request to NRF: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NRF discovery failed with status %d: %s",
			resp.StatusCode, readErrorBody(resp.Body))
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse NRF discovery response: %w", err)
	}

	logger.Debug("NRF discovery complete",
		logger.KeyNFType, targetNFType,
		logger.KeyInstances, len(result.NFInstances),
	)
	return result.NFInstances, nil
}

// Deregister implements Client.
func (c *HTTPClient) Deregister(ctx context.Context, instanceID string) error {
	endpoint := fmt.Sprintf("%s/nnrf-nfm/v1/nf-instances/%s", c.baseURL, instanceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create deregistration request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send deregistration request to NRF: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		logger.Info("deregistered NF instance from NRF", logger.KeyInstanceID, instanceID)
		return nil
	default:
		return fmt.Errorf("NRF deregistration failed with status %d: %s",
			resp.StatusCode, readErrorBody(resp.Body))
	}
}

// readErrorBody drains a bounded amount of an error response for diagnostics.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return string(body)
}
