// Package tenant wraps the Power Platform tenant settings surface:
// settings snapshot and patch, feature controls, and access requests.
package tenant

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pacx-labs/pacx/internal/httpx"
)

// DefaultBaseURL is the Power Platform API host.
const DefaultBaseURL = "https://api.powerplatform.com"

// The tenant settings surface runs ahead of the other admin endpoints.
const apiVersion = "2024-03-01-preview"

// Client calls the tenantsettings endpoints.
type Client struct {
	http *httpx.Client
}

// New builds a client. baseURL defaults to DefaultBaseURL when empty.
func New(baseURL string, token httpx.TokenFunc, opts ...httpx.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	all := append([]httpx.Option{httpx.WithToken(token)}, opts...)
	return &Client{http: httpx.New(strings.TrimRight(baseURL, "/"), all...)}
}

func params() url.Values {
	return url.Values{"api-version": []string{apiVersion}}
}

// OperationResult is the outcome of a tenant mutation. A 202 status means
// the change was accepted for asynchronous processing.
type OperationResult struct {
	Resource          map[string]any
	StatusCode        int
	OperationLocation string
}

// Accepted reports whether the server queued the change asynchronously.
func (r OperationResult) Accepted() bool {
	return r.StatusCode == 202
}

// GetSettings retrieves the tenant configuration snapshot.
func (c *Client) GetSettings(ctx context.Context) (map[string]any, error) {
	resp, err := c.http.Get(ctx, "tenantsettings", params())
	if err != nil {
		return nil, fmt.Errorf("getting tenant settings: %w", err)
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSettings applies a partial update. preferAsync asks the service to
// respond 202 with an Operation-Location instead of blocking.
func (c *Client) UpdateSettings(ctx context.Context, patch map[string]any, preferAsync bool) (*OperationResult, error) {
	req := httpx.Request{
		Method: "PATCH",
		Path:   "tenantsettings",
		Params: params(),
		JSON:   patch,
	}
	if preferAsync {
		req.Headers = map[string]string{"Prefer": "respond-async"}
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("updating tenant settings: %w", err)
	}
	return operationResult(resp), nil
}

// RequestSettingsAccess submits an access request for tenant settings.
func (c *Client) RequestSettingsAccess(ctx context.Context, request map[string]any) error {
	if _, err := c.http.Post(ctx, "tenantsettings/requestAccess", params(), request); err != nil {
		return fmt.Errorf("requesting tenant settings access: %w", err)
	}
	return nil
}

// ListFeatureControls lists feature flights and their toggle states.
func (c *Client) ListFeatureControls(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.http.Get(ctx, "tenantsettings/featureControl", params())
	if err != nil {
		return nil, fmt.Errorf("listing feature controls: %w", err)
	}
	var page struct {
		Value []map[string]any `json:"value"`
	}
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// GetFeatureControl retrieves one feature control.
func (c *Client) GetFeatureControl(ctx context.Context, featureName string) (map[string]any, error) {
	resp, err := c.http.Get(ctx, "tenantsettings/featureControl/"+featureName, params())
	if err != nil {
		return nil, fmt.Errorf("getting feature control %s: %w", featureName, err)
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateFeatureControl patches the toggle state of a feature flight.
func (c *Client) UpdateFeatureControl(ctx context.Context, featureName string, patch map[string]any, preferAsync bool) (*OperationResult, error) {
	req := httpx.Request{
		Method: "PATCH",
		Path:   "tenantsettings/featureControl/" + featureName,
		Params: params(),
		JSON:   patch,
	}
	if preferAsync {
		req.Headers = map[string]string{"Prefer": "respond-async"}
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("updating feature control %s: %w", featureName, err)
	}
	return operationResult(resp), nil
}

// RequestFeatureAccess requests permission to change a feature control.
func (c *Client) RequestFeatureAccess(ctx context.Context, featureName string, request map[string]any) error {
	path := "tenantsettings/featureControl/" + featureName + "/requestAccess"
	if _, err := c.http.Post(ctx, path, params(), request); err != nil {
		return fmt.Errorf("requesting access to feature %s: %w", featureName, err)
	}
	return nil
}

func operationResult(resp *httpx.Response) *OperationResult {
	out := &OperationResult{
		StatusCode:        resp.StatusCode,
		OperationLocation: resp.Header.Get("Operation-Location"),
	}
	if len(resp.Body) > 0 {
		_ = resp.JSON(&out.Resource)
	}
	return out
}
