// Package connectors manages custom connectors (APIs) through the Power
// Apps endpoints, including local validation of OpenAPI documents before
// they are pushed.
package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pacx-labs/pacx/internal/httpx"
)

// DefaultBaseURL is the Power Platform API host.
const DefaultBaseURL = "https://api.powerplatform.com"

const apiVersion = "2022-03-01-preview"

// BrandColor is the default icon color applied to connectors created from
// an OpenAPI document.
const BrandColor = "#0078D4"

// Client manages custom connectors in one environment host.
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

func params(extra url.Values) url.Values {
	v := url.Values{"api-version": []string{apiVersion}}
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

// APIPage is one page of connector listings.
type APIPage struct {
	Value    []map[string]any `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

// ListAPIs lists custom connectors in an environment.
func (c *Client) ListAPIs(ctx context.Context, environmentID string, top int, skipToken string) (*APIPage, error) {
	p := params(nil)
	if top > 0 {
		p.Set("$top", strconv.Itoa(top))
	}
	if skipToken != "" {
		p.Set("$skiptoken", skipToken)
	}
	resp, err := c.http.Get(ctx, "powerapps/environments/"+environmentID+"/apis", p)
	if err != nil {
		return nil, fmt.Errorf("listing connectors: %w", err)
	}
	var page APIPage
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAPI fetches one connector, including its definition.
func (c *Client) GetAPI(ctx context.Context, environmentID, apiName string) (map[string]any, error) {
	resp, err := c.http.Get(ctx, "powerapps/environments/"+environmentID+"/apis/"+apiName, params(nil))
	if err != nil {
		return nil, fmt.Errorf("getting connector %s: %w", apiName, err)
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutAPI creates or replaces a connector with a full request body.
func (c *Client) PutAPI(ctx context.Context, environmentID, apiName string, body map[string]any) (map[string]any, error) {
	resp, err := c.http.Put(ctx, "powerapps/environments/"+environmentID+"/apis/"+apiName, params(nil), body)
	if err != nil {
		return nil, fmt.Errorf("putting connector %s: %w", apiName, err)
	}
	var out map[string]any
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteAPI removes a connector from the environment.
func (c *Client) DeleteAPI(ctx context.Context, environmentID, apiName string) error {
	if _, err := c.http.Delete(ctx, "powerapps/environments/"+environmentID+"/apis/"+apiName, params(nil)); err != nil {
		return fmt.Errorf("deleting connector %s: %w", apiName, err)
	}
	return nil
}

// Envelope wraps an OpenAPI document in the request body the connector
// service expects.
func Envelope(apiName, displayName, openapiText string) map[string]any {
	if displayName == "" {
		displayName = apiName
	}
	return map[string]any{
		"name": apiName,
		"properties": map[string]any{
			"displayName":    displayName,
			"iconBrandColor": BrandColor,
			"apiDefinition": map[string]any{
				"format": "swagger",
				"value":  openapiText,
			},
		},
	}
}

// PutFromOpenAPI creates or updates a connector from raw OpenAPI text.
func (c *Client) PutFromOpenAPI(ctx context.Context, environmentID, apiName, openapiText, displayName string) (map[string]any, error) {
	return c.PutAPI(ctx, environmentID, apiName, Envelope(apiName, displayName, openapiText))
}
