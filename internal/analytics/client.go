// Package analytics wraps the advisor recommendations API: scenarios,
// actions, affected resources, and recommendation lifecycle.
package analytics

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/odata"
)

// DefaultBaseURL is the Power Platform API host.
const DefaultBaseURL = "https://api.powerplatform.com"

const apiVersion = "2022-03-01-preview"

// Client calls the advisor recommendation endpoints.
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

func (c *Client) getList(ctx context.Context, path string) ([]map[string]any, error) {
	resp, err := c.http.Get(ctx, path, params())
	if err != nil {
		return nil, err
	}
	var page struct {
		Value []map[string]any `json:"value"`
	}
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// ListScenarios lists advisor scenarios available to the tenant.
func (c *Client) ListScenarios(ctx context.Context) ([]map[string]any, error) {
	out, err := c.getList(ctx, "analytics/advisorRecommendations/scenarios")
	if err != nil {
		return nil, fmt.Errorf("listing advisor scenarios: %w", err)
	}
	return out, nil
}

// ListActions lists the actions available for a scenario.
func (c *Client) ListActions(ctx context.Context, scenario string) ([]map[string]any, error) {
	out, err := c.getList(ctx, "analytics/advisorRecommendations/"+scenario+"/actions")
	if err != nil {
		return nil, fmt.Errorf("listing actions for %s: %w", scenario, err)
	}
	return out, nil
}

// ResourcePage is one page of resources a recommendation applies to.
type ResourcePage struct {
	Resources []map[string]any
	NextLink  string
	SkipToken string
}

// ListResources pages through resources affected by a scenario.
func (c *Client) ListResources(ctx context.Context, scenario string, top int, skipToken string) (*ResourcePage, error) {
	p := params()
	if top > 0 {
		p.Set("$top", strconv.Itoa(top))
	}
	if skipToken != "" {
		p.Set("$skiptoken", skipToken)
	}
	resp, err := c.http.Get(ctx, "analytics/advisorRecommendations/"+scenario+"/resources", p)
	if err != nil {
		return nil, fmt.Errorf("listing resources for %s: %w", scenario, err)
	}
	var payload struct {
		Value    []map[string]any `json:"value"`
		NextLink string           `json:"@odata.nextLink"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, err
	}
	return &ResourcePage{
		Resources: payload.Value,
		NextLink:  payload.NextLink,
		SkipToken: odata.SkipTokenFromLink(payload.NextLink),
	}, nil
}

// ListRecommendations lists recommendations for a scenario.
func (c *Client) ListRecommendations(ctx context.Context, scenario string) ([]map[string]any, error) {
	out, err := c.getList(ctx, "analytics/advisorRecommendations/"+scenario+"/recommendations")
	if err != nil {
		return nil, fmt.Errorf("listing recommendations for %s: %w", scenario, err)
	}
	return out, nil
}

func (c *Client) GetRecommendation(ctx context.Context, scenario, recommendationID string) (map[string]any, error) {
	path := "analytics/advisorRecommendations/" + scenario + "/recommendations/" + recommendationID
	resp, err := c.http.Get(ctx, path, params())
	if err != nil {
		return nil, fmt.Errorf("getting recommendation %s: %w", recommendationID, err)
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) recommendationAction(ctx context.Context, scenario, recommendationID, verb string, payload map[string]any) (map[string]any, error) {
	path := "analytics/advisorRecommendations/" + scenario + "/recommendations/" + recommendationID + ":" + verb
	resp, err := c.http.Post(ctx, path, params(), payload)
	if err != nil {
		return nil, fmt.Errorf("%s recommendation %s: %w", verb, recommendationID, err)
	}
	var out map[string]any
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AcknowledgeRecommendation marks a recommendation as seen.
func (c *Client) AcknowledgeRecommendation(ctx context.Context, scenario, recommendationID string, payload map[string]any) (map[string]any, error) {
	return c.recommendationAction(ctx, scenario, recommendationID, "acknowledge", payload)
}

// DismissRecommendation removes a recommendation from the advisor feed.
func (c *Client) DismissRecommendation(ctx context.Context, scenario, recommendationID string, payload map[string]any) (map[string]any, error) {
	return c.recommendationAction(ctx, scenario, recommendationID, "dismiss", payload)
}
