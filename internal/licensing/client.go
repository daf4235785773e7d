// Package licensing wraps the Power Platform licensing APIs: billing
// policies and their environment links, capacity, currency, and storage
// warnings.
package licensing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/poll"
)

// DefaultBaseURL is the Power Platform API host.
const DefaultBaseURL = "https://api.powerplatform.com"

const apiVersion = "2022-03-01-preview"

// Client calls the licensing endpoints.
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

// Operation tracks an asynchronous licensing request.
type Operation struct {
	OperationLocation string
	Metadata          map[string]any
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.http.Get(ctx, path, params())
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

func (c *Client) getList(ctx context.Context, path string) ([]map[string]any, error) {
	var page struct {
		Value []map[string]any `json:"value"`
	}
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// CreateBillingPolicy provisions a new billing policy.
func (c *Client) CreateBillingPolicy(ctx context.Context, payload map[string]any) (map[string]any, error) {
	resp, err := c.http.Post(ctx, "licensing/billingPolicies", params(), payload)
	if err != nil {
		return nil, fmt.Errorf("creating billing policy: %w", err)
	}
	var out map[string]any
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) ListBillingPolicies(ctx context.Context) ([]map[string]any, error) {
	out, err := c.getList(ctx, "licensing/billingPolicies")
	if err != nil {
		return nil, fmt.Errorf("listing billing policies: %w", err)
	}
	return out, nil
}

func (c *Client) GetBillingPolicy(ctx context.Context, policyID string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "licensing/billingPolicies/"+policyID, &out); err != nil {
		return nil, fmt.Errorf("getting billing policy %s: %w", policyID, err)
	}
	return out, nil
}

func (c *Client) UpdateBillingPolicy(ctx context.Context, policyID string, payload map[string]any) (map[string]any, error) {
	resp, err := c.http.Patch(ctx, "licensing/billingPolicies/"+policyID, params(), payload)
	if err != nil {
		return nil, fmt.Errorf("updating billing policy %s: %w", policyID, err)
	}
	var out map[string]any
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) DeleteBillingPolicy(ctx context.Context, policyID string) error {
	if _, err := c.http.Delete(ctx, "licensing/billingPolicies/"+policyID, params()); err != nil {
		return fmt.Errorf("deleting billing policy %s: %w", policyID, err)
	}
	return nil
}

// RefreshBillingPolicyProvisioning re-runs provisioning for a policy.
func (c *Client) RefreshBillingPolicyProvisioning(ctx context.Context, policyID string) (*Operation, error) {
	resp, err := c.http.Post(ctx, "licensing/billingPolicies/"+policyID+":refreshProvisioningStatus", params(), nil)
	if err != nil {
		return nil, fmt.Errorf("refreshing billing policy %s: %w", policyID, err)
	}
	op := &Operation{OperationLocation: resp.Header.Get("Operation-Location")}
	if len(resp.Body) > 0 {
		_ = resp.JSON(&op.Metadata)
	}
	return op, nil
}

// ListBillingPolicyEnvironments lists environments linked to a policy.
func (c *Client) ListBillingPolicyEnvironments(ctx context.Context, policyID string) ([]map[string]any, error) {
	out, err := c.getList(ctx, "licensing/billingPolicies/"+policyID+"/environments")
	if err != nil {
		return nil, fmt.Errorf("listing environments for policy %s: %w", policyID, err)
	}
	return out, nil
}

func (c *Client) AddBillingPolicyEnvironment(ctx context.Context, policyID, environmentID string) error {
	path := "licensing/billingPolicies/" + policyID + "/environments/" + environmentID
	if _, err := c.http.Post(ctx, path, params(), nil); err != nil {
		return fmt.Errorf("adding environment %s to policy %s: %w", environmentID, policyID, err)
	}
	return nil
}

func (c *Client) RemoveBillingPolicyEnvironment(ctx context.Context, policyID, environmentID string) error {
	path := "licensing/billingPolicies/" + policyID + "/environments/" + environmentID
	if _, err := c.http.Delete(ctx, path, params()); err != nil {
		return fmt.Errorf("removing environment %s from policy %s: %w", environmentID, policyID, err)
	}
	return nil
}

// GetEnvironmentBillingPolicy returns the policy currently applied to an
// environment.
func (c *Client) GetEnvironmentBillingPolicy(ctx context.Context, environmentID string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "licensing/environments/"+environmentID+"/billingPolicies/default", &out); err != nil {
		return nil, fmt.Errorf("getting billing policy for environment %s: %w", environmentID, err)
	}
	return out, nil
}

// GetTenantCapacityDetails reports tenant-wide capacity consumption.
func (c *Client) GetTenantCapacityDetails(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "licensing/tenantCapacityDetails", &out); err != nil {
		return nil, fmt.Errorf("getting tenant capacity details: %w", err)
	}
	return out, nil
}

func (c *Client) ListStorageWarnings(ctx context.Context) ([]map[string]any, error) {
	out, err := c.getList(ctx, "licensing/storageWarnings")
	if err != nil {
		return nil, fmt.Errorf("listing storage warnings: %w", err)
	}
	return out, nil
}

func (c *Client) GetStorageWarning(ctx context.Context, category string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "licensing/storageWarnings/"+category, &out); err != nil {
		return nil, fmt.Errorf("getting storage warning %s: %w", category, err)
	}
	return out, nil
}

// GetCurrencyAllocation returns currency allocated to an environment.
func (c *Client) GetCurrencyAllocation(ctx context.Context, environmentID string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "licensing/environments/"+environmentID+"/allocations", &out); err != nil {
		return nil, fmt.Errorf("getting allocations for %s: %w", environmentID, err)
	}
	return out, nil
}

// UpdateCurrencyAllocation patches currency allocated to an environment.
func (c *Client) UpdateCurrencyAllocation(ctx context.Context, environmentID string, payload map[string]any) (map[string]any, error) {
	resp, err := c.http.Patch(ctx, "licensing/environments/"+environmentID+"/allocations", params(), payload)
	if err != nil {
		return nil, fmt.Errorf("updating allocations for %s: %w", environmentID, err)
	}
	var out map[string]any
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) ListCurrencyReports(ctx context.Context) ([]map[string]any, error) {
	out, err := c.getList(ctx, "licensing/currencyReports")
	if err != nil {
		return nil, fmt.Errorf("listing currency reports: %w", err)
	}
	return out, nil
}

// WaitForOperation polls an Operation-Location URL until a terminal state
// appears.
func (c *Client) WaitForOperation(ctx context.Context, operationURL string, opts poll.Options) (poll.Status, error) {
	fetch := func(ctx context.Context, u string) (poll.Status, error) {
		resp, err := c.http.Get(ctx, u, nil)
		if err != nil {
			return nil, err
		}
		var s poll.Status
		if len(resp.Body) > 0 {
			if err := resp.JSON(&s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
	return poll.Monitor(ctx, fetch, operationURL, opts)
}
