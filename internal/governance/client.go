// Package governance wraps the Power Platform governance APIs: cross-tenant
// connection reports and rule-based policies with their environment
// assignments.
package governance

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

// Client calls the governance endpoints.
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

// Operation carries the Operation-Location of an accepted governance request
// plus the initial payload.
type Operation struct {
	OperationLocation string
	Metadata          map[string]any
}

// ResourceID returns the id stamped in the accepted payload, falling back to
// the trailing segment of the operation URL.
func (o Operation) ResourceID() string {
	if id, ok := o.Metadata["id"].(string); ok && id != "" {
		return id
	}
	if o.OperationLocation == "" {
		return ""
	}
	parts := strings.Split(strings.TrimRight(o.OperationLocation, "/"), "/")
	return parts[len(parts)-1]
}

func (c *Client) postOperation(ctx context.Context, path string, body any) (*Operation, error) {
	resp, err := c.http.Post(ctx, path, params(), body)
	if err != nil {
		return nil, err
	}
	op := &Operation{OperationLocation: resp.Header.Get("Operation-Location")}
	if len(resp.Body) > 0 {
		_ = resp.JSON(&op.Metadata)
	}
	return op, nil
}

func (c *Client) getJSON(ctx context.Context, path string, extra url.Values) (map[string]any, error) {
	p := params()
	for k, vals := range extra {
		p[k] = vals
	}
	resp, err := c.http.Get(ctx, path, p)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateCrossTenantReport submits a cross-tenant connection report request.
func (c *Client) CreateCrossTenantReport(ctx context.Context, payload map[string]any) (*Operation, error) {
	op, err := c.postOperation(ctx, "governance/crossTenantConnectionReports", payload)
	if err != nil {
		return nil, fmt.Errorf("creating cross-tenant report: %w", err)
	}
	return op, nil
}

func (c *Client) ListCrossTenantReports(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "governance/crossTenantConnectionReports", nil)
}

func (c *Client) GetCrossTenantReport(ctx context.Context, reportID string) (map[string]any, error) {
	return c.getJSON(ctx, "governance/crossTenantConnectionReports/"+reportID, nil)
}

// reportPending lists the states a cross-tenant report moves through before
// its terminal state.
var reportPending = map[string]struct{}{
	"accepted":    {},
	"running":     {},
	"notstarted":  {},
	"not started": {},
	"inprogress":  {},
	"in progress": {},
	"queued":      {},
	"pending":     {},
}

// WaitForReport polls a cross-tenant report until it leaves the pending
// states.
func (c *Client) WaitForReport(ctx context.Context, reportID string, opts poll.Options) (poll.Status, error) {
	fetch := func(ctx context.Context) (poll.Status, error) {
		report, err := c.GetCrossTenantReport(ctx, reportID)
		if err != nil {
			return nil, err
		}
		return poll.Status(report), nil
	}
	done := func(s poll.Status) bool {
		state := strings.ToLower(poll.StateOf(s))
		if state == "" {
			return false
		}
		_, pending := reportPending[state]
		return !pending
	}
	return poll.Until(ctx, fetch, done, opts)
}

// CreateRulePolicy creates a rule-based policy.
func (c *Client) CreateRulePolicy(ctx context.Context, payload map[string]any) (map[string]any, error) {
	resp, err := c.http.Post(ctx, "governance/ruleBasedPolicies", params(), payload)
	if err != nil {
		return nil, fmt.Errorf("creating rule-based policy: %w", err)
	}
	var out map[string]any
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Client) ListRulePolicies(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "governance/ruleBasedPolicies", nil)
}

func (c *Client) GetRulePolicy(ctx context.Context, policyID string) (map[string]any, error) {
	return c.getJSON(ctx, "governance/ruleBasedPolicies/"+policyID, nil)
}

func (c *Client) UpdateRulePolicy(ctx context.Context, policyID string, payload map[string]any) (map[string]any, error) {
	resp, err := c.http.Patch(ctx, "governance/ruleBasedPolicies/"+policyID, params(), payload)
	if err != nil {
		return nil, fmt.Errorf("updating rule-based policy %s: %w", policyID, err)
	}
	var out map[string]any
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AssignToEnvironmentGroup attaches a rule-based policy to an environment
// group.
func (c *Client) AssignToEnvironmentGroup(ctx context.Context, policyID, groupID string) (*Operation, error) {
	op, err := c.postOperation(ctx, "governance/ruleBasedPolicies/"+policyID+"/assignments/environmentGroups/"+groupID, nil)
	if err != nil {
		return nil, fmt.Errorf("assigning policy %s to group %s: %w", policyID, groupID, err)
	}
	return op, nil
}

// AssignToEnvironment attaches a rule-based policy to a single environment.
func (c *Client) AssignToEnvironment(ctx context.Context, policyID, environmentID string) (*Operation, error) {
	op, err := c.postOperation(ctx, "governance/ruleBasedPolicies/"+policyID+"/assignments/environments/"+environmentID, nil)
	if err != nil {
		return nil, fmt.Errorf("assigning policy %s to environment %s: %w", policyID, environmentID, err)
	}
	return op, nil
}

func (c *Client) ListAssignmentsByPolicy(ctx context.Context, policyID string) (map[string]any, error) {
	return c.getJSON(ctx, "governance/ruleBasedPolicies/"+policyID+"/assignments", nil)
}

// ListAssignments filters rule assignments by environment, environment
// group, or policy. Empty filters are omitted.
func (c *Client) ListAssignments(ctx context.Context, environmentID, groupID, policyID string) (map[string]any, error) {
	extra := url.Values{}
	if environmentID != "" {
		extra.Set("environmentId", environmentID)
	}
	if groupID != "" {
		extra.Set("environmentGroupId", groupID)
	}
	if policyID != "" {
		extra.Set("policyId", policyID)
	}
	return c.getJSON(ctx, "governance/ruleBasedPolicies/assignments", extra)
}

func (c *Client) ListAssignmentsByEnvironmentGroup(ctx context.Context, groupID string) (map[string]any, error) {
	return c.getJSON(ctx, "governance/ruleBasedPolicies/assignments/byEnvironmentGroup/"+groupID, nil)
}

func (c *Client) ListAssignmentsByEnvironment(ctx context.Context, environmentID string) (map[string]any, error) {
	return c.getJSON(ctx, "governance/ruleBasedPolicies/assignments/byEnvironment/"+environmentID, nil)
}
