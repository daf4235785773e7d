// Package dlp wraps the Power Platform data loss prevention policy APIs:
// tenant and environment scoped policies, connector classifications, and
// environment assignments.
package dlp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/poll"
)

// DefaultBaseURL is the Power Platform API host.
const DefaultBaseURL = "https://api.powerplatform.com"

// DefaultAPIVersion is the DLP policy surface version.
const DefaultAPIVersion = "2023-10-01-preview"

// Client calls the DLP policy endpoints.
type Client struct {
	http       *httpx.Client
	apiVersion string
}

// New builds a client. baseURL defaults to DefaultBaseURL when empty.
func New(baseURL string, token httpx.TokenFunc, opts ...httpx.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	all := append([]httpx.Option{httpx.WithToken(token)}, opts...)
	return &Client{
		http:       httpx.New(strings.TrimRight(baseURL, "/"), all...),
		apiVersion: DefaultAPIVersion,
	}
}

// SetAPIVersion overrides the api-version sent with every request.
func (c *Client) SetAPIVersion(v string) {
	if v != "" {
		c.apiVersion = v
	}
}

func (c *Client) params() url.Values {
	return url.Values{"api-version": []string{c.apiVersion}}
}

// ConnectorRef identifies a connector inside a classification group.
type ConnectorRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Tier        string `json:"tier,omitempty"`
	Category    string `json:"category,omitempty"`
	IsCustom    *bool  `json:"isCustom,omitempty"`
}

// ConnectorGroup is a classification bucket applied to a set of connectors.
type ConnectorGroup struct {
	Classification string         `json:"classification"`
	Connectors     []ConnectorRef `json:"connectors"`
}

// Assignment links a policy to an environment.
type Assignment struct {
	AssignmentID    string `json:"assignmentId,omitempty"`
	EnvironmentID   string `json:"environmentId"`
	EnvironmentName string `json:"environmentName,omitempty"`
	AssignmentType  string `json:"assignmentType"`
	RegionGroup     string `json:"regionGroup,omitempty"`
	AppliedOn       string `json:"appliedOn,omitempty"`
}

// Policy is a tenant or environment scoped DLP policy definition.
type Policy struct {
	ID              string           `json:"id,omitempty"`
	DisplayName     string           `json:"displayName"`
	Description     string           `json:"description,omitempty"`
	State           string           `json:"state,omitempty"`
	PolicyScope     string           `json:"policyScope,omitempty"`
	CreatedTime     string           `json:"createdTime,omitempty"`
	ModifiedTime    string           `json:"modifiedTime,omitempty"`
	ConnectorGroups []ConnectorGroup `json:"connectorGroups,omitempty"`
	Assignments     []Assignment     `json:"assignments,omitempty"`
	ETag            string           `json:"etag,omitempty"`
}

// PolicyPage is one page of policies.
type PolicyPage struct {
	Policies []Policy `json:"value"`
	NextLink string   `json:"nextLink"`
}

// OperationHandle is returned by the asynchronous policy operations.
type OperationHandle struct {
	OperationLocation string
	Metadata          map[string]any
}

// ID extracts the trailing identifier from the operation URL, falling back
// to the operationId in the accepted payload.
func (h OperationHandle) ID() string {
	if h.OperationLocation != "" {
		parts := strings.Split(strings.TrimRight(h.OperationLocation, "/"), "/")
		return parts[len(parts)-1]
	}
	if id, ok := h.Metadata["operationId"].(string); ok {
		return id
	}
	return ""
}

func (c *Client) handleFrom(resp *httpx.Response) *OperationHandle {
	h := &OperationHandle{OperationLocation: resp.Header.Get("Operation-Location")}
	if len(resp.Body) > 0 {
		_ = resp.JSON(&h.Metadata)
	}
	return h
}

// ListPolicies returns one page of policies. top and skip are passed through
// when positive.
func (c *Client) ListPolicies(ctx context.Context, top, skip int) (*PolicyPage, error) {
	params := c.params()
	if top > 0 {
		params.Set("$top", strconv.Itoa(top))
	}
	if skip > 0 {
		params.Set("$skip", strconv.Itoa(skip))
	}
	resp, err := c.http.Get(ctx, "policy/dataLossPreventionPolicies", params)
	if err != nil {
		return nil, fmt.Errorf("listing policies: %w", err)
	}
	var page PolicyPage
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetPolicy(ctx context.Context, policyID string) (*Policy, error) {
	resp, err := c.http.Get(ctx, "policy/dataLossPreventionPolicies/"+policyID, c.params())
	if err != nil {
		return nil, fmt.Errorf("getting policy %s: %w", policyID, err)
	}
	var p Policy
	if err := resp.JSON(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreatePolicy(ctx context.Context, payload map[string]any) (*OperationHandle, error) {
	resp, err := c.http.Post(ctx, "policy/dataLossPreventionPolicies", c.params(), payload)
	if err != nil {
		return nil, fmt.Errorf("creating policy: %w", err)
	}
	return c.handleFrom(resp), nil
}

func (c *Client) UpdatePolicy(ctx context.Context, policyID string, payload map[string]any) (*OperationHandle, error) {
	resp, err := c.http.Patch(ctx, "policy/dataLossPreventionPolicies/"+policyID, c.params(), payload)
	if err != nil {
		return nil, fmt.Errorf("updating policy %s: %w", policyID, err)
	}
	return c.handleFrom(resp), nil
}

func (c *Client) DeletePolicy(ctx context.Context, policyID string) (*OperationHandle, error) {
	resp, err := c.http.Delete(ctx, "policy/dataLossPreventionPolicies/"+policyID, c.params())
	if err != nil {
		return nil, fmt.Errorf("deleting policy %s: %w", policyID, err)
	}
	return c.handleFrom(resp), nil
}

// ListConnectorGroups returns the classification buckets of a policy.
func (c *Client) ListConnectorGroups(ctx context.Context, policyID string) ([]ConnectorGroup, error) {
	resp, err := c.http.Get(ctx, "policy/dataLossPreventionPolicies/"+policyID+"/connectors", c.params())
	if err != nil {
		return nil, fmt.Errorf("listing connector groups for %s: %w", policyID, err)
	}
	var page struct {
		Value []ConnectorGroup `json:"value"`
	}
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// UpdateConnectorGroups replaces the classification buckets of a policy.
func (c *Client) UpdateConnectorGroups(ctx context.Context, policyID string, groups []ConnectorGroup) (*OperationHandle, error) {
	body := map[string]any{"groups": groups}
	resp, err := c.http.Patch(ctx, "policy/dataLossPreventionPolicies/"+policyID+"/connectors", c.params(), body)
	if err != nil {
		return nil, fmt.Errorf("updating connector groups for %s: %w", policyID, err)
	}
	return c.handleFrom(resp), nil
}

func (c *Client) ListAssignments(ctx context.Context, policyID string) ([]Assignment, error) {
	resp, err := c.http.Get(ctx, "policy/dataLossPreventionPolicies/"+policyID+"/assignments", c.params())
	if err != nil {
		return nil, fmt.Errorf("listing assignments for %s: %w", policyID, err)
	}
	var page struct {
		Value []Assignment `json:"value"`
	}
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

// AssignPolicy links a policy to one or more environments.
func (c *Client) AssignPolicy(ctx context.Context, policyID string, assignments []Assignment) (*OperationHandle, error) {
	body := map[string]any{"assignments": assignments}
	resp, err := c.http.Post(ctx, "policy/dataLossPreventionPolicies/"+policyID+"/assignments", c.params(), body)
	if err != nil {
		return nil, fmt.Errorf("assigning policy %s: %w", policyID, err)
	}
	return c.handleFrom(resp), nil
}

func (c *Client) RemoveAssignment(ctx context.Context, policyID, assignmentID string) (*OperationHandle, error) {
	resp, err := c.http.Delete(ctx, "policy/dataLossPreventionPolicies/"+policyID+"/assignments/"+assignmentID, c.params())
	if err != nil {
		return nil, fmt.Errorf("removing assignment %s from %s: %w", assignmentID, policyID, err)
	}
	return c.handleFrom(resp), nil
}

// WaitForOperation polls an Operation-Location URL until a terminal state.
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
