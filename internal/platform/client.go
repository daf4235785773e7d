// Package platform wraps the Power Platform admin and product APIs:
// environment lifecycle, lifecycle operations, Power Apps, and cloud flows.
package platform

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/odata"
	"github.com/pacx-labs/pacx/internal/poll"
)

// DefaultBaseURL is the Power Platform API host.
const DefaultBaseURL = "https://api.powerplatform.com"

// DefaultAPIVersion applies to every admin call unless overridden.
const DefaultAPIVersion = "2022-03-01-preview"

// Client calls the Power Platform APIs with a fixed api-version.
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

func (c *Client) params(extra url.Values) url.Values {
	v := url.Values{"api-version": []string{c.apiVersion}}
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

// OperationHandle is returned by long-running operations: the URL to poll
// and whatever payload the initial request carried.
type OperationHandle struct {
	OperationLocation string
	Metadata          map[string]any
}

// ID extracts the trailing identifier from the operation URL.
func (h OperationHandle) ID() string {
	if h.OperationLocation == "" {
		return ""
	}
	parts := strings.Split(strings.TrimRight(h.OperationLocation, "/"), "/")
	return parts[len(parts)-1]
}

func (c *Client) postOperation(ctx context.Context, path string, body any) (*OperationHandle, error) {
	resp, err := c.http.Post(ctx, path, c.params(nil), body)
	if err != nil {
		return nil, err
	}
	h := &OperationHandle{OperationLocation: resp.Header.Get("Operation-Location")}
	if len(resp.Body) > 0 {
		_ = resp.JSON(&h.Metadata)
	}
	return h, nil
}

// Environment is a Power Platform environment summary.
type Environment struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"environmentType"`
	Location   string         `json:"location"`
	Properties map[string]any `json:"properties"`
}

func (c *Client) ListEnvironments(ctx context.Context) ([]Environment, error) {
	resp, err := c.http.Get(ctx, "environmentmanagement/environments", c.params(nil))
	if err != nil {
		return nil, fmt.Errorf("listing environments: %w", err)
	}
	var page struct {
		Value []Environment `json:"value"`
	}
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

func (c *Client) GetEnvironment(ctx context.Context, environmentID string) (*Environment, error) {
	resp, err := c.http.Get(ctx, "environmentmanagement/environments/"+environmentID, c.params(nil))
	if err != nil {
		return nil, fmt.Errorf("getting environment %s: %w", environmentID, err)
	}
	var env Environment
	if err := resp.JSON(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// DeleteEnvironment removes an environment. With validateOnly the service
// only checks whether the delete would succeed.
func (c *Client) DeleteEnvironment(ctx context.Context, environmentID string, validateOnly bool) error {
	params := c.params(nil)
	if validateOnly {
		params.Set("ValidateOnly", "true")
	}
	if _, err := c.http.Delete(ctx, "environmentmanagement/environments/"+environmentID, params); err != nil {
		return fmt.Errorf("deleting environment %s: %w", environmentID, err)
	}
	return nil
}

func (c *Client) CopyEnvironment(ctx context.Context, environmentID string, payload map[string]any) (*OperationHandle, error) {
	h, err := c.postOperation(ctx, "environmentmanagement/environments/"+environmentID+":copy", payload)
	if err != nil {
		return nil, fmt.Errorf("copying environment %s: %w", environmentID, err)
	}
	return h, nil
}

func (c *Client) ResetEnvironment(ctx context.Context, environmentID string, payload map[string]any) (*OperationHandle, error) {
	h, err := c.postOperation(ctx, "environmentmanagement/environments/"+environmentID+":reset", payload)
	if err != nil {
		return nil, fmt.Errorf("resetting environment %s: %w", environmentID, err)
	}
	return h, nil
}

func (c *Client) BackupEnvironment(ctx context.Context, environmentID string, payload map[string]any) (*OperationHandle, error) {
	h, err := c.postOperation(ctx, "environmentmanagement/environments/"+environmentID+":backup", payload)
	if err != nil {
		return nil, fmt.Errorf("backing up environment %s: %w", environmentID, err)
	}
	return h, nil
}

func (c *Client) RestoreEnvironment(ctx context.Context, environmentID string, payload map[string]any) (*OperationHandle, error) {
	h, err := c.postOperation(ctx, "environmentmanagement/environments/"+environmentID+":restore", payload)
	if err != nil {
		return nil, fmt.Errorf("restoring environment %s: %w", environmentID, err)
	}
	return h, nil
}

// ListEnvironmentOperations lists lifecycle operations for one environment.
func (c *Client) ListEnvironmentOperations(ctx context.Context, environmentID string) ([]map[string]any, error) {
	resp, err := c.http.Get(ctx, "environmentmanagement/environments/"+environmentID+"/operations", c.params(nil))
	if err != nil {
		return nil, fmt.Errorf("listing operations for %s: %w", environmentID, err)
	}
	var page struct {
		Value []map[string]any `json:"value"`
	}
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return page.Value, nil
}

func (c *Client) GetOperation(ctx context.Context, operationID string) (map[string]any, error) {
	resp, err := c.http.Get(ctx, "environmentmanagement/operations/"+operationID, c.params(nil))
	if err != nil {
		return nil, fmt.Errorf("getting operation %s: %w", operationID, err)
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// WaitForOperation polls an Operation-Location URL until a terminal state
// or an end timestamp appears.
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

// App is a Power App summary.
type App struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// ListApps returns every app in an environment, following pagination.
func (c *Client) ListApps(ctx context.Context, environmentID string, top int) ([]App, error) {
	params := c.params(nil)
	if top > 0 {
		params.Set("$top", strconv.Itoa(top))
	}
	var apps []App
	path := "powerapps/environments/" + environmentID + "/apps"
	for path != "" {
		resp, err := c.http.Get(ctx, path, params)
		if err != nil {
			return nil, fmt.Errorf("listing apps: %w", err)
		}
		var page struct {
			Value    []App  `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		apps = append(apps, page.Value...)
		if page.NextLink == "" {
			break
		}
		path, params, err = odata.SplitNextLink(page.NextLink)
		if err != nil {
			return nil, err
		}
	}
	return apps, nil
}

// AppVersionPage is one page of app version history.
type AppVersionPage struct {
	Versions          []map[string]any `json:"value"`
	NextLink          string           `json:"nextLink"`
	ContinuationToken string           `json:"continuationToken"`
}

func (c *Client) ListAppVersions(ctx context.Context, environmentID, appID string, top int, skipToken string) (*AppVersionPage, error) {
	params := c.params(nil)
	if top > 0 {
		params.Set("$top", strconv.Itoa(top))
	}
	if skipToken != "" {
		params.Set("$skiptoken", skipToken)
	}
	resp, err := c.http.Get(ctx, "powerapps/environments/"+environmentID+"/apps/"+appID+"/versions", params)
	if err != nil {
		return nil, fmt.Errorf("listing versions for app %s: %w", appID, err)
	}
	var page AppVersionPage
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RestoreApp reverts an app to a prior version.
func (c *Client) RestoreApp(ctx context.Context, environmentID, appID string, payload map[string]any) (*OperationHandle, error) {
	h, err := c.postOperation(ctx, "powerapps/environments/"+environmentID+"/apps/"+appID+":restore", payload)
	if err != nil {
		return nil, fmt.Errorf("restoring app %s: %w", appID, err)
	}
	return h, nil
}

// CloudFlow is a Power Automate cloud flow summary.
type CloudFlow struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

// ListCloudFlows returns every cloud flow in an environment, following
// pagination.
func (c *Client) ListCloudFlows(ctx context.Context, environmentID string) ([]CloudFlow, error) {
	var flows []CloudFlow
	params := c.params(nil)
	path := "powerautomate/environments/" + environmentID + "/cloudFlows"
	for path != "" {
		resp, err := c.http.Get(ctx, path, params)
		if err != nil {
			return nil, fmt.Errorf("listing cloud flows: %w", err)
		}
		var page struct {
			Value    []CloudFlow `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := resp.JSON(&page); err != nil {
			return nil, err
		}
		flows = append(flows, page.Value...)
		if page.NextLink == "" {
			break
		}
		path, params, err = odata.SplitNextLink(page.NextLink)
		if err != nil {
			return nil, err
		}
	}
	return flows, nil
}

func (c *Client) GetCloudFlow(ctx context.Context, environmentID, flowID string) (*CloudFlow, error) {
	resp, err := c.http.Get(ctx, "powerautomate/environments/"+environmentID+"/cloudFlows/"+flowID, c.params(nil))
	if err != nil {
		return nil, fmt.Errorf("getting flow %s: %w", flowID, err)
	}
	var flow CloudFlow
	if err := resp.JSON(&flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// SetCloudFlowState starts or stops a flow. state is "Started" or "Stopped".
func (c *Client) SetCloudFlowState(ctx context.Context, environmentID, flowID, state string) (*CloudFlow, error) {
	body := map[string]any{"properties": map[string]any{"state": state}}
	resp, err := c.http.Patch(ctx, "powerautomate/environments/"+environmentID+"/cloudFlows/"+flowID, c.params(nil), body)
	if err != nil {
		return nil, fmt.Errorf("updating flow %s state: %w", flowID, err)
	}
	var flow CloudFlow
	if len(resp.Body) > 0 {
		if err := resp.JSON(&flow); err != nil {
			return nil, err
		}
	}
	return &flow, nil
}

func (c *Client) DeleteCloudFlow(ctx context.Context, environmentID, flowID string) error {
	if _, err := c.http.Delete(ctx, "powerautomate/environments/"+environmentID+"/cloudFlows/"+flowID, c.params(nil)); err != nil {
		return fmt.Errorf("deleting flow %s: %w", flowID, err)
	}
	return nil
}

// FlowRun is one execution of a cloud flow.
type FlowRun struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// FlowRunPage is a page of flow runs with its continuation token.
type FlowRunPage struct {
	Runs              []FlowRun
	ContinuationToken string
	NextLink          string
}

// ListCloudFlowRuns lists runs of a flow, optionally filtered by status.
func (c *Client) ListCloudFlowRuns(ctx context.Context, environmentID, flowID, status string, top int, continuationToken string) (*FlowRunPage, error) {
	params := c.params(nil)
	if status != "" {
		params.Set("status", status)
	}
	if top > 0 {
		params.Set("$top", strconv.Itoa(top))
	}
	if continuationToken != "" {
		params.Set("$skiptoken", continuationToken)
	}
	resp, err := c.http.Get(ctx, "powerautomate/environments/"+environmentID+"/cloudFlows/"+flowID+"/runs", params)
	if err != nil {
		return nil, fmt.Errorf("listing runs for flow %s: %w", flowID, err)
	}
	var payload struct {
		Value             []FlowRun `json:"value"`
		ContinuationToken string    `json:"continuationToken"`
		NextLink          string    `json:"nextLink"`
	}
	if err := resp.JSON(&payload); err != nil {
		return nil, err
	}
	page := &FlowRunPage{
		Runs:              payload.Value,
		ContinuationToken: payload.ContinuationToken,
		NextLink:          payload.NextLink,
	}
	if tok := resp.Header.Get("x-ms-continuation-token"); tok != "" {
		page.ContinuationToken = tok
	}
	return page, nil
}

func (c *Client) CancelCloudFlowRun(ctx context.Context, environmentID, flowID, runName string) error {
	path := "powerautomate/environments/" + environmentID + "/cloudFlows/" + flowID + "/runs/" + runName + ":cancel"
	if _, err := c.http.Post(ctx, path, c.params(nil), nil); err != nil {
		return fmt.Errorf("canceling run %s: %w", runName, err)
	}
	return nil
}
