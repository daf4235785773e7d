// Package users wraps the Power Platform user management APIs for admin
// role assignments.
package users

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

// Client calls the user management endpoints.
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

// AdminRoleAssignment describes one admin role held by a user.
type AdminRoleAssignment struct {
	ID               string `json:"id,omitempty"`
	UserID           string `json:"userId,omitempty"`
	RoleDefinitionID string `json:"roleDefinitionId,omitempty"`
	RoleDisplayName  string `json:"roleDisplayName,omitempty"`
	Scope            string `json:"scope,omitempty"`
	AssignedBy       string `json:"assignedBy,omitempty"`
	AssignedDateTime string `json:"assignedDateTime,omitempty"`
}

// AdminRolePage is the paged collection of a user's admin roles.
type AdminRolePage struct {
	Value    []AdminRoleAssignment `json:"value"`
	NextLink string                `json:"nextLink"`
}

// OperationHandle is returned by the asynchronous role operations.
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
	resp, err := c.http.Post(ctx, path, params(), body)
	if err != nil {
		return nil, err
	}
	h := &OperationHandle{OperationLocation: resp.Header.Get("Operation-Location")}
	if len(resp.Body) > 0 {
		_ = resp.JSON(&h.Metadata)
	}
	return h, nil
}

// ApplyAdminRole grants the default admin role to a user.
func (c *Client) ApplyAdminRole(ctx context.Context, userID string) (*OperationHandle, error) {
	h, err := c.postOperation(ctx, "usermanagement/users/"+userID+":applyAdminRole", nil)
	if err != nil {
		return nil, fmt.Errorf("applying admin role to %s: %w", userID, err)
	}
	return h, nil
}

// RemoveAdminRole revokes one admin role assignment from a user.
func (c *Client) RemoveAdminRole(ctx context.Context, userID, roleDefinitionID string) (*OperationHandle, error) {
	body := map[string]any{"roleDefinitionId": roleDefinitionID}
	h, err := c.postOperation(ctx, "usermanagement/users/"+userID+":removeAdminRole", body)
	if err != nil {
		return nil, fmt.Errorf("removing admin role from %s: %w", userID, err)
	}
	return h, nil
}

// ListAdminRoles returns the admin roles currently assigned to a user.
func (c *Client) ListAdminRoles(ctx context.Context, userID string) (*AdminRolePage, error) {
	resp, err := c.http.Get(ctx, "usermanagement/users/"+userID+"/adminRoles", params())
	if err != nil {
		return nil, fmt.Errorf("listing admin roles for %s: %w", userID, err)
	}
	var page AdminRolePage
	if err := resp.JSON(&page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetOperation fetches a user management operation by id.
func (c *Client) GetOperation(ctx context.Context, operationID string) (map[string]any, error) {
	resp, err := c.http.Get(ctx, "usermanagement/operations/"+operationID, params())
	if err != nil {
		return nil, fmt.Errorf("getting operation %s: %w", operationID, err)
	}
	var out map[string]any
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// WaitForOperation polls an Operation-Location URL until a terminal state.
// The api-version is appended unless the URL already carries a query.
func (c *Client) WaitForOperation(ctx context.Context, operationURL string, opts poll.Options) (poll.Status, error) {
	fetch := func(ctx context.Context, u string) (poll.Status, error) {
		var p url.Values
		if !strings.Contains(u, "?") {
			p = params()
		}
		resp, err := c.http.Get(ctx, u, p)
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
