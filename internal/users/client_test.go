package users

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/poll"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, httpx.StaticToken("tok")), srv
}

func TestApplyAdminRoleUsesActionPath(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/usermanagement/users/user-1:applyAdminRole" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Operation-Location", "https://example.test/usermanagement/operations/op-1")
		w.WriteHeader(http.StatusAccepted)
	}))

	h, err := c.ApplyAdminRole(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID() != "op-1" {
		t.Errorf("ID() = %q", h.ID())
	}
}

func TestRemoveAdminRoleSendsRoleDefinition(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	if _, err := c.RemoveAdminRole(context.Background(), "user-1", "role-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["roleDefinitionId"] != "role-9" {
		t.Errorf("body = %v", body)
	}
}

func TestListAdminRoles(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/usermanagement/users/user-1/adminRoles" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"value":[{"roleDefinitionId":"role-9","roleDisplayName":"Power Platform admin"}]}`)
	}))

	page, err := c.ListAdminRoles(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Value) != 1 || page.Value[0].RoleDisplayName != "Power Platform admin" {
		t.Errorf("page = %+v", page)
	}
}

func TestWaitForOperationSkipsVersionWhenURLHasQuery(t *testing.T) {
	var gotVersions []string
	mux := http.NewServeMux()
	mux.HandleFunc("/usermanagement/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		gotVersions = append(gotVersions, r.URL.Query().Get("api-version"))
		fmt.Fprint(w, `{"status":"Succeeded"}`)
	})
	c, srv := newTestClient(t, mux)

	opts := poll.Options{Interval: time.Millisecond, Timeout: time.Second}
	if _, err := c.WaitForOperation(context.Background(), srv.URL+"/usermanagement/operations/op-1", opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotVersions) != 1 || gotVersions[0] != apiVersion {
		t.Errorf("versions = %v", gotVersions)
	}

	gotVersions = nil
	u := srv.URL + "/usermanagement/operations/op-1?api-version=2030-01-01"
	if _, err := c.WaitForOperation(context.Background(), u, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotVersions) != 1 || gotVersions[0] != "2030-01-01" {
		t.Errorf("versions = %v", gotVersions)
	}
}
