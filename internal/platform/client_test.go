package platform

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

func TestListEnvironmentsSendsAPIVersion(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api-version"); got != DefaultAPIVersion {
			t.Errorf("api-version = %q", got)
		}
		if r.URL.Path != "/environmentmanagement/environments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"value":[{"id":"env1","name":"Dev","environmentType":"Sandbox"}]}`)
	}))

	envs, err := c.ListEnvironments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(envs) != 1 || envs[0].Type != "Sandbox" {
		t.Errorf("envs = %+v", envs)
	}
}

func TestCopyEnvironmentReturnsHandle(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Operation-Location", "https://api.example.com/operations/op-123")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"status":"Accepted"}`)
	}))
	_ = srv

	h, err := c.CopyEnvironment(context.Background(), "env1", map[string]any{"targetEnvironmentName": "Copy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID() != "op-123" {
		t.Errorf("operation id = %q", h.ID())
	}
	if h.Metadata["status"] != "Accepted" {
		t.Errorf("metadata = %v", h.Metadata)
	}
}

func TestDeleteEnvironmentValidateOnly(t *testing.T) {
	var gotValidate string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotValidate = r.URL.Query().Get("ValidateOnly")
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.DeleteEnvironment(context.Background(), "env1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotValidate != "true" {
		t.Errorf("ValidateOnly = %q", gotValidate)
	}
}

func TestWaitForOperationFollowsLocation(t *testing.T) {
	var polls int
	mux := http.NewServeMux()
	mux.HandleFunc("/operations/op1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			fmt.Fprint(w, `{"status":"Running"}`)
			return
		}
		fmt.Fprint(w, `{"status":"Succeeded"}`)
	})
	c, srv := newTestClient(t, mux)

	status, err := c.WaitForOperation(context.Background(), srv.URL+"/operations/op1", poll.Options{
		Interval: 10 * time.Millisecond,
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status["status"] != "Succeeded" {
		t.Errorf("status = %v", status)
	}
	if polls < 2 {
		t.Errorf("polls = %d", polls)
	}
}

func TestListAppsFollowsNextLink(t *testing.T) {
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/powerapps/environments/env1/apps", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$skiptoken") == "p2" {
			fmt.Fprint(w, `{"value":[{"id":"app2"}]}`)
			return
		}
		fmt.Fprintf(w, `{"value":[{"id":"app1"}],"@odata.nextLink":"%s/powerapps/environments/env1/apps?$skiptoken=p2"}`, base)
	})
	c, srv := newTestClient(t, mux)
	base = srv.URL

	apps, err := c.ListApps(context.Background(), "env1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(apps) != 2 || apps[0].ID != "app1" || apps[1].ID != "app2" {
		t.Errorf("apps = %+v", apps)
	}
}

func TestSetCloudFlowState(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		props, _ := body["properties"].(map[string]any)
		if props["state"] != "Stopped" {
			t.Errorf("body = %v", body)
		}
		fmt.Fprint(w, `{"id":"flow1","properties":{"state":"Stopped"}}`)
	}))

	flow, err := c.SetCloudFlowState(context.Background(), "env1", "flow1", "Stopped")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow.Properties["state"] != "Stopped" {
		t.Errorf("flow = %+v", flow)
	}
}

func TestListCloudFlowRunsContinuationHeader(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "Failed" {
			t.Errorf("status filter = %q", got)
		}
		w.Header().Set("x-ms-continuation-token", "next-token")
		fmt.Fprint(w, `{"value":[{"name":"run1","status":"Failed"}]}`)
	}))

	page, err := c.ListCloudFlowRuns(context.Background(), "env1", "flow1", "Failed", 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Runs) != 1 || page.Runs[0].Name != "run1" {
		t.Errorf("runs = %+v", page.Runs)
	}
	if page.ContinuationToken != "next-token" {
		t.Errorf("token = %q", page.ContinuationToken)
	}
}

func TestOperationHandleID(t *testing.T) {
	tests := []struct {
		loc  string
		want string
	}{
		{"https://api.example.com/operations/abc", "abc"},
		{"https://api.example.com/operations/abc/", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		h := OperationHandle{OperationLocation: tt.loc}
		if got := h.ID(); got != tt.want {
			t.Errorf("ID(%q) = %q, want %q", tt.loc, got, tt.want)
		}
	}
}
