package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pacx-labs/pacx/internal/httpx"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, httpx.StaticToken("tok"))
}

func TestGetSettings(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tenantsettings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2024-03-01-preview" {
			t.Errorf("api-version = %q", got)
		}
		fmt.Fprint(w, `{"disableNewsletterSendout":true}`)
	}))

	settings, err := c.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings["disableNewsletterSendout"] != true {
		t.Errorf("settings = %v", settings)
	}
}

func TestUpdateSettingsAsync(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Prefer"); got != "respond-async" {
			t.Errorf("Prefer = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["disableCapacityAllocationByEnvironmentAdmins"] != true {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("Operation-Location", "https://api.example.com/ops/op1")
		w.WriteHeader(http.StatusAccepted)
	}))

	res, err := c.UpdateSettings(context.Background(), map[string]any{
		"disableCapacityAllocationByEnvironmentAdmins": true,
	}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted() {
		t.Errorf("status = %d", res.StatusCode)
	}
	if res.OperationLocation == "" {
		t.Error("missing Operation-Location")
	}
}

func TestUpdateFeatureControlSync(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tenantsettings/featureControl/copilot" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Prefer") != "" {
			t.Error("unexpected Prefer header")
		}
		fmt.Fprint(w, `{"name":"copilot","state":"On"}`)
	}))

	res, err := c.UpdateFeatureControl(context.Background(), "copilot", map[string]any{"state": "On"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted() {
		t.Error("sync update should not report accepted")
	}
	if res.Resource["state"] != "On" {
		t.Errorf("resource = %v", res.Resource)
	}
}

func TestListFeatureControls(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[{"name":"f1"},{"name":"f2"}]}`)
	}))

	controls, err := c.ListFeatureControls(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(controls) != 2 {
		t.Errorf("controls = %v", controls)
	}
}
