package licensing

import (
	"context"
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

func TestListBillingPolicies(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/licensing/billingPolicies" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") == "" {
			t.Error("missing api-version")
		}
		fmt.Fprint(w, `{"value":[{"id":"p1","name":"Prod"}]}`)
	}))

	policies, err := c.ListBillingPolicies(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 1 || policies[0]["id"] != "p1" {
		t.Errorf("policies = %v", policies)
	}
}

func TestAddBillingPolicyEnvironment(t *testing.T) {
	var gotPath, gotMethod string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.AddBillingPolicyEnvironment(context.Background(), "p1", "env1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/licensing/billingPolicies/p1/environments/env1" {
		t.Errorf("%s %s", gotMethod, gotPath)
	}
}

func TestRefreshBillingPolicyProvisioning(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", "https://api.example.com/ops/op9")
		w.WriteHeader(http.StatusAccepted)
	}))

	op, err := c.RefreshBillingPolicyProvisioning(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.OperationLocation != "https://api.example.com/ops/op9" {
		t.Errorf("location = %q", op.OperationLocation)
	}
}

func TestGetTenantCapacityDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/licensing/tenantCapacityDetails" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"totalCapacity":100}`)
	}))

	out, err := c.GetTenantCapacityDetails(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["totalCapacity"] != float64(100) {
		t.Errorf("out = %v", out)
	}
}
