package governance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/poll"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, httpx.StaticToken("tok"))
}

func TestCreateCrossTenantReportReturnsOperation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/governance/crossTenantConnectionReports" {
			t.Errorf("call = %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Operation-Location", "https://example.test/reports/rep-1")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"id":"rep-1","status":"Accepted"}`)
	}))

	op, err := c.CreateCrossTenantReport(context.Background(), map[string]any{"tenantId": "t1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.ResourceID() != "rep-1" {
		t.Errorf("ResourceID() = %q", op.ResourceID())
	}
}

func TestOperationResourceIDFallsBackToLocation(t *testing.T) {
	op := Operation{OperationLocation: "https://example.test/reports/rep-2/"}
	if op.ResourceID() != "rep-2" {
		t.Errorf("ResourceID() = %q", op.ResourceID())
	}
}

func TestWaitForReportStopsAfterPendingStates(t *testing.T) {
	var polls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			fmt.Fprint(w, `{"status":"InProgress"}`)
			return
		}
		fmt.Fprint(w, `{"status":"Succeeded","report":{"rows":2}}`)
	}))

	status, err := c.WaitForReport(context.Background(), "rep-1", poll.Options{
		Interval: time.Millisecond,
		Timeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if poll.StateOf(status) != "Succeeded" {
		t.Errorf("state = %q", poll.StateOf(status))
	}
	if polls != 3 {
		t.Errorf("polls = %d", polls)
	}
}

func TestListAssignmentsOmitsEmptyFilters(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("environmentId") != "env1" {
			t.Errorf("environmentId = %q", q.Get("environmentId"))
		}
		if _, ok := q["environmentGroupId"]; ok {
			t.Error("environmentGroupId should be omitted")
		}
		if _, ok := q["policyId"]; ok {
			t.Error("policyId should be omitted")
		}
		fmt.Fprint(w, `{"value":[]}`)
	}))

	if _, err := c.ListAssignments(context.Background(), "env1", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssignToEnvironmentGroupPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))

	if _, err := c.AssignToEnvironmentGroup(context.Background(), "pol1", "grp1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "/governance/ruleBasedPolicies/pol1/assignments/environmentGroups/grp1"
	if gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}
