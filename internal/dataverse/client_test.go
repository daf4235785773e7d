package dataverse

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pacx-labs/pacx/internal/batch"
	"github.com/pacx-labs/pacx/internal/httpx"
	"github.com/pacx-labs/pacx/internal/odata"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, httpx.StaticToken("tok"))
	return c, srv
}

func TestWhoAmI(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != APIPath+"/WhoAmI()" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("OData-Version"); got != "4.0" {
			t.Errorf("OData-Version = %q", got)
		}
		fmt.Fprint(w, `{"UserId":"u1","BusinessUnitId":"b1","OrganizationId":"o1"}`)
	}))

	who, err := c.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if who.UserID != "u1" || who.OrganizationID != "o1" {
		t.Errorf("unexpected response %+v", who)
	}
}

func TestListRecordsQuery(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("$select"); got != "name" {
			t.Errorf("$select = %q", got)
		}
		if got := q.Get("$top"); got != "5" {
			t.Errorf("$top = %q", got)
		}
		fmt.Fprint(w, `{"value":[{"name":"a"},{"name":"b"}],"@odata.nextLink":"https://x/api/data/v9.2/accounts?$skiptoken=abc"}`)
	}))

	page, err := c.ListRecords(context.Background(), "accounts", odata.Query{Select: "name", Top: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Value) != 2 {
		t.Fatalf("rows = %d", len(page.Value))
	}
	if page.NextLink == "" {
		t.Error("missing next link")
	}
}

func TestCreateRecordReturnsEntityURL(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["name"] != "Contoso" {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("OData-EntityId", "https://x/api/data/v9.2/accounts(123)")
		w.WriteHeader(http.StatusNoContent)
	}))

	res, err := c.CreateRecord(context.Background(), "accounts", Record{"name": "Contoso"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(res.EntityURL, "accounts(123)") {
		t.Errorf("entity url = %q", res.EntityURL)
	}
}

func TestUpdateRecordSendsIfMatch(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("If-Match"); got != "*" {
			t.Errorf("If-Match = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "accounts(42)") {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := c.UpdateRecord(context.Background(), "accounts", "{42}", Record{"name": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertByKey(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := APIPath + "/adx_webpages(adx_name='Home')"
		if r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	err := c.UpsertByKey(context.Background(), "adx_webpages", map[string]string{"adx_name": "Home"}, Record{"adx_title": "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExportSolutionDecodesZip(t *testing.T) {
	payload := []byte("PK\x03\x04fake")
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/ExportSolution") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["SolutionName"] != "MySolution" || body["Managed"] != false {
			t.Errorf("body = %v", body)
		}
		fmt.Fprintf(w, `{"ExportSolutionFile":%q}`, base64.StdEncoding.EncodeToString(payload))
	}))

	data, err := c.ExportSolution(context.Background(), "MySolution", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != string(payload) {
		t.Error("decoded payload mismatch")
	}
}

func TestImportSolutionEncodesZip(t *testing.T) {
	zip := []byte{1, 2, 3}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["CustomizationFile"] != base64.StdEncoding.EncodeToString(zip) {
			t.Error("payload not base64 encoded")
		}
		if body["ImportJobId"] != "job-1" {
			t.Errorf("ImportJobId = %v", body["ImportJobId"])
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	opts := DefaultImportOptions()
	opts.ImportJobID = "job-1"
	if err := c.ImportSolution(context.Background(), zip, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendBatch(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "multipart/mixed; boundary=batch_") {
			t.Errorf("Content-Type = %q", ct)
		}
		resp := strings.Join([]string{
			"--batchresponse_x",
			"Content-Type: multipart/mixed; boundary=changesetresponse_y",
			"",
			"--changesetresponse_y",
			"Content-Type: application/http",
			"Content-ID: 1",
			"",
			"HTTP/1.1 204 No Content",
			"",
			"",
			"--changesetresponse_y--",
			"--batchresponse_x--",
			"",
		}, "\r\n")
		w.Header().Set("Content-Type", "multipart/mixed; boundary=batchresponse_x")
		fmt.Fprint(w, resp)
	}))

	results, err := c.SendBatch(context.Background(), []batch.Operation{
		{Method: "PATCH", URL: APIPath + "/accounts(1)", Body: map[string]any{"name": "x"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok := false
	for _, r := range results {
		if r.StatusCode == 204 && r.ContentID == 1 {
			ok = true
		}
	}
	if !ok {
		t.Errorf("no 204 result with Content-ID 1: %+v", results)
	}
}

func TestNextPageStripsAPIPrefix(t *testing.T) {
	var gotPath string
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"value":[]}`)
	}))

	link := srv.URL + APIPath + "/accounts?$skiptoken=tok1"
	if _, err := c.NextPage(context.Background(), link); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != APIPath+"/accounts" {
		t.Errorf("path = %q", gotPath)
	}
}
