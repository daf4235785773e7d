package bulk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pacx-labs/pacx/internal/dataverse"
	"github.com/pacx-labs/pacx/internal/httpx"
)

// batchEcho responds to $batch requests with one 204 part per operation in
// the request body.
func batchEcho(t *testing.T) (*dataverse.Client, *[]string) {
	t.Helper()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		body := string(raw)
		bodies = append(bodies, body)

		n := strings.Count(body, "Content-ID:")
		var parts []string
		parts = append(parts,
			"--batchresponse_b",
			"Content-Type: multipart/mixed; boundary=changesetresponse_c",
			"")
		for i := 1; i <= n; i++ {
			parts = append(parts,
				"--changesetresponse_c",
				"Content-Type: application/http",
				fmt.Sprintf("Content-ID: %d", i),
				"",
				"HTTP/1.1 204 No Content",
				"",
				"")
		}
		parts = append(parts, "--changesetresponse_c--", "--batchresponse_b--", "")
		w.Header().Set("Content-Type", "multipart/mixed; boundary=batchresponse_b")
		fmt.Fprint(w, strings.Join(parts, "\r\n"))
	}))
	t.Cleanup(srv.Close)
	return dataverse.New(srv.URL, httpx.StaticToken("tok")), &bodies
}

func TestUpsertRoutesRows(t *testing.T) {
	dv, bodies := batchEcho(t)
	csvData := strings.Join([]string{
		"accountid,adx_name,revenue",
		"11111111-1111-1111-1111-111111111111,Contoso,100",
		",Fabrikam,200",
		",,300",
	}, "\n")

	res, err := Upsert(context.Background(), dv, "accounts", strings.NewReader(csvData), Options{
		IDColumn:        "accountid",
		KeyColumns:      []string{"adx_name"},
		CreateIfMissing: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stats.Successes != 3 || res.Stats.Failures != 0 {
		t.Errorf("stats = %+v", res.Stats)
	}

	body := (*bodies)[0]
	if !strings.Contains(body, "PATCH") || !strings.Contains(body, "accounts(11111111-1111-1111-1111-111111111111)") {
		t.Errorf("missing PATCH by id:\n%s", body)
	}
	if !strings.Contains(body, "accounts(adx_name='Fabrikam')") {
		t.Errorf("missing PATCH by alternate key:\n%s", body)
	}
	if !strings.Contains(body, "POST /api/data/v9.2/accounts HTTP/1.1") {
		t.Errorf("missing POST for keyless row:\n%s", body)
	}
}

func TestUpsertSkipsKeylessRowsWithoutCreate(t *testing.T) {
	dv, bodies := batchEcho(t)
	csvData := "accountid,name\n,OnlyName\n"

	res, err := Upsert(context.Background(), dv, "accounts", strings.NewReader(csvData), Options{
		IDColumn:        "accountid",
		CreateIfMissing: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*bodies) != 0 {
		t.Errorf("expected no batch request, got %d", len(*bodies))
	}
	if len(res.Operations) != 0 {
		t.Errorf("operations = %+v", res.Operations)
	}
}

func TestUpsertChunks(t *testing.T) {
	dv, bodies := batchEcho(t)
	var rows []string
	rows = append(rows, "accountid,name")
	for i := 0; i < 5; i++ {
		rows = append(rows, fmt.Sprintf("id-%d,Name%d", i, i))
	}

	res, err := Upsert(context.Background(), dv, "accounts", strings.NewReader(strings.Join(rows, "\n")), Options{
		IDColumn:  "accountid",
		ChunkSize: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*bodies) != 3 {
		t.Errorf("batch requests = %d, want 3", len(*bodies))
	}
	if res.Stats.Successes != 5 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestUpsertDropsEmptyFields(t *testing.T) {
	dv, bodies := batchEcho(t)
	csvData := "accountid,name,phone\nid-1,Contoso,\n"

	_, err := Upsert(context.Background(), dv, "accounts", strings.NewReader(csvData), Options{
		IDColumn: "accountid",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := (*bodies)[0]
	if strings.Contains(body, "phone") {
		t.Errorf("empty field not dropped:\n%s", body)
	}
}

func TestUpsertEmptyCSV(t *testing.T) {
	dv, bodies := batchEcho(t)
	res, err := Upsert(context.Background(), dv, "accounts", strings.NewReader(""), Options{IDColumn: "id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Operations) != 0 || len(*bodies) != 0 {
		t.Error("expected no work for empty input")
	}
}

func TestWriteReport(t *testing.T) {
	res := &Result{
		Operations: []OperationResult{
			{RowIndex: 1, ContentID: 1, StatusCode: 204, Reason: "No Content"},
			{RowIndex: 2, ContentID: 2, StatusCode: 400, Reason: "Bad Request", JSON: map[string]any{"error": "x"}},
		},
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, res); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "row_index,content_id,status_code,reason,json") {
		t.Errorf("header missing:\n%s", out)
	}
	if !strings.Contains(out, "2,2,400,Bad Request") {
		t.Errorf("failure row missing:\n%s", out)
	}
}
