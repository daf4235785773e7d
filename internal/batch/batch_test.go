package batch

import (
	"strings"
	"testing"
)

func TestBuildFrames(t *testing.T) {
	boundary, body, err := Build([]Operation{
		{Method: "post", URL: "/api/data/v9.2/accounts", Body: map[string]string{"name": "Contoso"}},
		{Method: "PATCH", URL: "/api/data/v9.2/accounts(1)", Body: map[string]string{"name": "Fabrikam"}},
		{Method: "DELETE", URL: "/api/data/v9.2/accounts(2)"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(boundary, "batch_") {
		t.Errorf("boundary = %q", boundary)
	}

	text := string(body)
	if !strings.Contains(text, "--"+boundary+"--\r\n") {
		t.Error("missing closing batch boundary")
	}
	for _, want := range []string{
		"POST /api/data/v9.2/accounts HTTP/1.1",
		"PATCH /api/data/v9.2/accounts(1) HTTP/1.1",
		"DELETE /api/data/v9.2/accounts(2) HTTP/1.1",
		"Content-ID: 1",
		"Content-ID: 2",
		"Content-ID: 3",
		"Content-Transfer-Encoding: binary",
		`{"name":"Contoso"}`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if !strings.Contains(text, "multipart/mixed; boundary=changeset_") {
		t.Error("missing changeset declaration")
	}
}

const sampleResponse = "--batchresponse_abc\r\n" +
	"Content-Type: multipart/mixed; boundary=changesetresponse_def\r\n" +
	"\r\n" +
	"--changesetresponse_def\r\n" +
	"Content-Type: application/http\r\n" +
	"Content-Transfer-Encoding: binary\r\n" +
	"Content-ID: 1\r\n" +
	"\r\n" +
	"HTTP/1.1 204 No Content\r\n" +
	"OData-Version: 4.0\r\n" +
	"\r\n" +
	"\r\n" +
	"--changesetresponse_def\r\n" +
	"Content-Type: application/http\r\n" +
	"Content-Transfer-Encoding: binary\r\n" +
	"Content-ID: 2\r\n" +
	"\r\n" +
	"HTTP/1.1 400 Bad Request\r\n" +
	"Content-Type: application/json\r\n" +
	"\r\n" +
	"{\"error\":{\"message\":\"invalid attribute\"}}\r\n" +
	"--changesetresponse_def--\r\n" +
	"--batchresponse_abc--\r\n"

func TestParseResponse(t *testing.T) {
	results := ParseResponse("multipart/mixed; boundary=batchresponse_abc", []byte(sampleResponse))

	// The changeset wrapper produces one enclosing part plus its nested
	// operations; operations are identified by Content-ID and status.
	var ops []Result
	for _, r := range results {
		if r.ContentID > 0 {
			ops = append(ops, r)
		}
	}
	if len(ops) == 0 {
		t.Fatalf("no operation results parsed from %d parts", len(results))
	}

	first := ops[0]
	if first.ContentID != 1 || first.StatusCode != 204 {
		t.Errorf("first op = %+v", first)
	}
	if !first.OK() {
		t.Error("204 should be OK")
	}
}

func TestParseResponseNestedBoundary(t *testing.T) {
	// Parse with the changeset boundary directly to exercise per-op bodies.
	results := ParseResponse("multipart/mixed; boundary=changesetresponse_def", []byte(sampleResponse))
	if len(results) < 2 {
		t.Fatalf("parsed %d results, want >= 2", len(results))
	}

	var bad *Result
	for i := range results {
		if results[i].StatusCode == 400 {
			bad = &results[i]
		}
	}
	if bad == nil {
		t.Fatal("missing 400 result")
	}
	if bad.OK() {
		t.Error("400 should not be OK")
	}
	if bad.JSON == nil {
		t.Fatalf("400 body not decoded: %q", bad.Text)
	}
}

func TestParseResponseNoBoundary(t *testing.T) {
	results := ParseResponse("text/plain", []byte("oops"))
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Reason != "NoBoundary" || results[0].Text != "oops" {
		t.Errorf("degraded result = %+v", results[0])
	}
}
