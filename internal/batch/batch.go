// Package batch builds and parses Dataverse OData $batch payloads. Requests
// wrap all operations into a single changeset so Dataverse applies them
// atomically; responses come back as multipart/mixed with one nested
// application/http block per operation.
package batch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Operation is one request inside a $batch changeset. URL must be relative
// to the Dataverse host and include the Web API prefix, e.g.
// "/api/data/v9.2/accounts(<id>)".
type Operation struct {
	Method string
	URL    string
	Body   any
}

// Result is the outcome of one operation in a parsed batch response.
type Result struct {
	ContentID  int
	StatusCode int
	Reason     string
	JSON       map[string]any
	Text       string
}

// OK reports whether the operation completed with a 2xx status.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Build renders ops as a multipart/mixed body wrapping a single changeset.
// It returns the batch boundary (for the Content-Type header) and the body.
func Build(ops []Operation) (boundary string, body []byte, err error) {
	batchID := "batch_" + uuid.NewString()
	changesetID := "changeset_" + uuid.NewString()

	var b strings.Builder
	writeLine := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	writeLine("--" + batchID)
	writeLine("Content-Type: multipart/mixed; boundary=" + changesetID)
	writeLine("")

	for i, op := range ops {
		method := strings.ToUpper(op.Method)
		var payload string
		if op.Body != nil {
			data, jerr := json.Marshal(op.Body)
			if jerr != nil {
				return "", nil, fmt.Errorf("encoding operation %d body: %w", i+1, jerr)
			}
			payload = string(data)
		}

		writeLine("--" + changesetID)
		writeLine("Content-Type: application/http")
		writeLine("Content-Transfer-Encoding: binary")
		writeLine("Content-ID: " + strconv.Itoa(i+1))
		writeLine("")
		writeLine(method + " " + op.URL + " HTTP/1.1")
		writeLine("Content-Type: application/json; charset=utf-8")
		writeLine("")
		writeLine(payload)
	}

	writeLine("--" + changesetID + "--")
	writeLine("")
	writeLine("--" + batchID + "--")
	writeLine("")

	return batchID, []byte(b.String()), nil
}

var (
	boundaryRe  = regexp.MustCompile(`(?i)boundary=([\w.-]+)`)
	contentIDRe = regexp.MustCompile(`(?i)Content-ID:\s*(\d+)`)
	statusRe    = regexp.MustCompile(`HTTP/\d\.\d\s+(\d{3})\s*([\w ]*)`)
)

// ParseResponse decodes a $batch response into per-operation results in part
// order. A missing boundary yields a single degraded result carrying the raw
// body, so callers always get something to report.
func ParseResponse(contentType string, body []byte) []Result {
	m := boundaryRe.FindStringSubmatch(contentType)
	if m == nil {
		return []Result{{Reason: "NoBoundary", Text: string(body)}}
	}
	boundary := m[1]

	var results []Result
	for _, part := range strings.Split(string(body), "--"+boundary) {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" || trimmed == "--" {
			continue
		}
		results = append(results, parsePart(part))
	}
	return results
}

func parsePart(part string) Result {
	res := Result{}
	if m := contentIDRe.FindStringSubmatch(part); m != nil {
		res.ContentID, _ = strconv.Atoi(m[1])
	}
	if m := statusRe.FindStringSubmatch(part); m != nil {
		res.StatusCode, _ = strconv.Atoi(m[1])
		res.Reason = strings.TrimSpace(m[2])
	} else {
		res.Reason = "Unknown"
	}

	// Body follows the blank line after the nested status/header block. The
	// part contains two header blocks (MIME headers, then HTTP headers), so
	// split from the status line onward.
	if idx := statusRe.FindStringIndex(part); idx != nil {
		rest := part[idx[0]:]
		if blocks := regexp.MustCompile(`\r?\n\r?\n`).Split(rest, 2); len(blocks) > 1 {
			res.Text = strings.TrimSpace(blocks[1])
		}
	}
	if res.Text != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(res.Text), &decoded); err == nil {
			res.JSON = decoded
		}
	}
	return res
}
