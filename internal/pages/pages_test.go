package pages

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pacx-labs/pacx/internal/dataverse"
	"github.com/pacx-labs/pacx/internal/httpx"
)

func TestSelectTables(t *testing.T) {
	if got := len(SelectTables("core")); got != len(CoreTables) {
		t.Errorf("core tables = %d", got)
	}
	if got := len(SelectTables("full")); got != len(CoreTables)+len(ExtraTables) {
		t.Errorf("full tables = %d", got)
	}
	custom := SelectTables("adx_webpages, adx_webroles")
	if len(custom) != 2 {
		t.Fatalf("custom tables = %+v", custom)
	}
	if custom[0].EntitySet != "adx_webpages" || custom[1].EntitySet != "adx_webroles" {
		t.Errorf("custom tables = %+v", custom)
	}
}

// fakeSite serves adx_* listings keyed by entity set.
func fakeSite(t *testing.T, rows map[string][]map[string]any) *dataverse.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, dataverse.APIPath+"/"), "(")
		entitySet := parts[0]
		switch r.Method {
		case http.MethodGet:
			value := rows[entitySet]
			if value == nil {
				value = []map[string]any{}
			}
			payload, _ := json.Marshal(map[string]any{"value": value})
			w.Write(payload)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return dataverse.New(srv.URL, httpx.StaticToken("tok"))
}

func TestDownloadSiteWritesRecordsAndManifest(t *testing.T) {
	binary := []byte("binary-content")
	dv := fakeSite(t, map[string][]map[string]any{
		"adx_websites": {{"adx_websiteid": "site-1", "adx_name": "Portal"}},
		"adx_webpages": {{"adx_webpageid": "page-1", "adx_partialurl": "home"}},
		"adx_webfiles": {{"adx_webfileid": "file-1", "adx_partialurl": "logo.png"}},
		"annotations": {{
			"annotationid": "note-1",
			"filename":     "logo.png",
			"documentbody": base64.StdEncoding.EncodeToString(binary),
		}},
	})

	out := t.TempDir()
	manifest, err := NewClient(dv).DownloadSite(context.Background(), "site-1", out, DownloadOptions{
		Tables:       "core",
		IncludeFiles: true,
		Binaries:     true,
	})
	if err != nil {
		t.Fatalf("DownloadSite: %v", err)
	}
	if manifest.Summary["pages"] != 1 || manifest.Summary["files"] != 1 {
		t.Errorf("summary = %v", manifest.Summary)
	}

	for _, want := range []string{
		"websites/site-1.json",
		"pages/page-1.json",
		"files/file-1.json",
		"site.json",
		"files_bin/logo.png",
		"files_bin/logo.png.sha256",
	} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(want))); err != nil {
			t.Errorf("missing %s: %v", want, err)
		}
	}

	sum := sha256.Sum256(binary)
	sidecar, err := os.ReadFile(filepath.Join(out, "files_bin", "logo.png.sha256"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if string(sidecar) != hex.EncodeToString(sum[:]) {
		t.Errorf("sha256 sidecar mismatch")
	}
}

func TestDownloadSiteSkipsFilesWhenExcluded(t *testing.T) {
	dv := fakeSite(t, map[string][]map[string]any{
		"adx_websites": {{"adx_websiteid": "site-1"}},
	})
	out := t.TempDir()
	manifest, err := NewClient(dv).DownloadSite(context.Background(), "site-1", out, DownloadOptions{})
	if err != nil {
		t.Fatalf("DownloadSite: %v", err)
	}
	if _, ok := manifest.Summary["files"]; ok {
		t.Error("files folder should be skipped")
	}
	if _, err := os.Stat(filepath.Join(out, "files")); !os.IsNotExist(err) {
		t.Error("files directory should not exist")
	}
}

func TestUploadSiteRejectsUnknownStrategy(t *testing.T) {
	dv := fakeSite(t, nil)
	err := NewClient(dv).UploadSite(context.Background(), t.TempDir(), "overwrite-all")
	if err == nil || !strings.Contains(err.Error(), "unknown strategy") {
		t.Fatalf("expected strategy error, got %v", err)
	}
}

func TestUploadSiteStrategies(t *testing.T) {
	type call struct {
		method string
		path   string
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"adx_name":"remote"}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	dv := dataverse.New(srv.URL, httpx.StaticToken("tok"))

	src := t.TempDir()
	pageDir := filepath.Join(src, "pages")
	if err := os.MkdirAll(pageDir, 0o755); err != nil {
		t.Fatal(err)
	}
	withID := `{"adx_webpageid":"page-1","adx_name":"Home"}`
	withoutID := `{"adx_name":"New Page"}`
	os.WriteFile(filepath.Join(pageDir, "a.json"), []byte(withID), 0o644)
	os.WriteFile(filepath.Join(pageDir, "b.json"), []byte(withoutID), 0o644)

	check := func(t *testing.T, strategy string, wantMethods []string) {
		t.Helper()
		calls = nil
		if err := NewClient(dv).UploadSite(context.Background(), src, strategy); err != nil {
			t.Fatalf("UploadSite(%s): %v", strategy, err)
		}
		var got []string
		for _, c := range calls {
			got = append(got, c.method)
		}
		if strings.Join(got, ",") != strings.Join(wantMethods, ",") {
			t.Errorf("strategy %s calls = %v, want %v", strategy, got, wantMethods)
		}
	}

	// a.json sorts before b.json, so the id-bearing record goes first.
	check(t, StrategyReplace, []string{"PATCH", "POST"})
	check(t, StrategyMerge, []string{"GET", "PATCH", "POST"})
	check(t, StrategyCreateOnly, []string{"POST"})
	check(t, StrategySkipExisting, []string{})
}

func TestDiffPermissions(t *testing.T) {
	dv := fakeSite(t, map[string][]map[string]any{
		"adx_webroles": {
			{"adx_name": "Admins", "_adx_websiteid_value": "site-1", "adx_webroleid": "r1"},
			{"adx_name": "Stale", "_adx_websiteid_value": "site-1", "adx_webroleid": "r2"},
		},
	})

	base := t.TempDir()
	roleDir := filepath.Join(base, "webroles")
	if err := os.MkdirAll(roleDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Matches remote r1 exactly, so no entry expected for it.
	same := map[string]any{"adx_name": "Admins", "_adx_websiteid_value": "site-1", "adx_webroleid": "r1"}
	data, _ := json.Marshal(same)
	os.WriteFile(filepath.Join(roleDir, "admins.json"), data, 0o644)
	os.WriteFile(filepath.Join(roleDir, "new.json"), []byte(`{"adx_name":"Editors","_adx_websiteid_value":"site-1"}`), 0o644)

	entries, err := NewClient(dv).DiffPermissions(context.Background(), "site-1", base, nil)
	if err != nil {
		t.Fatalf("DiffPermissions: %v", err)
	}

	actions := make(map[string]string)
	for _, e := range entries {
		actions[strings.Join(e.Key, "|")] = e.Action
	}
	if actions["editors|site-1"] != ActionCreate {
		t.Errorf("expected create for editors, got %v", actions)
	}
	if actions["stale|site-1"] != ActionDelete {
		t.Errorf("expected delete for stale, got %v", actions)
	}
	if _, ok := actions["admins|site-1"]; ok {
		t.Errorf("unchanged record should not appear: %v", actions)
	}
}
