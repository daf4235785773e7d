package updater

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		latest   string
		expected int
		wantErr  bool
	}{
		{"older patch", "1.0.0", "1.0.1", -1, false},
		{"older minor", "1.0.0", "1.1.0", -1, false},
		{"equal", "1.2.3", "1.2.3", 0, false},
		{"newer", "1.1.0", "1.0.0", 1, false},
		{"v prefix both", "v1.0.0", "v1.0.1", -1, false},
		{"prerelease less than release", "1.0.0-beta", "1.0.0", -1, false},
		{"invalid current", "notaversion", "1.0.0", 0, true},
		{"dev version", "dev", "1.0.0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CompareVersions(tt.current, tt.latest)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.current, tt.latest, result, tt.expected)
			}
		})
	}
}

func TestIsUpdateAvailable(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		latest   string
		expected bool
	}{
		{"update available", "1.0.0", "1.1.0", true},
		{"on latest", "1.1.0", "1.1.0", false},
		{"ahead of latest", "1.2.0", "1.1.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := IsUpdateAvailable(tt.current, tt.latest)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("IsUpdateAvailable(%q, %q) = %v, want %v", tt.current, tt.latest, result, tt.expected)
			}
		})
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	loaded, err := LoadCache(dir)
	if err != nil {
		t.Fatalf("LoadCache on empty dir: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil cache on first run, got %+v", loaded)
	}

	cache := &VersionCache{
		LatestVersion:   "v1.2.0",
		CurrentVersion:  "1.0.0",
		CheckedAt:       time.Now(),
		UpdateAvailable: true,
	}
	if err := SaveCache(dir, cache); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	loaded, err = LoadCache(dir)
	if err != nil {
		t.Fatalf("LoadCache: %v", err)
	}
	if loaded.LatestVersion != "v1.2.0" || !loaded.UpdateAvailable {
		t.Errorf("loaded cache = %+v", loaded)
	}
}

func TestIsCacheStale(t *testing.T) {
	if !IsCacheStale(nil, time.Hour) {
		t.Error("nil cache should be stale")
	}
	fresh := &VersionCache{CheckedAt: time.Now()}
	if IsCacheStale(fresh, time.Hour) {
		t.Error("fresh cache should not be stale")
	}
	old := &VersionCache{CheckedAt: time.Now().Add(-2 * time.Hour)}
	if !IsCacheStale(old, time.Hour) {
		t.Error("old cache should be stale")
	}
}

func TestSelectAssetForPlatform(t *testing.T) {
	expected := ArchiveName()
	assets := []Asset{
		{Name: "checksums.txt"},
		{Name: expected, DownloadURL: "https://example.com/" + expected},
	}

	asset, err := SelectAssetForPlatform(assets)
	if err != nil {
		t.Fatalf("SelectAssetForPlatform: %v", err)
	}
	if asset.Name != expected {
		t.Errorf("selected %q, want %q", asset.Name, expected)
	}

	if _, err := SelectAssetForPlatform([]Asset{{Name: "checksums.txt"}}); err == nil {
		t.Error("expected error when no platform asset exists")
	}
}

func TestCheckLatestVersionMirrorRewritesAssets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v1.3.0","assets":[{"name":"%s","browser_download_url":"https://github.example/original"}]}`, ArchiveName())
	}))
	defer server.Close()

	u := New("1.0.0", WithHTTPClient(server.Client()), WithMirror("https://mirror.example/releases/"))
	release, err := u.fetchRelease(server.URL)
	if err != nil {
		t.Fatalf("fetchRelease: %v", err)
	}
	if release.Version != "v1.3.0" {
		t.Errorf("version = %q", release.Version)
	}
	want := "https://mirror.example/releases/" + ArchiveName()
	if got := release.Assets[0].DownloadURL; got != want {
		t.Errorf("download URL = %q, want %q", got, want)
	}
}

// makeTarGz builds a tar.gz archive containing a fake release binary.
func makeTarGz(t *testing.T, binaryName string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	hdr := &tar.Header{
		Name: binaryName,
		Mode: 0o755,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gw.Close()
	return buf.Bytes()
}

func TestDownloadBinary(t *testing.T) {
	archiveData := makeTarGz(t, "ppx", []byte("#!/bin/sh\necho test"))
	archiveName := ArchiveName()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(archiveData)))
		w.Write(archiveData)
	}))
	defer server.Close()

	u := New("1.0.0", WithHTTPClient(server.Client()))
	release := &Release{
		Version: "v1.1.0",
		Assets: []Asset{
			{Name: archiveName, DownloadURL: server.URL + "/" + archiveName},
		},
	}

	destDir := t.TempDir()
	archivePath, err := u.DownloadBinary(release, destDir)
	if err != nil {
		t.Fatalf("DownloadBinary failed: %v", err)
	}
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("downloaded file does not exist: %v", err)
	}
}

func TestVerifyChecksum(t *testing.T) {
	archiveData := makeTarGz(t, "ppx", []byte("fake binary content"))
	h := sha256.Sum256(archiveData)
	checksum := hex.EncodeToString(h[:])

	archiveName := ArchiveName()
	checksumContent := fmt.Sprintf("%s  %s\n", checksum, archiveName)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(checksumContent))
	}))
	defer server.Close()

	u := New("1.0.0", WithHTTPClient(server.Client()))
	release := &Release{
		Assets: []Asset{
			{Name: "checksums.txt", DownloadURL: server.URL + "/checksums.txt"},
		},
	}

	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, archiveName)
	os.WriteFile(archivePath, archiveData, 0o644)

	if err := u.VerifyChecksum(release, archivePath); err != nil {
		t.Fatalf("VerifyChecksum failed: %v", err)
	}
}

func TestVerifyChecksumMismatch(t *testing.T) {
	archiveName := ArchiveName()
	checksumContent := fmt.Sprintf("%s  %s\n", "0000000000000000000000000000000000000000000000000000000000000000", archiveName)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(checksumContent))
	}))
	defer server.Close()

	u := New("1.0.0", WithHTTPClient(server.Client()))
	release := &Release{
		Assets: []Asset{
			{Name: "checksums.txt", DownloadURL: server.URL + "/checksums.txt"},
		},
	}

	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, archiveName)
	os.WriteFile(archivePath, []byte("different content"), 0o644)

	if err := u.VerifyChecksum(release, archivePath); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestExtractBinaryFromTarGz(t *testing.T) {
	content := []byte("binary payload")
	archiveData := makeTarGz(t, "ppx", content)

	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "ppx_linux_amd64.tar.gz")
	os.WriteFile(archivePath, archiveData, 0o644)

	binPath, err := ExtractBinary(archivePath, tmp)
	if err != nil {
		t.Fatalf("ExtractBinary: %v", err)
	}
	got, err := os.ReadFile(binPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("extracted content = %q, want %q", got, content)
	}
	if filepath.Base(binPath) != "ppx" {
		t.Errorf("extracted name = %q", filepath.Base(binPath))
	}
}

func TestExtractBinaryMissing(t *testing.T) {
	archiveData := makeTarGz(t, "README.md", []byte("docs"))

	tmp := t.TempDir()
	archivePath := filepath.Join(tmp, "ppx_linux_amd64.tar.gz")
	os.WriteFile(archivePath, archiveData, 0o644)

	if _, err := ExtractBinary(archivePath, tmp); err == nil {
		t.Fatal("expected error when binary is absent from archive")
	}
}

func TestArchiveName(t *testing.T) {
	name := ArchiveName()
	wantPrefix := fmt.Sprintf("ppx_%s_%s", runtime.GOOS, runtime.GOARCH)
	if len(name) <= len(wantPrefix) || name[:len(wantPrefix)] != wantPrefix {
		t.Errorf("ArchiveName() = %q, want prefix %q", name, wantPrefix)
	}
}
