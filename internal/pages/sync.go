package pages

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pacx-labs/pacx/internal/dataverse"
	"github.com/pacx-labs/pacx/internal/logging"
	"github.com/pacx-labs/pacx/internal/odata"
)

// Upload strategies.
const (
	StrategyReplace      = "replace"
	StrategyMerge        = "merge"
	StrategySkipExisting = "skip-existing"
	StrategyCreateOnly   = "create-only"
)

// DefaultTop caps rows fetched per table during a site download.
const DefaultTop = 5000

// Client syncs site content for one Dataverse environment.
type Client struct {
	dv *dataverse.Client
}

// NewClient wraps a Dataverse client for site sync.
func NewClient(dv *dataverse.Client) *Client {
	return &Client{dv: dv}
}

// DownloadOptions tune a site download.
type DownloadOptions struct {
	Tables       string // "core", "full", or comma-separated entity sets
	Top          int    // rows per table, DefaultTop when zero
	IncludeFiles bool   // export the files folder
	Binaries     bool   // also fetch annotation binaries for web files
}

// Manifest is written to site.json after a download.
type Manifest struct {
	WebsiteID string         `json:"website_id"`
	Summary   map[string]int `json:"summary"`
}

// DownloadSite exports site records as one JSON file per record, grouped in
// a folder per table, plus a site.json manifest.
func (c *Client) DownloadSite(ctx context.Context, websiteID, outDir string, opts DownloadOptions) (*Manifest, error) {
	top := opts.Top
	if top <= 0 {
		top = DefaultTop
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", outDir, err)
	}

	manifest := &Manifest{WebsiteID: websiteID, Summary: make(map[string]int)}
	var webFiles []dataverse.Record
	for _, table := range SelectTables(opts.Tables) {
		if table.Folder == "files" && !opts.IncludeFiles {
			continue
		}
		if err := os.MkdirAll(filepath.Join(outDir, table.Folder), 0o755); err != nil {
			return nil, fmt.Errorf("creating folder %s: %w", table.Folder, err)
		}

		q := odata.Query{Select: table.Select, Top: top}
		if strings.Contains(table.Select, "_adx_websiteid_value") {
			q.Filter = "_adx_websiteid_value eq " + odata.SanitizeGUID(websiteID)
		}
		page, err := c.dv.ListRecords(ctx, table.EntitySet, q)
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", table.EntitySet, err)
		}
		manifest.Summary[table.Folder] = len(page.Value)
		if table.Folder == "files" {
			webFiles = page.Value
		}
		for _, rec := range page.Value {
			if err := writeRecord(outDir, table, rec); err != nil {
				return nil, err
			}
		}
		logging.L().Debug("downloaded table",
			zap.String("entitySet", table.EntitySet),
			zap.Int("records", len(page.Value)))
	}

	if err := writeJSON(filepath.Join(outDir, "site.json"), manifest); err != nil {
		return nil, err
	}

	if opts.Binaries && opts.IncludeFiles && len(webFiles) > 0 {
		if err := c.DownloadWebFileBinaries(ctx, webFiles, outDir); err != nil {
			return nil, err
		}
	}
	return manifest, nil
}

func writeRecord(outDir string, table Table, rec dataverse.Record) error {
	id := recordFileName(rec, table.Key)
	path := filepath.Join(outDir, table.Folder, id+".json")
	return writeJSON(path, rec)
}

func recordFileName(rec dataverse.Record, key string) string {
	for _, k := range []string{key, "id", "name"} {
		if v, ok := rec[k]; ok && v != nil {
			return strings.ReplaceAll(fmt.Sprint(v), "/", "_")
		}
	}
	return "record"
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// DownloadWebFileBinaries fetches annotation attachments for each web file
// into files_bin, writing a .sha256 sidecar next to every binary.
func (c *Client) DownloadWebFileBinaries(ctx context.Context, webFiles []dataverse.Record, outDir string) error {
	binDir := filepath.Join(outDir, "files_bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	for _, wf := range webFiles {
		id := recordFileName(wf, "adx_webfileid")
		if id == "record" {
			continue
		}
		page, err := c.dv.ListRecords(ctx, "annotations", odata.Query{
			Select: "annotationid,filename,documentbody,_objectid_value",
			Filter: "_objectid_value eq " + odata.SanitizeGUID(id),
			Top:    50,
		})
		if err != nil {
			return fmt.Errorf("fetching annotations for %s: %w", id, err)
		}
		for _, note := range page.Value {
			if err := writeBinary(binDir, note); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeBinary(binDir string, note dataverse.Record) error {
	body, _ := note["documentbody"].(string)
	if body == "" {
		return nil
	}
	name, _ := note["filename"].(string)
	if name == "" {
		name = fmt.Sprint(note["annotationid"]) + ".bin"
	}
	name = filepath.Base(name)

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return fmt.Errorf("decoding annotation %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(binDir, name), raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	sum := sha256.Sum256(raw)
	sidecar := filepath.Join(binDir, name+".sha256")
	if err := os.WriteFile(sidecar, []byte(hex.EncodeToString(sum[:])), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", sidecar, err)
	}
	return nil
}

// UploadSite pushes local JSON records back to Dataverse. Records carrying
// their primary key PATCH the existing row; the rest POST, subject to the
// strategy:
//
//	replace        update by id, create on failure or when the id is absent
//	merge          fetch the remote row and overlay local fields before update
//	skip-existing  leave rows with ids untouched; records without an id are
//	               skipped as well
//	create-only    create records without an id; rows with ids are untouched
func (c *Client) UploadSite(ctx context.Context, srcDir, strategy string) error {
	switch strategy {
	case StrategyReplace, StrategyMerge, StrategySkipExisting, StrategyCreateOnly:
	default:
		return fmt.Errorf("unknown strategy %q", strategy)
	}

	for _, table := range AllTables() {
		dir := filepath.Join(srcDir, table.Folder)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			rec, err := readRecord(filepath.Join(dir, entry.Name()))
			if err != nil {
				return err
			}
			if err := c.uploadRecord(ctx, table, rec, strategy); err != nil {
				return err
			}
		}
	}
	return nil
}

func readRecord(path string) (dataverse.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rec dataverse.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rec, nil
}

func (c *Client) uploadRecord(ctx context.Context, table Table, rec dataverse.Record, strategy string) error {
	id, _ := rec[table.Key].(string)
	if id == "" {
		if strategy == StrategySkipExisting {
			return nil
		}
		_, err := c.dv.CreateRecord(ctx, table.EntitySet, rec)
		if err != nil {
			return fmt.Errorf("creating %s record: %w", table.EntitySet, err)
		}
		return nil
	}

	switch strategy {
	case StrategySkipExisting, StrategyCreateOnly:
		return nil
	case StrategyMerge:
		current, err := c.dv.GetRecord(ctx, table.EntitySet, id, odata.Query{})
		if err != nil {
			current = nil
		}
		merged := make(dataverse.Record, len(current)+len(rec))
		for k, v := range current {
			merged[k] = v
		}
		for k, v := range rec {
			merged[k] = v
		}
		if err := c.dv.UpdateRecord(ctx, table.EntitySet, id, merged); err != nil {
			return fmt.Errorf("merging %s(%s): %w", table.EntitySet, id, err)
		}
		return nil
	default: // replace
		if err := c.dv.UpdateRecord(ctx, table.EntitySet, id, rec); err != nil {
			if _, createErr := c.dv.CreateRecord(ctx, table.EntitySet, rec); createErr != nil {
				return fmt.Errorf("replacing %s(%s): %w", table.EntitySet, id, err)
			}
		}
		return nil
	}
}
