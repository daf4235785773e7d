package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pacx-labs/pacx/internal/dataverse"
	"github.com/pacx-labs/pacx/internal/odata"
)

// Diff actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// permissionFolders maps local folders to the security entity sets a
// permissions diff covers.
var permissionFolders = map[string]string{
	"entitypermissions": "adx_entitypermissions",
	"wp_access":         "adx_webpageaccesscontrolrules",
	"webroles":          "adx_webroles",
}

// DiffEntry is one planned permission change, keyed by natural key.
type DiffEntry struct {
	EntitySet string
	Action    string
	Key       []string
	Local     dataverse.Record
	Remote    dataverse.Record
}

// DiffPermissions compares local permission records under baseDir with the
// live site and returns create/update/delete entries ordered by key.
// keyOverrides replaces the natural key columns for specific entity sets.
func (c *Client) DiffPermissions(ctx context.Context, websiteID, baseDir string, keyOverrides map[string][]string) ([]DiffEntry, error) {
	keys := make(map[string][]string, len(DefaultNaturalKeys))
	for entity, cols := range DefaultNaturalKeys {
		keys[entity] = cols
	}
	for entity, cols := range keyOverrides {
		keys[strings.ToLower(entity)] = cols
	}

	var results []DiffEntry
	folders := make([]string, 0, len(permissionFolders))
	for folder := range permissionFolders {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	for _, folder := range folders {
		entity := permissionFolders[folder]
		local, err := loadLocalRecords(filepath.Join(baseDir, folder))
		if err != nil {
			return nil, err
		}

		keyCols := keys[entity]
		if len(keyCols) == 0 {
			keyCols = []string{"adx_name"}
		}
		q := odata.Query{Select: "*", Top: DefaultTop}
		if containsColumn(keyCols, "_adx_websiteid_value") {
			q.Filter = "_adx_websiteid_value eq " + odata.SanitizeGUID(websiteID)
		}
		page, err := c.dv.ListRecords(ctx, entity, q)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", entity, err)
		}

		localMap := keyRecords(local, keyCols)
		remoteMap := keyRecords(page.Value, keyCols)

		for _, key := range sortedKeys(localMap, remoteMap) {
			localRec, haveLocal := localMap[key]
			remoteRec, haveRemote := remoteMap[key]
			entry := DiffEntry{EntitySet: entity, Key: strings.Split(key, "\x00")}
			switch {
			case haveLocal && !haveRemote:
				entry.Action, entry.Local = ActionCreate, localRec
			case haveRemote && !haveLocal:
				entry.Action, entry.Remote = ActionDelete, remoteRec
			default:
				if sameRecord(localRec, remoteRec) {
					continue
				}
				entry.Action, entry.Local, entry.Remote = ActionUpdate, localRec, remoteRec
			}
			results = append(results, entry)
		}
	}
	return results, nil
}

func loadLocalRecords(dir string) ([]dataverse.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var out []dataverse.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := readRecord(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// keyRecords indexes records by their lowercased natural key values joined
// with NUL, which cannot appear in column values.
func keyRecords(records []dataverse.Record, keyCols []string) map[string]dataverse.Record {
	out := make(map[string]dataverse.Record, len(records))
	for _, rec := range records {
		parts := make([]string, len(keyCols))
		for i, col := range keyCols {
			if v, ok := rec[col]; ok && v != nil {
				parts[i] = strings.ToLower(fmt.Sprint(v))
			}
		}
		out[strings.Join(parts, "\x00")] = rec
	}
	return out
}

func containsColumn(cols []string, want string) bool {
	for _, c := range cols {
		if c == want {
			return true
		}
	}
	return false
}

func sortedKeys(a, b map[string]dataverse.Record) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var keys []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func sameRecord(a, b dataverse.Record) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
