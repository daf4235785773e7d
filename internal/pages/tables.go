// Package pages syncs Power Pages (adx_*) site content between Dataverse
// and a local folder of JSON records, and plans permission changes by
// natural key.
package pages

import "strings"

// Table describes one adx_* entity set in the sync registry: the local
// folder it maps to, its primary key column, and the columns exported.
type Table struct {
	Folder    string
	EntitySet string
	Key       string
	Select    string
}

// CoreTables are the entity sets every site sync covers.
var CoreTables = []Table{
	{"websites", "adx_websites", "adx_websiteid", "adx_websiteid,adx_name"},
	{"pages", "adx_webpages", "adx_webpageid", "adx_webpageid,adx_name,adx_partialurl,_adx_websiteid_value"},
	{"files", "adx_webfiles", "adx_webfileid", "adx_webfileid,adx_name,adx_partialurl,_adx_websiteid_value"},
	{"snippets", "adx_contentsnippets", "adx_contentsnippetid", "adx_contentsnippetid,adx_name,adx_value,_adx_websiteid_value"},
	{"templates", "adx_pagetemplates", "adx_pagetemplateid", "adx_pagetemplateid,adx_name,adx_type,_adx_websiteid_value"},
	{"sitemarkers", "adx_sitemarkers", "adx_sitemarkerid", "adx_sitemarkerid,adx_name,_adx_webpageid_value,_adx_websiteid_value"},
}

// ExtraTables extend coverage to navigation, security, and redirects.
var ExtraTables = []Table{
	{"weblinksets", "adx_weblinksets", "adx_weblinksetid", "adx_weblinksetid,adx_name,_adx_websiteid_value"},
	{"weblinks", "adx_weblinks", "adx_weblinkid", "adx_weblinkid,adx_name,_adx_weblinksetid_value,_adx_websiteid_value"},
	{"wp_access", "adx_webpageaccesscontrolrules", "adx_webpageaccesscontrolruleid", "adx_webpageaccesscontrolruleid,adx_name,adx_right,_adx_websiteid_value"},
	{"webroles", "adx_webroles", "adx_webroleid", "adx_webroleid,adx_name,_adx_websiteid_value"},
	{"entitypermissions", "adx_entitypermissions", "adx_entitypermissionid", "adx_entitypermissionid,adx_name,adx_entitylogicalname,adx_accessrightsmask,_adx_websiteid_value"},
	{"redirects", "adx_redirects", "adx_redirectid", "adx_redirectid,adx_name,adx_sourceurl,adx_targeturl,_adx_websiteid_value"},
}

// DefaultNaturalKeys identify records across environments when GUIDs differ.
var DefaultNaturalKeys = map[string][]string{
	"adx_webpages":                  {"adx_partialurl", "_adx_websiteid_value"},
	"adx_webfiles":                  {"adx_partialurl", "_adx_websiteid_value"},
	"adx_contentsnippets":           {"adx_name", "_adx_websiteid_value"},
	"adx_pagetemplates":             {"adx_name", "_adx_websiteid_value"},
	"adx_sitemarkers":               {"adx_name", "_adx_websiteid_value"},
	"adx_weblinksets":               {"adx_name", "_adx_websiteid_value"},
	"adx_weblinks":                  {"adx_name", "_adx_weblinksetid_value"},
	"adx_webpageaccesscontrolrules": {"adx_name", "_adx_websiteid_value"},
	"adx_webroles":                  {"adx_name", "_adx_websiteid_value"},
	"adx_entitypermissions":         {"adx_name", "_adx_websiteid_value"},
	"adx_redirects":                 {"adx_sourceurl", "_adx_websiteid_value"},
}

// AllTables returns the core and extra registries combined.
func AllTables() []Table {
	out := make([]Table, 0, len(CoreTables)+len(ExtraTables))
	out = append(out, CoreTables...)
	out = append(out, ExtraTables...)
	return out
}

// SelectTables resolves a table spec: "core", "full", or a comma-separated
// list of entity set logical names.
func SelectTables(spec string) []Table {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", "core":
		return CoreTables
	case "full":
		return AllTables()
	}
	wanted := make(map[string]bool)
	for _, name := range strings.Split(spec, ",") {
		if name = strings.TrimSpace(strings.ToLower(name)); name != "" {
			wanted[name] = true
		}
	}
	var out []Table
	for _, t := range AllTables() {
		if wanted[strings.ToLower(t.EntitySet)] {
			out = append(out, t)
		}
	}
	return out
}
