package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pacx-labs/pacx/internal/branding"
	"github.com/pacx-labs/pacx/internal/config"
)

func TestParseKeyOverrides(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		want    map[string][]string
		wantErr bool
	}{
		{"empty", nil, nil, false},
		{
			"single",
			[]string{"webroles=adx_name,_adx_websiteid_value"},
			map[string][]string{"webroles": {"adx_name", "_adx_websiteid_value"}},
			false,
		},
		{
			"multiple",
			[]string{"webroles=adx_name", "entitypermissions=adx_entityname,adx_scope"},
			map[string][]string{
				"webroles":          {"adx_name"},
				"entitypermissions": {"adx_entityname", "adx_scope"},
			},
			false,
		},
		{"missing equals", []string{"webroles"}, nil, true},
		{"empty columns", []string{"webroles="}, nil, true},
		{"empty name", []string{"=adx_name"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyOverrides(tt.flags)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseKeyOverrides(%v) = %v, want %v", tt.flags, got, tt.want)
			}
		})
	}
}

func TestReadBodyArgInline(t *testing.T) {
	body, err := readBodyArg(`{"name":"Fabrikam","sort":3}`)
	if err != nil {
		t.Fatalf("readBodyArg: %v", err)
	}
	if body["name"] != "Fabrikam" {
		t.Errorf("name = %v", body["name"])
	}
	if body["sort"] != float64(3) {
		t.Errorf("sort = %v", body["sort"])
	}
}

func TestReadBodyArgFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	if err := os.WriteFile(path, []byte(`{"state":"Started"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	body, err := readBodyArg("@" + path)
	if err != nil {
		t.Fatalf("readBodyArg: %v", err)
	}
	if body["state"] != "Started" {
		t.Errorf("state = %v", body["state"])
	}
}

func TestReadBodyArgRejectsGarbage(t *testing.T) {
	if _, err := readBodyArg("not json"); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := readBodyArg("@/does/not/exist.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCommandTreeRegistration(t *testing.T) {
	want := []string{
		"auth", "profile", "doctor", "env", "apps", "flows", "solution",
		"dv", "connector", "pages", "licensing", "tenant", "analytics",
		"policy", "governance", "users", "version", "self-update",
	}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q is not registered", name)
		}
	}
}

func TestDoctorReportsEnvTokenSource(t *testing.T) {
	t.Setenv(branding.EnvVar("HOME"), t.TempDir())
	t.Setenv(branding.EnvVar("ACCESS_TOKEN"), "env-token")
	config.InitEnv()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	doctorCmd.SetContext(context.Background())
	runErr := doctorCmd.RunE(doctorCmd, nil)
	w.Close()
	os.Stdout = orig
	out, _ := io.ReadAll(r)
	if runErr != nil {
		t.Fatalf("doctor: %v\n%s", runErr, out)
	}
	if !strings.Contains(string(out), branding.EnvVar("ACCESS_TOKEN")) {
		t.Errorf("output does not name the token env var:\n%s", out)
	}
	if !strings.Contains(string(out), "All checks passed.") {
		t.Errorf("output missing success line:\n%s", out)
	}
}

func TestDecodeConnectorGroups(t *testing.T) {
	body := map[string]any{
		"groups": []any{
			map[string]any{
				"classification": "General",
				"connectors":     []any{map[string]any{"id": "shared_sql"}},
			},
		},
	}
	groups, err := decodeConnectorGroups(body)
	if err != nil {
		t.Fatalf("decodeConnectorGroups: %v", err)
	}
	if len(groups) != 1 || groups[0].Classification != "General" {
		t.Errorf("groups = %+v", groups)
	}
	if len(groups[0].Connectors) != 1 || groups[0].Connectors[0].ID != "shared_sql" {
		t.Errorf("connectors = %+v", groups[0].Connectors)
	}

	if _, err := decodeConnectorGroups(map[string]any{}); err == nil {
		t.Error("expected error for missing groups array")
	}
}

func TestDecodeAssignments(t *testing.T) {
	body := map[string]any{
		"assignments": []any{
			map[string]any{"environmentId": "env1", "assignmentType": "Include"},
		},
	}
	assignments, err := decodeAssignments(body)
	if err != nil {
		t.Fatalf("decodeAssignments: %v", err)
	}
	if len(assignments) != 1 || assignments[0].EnvironmentID != "env1" {
		t.Errorf("assignments = %+v", assignments)
	}

	if _, err := decodeAssignments(map[string]any{"assignments": []any{}}); err == nil {
		t.Error("expected error for empty assignments array")
	}
}
