package odata

import (
	"testing"
)

func TestEscapeString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no quotes", "Contoso", "Contoso"},
		{"single quote", "O'Brien", "O''Brien"},
		{"multiple quotes", "a'b'c", "a''b''c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeString(tt.input); got != tt.want {
				t.Errorf("EscapeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAlternateKeySegment(t *testing.T) {
	seg, err := AlternateKeySegment(map[string]string{
		"name":          "O'Brien Ltd",
		"accountnumber": "A-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "accountnumber='A-1',name='O''Brien Ltd'"
	if seg != want {
		t.Errorf("segment = %q, want %q", seg, want)
	}
}

func TestAlternateKeySegmentEmpty(t *testing.T) {
	if _, err := AlternateKeySegment(nil); err == nil {
		t.Fatal("expected error for empty key map")
	}
}

func TestSanitizeGUID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "0f6c2f1e-0000-0000-0000-000000000000", "0f6c2f1e-0000-0000-0000-000000000000"},
		{"braces", "{0f6c2f1e-0000-0000-0000-000000000000}", "0f6c2f1e-0000-0000-0000-000000000000"},
		{"whitespace", "  {abc}  ", "abc"},
		{"inner braces kept", "a='{x}'", "a='{x}'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeGUID(tt.input); got != tt.want {
				t.Errorf("SanitizeGUID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryValues(t *testing.T) {
	q := Query{Select: "name,version", Filter: "ismanaged eq false", Top: 10, OrderBy: "name asc"}
	v := q.Values()
	if v.Get("$select") != "name,version" {
		t.Errorf("$select = %q", v.Get("$select"))
	}
	if v.Get("$filter") != "ismanaged eq false" {
		t.Errorf("$filter = %q", v.Get("$filter"))
	}
	if v.Get("$top") != "10" {
		t.Errorf("$top = %q", v.Get("$top"))
	}
	if v.Get("$orderby") != "name asc" {
		t.Errorf("$orderby = %q", v.Get("$orderby"))
	}

	empty := Query{}.Values()
	if len(empty) != 0 {
		t.Errorf("empty query produced %d params", len(empty))
	}
}

func TestSplitNextLink(t *testing.T) {
	path, params, err := SplitNextLink("https://api.powerplatform.com/powerapps/environments/e1/apps?api-version=1&$skiptoken=abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "powerapps/environments/e1/apps" {
		t.Errorf("path = %q", path)
	}
	if params.Get("$skiptoken") != "abc" {
		t.Errorf("$skiptoken = %q", params.Get("$skiptoken"))
	}

	path, _, err = SplitNextLink("/solutions?$top=5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "solutions" {
		t.Errorf("relative path = %q", path)
	}
}

func TestSkipTokenFromLink(t *testing.T) {
	if tok := SkipTokenFromLink("https://x/y?$skiptoken=t1"); tok != "t1" {
		t.Errorf("tok = %q", tok)
	}
	if tok := SkipTokenFromLink("https://x/y?$skipToken=t2"); tok != "t2" {
		t.Errorf("tok = %q", tok)
	}
	if tok := SkipTokenFromLink("https://x/y"); tok != "" {
		t.Errorf("tok = %q, want empty", tok)
	}
}
