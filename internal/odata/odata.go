// Package odata contains helpers for composing Dataverse OData request
// fragments: string escaping, alternate key segments, GUID sanitization,
// query options, and nextLink pagination.
package odata

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// EscapeString doubles single quotes per the OData literal escaping rule.
func EscapeString(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// AlternateKeySegment renders a key map as an alternate key path segment,
// e.g. "accountnumber='A-1',name='Contoso'". Keys are emitted in sorted
// order so the segment is deterministic.
func AlternateKeySegment(keys map[string]string) (string, error) {
	if len(keys) == 0 {
		return "", fmt.Errorf("alternate key map is empty")
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s='%s'", k, EscapeString(keys[k])))
	}
	return strings.Join(parts, ","), nil
}

// SanitizeGUID strips surrounding whitespace and a single pair of braces.
// Inner braces are preserved so alternate key segments remain untouched.
func SanitizeGUID(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	return strings.TrimSpace(trimmed)
}

// Query holds the standard OData system query options used by list calls.
type Query struct {
	Select    string
	Filter    string
	OrderBy   string
	Top       int
	SkipToken string
}

// Values renders the non-empty options as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Select != "" {
		v.Set("$select", q.Select)
	}
	if q.Filter != "" {
		v.Set("$filter", q.Filter)
	}
	if q.OrderBy != "" {
		v.Set("$orderby", q.OrderBy)
	}
	if q.Top > 0 {
		v.Set("$top", strconv.Itoa(q.Top))
	}
	if q.SkipToken != "" {
		v.Set("$skiptoken", q.SkipToken)
	}
	return v
}

// SplitNextLink breaks an @odata.nextLink into a path (relative to the API
// base) and its query parameters. Absolute links keep only path and query;
// the caller's client supplies the host.
func SplitNextLink(link string) (path string, params url.Values, err error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", nil, fmt.Errorf("parsing nextLink %q: %w", link, err)
	}
	return strings.TrimPrefix(u.Path, "/"), u.Query(), nil
}

// SkipTokenFromLink extracts the $skiptoken parameter from a nextLink, or
// returns "" when absent.
func SkipTokenFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	q := u.Query()
	if tok := q.Get("$skiptoken"); tok != "" {
		return tok
	}
	return q.Get("$skipToken")
}
