package solution

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Bump levels understood by BumpVersion.
const (
	BumpMajor = "major"
	BumpMinor = "minor"
	BumpPatch = "patch"
)

var versionRe = regexp.MustCompile(`<Version>([^<]+)</Version>`)

// NextVersion returns current bumped at the given level. Dataverse versions
// may carry a fourth (revision) segment; it is preserved as ".0" after a
// bump so reimports keep the expected shape.
func NextVersion(current, level string) (string, error) {
	parts := strings.Split(strings.TrimSpace(current), ".")
	fourPart := len(parts) == 4
	base := current
	if fourPart {
		base = strings.Join(parts[:3], ".")
	}

	v, err := semver.NewVersion(base)
	if err != nil {
		return "", fmt.Errorf("parsing version %q: %w", current, err)
	}

	var next semver.Version
	switch level {
	case BumpMajor:
		next = v.IncMajor()
	case BumpMinor:
		next = v.IncMinor()
	case BumpPatch:
		next = v.IncPatch()
	default:
		return "", fmt.Errorf("unknown bump level %q (use major, minor, or patch)", level)
	}

	out := next.String()
	if fourPart {
		out += ".0"
	}
	return out, nil
}

// ReadVersion extracts the <Version> value from a solution.xml file.
func ReadVersion(solutionXMLPath string) (string, error) {
	data, err := os.ReadFile(solutionXMLPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", solutionXMLPath, err)
	}
	m := versionRe.FindSubmatch(data)
	if m == nil {
		return "", fmt.Errorf("no <Version> element in %s", solutionXMLPath)
	}
	return string(m[1]), nil
}

// BumpVersion rewrites the <Version> element in solution.xml at the given
// level and returns the old and new version strings.
func BumpVersion(solutionXMLPath, level string) (oldVersion, newVersion string, err error) {
	data, err := os.ReadFile(solutionXMLPath)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", solutionXMLPath, err)
	}
	m := versionRe.FindSubmatch(data)
	if m == nil {
		return "", "", fmt.Errorf("no <Version> element in %s", solutionXMLPath)
	}
	oldVersion = string(m[1])

	newVersion, err = NextVersion(oldVersion, level)
	if err != nil {
		return "", "", err
	}

	updated := versionRe.ReplaceAll(data, []byte("<Version>"+newVersion+"</Version>"))
	if err := os.WriteFile(solutionXMLPath, updated, 0o644); err != nil {
		return "", "", fmt.Errorf("writing %s: %w", solutionXMLPath, err)
	}
	return oldVersion, newVersion, nil
}
