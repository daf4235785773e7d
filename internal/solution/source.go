package solution

import (
	"archive/zip"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UnpackToSource extracts a solution ZIP into a SolutionPackager-like
// layout under outDir/src: WebResources/** keeps its tree, every other
// member lands flat in Other/. The returned path is the src directory.
func UnpackToSource(zipPath, outDir string) (string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", zipPath, err)
	}
	defer zr.Close()

	src := filepath.Join(outDir, "src")
	for _, dir := range []string{"Other", "WebResources"} {
		if err := os.MkdirAll(filepath.Join(src, dir), 0o755); err != nil {
			return "", fmt.Errorf("creating source layout: %w", err)
		}
	}

	for _, member := range zr.File {
		if strings.HasSuffix(member.Name, "/") || member.FileInfo().IsDir() {
			continue
		}
		var rel string
		if strings.HasPrefix(strings.ToLower(member.Name), "webresources/") {
			rel = filepath.Join("WebResources", filepath.FromSlash(member.Name[len("webresources/"):]))
		} else {
			rel = filepath.Join("Other", path.Base(member.Name))
		}
		target, err := safeTarget(src, filepath.ToSlash(rel))
		if err != nil {
			return "", err
		}
		if err := extractFile(member, target); err != nil {
			return "", err
		}
	}
	return src, nil
}

// PackFromSource zips a SolutionPackager-like source tree back into a
// solution ZIP, inverting the UnpackToSource mapping.
func PackFromSource(srcDir, outZip string) error {
	if err := os.MkdirAll(filepath.Dir(outZip), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(outZip)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outZip, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	err = filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, "WebResources/") {
			// Other/* and stray root files pack back to the archive root.
			name = path.Base(name)
		}
		return addFile(zw, p, name)
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("packing %s: %w", srcDir, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", outZip, err)
	}
	return nil
}
