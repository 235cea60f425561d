// ABOUTME: Local basis reuse for delta-aware downloads.
// ABOUTME: Skips the transfer when an identical package is already on disk.
package feedz

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// reuseLocal looks for a byte-identical copy of pkg at the hint path. It only
// applies when the feed reported a hash, and any failure means a full download.
func (r *Repository) reuseLocal(pkg Package, hint string) (io.ReadCloser, bool) {
	if pkg.Hash == "" || hint == "" {
		return nil, false
	}

	logger := r.client.logger
	for _, candidate := range basisCandidates(pkg, hint) {
		same, err := matchesPackage(candidate, pkg)
		if err != nil {
			logger.Debug("skipping similar package", "path", candidate, "error", err)
			continue
		}
		if !same {
			continue
		}
		f, err := os.Open(candidate)
		if err != nil {
			logger.Debug("skipping similar package", "path", candidate, "error", err)
			continue
		}
		logger.Info("Found an identical local package, skipping the transfer", "path", candidate)
		return f, true
	}

	logger.Debug("no identical local package found, downloading in full", "hint", hint)
	return nil, false
}

// basisCandidates lists the files a hint refers to: the file itself, or the
// packages in a directory that share the id and extension.
func basisCandidates(pkg Package, hint string) []string {
	info, err := os.Stat(hint)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		return []string{hint}
	}

	pattern := filepath.Join(hint, escapeGlob(pkg.PackageID)+".*"+escapeGlob(pkg.Extension))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

func matchesPackage(path string, pkg Package) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	if pkg.Size > 0 && info.Size() != pkg.Size {
		return false, nil
	}

	sum, err := fileSHA256(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(sum, pkg.Hash), nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return replacer.Replace(s)
}
