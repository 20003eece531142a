package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize is the largest file the importer will read (8 MB).
const DefaultMaxFileSize int64 = 8 << 20

// File is one candidate discovered under the import root.
type File struct {
	Path    string // Absolute path on disk.
	RelPath string // Slash-separated path relative to the root.
	Size    int64
	Hash    string // SHA-256 hex digest of the content.
}

// Selection controls which files Select returns.
type Selection struct {
	Root        string
	Include     []string // Empty means everything.
	Exclude     []string
	MaxFileSize int64 // 0 uses DefaultMaxFileSize.
}

// Select walks sel.Root in lexical order and returns the regular, non-binary
// files that pass the include and exclude globs.
func Select(sel Selection) ([]File, error) {
	root, err := filepath.Abs(sel.Root)
	if err != nil {
		return nil, fmt.Errorf("importer: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	if !info.IsDir() {
		return selectSingle(root, info)
	}

	maxSize := sel.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchesAny(rel, sel.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if len(sel.Include) > 0 && !matchesAny(rel, sel.Include) {
			return nil
		}
		if matchesAny(rel, sel.Exclude) {
			return nil
		}

		fi, err := d.Info()
		if err != nil || fi.Size() > maxSize {
			return nil
		}
		if isBinary(path) {
			return nil
		}
		hash, err := hashFile(path)
		if err != nil {
			return nil
		}
		files = append(files, File{Path: path, RelPath: rel, Size: fi.Size(), Hash: hash})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importer: traversal: %w", err)
	}
	return files, nil
}

// selectSingle lets a file path stand in for a directory; globs are not
// applied to an explicitly named file.
func selectSingle(path string, info fs.FileInfo) ([]File, error) {
	hash, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	return []File{{Path: path, RelPath: filepath.Base(path), Size: info.Size(), Hash: hash}}, nil
}

// matchesAny checks rel against each doublestar pattern, and also the
// pattern against the bare filename.
func matchesAny(rel string, patterns []string) bool {
	base := filepath.Base(rel)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// isBinary looks for a NUL byte in the first 512 bytes.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return true
	}
	for _, b := range buf[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
