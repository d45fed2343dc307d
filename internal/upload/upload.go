// Package upload persists notice attachments on the local filesystem,
// gated by a fixed extension allow-list.
package upload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"noticeboard/internal/utils"
	"noticeboard/pkg/types"
)

// File types follow the uploaded file's lowercased extension.
var allowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"mp4":  {},
	"mp3":  {},
	"txt":  {},
}

const collisionSuffixSize = 8

type Uploader struct {
	dir string
}

func NewUploader(dir string) (*Uploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &Uploader{dir: dir}, nil
}

// Save validates the filename against the allow-list and writes the bytes
// under the upload directory. It returns the stored path and the file-type
// tag. Nothing is written when validation fails.
func (u *Uploader) Save(filename string, src io.Reader) (string, string, error) {
	if filename == "" {
		return "", "", fmt.Errorf("%w: no selected file", types.ErrInvalidUpload)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "", "", fmt.Errorf("%w: missing file extension", types.ErrInvalidUpload)
	}

	if _, ok := allowedExtensions[ext]; !ok {
		return "", "", fmt.Errorf("%w: .%s", types.ErrDisallowedType, ext)
	}

	name := sanitizeFilename(filename)

	// Exclusive create; a same-named upload is renamed rather than
	// overwritten so the existing notice keeps its file.
	path := filepath.Join(u.dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	for errors.Is(err, fs.ErrExist) {
		path = filepath.Join(u.dir, withSuffix(name, utils.NanoIDSize(collisionSuffixSize)))
		dst, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", "", fmt.Errorf("write upload file: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("close upload file: %w", err)
	}

	return path, ext, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (u *Uploader) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload file: %w", err)
	}

	return nil
}

// sanitizeFilename strips any directory components and replaces runes
// outside [A-Za-z0-9._-] so the name is safe to join under the upload dir.
func sanitizeFilename(filename string) string {
	name := filepath.Base(filepath.Clean(filename))
	name = strings.ReplaceAll(name, "\\", "_")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return strings.Trim(b.String(), ".")
}

func withSuffix(name, suffix string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s-%s%s", base, suffix, ext)
}
