package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalStore keeps uploaded import files on local disk. Stored paths are
// relative to BaseDir so they survive a BaseDir relocation.
type LocalStore struct {
	BaseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	if baseDir == "" {
		baseDir = "."
	}
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) Save(ctx context.Context, fileName string, body io.Reader) (string, error) {
	_ = ctx

	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir %s: %w", s.BaseDir, err)
	}

	name := uuid.NewString() + "-" + sanitizeName(fileName)
	path := filepath.Join(s.BaseDir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", path, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close file %s: %w", path, err)
	}

	return name, nil
}

func (s *LocalStore) Open(ctx context.Context, sourcePath string) (io.ReadCloser, error) {
	_ = ctx

	file, err := os.Open(s.resolve(sourcePath))
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", sourcePath, err)
	}
	return file, nil
}

func (s *LocalStore) Remove(ctx context.Context, sourcePath string) error {
	_ = ctx

	if err := os.Remove(s.resolve(sourcePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file %s: %w", sourcePath, err)
	}
	return nil
}

func (s *LocalStore) resolve(sourcePath string) string {
	if filepath.IsAbs(sourcePath) {
		return sourcePath
	}
	return filepath.Join(s.BaseDir, sourcePath)
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == "_" {
		return "upload"
	}
	return name
}
