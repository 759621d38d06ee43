package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStorage, dosyaları lokal diske yazan provider. Geliştirme ortamı
// içindir; URL'ler sunucunun static mount'u üzerinden servis edilir.
type DiskStorage struct {
	root    string
	baseURL string
}

// NewDiskStorage, constructor. root dizinini yoksa oluşturur.
func NewDiskStorage(root, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DiskStorage{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (d *DiskStorage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	full, err := d.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return d.PublicURL(path), nil
}

func (d *DiskStorage) PublicURL(path string) string {
	return d.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (d *DiskStorage) Delete(ctx context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve, path'i root altına sabitler. Path traversal
// (../../etc/passwd gibi) root dışına çıkamaz.
func (d *DiskStorage) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(d.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(d.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid path: %s", path)
	}
	return full, nil
}
