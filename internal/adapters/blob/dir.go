package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const defaultMaxBytes = 10 << 20

// DirStore writes objects below a local directory that is served at a base
// URL, e.g. by the API's /files route.
type DirStore struct {
	root     string
	baseURL  string
	maxBytes int
}

var _ Store = (*DirStore)(nil)

// Option configures a DirStore.
type Option func(*DirStore)

// WithMaxBytes caps the size of a single object.
func WithMaxBytes(n int) Option {
	return func(d *DirStore) {
		if n > 0 {
			d.maxBytes = n
		}
	}
}

// NewDirStore creates root when needed.
func NewDirStore(root, baseURL string, opts ...Option) (*DirStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty root", ErrInvalidPath)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	d := &DirStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: defaultMaxBytes}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Root returns the directory objects are written to.
func (d *DirStore) Root() string { return d.root }

func (d *DirStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) > d.maxBytes {
		return "", ErrTooLarge
	}
	key, err := ObjectKey(path.Dir(name), path.Base(name))
	if err != nil {
		return "", err
	}
	full := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob folder: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return d.baseURL + "/" + key, nil
}

func (d *DirStore) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := strings.CutPrefix(url, d.baseURL+"/")
	if !ok {
		return ErrForeignURL
	}
	key = path.Clean(key)
	if key == "." || strings.HasPrefix(key, "..") || path.IsAbs(key) {
		return ErrInvalidPath
	}
	err := os.Remove(filepath.Join(d.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
