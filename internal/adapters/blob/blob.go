// Package blob stores submission images and hands back the URLs the core
// persists on teams.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Sentinel kinds for blob errors.
var (
	ErrNotFound    = errors.New("blob not found")
	ErrInvalidPath = errors.New("invalid blob path")
	ErrForeignURL  = errors.New("url not served by this store")
	ErrTooLarge    = errors.New("blob too large")
)

// Store uploads and deletes binary objects.
type Store interface {
	// Upload stores data under a new object name derived from name and
	// returns its public URL.
	Upload(ctx context.Context, name string, data []byte) (string, error)

	// Delete removes the object behind url.
	Delete(ctx context.Context, url string) error
}

// ObjectKey builds a collision-free key such as
// "teams/codeinators/3f0c....png" from a folder and an original file name.
func ObjectKey(folder, filename string) (string, error) {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" || strings.Contains(folder, "..") {
		return "", ErrInvalidPath
	}
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return folder + "/" + uuid.NewString() + ext, nil
}
