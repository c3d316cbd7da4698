// Package storage keeps uploaded article images.
//
// Two backends implement ImageStore: S3Store for any S3-compatible object
// store (AWS, MinIO) and DiskStore for a local directory served by the app.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageStore saves an image and hands back the public URL it is served
// from. Delete takes that same URL.
type ImageStore interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// AllowedExtensions lists the image types accepted for upload.
var AllowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Extension returns the lowercased extension of filename and whether it
// is an accepted image type.
func Extension(filename string) (string, bool) {
	ext := strings.ToLower(path.Ext(filename))
	_, ok := AllowedExtensions[ext]
	return ext, ok
}

// newKey returns a unique object key that keeps the original extension,
// e.g. "articles/2026/3/1/0b6f...-....png".
func newKey(filename string) string {
	d := time.Now()
	ext, _ := Extension(filename)
	return fmt.Sprintf("articles/%d/%d/%d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
