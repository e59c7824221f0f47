package blobstore

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("object not found")

// Object describes a stored blob. URL is empty when the store does not
// expose public links.
type Object struct {
	Path        string
	URL         string
	ContentType string
	Size        int
}

type Store interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (Object, error)
	PublicURL(path string) (string, bool)
	Download(ctx context.Context, path string) ([]byte, error)
}

// publicURL joins a configured base URL and an object path.
func publicURL(base string, path string) (string, bool) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", false
	}
	return base + "/" + strings.TrimLeft(path, "/"), true
}
