package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

// ErrForeignURL is returned by KeyFromURL when the URL does not point into the bucket.
var ErrForeignURL = errors.New("url is not served from this bucket")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader is the object storage gateway. Keys are bucket-relative paths
// such as "teams/{id}/logo/{uuid}.png".
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string

	// KeyFromURL reverses GetPublicURL.
	KeyFromURL(publicURL string) (string, error)
}

// publicURL joins base and key with exactly one slash.
func publicURL(base, key string) string {
	if base == "" || key == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}

// keyFromURL strips base from publicURL and returns the remaining object key.
func keyFromURL(base, publicURL string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(publicURL)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(u.Host, b.Host) {
		return "", ErrForeignURL
	}

	prefix := strings.TrimSuffix(b.Path, "/") + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(u.Path, prefix)
	if key == "" {
		return "", ErrForeignURL
	}
	return key, nil
}
