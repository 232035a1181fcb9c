package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/storage"
	"github.com/orbisplace/orbis-api/validator"
)

const (
	megabyte = 1 << 20

	DefaultPage  = 1
	DefaultLimit = models.DefaultPageLimit
	MaxLimit     = models.MaxPageLimit
)

// FileUpload is an image received from a client. Size is the declared size in bytes.
type FileUpload struct {
	Reader      io.Reader
	ContentType string
	Size        int64
	Filename    string
}

type imageRule struct {
	maxSize      int64
	allowedTypes []string
}

var (
	teamLogoRule    = imageRule{maxSize: 2 * megabyte, allowedTypes: []string{"image/jpeg", "image/png", "image/webp"}}
	teamBannerRule  = imageRule{maxSize: 5 * megabyte, allowedTypes: []string{"image/jpeg", "image/png", "image/webp"}}
	userProfileRule = imageRule{maxSize: 5 * megabyte, allowedTypes: []string{"image/jpeg", "image/png", "image/webp", "image/gif"}}
)

// validate runs before any lookup or storage call.
func (r imageRule) validate(file *FileUpload) error {
	if file == nil || file.Reader == nil || file.Size <= 0 {
		return ErrFileRequired
	}
	contentType := normalizeContentType(file.ContentType)
	allowed := false
	for _, t := range r.allowedTypes {
		if contentType == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %q, allowed: %s", ErrUnsupportedFileType, file.ContentType, strings.Join(r.allowedTypes, ", "))
	}
	if file.Size > r.maxSize {
		return fmt.Errorf("%w: maximum size is %dMB", ErrFileTooLarge, r.maxSize/megabyte)
	}
	return nil
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct
}

func GetExtensionFromContentType(contentType string) (string, error) {
	switch normalizeContentType(contentType) {
	case "image/jpeg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("could not determine file extension from content type: '%s'", contentType)
	}
}

// objectKey builds "{entity}/{id}/{purpose}/{uuid}{ext}".
func objectKey(entity, id, purpose, contentType string) (string, error) {
	ext, err := GetExtensionFromContentType(contentType)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s/%s%s", entity, id, purpose, uuid.NewString(), ext), nil
}

// CleanupRecorder counts failed best-effort deletions.
type CleanupRecorder interface {
	CleanupFailed(entity string)
}

type nopCleanupRecorder struct{}

func (nopCleanupRecorder) CleanupFailed(string) {}

// blobJanitor deletes objects whose references are gone. Failures are logged
// and counted, never returned.
type blobJanitor struct {
	uploader storage.FileUploader
	recorder CleanupRecorder
	logger   *slog.Logger
}

func newBlobJanitor(uploader storage.FileUploader, recorder CleanupRecorder, logger *slog.Logger) *blobJanitor {
	if recorder == nil {
		recorder = nopCleanupRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &blobJanitor{uploader: uploader, recorder: recorder, logger: logger}
}

func (j *blobJanitor) remove(ctx context.Context, entity string, publicURL *string) {
	if publicURL == nil || *publicURL == "" {
		return
	}
	key, err := j.uploader.KeyFromURL(*publicURL)
	if err == nil {
		err = j.uploader.Delete(ctx, key)
	}
	if err != nil {
		j.recorder.CleanupFailed(entity)
		j.logger.WarnContext(ctx, "failed to delete stored object",
			slog.String("entity", entity),
			slog.String("url", *publicURL),
			slog.String("key", key),
			slog.Any("error", err))
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// optionalString maps an explicitly supplied value to a column value: empty clears it.
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// checkPaging rejects page and limit values outside the accepted range; zero means default.
func checkPaging(v *validator.Validator, page, limit int) {
	v.Check(validator.Between(page, 0, models.MaxPage), "page", fmt.Sprintf("must be between 1 and %d", models.MaxPage))
	v.Check(validator.Between(limit, 0, MaxLimit), "limit", fmt.Sprintf("must be between 1 and %d", MaxLimit))
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
