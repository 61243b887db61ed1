package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	pkgerrors "github.com/BabaYagaSystems/aroundly-backend/internal/pkg/errors"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

var ErrFileTooLarge = fmt.Errorf("%w: media file exceeds upload limit", pkgerrors.ErrInvalidArgument)

// objectWriter is the slice of the bucket API the media store needs.
type objectWriter interface {
	Write(ctx context.Context, key, contentType string, body io.Reader) (int64, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type MediaStore struct {
	log     *logger.Logger
	cfg     MediaStoreConfig
	objects objectWriter
	now     func() time.Time
}

func NewMediaStore(ctx context.Context, log *logger.Logger, cfg MediaStoreConfig) (*MediaStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate media store config: %w", err)
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	store := newMediaStore(log, cfg, &gcsObjects{bucket: client.Bucket(cfg.Bucket), client: client})
	store.log.Info("Media store initialized", "mode", cfg.Mode, "bucket", cfg.Bucket, "cdn_domain", cfg.CDNDomain, "public_base_url", cfg.PublicBaseURL)
	return store, nil
}

func newMediaStore(log *logger.Logger, cfg MediaStoreConfig, objects objectWriter) *MediaStore {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxUploadBytes
	}
	return &MediaStore{
		log:     log.With("service", "MediaStore"),
		cfg:     cfg,
		objects: objects,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func newStorageClient(ctx context.Context, cfg MediaStoreConfig) (*storage.Client, error) {
	if cfg.Emulated() {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

// UploadAll stores every file or none: objects written before a failure are removed again.
func (s *MediaStore) UploadAll(ctx context.Context, files []incidents.MediaUpload) ([]incidents.MediaRef, error) {
	out := make([]incidents.MediaRef, 0, len(files))
	for i, f := range files {
		if f.Body == nil {
			s.rollback(ctx, out)
			return nil, fmt.Errorf("%w: media file %d has no body", pkgerrors.ErrInvalidArgument, i)
		}
		if f.Size > s.cfg.MaxFileBytes {
			s.rollback(ctx, out)
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, f.Filename, f.Size)
		}
		key := objectKey(s.now(), f.Filename, f.ContentType)
		ct := strings.TrimSpace(f.ContentType)
		if ct == "" {
			ct = contentTypeForKey(key)
		}
		wctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		n, err := s.objects.Write(wctx, key, ct, io.LimitReader(f.Body, s.cfg.MaxFileBytes+1))
		cancel()
		if err == nil && n > s.cfg.MaxFileBytes {
			_ = s.objects.Delete(ctx, key)
			err = fmt.Errorf("%w: %s", ErrFileTooLarge, f.Filename)
		}
		if err != nil {
			s.rollback(ctx, out)
			return nil, fmt.Errorf("upload %s: %w", f.Filename, err)
		}
		out = append(out, incidents.MediaRef{Key: key, ContentType: ct, URL: s.PublicURL(key)})
	}
	return out, nil
}

func (s *MediaStore) rollback(ctx context.Context, refs []incidents.MediaRef) {
	for _, r := range refs {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := s.objects.Delete(dctx, r.Key); err != nil {
			s.log.Warn("Failed to remove orphaned media object", "key", r.Key, "error", err)
		}
		cancel()
	}
}

func (s *MediaStore) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	switch {
	case s.cfg.CDNDomain != "":
		return fmt.Sprintf("https://%s/%s", s.cfg.CDNDomain, key)
	case s.cfg.Emulated():
		base := s.cfg.PublicBaseURL
		if base == "" {
			base = s.cfg.EmulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(s.cfg.Bucket), url.PathEscape(key))
	case s.cfg.PublicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", s.cfg.PublicBaseURL, s.cfg.Bucket, key)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.cfg.Bucket, key)
	}
}

func (s *MediaStore) Close() error {
	if s == nil || s.objects == nil {
		return nil
	}
	return s.objects.Close()
}

// objectKey is incidents/yyyy/mm/dd/<uuid><ext>; client file names never reach the bucket.
func objectKey(now time.Time, filename, contentType string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if ext == "" || len(ext) > 8 {
		ext = extForContentType(contentType)
	}
	return fmt.Sprintf("incidents/%s/%s%s", now.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}

func extForContentType(ct string) string {
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	}
	return ""
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	}
	return "application/octet-stream"
}

type gcsObjects struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

func (g *gcsObjects) Write(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	n, err := io.Copy(w, body)
	if err != nil {
		_ = w.Close()
		return n, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return n, nil
}

func (g *gcsObjects) Delete(ctx context.Context, key string) error {
	if err := g.bucket.Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete GCS object %q: %w", key, err)
	}
	return nil
}

func (g *gcsObjects) Close() error { return g.client.Close() }
