package gcp

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"google.golang.org/api/option"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"

	DefaultMaxUploadBytes = 25 << 20
)

var (
	ErrMissingBucket       = errors.New("missing env var MEDIA_GCS_BUCKET_NAME")
	ErrMissingEmulatorHost = errors.New("OBJECT_STORAGE_MODE=gcs_emulator requires STORAGE_EMULATOR_HOST")
)

// MediaStoreConfig locates the bucket that holds incident media and how its objects are served.
type MediaStoreConfig struct {
	Mode         StorageMode
	EmulatorHost string
	Bucket       string
	// CDNDomain wins over every other public URL form when set.
	CDNDomain     string
	PublicBaseURL string
	MaxFileBytes  int64
}

func (c MediaStoreConfig) Emulated() bool { return c.Mode == StorageModeGCSEmulator }

// MediaStoreConfigFromEnv reads MEDIA_GCS_BUCKET_NAME, MEDIA_CDN_DOMAIN, OBJECT_STORAGE_MODE,
// STORAGE_EMULATOR_HOST and OBJECT_STORAGE_PUBLIC_BASE_URL. Without an explicit mode a set
// emulator host selects the emulator.
func MediaStoreConfigFromEnv() (MediaStoreConfig, error) {
	cfg := MediaStoreConfig{
		EmulatorHost:  strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/"),
		Bucket:        strings.TrimSpace(os.Getenv("MEDIA_GCS_BUCKET_NAME")),
		CDNDomain:     strings.TrimSpace(os.Getenv("MEDIA_CDN_DOMAIN")),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL")), "/"),
		MaxFileBytes:  DefaultMaxUploadBytes,
	}
	switch mode := StorageMode(strings.ToLower(strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE")))); mode {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
		}
	case StorageModeGCS, StorageModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", mode, StorageModeGCS, StorageModeGCSEmulator)
	}
	return cfg, cfg.Validate()
}

func (c MediaStoreConfig) Validate() error {
	if c.Bucket == "" {
		return ErrMissingBucket
	}
	if c.PublicBaseURL != "" && !absoluteURL(c.PublicBaseURL) {
		return fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443", c.PublicBaseURL)
	}
	if !c.Emulated() {
		return nil
	}
	if c.EmulatorHost == "" {
		return ErrMissingEmulatorHost
	}
	if !absoluteURL(c.EmulatorHost) {
		return fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", c.EmulatorHost)
	}
	return nil
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && strings.TrimSpace(u.Scheme) != "" && strings.TrimSpace(u.Host) != ""
}

// ClientOptionsFromEnv accepts inline JSON or a file path for service account credentials.
func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
