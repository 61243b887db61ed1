package gcp

import (
	"errors"
	"testing"
)

func setStorageEnv(t *testing.T, mode, emulator, bucket, publicBase string) {
	t.Helper()
	t.Setenv("OBJECT_STORAGE_MODE", mode)
	t.Setenv("STORAGE_EMULATOR_HOST", emulator)
	t.Setenv("MEDIA_GCS_BUCKET_NAME", bucket)
	t.Setenv("MEDIA_CDN_DOMAIN", "")
	t.Setenv("OBJECT_STORAGE_PUBLIC_BASE_URL", publicBase)
}

func TestMediaStoreConfigFromEnvModes(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		emulator string
		want     StorageMode
	}{
		{"default gcs", "", "", StorageModeGCS},
		{"explicit gcs ignores emulator host", "gcs", "http://fake-gcs:4443", StorageModeGCS},
		{"explicit emulator", "GCS_EMULATOR", "http://fake-gcs:4443", StorageModeGCSEmulator},
		{"emulator host implies emulator", "", "http://fake-gcs:4443/", StorageModeGCSEmulator},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			setStorageEnv(t, c.mode, c.emulator, "media", "")
			cfg, err := MediaStoreConfigFromEnv()
			if err != nil {
				t.Fatalf("MediaStoreConfigFromEnv: %v", err)
			}
			if cfg.Mode != c.want {
				t.Fatalf("mode: want=%q got=%q", c.want, cfg.Mode)
			}
			if cfg.MaxFileBytes != DefaultMaxUploadBytes {
				t.Fatalf("max bytes: want=%d got=%d", DefaultMaxUploadBytes, cfg.MaxFileBytes)
			}
		})
	}
}

func TestMediaStoreConfigFromEnvErrors(t *testing.T) {
	setStorageEnv(t, "local", "", "media", "")
	if _, err := MediaStoreConfigFromEnv(); err == nil {
		t.Fatalf("invalid mode: expected error")
	}

	setStorageEnv(t, "", "", "", "")
	if _, err := MediaStoreConfigFromEnv(); !errors.Is(err, ErrMissingBucket) {
		t.Fatalf("missing bucket: want ErrMissingBucket got=%v", err)
	}

	setStorageEnv(t, "gcs_emulator", "", "media", "")
	if _, err := MediaStoreConfigFromEnv(); !errors.Is(err, ErrMissingEmulatorHost) {
		t.Fatalf("missing emulator host: want ErrMissingEmulatorHost got=%v", err)
	}

	setStorageEnv(t, "gcs_emulator", "fake-gcs:4443", "media", "")
	if _, err := MediaStoreConfigFromEnv(); err == nil {
		t.Fatalf("relative emulator host: expected error")
	}

	setStorageEnv(t, "", "", "media", "localhost:4443")
	if _, err := MediaStoreConfigFromEnv(); err == nil {
		t.Fatalf("relative public base url: expected error")
	}
}
