package storage

import (
	"testing"
	"time"
)

func TestObjectKeyLayout(t *testing.T) {
	at := time.Date(2024, time.March, 5, 23, 30, 0, 0, time.FixedZone("CST", -6*3600))

	got := ObjectKey("austin", "run-1", at, ".json")
	want := "raw/austin/2024/03/06/run-1.json"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestObjectKeyDefaultsExtension(t *testing.T) {
	at := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if got := ObjectKey("houston", "r", at, ""); got != "raw/houston/2024/01/01/r.bin" {
		t.Fatalf("unexpected key %q", got)
	}
}

type disabledConfig struct{}

func (disabledConfig) GetMinIOEndpoint() string    { return "" }
func (disabledConfig) GetMinIOAccessKey() string   { return "" }
func (disabledConfig) GetMinIOSecretKey() string   { return "" }
func (disabledConfig) GetMinIOUseSSL() bool        { return false }
func (disabledConfig) GetRawArchiveBucket() string { return "" }
func (disabledConfig) IsArchiveEnabled() bool      { return false }

func TestNewMinIOArchiveRequiresConfig(t *testing.T) {
	if _, err := NewMinIOArchive(disabledConfig{}); err == nil {
		t.Fatalf("expected error when archive is disabled")
	}
}
