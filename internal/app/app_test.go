package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/receipts-compiler/internal/common"
	"github.com/joseph-ayodele/receipts-compiler/internal/events"
)

func localConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := common.LoadConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(dir, "db", "receipts.db")
	cfg.Database.ServiceDSN = ""
	cfg.Storage.Backend = "local"
	cfg.Storage.LocalDir = filepath.Join(dir, "objects")
	cfg.Events.AMQPURL = ""
	return cfg
}

func TestNewLocalApp(t *testing.T) {
	cfg := localConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Restricted != a.Privileged {
		t.Fatalf("sqlite mode should share one handle")
	}
	if _, ok := a.Publisher.(events.Noop); !ok {
		t.Fatalf("expected the no-op publisher without AMQP_URL, got %T", a.Publisher)
	}

	checks := a.HealthChecks()
	if err := checks["exports_bucket"](context.Background()); err == nil {
		t.Fatalf("missing bucket directory should fail the probe")
	}
	for _, b := range []string{cfg.Storage.ReceiptsBucket, cfg.Storage.ExportsBucket} {
		if err := os.MkdirAll(filepath.Join(cfg.Storage.LocalDir, b), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	for name, check := range checks {
		if err := check(context.Background()); err != nil {
			t.Fatalf("check %s: %v", name, err)
		}
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := localConfig(t)
	cfg.Database.Driver = "oracle"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected an error for an unknown driver")
	}
}
