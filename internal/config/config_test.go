package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTOML(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFromCLIRequiresExactlyOneSource(t *testing.T) {
	t.Parallel()

	if _, err := FromCLI("", ""); err == nil {
		t.Fatalf("expected error for empty sources")
	}
	if _, err := FromCLI("a.toml", "conf.d"); err == nil {
		t.Fatalf("expected error for both sources")
	}
	src, err := FromCLI(" a.toml ", "")
	if err != nil {
		t.Fatalf("file source: %v", err)
	}
	if src.File != "a.toml" || src.Dir != "" {
		t.Fatalf("unexpected source %+v", src)
	}
}

func TestLoadSnapshotAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTOML(t, t.TempDir(), "config.toml", `
[service]
name = "providence-test"
`)
	cfg, err := LoadSnapshot(ConfigSource{File: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Mode != StorageModeMemory {
		t.Fatalf("storage mode = %q, want memory", cfg.Storage.Mode)
	}
	if !cfg.Ingest.HTTP.Enabled {
		t.Fatalf("http ingest should be enabled by default")
	}
	if cfg.Ingest.HTTP.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.Ingest.HTTP.Listen)
	}
	if cfg.Service.EscalationScanSec != 30 {
		t.Fatalf("escalation scan = %d", cfg.Service.EscalationScanSec)
	}
	if cfg.Service.HistoryRetentionDays != 90 {
		t.Fatalf("retention = %d", cfg.Service.HistoryRetentionDays)
	}
	if cfg.Notify.DefaultIntervalSec != 60 {
		t.Fatalf("notify interval = %d", cfg.Notify.DefaultIntervalSec)
	}
	if !cfg.Log.Console.Enabled {
		t.Fatalf("console sink should default to enabled")
	}
}

func TestLoadSnapshotNATSIngestFixedRouting(t *testing.T) {
	t.Parallel()

	path := writeTOML(t, t.TempDir(), "config.toml", `
[ingest.nats]
enabled = true
url = [" nats://one:4222 ", "nats://one:4222", "nats://two:4222"]
workers = 3
`)
	cfg, err := LoadSnapshot(ConfigSource{File: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Ingest.NATS.URL) != 2 {
		t.Fatalf("urls = %v, want deduplicated pair", cfg.Ingest.NATS.URL)
	}
	if cfg.Ingest.NATS.Subject != "providence.alerts" {
		t.Fatalf("subject = %q", cfg.Ingest.NATS.Subject)
	}
	if cfg.Ingest.NATS.Stream != "PROVIDENCE_ALERTS" {
		t.Fatalf("stream = %q", cfg.Ingest.NATS.Stream)
	}
	if cfg.Ingest.NATS.Workers != 3 {
		t.Fatalf("workers = %d", cfg.Ingest.NATS.Workers)
	}
}

func TestLoadSnapshotDirMergesFragments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTOML(t, dir, "10-service.toml", `
[service]
name = "providence"
sla_workers = 4
`)
	writeTOML(t, dir, "20-storage.toml", `
[storage]
mode = "postgres"

[storage.postgres]
host = "db.local"
database = "providence"
user = "app"
password = "secret"
`)
	cfg, err := LoadSnapshot(ConfigSource{Dir: dir})
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if cfg.Service.SlaWorkers != 4 {
		t.Fatalf("sla workers = %d", cfg.Service.SlaWorkers)
	}
	if cfg.Storage.Mode != StorageModePostgres {
		t.Fatalf("storage mode = %q", cfg.Storage.Mode)
	}
	conn := cfg.Storage.Postgres.ConnString()
	if !strings.Contains(conn, "db.local:5432") || !strings.Contains(conn, "sslmode=disable") {
		t.Fatalf("conn string = %q", conn)
	}
}

func TestLoadSnapshotRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown storage mode": `
[storage]
mode = "etcd"
`,
		"postgres without target": `
[storage]
mode = "postgres"
`,
		"telegram without token": `
[notify.telegram]
enabled = true
chat_id = "42"
`,
		"email without host": `
[notify.email]
enabled = true
from = "providence@example.com"
`,
		"bad log level": `
[log.console]
enabled = true
level = "verbose"
`,
	}
	for name, body := range cases {
		path := writeTOML(t, t.TempDir(), "config.toml", body)
		if _, err := LoadSnapshot(ConfigSource{File: path}); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
