package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
capture:
  interval: 5s
  similarity_threshold: 3
  window_blacklist: ["Incognito", "Bank"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Capture.Interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", cfg.Capture.Interval)
	}
	if cfg.Capture.SimilarityThreshold != 3 {
		t.Errorf("similarity_threshold = %d, want 3", cfg.Capture.SimilarityThreshold)
	}
	if len(cfg.Capture.WindowBlacklist) != 2 || cfg.Capture.WindowBlacklist[1] != "Bank" {
		t.Errorf("window_blacklist = %v", cfg.Capture.WindowBlacklist)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_dataDirRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "./data"
  database_path: "./custom/records.db"
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data"); cfg.Storage.DataDir != want {
		t.Errorf("data_dir = %s, want %s", cfg.Storage.DataDir, want)
	}
	if want := filepath.Join(dir, "custom", "records.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "intake"); cfg.Storage.IntakeDir != want {
		t.Errorf("intake_dir = %s, want %s", cfg.Storage.IntakeDir, want)
	}
	if want := filepath.Join(dir, "data", "rewind.pause"); cfg.Storage.PauseFile != want {
		t.Errorf("pause_file = %s, want %s", cfg.Storage.PauseFile, want)
	}
}

func TestLoad_rejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold out of range", "capture:\n  similarity_threshold: 65\n"},
		{"unknown vector backend", "vector:\n  index_type: faiss\n"},
		{"pgvector without dsn", "vector:\n  index_type: pgvector\n"},
		{"unknown fusion", "search:\n  fusion: weighted\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Capture.Interval != 2*time.Second {
		t.Errorf("default interval: got %v", cfg.Capture.Interval)
	}
	if cfg.Capture.DedupWindow != 0 {
		t.Errorf("default dedup window should be unbounded, got %v", cfg.Capture.DedupWindow)
	}
	if cfg.Search.DefaultLimit != 10 || cfg.Search.MaxLimit != 100 {
		t.Errorf("default limits: got %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if cfg.Search.Fusion != "max" {
		t.Errorf("default fusion: got %s", cfg.Search.Fusion)
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("default dimensions: got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Ingest.MaxEmbedAttempts != 3 {
		t.Errorf("default max embed attempts: got %d", cfg.Ingest.MaxEmbedAttempts)
	}
	if cfg.Vector.IndexType != "memory" {
		t.Errorf("default index type: got %s", cfg.Vector.IndexType)
	}
	if len(cfg.Capture.WindowBlacklist) == 0 {
		t.Error("window blacklist should be set by default")
	}
	if cfg.Storage.DatabasePath != filepath.Join(DefaultDataDir, "db", "records.db") {
		t.Errorf("database path: got %s", cfg.Storage.DatabasePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestOptionalBools(t *testing.T) {
	f := false
	c := &CaptureConfig{}
	if !c.EnabledOrDefault() {
		t.Error("capture should be enabled when unset")
	}
	c.Enabled = &f
	if c.EnabledOrDefault() {
		t.Error("capture should be disabled when set false")
	}
	i := &IngestConfig{}
	if !i.RetainFramesOrDefault() {
		t.Error("frames should be retained when unset")
	}
	i.RetainFrames = &f
	if i.RetainFramesOrDefault() {
		t.Error("frames should not be retained when set false")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DataDir: dir},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
