// Package config provides configuration loading and structs for the rewind daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Capture   CaptureConfig   `yaml:"capture"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	OCR       OCRConfig       `yaml:"ocr"`
	Vector    VectorConfig    `yaml:"vector"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, indices, intake queue and archive.
// Empty paths are derived from DataDir.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir"`
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	IntakeDir       string `yaml:"intake_dir"`
	ArchiveDir      string `yaml:"archive_dir"`
	PauseFile       string `yaml:"pause_file"`
}

// CaptureConfig holds the watcher settings.
type CaptureConfig struct {
	Interval time.Duration `yaml:"interval"`
	// SimilarityThreshold is a Hamming distance in bits (0-64) between perceptual hashes.
	// A frame closer than this to the last accepted frame is dropped.
	SimilarityThreshold int `yaml:"similarity_threshold"`
	// DedupWindow bounds how long a reference frame suppresses duplicates. Zero means no bound.
	DedupWindow       time.Duration `yaml:"dedup_window"`
	WindowBlacklist   []string      `yaml:"window_blacklist"`
	WindowCommand     []string      `yaml:"window_command"`
	ScreenshotCommand []string      `yaml:"screenshot_command"`
	Enabled           *bool         `yaml:"enabled"`
}

// EnabledOrDefault returns whether the watcher runs inside serve; defaults to true when unset.
func (c *CaptureConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// IngestConfig holds worker pool and retirement settings.
type IngestConfig struct {
	Workers          int           `yaml:"workers"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	MaxEmbedAttempts int           `yaml:"max_embed_attempts"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	RetryRate        float64       `yaml:"retry_rate"`
	RetainFrames     *bool         `yaml:"retain_frames"`
	ThumbnailWidth   int           `yaml:"thumbnail_width"`
	JPEGQuality      int           `yaml:"jpeg_quality"`
}

// RetainFramesOrDefault returns whether retired frames are archived; defaults to true when unset.
func (c *IngestConfig) RetainFramesOrDefault() bool {
	if c.RetainFrames != nil {
		return *c.RetainFrames
	}
	return true
}

// EmbeddingConfig holds the CLIP encoder settings.
type EmbeddingConfig struct {
	VisualModelPath string `yaml:"visual_model_path"`
	TextModelPath   string `yaml:"text_model_path"`
	// VocabPath and MergesPath point at the CLIP BPE tokenizer files. When either is
	// missing the text encoder falls back to a hashing tokenizer.
	VocabPath     string `yaml:"vocab_path"`
	MergesPath    string `yaml:"merges_path"`
	Dimensions    int    `yaml:"dimensions"`
	ImageSize     int    `yaml:"image_size"`
	ContextLength int    `yaml:"context_length"`
	CacheSize     int    `yaml:"cache_size"`
}

// OCRConfig holds the text extractor settings.
type OCRConfig struct {
	Command  string        `yaml:"command"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// VectorConfig selects the vector store backend.
type VectorConfig struct {
	IndexType   string `yaml:"index_type"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultLimit   int     `yaml:"default_limit"`
	MaxLimit       int     `yaml:"max_limit"`
	RecentLimit    int     `yaml:"recent_limit"`
	TopKCandidates int     `yaml:"top_k_candidates"`
	MinSimilarity  float64 `yaml:"min_similarity"`
	Fusion         string  `yaml:"fusion"`
	SnippetLength  int     `yaml:"snippet_length"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if cfg.Storage.DataDir != "" {
		cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	}
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.IntakeDir = expandPath(cfg.Storage.IntakeDir, configDir)
	cfg.Storage.ArchiveDir = expandPath(cfg.Storage.ArchiveDir, configDir)
	cfg.Storage.PauseFile = expandPath(cfg.Storage.PauseFile, configDir)
	cfg.Embedding.VisualModelPath = expandPath(cfg.Embedding.VisualModelPath, configDir)
	cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	cfg.Embedding.MergesPath = expandPath(cfg.Embedding.MergesPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Capture.SimilarityThreshold < 0 || c.Capture.SimilarityThreshold > 64 {
		return fmt.Errorf("capture.similarity_threshold must be within 0..64, got %d", c.Capture.SimilarityThreshold)
	}
	switch c.Vector.IndexType {
	case "memory":
	case "pgvector":
		if c.Vector.PostgresDSN == "" {
			return fmt.Errorf("vector.postgres_dsn is required for index_type pgvector")
		}
	default:
		return fmt.Errorf("unknown vector.index_type %q", c.Vector.IndexType)
	}
	switch c.Search.Fusion {
	case "max", "rrf":
	default:
		return fmt.Errorf("unknown search.fusion %q", c.Search.Fusion)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
