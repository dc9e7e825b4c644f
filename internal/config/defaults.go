package config

import (
	"path/filepath"
	"time"
)

// DefaultDataDir is used when storage.data_dir is unset.
const DefaultDataDir = "/usr/local/var/rewind/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultDataDir
	}
	dataDir := cfg.Storage.DataDir
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(dataDir, "db", "records.db")
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = filepath.Join(dataDir, "indices", "bleve")
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = filepath.Join(dataDir, "indices", "vectors")
	}
	if cfg.Storage.IntakeDir == "" {
		cfg.Storage.IntakeDir = filepath.Join(dataDir, "intake")
	}
	if cfg.Storage.ArchiveDir == "" {
		cfg.Storage.ArchiveDir = filepath.Join(dataDir, "archive")
	}
	if cfg.Storage.PauseFile == "" {
		cfg.Storage.PauseFile = filepath.Join(dataDir, "rewind.pause")
	}

	if cfg.Capture.Interval == 0 {
		cfg.Capture.Interval = 2 * time.Second
	}
	if cfg.Capture.SimilarityThreshold == 0 {
		cfg.Capture.SimilarityThreshold = 5
	}
	if cfg.Capture.WindowBlacklist == nil {
		cfg.Capture.WindowBlacklist = []string{"incognito", "private browsing", "bitwarden", "keepass", "1password"}
	}
	if len(cfg.Capture.WindowCommand) == 0 {
		cfg.Capture.WindowCommand = []string{"hyprctl", "activewindow", "-j"}
	}
	if len(cfg.Capture.ScreenshotCommand) == 0 {
		cfg.Capture.ScreenshotCommand = []string{"grim", "-t", "png", "-l", "0", "-"}
	}

	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 2
	}
	if cfg.Ingest.PollInterval == 0 {
		cfg.Ingest.PollInterval = 2 * time.Second
	}
	if cfg.Ingest.MaxEmbedAttempts == 0 {
		cfg.Ingest.MaxEmbedAttempts = 3
	}
	if cfg.Ingest.RetryBackoff == 0 {
		cfg.Ingest.RetryBackoff = 2 * time.Second
	}
	if cfg.Ingest.RetryRate == 0 {
		cfg.Ingest.RetryRate = 5
	}
	if cfg.Ingest.ThumbnailWidth == 0 {
		cfg.Ingest.ThumbnailWidth = 1280
	}
	if cfg.Ingest.JPEGQuality == 0 {
		cfg.Ingest.JPEGQuality = 80
	}

	if cfg.Embedding.VisualModelPath == "" {
		cfg.Embedding.VisualModelPath = filepath.Join(dataDir, "models", "clip-vit-b-32-visual.onnx")
	}
	if cfg.Embedding.TextModelPath == "" {
		cfg.Embedding.TextModelPath = filepath.Join(dataDir, "models", "clip-vit-b-32-text.onnx")
	}
	if cfg.Embedding.VocabPath == "" {
		cfg.Embedding.VocabPath = filepath.Join(dataDir, "models", "vocab.json")
	}
	if cfg.Embedding.MergesPath == "" {
		cfg.Embedding.MergesPath = filepath.Join(dataDir, "models", "merges.txt")
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.ImageSize == 0 {
		cfg.Embedding.ImageSize = 224
	}
	if cfg.Embedding.ContextLength == 0 {
		cfg.Embedding.ContextLength = 77
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.OCR.Command == "" {
		cfg.OCR.Command = "tesseract"
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 30 * time.Second
	}

	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.RecentLimit == 0 {
		cfg.Search.RecentLimit = 12
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 30
	}
	if cfg.Search.MinSimilarity == 0 {
		cfg.Search.MinSimilarity = 0.2
	}
	if cfg.Search.Fusion == "" {
		cfg.Search.Fusion = "max"
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 200
	}
}
