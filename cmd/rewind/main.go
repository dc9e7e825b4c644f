// Package main is the rewind CLI entry point.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/rewind/internal/admin"
	"github.com/hyperjump/rewind/internal/archive"
	"github.com/hyperjump/rewind/internal/capture"
	"github.com/hyperjump/rewind/internal/cli"
	"github.com/hyperjump/rewind/internal/config"
	"github.com/hyperjump/rewind/internal/control"
	"github.com/hyperjump/rewind/internal/embedding"
	"github.com/hyperjump/rewind/internal/extract"
	"github.com/hyperjump/rewind/internal/ingest"
	"github.com/hyperjump/rewind/internal/keyword"
	"github.com/hyperjump/rewind/internal/models"
	"github.com/hyperjump/rewind/internal/queue"
	"github.com/hyperjump/rewind/internal/search"
	"github.com/hyperjump/rewind/internal/server"
	"github.com/hyperjump/rewind/internal/storage"
	"github.com/hyperjump/rewind/internal/vector"
	"github.com/hyperjump/rewind/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/rewind/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// errUnreachable means the daemon's API could not be contacted at all.
var errUnreachable = errors.New("server unreachable")

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, so running from a checkout uses the checkout's config.
// A missing default config yields the built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "search":
		runSearch()
	case "recent":
		runRecent()
	case "pause", "resume":
		runCaptureControl(command)
	case "status":
		runStatus()
	case "wipe":
		runWipe()
	case "compress":
		runCompress()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("rewind version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setup loads the config and builds a logger.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	return cfg, resolved, logger
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noCapture := fs.Bool("no-capture", false, "run ingestion and the API without the capture watcher")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, logger := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved), zap.String("data_dir", cfg.Storage.DataDir))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	pipelineOpts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.Ingest.RetainFramesOrDefault() {
		pipelineOpts = append(pipelineOpts, ingest.WithArchive(components.Archive))
	}
	ocr := extract.NewTesseractOCR(cfg.OCR.Command, cfg.OCR.Language, cfg.OCR.Timeout)
	pipeline := ingest.New(components.Queue, components.Storage, components.KeywordIndex, components.VectorIndex,
		components.Embedder, ocr, ingest.Options{
			Workers:          cfg.Ingest.Workers,
			PollInterval:     cfg.Ingest.PollInterval,
			MaxEmbedAttempts: cfg.Ingest.MaxEmbedAttempts,
			RetryBackoff:     cfg.Ingest.RetryBackoff,
			RetryRate:        cfg.Ingest.RetryRate,
		}, pipelineOpts...)

	var watcher *capture.Watcher
	wiperOpts := []admin.Option{admin.WithLogger(logger)}
	if cfg.Capture.EnabledOrDefault() && !*noCapture {
		watcher = capture.NewWatcher(
			capture.NewCommandWindowSource(cfg.Capture.WindowCommand, utils.RunCommand),
			capture.NewCommandScreen(cfg.Capture.ScreenshotCommand, utils.RunCommand),
			components.Queue,
			components.Control,
			capture.Options{
				Interval:    cfg.Capture.Interval,
				Threshold:   cfg.Capture.SimilarityThreshold,
				DedupWindow: cfg.Capture.DedupWindow,
				Blacklist:   cfg.Capture.WindowBlacklist,
			},
			capture.WithLogger(logger),
		)
		wiperOpts = append(wiperOpts, admin.WithCapture(watcher))
	}
	wiper := admin.NewWiper(pipeline.Gate(), components.Control, components.Storage, components.KeywordIndex,
		components.VectorIndex, components.Queue, components.Archive, wiperOpts...)
	srv := server.NewServer(components.Engine, components.Control, wiper, components.Inspector(cfg),
		components.Archive, &cfg.Server, logger)

	ingestCtx, stopIngest := context.WithCancel(context.Background())
	defer stopIngest()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pipeline.Run(ingestCtx); err != nil {
			logger.Error("ingestion failed", zap.Error(err))
		}
	}()

	captureCtx, stopCapture := context.WithCancel(context.Background())
	defer stopCapture()
	captureDone := make(chan struct{})
	if watcher != nil {
		go func() {
			defer close(captureDone)
			if err := watcher.Run(captureCtx); err != nil {
				logger.Error("capture failed", zap.Error(err))
			}
		}()
	} else {
		logger.Info("capture disabled")
		close(captureDone)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	components.Control.Stop()
	select {
	case <-captureDone:
	case <-time.After(cfg.Capture.Interval + 10*time.Second):
		logger.Warn("capture cycle did not finish in time")
	}
	stopCapture()
	stopIngest()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// searchArgsReorder moves flags given after the query to the front so flag.Parse sees them.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: rewind search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  rewind search stack trace
  rewind search --mode text "invoice 2041"
  rewind search --mode visual red chart --from 2026-03-01 --to 2026-03-07
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used when the server is not running)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = search local storage directly)")
	mode := fs.String("mode", "hybrid", "search mode: text, visual or hybrid")
	limit := fs.Int("limit", 10, "number of results")
	from := fs.String("from", "", "only captures at or after this time (RFC 3339 or YYYY-MM-DD)")
	to := fs.String("to", "", "only captures at or before this time (RFC 3339 or YYYY-MM-DD)")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}
	tr, err := models.ParseTimeRange(*from, *to)
	if err != nil {
		fatalf("Search failed: %v", err)
	}

	req := map[string]interface{}{"query": queryStr, "mode": *mode, "limit": *limit, "from": *from, "to": *to}
	var response models.SearchResponse
	err = apiCall(*serverURL, http.MethodPost, "/api/v1/search", req, &response)
	if errors.Is(err, errUnreachable) {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, cerr := initializeComponents(cfg, logger)
		if cerr != nil {
			fatalf("Failed to initialize: %v", cerr)
		}
		defer components.Close()
		query := &models.SearchQuery{Query: queryStr, Mode: models.SearchMode(*mode), Limit: *limit, Range: tr}
		res, serr := components.Engine.Search(context.Background(), query)
		if serr != nil {
			fatalf("Search failed: %v", serr)
		}
		response, err = *res, nil
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, &response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runRecent() {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used when the server is not running)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local storage directly)")
	limit := fs.Int("limit", 0, "number of captures (default from config)")
	offset := fs.Int("offset", 0, "skip this many captures")
	from := fs.String("from", "", "only captures at or after this time")
	to := fs.String("to", "", "only captures at or before this time")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}
	tr, err := models.ParseTimeRange(*from, *to)
	if err != nil {
		fatalf("Recent failed: %v", err)
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(*limit))
	params.Set("offset", strconv.Itoa(*offset))
	params.Set("from", *from)
	params.Set("to", *to)
	var out struct {
		Results []*models.SearchResult `json:"results"`
	}
	err = apiCall(*serverURL, http.MethodGet, "/api/v1/records?"+params.Encode(), nil, &out)
	if errors.Is(err, errUnreachable) {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, cerr := initializeComponents(cfg, logger)
		if cerr != nil {
			fatalf("Failed to initialize: %v", cerr)
		}
		defer components.Close()
		out.Results, err = components.Engine.Recent(context.Background(), tr, *offset, *limit)
	}
	if err != nil {
		fatalf("Recent failed: %v", err)
	}
	if err := cli.WriteRecords(os.Stdout, out.Results, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runCaptureControl toggles the pause file directly; the daemon polls it every cycle.
func runCaptureControl(action string) {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	ctrl := control.NewController(cfg.Storage.PauseFile)
	if action == "pause" {
		err = ctrl.Pause()
	} else {
		err = ctrl.Resume()
	}
	if err != nil {
		fatalf("Failed to %s capture: %v", action, err)
	}
	fmt.Printf("Capture %s\n", ctrl.State())
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used when the server is not running)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read local storage directly)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}
	var st admin.Status
	err = apiCall(*serverURL, http.MethodGet, "/api/v1/status", nil, &st)
	if errors.Is(err, errUnreachable) {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, cerr := initializeComponents(cfg, logger)
		if cerr != nil {
			fatalf("Failed to initialize: %v", cerr)
		}
		defer components.Close()
		local, serr := components.Inspector(cfg).Status(context.Background())
		if serr != nil {
			fatalf("Status failed: %v", serr)
		}
		st, err = *local, nil
	}
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, &st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runWipe() {
	fs := flag.NewFlagSet("wipe", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (used when the server is not running)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = wipe local storage directly)")
	yes := fs.Bool("yes", false, "confirm deletion of every capture, record, vector and archived frame")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if !*yes {
		fatalf("Refusing to wipe without --yes. This deletes all captured history and pauses capture.")
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		fatalf("%v", err)
	}
	var report admin.WipeReport
	err = apiCall(*serverURL, http.MethodPost, "/api/v1/wipe", map[string]string{"confirm": server.ConfirmWipe}, &report)
	if errors.Is(err, errUnreachable) {
		cfg, _, logger := setup(*configPath, false)
		defer logger.Sync()
		components, cerr := initializeComponents(cfg, logger)
		if cerr != nil {
			fatalf("Failed to initialize: %v", cerr)
		}
		defer components.Close()
		wiper := admin.NewWiper(&sync.Mutex{}, components.Control, components.Storage, components.KeywordIndex,
			components.VectorIndex, components.Queue, components.Archive, admin.WithLogger(logger))
		local, werr := wiper.Wipe(context.Background())
		if werr != nil {
			fatalf("Wipe failed: %v", werr)
		}
		report, err = *local, nil
	}
	if err != nil {
		fatalf("Wipe failed: %v", err)
	}
	if err := cli.WriteWipeReport(os.Stdout, &report, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runCompress() {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	workers := fs.Int("workers", archive.DefaultCompressWorkers, "number of concurrent conversions")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()
	arch := archive.New(cfg.Storage.ArchiveDir, cfg.Ingest.ThumbnailWidth, cfg.Ingest.JPEGQuality)
	n, err := admin.Compress(context.Background(), arch, *workers, logger)
	if err != nil {
		fatalf("Compress failed after %d frame(s): %v", n, err)
	}
	fmt.Printf("Compressed %d frame(s)\n", n)
}

// runInit writes a config file holding every default, for editing.
func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file to create")
	dataDir := fs.String("data-dir", "", "data directory (default: "+config.DefaultDataDir+")")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *dataDir, *force); err != nil {
		fatalf("Init failed: %v", err)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

func writeDefaultConfig(path, dataDir string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if dataDir != "" {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return err
		}
		dataDir = abs
	}
	cfg := &config.Config{Storage: config.StorageConfig{DataDir: dataDir}}
	config.ApplyDefaults(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	return config.Save(path, cfg)
}

// apiCall sends body as JSON to the daemon and decodes the response into out.
// It returns errUnreachable when serverURL is empty or nothing is listening.
func apiCall(serverURL, method, path string, body, out interface{}) error {
	if serverURL == "" {
		return errUnreachable
	}
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return fmt.Errorf("%w: %v", errUnreachable, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized application components.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Queue        *queue.Queue
	Archive      *archive.Archive
	Control      *control.Controller
	Engine       *search.Engine
}

// Inspector reports status over every component and the data paths in cfg.
func (c *Components) Inspector(cfg *config.Config) *admin.Inspector {
	return admin.NewInspector(c.Control, c.Storage, c.VectorIndex, c.Queue,
		cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath,
		cfg.Storage.IntakeDir, cfg.Storage.ArchiveDir)
}

// Close releases all resources held by components.
func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// newEmbedder loads the CLIP encoders. Without them visual search is meaningless, so the
// hashing mock only stands in to keep text search and ingestion running.
func newEmbedder(cfg *config.EmbeddingConfig, logger *zap.Logger) embedding.Embedder {
	var tokenizer embedding.Tokenizer
	bpe, err := embedding.LoadBPETokenizer(cfg.VocabPath, cfg.MergesPath)
	if err != nil {
		logger.Warn("BPE tokenizer unavailable, using hash tokenizer", zap.Error(err))
	} else {
		tokenizer = bpe
	}
	onnx, err := embedding.NewONNXEmbedder(embedding.ONNXOptions{
		VisualModelPath: cfg.VisualModelPath,
		TextModelPath:   cfg.TextModelPath,
		Dimensions:      cfg.Dimensions,
		ImageSize:       cfg.ImageSize,
		ContextLength:   cfg.ContextLength,
		CacheSize:       cfg.CacheSize,
		Tokenizer:       tokenizer,
	})
	if err != nil {
		logger.Warn("CLIP encoder unavailable, visual search results will not be meaningful", zap.Error(err))
		return embedding.NewMockEmbedder(cfg.Dimensions)
	}
	return onnx
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	for _, path := range []string{cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath, cfg.Storage.PauseFile} {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &Components{Storage: store}

	c.Embedder = newEmbedder(&cfg.Embedding, logger)

	c.VectorIndex, err = vector.NewVectorIndex(context.Background(), vector.Options{
		Type:       cfg.Vector.IndexType,
		Dimensions: cfg.Embedding.Dimensions,
		Path:       cfg.Storage.VectorIndexPath,
		DSN:        cfg.Vector.PostgresDSN,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized", zap.String("type", c.VectorIndex.Type()))

	c.KeywordIndex, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	c.Queue, err = queue.New(cfg.Storage.IntakeDir, queue.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize intake queue: %w", err)
	}
	c.Archive = archive.New(cfg.Storage.ArchiveDir, cfg.Ingest.ThumbnailWidth, cfg.Ingest.JPEGQuality)
	c.Control = control.NewController(cfg.Storage.PauseFile)
	c.Engine = search.NewEngine(store, c.Embedder, c.VectorIndex, c.KeywordIndex, &cfg.Search, search.WithLogger(logger))
	return c, nil
}

func printUsage() {
	fmt.Println(`rewind - searchable history of your screen

Usage:
  rewind serve [flags]            Run capture, ingestion and the HTTP API
  rewind search [flags] <query>   Search captures by text, visuals or both
  rewind recent [flags]           List the most recent captures
  rewind pause                    Pause capture
  rewind resume                   Resume capture
  rewind status [flags]           Show capture state, counts, queue depth and disk usage
  rewind wipe --yes               Delete all captured history (capture stays paused)
  rewind compress [flags]         Convert full-size PNG frames in the archive to JPEG
  rewind init [flags]             Write a config file with every default filled in
  rewind version                  Show version
  rewind help                     Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/rewind/config.yaml)
  --server string    Server URL (default: http://localhost:8080); the CLI falls back to
                     local storage when nothing is listening
  --output string    Output format: text or json (default: text)

Serve Flags:
  --debug            Enable debug logging
  --no-capture       Run without the capture watcher

Search Flags:
  --mode string      text, visual or hybrid (default: hybrid)
  --limit int        Number of results (default: 10)
  --from, --to       Capture time range (RFC 3339 or YYYY-MM-DD)

Examples:
  rewind serve
  rewind search "quarterly report"
  rewind search --mode visual --from 2026-03-01 red bar chart
  rewind recent --limit 20
  rewind wipe --yes`)
}
