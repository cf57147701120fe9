package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/xpense/internal/bill"
	"github.com/zombor/xpense/internal/expense"
	"github.com/zombor/xpense/internal/scanning"
	"github.com/zombor/xpense/internal/storage"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("xpense")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "xpense.db", "Database file path")
		storageType   = fs.StringLong("storage", "local", "Bill storage backend: 'local' or 's3'")
		storagePath   = fs.StringLong("storage-path", "./bills", "Local storage directory path")
		publicURL     = fs.StringLong("public-url", "http://localhost:8080/files", "Public base URL for stored bill images")
		s3Endpoint    = fs.StringLong("s3-endpoint", "", "S3-compatible endpoint (e.g. Cloudflare R2); empty for AWS")
		s3Bucket      = fs.StringLong("s3-bucket", "", "S3 bucket name")
		s3Region      = fs.StringLong("s3-region", "auto", "S3 region")
		s3AccessKey   = fs.StringLong("s3-access-key", "", "S3 access key id")
		s3SecretKey   = fs.StringLong("s3-secret-key", "", "S3 secret access key")
		uploadFolder  = fs.StringLong("upload-folder", bill.DefaultFolder, "Folder bill images are uploaded into")
		uploadTimeout = fs.DurationLong("upload-timeout", 30*time.Second, "Timeout for a single upload")
		visionModels  = fs.StringLong("vision-models", defaultVisionModels(), "Comma separated provider:model cascade, best first")
		visionTimeout = fs.DurationLong("vision-timeout", 30*time.Second, "Timeout for a single vision model call")
		openRouterKey = fs.StringLong("openrouter-key", "", "OpenRouter API key (or set OPENROUTER_API_KEY env var)")
		openRouterURL = fs.StringLong("openrouter-url", "https://openrouter.ai/api/v1", "OpenRouter API base URL")
		siteURL       = fs.StringLong("site-url", "", "Site URL sent to OpenRouter as HTTP-Referer")
		siteName      = fs.StringLong("site-name", "Xpense", "Site name sent to OpenRouter as X-Title")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		tesseractBin  = fs.StringLong("tesseract", "tesseract", "Tesseract binary name or path")
		tesseractLang = fs.StringLong("tesseract-lang", "eng", "Tesseract language")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("XPENSE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cascade, err := scanning.ParseCascade(*visionModels)
	if err != nil {
		slog.Error("Invalid vision model list", "error", err)
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := expense.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "type", *storageType)
	var (
		uploader   storage.Uploader
		files      expense.FileSource
		filePrefix string
	)
	switch *storageType {
	case "local":
		local, err := storage.NewLocalStorage(*storagePath, *publicURL)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		u, err := url.Parse(*publicURL)
		if err != nil || u.Path == "" || u.Path == "/" {
			slog.Error("Public URL must include a path to serve local files from", "public_url", *publicURL)
			os.Exit(1)
		}
		uploader, files, filePrefix = local, local, u.Path
	case "s3":
		s3Store, err := storage.NewS3Storage(storage.S3Config{
			Endpoint:  *s3Endpoint,
			Region:    *s3Region,
			Bucket:    *s3Bucket,
			AccessKey: *s3AccessKey,
			SecretKey: *s3SecretKey,
			PublicURL: *publicURL,
			Timeout:   *uploadTimeout,
		})
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		uploader = s3Store
	default:
		slog.Error("Invalid storage type", "type", *storageType, "valid", "local or s3")
		os.Exit(1)
	}

	// Initialize scanners for the providers the cascade uses
	scanners := make(map[string]scanning.Scanner)
	for _, spec := range cascade {
		if _, ok := scanners[spec.Provider]; ok {
			continue
		}
		scanner, err := newScanner(spec.Provider, scannerOptions{
			openRouterKey: firstNonEmpty(*openRouterKey, os.Getenv("OPENROUTER_API_KEY")),
			openRouterURL: *openRouterURL,
			siteURL:       *siteURL,
			siteName:      *siteName,
			geminiKey:     firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
			ollamaURL:     *ollamaURL,
			timeout:       *visionTimeout,
		})
		if err != nil {
			// A provider without credentials is skipped; OCR still runs.
			slog.Warn("Vision provider disabled", "provider", spec.Provider, "error", err)
			continue
		}
		slog.Info("Initialized vision provider", "provider", spec.Provider)
		scanners[spec.Provider] = scanner
		defer scanner.Close()
	}

	ocr := scanning.NewTesseract(scanning.TesseractConfig{
		Binary:   *tesseractBin,
		Language: *tesseractLang,
	}, slog.Default())

	processor := bill.NewProcessor(uploader, scanners, ocr, bill.Config{
		Cascade: cascade,
		Folder:  *uploadFolder,
	}, slog.Default())

	// Initialize service
	expenseService := expense.NewService(db, processor)

	// Initialize server
	basicAuth := expense.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := expense.NewServer(expenseService, basicAuth, files, filePrefix)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

type scannerOptions struct {
	openRouterKey string
	openRouterURL string
	siteURL       string
	siteName      string
	geminiKey     string
	ollamaURL     string
	timeout       time.Duration
}

func newScanner(provider string, opts scannerOptions) (scanning.Scanner, error) {
	switch provider {
	case scanning.ProviderOpenRouter:
		return scanning.NewOpenRouter(scanning.OpenRouterConfig{
			APIKey:   opts.openRouterKey,
			BaseURL:  opts.openRouterURL,
			SiteURL:  opts.siteURL,
			SiteName: opts.siteName,
			Timeout:  opts.timeout,
		})
	case scanning.ProviderGemini:
		return scanning.NewGemini(opts.geminiKey, opts.timeout)
	case scanning.ProviderOllama:
		return scanning.NewOllama(opts.ollamaURL, opts.timeout)
	default:
		return nil, fmt.Errorf("unknown vision provider %q", provider)
	}
}

func defaultVisionModels() string {
	names := make([]string, 0, len(scanning.DefaultCascade))
	for _, spec := range scanning.DefaultCascade {
		names = append(names, spec.String())
	}
	return strings.Join(names, ",")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
