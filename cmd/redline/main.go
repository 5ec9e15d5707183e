// Package main is the redline CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/redline/internal/cli"
	"github.com/hyperjump/redline/internal/clause"
	"github.com/hyperjump/redline/internal/config"
	"github.com/hyperjump/redline/internal/docx"
	"github.com/hyperjump/redline/internal/extract"
	"github.com/hyperjump/redline/internal/llm"
	"github.com/hyperjump/redline/internal/metrics"
	"github.com/hyperjump/redline/internal/models"
	"github.com/hyperjump/redline/internal/pipeline"
	"github.com/hyperjump/redline/internal/report"
	"github.com/hyperjump/redline/internal/server"
	"github.com/hyperjump/redline/internal/storage"
	"github.com/hyperjump/redline/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/redline/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
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
	case "server":
		runServer()
	case "preview":
		runPreview()
	case "clauses":
		runClauses()
	case "revise":
		runRevise()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("redline version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// argsReorder moves every flag (and its value) in front of the positional arguments
// so that fs.Parse sees them wherever they appear, e.g.
// "redline revise --save out.docx contract.docx --instruction ...".
// Arguments after "--" are left positional.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			flags = append(flags, a)
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") || isBoolFlag(fs, name) {
			continue
		}
		if i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

func mustLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	return logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (segmentation, proposal outcomes, uploads)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger := mustLogger(debugMode)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Pipeline,
		components.Writer,
		components.Reporter,
		components.Storage,
		cfg,
		logger,
		server.WithMetrics(components.Metrics),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runPreview() {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	serverURL := fs.String("server", "", "server URL (empty = extract locally)")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))
	if fs.NArg() != 1 {
		fail("Usage: redline preview [--server URL] <file>")
	}

	text, err := extractText(*serverURL, fs.Arg(0))
	if err != nil {
		fail("Preview failed: %v", err)
	}
	fmt.Println(text)
}

func runClauses() {
	fs := flag.NewFlagSet("clauses", flag.ExitOnError)
	serverURL := fs.String("server", "", "server URL used for extraction (empty = extract locally)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))
	if fs.NArg() != 1 {
		fail("Usage: redline clauses [--output text|json] <file>")
	}
	format := parseFormat(*outputFormat)

	text, err := extractText(*serverURL, fs.Arg(0))
	if err != nil {
		fail("Extraction failed: %v", err)
	}
	if err := cli.WriteClauses(os.Stdout, clause.Split(text), format); err != nil {
		fail("Output failed: %v", err)
	}
}

// extractText reads a document locally, or through the server's preview endpoint when serverURL is set.
func extractText(serverURL, path string) (string, error) {
	if serverURL != "" {
		return previewViaHTTP(serverURL, path)
	}
	return extract.NewExtractor().Extract(path)
}

func runRevise() {
	fs := flag.NewFlagSet("revise", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	instruction := fs.String("instruction", "", "natural-language change request (required)")
	serverURL := fs.String("server", "", "server URL (empty = run the pipeline directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	savePath := fs.String("save", "", "copy the revised document to this path")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	if fs.NArg() != 1 || strings.TrimSpace(*instruction) == "" {
		fail("Usage: redline revise --instruction \"...\" [--server URL] [--output text|json] [--save out.docx] <file>")
	}
	format := parseFormat(*outputFormat)
	req := models.ProcessRequest{ChangeInstructions: *instruction}

	var res *models.ProcessResponse
	if *serverURL != "" {
		text, err := previewViaHTTP(*serverURL, fs.Arg(0))
		if err != nil {
			fail("Preview failed: %v", err)
		}
		req.ContractText = text
		if err := req.Validate(); err != nil {
			fail("Invalid request: %v", err)
		}
		res, err = processViaHTTP(*serverURL, &req)
		if err != nil {
			fail("Revision failed: %v", err)
		}
		if *savePath != "" {
			if err := downloadViaHTTP(*serverURL, res.DownloadFile, *savePath); err != nil {
				fail("Download failed: %v", err)
			}
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fail("Failed to load config: %v", err)
		}
		logger := mustLogger(cfg.Debug)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fail("Failed to initialize: %v", err)
		}
		defer components.Close()

		ctx := context.Background()
		text, err := components.Pipeline.Preview(ctx, fs.Arg(0))
		if err != nil {
			fail("Extraction failed: %v", err)
		}
		req.ContractText = text
		if err := req.Validate(); err != nil {
			fail("Invalid request: %v", err)
		}
		result, err := components.Pipeline.Process(ctx, req.ContractText, req.ChangeInstructions)
		if err != nil {
			fail("Revision failed: %v", err)
		}
		res = &models.ProcessResponse{
			Contract:     result.Highlighted,
			DownloadFile: result.Artifact,
			Clauses:      result.Clauses,
			Changes:      result.Outcomes,
			ReportFile:   result.Report,
		}
		if *savePath != "" {
			src, err := components.Writer.Path(result.Artifact)
			if err == nil {
				err = copyFile(src, *savePath)
			}
			if err != nil {
				fail("Save failed: %v", err)
			}
		}
	}

	if err := cli.WriteRevisionResult(os.Stdout, res, format); err != nil {
		fail("Output failed: %v", err)
	}
	if *savePath != "" {
		fmt.Fprintf(os.Stderr, "Saved revised document to %s\n", *savePath)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = read the catalog directly)")
	limit := fs.Int("limit", 20, "number of revisions")
	offset := fs.Int("offset", 0, "number of revisions to skip")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var (
		revs  []*models.Revision
		total int64
	)
	if *serverURL != "" {
		page, err := revisionsViaHTTP(*serverURL, *offset, *limit)
		if err != nil {
			fail("History failed: %v", err)
		}
		revs, total = page.Revisions, page.Total
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fail("Failed to load config: %v", err)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fail("Failed to open catalog: %v", err)
		}
		defer store.Close()
		ctx := context.Background()
		if revs, err = store.ListRevisions(ctx, *offset, *limit); err != nil {
			fail("List revisions failed: %v", err)
		}
		if total, err = store.CountRevisions(ctx); err != nil {
			fail("Count revisions failed: %v", err)
		}
	}
	if err := cli.WriteRevisions(os.Stdout, revs, total, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = read storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status cli.Status
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fail("Status failed: %v", err)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fail("Failed to load config: %v", err)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fail("Failed to open catalog: %v", err)
		}
		defer store.Close()
		n, err := store.CountRevisions(context.Background())
		if err != nil {
			fail("Count revisions failed: %v", err)
		}
		status = cli.Status{
			Revisions: n,
			Config: &cli.StatusConfig{
				LLMProvider:    cfg.LLM.Provider,
				LLMModel:       cfg.LLM.Model,
				ReportOutcomes: cfg.Revision.ReportOutcomes,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				OutputDir:      cfg.Storage.OutputDir,
			},
		}
		if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.OutputDir, cfg.Storage.UploadDir); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}
	if err := cli.WriteStatus(os.Stdout, &status, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// Components holds initialized application components.
type Components struct {
	Storage  storage.Store
	Writer   *docx.Writer
	Reporter *report.Writer
	Proposer llm.Proposer
	Metrics  *metrics.Metrics // nil when disabled
	Pipeline *pipeline.Pipeline
}

// Close releases held resources.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	writer, err := docx.NewWriter(cfg.Storage.OutputDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize output directory: %w", err)
	}
	reporter, err := report.NewWriter(cfg.Storage.OutputDir)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize report directory: %w", err)
	}
	proposer, err := llm.NewProposer(&cfg.LLM, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize proposal service: %w", err)
	}
	logger.Info("proposal service initialized",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
		zap.Bool("report_outcomes", cfg.Revision.ReportOutcomes),
	)

	var m *metrics.Metrics
	if cfg.Server.MetricsEnabledOrDefault() {
		m = metrics.New()
	}

	p := pipeline.New(extract.NewExtractor(), proposer, writer,
		pipeline.WithLogger(logger),
		pipeline.WithStore(store),
		pipeline.WithReporter(reporter),
		pipeline.WithOutcomeReporting(cfg.Revision.ReportOutcomes),
		pipeline.WithMetrics(m),
	)
	return &Components{
		Storage:  store,
		Writer:   writer,
		Reporter: reporter,
		Proposer: proposer,
		Metrics:  m,
		Pipeline: p,
	}, nil
}

func printUsage() {
	fmt.Println(`redline - Natural-language contract revision

Usage:
  redline server [flags]                          Start the HTTP server
  redline preview [flags] <file>                  Print the extracted text of a document
  redline clauses [flags] <file>                  Print the clauses of a document
  redline revise --instruction "..." [flags] <file>
                                                  Revise a document and highlight the changes
  redline history [flags]                         List produced revisions
  redline status [flags]                          Show catalog/storage status
  redline version                                 Show version
  redline help                                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/redline/config.yaml)
  --debug            Enable debug logging

Revise Flags:
  --instruction string  Change request, e.g. "Change the fee to 250 USD" (required)
  --config string       Config file path (direct mode)
  --server string       Server URL; when set, the running server does the work
  --output string       Output format: text or json (default: text)
  --save string         Copy the revised .docx to this path

Clauses Flags:
  --server string    Server URL used for extraction
  --output string    Output format: text or json (default: text)

History/Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL
  --limit int        Number of revisions (history, default: 20)
  --offset int       Revisions to skip (history)
  --output string    Output format: text or json (default: text)

Supported documents: .docx .odt .pdf .txt .md

Examples:
  redline server
  redline preview contract.docx
  redline clauses --output json contract.pdf
  redline revise --instruction "Change the fee to 250 USD" --save revised.docx contract.docx
  redline revise --server http://localhost:8080 --instruction "Extend the term to 3 years" contract.odt
  redline history --limit 5
  redline status --output json`)
}
