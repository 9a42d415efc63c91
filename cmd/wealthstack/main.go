package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/wealthstack/internal/api"
	"github.com/rewired-gh/wealthstack/internal/config"
	"github.com/rewired-gh/wealthstack/internal/exporter"
	"github.com/rewired-gh/wealthstack/internal/ingest"
	"github.com/rewired-gh/wealthstack/internal/layout"
	"github.com/rewired-gh/wealthstack/internal/logger"
	"github.com/rewired-gh/wealthstack/internal/metrics"
	"github.com/rewired-gh/wealthstack/internal/models"
	"github.com/rewired-gh/wealthstack/internal/source"
	"github.com/rewired-gh/wealthstack/internal/stack"
	"github.com/rewired-gh/wealthstack/internal/storage"
	"github.com/rewired-gh/wealthstack/internal/telegram"
	"github.com/rewired-gh/wealthstack/internal/view"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	exportPath = flag.String("export", "", "Write the stack (and the drill-down of -select) to this .xlsx file and exit")
	digest     = flag.Bool("digest", false, "Send the Telegram digest of the latest year and exit")
	selectYear = flag.Int("select", 0, "Year of the Technology bar to drill into for -export")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	m := metrics.New()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	// Load every dataset once; failures leave their charts empty
	loader := source.NewLoader(source.NewFetcher(cfg.Data.FetchTimeout), ingest.RulesFromConfig(cfg), store, m)
	res, err := loader.LoadAll(ctx, source.Plan{
		Billionaires: cfg.Data.Billionaires,
		MarketDir:    cfg.Data.MarketDir,
		Tickers:      cfg.Data.Tickers,
	})
	if err != nil {
		logger.Info("Loading interrupted: %v", err)
		return
	}
	logger.Info("Loaded %d records and %d market datasets (%d failed)", len(res.Records), len(res.Tickers), len(res.Failed))

	initial := initialState(cfg, res)

	switch {
	case *exportPath != "":
		if err := export(initial, *exportPath, *selectYear); err != nil {
			logger.Fatal("Export failed: %v", err)
		}
		logger.Info("Wrote %s", *exportPath)
		return
	case *digest:
		if err := sendDigest(ctx, cfg, store); err != nil {
			logger.Fatal("Digest failed: %v", err)
		}
		logger.Info("Digest sent")
		return
	}

	serve(ctx, cfg, initial, store, m)
}

func initialState(cfg *config.Config, res *source.Result) view.State {
	mode, err := models.ParseMode(cfg.Stack.DefaultMode)
	if err != nil {
		mode = models.ModeNormalized
	}
	opts := view.Options{
		Order: stack.DefaultOrder(),
		TopK:  cfg.Drilldown.TopK,
		Frame: layout.FrameFromConfig(cfg.Layout),
	}

	st := view.Initial(res.Records, mode, opts)
	if err, failed := res.Failed[source.BillionairesDataset]; failed {
		st = st.WithLoadFailure(view.ScopeStack, err)
	}
	return st
}

func export(st view.State, path string, year int) error {
	if year == 0 {
		return exporter.WriteWorkbook(path, st.Stack, nil)
	}
	selected, err := st.Select(models.GroupKey{Year: year, Category: models.CategoryTechnology}, nil)
	if err != nil {
		return err
	}
	return exporter.WriteWorkbook(path, selected.Stack, selected.Detail)
}

// sendDigest reads the billionaires dataset back from the store; a dataset that
// failed to load this run is missing there.
func sendDigest(ctx context.Context, cfg *config.Config, store *storage.Store) error {
	if !cfg.Telegram.Enabled {
		return errors.New("telegram is disabled in the configuration")
	}
	records, err := store.Records(ctx, source.BillionairesDataset)
	if err != nil {
		return err
	}
	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
	if err != nil {
		return err
	}
	d, err := telegram.BuildDigest(records, models.CategoryTechnology, cfg.Drilldown.TopK)
	if err != nil {
		return err
	}
	return client.Send(d)
}

func serve(ctx context.Context, cfg *config.Config, initial view.State, store *storage.Store, m *metrics.Metrics) {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	shell := view.NewShell(initial, store, m)
	shellDone := make(chan struct{})
	go func() {
		defer close(shellDone)
		_ = shell.Run(ctx)
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(shell, store, m, cfg.Server).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Serving API on %s (mode: %s, top_k: %d)", cfg.Server.Addr, initial.Mode, cfg.Drilldown.TopK)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to shut down API server: %v", err)
	}
	<-shellDone
	logger.Info("Service stopped")
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
