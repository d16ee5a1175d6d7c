package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/fileid"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	root := flag.String("root", "", "directory to index (defaults to search.defaultRoot)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *root == "" {
		*root = cfg.Search.DefaultRoot
	}
	enc, err := charset.Lookup(cfg.Indexer.Encoding)
	if err != nil {
		slog.Error("unsupported index encoding", "encoding", cfg.Indexer.Encoding, "error", err)
		os.Exit(1)
	}
	slog.Info("starting indexer",
		"root", *root,
		"data_dir", cfg.Indexer.DataDir,
		"encoding", charset.Name(enc),
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	start := time.Now()
	engine := indexer.NewEngine(m)
	ids := fileid.NewRegistry()
	ic := consumer.New(engine, ids, enc, cfg.Indexer.Workers, m)
	stats, err := ic.IndexTree(ctx, *root, cfg.Indexer.Recursive, cfg.Indexer.IndexFileExt)
	if err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}

	if err := engine.Persist(cfg.Indexer, enc); err != nil {
		slog.Error("writing index failed", "error", err)
		os.Exit(1)
	}
	if err := ids.Save(cfg.Indexer.FileIDsPath()); err != nil {
		slog.Error("writing file id map failed", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer finished",
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"trigrams", engine.Trigrams(),
		"postings", engine.Size(),
		"elapsed", time.Since(start),
	)
}
