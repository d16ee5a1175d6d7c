package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/indexer/fileid"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/scanner"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
)

func indexCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: fsearch index <root>")
	}
	cfg, enc, err := setup(c)
	if err != nil {
		return err
	}
	root := c.Args().First()

	start := time.Now()
	engine := indexer.NewEngine(nil)
	ids := fileid.NewRegistry()
	stats, err := consumer.New(engine, ids, enc, cfg.Indexer.Workers, nil).
		IndexTree(c.Context, root, c.Bool("recursive"), cfg.Indexer.IndexFileExt)
	if err != nil {
		return err
	}
	if err := engine.Persist(cfg.Indexer, enc); err != nil {
		return err
	}
	if err := ids.Save(cfg.Indexer.FileIDsPath()); err != nil {
		return err
	}

	summary := map[string]any{
		"root":       root,
		"indexed":    stats.Indexed,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
		"trigrams":   engine.Trigrams(),
		"postings":   engine.Size(),
		"plain":      cfg.Indexer.PlainIndexPath(),
		"compressed": cfg.Indexer.CompressedIndexPath(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}
	if c.Bool("json") {
		return printJSON(summary)
	}
	fmt.Printf("indexed %d files (%d skipped, %d failed) into %s: %d trigrams, %d postings\n",
		stats.Indexed, stats.Skipped, stats.Failed, cfg.Indexer.PlainIndexPath(), engine.Trigrams(), engine.Size())
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: fsearch search <pattern> [root]")
	}
	exec, cfg, err := newExecutor(c)
	if err != nil {
		return err
	}
	root := cfg.Search.DefaultRoot
	if c.NArg() > 1 {
		root = c.Args().Get(1)
	}
	res, err := exec.FindPattern(c.Context, root, c.Args().First())
	if err != nil {
		return err
	}
	return printResult(c, res)
}

func indexedCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: fsearch indexed <pattern>")
	}
	exec, _, err := newExecutor(c)
	if err != nil {
		return err
	}
	res, err := exec.IndexedSearch(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return printResult(c, res)
}

func findCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: fsearch find <glob> [root]")
	}
	exec, cfg, err := newExecutor(c)
	if err != nil {
		return err
	}
	root := cfg.Search.DefaultRoot
	if c.NArg() > 1 {
		root = c.Args().Get(1)
	}
	res, err := exec.FindFiles(c.Context, root, c.Args().First())
	if err != nil {
		return err
	}
	return printResult(c, res)
}

func lookupCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("usage: fsearch lookup <trigram>")
	}
	exec, _, err := newExecutor(c)
	if err != nil {
		return err
	}
	res, err := exec.LookupTrigram(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(res)
	}
	if !res.Found {
		fmt.Printf("[%s] not indexed\n", res.Trigram)
		return nil
	}
	for _, hit := range res.Files {
		positions := make([]string, len(hit.Positions))
		for i, p := range hit.Positions {
			positions[i] = fmt.Sprint(p)
		}
		fmt.Printf("%d\t%s\t%s\n", hit.FileID, hit.Path, strings.Join(positions, ","))
	}
	return nil
}

func dumpCommand(c *cli.Context) error {
	cfg, enc, err := setup(c)
	if err != nil {
		return err
	}
	engine := indexer.NewEngine(nil)
	if c.Bool("compressed") {
		err = engine.Load(cfg.Indexer.CompressedIndexPath(), enc)
	} else {
		err = engine.LoadPlain(cfg.Indexer.PlainIndexPath(), enc)
	}
	if err != nil {
		return err
	}
	slog.Debug("index loaded", "trigrams", engine.Trigrams(), "postings", engine.Size())
	if encoded := engine.Encoded(); encoded != "" {
		fmt.Println(encoded)
	}
	return nil
}

func newExecutor(c *cli.Context) (*executor.Executor, *config.Config, error) {
	cfg, enc, err := setup(c)
	if err != nil {
		return nil, nil, err
	}
	sc := scanner.New(cfg.Search.Workers)
	return executor.New(sc, cfg.Indexer, cfg.Search, enc, nil), cfg, nil
}

func printResult(c *cli.Context, res *executor.SearchResult) error {
	if c.Bool("json") {
		return printJSON(res)
	}
	for _, f := range res.Files {
		fmt.Println(f)
	}
	if res.Truncated {
		fmt.Fprintf(os.Stderr, "showing %d of %d matches\n", len(res.Files), res.TotalHits)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
