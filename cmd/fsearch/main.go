package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/text/encoding"

	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:                   "fsearch",
		Usage:                  "Index a directory tree by trigrams and search it",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (defaults apply when empty)",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the index files (overrides config)",
			},
			&cli.StringFlag{
				Name:    "encoding",
				Aliases: []string{"e"},
				Usage:   "Charset of the indexed files and the index (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "warn",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Print results as JSON",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "index",
				Aliases:   []string{"i"},
				Usage:     "Build the plain and compressed index for a directory",
				ArgsUsage: "<root>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "recursive",
						Aliases: []string{"r"},
						Usage:   "Descend into subdirectories",
						Value:   true,
					},
				},
				Action: indexCommand,
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Scan every file under a directory for a literal pattern",
				ArgsUsage: "<pattern> [root]",
				Action:    searchCommand,
			},
			{
				Name:      "indexed",
				Aliases:   []string{"q"},
				Usage:     "Find indexed files containing a literal pattern",
				ArgsUsage: "<pattern>",
				Action:    indexedCommand,
			},
			{
				Name:      "lookup",
				Aliases:   []string{"l"},
				Usage:     "Print the index record of a trigram",
				ArgsUsage: "<trigram>",
				Action:    lookupCommand,
			},
			{
				Name:      "find",
				Aliases:   []string{"f"},
				Usage:     "List files and directories whose name matches a glob",
				ArgsUsage: "<glob> [root]",
				Action:    findCommand,
			},
			{
				Name:  "dump",
				Usage: "Print the encoded posting list stored in the index",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "compressed",
						Usage: "Read the compressed index instead of the plain one",
					},
				},
				Action: dumpCommand,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fsearch: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config file, applies the global flag overrides and
// resolves the charset. Logs go to stderr so results on stdout stay machine
// readable.
func setup(c *cli.Context) (*config.Config, encoding.Encoding, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if dir := c.String("data-dir"); dir != "" {
		cfg.Indexer.DataDir = dir
	}
	if name := c.String("encoding"); name != "" {
		cfg.Indexer.Encoding = name
	}
	level := cfg.Logging.Level
	if c.IsSet("log-level") || c.String("config") == "" {
		level = c.String("log-level")
	}
	logger.SetupWriter(os.Stderr, level, "text")

	enc, err := charset.Lookup(cfg.Indexer.Encoding)
	if err != nil {
		return nil, nil, err
	}
	return cfg, enc, nil
}
