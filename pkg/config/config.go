// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Redis, Indexer, Search, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// IndexFileExtEnv names the environment variable holding the index-file
// extension that discovery skips.
const IndexFileExtEnv = "TS_INDEX_FILE_EXT"

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Indexer IndexerConfig `yaml:"indexer"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. ScanRateLimit caps raw scans and
// glob walks per client per minute; zero disables the limit.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	ScanRateLimit   int           `yaml:"scanRateLimit"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the result cache.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	OpTimeout time.Duration `yaml:"opTimeout"`
}

// IndexerConfig controls where index files live, how they are named, and how
// many files are read in parallel while building them.
type IndexerConfig struct {
	DataDir      string `yaml:"dataDir"`
	IndexName    string `yaml:"indexName"`
	IndexFileExt string `yaml:"indexFileExt"`
	Encoding     string `yaml:"encoding"`
	Workers      int    `yaml:"workers"`
	Recursive    bool   `yaml:"recursive"`
}

// PlainIndexPath is the sorted, uncompressed index queried by binary search.
func (c IndexerConfig) PlainIndexPath() string {
	return filepath.Join(c.DataDir, c.IndexName+".plain"+c.IndexFileExt)
}

// CompressedIndexPath is the deflate-compressed index tracked by the register.
func (c IndexerConfig) CompressedIndexPath() string {
	return filepath.Join(c.DataDir, c.IndexName+".deflate"+c.IndexFileExt)
}

// FileIDsPath is the persisted file-id map written next to the index.
func (c IndexerConfig) FileIDsPath() string {
	return filepath.Join(c.DataDir, c.IndexName+".fids"+c.IndexFileExt)
}

// SearchConfig controls raw scans and the HTTP search API.
type SearchConfig struct {
	DefaultRoot string `yaml:"defaultRoot"`
	Workers     int    `yaml:"workers"`
	MaxResults  int    `yaml:"maxResults"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local use.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ScanRateLimit:   60,
		},
		Redis: RedisConfig{
			PoolSize:  10,
			CacheTTL:  60 * time.Second,
			OpTimeout: 250 * time.Millisecond,
		},
		Indexer: IndexerConfig{
			DataDir:      "data",
			IndexName:    "index",
			IndexFileExt: ".idx",
			Encoding:     "UTF-8",
			Workers:      runtime.NumCPU(),
			Recursive:    true,
		},
		Search: SearchConfig{
			DefaultRoot: ".",
			Workers:     runtime.NumCPU(),
			MaxResults:  1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads TS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TS_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("TS_INDEXER_ENCODING"); v != "" {
		cfg.Indexer.Encoding = v
	}
	if v, ok := os.LookupEnv(IndexFileExtEnv); ok {
		cfg.Indexer.IndexFileExt = v
	}
	if v := os.Getenv("TS_SEARCH_DEFAULT_ROOT"); v != "" {
		cfg.Search.DefaultRoot = v
	}
	if v := os.Getenv("TS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func (c *Config) validate() error {
	if c.Indexer.DataDir == "" {
		return fmt.Errorf("indexer.dataDir must not be empty")
	}
	if c.Indexer.IndexName == "" {
		return fmt.Errorf("indexer.indexName must not be empty")
	}
	if c.Indexer.Workers < 1 {
		c.Indexer.Workers = 1
	}
	if c.Search.Workers < 1 {
		c.Search.Workers = 1
	}
	if c.Server.ScanRateLimit < 0 {
		return fmt.Errorf("server.scanRateLimit must not be negative, got %d", c.Server.ScanRateLimit)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.maxResults must be positive, got %d", c.Search.MaxResults)
	}
	return nil
}
