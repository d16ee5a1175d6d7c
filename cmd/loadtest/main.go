package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Root        string
	Patterns    []string
	Endpoints   []string
}

// endpointStats collects the outcome of every request sent to one endpoint.
type endpointStats struct {
	requests atomic.Int64
	errors   atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

type Stats struct {
	byEndpoint map[string]*endpointStats
}

func NewStats(endpoints []string) *Stats {
	s := &Stats{byEndpoint: make(map[string]*endpointStats, len(endpoints))}
	for _, e := range endpoints {
		s.byEndpoint[e] = &endpointStats{codes: make(map[int]int64)}
	}
	return s
}

func (s *Stats) Record(endpoint string, d time.Duration, code int, err error) {
	es := s.byEndpoint[endpoint]
	es.requests.Add(1)
	if err != nil || code < 200 || code >= 300 {
		es.errors.Add(1)
	}
	if err != nil {
		return
	}
	es.mu.Lock()
	es.latencies = append(es.latencies, d)
	es.codes[code]++
	es.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	root := flag.String("root", "", "root directory for raw scans, inside the server default root (server default when empty)")
	patterns := flag.String("patterns", "func,return,package main,error,context.Context,TODO,http",
		"comma-separated literal patterns")
	endpoints := flag.String("endpoints", "indexed,trigram,search", "comma-separated endpoints to exercise")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: max(*concurrency, 1),
		Duration:    *duration,
		Root:        *root,
		Patterns:    splitList(*patterns),
		Endpoints:   splitList(*endpoints),
	}
	if len(cfg.Patterns) == 0 || len(cfg.Endpoints) == 0 {
		fmt.Fprintln(os.Stderr, "need at least one pattern and one endpoint")
		os.Exit(2)
	}
	for _, e := range cfg.Endpoints {
		if _, ok := buildQuery(e, "x", ""); !ok {
			fmt.Fprintf(os.Stderr, "unknown endpoint %q (want indexed, trigram, search or files)\n", e)
			os.Exit(2)
		}
	}

	fmt.Println("=== Trigram Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Endpoints:   %s\n", strings.Join(cfg.Endpoints, ", "))
	fmt.Printf("Patterns:    %d unique\n", len(cfg.Patterns))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(stats, cfg) {
		os.Exit(1)
	}
}

// buildQuery maps an endpoint name and pattern to its API path and query.
func buildQuery(endpoint, pattern, root string) (string, bool) {
	q := url.Values{}
	switch endpoint {
	case "indexed":
		q.Set("q", pattern)
	case "search":
		q.Set("q", pattern)
		if root != "" {
			q.Set("root", root)
		}
	case "trigram":
		r := []rune(pattern)
		q.Set("t", string(r[:min(len(r), 3)]))
	case "files":
		q.Set("glob", "*"+pattern+"*")
		if root != "" {
			q.Set("root", root)
		}
	default:
		return "", false
	}
	return "/api/v1/" + endpoint + "?" + q.Encode(), true
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats(cfg.Endpoints)
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				endpoint := cfg.Endpoints[i%len(cfg.Endpoints)]
				pattern := cfg.Patterns[(i/len(cfg.Endpoints))%len(cfg.Patterns)]
				target, _ := buildQuery(endpoint, pattern, cfg.Root)

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+target, nil)
				if err != nil {
					return err
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(endpoint, elapsed, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(endpoint, elapsed, resp.StatusCode, nil)
			}
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nload test aborted: %v\n", err)
	}
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// printReport prints per-endpoint results and reports whether any request
// completed.
func printReport(stats *Stats, cfg Config) bool {
	var total int64
	for _, endpoint := range cfg.Endpoints {
		es := stats.byEndpoint[endpoint]
		requests, errs := es.requests.Load(), es.errors.Load()
		total += requests

		es.mu.Lock()
		latencies := slices.Clone(es.latencies)
		codes := make([]int, 0, len(es.codes))
		for code := range es.codes {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		counts := make([]string, len(codes))
		for i, code := range codes {
			counts[i] = fmt.Sprintf("%d=%d", code, es.codes[code])
		}
		es.mu.Unlock()

		fmt.Printf("=== /api/v1/%s ===\n", endpoint)
		fmt.Printf("Requests:     %d (%.2f/s)\n", requests, float64(requests)/cfg.Duration.Seconds())
		if requests > 0 {
			fmt.Printf("Errors:       %d (%.2f%%)\n", errs, float64(errs)/float64(requests)*100)
		}
		fmt.Printf("Status codes: %s\n", strings.Join(counts, " "))
		if len(latencies) > 0 {
			slices.Sort(latencies)
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			fmt.Printf("Latency:      min %s  avg %s  p50 %s  p95 %s  p99 %s  max %s\n",
				latencies[0],
				sum/time.Duration(len(latencies)),
				percentile(latencies, 50),
				percentile(latencies, 95),
				percentile(latencies, 99),
				latencies[len(latencies)-1],
			)
		}
		fmt.Println()
	}

	if total == 0 {
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
