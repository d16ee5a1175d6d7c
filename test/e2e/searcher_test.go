// Package e2e contains end-to-end tests against a running search service.
// Tests that write files need E2E_SEARCH_ROOT, a directory inside the
// service's default root that both processes can reach.
//
// Run with:
//
//	go run ./cmd/searcher -config configs/development.yaml &
//	E2E_SEARCH_ROOT=$PWD go test -v -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func searcherURL() string {
	if v := os.Getenv("E2E_SEARCHER_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func client(t *testing.T) *http.Client {
	t.Helper()
	c := &http.Client{Timeout: 10 * time.Second}
	resp, err := c.Get(searcherURL() + "/health/live")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	resp.Body.Close()
	return c
}

func getJSON(t *testing.T, c *http.Client, path string, query url.Values, out any) int {
	t.Helper()
	resp, err := c.Get(searcherURL() + path + "?" + query.Encode())
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading %s response: %v", path, err)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decoding %s response %q: %v", path, body, err)
		}
	}
	return resp.StatusCode
}

// scratchDir creates a directory under E2E_SEARCH_ROOT, removed after the
// test.
func scratchDir(t *testing.T) string {
	t.Helper()
	base := os.Getenv("E2E_SEARCH_ROOT")
	if base == "" {
		t.Skip("E2E_SEARCH_ROOT not set")
	}
	dir, err := os.MkdirTemp(base, "e2e-")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

type searchResult struct {
	TotalHits int      `json:"total_hits"`
	Files     []string `json:"files"`
}

// TestServiceHealth verifies the liveness and readiness endpoints respond.
func TestServiceHealth(t *testing.T) {
	c := client(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			var report map[string]any
			status := getJSON(t, c, path, url.Values{}, &report)
			if status != http.StatusOK && status != http.StatusServiceUnavailable {
				t.Errorf("unexpected status %d", status)
			}
			if report["status"] == nil {
				t.Errorf("report has no status: %v", report)
			}
		})
	}
}

// TestRawScanFindsFreshFile writes a file with a unique word and expects the
// raw scan endpoint to report it without any reindexing.
func TestRawScanFindsFreshFile(t *testing.T) {
	c := client(t)
	root := scratchDir(t)
	word := fmt.Sprintf("e2eword%d", time.Now().UnixNano())
	target := filepath.Join(root, "fresh.txt")
	if err := os.WriteFile(target, []byte("a line with "+word+" inside\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "other.txt"), []byte("nothing to see\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var res searchResult
	status := getJSON(t, c, "/api/v1/search", url.Values{"q": {word}, "root": {root}}, &res)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if res.TotalHits != 1 || len(res.Files) != 1 || res.Files[0] != target {
		t.Errorf("expected only %s, got %+v", target, res)
	}
}

// TestGlobFinder verifies directories and files both match a glob.
func TestGlobFinder(t *testing.T) {
	c := client(t)
	root := scratchDir(t)
	if err := os.MkdirAll(filepath.Join(root, "logs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "logs", "app.log"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var res searchResult
	status := getJSON(t, c, "/api/v1/files", url.Values{"glob": {"log*"}, "root": {root}}, &res)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(res.Files) != 1 || res.Files[0] != filepath.Join(root, "logs") {
		t.Errorf("expected the logs directory, got %v", res.Files)
	}
}

// TestBadRequests verifies argument errors come back as 400.
func TestBadRequests(t *testing.T) {
	c := client(t)
	cases := []struct {
		path  string
		query url.Values
	}{
		{"/api/v1/search", url.Values{}},
		{"/api/v1/trigram", url.Values{"t": {"toolong"}}},
		{"/api/v1/files", url.Values{"glob": {"["}}},
		{"/api/v1/search", url.Values{"q": {"root"}, "root": {"/"}}},
	}
	for _, tc := range cases {
		if status := getJSON(t, c, tc.path, tc.query, nil); status != http.StatusBadRequest {
			t.Errorf("%s %v: expected 400, got %d", tc.path, tc.query, status)
		}
	}
}
