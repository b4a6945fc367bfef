// Command smoke probes a running API instance and reports per-endpoint
// status. Intended for post-deploy verification:
//
//	go run ./scripts/smoke -base http://localhost:8080 -token $ACCESS_TOKEN
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type probe struct {
	Method     string
	Path       string
	WantStatus int
	NeedsAuth  bool
}

var probes = []probe{
	{Method: http.MethodGet, Path: "/health", WantStatus: http.StatusOK},
	{Method: http.MethodGet, Path: "/ready", WantStatus: http.StatusOK},
	{Method: http.MethodGet, Path: "/metrics", WantStatus: http.StatusOK},
	{Method: http.MethodGet, Path: "/api/v1/students", WantStatus: http.StatusOK, NeedsAuth: true},
	{Method: http.MethodGet, Path: "/api/v1/students/waitlist", WantStatus: http.StatusOK, NeedsAuth: true},
	{Method: http.MethodGet, Path: "/api/v1/attendance/today", WantStatus: http.StatusOK, NeedsAuth: true},
	{Method: http.MethodGet, Path: "/api/v1/dashboard/summary", WantStatus: http.StatusOK, NeedsAuth: true},
	{Method: http.MethodGet, Path: "/api/v1/documents", WantStatus: http.StatusOK, NeedsAuth: true},
}

func main() {
	var (
		base    string
		token   string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token for authenticated endpoints (skipped when empty)")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	failures := 0
	skipped := 0

	for _, p := range probes {
		if p.NeedsAuth && token == "" {
			skipped++
			fmt.Printf("SKIP %-6s %-35s (no token)\n", p.Method, p.Path)
			continue
		}
		status, dur, err := run(client, base, token, p)
		if err != nil {
			failures++
			fmt.Printf("FAIL %-6s %-35s %v\n", p.Method, p.Path, err)
			continue
		}
		if status != p.WantStatus {
			failures++
			fmt.Printf("FAIL %-6s %-35s got %d, want %d (%s)\n", p.Method, p.Path, status, p.WantStatus, dur)
			continue
		}
		fmt.Printf("OK   %-6s %-35s %d (%s)\n", p.Method, p.Path, status, dur)
	}

	fmt.Printf("Failures: %d, Skipped: %d\n", failures, skipped)
	if failures > 0 {
		os.Exit(1)
	}
}

func run(client *http.Client, base, token string, p probe) (int, time.Duration, error) {
	url := strings.TrimRight(base, "/") + p.Path
	req, err := http.NewRequest(p.Method, url, nil)
	if err != nil {
		return 0, 0, err
	}
	if p.NeedsAuth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}
