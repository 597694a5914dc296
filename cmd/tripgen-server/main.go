// Package main implements the tripgen web server for adaptive travel plan generation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
	"github.com/codeGROOVE-dev/tripgen/pkg/genplan"
	"github.com/codeGROOVE-dev/tripgen/pkg/httpcache"
	"github.com/codeGROOVE-dev/tripgen/pkg/planner"
	"github.com/codeGROOVE-dev/tripgen/pkg/retrieval"
	"github.com/codeGROOVE-dev/tripgen/pkg/traffic"
)

var (
	port          = flag.String("port", "8080", "Port for web server")
	trafficAPIKey = flag.String("traffic-key", "", "TomTom traffic API key (or set TRAFFIC_API_KEY)")
	geminiAPIKey  = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	geminiModel   = flag.String("gemini-model", "gemini-2.5-flash-lite", "Gemini model to use")
	gcpProject    = flag.String("gcp-project", "", "GCP project ID for Vertex AI (or set GCP_PROJECT)")
	catalogPath   = flag.String("catalog", "", "Path to a YAML activity catalog")
	cacheDir      = flag.String("cache-dir", "", "Cache directory (or set CACHE_DIR)")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
	version       = flag.Bool("version", false, "Show version")
)

type rateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	// Rate limit: 15 requests per minute per IP
	if len(valid) >= 15 {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

func main() {
	flag.Parse()

	if *version {
		fmt.Println("tripgen Server v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *trafficAPIKey == "" {
		*trafficAPIKey = os.Getenv("TRAFFIC_API_KEY")
	}
	if *geminiAPIKey == "" {
		*geminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if *geminiModel == "gemini-2.5-flash-lite" && os.Getenv("GEMINI_MODEL") != "" {
		*geminiModel = os.Getenv("GEMINI_MODEL")
	}
	if *gcpProject == "" {
		*gcpProject = os.Getenv("GCP_PROJECT")
	}
	if *cacheDir == "" {
		*cacheDir = os.Getenv("CACHE_DIR")
	}

	logger.Info("Server configuration",
		"port", *port,
		"verbose", *verbose,
		"cache_dir", *cacheDir,
		"gemini_model", *geminiModel,
		"has_traffic_key", *trafficAPIKey != "",
		"has_gemini_key", *geminiAPIKey != "",
		"has_gcp_project", *gcpProject != "")

	if *geminiAPIKey == "" && *gcpProject == "" {
		logger.Error("A Gemini API key or GCP project is required for plan generation")
		os.Exit(1)
	}

	ctx := context.Background()

	entries := catalog.Default()
	if *catalogPath != "" {
		loaded, err := catalog.Load(*catalogPath)
		if err != nil {
			logger.Error("Failed to load catalog", "path", *catalogPath, "error", err)
			os.Exit(1)
		}
		entries = loaded
	}

	opts := []planner.Option{
		planner.WithCatalog(entries),
		planner.WithGenerator(genplan.NewClient(*geminiAPIKey, *geminiModel, *gcpProject, logger)),
	}
	if idx, err := retrieval.NewGenaiIndex(ctx, *geminiAPIKey, "", logger); err == nil {
		opts = append(opts, planner.WithSemanticIndex(idx))
	} else {
		logger.Warn("Semantic index unavailable, using lexical scoring only", "error", err)
	}
	httpClient := httpcache.DefaultClient(ctx, *cacheDir, false, logger)
	if *trafficAPIKey != "" {
		opts = append(opts, planner.WithTrafficProvider(
			traffic.NewClient(*trafficAPIKey, httpClient, logger)))
	} else {
		logger.Warn("No traffic API key; all candidates will use conservative traffic defaults")
	}

	s := &server{
		planner: planner.New(logger, opts...),
		limiter: newRateLimiter(),
		logger:  logger,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/plan", s.handlePlan)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	antiCSRF := http.NewCrossOriginProtection()

	srv := &http.Server{
		Addr:              ":" + *port,
		Handler:           s.wrap(antiCSRF.Handler(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", *port)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	if err := httpClient.Close(); err != nil {
		logger.Warn("Failed to flush HTTP cache", "error", err)
	}
	logger.Info("Server stopped")
}

type server struct {
	planner *planner.Planner
	limiter *rateLimiter
	logger  *slog.Logger
	started time.Time
}

func (s *server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]

				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP(r),
					"stack", string(buf))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		}

		start := time.Now()
		handler.ServeHTTP(w, r)
		s.logger.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID,
			"client_ip", clientIP(r),
			"duration", time.Since(start))
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *server) handlePlan(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	ip := clientIP(r)

	if !s.limiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "request_id", requestID, "client_ip", ip)
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	var req planner.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		s.logger.Warn("Invalid request body", "request_id", requestID, "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan, metrics, err := s.planner.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	response := struct {
		Plan    *planner.Plan   `json:"plan"`
		Metrics planner.Metrics `json:"metrics"`
	}{plan, metrics}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode response", "request_id", requestID, "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, requestID string, err error) {
	status := http.StatusInternalServerError
	category := genplan.CategoryUnknown

	var pipeErr *planner.Error
	switch {
	case errors.Is(err, planner.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.As(err, &pipeErr):
		category = pipeErr.Category
		switch category {
		case genplan.CategoryTimeout:
			status = http.StatusGatewayTimeout
		case genplan.CategoryUpstream:
			status = http.StatusBadGateway
		case genplan.CategoryMalformed, genplan.CategoryUnknown:
			status = http.StatusInternalServerError
		}
	}

	s.logger.Error("Plan generation failed",
		"request_id", requestID, "status", status, "category", category, "error", err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := struct {
		Error    string `json:"error"`
		Category string `json:"category,omitempty"`
	}{err.Error(), string(category)}
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		s.logger.Error("Failed to encode error response", "request_id", requestID, "error", encodeErr)
	}
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	stats := s.planner.CacheStats()

	w.Header().Set("Content-Type", "application/json")
	body := struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		CacheHits     int64   `json:"cache_hits"`
		CacheMisses   int64   `json:"cache_misses"`
		CacheHitRate  float64 `json:"cache_hit_rate"`
		HotEntries    int     `json:"hot_entries"`
		WarmEntries   int     `json:"warm_entries"`
		ColdEntries   int     `json:"cold_entries"`
		CacheBytes    int64   `json:"cache_bytes"`
	}{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		CacheHits:     stats.Hits,
		CacheMisses:   stats.Misses,
		CacheHitRate:  stats.HitRate,
		HotEntries:    stats.HotEntries,
		WarmEntries:   stats.WarmEntries,
		ColdEntries:   stats.ColdEntries,
		CacheBytes:    stats.TotalBytes,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode health response", "error", err)
	}
}
