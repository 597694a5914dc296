// Package main implements the tripgen CLI tool for adaptive travel plan generation.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/tripgen/pkg/catalog"
	"github.com/codeGROOVE-dev/tripgen/pkg/genplan"
	"github.com/codeGROOVE-dev/tripgen/pkg/geocode"
	"github.com/codeGROOVE-dev/tripgen/pkg/httpcache"
	"github.com/codeGROOVE-dev/tripgen/pkg/planner"
	"github.com/codeGROOVE-dev/tripgen/pkg/render"
	"github.com/codeGROOVE-dev/tripgen/pkg/retrieval"
	"github.com/codeGROOVE-dev/tripgen/pkg/traffic"
)

var (
	trafficAPIKey = flag.String("traffic-key", "", "TomTom traffic API key (or set TRAFFIC_API_KEY)")
	mapsAPIKey    = flag.String("maps-key", "", "Google Maps API key for geocoding catalog entries without coordinates (or set GOOGLE_MAPS_API_KEY)")
	geminiAPIKey  = flag.String("gemini-key", "", "Gemini API key (or set GEMINI_API_KEY)")
	geminiModel   = flag.String("gemini-model", "gemini-2.5-flash-lite", "Gemini model to use (or set GEMINI_MODEL)")
	gcpProject    = flag.String("gcp-project", "", "GCP project ID for Vertex AI (or set GCP_PROJECT)")
	catalogPath   = flag.String("catalog", "", "Path to a YAML activity catalog (defaults to the built-in catalog)")
	cacheDir      = flag.String("cache-dir", "", "Cache directory (or set CACHE_DIR)")
	noCache       = flag.Bool("no-cache", false, "Disable response caching")
	jsonOutput    = flag.Bool("json", false, "Emit the plan as JSON instead of formatted text")
	interests     = flag.String("interests", "", "Comma-separated interests (e.g. nature,food)")
	weather       = flag.String("weather", "", "Current weather (sunny, rainy, cloudy, cold, hot)")
	timeOfDay     = flag.String("time-of-day", "", "Preferred time window (morning, afternoon, evening)")
	budget        = flag.String("budget", "", "Budget level (low, medium, high)")
	groupSize     = flag.Int("group-size", 1, "Number of travelers")
	days          = flag.Int("days", 1, "Trip duration in days")
	timeout       = flag.Duration("timeout", 60*time.Second, "Overall request timeout")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
	version       = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("tripgen CLI v1.0.0")
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <query>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	query := strings.Join(args, " ")

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *trafficAPIKey == "" {
		*trafficAPIKey = os.Getenv("TRAFFIC_API_KEY")
	}
	if *mapsAPIKey == "" {
		*mapsAPIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
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

	if *geminiAPIKey == "" && *gcpProject == "" {
		logger.Error("A Gemini API key or GCP project is required for plan generation")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	entries := catalog.Default()
	if *catalogPath != "" {
		loaded, err := catalog.Load(*catalogPath)
		if err != nil {
			logger.Error("Failed to load catalog", "path", *catalogPath, "error", err)
			os.Exit(1)
		}
		entries = loaded
	}

	httpClient := httpcache.DefaultClient(ctx, *cacheDir, *noCache, logger)
	defer func() {
		if err := httpClient.Close(); err != nil {
			logger.Warn("Failed to flush HTTP cache", "error", err)
		}
	}()

	if *mapsAPIKey != "" {
		resolver := geocode.NewClient(*mapsAPIKey, httpClient, logger)
		entries = backfillCoordinates(ctx, resolver, entries, logger)
	}

	opts := []planner.Option{
		planner.WithCatalog(entries),
		planner.WithGenerator(genplan.NewClient(*geminiAPIKey, *geminiModel, *gcpProject, logger)),
	}
	if idx, err := retrieval.NewGenaiIndex(ctx, *geminiAPIKey, "", logger); err == nil {
		opts = append(opts, planner.WithSemanticIndex(idx))
	} else {
		logger.Debug("Semantic index unavailable, using lexical scoring only", "error", err)
	}

	if *trafficAPIKey != "" {
		opts = append(opts, planner.WithTrafficProvider(
			traffic.NewClient(*trafficAPIKey, httpClient, logger)))
	} else {
		logger.Warn("No traffic API key; all candidates will use conservative traffic defaults")
	}

	p := planner.New(logger, opts...)

	req := planner.Request{
		Query:        query,
		Weather:      *weather,
		TimeOfDay:    *timeOfDay,
		Budget:       *budget,
		GroupSize:    *groupSize,
		DurationDays: *days,
	}
	if *interests != "" {
		for _, interest := range strings.Split(*interests, ",") {
			if trimmed := strings.TrimSpace(interest); trimmed != "" {
				req.Interests = append(req.Interests, trimmed)
			}
		}
	}

	plan, metrics, err := p.Generate(ctx, req)
	if err != nil {
		var pipeErr *planner.Error
		if errors.As(err, &pipeErr) {
			logger.Error("Plan generation failed",
				"category", pipeErr.Category, "elapsed", pipeErr.Elapsed, "error", pipeErr.Err)
		} else {
			logger.Error("Plan generation failed", "error", err)
		}
		return
	}

	if *jsonOutput {
		out := struct {
			Plan    *planner.Plan   `json:"plan"`
			Metrics planner.Metrics `json:"metrics"`
		}{plan, metrics}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			logger.Error("Failed to encode output", "error", err)
		}
		return
	}

	fmt.Print(render.Plan(plan))
	if *verbose {
		fmt.Print(render.Metrics(metrics))
	}
}

// backfillCoordinates geocodes catalog entries that ship without coordinates
// so proximity clustering can batch them with their neighbors. Failures leave
// the entry uncoordinated; enrichment handles that case downstream.
func backfillCoordinates(ctx context.Context, resolver geocode.Resolver, entries []catalog.Candidate, logger *slog.Logger) []catalog.Candidate {
	resolved := 0
	for i := range entries {
		if entries[i].HasCoordinates {
			continue
		}
		loc, err := resolver.Resolve(ctx, entries[i].Title)
		if err != nil {
			logger.Debug("Geocoding failed", "title", entries[i].Title, "error", err)
			continue
		}
		entries[i].Lat = loc.Latitude
		entries[i].Lon = loc.Longitude
		entries[i].HasCoordinates = true
		resolved++
	}
	if resolved > 0 {
		logger.Info("Geocoded catalog entries", "resolved", resolved)
	}
	return entries
}
