package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"visibility-go/pkg/backend"
	"visibility-go/pkg/logger"
	"visibility-go/pkg/monitor"
	"visibility-go/pkg/report"
	"visibility-go/pkg/storage"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns environment variable as bool or default
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// splitList parses a comma-separated flag value, dropping blanks.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	// Global panic recovery to prevent application crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("🚨 CRITICAL ERROR: Application panic recovered: %v\n", r)
			fmt.Printf("The application encountered an unexpected error but has been safely recovered.\n")
			fmt.Printf("Please check the logs for more details and report this issue.\n")
			os.Exit(1)
		}
	}()

	// Credentials commonly live in .env during local runs
	_ = godotenv.Load()

	// Environment variable defaults (GitHub Actions friendly)
	defaultBrand := getEnvOrDefault("BRAND_DOMAIN", "")
	defaultCompetitors := getEnvOrDefault("COMPETITORS", "")
	defaultKeywords := getEnvOrDefault("KEYWORDS", "")
	defaultLogin := getEnvOrDefault("DATAFORSEO_LOGIN", "")
	defaultPassword := getEnvOrDefault("DATAFORSEO_PASSWORD", "")
	defaultMode := getEnvOrDefault("ANALYSIS_MODE", monitor.ModeFast)
	defaultLocation := getEnvOrDefault("SERP_LOCATION", "United States")
	defaultDevice := getEnvOrDefault("SERP_DEVICE", "desktop")
	defaultLanguage := getEnvOrDefault("SERP_LANGUAGE", "English")
	defaultWorkers := getEnvIntOrDefault("ANALYSIS_WORKERS", 0)
	defaultInterval := getEnvOrDefault("REQUEST_INTERVAL", "1s")
	defaultDebug := getEnvBoolOrDefault("DEBUG", false)
	defaultDataDir := getEnvOrDefault("DATA_DIR", "./data")
	defaultExportDir := getEnvOrDefault("EXPORT_DIR", "./exports")
	defaultBackendURL := getEnvOrDefault("BACKEND_URL", "")
	defaultBackendAPIKey := getEnvOrDefault("BACKEND_API_KEY", "")
	defaultBatchSize := getEnvIntOrDefault("BATCH_SIZE", 50)
	defaultEncryptionKey := getEnvOrDefault("ENCRYPTION_KEY", "")

	// Command line flags (override environment variables)
	var (
		brand         = flag.String("brand", defaultBrand, "Brand domain to track, e.g. yourbrand.com (env: BRAND_DOMAIN)")
		competitorCSV = flag.String("competitors", defaultCompetitors, "Comma-separated competitor domains (env: COMPETITORS)")
		keywordCSV    = flag.String("keywords", defaultKeywords, "Comma-separated keywords to analyze (env: KEYWORDS)")
		login         = flag.String("dataforseo-login", defaultLogin, "DataForSEO API login (env: DATAFORSEO_LOGIN)")
		password      = flag.String("dataforseo-password", defaultPassword, "DataForSEO API password (env: DATAFORSEO_PASSWORD)")
		mode          = flag.String("mode", defaultMode, "Analysis mode: fast or comprehensive (env: ANALYSIS_MODE)")
		location      = flag.String("location", defaultLocation, "SERP location name (env: SERP_LOCATION)")
		device        = flag.String("device", defaultDevice, "SERP device: desktop or mobile (env: SERP_DEVICE)")
		language      = flag.String("language", defaultLanguage, "SERP language name (env: SERP_LANGUAGE)")
		debug         = flag.Bool("debug", defaultDebug, "Enable debug logging (env: DEBUG)")
		help          = flag.Bool("help", false, "Show help message")

		// Advanced configuration flags
		workers       = flag.Int("workers", defaultWorkers, "Concurrent keyword workers, 0 = mode default (env: ANALYSIS_WORKERS)")
		interval      = flag.String("request-interval", defaultInterval, "Minimum delay between API requests (env: REQUEST_INTERVAL)")
		dataDir       = flag.String("data-dir", defaultDataDir, "Directory for analysis state (env: DATA_DIR)")
		exportDir     = flag.String("export-dir", defaultExportDir, "Directory for JSON exports (env: EXPORT_DIR)")
		backendURL    = flag.String("backend-url", defaultBackendURL, "Backend API URL for submitting results (env: BACKEND_URL)")
		backendAPIKey = flag.String("backend-api-key", defaultBackendAPIKey, "Backend API key (env: BACKEND_API_KEY)")
		batchSize     = flag.Int("batch-size", defaultBatchSize, "Records per backend submission batch (env: BATCH_SIZE)")
		encryptionKey = flag.String("encryption-key", defaultEncryptionKey, "Encryption key for stored analysis data (env: ENCRYPTION_KEY)")
	)

	flag.Parse()

	if *help {
		printUsage()
		return
	}

	// Validate required parameters
	if *brand == "" {
		fmt.Println("ERROR: Brand domain is required.")
		fmt.Println("Use -brand flag or BRAND_DOMAIN environment variable.")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	keywords := splitList(*keywordCSV)
	if len(keywords) == 0 {
		fmt.Println("ERROR: At least one keyword is required.")
		fmt.Println("Use -keywords flag or KEYWORDS environment variable.")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	if *login == "" || *password == "" {
		fmt.Println("ERROR: DataForSEO API credentials are required.")
		fmt.Println("Use DATAFORSEO_LOGIN and DATAFORSEO_PASSWORD environment variables (or the matching flags).")
		fmt.Println("Get API credentials at https://dataforseo.com/")
		fmt.Println("⚠️  SECURITY WARNING: Never hardcode API credentials in source code!")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	if !monitor.ValidMode(*mode) {
		fmt.Printf("ERROR: Unknown analysis mode %q. Use 'fast' or 'comprehensive'.\n", *mode)
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	if *encryptionKey != "" && len(*encryptionKey) < 16 {
		fmt.Println("ERROR: Encryption key must be at least 16 characters long.")
		fmt.Println("⚠️  SECURITY WARNING: Use a strong, randomly generated key (32+ characters)!")
		fmt.Println("Example: openssl rand -base64 32")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	requestInterval, intervalErr := time.ParseDuration(*interval)
	if intervalErr != nil || requestInterval <= 0 {
		fmt.Printf("ERROR: Invalid request interval %q. Use a Go duration like '1s' or '500ms'.\n", *interval)
		os.Exit(1)
	}

	if *debug {
		logger.SetLogger(logger.New(logger.Config{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		}))
	}
	log := logger.GetLogger().WithField("component", "main")

	competitors := splitList(*competitorCSV)

	log.WithFields(map[string]interface{}{
		"keyword_count":    len(keywords),
		"competitor_count": len(competitors),
		"mode":             *mode,
		"location":         *location,
		"device":           *device,
		"backend_url_set":  *backendURL != "",
		"config_source":    "env_vars_and_flags",
	}).Info("Configuration loaded")

	fmt.Println("🔍 AI Search Visibility Analysis")
	fmt.Printf("Brand: %s\n", *brand)
	if len(competitors) > 0 {
		fmt.Printf("Competitors: %s\n", strings.Join(competitors, ", "))
	}
	fmt.Printf("Keywords: %d (%s mode, %s, %s)\n", len(keywords), *mode, *location, *device)

	// Create the visibility monitor using the builder pattern
	builder := monitor.NewMonitorConfigBuilder().
		WithCredentials(*login, *password).
		WithBrand(*brand).
		WithCompetitors(competitors).
		WithMode(*mode).
		WithLocation(*location).
		WithDevice(*device).
		WithLanguage(*language).
		WithRequestInterval(requestInterval).
		WithDataDir(*dataDir)
	if *workers > 0 {
		builder = builder.WithWorkers(*workers)
	}
	if *encryptionKey != "" {
		builder = builder.WithEncryptionKey(*encryptionKey)
	}

	visibilityMonitor, createErr := builder.Build()
	if createErr != nil {
		log.WithError(createErr).Fatal("Failed to create visibility monitor")
	}
	defer func() {
		if err := visibilityMonitor.Close(); err != nil {
			log.WithError(err).Warn("Failed to close visibility monitor cleanly")
		}
	}()

	// Run analysis with panic recovery and timeout control
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute) // Prevent infinite hang
	defer cancel()
	startTime := time.Now()

	log.Info("Starting visibility analysis...")

	var results []*monitor.KeywordResult
	var err error

	// Protected analysis execution
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("analysis panic recovered: %v", r)
				log.WithField("panic", r).Error("Panic during visibility analysis")
			}
		}()
		results, err = visibilityMonitor.AnalyzeAll(ctx, keywords)
	}()

	if err != nil {
		log.WithError(err).Fatal("Analysis failed")
	}

	duration := time.Since(startTime)
	summary := report.Summarize(results)

	log.WithFields(map[string]interface{}{
		"total_queries": summary.TotalQueries,
		"ai_overviews":  summary.AIOverviewPresence.Count,
		"brand_cited":   summary.BrandCitations.Count,
		"duration":      duration.String(),
	}).Info("Analysis completed")

	printReport(results, summary, duration)

	// Persist the run locally before anything network-dependent
	exporter := storage.NewDataExporter(*exportDir)
	exportPath, exportErr := exporter.ExportResults(results, summary, map[string]interface{}{
		"brand_domain": *brand,
		"competitors":  competitors,
		"mode":         *mode,
		"location":     *location,
		"device":       *device,
		"language":     *language,
	})
	if exportErr != nil {
		log.WithError(exportErr).Error("Failed to export results")
		fmt.Printf("\n⚠️  Export failed: %v\n", exportErr)
	} else {
		fmt.Printf("\nResults exported to %s\n", exportPath)
	}

	if *backendURL != "" {
		submitToBackend(log, *backendURL, *backendAPIKey, *batchSize, *brand, *mode, results)
	}
}

// printReport writes the human-readable analysis report to stdout.
func printReport(results []*monitor.KeywordResult, summary *report.AnalysisSummary, duration time.Duration) {
	fmt.Printf("\n=== AI Search Visibility Summary ===\n")
	fmt.Printf("Queries analyzed: %d\n", summary.TotalQueries)
	fmt.Printf("AI Overviews: %d (%.1f%% of queries)\n",
		summary.AIOverviewPresence.Count, summary.AIOverviewPresence.Percentage)
	fmt.Printf("Brand cited: %d (%.1f%% of AI Overviews)\n",
		summary.BrandCitations.Count, summary.BrandCitations.Percentage)
	fmt.Printf("Visibility score: avg %.1f, max %.1f\n",
		summary.AIVisibilityScoring.AverageScore, summary.AIVisibilityScoring.MaxScore)
	fmt.Printf("People Also Ask: Google %d, Bing %d, %d unique combined\n",
		summary.PAAInsights.GooglePAA.TotalQuestions,
		summary.PAAInsights.BingPAA.TotalQuestions,
		summary.PAAInsights.CombinedUniqueQuestions)
	fmt.Printf("Duration: %s\n", duration.Round(time.Millisecond).String())

	if len(summary.CompetitorPerformance) > 0 {
		fmt.Printf("\n=== Competitor Citations ===\n")
		type pair struct {
			domain    string
			citations int
		}
		ranked := make([]pair, 0, len(summary.CompetitorPerformance))
		for domain, citations := range summary.CompetitorPerformance {
			ranked = append(ranked, pair{domain, citations})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].citations != ranked[j].citations {
				return ranked[i].citations > ranked[j].citations
			}
			return ranked[i].domain < ranked[j].domain
		})
		for _, p := range ranked {
			fmt.Printf("  %s: %d citations\n", p.domain, p.citations)
		}
	}

	fmt.Printf("\n=== Keyword Results ===\n")
	for _, r := range results {
		if r == nil {
			continue
		}
		status := "➖ no AI Overview"
		if r.GoogleAIOverviewPresent {
			if r.GoogleBrandCited {
				status = "✅ brand cited "
			} else {
				status = "❌ not cited   "
			}
		}
		line := fmt.Sprintf("%s %s - score %.1f", status, r.Query, r.AIVisibilityScore)
		if r.AIDominanceRank > 0 {
			line += fmt.Sprintf(", rank #%d", r.AIDominanceRank)
		}
		fmt.Println(line)
	}

	if len(summary.Recommendations) > 0 {
		fmt.Printf("\n=== Recommendations ===\n")
		for _, rec := range summary.Recommendations {
			fmt.Println(rec)
		}
	}
}

// submitToBackend pushes the run to the configured backend. Failures are
// reported but never fatal; the local export already holds the data.
func submitToBackend(log *logger.Logger, url, apiKey string, batchSize int, brand, mode string, results []*monitor.KeywordResult) {
	client, err := backend.NewBackendClient(backend.BackendConfig{
		BaseURL:    url,
		APIKey:     apiKey,
		BatchSize:  batchSize,
		EnableGzip: true,
		Timeout:    60 * time.Second,
	})
	if err != nil {
		log.WithError(err).Error("Backend submission skipped")
		fmt.Printf("\n⚠️  Backend submission skipped: %v\n", err)
		return
	}

	records := backend.NewDataConverter().ConvertResults(uuid.NewString(), brand, mode, results)
	submitter := backend.NewConcurrentSubmitter(client)
	if err := submitter.SubmitBatchesConcurrently(records, batchSize); err != nil {
		log.WithError(err).Error("Backend submission failed")
		fmt.Printf("\n⚠️  Backend submission failed: %v\n", err)
		fmt.Println("Results remain available in the local export.")
		return
	}
	fmt.Printf("\n📤 Submitted %d records to backend\n", len(records))
}

func printUsage() {
	fmt.Println("AI Search Visibility Monitor")
	fmt.Println("")
	fmt.Println("Tracks whether AI-generated search features (Google AI Overviews, Bing AI answers)")
	fmt.Println("cite your brand for the keywords you care about, and how competitors compare.")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./visibility-go -brand <domain> -keywords <kw1,kw2> [OPTIONS]")
	fmt.Println("    ./visibility-go  # Uses environment variables")
	fmt.Println("")
	fmt.Println("REQUIRED:")
	fmt.Println("    -brand string          Brand domain to track (env: BRAND_DOMAIN)")
	fmt.Println("    -keywords string       Comma-separated keywords (env: KEYWORDS)")
	fmt.Println("    DATAFORSEO_LOGIN       DataForSEO API login (or -dataforseo-login)")
	fmt.Println("    DATAFORSEO_PASSWORD    DataForSEO API password (or -dataforseo-password)")
	fmt.Println("")
	fmt.Println("BASIC OPTIONS:")
	fmt.Println("    -competitors string    Comma-separated competitor domains (env: COMPETITORS)")
	fmt.Println("    -mode string           fast (5 keywords) or comprehensive (20) (env: ANALYSIS_MODE)")
	fmt.Println("    -location string       SERP location (default: United States, env: SERP_LOCATION)")
	fmt.Println("    -device string         desktop or mobile (default: desktop, env: SERP_DEVICE)")
	fmt.Println("    -language string       SERP language (default: English, env: SERP_LANGUAGE)")
	fmt.Println("    -debug                 Enable debug logging (env: DEBUG)")
	fmt.Println("")
	fmt.Println("ADVANCED OPTIONS:")
	fmt.Println("    -workers int           Concurrent keyword workers, 0 = mode default (env: ANALYSIS_WORKERS)")
	fmt.Println("    -request-interval string Minimum delay between API requests (default: 1s, env: REQUEST_INTERVAL)")
	fmt.Println("    -data-dir string       Analysis state directory (default: ./data, env: DATA_DIR)")
	fmt.Println("    -export-dir string     JSON export directory (default: ./exports, env: EXPORT_DIR)")
	fmt.Println("    -backend-url string    Backend API URL for result submission (env: BACKEND_URL)")
	fmt.Println("    -backend-api-key string Backend API key (env: BACKEND_API_KEY)")
	fmt.Println("    -batch-size int        Records per submission batch (default: 50, env: BATCH_SIZE)")
	fmt.Println("    -encryption-key string Encrypt stored analysis data (env: ENCRYPTION_KEY)")
	fmt.Println("    -help                  Show this help message")
	fmt.Println("")
	fmt.Println("ENVIRONMENT VARIABLES (GitHub Actions friendly):")
	fmt.Println("    BRAND_DOMAIN           Brand domain to track (required)")
	fmt.Println("    KEYWORDS               Comma-separated keywords (required)")
	fmt.Println("    DATAFORSEO_LOGIN       DataForSEO API login (required)")
	fmt.Println("    DATAFORSEO_PASSWORD    DataForSEO API password (required)")
	fmt.Println("    COMPETITORS            Comma-separated competitor domains")
	fmt.Println("    ANALYSIS_MODE          fast or comprehensive (fast)")
	fmt.Println("    SERP_LOCATION          SERP location (United States)")
	fmt.Println("    BACKEND_URL            Backend API URL for submission")
	fmt.Println("    BACKEND_API_KEY        Backend API key")
	fmt.Println("    ENCRYPTION_KEY         Key for encrypting stored data")
	fmt.Println("    DEBUG                  Enable debug logging (false)")
	fmt.Println("")
	fmt.Println("EXAMPLES:")
	fmt.Println("    # Command line usage")
	fmt.Println("    ./visibility-go -brand \"yourbrand.com\" -keywords \"ai search,best crm software\"")
	fmt.Println("    ./visibility-go -brand \"yourbrand.com\" -keywords \"ai search\" -competitors \"rival.com,other.io\" -mode comprehensive")
	fmt.Println("")
	fmt.Println("    # Environment variables (GitHub Actions)")
	fmt.Println("    export BRAND_DOMAIN=\"yourbrand.com\"")
	fmt.Println("    export KEYWORDS=\"ai search visibility,serp monitoring\"")
	fmt.Println("    export DATAFORSEO_LOGIN=\"login\"")
	fmt.Println("    export DATAFORSEO_PASSWORD=\"password\"")
	fmt.Println("    ./visibility-go")
	fmt.Println("")
	fmt.Println("    # GitHub Actions workflow")
	fmt.Println("    env:")
	fmt.Println("      DATAFORSEO_LOGIN: ${{ secrets.DATAFORSEO_LOGIN }}")
	fmt.Println("      DATAFORSEO_PASSWORD: ${{ secrets.DATAFORSEO_PASSWORD }}")
	fmt.Println("      BRAND_DOMAIN: yourbrand.com")
	fmt.Println("      ANALYSIS_MODE: fast")
	fmt.Println("")
	fmt.Println("MODES:")
	fmt.Println("- fast: first 5 keywords, 3 competitors, concurrent Google+Bing queries")
	fmt.Println("- comprehensive: up to 20 keywords, sequential queries, full PAA capture")
	fmt.Println("")
	fmt.Println("Results are exported as JSON and optionally submitted to your backend in batches.")
}
