//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"visibility-go/pkg/monitor"
)

func main() {
	fmt.Println("=== Debug SERP Result Flow ===\n")

	// Live credentials only. Every query below bills the DataForSEO account.
	login := os.Getenv("DATAFORSEO_LOGIN")
	password := os.Getenv("DATAFORSEO_PASSWORD")
	if login == "" || password == "" {
		fmt.Println("❌ DATAFORSEO_LOGIN and DATAFORSEO_PASSWORD must be set")
		fmt.Println("   Get API credentials at https://dataforseo.com/")
		os.Exit(1)
	}

	brand := os.Getenv("BRAND_DOMAIN")
	if brand == "" {
		brand = "hubspot.com"
	}

	testKeywords := []string{
		"best crm software",
		"how to track ai search visibility",
	}

	vm, err := monitor.NewMonitorConfigBuilder().
		WithCredentials(login, password).
		WithBrand(brand).
		WithCompetitors([]string{"salesforce.com", "zoho.com"}).
		WithMode(monitor.ModeFast).
		WithRequestInterval(time.Second).
		WithDataDir("./data").
		Build()
	if err != nil {
		log.Fatalf("Failed to create monitor: %v", err)
	}
	defer vm.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Single keyword first: one Google task and one Bing task
	fmt.Println("Testing direct AnalyzeKeyword method...")
	record, err := vm.AnalyzeKeyword(ctx, testKeywords[0])
	if err != nil {
		fmt.Printf("Direct analysis failed: %v\n", err)
	} else if record != nil {
		fmt.Printf("Direct analysis succeeded:\n")
		printRecord(record)
	}

	fmt.Println("\nNow testing full AnalyzeAll method...")

	results, err := vm.AnalyzeAll(ctx, testKeywords)
	if err != nil {
		log.Printf("Analysis completed with errors: %v", err)
	}

	fmt.Printf("Results returned: %d\n", len(results))
	for i, r := range results {
		fmt.Printf("Result %d:\n", i+1)
		printRecord(r)
	}

	metrics := vm.GetMetrics()
	fmt.Printf("\nClient metrics: lookups=%d error_rate=%.2f avg_response=%s\n",
		metrics.Lookups, metrics.ErrorRate, metrics.AvgResponse)
}

func printRecord(r *monitor.KeywordResult) {
	fmt.Printf("  Query: %s\n", r.Query)
	fmt.Printf("  AI Overview: %t\n", r.GoogleAIOverviewPresent)
	fmt.Printf("  Brand cited: %t\n", r.GoogleBrandCited)
	fmt.Printf("  Citations: %d\n", len(r.GoogleAICitations))
	fmt.Printf("  Bing AI features: %v\n", r.BingAIFeatures)
	fmt.Printf("  Score: %.1f (rank %d)\n", r.AIVisibilityScore, r.AIDominanceRank)
	if len(r.CompetitorAIScores) > 0 {
		fmt.Printf("  Competitor scores: %v\n", r.CompetitorAIScores)
	}
}
