package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/noguchisakihand-source/apartment-dashboard/config"
	"github.com/noguchisakihand-source/apartment-dashboard/services"
	"github.com/noguchisakihand-source/apartment-dashboard/storage"
	"github.com/noguchisakihand-source/apartment-dashboard/utils"
)

func main() {
	transactionsFile := flag.String("import-transactions", "",
		"CSV of completed transactions to ingest (replaces the dataset) before scoring")
	listingsFile := flag.String("import-listings", "",
		"JSON listing file to import before scoring")
	flag.Parse()

	cfg := config.Load()
	logger := utils.NewLogger(cfg.Debug)

	logger.Info("=== Apartment Deal Scoring starting ===")
	logger.Info("Config — factors: %s | ranking size: %d | retries: %d",
		cfg.FactorsPath, cfg.RankingSize, cfg.MaxRetries)

	store, err := storage.NewPostgresStore(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	if *transactionsFile != "" {
		ingestor := services.NewIngestor(logger, store)
		loaded, skipped, err := ingestor.IngestFile(*transactionsFile)
		if err != nil {
			logger.Error("Transaction ingest failed: %v", err)
			os.Exit(1)
		}
		logger.Info("Transaction dataset replaced: %d rows (%d skipped)", loaded, skipped)
	}

	if *listingsFile != "" {
		importer := services.NewImporter(logger, store)
		if _, err := importer.ImportFile(*listingsFile); err != nil {
			logger.Error("Listing import failed: %v", err)
			os.Exit(1)
		}
	}

	factors, err := services.LoadFactorConfig(cfg.FactorsPath)
	if err != nil {
		logger.Error("Failed to load adjustment factors: %v", err)
		os.Exit(1)
	}

	transactions, err := store.FetchTransactions()
	if err != nil {
		logger.Error("Failed to fetch transactions: %v", err)
		os.Exit(1)
	}
	if len(transactions) == 0 {
		logger.Warn("Transaction table is empty — every listing will be skipped")
	}

	market := services.NewMarketService(logger, transactions, services.CurrentYear())
	adjust := services.NewAdjustEngine(logger, factors)
	retry := &utils.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		BaseDelay:   500 * time.Millisecond,
		Logger:      logger,
	}

	scorer := services.NewScorer(logger, market, adjust, store, retry)
	summary, err := scorer.Run()
	if err != nil {
		logger.Error("Scoring run aborted: %v", err)
		os.Exit(1)
	}

	reporter := services.NewReporter()
	reporter.PrintRunSummary(summary)

	top, err := store.TopByScore(cfg.RankingSize)
	if err != nil {
		logger.Error("Failed to fetch ranking: %v", err)
		os.Exit(1)
	}
	reporter.PrintRanking(top)

	exporter, err := storage.NewCSVExporter(cfg.CSVExportPath)
	if err != nil {
		logger.Error("Failed to create CSV exporter: %v", err)
		os.Exit(1)
	}
	defer exporter.Close()

	if err := exporter.Export(top); err != nil {
		logger.Error("CSV export failed: %v", err)
	} else {
		logger.Info("Ranking exported to %s", cfg.CSVExportPath)
	}

	fmt.Printf("  Done. Scored %d listings | Ranking CSV → %s\n\n",
		summary.Updated, cfg.CSVExportPath)
}
