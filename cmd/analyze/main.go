// Command analyze runs the pattern analytics engine over an exported statement
// file and prints the results as JSON.
//
// Configuration defaults can be overridden through the environment (optionally
// via a .env file): FINSIGHT_CONTAMINATION_RATE, FINSIGHT_ENSEMBLE_SIZE,
// FINSIGHT_RANDOM_SEED, FINSIGHT_AMOUNT_VARIANCE_THRESHOLD,
// FINSIGHT_NAME_SIMILARITY_THRESHOLD, FINSIGHT_AMOUNT_TOLERANCE,
// FINSIGHT_WEEKLY_MAX_GAP_DAYS, FINSIGHT_MONTHLY_MAX_GAP_DAYS.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/finsight/finsight/internal/engine"
	"github.com/finsight/finsight/internal/ingest"
	"github.com/finsight/finsight/internal/model"
)

func main() {
	input := flag.String("input", "", "statement file to analyze (.csv or .json)")
	user := flag.String("user", "local", "user ID attached to the run")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -input transactions.csv")
		os.Exit(2)
	}

	// Missing .env is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[Analyze] skipping .env: %v", err)
	}

	cfg := configFromEnv()
	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("[Analyze] %v", err)
	}

	txns, err := readTransactions(*input)
	if err != nil {
		log.Fatalf("[Analyze] %v", err)
	}
	log.Printf("[Analyze] loaded %d transactions from %s", len(txns), *input)

	svc := engine.NewAnalyticsService(eng)
	result, err := svc.Analyze(context.Background(), *user, txns)
	if err != nil {
		log.Fatalf("[Analyze] %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		log.Fatalf("[Analyze] encode result: %v", err)
	}
}

func readTransactions(path string) ([]*model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ingest.ReadCSV(f)
	case ".json":
		return ingest.ReadJSON(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .csv or .json)", filepath.Ext(path))
	}
}

// configFromEnv starts from the engine defaults and applies any overrides set
// in the environment. Values are passed through unvalidated; engine.New
// rejects anything out of range.
func configFromEnv() engine.Config {
	cfg := engine.DefaultConfig()
	overrideFloat("FINSIGHT_CONTAMINATION_RATE", &cfg.ContaminationRate)
	overrideInt("FINSIGHT_ENSEMBLE_SIZE", &cfg.EnsembleSize)
	overrideInt64("FINSIGHT_RANDOM_SEED", &cfg.RandomSeed)
	overrideFloat("FINSIGHT_AMOUNT_VARIANCE_THRESHOLD", &cfg.AmountVarianceThreshold)
	overrideFloat("FINSIGHT_NAME_SIMILARITY_THRESHOLD", &cfg.NameSimilarityThreshold)
	overrideFloat("FINSIGHT_AMOUNT_TOLERANCE", &cfg.AmountTolerance)
	overrideFloat("FINSIGHT_WEEKLY_MAX_GAP_DAYS", &cfg.WeeklyMaxGapDays)
	overrideFloat("FINSIGHT_MONTHLY_MAX_GAP_DAYS", &cfg.MonthlyMaxGapDays)
	return cfg
}

func overrideFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("[Analyze] %s: %v", key, err)
		}
		*dst = parsed
	}
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("[Analyze] %s: %v", key, err)
		}
		*dst = parsed
	}
}

func overrideInt64(key string, dst *int64) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("[Analyze] %s: %v", key, err)
		}
		*dst = parsed
	}
}
