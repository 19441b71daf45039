// Package engine orchestrates the transaction pattern detectors into a single
// batch analytics run.
package engine

import (
	"context"
	"sync"

	"github.com/finsight/finsight/internal/anomaly"
	"github.com/finsight/finsight/internal/income"
	"github.com/finsight/finsight/internal/insight"
	"github.com/finsight/finsight/internal/model"
	"github.com/finsight/finsight/internal/recurrence"
)

// Result aggregates one analytics run. Partial results are valid: a detector
// with too little data contributes an empty collection rather than an error.
type Result struct {
	Anomalies     []anomaly.Result       `json:"anomalies"`
	Subscriptions []recurrence.Candidate `json:"subscriptions"`
	IncomeStreams []income.Stream        `json:"income_streams"`
	Insights      []insight.Insight      `json:"insights"`

	// MonthlySubscriptionCost is the summed monthly-equivalent cost of all
	// detected subscriptions.
	MonthlySubscriptionCost float64 `json:"monthly_subscription_cost"`
	// MonthlyIncomeTotal is the summed monthly estimate across income streams.
	MonthlyIncomeTotal float64 `json:"monthly_income_total"`
}

// Engine runs the detectors over one user's transaction batch. It holds only
// configuration; every run builds fresh detector state, so one Engine may be
// shared across users and goroutines.
type Engine struct {
	cfg Config
}

// New validates the configuration and returns an engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run executes the three detectors over the batch and synthesizes insights.
// The detectors are independent and side-effect free, so they run in parallel.
// Output is deterministic for identical input and configuration.
func (e *Engine) Run(ctx context.Context, txns []*model.Transaction) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{}
	if len(txns) == 0 {
		return res, nil
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		res.Anomalies = anomaly.Detect(txns, anomaly.Options{
			Contamination: e.cfg.ContaminationRate,
			Trees:         e.cfg.EnsembleSize,
			Seed:          e.cfg.RandomSeed,
		})
	}()
	go func() {
		defer wg.Done()
		res.Subscriptions = recurrence.Detect(txns, recurrence.Options{
			AmountDeviation:   e.cfg.AmountVarianceThreshold,
			WeeklyMaxGapDays:  e.cfg.WeeklyMaxGapDays,
			MonthlyMaxGapDays: e.cfg.MonthlyMaxGapDays,
		})
	}()
	go func() {
		defer wg.Done()
		res.IncomeStreams = income.Merge(txns, income.Options{
			NameSimilarity:    e.cfg.NameSimilarityThreshold,
			AmountTolerance:   e.cfg.AmountTolerance,
			WeeklyMaxGapDays:  e.cfg.WeeklyMaxGapDays,
			MonthlyMaxGapDays: e.cfg.MonthlyMaxGapDays,
		})
	}()
	wg.Wait()

	for _, s := range res.Subscriptions {
		res.MonthlySubscriptionCost += s.MonthlyCost()
	}
	for _, s := range res.IncomeStreams {
		res.MonthlyIncomeTotal += s.MonthlyIncome
	}

	res.Insights = insight.Synthesize(txns, res.Anomalies, res.Subscriptions, res.IncomeStreams)
	return res, nil
}
