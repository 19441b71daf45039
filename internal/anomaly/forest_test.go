package anomaly

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/model"
)

func ordinaryBatch(n int) []*model.Transaction {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	merchants := []string{"Grocer", "Coffee Shop", "Gas Station", "Pharmacy"}
	txns := make([]*model.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txns = append(txns, &model.Transaction{
			ID:              fmt.Sprintf("tx-%03d", i),
			MerchantName:    merchants[i%len(merchants)],
			Amount:          20 + float64(i%7)*12.5,
			Date:            base.AddDate(0, 0, i%60).Add(time.Duration(i%12) * time.Hour),
			CategoryPrimary: "shopping",
		})
	}
	return txns
}

func TestDetectFlagsLargeOutlier(t *testing.T) {
	txns := ordinaryBatch(50)
	txns = append(txns, &model.Transaction{
		ID:              "tx-outlier",
		MerchantName:    "Exotic Imports",
		Amount:          9000,
		Date:            time.Date(2024, 2, 10, 3, 0, 0, 0, time.UTC),
		CategoryPrimary: "other",
	})

	results := Detect(txns, Options{})
	require.Len(t, results, 51)

	var outlier Result
	maxScore := -1.0
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
		if r.TransactionID == "tx-outlier" {
			outlier = r
		}
	}

	assert.Equal(t, maxScore, outlier.Score, "the $9000 transaction should have the highest anomaly score")
	assert.True(t, outlier.IsAnomaly)
}

func TestDetectDeterministic(t *testing.T) {
	txns := ordinaryBatch(40)
	txns = append(txns, &model.Transaction{
		ID:           "big",
		MerchantName: "Jeweler",
		Amount:       4200,
		Date:         time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC),
	})

	first := Detect(txns, Options{})
	second := Detect(txns, Options{})
	assert.Equal(t, first, second, "same batch, config and seed must reproduce identical results")
}

func TestDetectSeedChangesScores(t *testing.T) {
	txns := ordinaryBatch(30)
	a := Detect(txns, Options{Seed: 42})
	b := Detect(txns, Options{Seed: 1234})

	different := false
	for i := range a {
		if a[i].Score != b[i].Score {
			different = true
			break
		}
	}
	assert.True(t, different, "different seeds should partition differently")
}

func TestDetectZeroVarianceBatch(t *testing.T) {
	date := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var txns []*model.Transaction
	for i := 0; i < 12; i++ {
		txns = append(txns, &model.Transaction{
			ID:              fmt.Sprintf("dup-%d", i),
			MerchantName:    "Same Place",
			Amount:          9.99,
			Date:            date,
			CategoryPrimary: "food",
		})
	}

	results := Detect(txns, Options{})
	require.Len(t, results, 12)
	for _, r := range results {
		assert.False(t, r.IsAnomaly, "identical transactions must not be flagged")
	}
}

func TestDetectSmallBatch(t *testing.T) {
	results := Detect(ordinaryBatch(5), Options{})
	require.Len(t, results, 5)
	// Too few rows for a whole outlier at 10% contamination: scores are
	// produced but nothing is flagged.
	for _, r := range results {
		assert.False(t, r.IsAnomaly)
	}
}

func TestDetectEmpty(t *testing.T) {
	assert.Nil(t, Detect(nil, Options{}))
}

func TestDetectScoreBounds(t *testing.T) {
	results := Detect(ordinaryBatch(25), Options{})
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}
