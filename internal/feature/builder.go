// Package feature converts transaction batches into numeric feature vectors for
// anomaly detection.
//
// The amount feature is the raw signed amount (positive = expense, negative =
// income); no absolute-value transform is applied. Day-of-week and hour are read
// from the transaction timestamp as recorded, with no timezone conversion, so
// bucket boundaries match the source data.
package feature

import (
	"time"

	"github.com/finsight/finsight/internal/model"
)

// Vector is the per-transaction feature vector. Frequency scores are normalized
// counts within the batch the vector was built from, not global statistics.
type Vector struct {
	Amount            float64
	DayOfWeek         float64 // 0 (Sunday) .. 6
	HourOfDay         float64 // 0 .. 23
	MerchantFrequency float64 // 0 .. 1
	CategoryFrequency float64 // 0 .. 1
}

// Values returns the vector as a row for matrix-style consumers.
func (v Vector) Values() []float64 {
	return []float64{v.Amount, v.DayOfWeek, v.HourOfDay, v.MerchantFrequency, v.CategoryFrequency}
}

// Dim is the number of features per vector.
const Dim = 5

// Build derives one feature vector per transaction, aligned with the input
// order. It is pure: counts are taken over the given batch only.
func Build(txns []*model.Transaction) []Vector {
	if len(txns) == 0 {
		return nil
	}

	merchantCounts := make(map[string]int, len(txns))
	categoryCounts := make(map[string]int, len(txns))
	for _, t := range txns {
		merchantCounts[t.Source()]++
		if tag := model.NormalizeCategory(t.CategoryPrimary); tag != "" {
			categoryCounts[tag]++
		}
	}

	n := float64(len(txns))
	vectors := make([]Vector, len(txns))
	for i, t := range txns {
		var catFreq float64
		if tag := model.NormalizeCategory(t.CategoryPrimary); tag != "" {
			catFreq = float64(categoryCounts[tag]) / n
		}
		vectors[i] = Vector{
			Amount:            t.Amount,
			DayOfWeek:         float64(dayOfWeek(t.Date)),
			HourOfDay:         float64(t.Date.Hour()),
			MerchantFrequency: float64(merchantCounts[t.Source()]) / n,
			CategoryFrequency: catFreq,
		}
	}
	return vectors
}

func dayOfWeek(d time.Time) int {
	return int(d.Weekday())
}
