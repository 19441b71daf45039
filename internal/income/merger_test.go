package income

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/finsight/internal/model"
)

func deposit(id, source string, amount float64, date time.Time) *model.Transaction {
	return &model.Transaction{
		ID:           id,
		MerchantName: source,
		Name:         source,
		Amount:       -amount,
		Date:         date,
	}
}

func TestNormalizeSource(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Acme Corp Payroll", "acme"},
		{"ACME CORP", "acme"},
		{"Acme Corp", "acme"},
		{"XYZ Client LLC", "xyz client"},
		{"  Globex   Inc.  ", "globex"},
		{"Initech", "initech"},
	}
	for _, tt := range tests {
		if got := normalizeSource(tt.raw); got != tt.want {
			t.Errorf("normalizeSource(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

// "Acme Payroll" $3,200 and "ACME CORP" $3,210 thirty days apart fold into one
// stream with a monthly estimate around $3,205.
func TestMergeNamingVariants(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := []*model.Transaction{
		deposit("p1", "Acme Payroll", 3200, start),
		deposit("p2", "ACME CORP", 3210, start.AddDate(0, 0, 30)),
	}

	streams := Merge(txns, Options{})
	require.Len(t, streams, 1)

	s := streams[0]
	assert.Equal(t, "Acme", s.CanonicalName)
	assert.ElementsMatch(t, []string{"p1", "p2"}, s.TransactionIDs)
	assert.Equal(t, "monthly", s.Frequency)
	assert.InDelta(t, 3205, s.MonthlyIncome, 1)
	assert.InDelta(t, 30, s.DaysOfData, 0.01)
	assert.GreaterOrEqual(t, s.Confidence, 0.0)
	assert.LessOrEqual(t, s.Confidence, 1.0)
}

// Similar names alone are not enough: a big amount gap keeps clusters apart.
func TestMergeRequiresAmountAgreement(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := []*model.Transaction{
		deposit("a1", "Northwind Group", 5000, start),
		deposit("a2", "Northwind Group", 5000, start.AddDate(0, 0, 30)),
		deposit("b1", "Northwind Grp", 900, start.AddDate(0, 0, 5)),
		deposit("b2", "Northwind Grp", 900, start.AddDate(0, 0, 35)),
	}

	streams := Merge(txns, Options{})
	require.Len(t, streams, 2, "name similarity without amount agreement must not merge")
}

// Equal amounts alone are not enough either: unrelated payers stay separate.
func TestMergeRequiresNameSimilarity(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := []*model.Transaction{
		deposit("a1", "Initech", 1500, start),
		deposit("a2", "Initech", 1500, start.AddDate(0, 0, 30)),
		deposit("b1", "Globex", 1500, start.AddDate(0, 0, 2)),
		deposit("b2", "Globex", 1500, start.AddDate(0, 0, 32)),
	}

	streams := Merge(txns, Options{})
	require.Len(t, streams, 2, "coincidentally equal deposits must not merge")
}

func TestMergeTypoVariantsMerged(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := []*model.Transaction{
		deposit("a1", "Soylent Industries", 2000, start),
		deposit("a2", "Soylent Industres", 2010, start.AddDate(0, 0, 14)),
		deposit("a3", "Soylent Industries", 2000, start.AddDate(0, 0, 28)),
	}

	streams := Merge(txns, Options{})
	require.Len(t, streams, 1)
	assert.Equal(t, 3, streams[0].DepositCount)
}

func TestMergeWeeklyEstimate(t *testing.T) {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	var txns []*model.Transaction
	for i := 0; i < 4; i++ {
		txns = append(txns, deposit(fmt.Sprintf("w%d", i), "Gig Platform", 300, start.AddDate(0, 0, 7*i)))
	}

	streams := Merge(txns, Options{})
	require.Len(t, streams, 1)
	assert.Equal(t, "weekly", streams[0].Frequency)
	assert.InDelta(t, 300*4.33, streams[0].MonthlyIncome, 0.01)
}

func TestMergeExpensesIgnored(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txns := []*model.Transaction{
		{ID: "e1", MerchantName: "Rent Co", Amount: 1200, Date: start},
		{ID: "e2", MerchantName: "Rent Co", Amount: 1200, Date: start.AddDate(0, 0, 30)},
	}
	assert.Empty(t, Merge(txns, Options{}))
}

func TestMergeSingleDepositDropped(t *testing.T) {
	txns := []*model.Transaction{
		deposit("solo", "One Time Client", 750, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	assert.Empty(t, Merge(txns, Options{}), "streams must trace to at least two deposits")
}

func TestMergeSortedByMonthlyIncomeDesc(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var txns []*model.Transaction
	for i := 0; i < 3; i++ {
		date := start.AddDate(0, 0, 30*i)
		txns = append(txns,
			deposit(fmt.Sprintf("s%d", i), "Salary Payer", 4500, date),
			deposit(fmt.Sprintf("f%d", i), "Freelance Client", 1200, date.AddDate(0, 0, 3)),
		)
	}

	streams := Merge(txns, Options{})
	require.Len(t, streams, 2)
	assert.Equal(t, "Salary Payer", streams[0].CanonicalName)
	assert.Greater(t, streams[0].MonthlyIncome, streams[1].MonthlyIncome)
}

// A longer observation window with the same cadence never lowers confidence.
func TestStreamConfidenceMonotonicInWindow(t *testing.T) {
	short := streamConfidence(3, 30)
	long := streamConfidence(3, 120)
	assert.GreaterOrEqual(t, long, short)

	few := streamConfidence(2, 60)
	many := streamConfidence(8, 60)
	assert.GreaterOrEqual(t, many, few)
}

func TestMergeDeterministic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var txns []*model.Transaction
	for i := 0; i < 5; i++ {
		date := start.AddDate(0, 0, 30*i)
		txns = append(txns,
			deposit(fmt.Sprintf("a%d", i), "Alpha Corp", 3000, date),
			deposit(fmt.Sprintf("b%d", i), "Beta LLC", 2000, date),
			deposit(fmt.Sprintf("c%d", i), "Gamma Inc", 1000, date),
		)
	}

	first := Merge(txns, Options{})
	second := Merge(txns, Options{})
	assert.Equal(t, first, second)
}
