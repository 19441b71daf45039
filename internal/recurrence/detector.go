// Package recurrence identifies recurring charges (subscriptions) in expense
// history.
package recurrence

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/model"
)

// Frequency is the billing cadence of a detected subscription.
type Frequency string

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// weeksPerMonth converts weekly charges onto a monthly basis (52 weeks / 12 months).
const weeksPerMonth = 4.33

// MonthlyMultiplier returns the factor converting one charge at this frequency
// into a monthly-equivalent cost.
func (f Frequency) MonthlyMultiplier() float64 {
	switch f {
	case Weekly:
		return weeksPerMonth
	case Yearly:
		return 1.0 / 12.0
	default:
		return 1
	}
}

// Candidate is a detected recurring charge for one merchant.
type Candidate struct {
	MerchantName     string    `json:"merchant_name"`
	AvgAmount        float64   `json:"avg_amount"`
	Frequency        Frequency `json:"frequency"`
	TransactionCount int       `json:"transaction_count"`
	LastSeen         time.Time `json:"last_seen_date"`
	Category         string    `json:"category"`
	Confidence       float64   `json:"confidence"`
	TransactionIDs   []string  `json:"transaction_ids"`
}

// MonthlyCost is the candidate's average amount converted onto a monthly basis.
func (c *Candidate) MonthlyCost() float64 {
	return c.AvgAmount * c.Frequency.MonthlyMultiplier()
}

// Options configure detection. Zero values take the stated defaults.
type Options struct {
	// AmountDeviation is the maximum mean absolute deviation of a group's
	// amounts, as a fraction of the mean, for the group to count as recurring.
	AmountDeviation float64
	// WeeklyMaxGapDays and MonthlyMaxGapDays bound the mean day-gap for the
	// weekly and monthly classifications; both boundaries are inclusive.
	// Anything above MonthlyMaxGapDays is yearly.
	WeeklyMaxGapDays  float64
	MonthlyMaxGapDays float64
}

const (
	DefaultAmountDeviation   = 0.10
	DefaultWeeklyMaxGapDays  = 10
	DefaultMonthlyMaxGapDays = 40
)

// Detect finds recurring charges in the expense side of the batch. Each
// transaction belongs to at most one candidate because grouping is keyed by
// merchant name. Candidates are sorted by descending average amount so the
// largest recurring cost comes first.
func Detect(txns []*model.Transaction, opts Options) []Candidate {
	if opts.AmountDeviation == 0 {
		opts.AmountDeviation = DefaultAmountDeviation
	}
	if opts.WeeklyMaxGapDays == 0 {
		opts.WeeklyMaxGapDays = DefaultWeeklyMaxGapDays
	}
	if opts.MonthlyMaxGapDays == 0 {
		opts.MonthlyMaxGapDays = DefaultMonthlyMaxGapDays
	}

	groups := make(map[string][]*model.Transaction)
	for _, t := range txns {
		if !t.IsExpense() {
			continue
		}
		key := normalizeMerchant(t.Source())
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], t)
	}

	var candidates []Candidate
	for _, group := range groups {
		if c, ok := evaluateGroup(group, opts); ok {
			candidates = append(candidates, c)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].AvgAmount != candidates[j].AvgAmount {
			return candidates[i].AvgAmount > candidates[j].AvgAmount
		}
		return candidates[i].MerchantName < candidates[j].MerchantName
	})
	return candidates
}

func evaluateGroup(group []*model.Transaction, opts Options) (Candidate, bool) {
	// One interval minimum.
	if len(group) < 2 {
		return Candidate{}, false
	}

	var sum float64
	for _, t := range group {
		sum += t.Amount
	}
	mean := sum / float64(len(group))
	if mean <= 0 {
		return Candidate{}, false
	}

	// Amount-consistency gate: repeat visits with varying totals are not
	// subscriptions.
	mad := meanAbsDeviation(group, mean)
	if mad >= opts.AmountDeviation*mean {
		return Candidate{}, false
	}

	sorted := append([]*model.Transaction(nil), group...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	gaps := make([]float64, 0, len(sorted)-1)
	var gapSum float64
	for i := 1; i < len(sorted); i++ {
		days := sorted[i].Date.Sub(sorted[i-1].Date).Hours() / 24
		gaps = append(gaps, days)
		gapSum += days
	}
	meanGap := gapSum / float64(len(gaps))
	if meanGap <= 0 {
		// Same-day duplicates carry no cadence signal.
		return Candidate{}, false
	}

	var freq Frequency
	switch {
	case meanGap <= opts.WeeklyMaxGapDays:
		freq = Weekly
	case meanGap <= opts.MonthlyMaxGapDays:
		freq = Monthly
	default:
		freq = Yearly
	}

	ids := make([]string, len(sorted))
	for i, t := range sorted {
		ids[i] = t.ID
	}

	return Candidate{
		MerchantName:     sorted[0].Source(),
		AvgAmount:        math.Round(mean*100) / 100,
		Frequency:        freq,
		TransactionCount: len(sorted),
		LastSeen:         sorted[len(sorted)-1].Date,
		Category:         mostCommonCategory(sorted),
		Confidence:       confidence(len(sorted), mad/mean, opts.AmountDeviation, gaps, meanGap),
		TransactionIDs:   ids,
	}, true
}

// confidence grows with sample size and with tightness of both the amount and
// interval spread, and stays within [0, 1].
func confidence(count int, relAmountMAD, amountThreshold float64, gaps []float64, meanGap float64) float64 {
	amountScore := 1 - relAmountMAD/amountThreshold
	if amountScore < 0 {
		amountScore = 0
	}

	var gapDevSum float64
	for _, g := range gaps {
		gapDevSum += math.Abs(g - meanGap)
	}
	relGapMAD := gapDevSum / float64(len(gaps)) / meanGap
	intervalScore := 1 - relGapMAD
	if intervalScore < 0 {
		intervalScore = 0
	}

	sizeFactor := 0.5 + 0.5*math.Min(float64(count)/5.0, 1.0)
	score := sizeFactor * (0.6*amountScore + 0.4*intervalScore)
	return math.Round(score*100) / 100
}

func meanAbsDeviation(group []*model.Transaction, mean float64) float64 {
	var sum float64
	for _, t := range group {
		sum += math.Abs(t.Amount - mean)
	}
	return sum / float64(len(group))
}

func normalizeMerchant(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func mostCommonCategory(group []*model.Transaction) string {
	counts := make(map[string]int)
	for _, t := range group {
		if tag := model.NormalizeCategory(t.CategoryPrimary); tag != "" {
			counts[tag]++
		}
	}
	var best string
	var bestCount int
	for tag, count := range counts {
		if count > bestCount || (count == bestCount && tag < best) {
			best = tag
			bestCount = count
		}
	}
	return best
}
