// Package income recognizes naming variants of the same payer in inflow
// transactions and merges them into income streams with monthly estimates.
package income

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/finsight/finsight/internal/model"
)

// Stream is one merged income source.
type Stream struct {
	CanonicalName   string    `json:"canonical_name"`
	TransactionIDs  []string  `json:"member_transaction_ids"`
	MonthlyIncome   float64   `json:"monthly_income_estimate"`
	Confidence      float64   `json:"confidence"`
	DaysOfData      float64   `json:"days_of_data"`
	Frequency       string    `json:"frequency"`
	DepositCount    int       `json:"deposit_count"`
	AvgDepositValue float64   `json:"avg_deposit_value"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
}

// Options configure merging. Zero values take the stated defaults.
type Options struct {
	// NameSimilarity is the minimum text-similarity score for two normalized
	// source names to be considered the same payer.
	NameSimilarity float64
	// AmountTolerance is the maximum relative difference between two clusters'
	// representative deposit amounts for them to be merged.
	AmountTolerance float64
	// WeeklyMaxGapDays and MonthlyMaxGapDays classify deposit cadence the same
	// way the recurrence detector classifies charges.
	WeeklyMaxGapDays  float64
	MonthlyMaxGapDays float64
	// Similarity overrides the name-matching algorithm. Defaults to Ratio.
	Similarity Func
}

const (
	DefaultNameSimilarity  = 0.8
	DefaultAmountTolerance = 0.10
	weeksPerMonth          = 4.33
)

// Corporate-suffix and payroll noise stripped before comparing source names.
var noisePattern = regexp.MustCompile(`(?i)\b(inc|llc|ltd|corp|corporation|co|pty|payroll|payment|deposit|direct dep(osit)?|des)\b\.?`)

// normalizeSource lower-cases a payer name, strips noise tokens, and collapses
// whitespace.
func normalizeSource(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = noisePattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// cluster is one distinct normalized source name and its transactions.
type cluster struct {
	name string
	txns []*model.Transaction
}

func (c *cluster) avgAmount() float64 {
	var sum float64
	for _, t := range c.txns {
		sum += math.Abs(t.Amount)
	}
	return sum / float64(len(c.txns))
}

// Merge folds the income side of the batch into streams. Two name clusters are
// merged only when BOTH the normalized names are similar and their typical
// amounts agree within tolerance; either signal alone is insufficient.
//
// Streams always trace to at least two deposits; single-deposit sources are
// dropped as InsufficientData.
func Merge(txns []*model.Transaction, opts Options) []Stream {
	if opts.NameSimilarity == 0 {
		opts.NameSimilarity = DefaultNameSimilarity
	}
	if opts.AmountTolerance == 0 {
		opts.AmountTolerance = DefaultAmountTolerance
	}
	if opts.WeeklyMaxGapDays == 0 {
		opts.WeeklyMaxGapDays = 10
	}
	if opts.MonthlyMaxGapDays == 0 {
		opts.MonthlyMaxGapDays = 40
	}
	if opts.Similarity == nil {
		opts.Similarity = Ratio
	}

	byName := make(map[string]*cluster)
	for _, t := range txns {
		if !t.IsIncome() {
			continue
		}
		key := normalizeSource(t.Source())
		if key == "" {
			continue
		}
		c, ok := byName[key]
		if !ok {
			c = &cluster{name: key}
			byName[key] = c
		}
		c.txns = append(c.txns, t)
	}
	if len(byName) == 0 {
		return nil
	}

	// Sorted keys keep the pairwise pass and the union order deterministic.
	// The comparison is quadratic in distinct source names, which stays small
	// at personal-finance scale; it is never run over raw transactions.
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	parent := make(map[string]string, len(names))
	for _, name := range names {
		parent[name] = name
	}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			a, b := byName[names[i]], byName[names[j]]
			if opts.Similarity(a.name, b.name) < opts.NameSimilarity {
				continue
			}
			if !amountsAgree(a.avgAmount(), b.avgAmount(), opts.AmountTolerance) {
				continue
			}
			parent[find(names[j])] = find(names[i])
		}
	}

	merged := make(map[string][]*model.Transaction)
	for _, name := range names {
		root := find(name)
		merged[root] = append(merged[root], byName[name].txns...)
	}

	var streams []Stream
	for _, root := range names {
		group, ok := merged[root]
		if !ok {
			continue
		}
		if s, valid := buildStream(root, group, opts); valid {
			streams = append(streams, s)
		}
	}

	sort.Slice(streams, func(i, j int) bool {
		if streams[i].MonthlyIncome != streams[j].MonthlyIncome {
			return streams[i].MonthlyIncome > streams[j].MonthlyIncome
		}
		return streams[i].CanonicalName < streams[j].CanonicalName
	})
	return streams
}

func amountsAgree(a, b, tolerance float64) bool {
	larger := math.Max(a, b)
	if larger == 0 {
		return false
	}
	return math.Abs(a-b)/larger <= tolerance
}

var caser = cases.Title(language.English)

func buildStream(name string, group []*model.Transaction, opts Options) (Stream, bool) {
	if len(group) < 2 {
		return Stream{}, false
	}

	sorted := append([]*model.Transaction(nil), group...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var total float64
	ids := make([]string, len(sorted))
	for i, t := range sorted {
		total += math.Abs(t.Amount)
		ids[i] = t.ID
	}
	avg := total / float64(len(sorted))

	first, last := sorted[0].Date, sorted[len(sorted)-1].Date
	days := last.Sub(first).Hours() / 24
	if days <= 0 {
		// Deposits on a single day carry no cadence signal.
		return Stream{}, false
	}

	meanGap := days / float64(len(sorted)-1)
	var freq string
	var monthly float64
	switch {
	case meanGap <= opts.WeeklyMaxGapDays:
		freq = "weekly"
		monthly = avg * weeksPerMonth
	case meanGap <= opts.MonthlyMaxGapDays:
		freq = "monthly"
		monthly = avg
	default:
		freq = "yearly"
		monthly = avg / 12
	}

	return Stream{
		CanonicalName:   caser.String(name),
		TransactionIDs:  ids,
		MonthlyIncome:   math.Round(monthly*100) / 100,
		Confidence:      streamConfidence(len(sorted), days),
		DaysOfData:      days,
		Frequency:       freq,
		DepositCount:    len(sorted),
		AvgDepositValue: math.Round(avg*100) / 100,
		FirstSeen:       first,
		LastSeen:        last,
	}, true
}

// streamConfidence rises with the number of contributing deposits and with the
// length of the observation window, bounded to [0, 1].
func streamConfidence(count int, days float64) float64 {
	countScore := math.Min(float64(count)/6.0, 1.0)
	windowScore := math.Min(days/90.0, 1.0)
	score := 0.4 + 0.6*(0.6*countScore+0.4*windowScore)
	return math.Round(score*100) / 100
}
