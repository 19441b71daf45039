// Package insight renders detector output as ranked, human-readable records.
package insight

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsight/finsight/internal/anomaly"
	"github.com/finsight/finsight/internal/income"
	"github.com/finsight/finsight/internal/model"
	"github.com/finsight/finsight/internal/recurrence"
)

// Insight types surfaced to the caller.
const (
	TypeAnomalyHighAmount   = "anomaly_high_amount"
	TypeAnomalyPattern      = "anomaly_pattern"
	TypeSubscriptionSummary = "subscription_summary"
	TypeGrayCharges         = "gray_charges"
	TypeIncomeSummary       = "income_summary"
	TypeSpendingIncrease    = "spending_increase"
	TypeSpendingDecrease    = "spending_decrease"
	TypeWeekendSpending     = "weekend_spending"
	TypeCategoryAnalysis    = "category_analysis"
	TypeCoffeeSpending      = "coffee_spending"
	TypeDeliverySpending    = "delivery_spending"
)

// Insight is one human-readable finding.
type Insight struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	Type       string  `json:"insight_type"`
	Confidence float64 `json:"confidence"`
}

const (
	// maxAnomalyInsights caps how many anomaly alerts are rendered per run; the
	// full result collection is still returned to the caller untruncated.
	maxAnomalyInsights = 3
	// minAnomalyBatch is the batch size below which anomaly scores are too
	// noisy to surface as alerts.
	minAnomalyBatch = 10
	// grayChargeLimit: small recurring charges strictly under this amount with
	// enough occurrences look like forgotten subscriptions.
	grayChargeLimit          = 20.0
	grayChargeMinOccurrences = 3
	// maxCategoryInsights caps the category family per run.
	maxCategoryInsights = 3
)

// Synthesize turns the three detectors' outputs into ranked insight records.
// Ranking is by confidence descending; ties keep a stable order.
func Synthesize(
	txns []*model.Transaction,
	anomalies []anomaly.Result,
	subscriptions []recurrence.Candidate,
	streams []income.Stream,
) []Insight {
	var insights []Insight
	insights = append(insights, anomalyInsights(txns, anomalies)...)
	insights = append(insights, subscriptionInsights(subscriptions)...)
	insights = append(insights, spendingInsights(txns)...)
	insights = append(insights, categoryInsights(txns)...)
	insights = append(insights, incomeInsights(streams)...)

	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Confidence > insights[j].Confidence
	})
	return insights
}

func anomalyInsights(txns []*model.Transaction, anomalies []anomaly.Result) []Insight {
	if len(txns) < minAnomalyBatch {
		return nil
	}
	byID := make(map[string]*model.Transaction, len(txns))
	var sum float64
	for _, t := range txns {
		byID[t.ID] = t
		sum += t.Amount
	}
	avgAbs := math.Abs(sum / float64(len(txns)))

	// Highest scores first so the cap keeps the strongest alerts.
	flagged := make([]anomaly.Result, 0, len(anomalies))
	for _, r := range anomalies {
		if r.IsAnomaly {
			flagged = append(flagged, r)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool { return flagged[i].Score > flagged[j].Score })

	var insights []Insight
	for _, r := range flagged {
		if len(insights) == maxAnomalyInsights {
			break
		}
		t, ok := byID[r.TransactionID]
		if !ok {
			continue
		}
		amount := math.Abs(t.Amount)

		var msg, insightType string
		if avgAbs > 0 && amount > avgAbs*2 {
			msg = fmt.Sprintf(
				"Unusually high transaction detected: $%.2f at %s on %s. This is %.1fx your average spending.",
				amount, t.Source(), t.Date.Format("2006-01-02"), amount/avgAbs)
			insightType = TypeAnomalyHighAmount
		} else {
			msg = fmt.Sprintf(
				"Unusual transaction pattern detected: $%.2f at %s. This merchant or timing is uncommon for your spending habits.",
				amount, t.Source())
			insightType = TypeAnomalyPattern
		}

		insights = append(insights, Insight{
			ID:         uuid.New().String(),
			Title:      "Unusual Transaction Alert",
			Message:    msg,
			Type:       insightType,
			Confidence: 0.85,
		})
	}
	return insights
}

func subscriptionInsights(candidates []recurrence.Candidate) []Insight {
	var subs, gray []recurrence.Candidate
	for _, c := range candidates {
		if c.AvgAmount < grayChargeLimit && c.TransactionCount >= grayChargeMinOccurrences {
			gray = append(gray, c)
		} else {
			subs = append(subs, c)
		}
	}

	var insights []Insight
	if len(subs) > 0 {
		var monthlyTotal float64
		var lines []string
		for i, s := range subs {
			monthlyTotal += s.MonthlyCost()
			if i < 5 {
				lines = append(lines, fmt.Sprintf("- %s: $%.2f %s", s.MerchantName, s.AvgAmount, s.Frequency))
			}
		}
		insights = append(insights, Insight{
			ID:    uuid.New().String(),
			Title: "Active Subscriptions Detected",
			Message: fmt.Sprintf(
				"You have %d active subscriptions totaling approximately $%.2f per month:\n%s\n\nConsider reviewing these to ensure you're using all services.",
				len(subs), monthlyTotal, strings.Join(lines, "\n")),
			Type:       TypeSubscriptionSummary,
			Confidence: 0.9,
		})
	}

	if len(gray) > 0 {
		var total float64
		var lines []string
		for i, g := range gray {
			total += g.AvgAmount * float64(g.TransactionCount)
			if i < 3 {
				lines = append(lines, fmt.Sprintf("- %s: $%.2f %s ($%.2f total)",
					g.MerchantName, g.AvgAmount, g.Frequency, g.AvgAmount*float64(g.TransactionCount)))
			}
		}
		insights = append(insights, Insight{
			ID:    uuid.New().String(),
			Title: "Potential Forgotten Subscriptions",
			Message: fmt.Sprintf(
				"Found %d small recurring charges that might be forgotten subscriptions. You've spent $%.2f total on these:\n%s\n\nReview these charges and cancel any unused services.",
				len(gray), total, strings.Join(lines, "\n")),
			Type:       TypeGrayCharges,
			Confidence: 0.85,
		})
	}
	return insights
}

// spendingInsights compares month-over-month expense totals and the weekend vs
// weekday per-transaction averages.
func spendingInsights(txns []*model.Transaction) []Insight {
	var expenses []*model.Transaction
	for _, t := range txns {
		if t.IsExpense() {
			expenses = append(expenses, t)
		}
	}
	if len(expenses) == 0 {
		return nil
	}

	byMonth := make(map[string]float64)
	for _, t := range expenses {
		byMonth[t.Date.Format("2006-01")] += t.Amount
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	var insights []Insight
	if len(months) >= 2 {
		recent := byMonth[months[len(months)-1]]
		previous := byMonth[months[len(months)-2]]

		switch {
		case recent > previous*1.3:
			increasePct := (recent - previous) / previous * 100
			insights = append(insights, Insight{
				ID:    uuid.New().String(),
				Title: "Spending Increase Alert",
				Message: fmt.Sprintf(
					"Your spending increased by %.1f%% this month ($%.2f vs $%.2f last month). Review your recent transactions to stay on budget.",
					increasePct, recent, previous),
				Type:       TypeSpendingIncrease,
				Confidence: 0.95,
			})
		case recent < previous*0.8:
			decreasePct := (previous - recent) / previous * 100
			insights = append(insights, Insight{
				ID:    uuid.New().String(),
				Title: "Great Job Saving!",
				Message: fmt.Sprintf(
					"Your spending decreased by %.1f%% this month! You spent $%.2f less than last month. Keep up the great work!",
					decreasePct, previous-recent),
				Type:       TypeSpendingDecrease,
				Confidence: 0.95,
			})
		}
	}

	var weekendSum, weekdaySum float64
	var weekendCount, weekdayCount int
	for _, t := range expenses {
		if wd := t.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekendSum += t.Amount
			weekendCount++
		} else {
			weekdaySum += t.Amount
			weekdayCount++
		}
	}
	if weekendCount > 0 && weekdayCount > 0 {
		avgWeekend := weekendSum / float64(weekendCount)
		avgWeekday := weekdaySum / float64(weekdayCount)
		if avgWeekend > avgWeekday*1.5 {
			insights = append(insights, Insight{
				ID:    uuid.New().String(),
				Title: "Weekend Spending Pattern",
				Message: fmt.Sprintf(
					"You spend %.1fx more on weekends ($%.2f/day) compared to weekdays ($%.2f/day). Consider planning weekend activities to manage spending.",
					avgWeekend/avgWeekday, avgWeekend, avgWeekday),
				Type:       TypeWeekendSpending,
				Confidence: 0.8,
			})
		}
	}
	return insights
}

// categoryInsights breaks spending down by category: a top-3 share summary when
// enough categories exist, plus a savings tip for coffee or food-delivery heavy
// categories.
func categoryInsights(txns []*model.Transaction) []Insight {
	spending := make(map[string]float64)
	for _, t := range txns {
		category := t.CategoryPrimary
		if category == "" {
			category = t.CategoryDetailed
		}
		if category == "" {
			continue
		}
		spending[category] += math.Abs(t.Amount)
	}
	if len(spending) == 0 {
		return nil
	}

	type categoryTotal struct {
		name   string
		amount float64
	}
	ranked := make([]categoryTotal, 0, len(spending))
	var total float64
	for name, amount := range spending {
		ranked = append(ranked, categoryTotal{name, amount})
		total += amount
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].amount != ranked[j].amount {
			return ranked[i].amount > ranked[j].amount
		}
		return ranked[i].name < ranked[j].name
	})

	var insights []Insight
	if len(ranked) >= 3 {
		top3Total := ranked[0].amount + ranked[1].amount + ranked[2].amount
		var lines []string
		for i, c := range ranked[:3] {
			lines = append(lines, fmt.Sprintf("%d. %s: $%.2f (%.1f%%)",
				i+1, model.FormatCategoryName(c.name), c.amount, c.amount/total*100))
		}
		insights = append(insights, Insight{
			ID:    uuid.New().String(),
			Title: "Top Spending Categories",
			Message: fmt.Sprintf(
				"Your top 3 spending categories account for %.1f%% of your total spending:\n\n%s\n\nFocus on these areas for the biggest savings impact.",
				top3Total/total*100, strings.Join(lines, "\n")),
			Type:       TypeCategoryAnalysis,
			Confidence: 0.9,
		})
	}

	limit := len(ranked)
	if limit > 5 {
		limit = 5
	}
	for _, c := range ranked[:limit] {
		lower := strings.ToLower(c.name)
		if containsAny(lower, "coffee", "cafe", "starbucks") {
			annual := c.amount * 12
			insights = append(insights, Insight{
				ID:    uuid.New().String(),
				Title: "Coffee Spending Analysis",
				Message: fmt.Sprintf(
					"You're spending $%.2f/month on coffee ($%.2f/year). Brewing at home could save you over $%.2f annually!",
					c.amount, annual, annual*0.7),
				Type:       TypeCoffeeSpending,
				Confidence: 0.85,
			})
			break
		}
		if containsAny(lower, "delivery", "doordash", "uber eats", "grubhub") {
			insights = append(insights, Insight{
				ID:    uuid.New().String(),
				Title: "Food Delivery Savings Opportunity",
				Message: fmt.Sprintf(
					"You spent $%.2f on food delivery this month. Picking up orders yourself could save approximately $%.2f in fees and tips.",
					c.amount, c.amount*0.3),
				Type:       TypeDeliverySpending,
				Confidence: 0.8,
			})
			break
		}
	}

	if len(insights) > maxCategoryInsights {
		insights = insights[:maxCategoryInsights]
	}
	return insights
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func incomeInsights(streams []income.Stream) []Insight {
	if len(streams) == 0 {
		return nil
	}
	var monthlyTotal, confSum float64
	var lines []string
	for i, s := range streams {
		monthlyTotal += s.MonthlyIncome
		confSum += s.Confidence
		if i < 5 {
			lines = append(lines, fmt.Sprintf("- %s: $%.2f/month (%s)", s.CanonicalName, s.MonthlyIncome, s.Frequency))
		}
	}
	confidence := math.Round(confSum/float64(len(streams))*100) / 100

	return []Insight{{
		ID:    uuid.New().String(),
		Title: "Income Streams Identified",
		Message: fmt.Sprintf(
			"Detected %d income streams totaling approximately $%.2f per month:\n%s",
			len(streams), monthlyTotal, strings.Join(lines, "\n")),
		Type:       TypeIncomeSummary,
		Confidence: confidence,
	}}
}
