// Package ingest parses exported statement files into transaction batches.
//
// Amounts are parsed through shopspring/decimal so "15.99" survives the trip
// from text without binary-float drift, and are converted to float64 only at
// the model boundary. The sign convention of the source files matches the
// model: positive amounts are expenses, negative amounts income.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsight/finsight/internal/model"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ReadCSV parses a statement CSV with a header row. Required columns: id,
// amount, date. Recognized optional columns: account_id, merchant_name, name,
// category_primary, category_detailed.
func ReadCSV(r io.Reader) ([]*model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "amount", "date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", required)
		}
	}

	var txns []*model.Transaction
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		amount, err := decimal.NewFromString(get("amount"))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: parse amount %q: %w", line, get("amount"), err)
		}
		date, err := parseDate(get("date"))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		txns = append(txns, &model.Transaction{
			ID:               get("id"),
			AccountID:        get("account_id"),
			MerchantName:     get("merchant_name"),
			Name:             get("name"),
			Amount:           amount.InexactFloat64(),
			Date:             date,
			CategoryPrimary:  model.NormalizeCategory(get("category_primary")),
			CategoryDetailed: model.NormalizeCategory(get("category_detailed")),
		})
	}
	return txns, nil
}

// jsonTransaction is the wire form of a transaction in JSON exports.
type jsonTransaction struct {
	ID               string          `json:"id"`
	AccountID        string          `json:"account_id"`
	MerchantName     string          `json:"merchant_name"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
	Date             string          `json:"date"`
	CategoryPrimary  string          `json:"category_primary"`
	CategoryDetailed string          `json:"category_detailed"`
}

// ReadJSON parses a JSON array of transactions.
func ReadJSON(r io.Reader) ([]*model.Transaction, error) {
	var rows []jsonTransaction
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode transactions json: %w", err)
	}

	txns := make([]*model.Transaction, 0, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return nil, fmt.Errorf("transaction %d: missing id", i)
		}
		date, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", row.ID, err)
		}
		txns = append(txns, &model.Transaction{
			ID:               row.ID,
			AccountID:        row.AccountID,
			MerchantName:     row.MerchantName,
			Name:             row.Name,
			Amount:           row.Amount.InexactFloat64(),
			Date:             date,
			CategoryPrimary:  model.NormalizeCategory(row.CategoryPrimary),
			CategoryDetailed: model.NormalizeCategory(row.CategoryDetailed),
		})
	}
	return txns, nil
}

// parseDate tries the supported layouts in source-local time; no timezone
// conversion is applied, so day-of-week and hour buckets match the records.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
