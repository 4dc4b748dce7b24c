// Package clean filters raw uploaded transactions down to the rows the RFM
// pipeline can trust: positive quantities and prices, a customer on every
// row, no cancelled invoices, no exact duplicates.
package clean

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/tinyseg/tinyseg/pkg/config"
	"github.com/tinyseg/tinyseg/pkg/dataset"
	"github.com/tinyseg/tinyseg/pkg/schema"
)

// Transaction is one cleaned transaction row. TotalPrice is always
// Quantity * UnitPrice.
type Transaction struct {
	CustomerID  string
	InvoiceID   string
	Timestamp   time.Time
	Quantity    float64
	UnitPrice   float64
	TotalPrice  float64
	ProductCode string
	Description string
	Country     string
}

// StageCount records a cleaning stage's effect for observability.
type StageCount struct {
	Stage  string `json:"stage"`
	Before int    `json:"before"`
	After  int    `json:"after"`
}

// Result is the cleaned dataset plus per-stage row accounting.
type Result struct {
	Transactions []Transaction
	Stages       []StageCount
}

// Removed returns how many rows the named stage dropped, or 0.
func (r *Result) Removed(stage string) int {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s.Before - s.After
		}
	}
	return 0
}

// EmptyDatasetError means a cleaning stage removed every remaining row.
type EmptyDatasetError struct {
	Stage string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("no valid data remaining after %s stage", e.Stage)
}

// Stage names, in pipeline order.
const (
	StageCustomerID = "missing_customer_id"
	StageParse      = "parse"
	StageQuantity   = "non_positive_quantity"
	StageCancelled  = "cancelled_invoice"
	StageUnitPrice  = "non_positive_price"
	StageDuplicates = "duplicates"
)

// Clean renames columns per mapping, then runs the filtering stages in
// order: drop missing customer ids, mode-fill product descriptions, parse
// rows, drop non-positive quantities, drop cancelled invoices, drop
// non-positive prices, drop exact duplicates. Every stage logs its
// before/after row count. Returns *EmptyDatasetError as soon as any stage
// empties the dataset.
//
// In frequency_recency mode quantity and unit price default to 1 per row
// (unit-transaction assumption), so the numeric filters pass everything.
func Clean(f *dataset.Frame, mapping map[string]string, mode schema.Mode) (*Result, error) {
	log.Printf("🧹 Cleaning dataset: %d rows, %d columns", f.NumRows(), len(f.Columns))

	f.Rename(mapping)

	res := &Result{}

	// Missing customer id.
	before := f.NumRows()
	f = f.Filter(func(row int) bool {
		return f.Value(row, schema.ColCustomerID) != ""
	})
	res.record(StageCustomerID, before, f.NumRows())
	if f.NumRows() == 0 {
		return nil, &EmptyDatasetError{Stage: StageCustomerID}
	}

	fillDescriptions(f)

	txns := parseRows(f, mode, res)
	if len(txns) == 0 {
		return nil, &EmptyDatasetError{Stage: StageParse}
	}

	hasQuantity := f.HasColumn(schema.ColQuantity)
	hasInvoice := f.HasColumn(schema.ColInvoiceID)
	hasPrice := f.HasColumn(schema.ColUnitPrice)

	if hasQuantity {
		txns = res.filter(StageQuantity, txns, func(t Transaction) bool {
			return t.Quantity > 0
		})
		if len(txns) == 0 {
			return nil, &EmptyDatasetError{Stage: StageQuantity}
		}
	}

	if hasInvoice {
		txns = res.filter(StageCancelled, txns, func(t Transaction) bool {
			return !strings.HasPrefix(t.InvoiceID, config.CancelPrefix)
		})
		if len(txns) == 0 {
			return nil, &EmptyDatasetError{Stage: StageCancelled}
		}
	}

	if hasPrice {
		txns = res.filter(StageUnitPrice, txns, func(t Transaction) bool {
			return t.UnitPrice > 0
		})
		if len(txns) == 0 {
			return nil, &EmptyDatasetError{Stage: StageUnitPrice}
		}
	}

	seen := make(map[Transaction]struct{}, len(txns))
	txns = res.filter(StageDuplicates, txns, func(t Transaction) bool {
		if _, dup := seen[t]; dup {
			return false
		}
		seen[t] = struct{}{}
		return true
	})
	if len(txns) == 0 {
		return nil, &EmptyDatasetError{Stage: StageDuplicates}
	}

	res.Transactions = txns
	log.Printf("✅ Cleaning complete: %d rows remain", len(txns))
	return res, nil
}

func (r *Result) record(stage string, before, after int) {
	r.Stages = append(r.Stages, StageCount{Stage: stage, Before: before, After: after})
	log.Printf("   %s: %d → %d rows (removed %d)", stage, before, after, before-after)
}

func (r *Result) filter(stage string, txns []Transaction, keep func(Transaction) bool) []Transaction {
	before := len(txns)
	kept := txns[:0]
	for _, t := range txns {
		if keep(t) {
			kept = append(kept, t)
		}
	}
	r.record(stage, before, len(kept))
	return kept
}

// parseRows converts remaining frame rows to typed transactions. Rows with
// an unparseable timestamp are dropped here; unparseable quantity or price
// parses to 0 and falls to the corresponding positivity filter.
func parseRows(f *dataset.Frame, mode schema.Mode, res *Result) []Transaction {
	hasQuantity := f.HasColumn(schema.ColQuantity)
	hasPrice := f.HasColumn(schema.ColUnitPrice)

	txns := make([]Transaction, 0, f.NumRows())
	before := f.NumRows()
	for i := 0; i < f.NumRows(); i++ {
		ts, ok := dataset.ParseTime(f.Value(i, schema.ColInvoiceDate))
		if !ok {
			continue
		}

		t := Transaction{
			CustomerID:  f.Value(i, schema.ColCustomerID),
			InvoiceID:   f.Value(i, schema.ColInvoiceID),
			Timestamp:   ts,
			Quantity:    1,
			UnitPrice:   1,
			ProductCode: f.Value(i, schema.ColProductCode),
			Description: f.Value(i, schema.ColDescription),
			Country:     f.Value(i, schema.ColCountry),
		}
		if mode == schema.ModeFullRFM || hasQuantity {
			t.Quantity, _ = dataset.ParseFloat(f.Value(i, schema.ColQuantity))
		}
		if mode == schema.ModeFullRFM || hasPrice {
			t.UnitPrice, _ = dataset.ParseFloat(f.Value(i, schema.ColUnitPrice))
		}
		t.TotalPrice = t.Quantity * t.UnitPrice
		txns = append(txns, t)
	}
	res.record(StageParse, before, len(txns))
	return txns
}

// fillDescriptions backfills missing product descriptions with the most
// frequent non-missing description for the same product code. Ties break
// lexicographically for determinism.
func fillDescriptions(f *dataset.Frame) {
	if !f.HasColumn(schema.ColDescription) || !f.HasColumn(schema.ColProductCode) {
		return
	}

	counts := make(map[string]map[string]int)
	for i := 0; i < f.NumRows(); i++ {
		code := f.Value(i, schema.ColProductCode)
		desc := f.Value(i, schema.ColDescription)
		if code == "" || desc == "" {
			continue
		}
		if counts[code] == nil {
			counts[code] = make(map[string]int)
		}
		counts[code][desc]++
	}

	modes := make(map[string]string, len(counts))
	for code, descs := range counts {
		names := make([]string, 0, len(descs))
		for d := range descs {
			names = append(names, d)
		}
		sort.Strings(names)
		best := names[0]
		for _, d := range names {
			if descs[d] > descs[best] {
				best = d
			}
		}
		modes[code] = best
	}

	filled := 0
	for i := 0; i < f.NumRows(); i++ {
		if f.Value(i, schema.ColDescription) != "" {
			continue
		}
		if m, ok := modes[f.Value(i, schema.ColProductCode)]; ok {
			f.SetValue(i, schema.ColDescription, m)
			filled++
		}
	}
	if filled > 0 {
		log.Printf("   backfilled %d missing product descriptions", filled)
	}
}
