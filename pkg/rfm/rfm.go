// Package rfm aggregates cleaned transactions into one
// recency/frequency/monetary feature row per customer.
package rfm

import (
	"log"
	"sort"
	"time"

	"github.com/tinyseg/tinyseg/pkg/clean"
)

// Customer is one customer's RFM profile.
//
// Recency is whole days between the customer's last purchase and the
// snapshot date (one day after the newest transaction in the dataset).
// Frequency counts distinct invoice ids, not rows. Monetary sums
// quantity × unit price over the customer's cleaned rows.
type Customer struct {
	CustomerID string  `json:"customer_id"`
	Recency    int     `json:"recency"`
	Frequency  int     `json:"frequency"`
	Monetary   float64 `json:"monetary"`

	// Derived features. AOV is monetary per invoice, lifespan the days
	// between first and last purchase, CLV the AOV × frequency × lifespan
	// lifetime-value proxy.
	AvgOrderValue float64 `json:"avg_order_value"`
	LifespanDays  int     `json:"lifespan_days"`
	CLV           float64 `json:"clv"`
}

type accumulator struct {
	first      time.Time
	last       time.Time
	invoices   map[string]struct{}
	rowCount   int
	monetary   float64
	hasInvoice bool
}

// Build computes per-customer RFM features from cleaned transactions.
// The snapshot date is global: max timestamp across the whole dataset plus
// one day, so every customer's recency is measured against the same point.
// Customers are returned sorted by id for deterministic downstream order.
//
// When rows carry no invoice id (invoice column absent from the upload),
// every row counts as its own invoice.
func Build(txns []clean.Transaction) []Customer {
	if len(txns) == 0 {
		return nil
	}

	var maxTS time.Time
	acc := make(map[string]*accumulator)
	for _, t := range txns {
		if t.Timestamp.After(maxTS) {
			maxTS = t.Timestamp
		}
		a := acc[t.CustomerID]
		if a == nil {
			a = &accumulator{
				first:    t.Timestamp,
				last:     t.Timestamp,
				invoices: make(map[string]struct{}),
			}
			acc[t.CustomerID] = a
		}
		if t.Timestamp.Before(a.first) {
			a.first = t.Timestamp
		}
		if t.Timestamp.After(a.last) {
			a.last = t.Timestamp
		}
		if t.InvoiceID != "" {
			a.invoices[t.InvoiceID] = struct{}{}
			a.hasInvoice = true
		}
		a.rowCount++
		a.monetary += t.TotalPrice
	}

	snapshot := maxTS.AddDate(0, 0, 1)
	log.Printf("📅 Snapshot date for recency: %s (latest transaction + 1 day)",
		snapshot.Format("2006-01-02 15:04:05"))

	customers := make([]Customer, 0, len(acc))
	for id, a := range acc {
		frequency := a.rowCount
		if a.hasInvoice {
			frequency = len(a.invoices)
		}

		c := Customer{
			CustomerID:   id,
			Recency:      int(snapshot.Sub(a.last).Hours() / 24),
			Frequency:    frequency,
			Monetary:     a.monetary,
			LifespanDays: int(a.last.Sub(a.first).Hours() / 24),
		}
		if c.Frequency > 0 {
			c.AvgOrderValue = c.Monetary / float64(c.Frequency)
		}
		c.CLV = c.AvgOrderValue * float64(c.Frequency) * float64(c.LifespanDays)
		customers = append(customers, c)
	}

	sort.Slice(customers, func(i, j int) bool {
		return customers[i].CustomerID < customers[j].CustomerID
	})

	log.Printf("💰 RFM features built for %d customers from %d transactions",
		len(customers), len(txns))
	return customers
}
