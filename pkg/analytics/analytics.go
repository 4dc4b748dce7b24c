// Package analytics computes the per-segment summary statistics returned
// with every pipeline run. Summaries are ephemeral: recomputed each run,
// never persisted.
package analytics

import (
	"log"
	"math"
	"sort"

	"github.com/tinyseg/tinyseg/pkg/clean"
	"github.com/tinyseg/tinyseg/pkg/segment"
)

// SegmentSummary aggregates one segment's customers. Percentage is of all
// customers, RFM fields are means over the segment, TotalRevenue is the
// segment's summed monetary value.
type SegmentSummary struct {
	Segment      string  `json:"segment"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
	Recency      float64 `json:"recency"`
	Frequency    float64 `json:"frequency"`
	Monetary     float64 `json:"monetary"`
	TotalRevenue float64 `json:"total_revenue"`
}

// ProductStat is one product's totals within a segment.
type ProductStat struct {
	Product       string  `json:"product"`
	TotalQuantity int     `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// Summary is the full analytics payload for one pipeline run.
type Summary struct {
	NumCustomers     int                      `json:"n_customers"`
	NumRows          int                      `json:"n_rows"`
	ClusterCounts    map[string]int           `json:"cluster_counts"`
	RevenueBySegment map[string]float64       `json:"revenue_by_segment"`
	Segments         []SegmentSummary         `json:"avg_rfm"`
	SegmentMapping   map[int]string           `json:"segment_mapping"`
	ModelPerformance segment.Metrics          `json:"model_performance"`
	TopProducts      map[string][]ProductStat `json:"top_products_per_segment,omitempty"`
}

// Build aggregates a segmentation result and the cleaned transactions it
// came from. topN limits the per-segment best-seller list; product
// analytics are skipped entirely when no row carries a description.
func Build(res *segment.Result, txns []clean.Transaction, topN int) *Summary {
	s := &Summary{
		NumCustomers:     len(res.Customers),
		NumRows:          len(txns),
		ClusterCounts:    make(map[string]int),
		RevenueBySegment: make(map[string]float64),
		SegmentMapping:   res.Names,
		ModelPerformance: res.Metrics,
	}

	type agg struct {
		count     int
		recency   float64
		frequency float64
		monetary  float64
	}
	bySegment := make(map[string]*agg)

	for _, c := range res.Customers {
		s.ClusterCounts[c.Segment]++
		s.RevenueBySegment[c.Segment] += c.Monetary

		a := bySegment[c.Segment]
		if a == nil {
			a = &agg{}
			bySegment[c.Segment] = a
		}
		a.count++
		a.recency += float64(c.Recency)
		a.frequency += float64(c.Frequency)
		a.monetary += c.Monetary
	}

	for name, revenue := range s.RevenueBySegment {
		s.RevenueBySegment[name] = round2(revenue)
	}

	for name, a := range bySegment {
		n := float64(a.count)
		s.Segments = append(s.Segments, SegmentSummary{
			Segment:      name,
			Count:        a.count,
			Percentage:   round1(n / float64(len(res.Customers)) * 100),
			Recency:      round2(a.recency / n),
			Frequency:    round2(a.frequency / n),
			Monetary:     round2(a.monetary / n),
			TotalRevenue: s.RevenueBySegment[name],
		})
	}
	sort.Slice(s.Segments, func(i, j int) bool {
		return s.Segments[i].Segment < s.Segments[j].Segment
	})

	s.TopProducts = topProducts(res.Customers, txns, topN)

	log.Printf("📊 Analytics: %d customers across %d segments", s.NumCustomers, len(s.Segments))
	return s
}

// topProducts ranks products per segment by total quantity sold. Requires
// product descriptions; returns nil when the upload had none.
func topProducts(customers []segment.Customer, txns []clean.Transaction, topN int) map[string][]ProductStat {
	hasDescription := false
	for _, t := range txns {
		if t.Description != "" {
			hasDescription = true
			break
		}
	}
	if !hasDescription {
		log.Printf("   no product descriptions available, skipping product analytics")
		return nil
	}
	if topN <= 0 {
		topN = 5
	}

	segmentOf := make(map[string]string, len(customers))
	for _, c := range customers {
		segmentOf[c.CustomerID] = c.Segment
	}

	type totals struct {
		quantity float64
		revenue  float64
	}
	perSegment := make(map[string]map[string]*totals)
	for _, t := range txns {
		seg, ok := segmentOf[t.CustomerID]
		if !ok || t.Description == "" {
			continue
		}
		products := perSegment[seg]
		if products == nil {
			products = make(map[string]*totals)
			perSegment[seg] = products
		}
		p := products[t.Description]
		if p == nil {
			p = &totals{}
			products[t.Description] = p
		}
		p.quantity += t.Quantity
		p.revenue += t.TotalPrice
	}

	out := make(map[string][]ProductStat, len(perSegment))
	for seg, products := range perSegment {
		stats := make([]ProductStat, 0, len(products))
		for name, p := range products {
			stats = append(stats, ProductStat{
				Product:       name,
				TotalQuantity: int(p.quantity),
				TotalRevenue:  round2(p.revenue),
			})
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].TotalQuantity != stats[j].TotalQuantity {
				return stats[i].TotalQuantity > stats[j].TotalQuantity
			}
			return stats[i].Product < stats[j].Product
		})
		if len(stats) > topN {
			stats = stats[:topN]
		}
		out[seg] = stats
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
