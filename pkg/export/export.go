// Package export writes segmentation results in downloadable formats.
// The segment endpoint uses it to stream results as CSV when the caller
// asks for a file instead of the JSON payload.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tinyseg/tinyseg/pkg/segment"
)

// csvHeader is the column order of the customer export.
var csvHeader = []string{
	"customer_id", "recency", "frequency", "monetary",
	"avg_order_value", "lifespan_days", "clv",
	"cluster_id", "segment_name",
}

// WriteCustomersCSV writes one row per segmented customer to w. Customers
// are written in the order the engine produced them (sorted by id).
func WriteCustomersCSV(w io.Writer, customers []segment.Customer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, c := range customers {
		row := []string{
			c.CustomerID,
			strconv.Itoa(c.Recency),
			strconv.Itoa(c.Frequency),
			strconv.FormatFloat(c.Monetary, 'f', -1, 64),
			strconv.FormatFloat(c.AvgOrderValue, 'f', -1, 64),
			strconv.Itoa(c.LifespanDays),
			strconv.FormatFloat(c.CLV, 'f', -1, 64),
			strconv.Itoa(c.Cluster),
			c.Segment,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
