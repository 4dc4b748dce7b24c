package schema

import (
	"fmt"
	"strings"
)

// Canonical column names the pipeline understands. Uploads arrive with
// arbitrary headers; SuggestMapping maps them onto this vocabulary.
const (
	ColInvoiceID   = "InvoiceNo"
	ColCustomerID  = "CustomerID"
	ColQuantity    = "Quantity"
	ColUnitPrice   = "UnitPrice"
	ColInvoiceDate = "InvoiceDate"
	ColProductCode = "StockCode"
	ColDescription = "Description"
	ColCountry     = "Country"

	// ColTotalPrice is computed by the cleaner, never mapped from input.
	ColTotalPrice = "TotalPrice"
)

// CoreRequired are the columns without which no analysis is possible.
var CoreRequired = []string{ColCustomerID, ColInvoiceDate}

// Recommended columns unlock full RFM analysis.
var Recommended = []string{ColInvoiceID, ColQuantity, ColUnitPrice}

// Optional columns enrich product and geographic analytics.
var Optional = []string{ColProductCode, ColDescription, ColCountry}

// columnPatterns holds the curated substring patterns for one canonical
// column. Order matters twice: earlier canonical columns claim ambiguous
// headers first (e.g. "amount" is a Quantity pattern before a UnitPrice
// one), and within a column the first matching pattern wins.
type columnPatterns struct {
	Column   string
	Patterns []string
}

var mappingPatterns = []columnPatterns{
	{ColInvoiceID, []string{
		"invoice", "invoice_no", "invoice_number", "invoiceno",
		"order_id", "order", "transaction_id", "trans_id", "receipt",
	}},
	{ColCustomerID, []string{
		"customer", "customer_id", "customerid", "cust_id", "custid",
		"user_id", "userid", "client_id", "clientid", "id",
	}},
	{ColQuantity, []string{
		"quantity", "qty", "amount", "count", "units", "pieces",
	}},
	{ColUnitPrice, []string{
		"price", "unit_price", "unitprice", "cost", "amount",
		"value", "rate", "unit_cost",
	}},
	{ColInvoiceDate, []string{
		"date", "invoice_date", "invoicedate", "order_date", "orderdate",
		"transaction_date", "trans_date", "timestamp", "datetime",
	}},
	{ColProductCode, []string{
		"stock", "stock_code", "stockcode", "product_code", "productcode",
		"item_code", "itemcode", "sku", "product_id", "item_id",
	}},
	{ColDescription, []string{
		"description", "desc", "product", "item", "product_name",
		"productname", "item_name", "itemname", "product_description",
	}},
	{ColCountry, []string{
		"country", "location", "region", "nation", "territory",
	}},
}

// SuggestMapping proposes a user column → canonical column mapping by
// substring matching against the curated pattern lists. Matching is
// case-insensitive and whitespace-trimmed, and containment counts in either
// direction ("InvoiceDate" matches pattern "date", header "no" matches
// pattern "invoice_no"). Each user column maps to at most one canonical
// column; the first pattern that matches wins. No fuzzy matching.
func SuggestMapping(userColumns []string) map[string]string {
	suggestions := make(map[string]string)

	for _, userCol := range userColumns {
		lower := strings.ToLower(strings.TrimSpace(userCol))
		if lower == "" {
			continue
		}
	match:
		for _, cp := range mappingPatterns {
			for _, pattern := range cp.Patterns {
				if strings.Contains(lower, pattern) || strings.Contains(pattern, lower) {
					suggestions[userCol] = cp.Column
					break match
				}
			}
		}
	}

	return suggestions
}

// Describe returns the human-readable description of a canonical column.
func Describe(column string) string {
	if d, ok := columnDescriptions[column]; ok {
		return d
	}
	return "No description available"
}

var columnDescriptions = map[string]string{
	ColCustomerID:  "Customer identifier - unique ID for each customer",
	ColInvoiceDate: "Date and time when the transaction occurred",
	ColInvoiceID:   "Invoice number - unique identifier for each transaction",
	ColQuantity:    "Quantity of products purchased in the transaction",
	ColUnitPrice:   "Price per unit of the product",
	ColProductCode: "Product/stock code identifier for inventory tracking",
	ColDescription: "Product description for product analysis",
	ColCountry:     "Customer's country for geographical segmentation",
}

// ValidationError reports that no analysis mode is possible with the mapped
// columns. Missing lists the absent core columns.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot perform analysis, missing critical columns: %s",
		strings.Join(e.Missing, ", "))
}

// Details returns the missing column names for API error payloads.
func (e *ValidationError) Details() []string { return e.Missing }
