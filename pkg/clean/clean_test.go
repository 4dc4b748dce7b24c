package clean

import (
	"errors"
	"testing"

	"github.com/tinyseg/tinyseg/pkg/dataset"
	"github.com/tinyseg/tinyseg/pkg/schema"
)

var fullColumns = []string{"cust", "inv", "when", "qty", "price", "code", "desc"}

var identityMapping = map[string]string{
	"cust":  schema.ColCustomerID,
	"inv":   schema.ColInvoiceID,
	"when":  schema.ColInvoiceDate,
	"qty":   schema.ColQuantity,
	"price": schema.ColUnitPrice,
	"code":  schema.ColProductCode,
	"desc":  schema.ColDescription,
}

func TestClean_RemovesCancelledAndZeroQuantity(t *testing.T) {
	// 6 transactions across 2 customers: one cancelled invoice, one zero
	// quantity. Cleaning must remove exactly those 2 rows.
	rows := [][]string{
		{"c1", "536365", "2024-01-01 10:00:00", "2", "5.00", "P1", "MUG"},
		{"c1", "536366", "2024-01-02 10:00:00", "1", "3.50", "P2", "BOWL"},
		{"c1", "C536367", "2024-01-03 10:00:00", "1", "3.50", "P2", "BOWL"},
		{"c2", "536368", "2024-01-04 10:00:00", "0", "9.99", "P3", "LAMP"},
		{"c2", "536369", "2024-01-05 10:00:00", "4", "1.25", "P1", "MUG"},
		{"c2", "536370", "2024-01-06 10:00:00", "1", "20.00", "P4", "VASE"},
	}
	f := dataset.New(fullColumns, rows)

	res, err := Clean(f, identityMapping, schema.ModeFullRFM)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if len(res.Transactions) != 4 {
		t.Fatalf("Expected 4 rows after cleaning, got %d", len(res.Transactions))
	}
	if got := res.Removed(StageCancelled); got != 1 {
		t.Errorf("Expected 1 cancelled row removed, got %d", got)
	}
	if got := res.Removed(StageQuantity); got != 1 {
		t.Errorf("Expected 1 zero-quantity row removed, got %d", got)
	}
}

func TestClean_Invariants(t *testing.T) {
	rows := [][]string{
		{"c1", "1", "2024-01-01", "2", "5.00", "", ""},
		{"", "2", "2024-01-01", "2", "5.00", "", ""},     // missing customer
		{"c1", "3", "2024-01-01", "-1", "5.00", "", ""},  // negative quantity
		{"c1", "C4", "2024-01-01", "2", "5.00", "", ""},  // cancelled
		{"c1", "5", "2024-01-01", "2", "-0.50", "", ""},  // negative price
		{"c1", "6", "2024-01-01", "2", "0", "", ""},      // zero price
		{"c1", "1", "2024-01-01", "2", "5.00", "", ""},   // exact duplicate
	}
	f := dataset.New(fullColumns, rows)

	res, err := Clean(f, identityMapping, schema.ModeFullRFM)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	if len(res.Transactions) != 1 {
		t.Fatalf("Expected 1 surviving row, got %d", len(res.Transactions))
	}
	for _, txn := range res.Transactions {
		if txn.Quantity <= 0 {
			t.Errorf("Cleaned row has non-positive quantity: %+v", txn)
		}
		if txn.UnitPrice <= 0 {
			t.Errorf("Cleaned row has non-positive price: %+v", txn)
		}
		if txn.CustomerID == "" {
			t.Errorf("Cleaned row has empty customer id: %+v", txn)
		}
		if txn.InvoiceID != "" && txn.InvoiceID[0] == 'C' {
			t.Errorf("Cleaned row has cancelled invoice: %+v", txn)
		}
	}
}

func TestClean_TotalPrice(t *testing.T) {
	rows := [][]string{
		{"c1", "1", "2024-01-01", "3", "10.0", "", ""},
	}
	f := dataset.New(fullColumns, rows)

	res, err := Clean(f, identityMapping, schema.ModeFullRFM)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if got := res.Transactions[0].TotalPrice; got != 30.0 {
		t.Errorf("Expected TotalPrice 30.0, got %v", got)
	}
}

func TestClean_EmptyAfterCustomerFilter(t *testing.T) {
	rows := [][]string{
		{"", "1", "2024-01-01", "2", "5.00", "", ""},
	}
	f := dataset.New(fullColumns, rows)

	_, err := Clean(f, identityMapping, schema.ModeFullRFM)
	var ee *EmptyDatasetError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected *EmptyDatasetError, got %v", err)
	}
	if ee.Stage != StageCustomerID {
		t.Errorf("Expected failure at %s, got %s", StageCustomerID, ee.Stage)
	}
}

func TestClean_EmptyAfterQuantityFilter(t *testing.T) {
	rows := [][]string{
		{"c1", "1", "2024-01-01", "0", "5.00", "", ""},
		{"c2", "2", "2024-01-01", "-3", "5.00", "", ""},
	}
	f := dataset.New(fullColumns, rows)

	_, err := Clean(f, identityMapping, schema.ModeFullRFM)
	var ee *EmptyDatasetError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected *EmptyDatasetError, got %v", err)
	}
	if ee.Stage != StageQuantity {
		t.Errorf("Expected failure at %s, got %s", StageQuantity, ee.Stage)
	}
}

func TestClean_ModeFillDescriptions(t *testing.T) {
	rows := [][]string{
		{"c1", "1", "2024-01-01", "1", "5.00", "P1", "RED MUG"},
		{"c1", "2", "2024-01-02", "1", "5.00", "P1", "RED MUG"},
		{"c1", "3", "2024-01-03", "1", "5.00", "P1", "MUG RED"},
		{"c2", "4", "2024-01-04", "1", "5.00", "P1", ""},
	}
	f := dataset.New(fullColumns, rows)

	res, err := Clean(f, identityMapping, schema.ModeFullRFM)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}

	for _, txn := range res.Transactions {
		if txn.InvoiceID == "4" && txn.Description != "RED MUG" {
			t.Errorf("Expected backfilled description RED MUG, got %q", txn.Description)
		}
	}
}

func TestClean_FrequencyRecencyAssumesUnitTransactions(t *testing.T) {
	f := dataset.New([]string{"cust", "when"}, [][]string{
		{"c1", "2024-01-01"},
		{"c1", "2024-01-02"},
	})
	mapping := map[string]string{"cust": schema.ColCustomerID, "when": schema.ColInvoiceDate}

	res, err := Clean(f, mapping, schema.ModeFrequencyRecency)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(res.Transactions))
	}
	for _, txn := range res.Transactions {
		if txn.Quantity != 1 || txn.UnitPrice != 1 || txn.TotalPrice != 1 {
			t.Errorf("Expected unit transaction defaults, got %+v", txn)
		}
	}
}

func TestClean_DropsUnparseableTimestamps(t *testing.T) {
	rows := [][]string{
		{"c1", "1", "2024-01-01", "1", "5.00", "", ""},
		{"c1", "2", "not-a-date", "1", "5.00", "", ""},
	}
	f := dataset.New(fullColumns, rows)

	res, err := Clean(f, identityMapping, schema.ModeFullRFM)
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if len(res.Transactions) != 1 {
		t.Errorf("Expected 1 row, got %d", len(res.Transactions))
	}
	if got := res.Removed(StageParse); got != 1 {
		t.Errorf("Expected 1 row removed at parse stage, got %d", got)
	}
}
