package dataset

import (
	"strings"
	"testing"
	"time"
)

func TestFromCSV_Basic(t *testing.T) {
	csv := "CustomerID, InvoiceDate ,Quantity\n" +
		"c1,2024-01-05 10:30:00,3\n" +
		"c2,2024-01-06,1\n"

	f, err := FromCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("FromCSV failed: %v", err)
	}

	if f.NumRows() != 2 {
		t.Errorf("Expected 2 rows, got %d", f.NumRows())
	}
	// Header cells are trimmed
	if !f.HasColumn("InvoiceDate") {
		t.Errorf("Expected trimmed column InvoiceDate, have %v", f.Columns)
	}
	if got := f.Value(0, "CustomerID"); got != "c1" {
		t.Errorf("Expected c1, got %q", got)
	}
}

func TestFromCSV_SkipsMalformedRows(t *testing.T) {
	csv := "a,b\n1,2\n\"unterminated\n3,4\n"

	f, err := FromCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("FromCSV failed: %v", err)
	}
	if f.NumRows() > 2 {
		t.Errorf("Expected malformed row to be skipped, got %d rows", f.NumRows())
	}
}

func TestFromCSV_EmptyInput(t *testing.T) {
	if _, err := FromCSV(strings.NewReader("")); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestRename(t *testing.T) {
	f := New([]string{"cust", "when"}, [][]string{{"c1", "2024-01-01"}})
	f.Rename(map[string]string{"cust": "CustomerID"})

	if !f.HasColumn("CustomerID") {
		t.Error("Expected renamed column CustomerID")
	}
	if f.HasColumn("cust") {
		t.Error("Old column name should be gone")
	}
	if got := f.Value(0, "CustomerID"); got != "c1" {
		t.Errorf("Expected c1 after rename, got %q", got)
	}
}

func TestFilter(t *testing.T) {
	f := New([]string{"v"}, [][]string{{"keep"}, {"drop"}, {"keep"}})
	out := f.Filter(func(row int) bool { return f.Value(row, "v") == "keep" })

	if out.NumRows() != 2 {
		t.Errorf("Expected 2 rows after filter, got %d", out.NumRows())
	}
	// Original untouched
	if f.NumRows() != 3 {
		t.Errorf("Filter should not mutate the receiver, got %d rows", f.NumRows())
	}
}

func TestParseTime_Layouts(t *testing.T) {
	cases := map[string]time.Time{
		"2024-03-15 14:22:05": time.Date(2024, 3, 15, 14, 22, 5, 0, time.UTC),
		"2024-03-15":          time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		"12/1/2010 8:26":      time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseTime(in)
		if !ok {
			t.Errorf("ParseTime(%q) failed", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTime(%q) = %v, want %v", in, got, want)
		}
	}

	if _, ok := ParseTime("not a date"); ok {
		t.Error("Expected failure for unparseable timestamp")
	}
	if _, ok := ParseTime(""); ok {
		t.Error("Expected failure for empty timestamp")
	}
}

func TestParseFloat(t *testing.T) {
	if v, ok := ParseFloat(" 3.5 "); !ok || v != 3.5 {
		t.Errorf("ParseFloat(' 3.5 ') = %v, %v", v, ok)
	}
	if v, ok := ParseFloat("1,234.50"); !ok || v != 1234.5 {
		t.Errorf("ParseFloat('1,234.50') = %v, %v", v, ok)
	}
	if _, ok := ParseFloat("abc"); ok {
		t.Error("Expected failure for non-numeric cell")
	}
	if _, ok := ParseFloat(""); ok {
		t.Error("Expected failure for empty cell")
	}
}
