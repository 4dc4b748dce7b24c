package segment

import "testing"

func TestName_AllProfiles(t *testing.T) {
	tests := []struct {
		name      string
		recency   float64
		frequency float64
		monetary  float64
		want      string
	}{
		{"recent frequent high-value", -1, 1, 1, "Champions"},
		{"recent frequent low-value", -1, 1, -1, "Loyal Customers"},
		{"recent infrequent high-value", -1, -1, 1, "Big Spenders"},
		{"recent infrequent low-value", -1, -1, -1, "New Customers"},
		{"stale frequent high-value", 1, 1, 1, "At-Risk VIPs"},
		{"stale frequent low-value", 1, 1, -1, "Cannot Lose Them"},
		{"stale infrequent high-value", 1, -1, 1, "Hibernating VIPs"},
		{"stale infrequent low-value", 1, -1, -1, "Lost Customers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.recency, tt.frequency, tt.monetary); got != tt.want {
				t.Errorf("Name(%v, %v, %v) = %q, want %q",
					tt.recency, tt.frequency, tt.monetary, got, tt.want)
			}
		})
	}
}

func TestName_BoundaryIsBelowAverage(t *testing.T) {
	// Exactly-average means (all zeros) count as not recent, not frequent,
	// not high value.
	if got := Name(0, 0, 0); got != "Lost Customers" {
		t.Errorf("Name(0, 0, 0) = %q, want Lost Customers", got)
	}
}

func TestName_Pure(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := Name(-2, 3, 0.5); got != "Loyal Customers" {
			t.Fatalf("Name is not stable across calls: got %q", got)
		}
	}
}
