package segment

import "log"

// Segment naming is a pure function of a cluster's mean scaled RFM profile.
// After standardization the population mean is 0, so the sign of each mean
// tells us whether the cluster is above or below average:
//
//	recent     = mean recency   < 0  (bought more recently than average)
//	frequent   = mean frequency > 0
//	high value = mean monetary  > 0
//
// The three booleans index an 8-entry taxonomy. Names are per training run;
// cluster ids are arbitrary, so they are not stable across retrains.
const (
	bitHighValue = 1 << 0
	bitFrequent  = 1 << 1
	bitRecent    = 1 << 2
)

var taxonomy = [8]string{
	0:                                      "Lost Customers",
	bitHighValue:                           "Hibernating VIPs",
	bitFrequent:                            "Cannot Lose Them",
	bitFrequent | bitHighValue:             "At-Risk VIPs",
	bitRecent:                              "New Customers",
	bitRecent | bitHighValue:               "Big Spenders",
	bitRecent | bitFrequent:                "Loyal Customers",
	bitRecent | bitFrequent | bitHighValue: "Champions",
}

// Name maps one cluster's mean scaled recency/frequency/monetary to its
// segment name.
func Name(recency, frequency, monetary float64) string {
	var bits int
	if recency < 0 {
		bits |= bitRecent
	}
	if frequency > 0 {
		bits |= bitFrequent
	}
	if monetary > 0 {
		bits |= bitHighValue
	}
	return taxonomy[bits]
}

// nameClusters names every cluster from its mean scaled RFM values.
func nameClusters(means map[int][3]float64) map[int]string {
	names := make(map[int]string, len(means))
	for id, m := range means {
		names[id] = Name(m[0], m[1], m[2])
		log.Printf("   cluster %d → %q (R=%.3f, F=%.3f, M=%.3f)",
			id, names[id], m[0], m[1], m[2])
	}
	return names
}
