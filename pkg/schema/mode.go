package schema

// Mode is an analysis mode: how rich a segmentation the mapped columns
// support.
type Mode string

const (
	// ModeFullRFM computes recency, frequency and monetary value.
	ModeFullRFM Mode = "full_rfm"
	// ModeFrequencyRecency drops monetary value and assumes unit
	// transactions (quantity 1, unit price 1).
	ModeFrequencyRecency Mode = "frequency_recency"
	// ModeBasic is recognized at validation time only; the pipeline has no
	// behavior for it beyond grouping by customer.
	ModeBasic Mode = "basic_segmentation"
)

// modeRequirements lists the canonical columns each mode needs, richest
// mode first. Resolve walks this in order and picks the first satisfied.
var modeRequirements = []struct {
	Mode        Mode
	Required    []string
	Description string
}{
	{
		ModeFullRFM,
		[]string{ColCustomerID, ColInvoiceDate, ColQuantity, ColUnitPrice},
		"Complete RFM analysis with Recency, Frequency, and Monetary values",
	},
	{
		ModeFrequencyRecency,
		[]string{ColCustomerID, ColInvoiceDate},
		"RF analysis focusing on purchase patterns and recency (assumes unit transactions)",
	},
	{
		ModeBasic,
		[]string{ColCustomerID},
		"Basic customer grouping (requires additional data preprocessing)",
	},
}

// ModeInfo describes one analysis mode and what is missing to reach it.
type ModeInfo struct {
	Mode        Mode     `json:"mode"`
	Description string   `json:"description"`
	Required    []string `json:"required"`
	Missing     []string `json:"missing"`
}

// Validation is the result of resolving a column mapping.
type Validation struct {
	Mode            Mode       `json:"analysis_mode"`
	ModeDescription string     `json:"mode_description"`
	Available       []string   `json:"available_columns"`
	PossibleModes   []ModeInfo `json:"possible_modes"`
	Warnings        []string   `json:"warnings"`
	Recommendations []string   `json:"recommendations"`
}

// Resolve validates a user→canonical mapping and determines the richest
// analysis mode the mapped columns support. Returns a *ValidationError when
// even basic grouping is impossible.
func Resolve(mapping map[string]string) (*Validation, error) {
	mapped := make(map[string]bool, len(mapping))
	available := make([]string, 0, len(mapping))
	for _, canonical := range mapping {
		if !mapped[canonical] {
			mapped[canonical] = true
			available = append(available, canonical)
		}
	}

	v := &Validation{Available: available}

	for _, req := range modeRequirements {
		info := ModeInfo{
			Mode:        req.Mode,
			Description: req.Description,
			Required:    req.Required,
		}
		for _, col := range req.Required {
			if !mapped[col] {
				info.Missing = append(info.Missing, col)
			}
		}
		v.PossibleModes = append(v.PossibleModes, info)

		if len(info.Missing) == 0 && v.Mode == "" {
			v.Mode = req.Mode
			v.ModeDescription = req.Description
		}
	}

	if v.Mode == "" {
		var missing []string
		for _, col := range CoreRequired {
			if !mapped[col] {
				missing = append(missing, col)
			}
		}
		return nil, &ValidationError{Missing: missing}
	}

	for _, col := range Recommended {
		if !mapped[col] {
			v.Warnings = append(v.Warnings,
				"Missing recommended column '"+col+"': "+Describe(col))
		}
	}
	for _, col := range Optional {
		if !mapped[col] {
			v.Recommendations = append(v.Recommendations,
				"Optional column '"+col+"' could enhance analysis: "+Describe(col))
		}
	}

	return v, nil
}
