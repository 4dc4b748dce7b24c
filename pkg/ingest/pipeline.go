package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/tinyseg/tinyseg/pkg/analytics"
	"github.com/tinyseg/tinyseg/pkg/clean"
	"github.com/tinyseg/tinyseg/pkg/dataset"
	"github.com/tinyseg/tinyseg/pkg/rfm"
	"github.com/tinyseg/tinyseg/pkg/schema"
	"github.com/tinyseg/tinyseg/pkg/segment"
)

// PipelineOptions parameterizes one segmentation run.
type PipelineOptions struct {
	Business string
	Mapping  map[string]string
	Retrain  bool
	TopN     int
}

// PipelineResult carries everything one run produced.
type PipelineResult struct {
	Validation *schema.Validation
	Cleaning   []clean.StageCount
	Customers  []segment.Customer
	Analytics  *analytics.Summary
	Retrained  bool

	transactionCount int
}

// runPipeline executes the full segmentation pipeline on an uploaded frame:
// resolve columns → clean → RFM features → scale and cluster → analytics.
// Progress events are published per stage under jobID.
func (h *Handler) runPipeline(ctx context.Context, jobID string, frame *dataset.Frame, opts PipelineOptions) (*PipelineResult, error) {
	log.Printf("🚀 Starting segmentation pipeline for business %q (%d rows)",
		opts.Business, frame.NumRows())

	progress := func(stage string, detail interface{}) {
		h.hub.Publish(Event{
			JobID:    jobID,
			Business: opts.Business,
			Stage:    stage,
			Detail:   detail,
		})
	}

	mapping := opts.Mapping
	if len(mapping) == 0 {
		mapping = schema.SuggestMapping(frame.Columns)
		log.Printf("   no mapping supplied, auto-detected %d columns", len(mapping))
	}

	validation, err := schema.Resolve(mapping)
	if err != nil {
		return nil, err
	}
	if validation.Mode == schema.ModeBasic {
		// Recognized at validation time, but the pipeline has nothing to
		// cluster on with a customer id alone.
		return nil, &schema.ValidationError{Missing: []string{schema.ColInvoiceDate}}
	}
	progress("columns_resolved", validation.Mode)
	log.Printf("   analysis mode: %s", validation.Mode)

	cleaned, err := clean.Clean(frame, mapping, validation.Mode)
	if err != nil {
		return nil, err
	}
	progress("cleaned", map[string]int{"rows": len(cleaned.Transactions)})

	customers := rfm.Build(cleaned.Transactions)
	if len(customers) == 0 {
		return nil, &clean.EmptyDatasetError{Stage: "rfm"}
	}
	progress("rfm_built", map[string]int{"customers": len(customers)})

	segmented, err := h.engine.Segment(ctx, customers, opts.Business, opts.Retrain)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}
	progress("clustered", segmented.Metrics)

	summary := analytics.Build(segmented, cleaned.Transactions, opts.TopN)
	progress("done", map[string]int{
		"customers": summary.NumCustomers,
		"segments":  len(summary.Segments),
	})

	log.Printf("✅ Pipeline complete: %d transactions → %d customers in %d segments",
		len(cleaned.Transactions), summary.NumCustomers, len(summary.Segments))

	return &PipelineResult{
		Validation:       validation,
		Cleaning:         cleaned.Stages,
		Customers:        segmented.Customers,
		Analytics:        summary,
		Retrained:        segmented.Retrained,
		transactionCount: len(cleaned.Transactions),
	}, nil
}
