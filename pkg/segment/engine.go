// Package segment runs the scale-and-cluster core of the pipeline: log1p
// transform, standardization, cluster-count selection, k-means fitting or
// model reuse, and semantic naming of the resulting clusters.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/tinyseg/tinyseg/pkg/cluster"
	"github.com/tinyseg/tinyseg/pkg/config"
	"github.com/tinyseg/tinyseg/pkg/rfm"
	"github.com/tinyseg/tinyseg/pkg/store"
)

// Customer is an RFM profile annotated with its cluster assignment.
type Customer struct {
	rfm.Customer
	Cluster int    `json:"cluster_id"`
	Segment string `json:"segment_name"`
}

// Metrics reports model quality for the run. Silhouette is -1 when it
// could not be computed (e.g. a single-cluster degenerate fit).
type Metrics struct {
	Silhouette  float64 `json:"silhouette_score"`
	Inertia     float64 `json:"inertia"`
	NumClusters int     `json:"n_clusters"`
}

// Result is the annotated customer table plus run metadata.
type Result struct {
	Customers []Customer     `json:"customers"`
	Names     map[int]string `json:"segment_mapping"`
	Metrics   Metrics        `json:"model_performance"`
	Retrained bool           `json:"retrained"`
}

// Engine clusters RFM features, persisting the fitted scaler and
// partitioner per business through the injected model store.
type Engine struct {
	models store.ModelStore

	MinK int
	MaxK int
}

// NewEngine creates an engine with the default cluster-count search range.
func NewEngine(models store.ModelStore) *Engine {
	return &Engine{
		models: models,
		MinK:   config.DefaultMinClusters,
		MaxK:   config.DefaultMaxClusters,
	}
}

// Segment assigns every customer a cluster id and segment name.
//
// Features go through log1p (compresses the heavy right skew of monetary
// and frequency) and standardization. With retrain, or when no persisted
// model exists for the business, the engine selects k, fits fresh models
// and persists them; otherwise it loads the business's scaler and
// partitioner and only transforms and predicts. A failed load logs the
// failure and falls back to retraining. Errors on the fit/transform path
// itself propagate: a broken core clustering must not be papered over.
func (e *Engine) Segment(ctx context.Context, customers []rfm.Customer, business string, retrain bool) (*Result, error) {
	if len(customers) == 0 {
		return nil, fmt.Errorf("no customers to segment")
	}

	features := logFeatures(customers)

	var (
		artifact *store.Artifact
		scaled   [][]float64
		labels   []int
		err      error
	)

	if !retrain {
		artifact, scaled, labels, err = e.infer(ctx, features, business)
		if err != nil {
			log.Printf("⚠️  Could not reuse persisted model for %q (%v), retraining", business, err)
			retrain = true
		}
	}

	if retrain {
		artifact, scaled, labels, err = e.train(ctx, features, business)
		if err != nil {
			return nil, err
		}
	}

	sil, silErr := cluster.Silhouette(scaled, labels)
	if silErr != nil {
		log.Printf("⚠️  Silhouette unavailable: %v", silErr)
		sil = -1
	}

	names := nameClusters(clusterMeans(scaled, labels))

	out := make([]Customer, len(customers))
	for i, c := range customers {
		out[i] = Customer{
			Customer: c,
			Cluster:  labels[i],
			Segment:  names[labels[i]],
		}
	}

	result := &Result{
		Customers: out,
		Names:     names,
		Metrics: Metrics{
			Silhouette:  sil,
			Inertia:     artifact.Model.Inertia,
			NumClusters: artifact.Model.K,
		},
		Retrained: retrain,
	}
	log.Printf("📈 Model performance: silhouette=%.4f, inertia=%.2f, k=%d",
		sil, result.Metrics.Inertia, result.Metrics.NumClusters)
	return result, nil
}

// train fits a fresh scaler and partitioner and persists them.
func (e *Engine) train(ctx context.Context, features [][]float64, business string) (*store.Artifact, [][]float64, []int, error) {
	log.Printf("🎯 Training new models for business %q", business)

	scaler := &cluster.Scaler{}
	scaled, err := scaler.FitTransform(features)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scale features: %w", err)
	}

	k := cluster.SelectK(scaled, e.MinK, e.MaxK)

	model, labels, err := cluster.Fit(scaled, cluster.Config{
		K:        k,
		MaxIter:  config.KMeansMaxIter,
		Restarts: config.KMeansRestarts,
		Seed:     config.KMeansSeed,
		Tol:      config.KMeansTol,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fit partitioner: %w", err)
	}

	artifact := &store.Artifact{Scaler: scaler, Model: model}
	if err := e.models.SaveModel(ctx, business, artifact); err != nil {
		return nil, nil, nil, fmt.Errorf("persist models for %q: %w", business, err)
	}
	log.Printf("💾 Persisted scaler and %d-cluster model for %q", k, business)

	return artifact, scaled, labels, nil
}

// infer loads the persisted artifact and transforms/predicts without
// refitting.
func (e *Engine) infer(ctx context.Context, features [][]float64, business string) (*store.Artifact, [][]float64, []int, error) {
	artifact, err := e.models.LoadModel(ctx, business)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("no persisted model")
		}
		return nil, nil, nil, fmt.Errorf("load persisted model: %w", err)
	}
	if artifact.Scaler == nil || artifact.Model == nil {
		return nil, nil, nil, fmt.Errorf("persisted artifact is incomplete")
	}

	scaled, err := artifact.Scaler.Transform(features)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("transform with persisted scaler: %w", err)
	}
	labels, err := artifact.Model.Predict(scaled)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("predict with persisted model: %w", err)
	}

	log.Printf("♻️  Reusing persisted %d-cluster model for %q", artifact.Model.K, business)
	return artifact, scaled, labels, nil
}

// logFeatures builds the log1p-transformed RFM matrix, column order
// recency, frequency, monetary.
func logFeatures(customers []rfm.Customer) [][]float64 {
	features := make([][]float64, len(customers))
	for i, c := range customers {
		features[i] = []float64{
			math.Log1p(float64(c.Recency)),
			math.Log1p(float64(c.Frequency)),
			math.Log1p(c.Monetary),
		}
	}
	return features
}

// clusterMeans computes the mean scaled feature vector per cluster.
func clusterMeans(scaled [][]float64, labels []int) map[int][3]float64 {
	sums := make(map[int]*[3]float64)
	counts := make(map[int]int)
	for i, l := range labels {
		s := sums[l]
		if s == nil {
			s = &[3]float64{}
			sums[l] = s
		}
		for j := 0; j < 3; j++ {
			s[j] += scaled[i][j]
		}
		counts[l]++
	}

	means := make(map[int][3]float64, len(sums))
	for l, s := range sums {
		n := float64(counts[l])
		means[l] = [3]float64{s[0] / n, s[1] / n, s[2] / n}
	}
	return means
}
