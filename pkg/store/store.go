// Package store defines the persistence interfaces for per-business model
// artifacts and business metadata records.
// Implementations: memory (testing), badger (production)
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/tinyseg/tinyseg/pkg/cluster"
)

// ErrNotFound is returned when no record exists for the requested business.
var ErrNotFound = errors.New("not found")

// Artifact is a business's fitted scaler and partitioner, saved together
// so inference always scales with the statistics the model was trained on.
// Overwritten wholesale on retrain; versioned by business name, not time.
type Artifact struct {
	Scaler *cluster.Scaler `json:"scaler"`
	Model  *cluster.Model  `json:"model"`
}

// Business is the metadata record kept per business identifier.
type Business struct {
	Name             string            `json:"name"`
	ColumnMapping    map[string]string `json:"column_mapping"`
	AnalysisMode     string            `json:"analysis_mode"`
	CustomerCount    int               `json:"customer_count"`
	TransactionCount int               `json:"transaction_count"`

	// Model performance from the most recent pipeline run.
	Silhouette  float64 `json:"silhouette_score"`
	Inertia     float64 `json:"inertia"`
	NumClusters int     `json:"n_clusters"`

	// Fingerprint of the last uploaded dataset, for spotting re-uploads.
	DatasetFingerprint string `json:"dataset_fingerprint,omitempty"`

	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModelStore persists fitted model artifacts keyed by business identifier.
// Concurrent saves for the same business are last-writer-wins; the engine
// does not lock around load/save.
type ModelStore interface {
	// LoadModel fetches the artifact for a business. ErrNotFound when the
	// business has never been trained.
	LoadModel(ctx context.Context, business string) (*Artifact, error)

	// SaveModel overwrites the artifact for a business.
	SaveModel(ctx context.Context, business string, a *Artifact) error

	// DeleteModel removes the artifact. Deleting a missing artifact is not
	// an error.
	DeleteModel(ctx context.Context, business string) error
}

// BusinessStore persists business metadata records.
type BusinessStore interface {
	GetBusiness(ctx context.Context, name string) (*Business, error)
	PutBusiness(ctx context.Context, b *Business) error
	ListBusinesses(ctx context.Context) ([]*Business, error)
	DeleteBusiness(ctx context.Context, name string) error
}

// Stats provides store health info for the health endpoint.
type Stats struct {
	Businesses int `json:"businesses"`
	Models     int `json:"models"`
}

// Store combines both repositories behind one backend.
type Store interface {
	ModelStore
	BusinessStore

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Fingerprint returns a short stable hash of raw dataset bytes.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
