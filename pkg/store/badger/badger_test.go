package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyseg/tinyseg/pkg/cluster"
	"github.com/tinyseg/tinyseg/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testArtifact() *store.Artifact {
	return &store.Artifact{
		Scaler: &cluster.Scaler{Mean: []float64{1, 2, 3}, Std: []float64{0.5, 1, 2}},
		Model: &cluster.Model{
			K:         3,
			Centroids: [][]float64{{-1, 0, 1}, {0, 0, 0}, {1, 0, -1}},
			Inertia:   7.5,
		},
	}
}

func TestModelRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LoadModel(ctx, "acme")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SaveModel(ctx, "acme", testArtifact()))

	got, err := s.LoadModel(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, testArtifact(), got)

	require.NoError(t, s.DeleteModel(ctx, "acme"))
	_, err = s.LoadModel(ctx, "acme")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestModelsIsolatedPerBusiness(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := testArtifact()
	b := testArtifact()
	b.Model.K = 5

	require.NoError(t, s.SaveModel(ctx, "acme", a))
	require.NoError(t, s.SaveModel(ctx, "globex", b))

	got, err := s.LoadModel(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Model.K)

	got, err = s.LoadModel(ctx, "globex")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Model.K)
}

func TestBusinessRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := &store.Business{
		Name:             "acme",
		AnalysisMode:     "full_rfm",
		ColumnMapping:    map[string]string{"cust": "CustomerID"},
		CustomerCount:    42,
		TransactionCount: 500,
		Silhouette:       0.61,
		NumClusters:      4,
	}
	require.NoError(t, s.PutBusiness(ctx, b))

	got, err := s.GetBusiness(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = s.GetBusiness(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteBusiness(ctx, "acme"))
	_, err = s.GetBusiness(ctx, "acme")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListBusinessesSorted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"zeta", "acme", "mid"} {
		require.NoError(t, s.PutBusiness(ctx, &store.Business{Name: name}))
	}

	list, err := s.ListBusinesses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "acme", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
}

func TestStatsCountsPrefixes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.PutBusiness(ctx, &store.Business{Name: "acme"}))
	require.NoError(t, s.SaveModel(ctx, "acme", testArtifact()))
	require.NoError(t, s.SaveModel(ctx, "globex", testArtifact()))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Businesses)
	assert.Equal(t, 2, stats.Models)
}

func TestCancelledContext(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LoadModel(ctx, "acme")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.SaveModel(ctx, "acme", testArtifact()), context.Canceled)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.SaveModel(ctx, "acme", testArtifact()))
	require.NoError(t, s.Close())

	s, err = New(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LoadModel(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, testArtifact(), got)
}
