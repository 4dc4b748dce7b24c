package segment

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tinyseg/tinyseg/pkg/cluster"
	"github.com/tinyseg/tinyseg/pkg/rfm"
	"github.com/tinyseg/tinyseg/pkg/store"
	"github.com/tinyseg/tinyseg/pkg/store/memory"
)

// testCustomers builds a population with four distinct RFM shapes so
// clustering has obvious structure to find.
func testCustomers() []rfm.Customer {
	var customers []rfm.Customer
	shapes := []struct {
		recency   int
		frequency int
		monetary  float64
	}{
		{2, 40, 5000},  // recent, frequent, high spend
		{5, 35, 4500},
		{3, 38, 4800},
		{300, 1, 20},   // long gone, one cheap order
		{280, 2, 35},
		{310, 1, 15},
		{10, 3, 3000},  // recent big spenders
		{12, 2, 2800},
		{8, 4, 3200},
		{150, 20, 400}, // frequent but fading and cheap
		{140, 18, 380},
		{160, 22, 420},
	}
	for i, s := range shapes {
		customers = append(customers, rfm.Customer{
			CustomerID: string(rune('a' + i)),
			Recency:    s.recency,
			Frequency:  s.frequency,
			Monetary:   s.monetary,
		})
	}
	return customers
}

func TestSegment_TrainPersistsArtifact(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	engine := NewEngine(mem)

	res, err := engine.Segment(ctx, testCustomers(), "acme", true)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}

	if !res.Retrained {
		t.Error("Expected Retrained=true on a training run")
	}
	if len(res.Customers) != 12 {
		t.Fatalf("Expected 12 annotated customers, got %d", len(res.Customers))
	}
	for _, c := range res.Customers {
		if c.Segment == "" {
			t.Errorf("Customer %s has no segment name", c.CustomerID)
		}
	}
	if res.Metrics.NumClusters < 2 {
		t.Errorf("Expected at least 2 clusters, got %d", res.Metrics.NumClusters)
	}

	artifact, err := mem.LoadModel(ctx, "acme")
	if err != nil {
		t.Fatalf("Expected persisted artifact after training: %v", err)
	}
	if artifact.Scaler == nil || artifact.Model == nil {
		t.Error("Persisted artifact is missing scaler or model")
	}
}

func TestSegment_InferenceReusesModel(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	engine := NewEngine(mem)
	customers := testCustomers()

	trained, err := engine.Segment(ctx, customers, "acme", true)
	if err != nil {
		t.Fatalf("Training run failed: %v", err)
	}

	reused, err := engine.Segment(ctx, customers, "acme", false)
	if err != nil {
		t.Fatalf("Inference run failed: %v", err)
	}

	if reused.Retrained {
		t.Error("Expected Retrained=false when a persisted model exists")
	}
	if !reflect.DeepEqual(assignments(trained), assignments(reused)) {
		t.Error("Inference on identical data must reproduce the training assignments")
	}
	if !reflect.DeepEqual(trained.Names, reused.Names) {
		t.Errorf("Segment names differ across reuse:\ntrained=%v\n reused=%v",
			trained.Names, reused.Names)
	}
	if reused.Metrics.Inertia != trained.Metrics.Inertia {
		t.Errorf("Inference must report the persisted inertia: %v vs %v",
			reused.Metrics.Inertia, trained.Metrics.Inertia)
	}
}

func TestSegment_MissingModelFallsBackToTraining(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	engine := NewEngine(mem)

	res, err := engine.Segment(ctx, testCustomers(), "fresh", false)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if !res.Retrained {
		t.Error("Expected fallback retrain when no persisted model exists")
	}
	if _, err := mem.LoadModel(ctx, "fresh"); err != nil {
		t.Errorf("Fallback training should have persisted a model: %v", err)
	}
}

func TestSegment_IncompleteArtifactFallsBackToTraining(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	if err := mem.SaveModel(ctx, "broken", &store.Artifact{Scaler: &cluster.Scaler{}}); err != nil {
		t.Fatalf("SaveModel failed: %v", err)
	}

	engine := NewEngine(mem)
	res, err := engine.Segment(ctx, testCustomers(), "broken", false)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if !res.Retrained {
		t.Error("Expected retrain fallback on an incomplete artifact")
	}
}

func TestSegment_NoCustomers(t *testing.T) {
	engine := NewEngine(memory.New())
	if _, err := engine.Segment(context.Background(), nil, "acme", true); err == nil {
		t.Error("Expected error for empty customer list")
	}
}

type failingSaver struct {
	*memory.Store
}

func (f *failingSaver) SaveModel(ctx context.Context, business string, a *store.Artifact) error {
	return errors.New("disk full")
}

func TestSegment_SaveFailurePropagates(t *testing.T) {
	engine := NewEngine(&failingSaver{Store: memory.New()})
	_, err := engine.Segment(context.Background(), testCustomers(), "acme", true)
	if err == nil {
		t.Fatal("Expected error when persisting the trained model fails")
	}
}

func assignments(r *Result) map[string]string {
	out := make(map[string]string, len(r.Customers))
	for _, c := range r.Customers {
		out[c.CustomerID] = c.Segment
	}
	return out
}
