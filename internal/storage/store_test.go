package storage

import (
	"testing"

	"github.com/san-kum/rensim/internal/ren"
	"github.com/san-kum/rensim/internal/sim"
)

func testRun(t *testing.T) (*ren.Model, *sim.Result) {
	t.Helper()
	model, err := ren.New(ren.Dims{In: 1, Out: 2, X: 3, V: 2, Batch: 1}, ren.DefaultOptions(), 17)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	result := &sim.Result{
		States:  []sim.State{{1, 2, 3}, {0.5, 1, 1.5}},
		Outputs: [][]float64{{1, -1}, {0.5, -0.5}},
		Times:   []float64{0, 0.5},
		Metrics: map[string]float64{"contraction": 0.9},
	}
	return model, result
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	model, result := testRun(t)
	runID, err := store.Save("demo", 17, model, result)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	meta, err := store.LoadMetadata(runID)
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if meta.Name != "demo" || meta.Seed != 17 || meta.Horizon != 2 {
		t.Errorf("metadata mismatch: %+v", meta)
	}
	if meta.Variant != "continuous" {
		t.Errorf("variant %q, want continuous", meta.Variant)
	}
	if meta.Metrics["contraction"] != 0.9 {
		t.Errorf("metrics lost: %v", meta.Metrics)
	}

	times, outputs, err := store.LoadOutputs(runID)
	if err != nil {
		t.Fatalf("load outputs: %v", err)
	}
	if len(times) != 2 || len(outputs) != 2 {
		t.Fatalf("got %d times, %d outputs, want 2 each", len(times), len(outputs))
	}
	if times[1] != 0.5 || outputs[1][0] != 0.5 || outputs[1][1] != -0.5 {
		t.Errorf("output series mismatch: times=%v outputs=%v", times, outputs)
	}
}

func TestStoreLoadModelRecompiles(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	model, result := testRun(t)
	runID, err := store.Save("demo", 17, model, result)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.LoadModel(runID)
	if err != nil {
		t.Fatalf("load model: %v", err)
	}

	a0 := model.Dynamics().A()
	a1 := loaded.Dynamics().A()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if a0.At(i, j) != a1.At(i, j) {
				t.Errorf("A[%d,%d]: %v != %v", i, j, a0.At(i, j), a1.At(i, j))
			}
		}
	}
}

func TestStoreList(t *testing.T) {
	store := New(t.TempDir())
	if err := store.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	runs, err := store.List()
	if err != nil {
		t.Fatalf("list empty store: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("empty store listed %d runs", len(runs))
	}

	model, result := testRun(t)
	if _, err := store.Save("first", 1, model, result); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save("second", 2, model, result); err != nil {
		t.Fatalf("save: %v", err)
	}

	runs, err = store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("listed %d runs, want 2", len(runs))
	}
	// Newest first.
	if runs[0].Timestamp.Before(runs[1].Timestamp) {
		t.Error("runs not sorted newest first")
	}
}

func TestStoreListMissingDir(t *testing.T) {
	store := New(t.TempDir() + "/never-created")
	runs, err := store.List()
	if err != nil {
		t.Fatalf("list missing dir: %v", err)
	}
	if runs != nil {
		t.Errorf("missing dir listed %v", runs)
	}
}
