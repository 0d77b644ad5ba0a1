package testing

import (
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/google/go-cmp/cmp"
)

// DBFactory is a function that creates a new instance of a Table implementation
type DBFactory func() db.Table

// RunTableTests runs a comprehensive test suite for a Table implementation.
func RunTableTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Init&Get", func(t *testing.T) {
			testInitGet(t, factory())
		})

		t.Run("DuplicateInit", func(t *testing.T) {
			testDuplicateInit(t, factory())
		})

		t.Run("UnknownKey", func(t *testing.T) {
			testUnknownKey(t, factory())
		})

		t.Run("Update", func(t *testing.T) {
			testUpdate(t, factory())
		})

		t.Run("FailedUpdate", func(t *testing.T) {
			testFailedUpdate(t, factory())
		})

		t.Run("Set", func(t *testing.T) {
			testSet(t, factory())
		})

		t.Run("Ownership", func(t *testing.T) {
			testOwnership(t, factory())
		})

		t.Run("Has&Len&Range", func(t *testing.T) {
			testHasLenRange(t, factory())
		})

		t.Run("ConcurrentInit", func(t *testing.T) {
			testConcurrentInit(t, factory())
		})

		t.Run("ConcurrentUpdate", func(t *testing.T) {
			testConcurrentUpdate(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the table supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, table db.Table, feature db.Feature) {
	if !table.SupportsFeature(feature) {
		t.Skip()
	}
}

func vec(data ...float32) tensor.Value {
	v, err := tensor.FromSlice(tensor.Shape{len(data)}, data, tensor.CPU(0))
	if err != nil {
		panic(err)
	}
	return v
}

func requireData(t testing.TB, table db.Table, key db.Key, want []float32) {
	t.Helper()
	value, _, err := table.Get(key)
	if err != nil {
		t.Fatalf("Get(%d) failed: %v", key, err)
	}
	if diff := cmp.Diff(want, value.Data()); diff != "" {
		t.Errorf("value of key %d mismatch (-want +got):\n%s", key, diff)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInitGet(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureGet)

	if err := table.Init(3, vec(1, 2, 3)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	value, gen, err := table.Get(3)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if gen != 0 {
		t.Errorf("expected generation 0 after Init, got %d", gen)
	}
	if diff := cmp.Diff(tensor.Shape{3}, value.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
	requireData(t, table, 3, []float32{1, 2, 3})
}

func testDuplicateInit(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureGet)

	if err := table.Init(0, vec(1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := table.Init(0, vec(2)); !errors.Is(err, db.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists on re-init, got %v", err)
	}

	// re-init must not overwrite
	requireData(t, table, 0, []float32{1})
}

func testUnknownKey(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureUpdate|db.FeatureRead|db.FeatureGet|db.FeatureSet)

	if _, err := table.Update(9, func(tensor.Value) error { return nil }); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Update: expected ErrKeyNotFound, got %v", err)
	}
	if err := table.Read(9, func(tensor.Value, uint64) error { return nil }); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Read: expected ErrKeyNotFound, got %v", err)
	}
	if _, _, err := table.Get(9); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Get: expected ErrKeyNotFound, got %v", err)
	}
	if _, err := table.Set(9, vec(1)); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("Set: expected ErrKeyNotFound, got %v", err)
	}
	if table.Has(9) {
		t.Errorf("Has returned true for unknown key")
	}
}

func testUpdate(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureUpdate|db.FeatureRead)

	if err := table.Init(1, vec(0, 0)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		gen, err := table.Update(1, func(stored tensor.Value) error {
			return stored.AddInPlace(vec(1, 2))
		})
		if err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
		if gen != uint64(i) {
			t.Errorf("expected generation %d, got %d", i, gen)
		}
	}

	err := table.Read(1, func(stored tensor.Value, generation uint64) error {
		if generation != 3 {
			t.Errorf("Read: expected generation 3, got %d", generation)
		}
		if diff := cmp.Diff([]float32{3, 6}, stored.Data()); diff != "" {
			t.Errorf("Read: data mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
}

func testFailedUpdate(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureUpdate|db.FeatureGet)

	if err := table.Init(1, vec(5)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	wantErr := errors.New("boom")
	gen, err := table.Update(1, func(tensor.Value) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error to be returned, got %v", err)
	}
	if gen != 0 {
		t.Errorf("failed update must not bump the generation, got %d", gen)
	}

	// a shape mismatch reported by the value itself behaves the same way
	if _, err := table.Update(1, func(stored tensor.Value) error {
		return stored.AddInPlace(vec(1, 1))
	}); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	_, gen, _ = table.Get(1)
	if gen != 0 {
		t.Errorf("expected generation 0, got %d", gen)
	}
	requireData(t, table, 1, []float32{5})
}

func testSet(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureSet|db.FeatureGet)

	if err := table.Init(2, vec(1, 1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	gen, err := table.Set(2, vec(7, 8))
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if gen != 1 {
		t.Errorf("expected generation 1 after Set, got %d", gen)
	}
	requireData(t, table, 2, []float32{7, 8})

	if _, err := table.Set(2, vec(1, 2, 3)); !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch for Set with a different shape, got %v", err)
	}
}

func testOwnership(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureSet|db.FeatureGet)

	src := vec(1, 2)
	if err := table.Init(4, src); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	src.Data()[0] = 100
	requireData(t, table, 4, []float32{1, 2})

	got, _, _ := table.Get(4)
	got.Data()[1] = 100
	requireData(t, table, 4, []float32{1, 2})

	upd := vec(3, 4)
	if _, err := table.Set(4, upd); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	upd.Data()[0] = 100
	requireData(t, table, 4, []float32{3, 4})
}

func testHasLenRange(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureHas|db.FeatureRange)

	const n = 50
	for k := 0; k < n; k++ {
		if err := table.Init(db.Key(k), vec(float32(k))); err != nil {
			t.Fatalf("Init(%d) failed: %v", k, err)
		}
	}

	if table.Len() != n {
		t.Errorf("expected Len %d, got %d", n, table.Len())
	}
	for k := 0; k < n; k++ {
		if !table.Has(db.Key(k)) {
			t.Errorf("Has(%d) returned false", k)
		}
	}

	seen := make(map[db.Key]float32)
	table.Range(func(key db.Key, value tensor.Value, _ uint64) bool {
		seen[key] = value.Data()[0]
		return true
	})
	if len(seen) != n {
		t.Fatalf("Range visited %d entries, expected %d", len(seen), n)
	}
	for k, v := range seen {
		if float32(k) != v {
			t.Errorf("Range: key %d has value %v", k, v)
		}
	}

	visited := 0
	table.Range(func(db.Key, tensor.Value, uint64) bool {
		visited++
		return visited < 5
	})
	if visited != 5 {
		t.Errorf("Range must stop when fn returns false, visited %d", visited)
	}
}

func testConcurrentInit(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit)

	const goroutines = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if err := table.Init(11, vec(1)); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, db.ErrKeyExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("expected exactly one successful Init, got %d", succeeded)
	}
}

func testConcurrentUpdate(t *testing.T, table db.Table) {
	defer table.Close()

	requireFeature(t, table, db.FeatureInit|db.FeatureUpdate|db.FeatureGet)

	const (
		goroutines = 8
		updates    = 500
		keys       = 4
	)
	for k := 0; k < keys; k++ {
		if err := table.Init(db.Key(k), vec(0, 0, 0)); err != nil {
			t.Fatalf("Init failed: %v", err)
		}
	}

	one := vec(1, 1, 1)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < updates; i++ {
				key := db.Key(i % keys)
				if _, err := table.Update(key, func(stored tensor.Value) error {
					return stored.AddInPlace(one)
				}); err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	perKey := float32(goroutines * updates / keys)
	for k := 0; k < keys; k++ {
		value, gen, err := table.Get(db.Key(k))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if diff := cmp.Diff([]float32{perKey, perKey, perKey}, value.Data()); diff != "" {
			t.Errorf("key %d lost updates (-want +got):\n%s", k, diff)
		}
		if gen != uint64(perKey) {
			t.Errorf("key %d: expected generation %v, got %d", k, perKey, gen)
		}
	}
}

func testInfo(t *testing.T, table db.Table) {
	defer table.Close()

	for k := 0; k < 10; k++ {
		if err := table.Init(db.Key(k), vec(1, 2, 3, 4)); err != nil {
			t.Fatalf("Init failed: %v", err)
		}
	}

	info := table.GetInfo()
	if info.Entries != 10 {
		t.Errorf("expected 10 entries, got %d", info.Entries)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("expected a positive size estimate, got %d", info.SizeBytes)
	}
	if info.DbType == "" {
		t.Errorf("expected a db type")
	}
}

func testClose(t *testing.T, table db.Table) {
	if err := table.Init(1, vec(1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := table.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, _, err := table.Get(1); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Get after Close: expected ErrClosed, got %v", err)
	}
	if err := table.Init(2, vec(1)); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Init after Close: expected ErrClosed, got %v", err)
	}
}
