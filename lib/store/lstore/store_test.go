package lstore

import (
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newStore() store.IStore {
	return NewLocalStore(func() db.Table { return maple.NewMapleDB(nil) })
}

func vec(data ...float32) *tensor.Dense {
	v, err := tensor.FromSlice(tensor.Shape{len(data)}, data, tensor.CPU(0))
	if err != nil {
		panic(err)
	}
	return v
}

func pull(t *testing.T, s store.IStore, key db.Key, n int) ([]float32, uint64) {
	t.Helper()
	out := tensor.New(tensor.Shape{n}, tensor.CPU(0))
	gen, err := s.Pull(key, out)
	if err != nil {
		t.Fatalf("Pull(%d) failed: %v", key, err)
	}
	return out.Data(), gen
}

func TestInitPull(t *testing.T) {
	s := newStore()
	defer s.Close()

	if err := s.Init(0, vec(1, 2, 3)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	got, gen := pull(t, s, 0, 3)
	if diff := cmp.Diff([]float32{1, 2, 3}, got); diff != "" {
		t.Errorf("pulled value mismatch (-want +got):\n%s", diff)
	}
	if gen != 0 {
		t.Errorf("expected generation 0, got %d", gen)
	}
}

func TestPushSum(t *testing.T) {
	s := newStore()
	defer s.Close()

	if err := s.Init(1, vec(1, 1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for _, v := range []*tensor.Dense{vec(1, 2), vec(3, 4), vec(-1, 0)} {
		if err := s.Push(1, v); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}
	got, gen := pull(t, s, 1, 2)
	if diff := cmp.Diff([]float32{4, 7}, got); diff != "" {
		t.Errorf("sum mismatch (-want +got):\n%s", diff)
	}
	if gen != 3 {
		t.Errorf("expected generation 3, got %d", gen)
	}
}

func TestUpdater(t *testing.T) {
	maxUpdater := func(incoming, stored tensor.Value) error {
		dst := stored.Data()
		for i, v := range incoming.Data() {
			if v > dst[i] {
				dst[i] = v
			}
		}
		return nil
	}

	s := newStore()
	defer s.Close()

	if err := s.SetUpdater(maxUpdater); err != nil {
		t.Fatalf("SetUpdater failed: %v", err)
	}
	if err := s.Init(0, vec(5, 0, 1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_ = s.Push(0, vec(1, 9, 2))
	_ = s.Push(0, vec(3, 4, 8))

	got, _ := pull(t, s, 0, 3)
	if diff := cmp.Diff([]float32{5, 9, 8}, got); diff != "" {
		t.Errorf("max updater mismatch (-want +got):\n%s", diff)
	}

	t.Run("ResetToSum", func(t *testing.T) {
		if err := s.SetUpdater(nil); err != nil {
			t.Fatalf("SetUpdater(nil) failed: %v", err)
		}
		_ = s.Push(0, vec(1, 1, 1))
		got, _ := pull(t, s, 0, 3)
		if diff := cmp.Diff([]float32{6, 10, 9}, got); diff != "" {
			t.Errorf("sum after reset mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("UpdaterError", func(t *testing.T) {
		boom := errors.New("boom")
		_ = s.SetUpdater(func(_, _ tensor.Value) error { return boom })
		err := s.Push(0, vec(1, 1, 1))
		if !errors.Is(err, store.ErrInternal) {
			t.Errorf("expected internal error, got %v", err)
		}
		_, gen := pull(t, s, 0, 3)
		if gen != 3 {
			t.Errorf("failed updater must not bump the generation, got %d", gen)
		}
	})

	t.Run("UpdaterShapeError", func(t *testing.T) {
		_ = s.SetUpdater(func(_, _ tensor.Value) error { return tensor.ErrShapeMismatch })
		if err := s.Push(0, vec(1, 1, 1)); !errors.Is(err, store.ErrShapeMismatch) {
			t.Errorf("expected ErrShapeMismatch, got %v", err)
		}
	})
}

func TestErrors(t *testing.T) {
	s := newStore()
	defer s.Close()

	_ = s.Init(0, vec(1, 2))

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"PushUnknown", func() error { return s.Push(5, vec(1)) }, store.ErrUnknownKey},
		{"PullUnknown", func() error { _, err := s.Pull(5, vec(1)); return err }, store.ErrUnknownKey},
		{"Reinit", func() error { return s.Init(0, vec(1, 2)) }, store.ErrDuplicateKey},
		{"PushShape", func() error { return s.Push(0, vec(1, 2, 3)) }, store.ErrShapeMismatch},
		{"PullShape", func() error { _, err := s.Pull(0, vec(1)); return err }, store.ErrShapeMismatch},
		{"NegativeKey", func() error { return s.Init(-1, vec(1)) }, store.ErrArityMismatch},
		{"NilValue", func() error { return s.Push(0, nil) }, store.ErrArityMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	got, _ := pull(t, s, 0, 2)
	if diff := cmp.Diff([]float32{1, 2}, got); diff != "" {
		t.Errorf("failed calls modified the value (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	s := newStore()
	defer s.Close()
	_ = s.Init(0, vec(1, 2))

	v, ok := s.(store.IValidator)
	if !ok {
		t.Fatalf("local store must implement store.IValidator")
	}

	if err := v.Validate(0, vec(0, 0), true); err != nil {
		t.Errorf("expected valid push, got %v", err)
	}
	if err := v.Validate(0, vec(0), true); !errors.Is(err, store.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if err := v.Validate(1, vec(0), true); !errors.Is(err, store.ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if err := v.Validate(0, vec(0), false); !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := v.Validate(1, vec(0), false); err != nil {
		t.Errorf("expected valid init, got %v", err)
	}
}

func TestConcurrentPush(t *testing.T) {
	const (
		workers = 8
		pushes  = 250
	)

	s := newStore()
	defer s.Close()
	_ = s.Init(0, vec(0, 0, 0, 0))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			one := vec(1, 1, 1, 1)
			for i := 0; i < pushes; i++ {
				if err := s.Push(0, one); err != nil {
					t.Errorf("Push failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	want := float32(workers * pushes)
	got, gen := pull(t, s, 0, 4)
	if diff := cmp.Diff([]float32{want, want, want, want}, got); diff != "" {
		t.Errorf("lost pushes (-want +got):\n%s", diff)
	}
	if gen != workers*pushes {
		t.Errorf("expected generation %d, got %d", workers*pushes, gen)
	}
}

func TestOwnership(t *testing.T) {
	s := newStore()
	defer s.Close()

	initial := vec(1, 1)
	_ = s.Init(0, initial)
	initial.Data()[0] = 50

	grad := vec(2, 2)
	_ = s.Push(0, grad)
	grad.Data()[0] = 50

	out := vec(0, 0)
	_, _ = s.Pull(0, out)
	out.Data()[1] = 50

	got, _ := pull(t, s, 0, 2)
	if diff := cmp.Diff([]float32{3, 3}, got); diff != "" {
		t.Errorf("store kept a reference to a caller value (-want +got):\n%s", diff)
	}
}

func TestClose(t *testing.T) {
	s := newStore()
	_ = s.Init(0, vec(1))

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := s.Push(0, vec(1)); !errors.Is(err, store.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if _, err := s.Pull(0, vec(1)); !errors.Is(err, store.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if err := s.SetUpdater(nil); !errors.Is(err, store.ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

// The sum of any multiset of pushes does not depend on the order they are applied in.
// Values are small integers so float32 addition is exact.
func TestPushOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("sum is order independent", prop.ForAll(
		func(start int, pushes []int, seed int64) bool {
			apply := func(order []int) []float32 {
				s := newStore()
				defer s.Close()
				_ = s.Init(0, tensor.Full(tensor.Shape{2}, float32(start), tensor.CPU(0)))
				for _, i := range order {
					_ = s.Push(0, tensor.Full(tensor.Shape{2}, float32(pushes[i]), tensor.CPU(0)))
				}
				out := tensor.New(tensor.Shape{2}, tensor.CPU(0))
				_, _ = s.Pull(0, out)
				return out.Data()
			}

			inOrder := make([]int, len(pushes))
			expected := float32(start)
			for i, p := range pushes {
				inOrder[i] = i
				expected += float32(p)
			}
			shuffled := rand.New(rand.NewSource(seed)).Perm(len(pushes))

			a, b := apply(inOrder), apply(shuffled)
			return cmp.Equal(a, b) && a[0] == expected && a[1] == expected
		},
		gen.IntRange(-1000, 1000),
		gen.SliceOf(gen.IntRange(-1000, 1000)),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestSnapshot(t *testing.T) {
	s := newStore()
	defer s.Close()
	snap := s.(store.ISnapshotter)

	if _, _, err := snap.Snapshot(5); !errors.Is(err, store.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}

	if err := s.Init(5, vec(1, 1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Push(5, vec(2, 3)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	value, gen, err := snap.Snapshot(5)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if gen != 1 {
		t.Errorf("expected generation 1, got %d", gen)
	}
	if diff := cmp.Diff([]float32{3, 4}, value.Data()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	// the snapshot is a copy
	value.Data()[0] = 100
	got, _ := pull(t, s, 5, 2)
	if got[0] != 3 {
		t.Errorf("snapshot aliases the stored value")
	}
}
