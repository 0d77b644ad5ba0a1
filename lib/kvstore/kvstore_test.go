package kvstore

import (
	"errors"
	"sync"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/store/lstore"
	"github.com/ValentinKolb/tKV/lib/tensor"
	"github.com/ValentinKolb/tKV/lib/updater"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var (
	cpu0 = tensor.CPU(0)
	gpu0 = tensor.GPU(0)
	gpu1 = tensor.GPU(1)
)

func vec(ctx tensor.Context, data ...float32) *tensor.Dense {
	v, err := tensor.FromSlice(tensor.Shape{len(data)}, data, ctx)
	if err != nil {
		panic(err)
	}
	return v
}

func newRunning(t *testing.T) *KVStore {
	t.Helper()
	kv := NewLocal()
	if err := kv.InitDevices([]tensor.Context{cpu0, gpu0, gpu1}); err != nil {
		t.Fatalf("InitDevices failed: %v", err)
	}
	t.Cleanup(func() { _ = kv.Stop() })
	return kv
}

func pullData(t *testing.T, kv *KVStore, key db.Key, n int) []float32 {
	t.Helper()
	out := tensor.New(tensor.Shape{n}, cpu0)
	if _, err := kv.PullOne(key, out); err != nil {
		t.Fatalf("PullOne(%d) failed: %v", key, err)
	}
	return out.Data()
}

func TestStateMachine(t *testing.T) {
	kv := NewLocal()
	v := vec(cpu0, 1)

	if kv.State() != StateUninitialized {
		t.Fatalf("expected Uninitialized, got %s", kv.State())
	}
	if err := kv.InitOne(0, v); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Init before InitDevices: expected ErrInvalidOperation, got %v", err)
	}

	if err := kv.InitDevices([]tensor.Context{cpu0}); err != nil {
		t.Fatalf("InitDevices failed: %v", err)
	}
	if kv.State() != StateDevicesInitialized {
		t.Fatalf("expected DevicesInitialized, got %s", kv.State())
	}
	if err := kv.InitDevices([]tensor.Context{cpu0}); !errors.Is(err, store.ErrAlreadyInitialized) {
		t.Errorf("second InitDevices: expected ErrAlreadyInitialized, got %v", err)
	}

	if err := kv.InitOne(0, v); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if kv.State() != StateRunning {
		t.Fatalf("expected Running after the first operation, got %s", kv.State())
	}

	if err := kv.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := kv.Stop(); err != nil {
		t.Errorf("second Stop must be a no-op, got %v", err)
	}
	if kv.State() != StateStopped {
		t.Fatalf("expected Stopped, got %s", kv.State())
	}

	checks := map[string]error{
		"Push":        kv.PushOne(0, v),
		"Pull":        kv.Pull([]db.Key{0}, []tensor.Value{v}),
		"Init":        kv.InitOne(1, v),
		"SetUpdater":  kv.SetUpdater(nil),
		"InitDevices": kv.InitDevices([]tensor.Context{cpu0}),
	}
	for name, err := range checks {
		if !errors.Is(err, store.ErrStopped) {
			t.Errorf("%s after Stop: expected ErrStopped, got %v", name, err)
		}
	}
}

func TestInitPullRoundTrip(t *testing.T) {
	kv := newRunning(t)

	keys := []db.Key{0, 1, 2}
	values := []tensor.Value{vec(cpu0, 1, 2), vec(gpu0, 3, 4), vec(gpu1, 5, 6)}
	if err := kv.Init(keys, values); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	outs := []tensor.Value{tensor.New(tensor.Shape{2}, cpu0), tensor.New(tensor.Shape{2}, gpu0), tensor.New(tensor.Shape{2}, gpu1)}
	if err := kv.Pull(keys, outs); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	for i := range keys {
		if diff := cmp.Diff(values[i].Data(), outs[i].Data()); diff != "" {
			t.Errorf("key %d mismatch (-want +got):\n%s", keys[i], diff)
		}
		if outs[i].Context() != values[i].Context() {
			t.Errorf("pull changed the device of the output buffer")
		}
	}
}

func TestInitErrors(t *testing.T) {
	kv := newRunning(t)
	v := vec(cpu0, 1)

	if err := kv.Init([]db.Key{7}, []tensor.Value{v, v}); !errors.Is(err, store.ErrArityMismatch) {
		t.Errorf("init with fan-out: expected ErrArityMismatch, got %v", err)
	}
	if err := kv.Init([]db.Key{7, 7}, []tensor.Value{v, v}); !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("duplicate keys in one batch: expected ErrDuplicateKey, got %v", err)
	}
	if err := kv.InitOne(7, v); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := kv.InitOne(7, v); !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("re-init: expected ErrDuplicateKey, got %v", err)
	}

	// a batch containing an existing key creates none of its keys
	if err := kv.Init([]db.Key{8, 7}, []tensor.Value{v, v}); !errors.Is(err, store.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := kv.PushOne(8, v); !errors.Is(err, store.ErrUnknownKey) {
		t.Errorf("key 8 of a rejected batch must not exist, got %v", err)
	}
}

func TestPushPullErrors(t *testing.T) {
	kv := newRunning(t)
	_ = kv.InitOne(0, vec(cpu0, 1, 1))

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"PushUnknown", func() error { return kv.PushOne(3, vec(cpu0, 1, 1)) }, store.ErrUnknownKey},
		{"PullUnknown", func() error { _, err := kv.PullOne(3, vec(cpu0, 1, 1)); return err }, store.ErrUnknownKey},
		{"PushShape", func() error { return kv.PushOne(0, vec(cpu0, 1)) }, store.ErrShapeMismatch},
		{"PullShape", func() error { _, err := kv.PullOne(0, vec(cpu0, 1)); return err }, store.ErrShapeMismatch},
		{"Arity", func() error {
			return kv.Push([]db.Key{0, 1}, []tensor.Value{vec(cpu0, 1, 1), vec(cpu0, 1, 1), vec(cpu0, 1, 1)})
		}, store.ErrArityMismatch},
		{"UnknownDevice", func() error { return kv.PushOne(0, vec(tensor.GPU(7), 1, 1)) }, store.ErrInvalidDevice},
		{"PullOutputShapes", func() error {
			return kv.Pull([]db.Key{0}, []tensor.Value{vec(cpu0, 0, 0), vec(gpu0, 0)})
		}, store.ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	// a rejected batch applies none of its pairs
	_ = kv.InitOne(1, vec(cpu0, 0, 0))
	err := kv.Push([]db.Key{1, 0}, []tensor.Value{vec(cpu0, 1, 1), vec(cpu0, 1)})
	if !errors.Is(err, store.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if diff := cmp.Diff([]float32{0, 0}, pullData(t, kv, 1, 2)); diff != "" {
		t.Errorf("partially applied batch (-want +got):\n%s", diff)
	}
}

func TestPushAggregation(t *testing.T) {
	kv := newRunning(t)
	_ = kv.InitOne(0, vec(cpu0, 1, 1))

	// one contribution per device
	if err := kv.Push([]db.Key{0}, []tensor.Value{vec(cpu0, 1, 2), vec(gpu0, 3, 4), vec(gpu1, 5, 6)}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if diff := cmp.Diff([]float32{10, 13}, pullData(t, kv, 0, 2)); diff != "" {
		t.Errorf("sum mismatch (-want +got):\n%s", diff)
	}
}

func TestMaxUpdater(t *testing.T) {
	kv := NewLocal()
	defer kv.Stop()

	// registered before the store runs, installed on the first operation.
	if err := kv.SetUpdater(updater.Max); err != nil {
		t.Fatalf("SetUpdater failed: %v", err)
	}
	_ = kv.InitDevices([]tensor.Context{cpu0})
	_ = kv.InitOne(0, vec(cpu0, 2, 2, 2))
	_ = kv.PushOne(0, vec(cpu0, 5, 1, 0))
	_ = kv.PushOne(0, vec(cpu0, 1, 3, 0))

	if diff := cmp.Diff([]float32{5, 3, 2}, pullData(t, kv, 0, 3)); diff != "" {
		t.Errorf("max mismatch (-want +got):\n%s", diff)
	}

	// switching at runtime does not re-aggregate
	_ = kv.SetUpdater(nil)
	_ = kv.PushOne(0, vec(cpu0, 1, 1, 1))
	if diff := cmp.Diff([]float32{6, 4, 3}, pullData(t, kv, 0, 3)); diff != "" {
		t.Errorf("sum after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestPullBroadcast(t *testing.T) {
	kv := newRunning(t)
	_ = kv.InitOne(4, vec(cpu0, 7, 8))

	outs := []tensor.Value{tensor.New(tensor.Shape{2}, cpu0), tensor.New(tensor.Shape{2}, gpu0), tensor.New(tensor.Shape{2}, gpu1)}
	if err := kv.Pull([]db.Key{4}, outs); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	for i, out := range outs {
		if diff := cmp.Diff([]float32{7, 8}, out.Data()); diff != "" {
			t.Errorf("output %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestConcurrentPushes(t *testing.T) {
	const (
		workers = 6
		pushes  = 200
	)
	kv := newRunning(t)
	_ = kv.InitOne(0, tensor.New(tensor.Shape{3}, cpu0))

	devices := []tensor.Context{cpu0, gpu0, gpu1}
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(ctx tensor.Context) {
			defer wg.Done()
			one := tensor.Ones(tensor.Shape{3}, ctx)
			for i := 0; i < pushes; i++ {
				if err := kv.PushOne(0, one); err != nil {
					t.Errorf("Push failed: %v", err)
					return
				}
			}
		}(devices[w%len(devices)])
	}
	wg.Wait()

	want := float32(workers * pushes)
	if diff := cmp.Diff([]float32{want, want, want}, pullData(t, kv, 0, 3)); diff != "" {
		t.Errorf("lost pushes (-want +got):\n%s", diff)
	}
}

func TestStopWaitsForInFlight(t *testing.T) {
	kv := newRunning(t)
	_ = kv.InitOne(0, vec(cpu0, 0))

	started := make(chan struct{})
	release := make(chan struct{})
	_ = kv.SetUpdater(func(incoming, stored tensor.Value) error {
		close(started)
		<-release
		return stored.AddInPlace(incoming)
	})

	pushErr := make(chan error, 1)
	go func() { pushErr <- kv.PushOne(0, vec(cpu0, 1)) }()
	<-started

	stopped := make(chan struct{})
	go func() {
		_ = kv.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatalf("Stop returned while a push was in flight")
	default:
	}
	close(release)
	<-stopped

	if err := <-pushErr; err != nil {
		t.Errorf("in-flight push must complete, got %v", err)
	}
}

func TestNewWithStore(t *testing.T) {
	backend := lstore.NewLocalStore(func() db.Table { return maple.NewMapleDB(nil) })
	defer backend.Close()

	worker := NewWithStore("colocated", backend)
	_ = worker.InitDevices([]tensor.Context{cpu0})
	if err := worker.InitOne(0, vec(cpu0, 1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_ = worker.PushOne(0, vec(cpu0, 2))
	_ = worker.Stop()

	out := vec(cpu0, 0)
	if _, err := backend.Pull(0, out); err != nil {
		t.Fatalf("Stop of a worker must not close a shared backend: %v", err)
	}
	if out.Data()[0] != 3 {
		t.Errorf("expected 3, got %v", out.Data()[0])
	}
}

func TestOpenFailure(t *testing.T) {
	kv := New("broken", func() (store.IStore, error) {
		return nil, errors.New("connection refused")
	})
	_ = kv.InitDevices([]tensor.Context{cpu0})

	if err := kv.InitOne(0, vec(cpu0, 1)); !errors.Is(err, store.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if kv.State() != StateDevicesInitialized {
		t.Errorf("failed open must not change the state, got %s", kv.State())
	}
}

// Pushing several values to one key in one call equals pushing them one by one.
func TestFanOutEquivalenceProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	devices := []tensor.Context{cpu0, gpu0, gpu1}

	properties.Property("push(k, [v1..vn]) == push(k, v1) ... push(k, vn)", prop.ForAll(
		func(contributions []int) bool {
			batched, sequential := NewLocal(), NewLocal()
			defer batched.Stop()
			defer sequential.Stop()

			values := make([]tensor.Value, len(contributions))
			for i, c := range contributions {
				values[i] = tensor.Full(tensor.Shape{2}, float32(c), devices[i%len(devices)])
			}

			for _, kv := range []*KVStore{batched, sequential} {
				_ = kv.InitDevices(devices)
				_ = kv.InitOne(0, tensor.New(tensor.Shape{2}, cpu0))
			}
			if err := batched.Push([]db.Key{0}, values); err != nil {
				return false
			}
			for _, v := range values {
				if err := sequential.PushOne(0, v); err != nil {
					return false
				}
			}

			a, b := tensor.New(tensor.Shape{2}, cpu0), tensor.New(tensor.Shape{2}, cpu0)
			genA, errA := batched.PullOne(0, a)
			genB, errB := sequential.PullOne(0, b)
			return errA == nil && errB == nil && genA == genB && cmp.Equal(a.Data(), b.Data())
		},
		gen.SliceOfN(8, gen.IntRange(-100, 100)),
	))

	properties.TestingRun(t)
}

// fixedBackend is a local store that rejects every updater, like a remote coordinator
type fixedBackend struct {
	store.IStore
}

func (fixedBackend) SetUpdater(store.Updater) error {
	return store.NewError(store.RetCUnsupportedOperation, "remote")
}

func newFixedBackend() store.IStore {
	return fixedBackend{lstore.NewLocalStore(func() db.Table { return maple.NewMapleDB(nil) })}
}

func TestFixedUpdaterFailsImmediately(t *testing.T) {
	kv := New("fixed", func() (store.IStore, error) { return newFixedBackend(), nil },
		WithFixedUpdater("configured by the coordinator"))
	t.Cleanup(func() { _ = kv.Stop() })

	if err := kv.SetUpdater(updater.Max); !errors.Is(err, store.ErrUnsupportedOperation) {
		t.Errorf("before InitDevices: expected ErrUnsupportedOperation, got %v", err)
	}
	_ = kv.InitDevices([]tensor.Context{cpu0})
	if err := kv.SetUpdater(updater.Max); !errors.Is(err, store.ErrUnsupportedOperation) {
		t.Errorf("before running: expected ErrUnsupportedOperation, got %v", err)
	}

	// the rejected updater does not leak into later calls
	if err := kv.InitOne(0, vec(cpu0, 1)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := kv.PushOne(0, vec(cpu0, 2)); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if kv.State() != StateRunning {
		t.Errorf("expected state Running, got %s", kv.State())
	}
	if err := kv.SetUpdater(updater.Max); !errors.Is(err, store.ErrUnsupportedOperation) {
		t.Errorf("while running: expected ErrUnsupportedOperation, got %v", err)
	}
	if diff := cmp.Diff([]float32{3}, pullData(t, kv, 0, 1)); diff != "" {
		t.Errorf("sum expected (-want +got):\n%s", diff)
	}
}

func TestRejectedPendingUpdaterIsDropped(t *testing.T) {
	kv := New("rejecting", func() (store.IStore, error) { return newFixedBackend(), nil })
	t.Cleanup(func() { _ = kv.Stop() })
	_ = kv.InitDevices([]tensor.Context{cpu0})

	if err := kv.SetUpdater(updater.Max); err != nil {
		t.Fatalf("SetUpdater before running should be deferred, got %v", err)
	}
	if err := kv.InitOne(0, vec(cpu0, 1)); !errors.Is(err, store.ErrUnsupportedOperation) {
		t.Fatalf("expected the rejected updater on the first call, got %v", err)
	}
	if kv.State() != StateDevicesInitialized {
		t.Errorf("expected state DevicesInitialized, got %s", kv.State())
	}

	if err := kv.InitOne(0, vec(cpu0, 1)); err != nil {
		t.Fatalf("store must not stay blocked by a rejected updater: %v", err)
	}
	if kv.State() != StateRunning {
		t.Errorf("expected state Running, got %s", kv.State())
	}
}
