package kvstore

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tensor"
)

func TestNormalize(t *testing.T) {
	a := tensor.Ones(tensor.Shape{2}, tensor.CPU(0))
	b := tensor.Ones(tensor.Shape{2}, tensor.GPU(0))
	c := tensor.Ones(tensor.Shape{2}, tensor.GPU(1))

	tests := []struct {
		name      string
		keys      []db.Key
		values    []tensor.Value
		fanOut    bool
		wantKeys  []db.Key
		wantError error
	}{
		{name: "Scalar", keys: []db.Key{3}, values: []tensor.Value{a}, fanOut: true, wantKeys: []db.Key{3}},
		{name: "FanOut", keys: []db.Key{3}, values: []tensor.Value{a, b, c}, fanOut: true, wantKeys: []db.Key{3, 3, 3}},
		{name: "FanOutStrict", keys: []db.Key{3}, values: []tensor.Value{a, b}, fanOut: false, wantError: store.ErrArityMismatch},
		{name: "Pairwise", keys: []db.Key{1, 2, 3}, values: []tensor.Value{a, b, c}, fanOut: true, wantKeys: []db.Key{1, 2, 3}},
		{name: "PairwiseStrict", keys: []db.Key{1, 2}, values: []tensor.Value{a, b}, fanOut: false, wantKeys: []db.Key{1, 2}},
		{name: "Mismatch", keys: []db.Key{1, 2}, values: []tensor.Value{a, b, c}, fanOut: true, wantError: store.ErrArityMismatch},
		{name: "MoreKeys", keys: []db.Key{1, 2, 3}, values: []tensor.Value{a}, fanOut: true, wantError: store.ErrArityMismatch},
		{name: "NoKeys", keys: nil, values: []tensor.Value{a}, fanOut: true, wantError: store.ErrArityMismatch},
		{name: "NoValues", keys: []db.Key{1}, values: nil, fanOut: true, wantError: store.ErrArityMismatch},
		{name: "NegativeKey", keys: []db.Key{-1}, values: []tensor.Value{a}, fanOut: true, wantError: store.ErrArityMismatch},
		{name: "NilValue", keys: []db.Key{1, 2}, values: []tensor.Value{a, nil}, fanOut: true, wantError: store.ErrArityMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, err := Normalize(tt.keys, tt.values, tt.fanOut)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("expected %v, got %v", tt.wantError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(pairs) != len(tt.wantKeys) {
				t.Fatalf("expected %d pairs, got %d", len(tt.wantKeys), len(pairs))
			}
			for i, p := range pairs {
				if p.Key != tt.wantKeys[i] {
					t.Errorf("pair %d: expected key %d, got %d", i, tt.wantKeys[i], p.Key)
				}
				if p.Value != tt.values[i] {
					t.Errorf("pair %d: value was not passed through", i)
				}
			}
		})
	}
}

func TestGroupByKey(t *testing.T) {
	v := tensor.Ones(tensor.Shape{1}, tensor.CPU(0))
	groups := groupByKey([]Pair{{5, v}, {1, v}, {5, v}, {2, v}, {1, v}})

	want := []struct {
		key  db.Key
		outs int
	}{{5, 2}, {1, 2}, {2, 1}}
	if len(groups) != len(want) {
		t.Fatalf("expected %d groups, got %d", len(want), len(groups))
	}
	for i, w := range want {
		if groups[i].key != w.key || len(groups[i].outs) != w.outs {
			t.Errorf("group %d: expected key %d with %d outputs, got key %d with %d", i, w.key, w.outs, groups[i].key, len(groups[i].outs))
		}
	}
}

func TestDeviceSet(t *testing.T) {
	set, err := NewDeviceSet([]tensor.Context{tensor.GPU(0), tensor.GPU(1), tensor.GPU(0)})
	if err != nil {
		t.Fatalf("NewDeviceSet failed: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("duplicates must be ignored, got %d devices", set.Len())
	}
	if !set.Contains(tensor.GPU(1)) || set.Contains(tensor.CPU(0)) {
		t.Errorf("unexpected membership for %s", set)
	}

	for name, contexts := range map[string][]tensor.Context{
		"Empty":      nil,
		"BadType":    {{DeviceType: 9}},
		"NegativeID": {{DeviceType: tensor.DeviceCPU, DeviceID: -1}},
	} {
		if _, err := NewDeviceSet(contexts); !errors.Is(err, store.ErrInvalidDevice) {
			t.Errorf("%s: expected ErrInvalidDevice, got %v", name, err)
		}
	}
}
