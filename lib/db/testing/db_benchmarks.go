package testing

import (
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/tensor"
)

// RunTableBenchmarks runs all benchmarks for a Table implementation
func RunTableBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Init", func(b *testing.B) {
		benchmarkInit(b, factory())
	})

	b.Run("UpdateSmall", func(b *testing.B) {
		benchmarkUpdate(b, factory(), tensor.Shape{16}, 64)
	})

	b.Run("UpdateLarge", func(b *testing.B) {
		benchmarkUpdate(b, factory(), tensor.Shape{256, 256}, 8)
	})

	b.Run("UpdateHotKey", func(b *testing.B) {
		benchmarkUpdate(b, factory(), tensor.Shape{16}, 1)
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})
}

func benchmarkInit(b *testing.B, table db.Table) {
	defer table.Close()
	value := tensor.Ones(tensor.Shape{16}, tensor.CPU(0))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = table.Init(db.Key(i), value)
	}
}

func benchmarkUpdate(b *testing.B, table db.Table, shape tensor.Shape, keys int) {
	defer table.Close()
	for k := 0; k < keys; k++ {
		_ = table.Init(db.Key(k), tensor.New(shape, tensor.CPU(0)))
	}
	grad := tensor.Ones(shape, tensor.CPU(0))
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			key := db.Key(counter.Add(1) % int64(keys))
			_, _ = table.Update(key, func(stored tensor.Value) error {
				return stored.AddInPlace(grad)
			})
		}
	})
}

func benchmarkGet(b *testing.B, table db.Table) {
	defer table.Close()
	const keys = 1024
	for k := 0; k < keys; k++ {
		_ = table.Init(db.Key(k), tensor.Ones(tensor.Shape{64}, tensor.CPU(0)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _, _ = table.Get(db.Key(i % keys))
			i++
		}
	})
}
