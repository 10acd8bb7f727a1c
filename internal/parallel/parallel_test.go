package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 16}

	var counter int64
	seen := make([]int32, 1000)

	For(len(seen), func(i int) {
		atomic.AddInt64(&counter, 1)
		atomic.AddInt32(&seen[i], 1)
	}, cfg)

	if counter != int64(len(seen)) {
		t.Errorf("Expected %d, got %d", len(seen), counter)
	}
	for i, v := range seen {
		if v != 1 {
			t.Fatalf("index %d visited %d times", i, v)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(100, func(i int) {
		order = append(order, i)
	}, Sequential())

	if len(order) != 100 {
		t.Fatalf("Expected 100 calls, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("sequential config must preserve order: got %d at %d", v, i)
		}
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()

	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumWorkers < 1 {
		t.Errorf("NumWorkers = %d, want >= 1", cfg.NumWorkers)
	}
	if CPUSummary() == "" {
		t.Error("CPUSummary should never be empty")
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 1 << 16

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, Sequential())
		}
	})
}
