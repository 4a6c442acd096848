package pool

import (
	"sync"
	"testing"
)

func TestGetPutFloat64(t *testing.T) {
	tests := []int{0, 1, 100, 1024, 65536}
	for _, length := range tests {
		s := GetFloat64(length)
		if len(s) != length {
			t.Errorf("GetFloat64(%d): len = %d, want %d", length, len(s), length)
		}
		PutFloat64(s)
	}
}

func TestGetFloat64_Reuse(t *testing.T) {
	const length = 2048
	s := GetFloat64(length)
	s[0] = 3.25
	PutFloat64(s)

	s2 := GetFloat64(length)
	if len(s2) != length {
		t.Fatalf("GetFloat64(%d) after reuse: len = %d", length, len(s2))
	}
	PutFloat64(s2)
}

func TestPutFloat64_SmallSlice(t *testing.T) {
	// Putting a slice with cap < Size256B should be a no-op (not panic).
	small := make([]float64, 10)
	PutFloat64(small)
	PutFloat64(nil)
}

func TestConcurrency(t *testing.T) {
	const goroutines = 32
	const iterations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				// Vary lengths across all bucket classes.
				for _, length := range []int{128, 512, 2048, 8192, 32768, 131072, 524288} {
					b := GetFloat64(length)
					if len(b) != length {
						t.Errorf("concurrent GetFloat64(%d): len = %d", length, len(b))
						return
					}
					// Write to the buffer to detect data races.
					for j := range b {
						b[j] = float64(j)
					}
					PutFloat64(b)
				}
			}
		}()
	}

	wg.Wait()
}

func TestBucketIndex(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		wantBucket int
	}{
		{"1->bucket0", 1, 0},
		{"256->bucket0", 256, 0},
		{"257->bucket1", 257, 1},
		{"1024->bucket1", 1024, 1},
		{"1025->bucket2", 1025, 2},
		{"4096->bucket2", 4096, 2},
		{"4097->bucket3", 4097, 3},
		{"16384->bucket3", 16384, 3},
		{"16385->bucket4", 16385, 4},
		{"65536->bucket4", 65536, 4},
		{"65537->bucket5", 65537, 5},
		{"262144->bucket5", 262144, 5},
		{"262145->bucket6", 262145, 6},
		{"1048576->bucket6", 1048576, 6},
		{"2097152->bucket6", 2097152, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := bucketIndex(tt.size)
			if idx != tt.wantBucket {
				t.Errorf("bucketIndex(%d) = %d, want %d", tt.size, idx, tt.wantBucket)
			}
		})
	}
}

func BenchmarkGetFloat64(b *testing.B) {
	benchmarks := []struct {
		name   string
		length int
	}{
		{"256", 256},
		{"4K", 4096},
		{"64K", 65536},
		{"1M", 1048576},
	}
	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				buf := GetFloat64(bm.length)
				PutFloat64(buf)
			}
		})
	}
}

func BenchmarkGetFloat64Parallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := GetFloat64(4096)
			PutFloat64(buf)
		}
	})
}
