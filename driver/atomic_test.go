package driver

import (
	"runtime"
	"testing"
)

func TestLoadStoreUint64(t *testing.T) {
	tests := []struct {
		name  string
		off   uint64
		value uint64
	}{
		{"zero at base", 0, 0},
		{"value at base", 0, 0x1122334455667788},
		{"all bits set", 8, ^uint64(0)},
		{"last word", 24, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := make([]byte, 32)
			StoreUint64(b, tt.off, tt.value)
			if got := LoadUint64(b, tt.off); got != tt.value {
				t.Errorf("LoadUint64 = %#x, want %#x", got, tt.value)
			}
		})
	}
}

func TestStoreUint64DoesNotTouchNeighbors(t *testing.T) {
	b := make([]byte, 24)
	for i := range b {
		b[i] = 0xAA
	}
	StoreUint64(b, 8, 0)

	for i, v := range b {
		want := byte(0xAA)
		if i >= 8 && i < 16 {
			want = 0
		}
		if v != want {
			t.Fatalf("byte %d = %#x, want %#x", i, v, want)
		}
	}
}

func TestLoadUint64ObservesConcurrentStore(t *testing.T) {
	const want = uint64(0xDEADBEEF)
	b := make([]byte, 8)
	StoreUint64(b, 0, ^uint64(0))

	done := make(chan struct{})
	go func() {
		StoreUint64(b, 0, want)
		close(done)
	}()
	<-done

	for LoadUint64(b, 0) != want {
		runtime.Gosched()
	}
}
