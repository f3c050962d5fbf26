package stackalloc

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"testing"
	"unsafe"
)

type testStruct struct {
	a int64
	b int32
	c int16
	d int8
}

func TestNewArena(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected int
	}{
		{"default size", 0, DefaultArenaSize},
		{"negative size", -1, DefaultArenaSize},
		{"custom size", 4096, 4096},
		{"odd size", 13, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArena[int32](tt.size)
			if a.Capacity() != tt.expected {
				t.Errorf("NewArena(%d) capacity = %d, want %d", tt.size, a.Capacity(), tt.expected)
			}
			if a.SizeInUse() != 0 {
				t.Errorf("NewArena(%d) size in use = %d, want 0", tt.size, a.SizeInUse())
			}
		})
	}
}

func TestArenaAllocate(t *testing.T) {
	a := NewArena[int32](1024)

	b1, err := a.Allocate(20)
	if err != nil {
		t.Fatalf("Allocate(20) error = %v", err)
	}
	if len(b1) != 20 || cap(b1) != 20 {
		t.Errorf("Allocate(20) len/cap = %d/%d, want 20/20", len(b1), cap(b1))
	}
	if a.SizeInUse() != 80 {
		t.Errorf("SizeInUse after Allocate(20) = %d, want 80", a.SizeInUse())
	}

	// Zero and negative counts
	if b, _ := a.Allocate(0); b != nil {
		t.Errorf("Allocate(0) = %v, want nil", b)
	}
	if b, _ := a.Allocate(-1); b != nil {
		t.Errorf("Allocate(-1) = %v, want nil", b)
	}

	// Exhaustion is soft: nil block, nil error
	b2, err := a.Allocate(300)
	if err != nil {
		t.Errorf("Allocate(300) error = %v, want nil", err)
	}
	if b2 != nil {
		t.Errorf("Allocate(300) returned %d elements, want nil", len(b2))
	}
	if a.SizeInUse() != 80 {
		t.Errorf("SizeInUse after failed Allocate = %d, want 80", a.SizeInUse())
	}
}

func TestArenaExactFit(t *testing.T) {
	a := NewArena[int32](16)

	if b, _ := a.Allocate(4); len(b) != 4 {
		t.Fatalf("Allocate(4) len = %d, want 4", len(b))
	}
	if a.Available() != 0 {
		t.Errorf("Available = %d, want 0", a.Available())
	}
	if b, _ := a.Allocate(1); b != nil {
		t.Error("Allocate(1) on full arena should return nil")
	}
}

// Blocks must not overlap when sizeof(T) > 1.
func TestArenaCursorAdvancesByBytes(t *testing.T) {
	a := NewArena[int64](64)

	b1, _ := a.Allocate(2)
	b2, _ := a.Allocate(2)
	if a.SizeInUse() != 32 {
		t.Fatalf("SizeInUse = %d, want 32", a.SizeInUse())
	}
	if got := addr(b2) - addr(b1); got != 16 {
		t.Errorf("second block starts %d bytes after the first, want 16", got)
	}

	b1[0], b1[1] = 1, 2
	b2[0], b2[1] = 3, 4
	if b1[0] != 1 || b1[1] != 2 {
		t.Errorf("first block corrupted: %v", b1)
	}
}

func TestArenaDeallocateLIFO(t *testing.T) {
	a := NewArena[int32](1024)
	a.Allocate(3)
	before := a.SizeInUse()

	b, _ := a.Allocate(10)
	a.Deallocate(b, 10)
	if a.SizeInUse() != before {
		t.Errorf("SizeInUse after round trip = %d, want %d", a.SizeInUse(), before)
	}
}

func TestArenaDeallocateOutOfOrder(t *testing.T) {
	a := NewArena[int32](1024)

	b1, _ := a.Allocate(4)
	b2, _ := a.Allocate(4)
	for i := range b1 {
		b1[i] = int32(i + 1)
	}

	// b1 is not the most recent block: nothing is reclaimed.
	a.Deallocate(b1, 4)
	if a.SizeInUse() != 32 {
		t.Errorf("SizeInUse after out of order free = %d, want 32", a.SizeInUse())
	}

	// Later allocations must not land on b1.
	b3, _ := a.Allocate(4)
	for i := range b3 {
		b3[i] = -1
	}
	for i, v := range b1 {
		if v != int32(i+1) {
			t.Fatalf("b1[%d] = %d after later allocation, want %d", i, v, i+1)
		}
	}

	// Unwinding in order reclaims past the leaked block.
	a.Deallocate(b3, 4)
	a.Deallocate(b2, 4)
	if a.SizeInUse() != 16 {
		t.Errorf("SizeInUse after unwinding = %d, want 16", a.SizeInUse())
	}
	a.Deallocate(b1, 4)
	if a.SizeInUse() != 0 {
		t.Errorf("SizeInUse after unwinding everything = %d, want 0", a.SizeInUse())
	}
}

func TestArenaDeallocateWrongCount(t *testing.T) {
	a := NewArena[int32](1024)
	b, _ := a.Allocate(8)

	a.Deallocate(b, 4)
	if a.SizeInUse() != 32 {
		t.Errorf("SizeInUse after mismatched count = %d, want 32", a.SizeInUse())
	}
}

func TestArenaOwns(t *testing.T) {
	a := NewArena[int32](1024)
	b, _ := a.Allocate(20)

	if !a.Owns(b) {
		t.Error("Owns(block from arena) = false")
	}
	if !a.Owns(b[19:]) {
		t.Error("Owns(last element) = false")
	}
	if a.Owns(make([]int32, 20)) {
		t.Error("Owns(make) = true")
	}
	if a.Owns(nil) {
		t.Error("Owns(nil) = true")
	}

	// Range check only: released blocks are still reported.
	a.Deallocate(b, 20)
	if !a.Owns(b) {
		t.Error("Owns(released block) = false")
	}

	other := NewArena[int32](1024)
	ob, _ := other.Allocate(1)
	if a.Owns(ob) {
		t.Error("Owns(block from another arena) = true")
	}
}

func TestArenaMaxSize(t *testing.T) {
	tests := []struct {
		name     string
		maxSize  int
		expected int
	}{
		{"int32", NewArena[int32](1024).MaxSize(), 256},
		{"int64", NewArena[int64](1024).MaxSize(), 128},
		{"[3]byte", NewArena[[3]byte](1024).MaxSize(), 341},
		{"testStruct", NewArena[testStruct](1024).MaxSize(), 64},
		{"struct{}", NewArena[struct{}](1024).MaxSize(), math.MaxInt},
	}

	for _, tt := range tests {
		if tt.maxSize != tt.expected {
			t.Errorf("%s MaxSize = %d, want %d", tt.name, tt.maxSize, tt.expected)
		}
	}
}

func TestArenaAlignment(t *testing.T) {
	a := NewArena[testStruct](1024)
	align := unsafe.Alignof(testStruct{})

	for i := 1; i <= 5; i++ {
		b, _ := a.Allocate(i)
		if addr(b)%align != 0 {
			t.Errorf("Allocate(%d) address %x not aligned to %d", i, addr(b), align)
		}
	}
}

func TestArenaZeroSizeElements(t *testing.T) {
	a := NewArena[struct{}](16)

	b, err := a.Allocate(1000)
	if err != nil || len(b) != 1000 {
		t.Fatalf("Allocate(1000) = %d elements, %v", len(b), err)
	}
	if a.SizeInUse() != 0 {
		t.Errorf("SizeInUse = %d, want 0", a.SizeInUse())
	}
	a.Deallocate(b, 1000)
}

func TestRebindArena(t *testing.T) {
	a := NewArena[int32](512)
	a.Allocate(10)

	r := RebindArena[int64](a)
	if r.Capacity() != 512 {
		t.Errorf("rebound capacity = %d, want 512", r.Capacity())
	}
	if r.SizeInUse() != 0 {
		t.Errorf("rebound size in use = %d, want 0", r.SizeInUse())
	}
	if r.MaxSize() != 64 {
		t.Errorf("rebound MaxSize = %d, want 64", r.MaxSize())
	}
}

func TestLayoutBytes(t *testing.T) {
	tests := []struct {
		l        layout
		n        int
		expected int
		ok       bool
	}{
		{layout{size: 4, align: 4}, 20, 80, true},
		{layout{size: 3, align: 1}, 3, 9, true},
		{layout{size: 12, align: 4}, 1, 12, true},
		{layout{size: 0, align: 1}, 100, 0, true},
		{layout{size: 8, align: 8}, math.MaxInt/8 + 1, 0, false},
		{layout{size: 4, align: 4}, -1, 0, false},
	}

	for _, tt := range tests {
		got, ok := tt.l.bytes(tt.n)
		if got != tt.expected || ok != tt.ok {
			t.Errorf("%+v.bytes(%d) = %d, %v, want %d, %v", tt.l, tt.n, got, ok, tt.expected, tt.ok)
		}
	}
}

type pageRef struct {
	page *[1 << 16]byte
}

var churnSink []byte

// churn allocates enough to reuse any memory the collector freed.
func churn() {
	for i := 0; i < 256; i++ {
		churnSink = make([]byte, 1<<16)
	}
}

func TestArenaKeepsPointersAlive(t *testing.T) {
	a := NewArena[pageRef](1024)

	block, _ := a.Allocate(4)
	if block == nil {
		t.Fatal("Allocate(4) returned nil")
	}
	for i := range block {
		block[i].page = new([1 << 16]byte)
		block[i].page[0] = byte(i + 1)
	}

	runtime.GC()
	churn()
	runtime.GC()

	for i := range block {
		if got := block[i].page[0]; got != byte(i+1) {
			t.Errorf("element %d = %d after GC, want %d", i, got, i+1)
		}
	}
}

func TestArenaDeallocateClearsPointers(t *testing.T) {
	a := NewArena[*int](64)

	block, _ := a.Allocate(2)
	block[0], block[1] = new(int), new(int)
	a.Deallocate(block, 2)

	again, _ := a.Allocate(2)
	if again[0] != nil || again[1] != nil {
		t.Errorf("reused block = %v, want cleared", again)
	}
}

func TestHasPointers(t *testing.T) {
	tests := []struct {
		typ      reflect.Type
		expected bool
	}{
		{reflect.TypeFor[int32](), false},
		{reflect.TypeFor[testStruct](), false},
		{reflect.TypeFor[[4]float64](), false},
		{reflect.TypeFor[struct{}](), false},
		{reflect.TypeFor[[0]*int](), false},
		{reflect.TypeFor[*int](), true},
		{reflect.TypeFor[string](), true},
		{reflect.TypeFor[[]byte](), true},
		{reflect.TypeFor[map[int]int](), true},
		{reflect.TypeFor[any](), true},
		{reflect.TypeFor[func()](), true},
		{reflect.TypeFor[unsafe.Pointer](), true},
		{reflect.TypeFor[pageRef](), true},
		{reflect.TypeFor[[2]struct{ s string }](), true},
	}

	for _, tt := range tests {
		if got := hasPointers(tt.typ); got != tt.expected {
			t.Errorf("hasPointers(%v) = %v, want %v", tt.typ, got, tt.expected)
		}
	}
}

func BenchmarkArenaAllocate(b *testing.B) {
	counts := []int{1, 16, 64, 256}

	for _, n := range counts {
		b.Run(fmt.Sprintf("count-%d", n), func(b *testing.B) {
			a := NewArena[int64](1 << 20)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				block, _ := a.Allocate(n)
				a.Deallocate(block, n)
			}
		})
	}
}

func BenchmarkArenaVsBuiltin(b *testing.B) {
	b.Run("arena", func(b *testing.B) {
		a := NewArena[byte](1 << 20)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			block, _ := a.Allocate(64)
			a.Deallocate(block, 64)
		}
	})

	b.Run("builtin", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = make([]byte, 64)
		}
	})
}
