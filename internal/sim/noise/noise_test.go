package noise

import (
	"math"
	"testing"
)

func TestSampleDeterministicAndBounded(t *testing.T) {
	f := NewField(42)
	for i := -200; i < 200; i++ {
		x := float64(i) * 0.137
		y := float64(i) * -0.291
		a := f.Sample(x, y)
		b := f.Sample(x, y)
		if a != b {
			t.Fatalf("sample(%v,%v) not deterministic: %v vs %v", x, y, a, b)
		}
		if a < -1 || a > 1 || math.IsNaN(a) {
			t.Fatalf("sample(%v,%v)=%v out of range", x, y, a)
		}
	}
}

func TestSameSeedSameTable(t *testing.T) {
	a := NewField(7)
	b := NewField(7)
	c := NewField(8)
	diff := false
	for i := 0; i < 64; i++ {
		x, y := float64(i)*0.31+0.05, float64(i)*0.17+0.11
		if a.Sample(x, y) != b.Sample(x, y) {
			t.Fatalf("same seed produced different values at %v,%v", x, y)
		}
		if a.Sample(x, y) != c.Sample(x, y) {
			diff = true
		}
	}
	if !diff {
		t.Fatalf("different seeds produced identical values")
	}
}

func TestFractalOneOctaveEqualsSample(t *testing.T) {
	f := NewField(3)
	for i := 0; i < 50; i++ {
		x, y := float64(i)*0.77-10, float64(i)*0.41+3
		if got, want := f.Fractal(x, y, 1, 0.5, 2), f.Sample(x, y); got != want {
			t.Fatalf("fractal(1 octave)=%v want %v", got, want)
		}
		cache := NewCache(0)
		if got, want := f.FractalCached(cache, x, y, 1, 0.5, 2), f.Sample(x, y); got != want {
			t.Fatalf("cached fractal(1 octave)=%v want %v", got, want)
		}
	}
}

func TestFractalNormalized(t *testing.T) {
	f := NewField(11)
	for i := 0; i < 100; i++ {
		v := f.Fractal(float64(i)*0.05, float64(i)*0.09, 5, 0.5, 2)
		if v < -1 || v > 1 {
			t.Fatalf("fractal out of range: %v", v)
		}
	}
	if f.Fractal(1, 1, 0, 0.5, 2) != 0 {
		t.Fatalf("zero octaves should yield 0")
	}
}

func TestCacheMemoizesAndClearsWholesale(t *testing.T) {
	f := NewField(1)
	c := NewCache(4)
	v1 := f.SampleCached(c, 0.25, 0.5)
	v2 := f.SampleCached(c, 0.25, 0.5)
	if v1 != v2 || v1 != f.Sample(0.25, 0.5) {
		t.Fatalf("cached value mismatch")
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Entries != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	for i := 0; i < 4; i++ {
		_ = f.SampleCached(c, float64(i)+10, 0)
	}
	// 5th distinct insert overflowed the limit of 4 and cleared everything first.
	if c.Len() != 1 {
		t.Fatalf("expected wholesale clear, len=%d", c.Len())
	}
	if c.Stats().Clears != 1 {
		t.Fatalf("expected 1 clear, got %d", c.Stats().Clears)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("clear left %d entries", c.Len())
	}
}

func TestNilCacheIsPassthrough(t *testing.T) {
	f := NewField(9)
	if f.SampleCached(nil, 1.5, 2.5) != f.Sample(1.5, 2.5) {
		t.Fatalf("nil cache changed result")
	}
	var c *Cache
	if c.Len() != 0 {
		t.Fatalf("nil cache len")
	}
}
