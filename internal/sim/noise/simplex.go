// Package noise implements seeded 2D simplex noise and fractal (fBm) composition.
//
// Field is immutable after construction and safe to share. Memoization lives in
// a separate Cache value owned by the caller, so Field.Sample stays a pure function
// of its inputs.
package noise

import (
	"math"
	"math/rand"
)

var (
	skewF2   = 0.5 * (math.Sqrt(3) - 1)
	unskewG2 = (3 - math.Sqrt(3)) / 6
)

var grad3 = [12][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {1, 0}, {-1, 0},
	{0, 1}, {0, -1}, {0, 1}, {0, -1},
}

// Field holds the permutation table of one noise instance.
type Field struct {
	seed      int64
	perm      [512]uint8
	permMod12 [512]uint8
}

// NewField builds a permutation table from seed. Two fields with the same seed
// produce identical values.
func NewField(seed int64) *Field {
	f := &Field{seed: seed}
	rng := rand.New(rand.NewSource(seed))
	p := rng.Perm(256)
	for i := 0; i < 512; i++ {
		v := uint8(p[i&255])
		f.perm[i] = v
		f.permMod12[i] = v % 12
	}
	return f
}

func (f *Field) Seed() int64 { return f.seed }

// Sample returns the simplex noise value at (x, y), roughly within [-1, 1].
func (f *Field) Sample(x, y float64) float64 {
	s := (x + y) * skewF2
	i := int(math.Floor(x + s))
	j := int(math.Floor(y + s))

	t := float64(i+j) * unskewG2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	// Lower or upper triangle of the skewed cell.
	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	x1 := x0 - float64(i1) + unskewG2
	y1 := y0 - float64(j1) + unskewG2
	x2 := x0 - 1 + 2*unskewG2
	y2 := y0 - 1 + 2*unskewG2

	ii := i & 255
	jj := j & 255
	gi0 := f.permMod12[ii+int(f.perm[jj])]
	gi1 := f.permMod12[ii+i1+int(f.perm[jj+j1])]
	gi2 := f.permMod12[ii+1+int(f.perm[jj+1])]

	return 70 * (corner(gi0, x0, y0) + corner(gi1, x1, y1) + corner(gi2, x2, y2))
}

func corner(gi uint8, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	t *= t
	g := grad3[gi]
	return t * t * (g[0]*x + g[1]*y)
}

// Fractal sums octaves of Sample, each octave scaling frequency by lacunarity and
// amplitude by persistence, normalized by the total amplitude.
func (f *Field) Fractal(x, y float64, octaves int, persistence, lacunarity float64) float64 {
	if octaves <= 0 {
		return 0
	}
	var (
		total     float64
		amplitude = 1.0
		frequency = 1.0
		maxValue  float64
	)
	for o := 0; o < octaves; o++ {
		total += amplitude * f.Sample(x*frequency, y*frequency)
		maxValue += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}
	if maxValue == 0 {
		return 0
	}
	return total / maxValue
}

// SampleCached is Sample memoized through c. A nil cache disables memoization.
func (f *Field) SampleCached(c *Cache, x, y float64) float64 {
	if c == nil {
		return f.Sample(x, y)
	}
	k := sampleKey(x, y)
	if v, ok := c.get(k); ok {
		return v
	}
	v := f.Sample(x, y)
	c.put(k, v)
	return v
}

// FractalCached is Fractal memoized through c. A nil cache disables memoization.
func (f *Field) FractalCached(c *Cache, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	if c == nil {
		return f.Fractal(x, y, octaves, persistence, lacunarity)
	}
	k := fractalKey(x, y, octaves, persistence, lacunarity)
	if v, ok := c.get(k); ok {
		return v
	}
	v := f.Fractal(x, y, octaves, persistence, lacunarity)
	c.put(k, v)
	return v
}
