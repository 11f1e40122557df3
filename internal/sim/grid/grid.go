// Package grid holds chunk coordinate math shared by the terrain and star grids.
package grid

import (
	"sort"

	"driftscape.app/internal/sim/mathx"
)

// ChunkKey identifies a chunk within one grid. Terrain and star grids use
// different chunk sizes, so keys from different grids are not comparable.
type ChunkKey struct {
	CX int `json:"cx"`
	CZ int `json:"cz"`
}

// Offset is a chunk delta relative to a center chunk.
type Offset struct {
	DX int
	DZ int
}

func (k ChunkKey) Add(o Offset) ChunkKey {
	return ChunkKey{CX: k.CX + o.DX, CZ: k.CZ + o.DZ}
}

// WorldToChunk returns the chunk containing world position (x, z). Chunk (cx, cz)
// covers [cx*size, (cx+1)*size) on both axes.
func WorldToChunk(x, z, chunkSize float64) ChunkKey {
	return ChunkKey{CX: mathx.FloorCell(x, chunkSize), CZ: mathx.FloorCell(z, chunkSize)}
}

// Chebyshev is the square-ring index of an offset.
func (o Offset) Chebyshev() int {
	return max(mathx.AbsInt(o.DX), mathx.AbsInt(o.DZ))
}

// SpiralOffsets enumerates every offset of the (2r+1)x(2r+1) square around the
// origin, ring by ring. Each ring walks the top edge left to right, the right
// edge downward, the bottom edge right to left and the left edge upward. Top is
// -Z, the direction of travel.
func SpiralOffsets(renderDistance int) []Offset {
	if renderDistance < 0 {
		renderDistance = 0
	}
	side := 2*renderDistance + 1
	out := make([]Offset, 0, side*side)
	out = append(out, Offset{})
	for r := 1; r <= renderDistance; r++ {
		for dx := -r; dx <= r; dx++ {
			out = append(out, Offset{DX: dx, DZ: -r})
		}
		for dz := -r + 1; dz <= r; dz++ {
			out = append(out, Offset{DX: r, DZ: dz})
		}
		for dx := r - 1; dx >= -r; dx-- {
			out = append(out, Offset{DX: dx, DZ: r})
		}
		for dz := r - 1; dz > -r; dz-- {
			out = append(out, Offset{DX: -r, DZ: dz})
		}
	}
	return out
}

// InRange reports whether o lies inside the circular footprint of radius r.
func InRange(o Offset, renderDistance int) bool {
	return o.DX*o.DX+o.DZ*o.DZ <= renderDistance*renderDistance
}

// KeySet is a set of chunk keys.
type KeySet map[ChunkKey]struct{}

func (s KeySet) Has(k ChunkKey) bool {
	_, ok := s[k]
	return ok
}

// RequiredSet is every chunk within renderDistance of center, using squared
// distance so the footprint is a disc rather than a square.
func RequiredSet(center ChunkKey, renderDistance int) KeySet {
	out := KeySet{}
	for dz := -renderDistance; dz <= renderDistance; dz++ {
		for dx := -renderDistance; dx <= renderDistance; dx++ {
			o := Offset{DX: dx, DZ: dz}
			if InRange(o, renderDistance) {
				out[center.Add(o)] = struct{}{}
			}
		}
	}
	return out
}

// RequiredInSpiralOrder lists the required set around center nearest-first.
func RequiredInSpiralOrder(center ChunkKey, renderDistance int) []ChunkKey {
	offs := SpiralOffsets(renderDistance)
	out := make([]ChunkKey, 0, len(offs))
	for _, o := range offs {
		if InRange(o, renderDistance) {
			out = append(out, center.Add(o))
		}
	}
	return out
}

// SortKeys orders keys by CX then CZ.
func SortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
}
