package config

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnknownParam is wrapped when a mutation names a parameter outside the table.
var ErrUnknownParam = errors.New("unknown parameter")

// ValidationError rejects a value. The configuration it was aimed at is unchanged.
type ValidationError struct {
	Domain Domain
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid %s config: %s", e.Domain, e.Reason)
	}
	return fmt.Sprintf("invalid %s.%s: %s", e.Domain, e.Name, e.Reason)
}

func invalid(d Domain, name, format string, args ...any) *ValidationError {
	return &ValidationError{Domain: d, Name: name, Reason: fmt.Sprintf(format, args...)}
}

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const (
	maxRenderDistance = 32
	maxSegments       = 256
	maxChunkSize      = 10000

	// Upper bound on heightfield samples resident across the full spiral square.
	maxResidentSamples = 16 << 20
)

func residentSamples(t TerrainConfig) int {
	side := t.Segments + 2*t.Overlap + 1
	span := 2*t.RenderDistance + 1
	return span * span * side * side
}

func (t TerrainConfig) Validate() error {
	d := DomainTerrain
	switch {
	case t.ChunkSize <= 0:
		return invalid(d, "chunkSize", "must be a positive integer")
	case t.ChunkSize > maxChunkSize:
		return invalid(d, "chunkSize", "must not exceed %d", maxChunkSize)
	case t.Segments <= 0:
		return invalid(d, "segments", "must be a positive integer")
	case t.Segments > maxSegments:
		return invalid(d, "segments", "must not exceed %d", maxSegments)
	case t.RenderDistance < 1 || t.RenderDistance > maxRenderDistance:
		return invalid(d, "renderDistance", "must be within 1..%d", maxRenderDistance)
	case t.Overlap < 0 || t.Overlap > t.Segments:
		return invalid(d, "overlap", "must be within 0..segments")
	case residentSamples(t) > maxResidentSamples:
		return invalid(d, "segments", "renderDistance %d with %d segments exceeds the %d sample budget", t.RenderDistance, t.Segments, maxResidentSamples)
	case t.UpdateThreshold <= 0:
		return invalid(d, "updateThreshold", "must be positive")
	case t.HeightScale < 0:
		return invalid(d, "heightScale", "must not be negative")
	case t.NoiseScale <= 0:
		return invalid(d, "noiseScale", "must be positive")
	case t.FogNear < 0:
		return invalid(d, "fogNear", "must not be negative")
	case t.FogFar <= t.FogNear:
		return invalid(d, "fogFar", "must be greater than fogNear")
	case t.CameraDistance < 0:
		return invalid(d, "cameraDistance", "must not be negative")
	case t.InitialChunks < 0:
		return invalid(d, "initialChunks", "must not be negative")
	case t.BatchSize < 1:
		return invalid(d, "batchSize", "must be at least 1")
	case t.WireframeOpacity < 0 || t.WireframeOpacity > 1:
		return invalid(d, "wireframeOpacity", "must be within 0..1")
	case t.PixelRatio <= 0 || t.PixelRatio > 4:
		return invalid(d, "pixelRatio", "must be within (0, 4]")
	case !colorRe.MatchString(t.TerrainColor):
		return invalid(d, "terrainColor", "must be a #rrggbb color")
	}
	return nil
}

func (s StarConfig) Validate() error {
	d := DomainStar
	switch {
	case s.ChunkSize <= 0:
		return invalid(d, "chunkSize", "must be a positive integer")
	case s.ChunkSize > maxChunkSize:
		return invalid(d, "chunkSize", "must not exceed %d", maxChunkSize)
	case s.RenderDistance < 1 || s.RenderDistance > maxRenderDistance:
		return invalid(d, "renderDistance", "must be within 1..%d", maxRenderDistance)
	case s.StarsPerChunk < 0 || s.StarsPerChunk > 10000:
		return invalid(d, "starsPerChunk", "must be within 0..10000")
	case s.BatchSize < 1:
		return invalid(d, "batchSize", "must be at least 1")
	case s.YRange.Min > s.YRange.Max:
		return invalid(d, "yRange", "min must not exceed max")
	case s.StarSize <= 0:
		return invalid(d, "starSize", "must be positive")
	case s.StarOpacity < 0 || s.StarOpacity > 1:
		return invalid(d, "starOpacity", "must be within 0..1")
	}
	return nil
}

func (p Preset) Validate() error {
	if p.Name == "" || p.Name == QualityCustom {
		return invalid(DomainQuality, "name", "preset name %q is reserved or empty", p.Name)
	}
	t := DefaultTerrain()
	p.applyTo(&t)
	if err := t.Validate(); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	return nil
}

func (c Config) Validate() error {
	if err := c.Terrain.Validate(); err != nil {
		return err
	}
	return c.Star.Validate()
}
