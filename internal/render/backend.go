// Package render defines the contract between the streaming engine and an opaque
// rendering backend. The engine only allocates, updates and frees handles; it
// never rasterizes.
package render

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

type Handle uint64

type Kind string

const (
	KindGeometry Kind = "geometry"
	KindMaterial Kind = "material"
	KindTexture  Kind = "texture"
	KindMesh     Kind = "mesh"
	KindPoints   Kind = "points"
)

// GeometryData is an indexed-free vertex grid: Positions holds xyz triples.
type GeometryData struct {
	Positions []float32
	Origin    mgl64.Vec3
}

type MaterialSpec struct {
	Color       string
	Wireframe   bool
	Opacity     float64
	Transparent bool
	Size        float64
	Texture     Handle
	Fog         bool
}

type RendererOptions struct {
	Antialias  bool
	PixelRatio float64
	FogNear    float64
	FogFar     float64
	FogColor   string
}

// Backend is implemented by whatever draws the scene. All calls arrive on the
// engine loop goroutine.
type Backend interface {
	NewGeometry(GeometryData) Handle
	NewMaterial(MaterialSpec) Handle
	UpdateMaterial(Handle, MaterialSpec)
	NewTexture(variant string) Handle
	NewMesh(geometry, material Handle) Handle
	NewPoints(positions []float32, material Handle) Handle
	SetVisible(Handle, bool)

	AddPrimitive(Handle)
	RemovePrimitive(Handle)

	DisposeGeometry(Handle) error
	DisposeMaterial(Handle) error
	DisposeTexture(Handle) error

	Configure(RendererOptions)
	SetViewport(width, height int, pixelRatio float64)
	SetCameraTransform(position, lookAt mgl64.Vec3)
	RenderFrame()
}

// DisposalError reports a free of a handle the backend does not own, either
// because it was never allocated or because it was already released.
type DisposalError struct {
	Kind   Kind
	Handle Handle
}

func (e *DisposalError) Error() string {
	return fmt.Sprintf("dispose %s %d: unknown or already released handle", e.Kind, e.Handle)
}
