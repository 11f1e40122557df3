package render

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Recorder is a headless Backend that tracks every live resource. It is used by
// the server binary when no GPU is attached and by tests to assert that nothing
// leaks.
type Recorder struct {
	next Handle

	live      map[Handle]Kind
	scene     map[Handle]bool
	visible   map[Handle]bool
	materials map[Handle]MaterialSpec
	textures  map[Handle]string

	Options       RendererOptions
	ViewportW     int
	ViewportH     int
	ViewportRatio float64
	ViewportSets  int

	CameraPos    mgl64.Vec3
	CameraLookAt mgl64.Vec3
	Frames       uint64

	Allocated map[Kind]int
	Released  map[Kind]int
}

func NewRecorder() *Recorder {
	return &Recorder{
		live:      map[Handle]Kind{},
		scene:     map[Handle]bool{},
		visible:   map[Handle]bool{},
		materials: map[Handle]MaterialSpec{},
		textures:  map[Handle]string{},
		Allocated: map[Kind]int{},
		Released:  map[Kind]int{},
	}
}

func (r *Recorder) alloc(k Kind) Handle {
	r.next++
	r.live[r.next] = k
	r.Allocated[k]++
	return r.next
}

func (r *Recorder) free(k Kind, h Handle) error {
	if got, ok := r.live[h]; !ok || got != k {
		return &DisposalError{Kind: k, Handle: h}
	}
	delete(r.live, h)
	delete(r.materials, h)
	delete(r.textures, h)
	r.Released[k]++
	return nil
}

func (r *Recorder) NewGeometry(GeometryData) Handle { return r.alloc(KindGeometry) }

func (r *Recorder) NewMaterial(spec MaterialSpec) Handle {
	h := r.alloc(KindMaterial)
	r.materials[h] = spec
	return h
}

func (r *Recorder) UpdateMaterial(h Handle, spec MaterialSpec) {
	if r.live[h] == KindMaterial {
		r.materials[h] = spec
	}
}

func (r *Recorder) NewTexture(variant string) Handle {
	h := r.alloc(KindTexture)
	r.textures[h] = variant
	return h
}

func (r *Recorder) NewMesh(geometry, material Handle) Handle {
	h := r.alloc(KindMesh)
	r.visible[h] = true
	return h
}

func (r *Recorder) NewPoints(positions []float32, material Handle) Handle {
	h := r.alloc(KindPoints)
	r.visible[h] = true
	return h
}

func (r *Recorder) SetVisible(h Handle, v bool) { r.visible[h] = v }

func (r *Recorder) AddPrimitive(h Handle) { r.scene[h] = true }

// RemovePrimitive also forgets the primitive itself; meshes and point sets are
// thin wrappers whose geometry and material are disposed separately.
func (r *Recorder) RemovePrimitive(h Handle) {
	delete(r.scene, h)
	delete(r.visible, h)
	if k, ok := r.live[h]; ok && (k == KindMesh || k == KindPoints) {
		delete(r.live, h)
		r.Released[k]++
	}
}

func (r *Recorder) DisposeGeometry(h Handle) error { return r.free(KindGeometry, h) }
func (r *Recorder) DisposeMaterial(h Handle) error { return r.free(KindMaterial, h) }
func (r *Recorder) DisposeTexture(h Handle) error  { return r.free(KindTexture, h) }

func (r *Recorder) Configure(opts RendererOptions) { r.Options = opts }

func (r *Recorder) SetViewport(w, h int, ratio float64) {
	r.ViewportW, r.ViewportH, r.ViewportRatio = w, h, ratio
	r.ViewportSets++
}

func (r *Recorder) SetCameraTransform(pos, lookAt mgl64.Vec3) {
	r.CameraPos = pos
	r.CameraLookAt = lookAt
}

func (r *Recorder) RenderFrame() { r.Frames++ }

// Live counts live resources of kind k.
func (r *Recorder) Live(k Kind) int {
	n := 0
	for _, kk := range r.live {
		if kk == k {
			n++
		}
	}
	return n
}

// InScene counts primitives currently added to the scene.
func (r *Recorder) InScene() int { return len(r.scene) }

func (r *Recorder) Visible(h Handle) bool { return r.visible[h] }

func (r *Recorder) Material(h Handle) (MaterialSpec, bool) {
	m, ok := r.materials[h]
	return m, ok
}

// TextureVariants lists the variants of live textures, sorted.
func (r *Recorder) TextureVariants() []string {
	out := make([]string, 0, len(r.textures))
	for _, v := range r.textures {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
