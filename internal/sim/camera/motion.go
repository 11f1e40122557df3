// Package camera drives the forward-moving camera that all streaming follows.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"driftscape.app/internal/sim/config"
	"driftscape.app/internal/sim/mathx"
)

type Params struct {
	VelocityLerp float64
	PositionLerp float64
	LookY        float64
}

func DefaultParams() Params {
	return Params{VelocityLerp: 0.02, PositionLerp: 0.05}
}

// State is the smoothed camera. Velocity eases toward the configured move speed,
// the target integrates velocity and the position eases toward the target.
// Vertical velocity accumulates as drift above the live cameraHeight.
type State struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Velocity mgl64.Vec3
	LookAt   mgl64.Vec3

	driftY float64
	params Params
}

func New(p Params, cfg config.TerrainConfig) *State {
	s := &State{params: p}
	s.Position = mgl64.Vec3{0, cfg.CameraHeight, cfg.CameraDistance}
	s.Target = s.Position
	s.LookAt = s.lookAt(cfg)
	return s
}

func lerpVec(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return mgl64.Vec3{mathx.Lerp(a[0], b[0], t), mathx.Lerp(a[1], b[1], t), mathx.Lerp(a[2], b[2], t)}
}

func (s *State) lookAt(cfg config.TerrainConfig) mgl64.Vec3 {
	return mgl64.Vec3{s.Position.X(), s.params.LookY, s.Position.Z() - cfg.CameraDistance}
}

// Advance moves the camera by one tick.
func (s *State) Advance(cfg config.TerrainConfig) {
	s.Velocity = lerpVec(s.Velocity, cfg.MoveSpeed.Mgl(), s.params.VelocityLerp)
	s.Target = s.Target.Add(s.Velocity)
	s.driftY += s.Velocity.Y()
	s.Target[1] = cfg.CameraHeight + s.driftY
	s.Position = lerpVec(s.Position, s.Target, s.params.PositionLerp)
	s.LookAt = s.lookAt(cfg)
}

// Reseed resets the target and velocity from cfg, keeping the current ground position.
func (s *State) Reseed(cfg config.TerrainConfig) {
	s.Target = mgl64.Vec3{s.Position.X(), cfg.CameraHeight, s.Position.Z()}
	s.Velocity = mgl64.Vec3{}
	s.driftY = 0
	s.LookAt = s.lookAt(cfg)
}

// CrossedThreshold reports whether the camera moved more than threshold along X
// or Z since last.
func (s *State) CrossedThreshold(last mgl64.Vec3, threshold float64) bool {
	return math.Abs(s.Position.X()-last.X()) > threshold ||
		math.Abs(s.Position.Z()-last.Z()) > threshold
}
