// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// BodyHandle, ShapeHandle, MaterialHandle, and ConstraintHandle name
// entries in the World's four arenas (handle.go). They are distinct types
// only by convention; all four are generation-indexed Handles.
type (
	BodyHandle       = Handle
	ShapeHandle      = Handle
	MaterialHandle   = Handle
	ConstraintHandle = Handle
)

// bodyFlags packs the per-body boolean state named in the data model:
// static/kinematic/disabled/asleep plus per-axis angular locks.
type bodyFlags uint8

const (
	flagStatic bodyFlags = 1 << iota
	flagKinematic
	flagDisabled
	flagAsleep
	flagLockAngX
	flagLockAngY
	flagLockAngZ
)

func (f bodyFlags) has(bit bodyFlags) bool { return f&bit != 0 }

// Body is one rigid body in the world. Static bodies have InvMass == 0 and
// are never integrated; Body never holds a pointer to another Body or to
// the World — all cross-references are Handles resolved through the
// owning World's arenas, per the "arena + generation counter" design note.
type Body struct {
	Pose lin.T
	LinVel, AngVel lin.V3

	InvMass         float64
	InvInertiaModel lin.V3 // diagonal, model space
	InvInertiaWorld lin.M3 // R * diag(InvInertiaModel) * R^T, refreshed after each rotation

	flags bodyFlags

	Collider Collider
	HasCollider bool

	// constraints is the set of constraint handles touching this body,
	// used by World.RemoveBody to cascade removal and by the island
	// graph's static-node edge scan.
	constraints map[ConstraintHandle]bool

	// hasRigid mirrors add_body's has_rigid flag: a body created without
	// it never gains mass from SetColliderShape, staying static (an
	// environment prop you never want the solver to move). canCollide
	// mirrors has_collider: a body created without it refuses every
	// later SetColliderShape call, permanently invisible to the
	// broadphase and narrowphase (a pure kinematic animation root with
	// no collision footprint of its own).
	hasRigid   bool
	canCollide bool
}

// newBody returns a Body at the identity pose with zero velocity, marked
// static (infinite mass) until a mass is assigned.
func newBody(hasRigid, hasCollider bool) Body {
	b := Body{
		Pose:            lin.T{Loc: lin.NewV3(), Rot: lin.NewQI()},
		InvInertiaWorld: *lin.NewM3I().Scale(0),
		flags:           flagStatic,
		constraints:     make(map[ConstraintHandle]bool),
		hasRigid:        hasRigid,
		canCollide:      hasCollider,
	}
	return b
}

func (b *Body) IsStatic() bool   { return b.flags.has(flagStatic) }
func (b *Body) IsAsleep() bool   { return b.flags.has(flagAsleep) }
func (b *Body) IsDisabled() bool { return b.flags.has(flagDisabled) }

func (b *Body) setAsleep(asleep bool) {
	if asleep {
		b.flags |= flagAsleep
		b.LinVel.SetS(0, 0, 0)
		b.AngVel.SetS(0, 0, 0)
	} else {
		b.flags &^= flagAsleep
	}
}

// SetMass assigns an inverse mass and the model-space diagonal inverse
// inertia, clearing the static flag (mass 0 re-sets it, matching "static
// bodies have m⁻¹ = 0").
func (b *Body) SetMass(mass float64, modelInertia lin.V3) {
	if mass <= 0 {
		b.InvMass = 0
		b.InvInertiaModel = lin.V3{}
		b.flags |= flagStatic
		return
	}
	b.InvMass = 1.0 / mass
	b.InvInertiaModel = lin.V3{
		X: safeDivide(1, modelInertia.X),
		Y: safeDivide(1, modelInertia.Y),
		Z: safeDivide(1, modelInertia.Z),
	}
	b.flags &^= flagStatic
	b.refreshWorldInertia()
}

// refreshWorldInertia recomputes InvInertiaWorld = R * diag(InvInertiaModel) * R^T
// from the body's current orientation. Called after every orientation change.
func (b *Body) refreshWorldInertia() {
	if b.IsStatic() {
		return
	}
	var rot lin.M3
	rot.SetQ(b.Pose.Rot)
	var diag lin.M3
	diag.SetS(
		b.InvInertiaModel.X, 0, 0,
		0, b.InvInertiaModel.Y, 0,
		0, 0, b.InvInertiaModel.Z,
	)
	var tmp lin.M3
	tmp.Mult(&rot, &diag)
	var rotT lin.M3
	rotT.Transpose(&rot)
	b.InvInertiaWorld.Mult(&tmp, &rotT)

	if b.flags&(flagLockAngX|flagLockAngY|flagLockAngZ) != 0 {
		if b.flags.has(flagLockAngX) {
			b.InvInertiaWorld.Xx, b.InvInertiaWorld.Xy, b.InvInertiaWorld.Xz = 0, 0, 0
		}
		if b.flags.has(flagLockAngY) {
			b.InvInertiaWorld.Yx, b.InvInertiaWorld.Yy, b.InvInertiaWorld.Yz = 0, 0, 0
		}
		if b.flags.has(flagLockAngZ) {
			b.InvInertiaWorld.Zx, b.InvInertiaWorld.Zy, b.InvInertiaWorld.Zz = 0, 0, 0
		}
	}
}

// Collider pairs a Shape with a Material for one Body, plus the cached
// AABBs and broadphase registration spec §3's Collider row names.
type Collider struct {
	ShapeHandle    ShapeHandle
	MaterialHandle MaterialHandle
	mat            Material // local copy; see the §9 material-deletion ordering note in material.go

	ModelAABB lin.AABB
	WorldAABB lin.AABB

	bp      BPHandle
	Enabled bool
}
