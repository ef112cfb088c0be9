// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"math"

	"github.com/gazed/rigid/math/lin"
)

// restitutionVelocityThreshold is the minimum closing speed along the
// normal before restitution kicks in at all; below it, resting contact
// would otherwise jitter from restitution re-energizing every substep.
const restitutionVelocityThreshold = 0.5

// contactPointSolve is the per-point data Prepare derives from the
// bodies' current positions and velocities, used (and discarded) within a
// single substep's WarmStart/Solve calls.
type contactPointSolve struct {
	rA, rB      lin.V3
	tangent1    lin.V3
	tangent2    lin.V3
	normalMass  float64
	tangentMass [2]float64
	bias        float64
}

// ContactConstraint is the solver-facing wrapper around a persistent
// Manifold: it adds the per-substep Jacobian/mass caching and the
// combined material properties a raw Manifold has no opinion about.
type ContactConstraint struct {
	Manifold    *Manifold
	Friction    float64
	Restitution float64

	solve [4]contactPointSolve

	// inactiveTime accumulates substep dt while Manifold.Num == 0; the
	// solver tears the constraint down once it exceeds cfg.TimeToRemove.
	inactiveTime float64
}

// NewContactConstraint wraps m for solving, with friction/restitution
// already combined from the two colliders' materials.
func NewContactConstraint(m *Manifold, friction, restitution float64) *ContactConstraint {
	return &ContactConstraint{Manifold: m, Friction: friction, Restitution: restitution}
}

func (c *ContactConstraint) Kind() ConstraintKind { return ContactConstraintKind }

func (c *ContactConstraint) Bodies() (BodyHandle, BodyHandle) {
	return c.Manifold.BodyA, c.Manifold.BodyB
}

func pointVelocity(linVel, ang, r lin.V3) lin.V3 {
	cross := lin.NewV3().Cross(&ang, &r)
	return lin.V3{X: linVel.X + cross.X, Y: linVel.Y + cross.Y, Z: linVel.Z + cross.Z}
}

func angularEffectiveMass(invInertia *lin.M3, r, axis lin.V3) float64 {
	rxn := lin.NewV3().Cross(&r, &axis)
	angular := lin.NewV3().MultMv(invInertia, rxn)
	return rxn.Dot(angular)
}

func (c *ContactConstraint) Prepare(a, b *Body, dt float64, cfg *WorldConfig) {
	m := c.Manifold
	for i := 0; i < m.Num; i++ {
		p := &m.Points[i]
		s := &c.solve[i]

		wa := p.LocalA
		a.Pose.App(&wa)
		wb := p.LocalB
		b.Pose.App(&wb)
		s.rA = *lin.NewV3().Sub(&wa, a.Pose.Loc)
		s.rB = *lin.NewV3().Sub(&wb, b.Pose.Loc)

		k := a.InvMass + b.InvMass +
			angularEffectiveMass(&a.InvInertiaWorld, s.rA, p.Normal) +
			angularEffectiveMass(&b.InvInertiaWorld, s.rB, p.Normal)
		s.normalMass = safeDivide(1, k)

		s.tangent1, s.tangent2 = p.TangentBasis()
		for axis, t := range [2]lin.V3{s.tangent1, s.tangent2} {
			kt := a.InvMass + b.InvMass +
				angularEffectiveMass(&a.InvInertiaWorld, s.rA, t) +
				angularEffectiveMass(&b.InvInertiaWorld, s.rB, t)
			s.tangentMass[axis] = safeDivide(1, kt)
		}

		// vn is the rate the gap is growing along Normal (B into A): A's
		// point velocity minus B's, projected on Normal. Negative means
		// approaching.
		vA := pointVelocity(a.LinVel, a.AngVel, s.rA)
		vB := pointVelocity(b.LinVel, b.AngVel, s.rB)
		rel := lin.NewV3().Sub(&vA, &vB)
		vn := rel.Dot(&p.Normal)

		posBias := cfg.BaumgarteFactor / dt * math.Max(p.Depth-cfg.PositionSlop, 0)
		var restBias float64
		if vn < -restitutionVelocityThreshold {
			restBias = -c.Restitution * vn
		}
		s.bias = math.Max(posBias, restBias)
		if s.bias > cfg.MaxCorrection/dt {
			s.bias = cfg.MaxCorrection / dt
		}
	}
}

func (c *ContactConstraint) WarmStart(a, b *Body) {
	m := c.Manifold
	for i := 0; i < m.Num; i++ {
		p := &m.Points[i]
		s := &c.solve[i]

		impulse := lin.V3{
			X: p.Normal.X*p.NormalImpulse + s.tangent1.X*p.TangentImpulse[0] + s.tangent2.X*p.TangentImpulse[1],
			Y: p.Normal.Y*p.NormalImpulse + s.tangent1.Y*p.TangentImpulse[0] + s.tangent2.Y*p.TangentImpulse[1],
			Z: p.Normal.Z*p.NormalImpulse + s.tangent1.Z*p.TangentImpulse[0] + s.tangent2.Z*p.TangentImpulse[1],
		}
		// Normal points from B into A, so the accumulated push is +impulse
		// on A and -impulse on B: applyImpulse's first argument is the one
		// that receives +impulse.
		applyImpulse(a, b, s.rA, s.rB, impulse)
	}
}

// applyImpulse applies impulse P (acting on A, the reaction on B) to both
// bodies' linear and angular velocities.
func applyImpulse(a, b *Body, rA, rB lin.V3, impulse lin.V3) {
	a.LinVel.X += impulse.X * a.InvMass
	a.LinVel.Y += impulse.Y * a.InvMass
	a.LinVel.Z += impulse.Z * a.InvMass
	b.LinVel.X -= impulse.X * b.InvMass
	b.LinVel.Y -= impulse.Y * b.InvMass
	b.LinVel.Z -= impulse.Z * b.InvMass

	angA := lin.NewV3().Cross(&rA, &impulse)
	deltaAngA := lin.NewV3().MultMv(&a.InvInertiaWorld, angA)
	a.AngVel.X += deltaAngA.X
	a.AngVel.Y += deltaAngA.Y
	a.AngVel.Z += deltaAngA.Z

	angB := lin.NewV3().Cross(&rB, &impulse)
	deltaAngB := lin.NewV3().MultMv(&b.InvInertiaWorld, angB)
	b.AngVel.X -= deltaAngB.X
	b.AngVel.Y -= deltaAngB.Y
	b.AngVel.Z -= deltaAngB.Z
}

func (c *ContactConstraint) Solve(a, b *Body, cfg *WorldConfig) float64 {
	m := c.Manifold
	maxDelta := 0.0

	for i := 0; i < m.Num; i++ {
		p := &m.Points[i]
		s := &c.solve[i]

		vA := pointVelocity(a.LinVel, a.AngVel, s.rA)
		vB := pointVelocity(b.LinVel, b.AngVel, s.rB)
		rel := lin.NewV3().Sub(&vA, &vB)
		vn := rel.Dot(&p.Normal)

		lambda := (s.bias - vn) * s.normalMass
		newImpulse := math.Max(p.NormalImpulse+lambda, 0)
		delta := newImpulse - p.NormalImpulse
		p.NormalImpulse = newImpulse

		impulse := lin.NewV3().Scale(&p.Normal, delta)
		applyImpulse(a, b, s.rA, s.rB, *impulse)
		if math.Abs(delta) > maxDelta {
			maxDelta = math.Abs(delta)
		}

		tangents := [2]lin.V3{s.tangent1, s.tangent2}
		for axis := range tangents {
			t := tangents[axis]
			vA := pointVelocity(a.LinVel, a.AngVel, s.rA)
			vB := pointVelocity(b.LinVel, b.AngVel, s.rB)
			rel := lin.NewV3().Sub(&vA, &vB)
			vt := rel.Dot(&t)

			lambdaT := -vt * s.tangentMass[axis]
			maxFriction := c.Friction * p.NormalImpulse
			newT := lin.Clamp(p.TangentImpulse[axis]+lambdaT, -maxFriction, maxFriction)
			deltaT := newT - p.TangentImpulse[axis]
			p.TangentImpulse[axis] = newT

			impulseT := lin.NewV3().Scale(&t, deltaT)
			applyImpulse(a, b, s.rA, s.rB, *impulseT)
			if math.Abs(deltaT) > maxDelta {
				maxDelta = math.Abs(deltaT)
			}
		}
	}
	return maxDelta
}
