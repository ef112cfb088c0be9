// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"math"

	"github.com/gazed/rigid/math/lin"
)

// SphericalJoint is a ball-and-socket: three linear rows pin the two local
// anchors together, and two optional angular rows enforce a swing-twist
// cone built from a per-body reference frame (RefA/RefB), twist measured
// about each frame's local +X axis. MaxSwingX/MaxSwingY are half-angles of
// an elliptical cone around +X (one <= 0 takes the other's value; both
// <= 0 disable the swing limit);
// MinTwist/MaxTwist bound rotation about +X (a negative-width interval
// disables the twist limit). MaxAngularImpulse, if > 0, caps a Coulomb-like
// friction impulse applied on all three angular axes every iteration,
// independent of the swing/twist limits.
type SphericalJoint struct {
	BodyA, BodyB               BodyHandle
	LocalAnchorA, LocalAnchorB lin.V3
	RefA, RefB                 lin.Q // joint-frame orientation in each body's local space

	MaxSwingX, MaxSwingY float64
	MinTwist, MaxTwist   float64
	MaxAngularImpulse    float64

	rA, rB     lin.V3
	linMass    lin.M3
	linImpulse lin.V3
	biasVec    lin.V3

	swingActive  bool
	swingAxis    lin.V3
	swingMass    float64
	swingBias    float64
	swingImpulse float64

	twistActive  bool
	twistAxis    lin.V3
	twistSign    float64 // +1 clamps to MaxTwist, -1 clamps to MinTwist; 0 means within range this substep
	twistMass    float64
	twistBias    float64
	twistImpulse float64

	frictionMass     lin.M3
	frictionImpulse  lin.V3
}

// NewSphericalJoint returns a ball-and-socket joint with no limits (an
// unconstrained universal joint); set MaxSwingX/Y and Min/MaxTwist to add
// a cone, or MaxAngularImpulse to add angular friction.
func NewSphericalJoint(a, b BodyHandle, localA, localB lin.V3, refA, refB lin.Q) *SphericalJoint {
	return &SphericalJoint{
		BodyA: a, BodyB: b,
		LocalAnchorA: localA, LocalAnchorB: localB,
		RefA: refA, RefB: refB,
		MaxSwingX: -1, MaxSwingY: -1,
		MinTwist: 0, MaxTwist: -1,
	}
}

func (j *SphericalJoint) Kind() ConstraintKind             { return SphericalConstraint }
func (j *SphericalJoint) Bodies() (BodyHandle, BodyHandle) { return j.BodyA, j.BodyB }

// relativeJointFrame returns the rotation from A's joint frame to B's
// joint frame: frameA^-1 * frameB, where frameX = bodyX.Pose.Rot * RefX.
func (j *SphericalJoint) relativeJointFrame(a, b *Body) lin.Q {
	frameA := *lin.NewQ().Mult(a.Pose.Rot, &j.RefA)
	frameB := *lin.NewQ().Mult(b.Pose.Rot, &j.RefB)
	invA := *lin.NewQ().Inv(&frameA)
	return *lin.NewQ().Mult(&invA, &frameB)
}

// swingTwistDecompose splits q (a rotation expressed in the joint frame)
// into a twist about local +X and the remaining swing, returning the
// twist angle in radians and the swing's tilt direction/angle encoded as
// (swingY, swingZ) = halfSwingAngle * unit(axisY, axisZ), which is
// exactly the coordinate an elliptical swing cone test needs.
func swingTwistDecompose(q lin.Q) (twistAngle, swingY, swingZ float64) {
	denom := math.Sqrt(q.X*q.X + q.W*q.W)
	var twX, twW float64
	if denom < lin.Epsilon {
		twX, twW = 0, 1
	} else {
		twX, twW = q.X/denom, q.W/denom
	}
	twistAngle = 2 * math.Atan2(twX, twW)

	twist := lin.Q{X: twX, W: twW}
	twistInv := *lin.NewQ().Inv(&twist)
	swing := *lin.NewQ().Mult(&q, &twistInv)
	if swing.W < 0 {
		swing = lin.Q{X: -swing.X, Y: -swing.Y, Z: -swing.Z, W: -swing.W}
	}
	half := math.Atan2(math.Sqrt(swing.Y*swing.Y+swing.Z*swing.Z), swing.W)
	denomYZ := math.Sqrt(swing.Y*swing.Y + swing.Z*swing.Z)
	if denomYZ < lin.Epsilon {
		return twistAngle, 0, 0
	}
	scale := half / denomYZ
	return twistAngle, swing.Y * scale, swing.Z * scale
}

func (j *SphericalJoint) Prepare(a, b *Body, dt float64, cfg *WorldConfig) {
	worldA, rA := jointAnchorWorld(a, j.LocalAnchorA)
	worldB, rB := jointAnchorWorld(b, j.LocalAnchorB)
	j.rA, j.rB = rA, rB
	j.linMass = pointMass3(a, b, rA, rB)

	c := *lin.NewV3().Sub(&worldB, &worldA)
	bias := lin.V3{
		X: baumgarteBias(cfg, dt, c.X),
		Y: baumgarteBias(cfg, dt, c.Y),
		Z: baumgarteBias(cfg, dt, c.Z),
	}
	j.biasVec = bias

	j.prepareSwingTwist(a, b, dt, cfg)

	if j.MaxAngularImpulse > 0 {
		j.frictionMass = angularMass3(a, b)
	}
}

func (j *SphericalJoint) prepareSwingTwist(a, b *Body, dt float64, cfg *WorldConfig) {
	j.swingActive, j.twistActive = false, false
	if j.MaxSwingX <= 0 && j.MaxSwingY <= 0 && j.MaxTwist < j.MinTwist {
		return
	}
	rel := j.relativeJointFrame(a, b)
	twistAngle, swingY, swingZ := swingTwistDecompose(rel)

	if j.MaxSwingX > 0 || j.MaxSwingY > 0 {
		rx, ry := j.MaxSwingX, j.MaxSwingY
		if rx <= 0 {
			rx = ry
		}
		if ry <= 0 {
			ry = rx
		}
		// elliptical cone test: (swingY/rx)^2 + (swingZ/ry)^2 <= 1
		ellipse := (swingY*swingY)/(rx*rx) + (swingZ*swingZ)/(ry*ry)
		if ellipse > 1 {
			scale := math.Sqrt(ellipse)
			// normal of the ellipse at the swing point is the correction
			// direction (not the line to the center): gradient of
			// (y/rx)^2+(z/ry)^2.
			gy, gz := 2*swingY/(rx*rx), 2*swingZ/(ry*ry)
			glen := math.Sqrt(gy*gy + gz*gz)
			if glen > lin.Epsilon {
				gy, gz = gy/glen, gz/glen
			}
			worldAxis := mulM3V3(lin.NewM3().SetQ(a.Pose.Rot), lin.V3{Y: gy, Z: gz})
			if worldAxis.LenSqr() > lin.Epsilon {
				worldAxis.Unit()
			}
			j.swingAxis = worldAxis
			j.swingActive = true
			j.swingMass = safeDivide(1, angularEffectiveMass3(a, b, worldAxis))
			j.swingBias = baumgarteBias(cfg, dt, (scale-1)*math.Sqrt(rx*ry))
			j.swingImpulse = 0
		}
	}

	if j.MaxTwist >= j.MinTwist {
		var over float64
		switch {
		case twistAngle > j.MaxTwist:
			over = twistAngle - j.MaxTwist
			j.twistSign = 1
		case twistAngle < j.MinTwist:
			over = twistAngle - j.MinTwist
			j.twistSign = -1
		default:
			j.twistSign = 0
		}
		if j.twistSign != 0 {
			worldTwistAxis := mulM3V3(lin.NewM3().SetQ(a.Pose.Rot), lin.V3{X: 1})
			if worldTwistAxis.LenSqr() > lin.Epsilon {
				worldTwistAxis.Unit()
			}
			j.twistAxis = worldTwistAxis
			j.twistActive = true
			j.twistMass = safeDivide(1, angularEffectiveMass3(a, b, worldTwistAxis))
			j.twistBias = baumgarteBias(cfg, dt, over)
			j.twistImpulse = 0
		}
	}
}

// angularEffectiveMass3 is angularEffectiveMass's two-body sum: the
// effective mass of a scalar angular row with no lever arm (J acts only on
// ωA, ωB, unlike a contact's J which also involves rA×n, rB×n).
func angularEffectiveMass3(a, b *Body, axis lin.V3) float64 {
	ia := mulM3V3(&a.InvInertiaWorld, axis)
	ib := mulM3V3(&b.InvInertiaWorld, axis)
	return axis.Dot(&ia) + axis.Dot(&ib)
}

func (j *SphericalJoint) WarmStart(a, b *Body) {
	applyLinearImpulse3(a, b, j.rA, j.rB, j.linImpulse)
	if j.swingActive {
		impulse := *lin.NewV3().Scale(&j.swingAxis, j.swingImpulse)
		applyAngularImpulse3(a, b, impulse)
	}
	if j.twistActive {
		impulse := *lin.NewV3().Scale(&j.twistAxis, j.twistImpulse)
		applyAngularImpulse3(a, b, impulse)
	}
	if j.MaxAngularImpulse > 0 {
		applyAngularImpulse3(a, b, j.frictionImpulse)
	}
}

func (j *SphericalJoint) Solve(a, b *Body, cfg *WorldConfig) float64 {
	maxDelta := 0.0

	vA := pointVelocity(a.LinVel, a.AngVel, j.rA)
	vB := pointVelocity(b.LinVel, b.AngVel, j.rB)
	cdot := *lin.NewV3().Sub(&vB, &vA)
	cdot.X += j.biasVec.X
	cdot.Y += j.biasVec.Y
	cdot.Z += j.biasVec.Z
	lambda := mulM3V3(&j.linMass, *lin.NewV3().Scale(&cdot, -1))
	j.linImpulse.X += lambda.X
	j.linImpulse.Y += lambda.Y
	j.linImpulse.Z += lambda.Z
	applyLinearImpulse3(a, b, j.rA, j.rB, lambda)
	if l := lambda.Len(); l > maxDelta {
		maxDelta = l
	}

	if j.swingActive {
		wrel := lin.NewV3().Sub(&b.AngVel, &a.AngVel)
		cdot := wrel.Dot(&j.swingAxis) + j.swingBias
		lambda := -cdot * j.swingMass
		newImpulse := math.Max(j.swingImpulse+lambda, 0)
		delta := newImpulse - j.swingImpulse
		j.swingImpulse = newImpulse
		impulse := *lin.NewV3().Scale(&j.swingAxis, delta)
		applyAngularImpulse3(a, b, impulse)
		if math.Abs(delta) > maxDelta {
			maxDelta = math.Abs(delta)
		}
	}

	if j.twistActive {
		wrel := lin.NewV3().Sub(&b.AngVel, &a.AngVel)
		cdot := wrel.Dot(&j.twistAxis) + j.twistBias
		lambda := -cdot * j.twistMass
		var newImpulse float64
		if j.twistSign > 0 {
			newImpulse = math.Min(j.twistImpulse+lambda, 0)
		} else {
			newImpulse = math.Max(j.twistImpulse+lambda, 0)
		}
		delta := newImpulse - j.twistImpulse
		j.twistImpulse = newImpulse
		impulse := *lin.NewV3().Scale(&j.twistAxis, delta)
		applyAngularImpulse3(a, b, impulse)
		if math.Abs(delta) > maxDelta {
			maxDelta = math.Abs(delta)
		}
	}

	if j.MaxAngularImpulse > 0 {
		wrel := lin.NewV3().Sub(&b.AngVel, &a.AngVel)
		lambda := mulM3V3(&j.frictionMass, *lin.NewV3().Scale(wrel, -1))
		total := lin.V3{
			X: j.frictionImpulse.X + lambda.X,
			Y: j.frictionImpulse.Y + lambda.Y,
			Z: j.frictionImpulse.Z + lambda.Z,
		}
		if l := total.Len(); l > j.MaxAngularImpulse {
			s := j.MaxAngularImpulse / l
			total = lin.V3{X: total.X * s, Y: total.Y * s, Z: total.Z * s}
		}
		delta := lin.V3{X: total.X - j.frictionImpulse.X, Y: total.Y - j.frictionImpulse.Y, Z: total.Z - j.frictionImpulse.Z}
		j.frictionImpulse = total
		applyAngularImpulse3(a, b, delta)
		if l := delta.Len(); l > maxDelta {
			maxDelta = l
		}
	}

	return maxDelta
}
