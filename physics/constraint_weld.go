// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// WeldJoint is a rigid fusion of two bodies: Spherical's three linear rows
// plus three cardinal angular rows that lock the relative orientation to
// whatever it was the moment LockRelativeTransform was last called (by
// default, at construction).
type WeldJoint struct {
	BodyA, BodyB               BodyHandle
	LocalAnchorA, LocalAnchorB lin.V3
	RelativeRot                lin.Q // target frameA^-1 * frameB

	rA, rB     lin.V3
	linMass    lin.M3
	linImpulse lin.V3
	biasVec    lin.V3

	angMass    lin.M3
	angImpulse lin.V3
	angBias    lin.V3
}

// NewWeldJoint returns a weld joint pinning localA/localB together and
// locking a and b's current relative orientation.
func NewWeldJoint(a, b BodyHandle, localA, localB lin.V3, bodyA, bodyB *Body) *WeldJoint {
	j := &WeldJoint{BodyA: a, BodyB: b, LocalAnchorA: localA, LocalAnchorB: localB}
	j.LockRelativeTransform(bodyA, bodyB)
	return j
}

// LockRelativeTransform captures a and b's current relative orientation as
// the value the angular rows will hold from now on.
func (j *WeldJoint) LockRelativeTransform(a, b *Body) {
	invA := *lin.NewQ().Inv(a.Pose.Rot)
	j.RelativeRot = *lin.NewQ().Mult(&invA, b.Pose.Rot)
}

func (j *WeldJoint) Kind() ConstraintKind             { return WeldConstraint }
func (j *WeldJoint) Bodies() (BodyHandle, BodyHandle) { return j.BodyA, j.BodyB }

// orientationError returns the rotation vector (axis * angle, small-angle
// linearized) that would bring B's frame back to A's frame composed with
// RelativeRot: twice the vector part of the error quaternion, the standard
// small-angle approximation used by sequential-impulse fixed-orientation
// rows.
func (j *WeldJoint) orientationError(a, b *Body) lin.V3 {
	target := *lin.NewQ().Mult(a.Pose.Rot, &j.RelativeRot)
	targetInv := *lin.NewQ().Inv(&target)
	errQ := *lin.NewQ().Mult(&targetInv, b.Pose.Rot)
	if errQ.W < 0 {
		errQ = lin.Q{X: -errQ.X, Y: -errQ.Y, Z: -errQ.Z, W: -errQ.W}
	}
	world := mulM3V3(lin.NewM3().SetQ(a.Pose.Rot), lin.V3{X: 2 * errQ.X, Y: 2 * errQ.Y, Z: 2 * errQ.Z})
	return world
}

func (j *WeldJoint) Prepare(a, b *Body, dt float64, cfg *WorldConfig) {
	worldA, rA := jointAnchorWorld(a, j.LocalAnchorA)
	worldB, rB := jointAnchorWorld(b, j.LocalAnchorB)
	j.rA, j.rB = rA, rB
	j.linMass = pointMass3(a, b, rA, rB)

	c := *lin.NewV3().Sub(&worldB, &worldA)
	j.biasVec = lin.V3{
		X: baumgarteBias(cfg, dt, c.X),
		Y: baumgarteBias(cfg, dt, c.Y),
		Z: baumgarteBias(cfg, dt, c.Z),
	}

	j.angMass = angularMass3(a, b)
	err := j.orientationError(a, b)
	j.angBias = lin.V3{
		X: baumgarteBias(cfg, dt, err.X),
		Y: baumgarteBias(cfg, dt, err.Y),
		Z: baumgarteBias(cfg, dt, err.Z),
	}
}

func (j *WeldJoint) WarmStart(a, b *Body) {
	applyLinearImpulse3(a, b, j.rA, j.rB, j.linImpulse)
	applyAngularImpulse3(a, b, j.angImpulse)
}

func (j *WeldJoint) Solve(a, b *Body, cfg *WorldConfig) float64 {
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

	wrel := lin.NewV3().Sub(&b.AngVel, &a.AngVel)
	wrel.X += j.angBias.X
	wrel.Y += j.angBias.Y
	wrel.Z += j.angBias.Z
	angLambda := mulM3V3(&j.angMass, *lin.NewV3().Scale(wrel, -1))
	j.angImpulse.X += angLambda.X
	j.angImpulse.Y += angLambda.Y
	j.angImpulse.Z += angLambda.Z
	applyAngularImpulse3(a, b, angLambda)
	if l := angLambda.Len(); l > maxDelta {
		maxDelta = l
	}

	return maxDelta
}
