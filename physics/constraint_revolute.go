// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"math"

	"github.com/gazed/rigid/math/lin"
)

// RevoluteJoint is a hinge: Spherical's three linear rows plus two angular
// rows that hold the two bodies' joint-frame +X axes parallel, leaving
// rotation about that shared axis free. An optional angle limit
// ([MinAngle, MaxAngle], disabled when MaxAngle < MinAngle) and a motor
// friction cap (MaxMotorImpulse, disabled when <= 0) act on that free
// axis. The free-axis angle is tracked as a cumulative, unwrapped scalar
// (not wrapped to (-π, π]) so a limit spanning more than one revolution
// compares correctly.
type RevoluteJoint struct {
	BodyA, BodyB               BodyHandle
	LocalAnchorA, LocalAnchorB lin.V3
	RefA, RefB                 lin.Q

	MinAngle, MaxAngle float64
	MaxMotorImpulse    float64

	rA, rB     lin.V3
	linMass    lin.M3
	linImpulse lin.V3
	biasVec    lin.V3

	perp1, perp2       lin.V3
	perpMass           [2]float64
	perpBias           [2]float64
	perpImpulse        [2]float64

	haveAngle       bool
	prevRawAngle    float64
	cumulativeAngle float64

	limitActive bool
	limitSign   float64
	limitAxis   lin.V3
	limitMass   float64
	limitBias   float64
	limitImpulse float64

	motorAxis     lin.V3
	motorMass     float64
	motorImpulse  float64
}

// NewRevoluteJoint returns a hinge joint with no angle limit and no motor
// friction; set MinAngle <= MaxAngle to add a limit, MaxMotorImpulse > 0
// to add free-axis friction.
func NewRevoluteJoint(a, b BodyHandle, localA, localB lin.V3, refA, refB lin.Q) *RevoluteJoint {
	return &RevoluteJoint{
		BodyA: a, BodyB: b,
		LocalAnchorA: localA, LocalAnchorB: localB,
		RefA: refA, RefB: refB,
		MinAngle: 0, MaxAngle: -1,
	}
}

func (j *RevoluteJoint) Kind() ConstraintKind             { return RevoluteConstraint }
func (j *RevoluteJoint) Bodies() (BodyHandle, BodyHandle) { return j.BodyA, j.BodyB }

func (j *RevoluteJoint) axisA(a *Body) lin.V3 {
	frame := *lin.NewQ().Mult(a.Pose.Rot, &j.RefA)
	axis := mulM3V3(lin.NewM3().SetQ(&frame), lin.V3{X: 1})
	if axis.LenSqr() > lin.Epsilon {
		axis.Unit()
	}
	return axis
}

func (j *RevoluteJoint) axisB(b *Body) lin.V3 {
	frame := *lin.NewQ().Mult(b.Pose.Rot, &j.RefB)
	axis := mulM3V3(lin.NewM3().SetQ(&frame), lin.V3{X: 1})
	if axis.LenSqr() > lin.Epsilon {
		axis.Unit()
	}
	return axis
}

func (j *RevoluteJoint) Prepare(a, b *Body, dt float64, cfg *WorldConfig) {
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

	axisA := j.axisA(a)
	axisB := j.axisB(b)
	var t1, t2 lin.V3
	axisA.Plane(&t1, &t2)
	j.perp1, j.perp2 = t1, t2

	misalign := lin.NewV3().Cross(&axisA, &axisB)
	for i, perp := range [2]lin.V3{j.perp1, j.perp2} {
		j.perpMass[i] = safeDivide(1, angularEffectiveMass3(a, b, perp))
		j.perpBias[i] = baumgarteBias(cfg, dt, misalign.Dot(&perp))
	}

	j.prepareLimit(a, b, axisA, dt, cfg)
	if j.MaxMotorImpulse > 0 {
		j.motorAxis = axisA
		j.motorMass = safeDivide(1, angularEffectiveMass3(a, b, axisA))
	}
}

func (j *RevoluteJoint) prepareLimit(a, b *Body, axisA lin.V3, dt float64, cfg *WorldConfig) {
	j.limitActive = false
	rel := j.relativeJointFrame(a, b)
	rawAngle, _, _ := swingTwistDecompose(rel)
	if !j.haveAngle {
		j.cumulativeAngle = rawAngle
		j.haveAngle = true
	} else {
		delta := rawAngle - j.prevRawAngle
		for delta > math.Pi {
			delta -= 2 * math.Pi
		}
		for delta < -math.Pi {
			delta += 2 * math.Pi
		}
		j.cumulativeAngle += delta
	}
	j.prevRawAngle = rawAngle

	if j.MaxAngle < j.MinAngle {
		return
	}
	var over float64
	switch {
	case j.cumulativeAngle > j.MaxAngle:
		over, j.limitSign = j.cumulativeAngle-j.MaxAngle, 1
	case j.cumulativeAngle < j.MinAngle:
		over, j.limitSign = j.cumulativeAngle-j.MinAngle, -1
	default:
		j.limitSign = 0
	}
	if j.limitSign == 0 {
		return
	}
	j.limitActive = true
	j.limitAxis = axisA
	j.limitMass = safeDivide(1, angularEffectiveMass3(a, b, axisA))
	j.limitBias = baumgarteBias(cfg, dt, over)
	j.limitImpulse = 0
}

func (j *RevoluteJoint) relativeJointFrame(a, b *Body) lin.Q {
	frameA := *lin.NewQ().Mult(a.Pose.Rot, &j.RefA)
	frameB := *lin.NewQ().Mult(b.Pose.Rot, &j.RefB)
	invA := *lin.NewQ().Inv(&frameA)
	return *lin.NewQ().Mult(&invA, &frameB)
}

func (j *RevoluteJoint) WarmStart(a, b *Body) {
	applyLinearImpulse3(a, b, j.rA, j.rB, j.linImpulse)
	for i, perp := range [2]lin.V3{j.perp1, j.perp2} {
		impulse := *lin.NewV3().Scale(&perp, j.perpImpulse[i])
		applyAngularImpulse3(a, b, impulse)
	}
	if j.limitActive {
		impulse := *lin.NewV3().Scale(&j.limitAxis, j.limitImpulse)
		applyAngularImpulse3(a, b, impulse)
	}
	if j.MaxMotorImpulse > 0 {
		impulse := *lin.NewV3().Scale(&j.motorAxis, j.motorImpulse)
		applyAngularImpulse3(a, b, impulse)
	}
}

func (j *RevoluteJoint) Solve(a, b *Body, cfg *WorldConfig) float64 {
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

	for i, perp := range [2]lin.V3{j.perp1, j.perp2} {
		wrel := lin.NewV3().Sub(&b.AngVel, &a.AngVel)
		cdot := wrel.Dot(&perp) + j.perpBias[i]
		delta := -cdot * j.perpMass[i]
		j.perpImpulse[i] += delta
		impulse := *lin.NewV3().Scale(&perp, delta)
		applyAngularImpulse3(a, b, impulse)
		if math.Abs(delta) > maxDelta {
			maxDelta = math.Abs(delta)
		}
	}

	if j.limitActive {
		wrel := lin.NewV3().Sub(&b.AngVel, &a.AngVel)
		cdot := wrel.Dot(&j.limitAxis) + j.limitBias
		lambda := -cdot * j.limitMass
		var newImpulse float64
		if j.limitSign > 0 {
			newImpulse = math.Min(j.limitImpulse+lambda, 0)
		} else {
			newImpulse = math.Max(j.limitImpulse+lambda, 0)
		}
		delta := newImpulse - j.limitImpulse
		j.limitImpulse = newImpulse
		impulse := *lin.NewV3().Scale(&j.limitAxis, delta)
		applyAngularImpulse3(a, b, impulse)
		if math.Abs(delta) > maxDelta {
			maxDelta = math.Abs(delta)
		}
	}

	if j.MaxMotorImpulse > 0 {
		wrel := lin.NewV3().Sub(&b.AngVel, &a.AngVel)
		cdot := wrel.Dot(&j.motorAxis)
		lambda := -cdot * j.motorMass
		newImpulse := lin.Clamp(j.motorImpulse+lambda, -j.MaxMotorImpulse, j.MaxMotorImpulse)
		delta := newImpulse - j.motorImpulse
		j.motorImpulse = newImpulse
		impulse := *lin.NewV3().Scale(&j.motorAxis, delta)
		applyAngularImpulse3(a, b, impulse)
		if math.Abs(delta) > maxDelta {
			maxDelta = math.Abs(delta)
		}
	}

	return maxDelta
}
