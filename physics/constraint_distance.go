// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// DistanceJoint pins two local anchors to a fixed separation: a single
// scalar row, |worldB - worldA| - Distance == 0. If the anchors coincide
// (length below lin.Epsilon) the constraint axis defaults to world +Y per
// spec §4.3's degeneracy guard.
type DistanceJoint struct {
	BodyA, BodyB BodyHandle
	LocalAnchorA, LocalAnchorB lin.V3
	Distance                   float64

	axis    lin.V3
	rA, rB  lin.V3
	mass    float64
	bias    float64
	impulse float64
}

// NewDistanceJoint returns a distance joint holding the two anchors at
// the given separation.
func NewDistanceJoint(a, b BodyHandle, localA, localB lin.V3, distance float64) *DistanceJoint {
	return &DistanceJoint{BodyA: a, BodyB: b, LocalAnchorA: localA, LocalAnchorB: localB, Distance: distance}
}

func (j *DistanceJoint) Kind() ConstraintKind         { return DistanceConstraint }
func (j *DistanceJoint) Bodies() (BodyHandle, BodyHandle) { return j.BodyA, j.BodyB }

func (j *DistanceJoint) Prepare(a, b *Body, dt float64, cfg *WorldConfig) {
	worldA, rA := jointAnchorWorld(a, j.LocalAnchorA)
	worldB, rB := jointAnchorWorld(b, j.LocalAnchorB)
	j.rA, j.rB = rA, rB

	delta := lin.NewV3().Sub(&worldB, &worldA)
	length := delta.Len()
	if length < lin.Epsilon {
		j.axis = lin.V3{Y: 1}
	} else {
		j.axis = *lin.NewV3().Scale(delta, 1/length)
	}

	k := a.InvMass + b.InvMass +
		angularEffectiveMass(&a.InvInertiaWorld, rA, j.axis) +
		angularEffectiveMass(&b.InvInertiaWorld, rB, j.axis)
	j.mass = safeDivide(1, k)

	c := length - j.Distance
	j.bias = baumgarteBias(cfg, dt, c)
}

func (j *DistanceJoint) WarmStart(a, b *Body) {
	impulse := *lin.NewV3().Scale(&j.axis, -j.impulse)
	applyLinearImpulse3(a, b, j.rA, j.rB, impulse)
}

func (j *DistanceJoint) Solve(a, b *Body, cfg *WorldConfig) float64 {
	vA := pointVelocity(a.LinVel, a.AngVel, j.rA)
	vB := pointVelocity(b.LinVel, b.AngVel, j.rB)
	rel := lin.NewV3().Sub(&vB, &vA)
	cdot := rel.Dot(&j.axis)

	lambda := -(cdot + j.bias) * j.mass
	j.impulse += lambda

	impulse := *lin.NewV3().Scale(&j.axis, -lambda)
	applyLinearImpulse3(a, b, j.rA, j.rB, impulse)
	if lambda < 0 {
		return -lambda
	}
	return lambda
}
