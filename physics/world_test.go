// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"testing"

	"github.com/gazed/rigid/math/lin"
	"github.com/stretchr/testify/require"
)

func addFallingCube(t *testing.T, w *World, y float64) BodyHandle {
	t.Helper()
	h := w.AddBody(true, true)
	require.True(t, h.Valid())
	sh := w.AddShape(NewCube(0.5, 0.5, 0.5))
	mh := w.AddMaterial(DefaultMaterial())
	require.True(t, w.SetColliderShape(h, sh, mh))
	require.True(t, w.SetPose(h, lin.V3{Y: y}, *lin.NewQI()))
	return h
}

func addStaticGround(t *testing.T, w *World) BodyHandle {
	t.Helper()
	h := w.AddBody(true, true)
	sh := w.AddShape(NewCube(50, 0.5, 50))
	mh := w.AddMaterial(DefaultMaterial())
	require.True(t, w.SetColliderShape(h, sh, mh))
	require.True(t, w.SetStatic(h, true))
	return h
}

func TestWorldCubeFallsToRestOnGround(t *testing.T) {
	w := NewWorld(Gravity(0, -10, 0))
	addStaticGround(t, w)
	cube := addFallingCube(t, w, 5)

	for i := 0; i < 600; i++ {
		w.Step(1.0 / 60.0)
	}

	pos, _, ok := w.Pose(cube)
	require.True(t, ok)
	require.InDelta(t, 1.0, pos.Y, 0.05, "cube should settle resting on the ground with its half-extent clearance")

	linVel, angVel, ok := w.Velocity(cube)
	require.True(t, ok)
	require.InDelta(t, 0, linVel.Len(), 0.05)
	require.InDelta(t, 0, angVel.Len(), 0.05)
}

func TestWorldFallingBodySleepsAfterSettling(t *testing.T) {
	w := NewWorld(Gravity(0, -10, 0), TimeToSleep(0.25))
	addStaticGround(t, w)
	cube := addFallingCube(t, w, 2)

	for i := 0; i < 600; i++ {
		w.Step(1.0 / 60.0)
	}

	b, ok := w.bodies.Get(cube)
	require.True(t, ok)
	require.True(t, b.IsAsleep(), "body resting undisturbed past TimeToSleep should fall asleep")
}

func TestWorldStaticBodyNeverIntegrates(t *testing.T) {
	w := NewWorld()
	ground := addStaticGround(t, w)
	pos, _, ok := w.Pose(ground)
	require.True(t, ok)

	for i := 0; i < 120; i++ {
		w.Step(1.0 / 60.0)
	}

	after, _, ok := w.Pose(ground)
	require.True(t, ok)
	require.Equal(t, pos, after, "a static body must never move under gravity")
}

func TestWorldSphericalJointHoldsAnchorDistance(t *testing.T) {
	w := NewWorld(Gravity(0, -10, 0))
	anchor := w.AddBody(true, false)
	require.True(t, w.SetStatic(anchor, true))
	require.True(t, w.SetPose(anchor, lin.V3{Y: 10}, *lin.NewQI()))

	bob := w.AddBody(true, true)
	sh := w.AddShape(NewSphere(0.25))
	mh := w.AddMaterial(DefaultMaterial())
	require.True(t, w.SetColliderShape(bob, sh, mh))
	require.True(t, w.SetPose(bob, lin.V3{Y: 8}, *lin.NewQI()))

	_, ok := w.AddSpherical(anchor, bob, lin.V3{}, lin.V3{}, *lin.NewQI(), *lin.NewQI())
	require.True(t, ok)

	for i := 0; i < 300; i++ {
		w.Step(1.0 / 60.0)
	}

	anchorPos, _, _ := w.Pose(anchor)
	bobPos, _, _ := w.Pose(bob)
	dist := lin.NewV3().Sub(&bobPos, &anchorPos).Len()
	require.InDelta(t, 2.0, dist, 0.1, "spherical joint should hold the bob at a fixed 2-unit radius from its anchor")
}

func TestWorldRemoveBodyTearsDownConstraints(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(true, true)
	b := w.AddBody(true, true)
	ch, ok := w.AddDistance(a, b, lin.V3{}, lin.V3{}, 1.0)
	require.True(t, ok)

	w.RemoveBody(a)

	_, ok = w.constraints.Joint(ch)
	require.False(t, ok, "removing an endpoint body must remove the joint too")

	bb, ok := w.bodies.Get(b)
	require.True(t, ok)
	require.Empty(t, bb.constraints, "surviving endpoint must have its constraint link cleared")
}

func TestWorldMaterialDeferredDeletion(t *testing.T) {
	w := NewWorld()
	mh := w.AddMaterial(DefaultMaterial())
	h := w.AddBody(true, true)
	sh := w.AddShape(NewSphere(1))
	require.True(t, w.SetColliderShape(h, sh, mh))

	w.RemoveMaterial(mh)
	_, ok := w.materials.Get(mh)
	require.True(t, ok, "a referenced material must survive RemoveMaterial until released")

	w.RemoveBody(h)
	_, ok = w.materials.Get(mh)
	require.False(t, ok, "the last reference dropping should free a marked material")
}

func TestWorldSetColliderShapeRefusedWithoutHasCollider(t *testing.T) {
	w := NewWorld()
	h := w.AddBody(true, false)
	sh := w.AddShape(NewSphere(1))
	mh := w.AddMaterial(DefaultMaterial())
	require.False(t, w.SetColliderShape(h, sh, mh), "has_collider=false must refuse every SetColliderShape call")
}

func TestWorldHasRigidFalseStaysStaticAfterCollider(t *testing.T) {
	w := NewWorld(Gravity(0, -10, 0))
	h := w.AddBody(false, true)
	sh := w.AddShape(NewCube(1, 1, 1))
	mh := w.AddMaterial(DefaultMaterial())
	require.True(t, w.SetColliderShape(h, sh, mh))

	b, ok := w.bodies.Get(h)
	require.True(t, ok)
	require.True(t, b.IsStatic(), "has_rigid=false must stay static even once it has a collider shape")
}

func TestWorldLineCastHitsNearestBodyFirst(t *testing.T) {
	w := NewWorld()
	near := w.AddBody(true, true)
	sh := w.AddShape(NewSphere(1))
	mh := w.AddMaterial(DefaultMaterial())
	require.True(t, w.SetColliderShape(near, sh, mh))
	require.True(t, w.SetPose(near, lin.V3{X: 5}, *lin.NewQI()))

	far := w.AddBody(true, true)
	sh2 := w.AddShape(NewSphere(1))
	require.True(t, w.SetColliderShape(far, sh2, mh))
	require.True(t, w.SetPose(far, lin.V3{X: 10}, *lin.NewQI()))

	hits := w.LineCastAll(lin.V3{X: -5}, lin.V3{X: 20})
	require.Len(t, hits, 2)
	require.Equal(t, near, hits[0].Body)
	require.Equal(t, far, hits[1].Body)
	require.Less(t, hits[0].DistSq, hits[1].DistSq)
}
