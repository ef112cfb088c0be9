// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"testing"

	"github.com/gazed/rigid/math/lin"
	"github.com/stretchr/testify/require"
)

func poseAt(x, y, z float64) *lin.T {
	return &lin.T{Loc: lin.NewV3S(x, y, z), Rot: lin.NewQI()}
}

func TestGjkSeparatedSpheresMiss(t *testing.T) {
	a, b := NewSphere(1), NewSphere(1)
	_, hit := gjkIntersect(a, poseAt(0, 0, 0), b, poseAt(3, 0, 0))
	require.False(t, hit)
}

func TestGjkOverlappingSpheresHit(t *testing.T) {
	a, b := NewSphere(1), NewSphere(1)
	_, hit := gjkIntersect(a, poseAt(0, 0, 0), b, poseAt(1.5, 0, 0))
	require.True(t, hit)
}

func TestEpaOverlappingSpheresRecoversContact(t *testing.T) {
	a, b := NewSphere(1), NewSphere(1)
	poseA, poseB := poseAt(0, 0, 0), poseAt(1.5, 0, 0)
	sx, hit := gjkIntersect(a, poseA, b, poseB)
	require.True(t, hit)

	normal, depth, pointA, pointB, ok := epaContact(a, poseA, b, poseB, sx)
	require.True(t, ok)
	require.InDelta(t, -1, normal.X, 1e-3)
	require.InDelta(t, 0, normal.Y, 1e-3)
	require.InDelta(t, 0, normal.Z, 1e-3)
	require.InDelta(t, 0.5, depth, 1e-3)
	require.InDelta(t, 1, pointA.X, 1e-3)
	require.InDelta(t, 0.5, pointB.X, 1e-3)
}

func TestGjkCoincidentSpheresHit(t *testing.T) {
	a, b := NewSphere(1), NewSphere(1)
	_, hit := gjkIntersect(a, poseAt(0, 0, 0), b, poseAt(0, 0, 0))
	require.True(t, hit)
}

func TestEpaJustTouchingPairHasNearZeroPenetration(t *testing.T) {
	a, b := NewSphere(1), NewSphere(1)
	poseA, poseB := poseAt(0, 0, 0), poseAt(1.999, 0, 0)
	sx, hit := gjkIntersect(a, poseA, b, poseB)
	if !hit {
		// at this separation GJK may report a razor-thin miss; EPA is not
		// reached, which is consistent with the boundary being a knife edge.
		return
	}
	_, depth, _, _, ok := epaContact(a, poseA, b, poseB, sx)
	require.True(t, ok)
	require.InDelta(t, 0, depth, 5e-3)
}
