// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"testing"

	"github.com/gazed/rigid/math/lin"
	"github.com/stretchr/testify/require"
)

func TestNarrowphaseSphereSphereClosedForm(t *testing.T) {
	var out []Contact
	Narrowphase(NewSphere(1), poseAt(0, 0, 0), NewSphere(1), poseAt(1.5, 0, 0), &out)
	require.Len(t, out, 1)
	require.InDelta(t, -1, out[0].Normal.X, 1e-9)
	require.InDelta(t, 0.5, out[0].Depth, 1e-9)
}

func TestNarrowphaseSphereSphereMiss(t *testing.T) {
	var out []Contact
	Narrowphase(NewSphere(1), poseAt(0, 0, 0), NewSphere(1), poseAt(3, 0, 0), &out)
	require.Empty(t, out)
}

func TestNarrowphaseCubeCubeGoesThroughGjkEpa(t *testing.T) {
	var out []Contact
	Narrowphase(NewCube(0.5, 0.5, 0.5), poseAt(0, 0, 0), NewCube(0.5, 0.5, 0.5), poseAt(0.9, 0, 0), &out)
	require.NotEmpty(t, out)
	for _, c := range out {
		require.Greater(t, c.Depth, 0.0)
	}
}

func TestNarrowphaseCompositeRecursesIntoOverlappingSub(t *testing.T) {
	comp := NewComposite([]SubShape{
		{Shape: NewSphere(1), Local: lin.T{Loc: lin.NewV3(), Rot: lin.NewQI()}},
		{Shape: NewSphere(1), Local: lin.T{Loc: lin.NewV3S(10, 0, 0), Rot: lin.NewQI()}},
	})
	var out []Contact
	Narrowphase(comp, poseAt(0, 0, 0), NewSphere(1), poseAt(0.5, 0, 0), &out)
	require.NotEmpty(t, out)
}

func TestNarrowphaseEnvironmentRecursesIntoHitTriangle(t *testing.T) {
	env := NewEnvironment([]EnvTriangle{{
		A: lin.V3{X: -100, Z: -100},
		B: lin.V3{X: 100, Z: -100},
		C: lin.V3{Z: 100},
	}})
	var out []Contact
	Narrowphase(env, poseAt(0, 0, 0), NewSphere(0.5), poseAt(0, 0.25, 0), &out)
	require.NotEmpty(t, out)
}

func TestNarrowphaseEnvironmentEnvironmentIgnored(t *testing.T) {
	env := NewEnvironment([]EnvTriangle{{A: lin.V3{X: -1}, B: lin.V3{X: 1}, C: lin.V3{Z: 1}}})
	var out []Contact
	Narrowphase(env, poseAt(0, 0, 0), env, poseAt(0, 0, 0), &out)
	require.Empty(t, out)
}
