// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"testing"

	"github.com/gazed/rigid/math/lin"
	"github.com/stretchr/testify/require"
)

func testCfg() *WorldConfig { return defaultConfig() }

func TestManifoldMergeContactAddsNewPoint(t *testing.T) {
	m := NewManifold(Handle{index: 1, gen: 1}, Handle{index: 2, gen: 1})
	poseA, poseB := lin.NewT(), lin.NewT()
	cfg := testCfg()

	contacts := []Contact{{
		Normal: lin.V3{Y: 1}, Depth: 0.1,
		PointA: lin.V3{X: 0, Y: 0, Z: 0}, PointB: lin.V3{X: 0, Y: 0.1, Z: 0},
	}}
	m.Refresh(poseA, poseB, contacts, cfg)
	require.Equal(t, 1, m.Num)
	require.InDelta(t, 0.1, m.Points[0].Depth, 1e-9)
}

func TestManifoldMergeContactReplacesNearbyPointResettingImpulse(t *testing.T) {
	m := NewManifold(Handle{index: 1, gen: 1}, Handle{index: 2, gen: 1})
	poseA, poseB := lin.NewT(), lin.NewT()
	cfg := testCfg()

	m.Refresh(poseA, poseB, []Contact{{
		Normal: lin.V3{Y: 1}, Depth: 0.1,
		PointA: lin.V3{X: 0, Y: 0, Z: 0}, PointB: lin.V3{X: 0, Y: 0.1, Z: 0},
	}}, cfg)
	require.Equal(t, 1, m.Num)
	m.Points[0].NormalImpulse = 5.0

	m.Refresh(poseA, poseB, []Contact{{
		Normal: lin.V3{Y: 1}, Depth: 0.2,
		PointA: lin.V3{X: 0.001, Y: 0, Z: 0}, PointB: lin.V3{X: 0.001, Y: 0.2, Z: 0},
	}}, cfg)
	require.Equal(t, 1, m.Num, "a geometrically close contact should replace, not add")
	require.Equal(t, 0.0, m.Points[0].NormalImpulse, "replacing the matched point must reset its warm-start impulse")
	require.InDelta(t, 0.2, m.Points[0].Depth, 1e-9)
}

func TestManifoldCullDriftedRemovesSeparatedPoint(t *testing.T) {
	m := NewManifold(Handle{index: 1, gen: 1}, Handle{index: 2, gen: 1})
	poseA, poseB := lin.NewT(), lin.NewT()
	cfg := testCfg()

	m.Refresh(poseA, poseB, []Contact{{
		Normal: lin.V3{Y: 1}, Depth: 0.1,
		PointA: lin.V3{X: 0, Y: 0, Z: 0}, PointB: lin.V3{X: 0, Y: 0.1, Z: 0},
	}}, cfg)
	require.Equal(t, 1, m.Num)

	poseB.Loc.Y -= 5 // body B moves far away along the contact normal
	m.Refresh(poseA, poseB, nil, cfg)
	require.Equal(t, 0, m.Num, "a point separated well past tolerance must be culled")
}

func TestManifoldKeepsUpToFourPointsEvictingLeastAreaContributor(t *testing.T) {
	m := NewManifold(Handle{index: 1, gen: 1}, Handle{index: 2, gen: 1})
	poseA, poseB := lin.NewT(), lin.NewT()
	cfg := testCfg()

	corners := []lin.V3{
		{X: -1, Z: -1}, {X: 1, Z: -1}, {X: 1, Z: 1}, {X: -1, Z: 1},
	}
	for _, c := range corners {
		m.Refresh(poseA, poseB, []Contact{{
			Normal: lin.V3{Y: 1}, Depth: 0.1,
			PointA: c, PointB: lin.V3{X: c.X, Y: 0.1, Z: c.Z},
		}}, cfg)
	}
	require.Equal(t, 4, m.Num)

	// A fifth point near the first corner, with no matching existing point
	// to replace, forces an eviction rather than a 5th stored point.
	m.Refresh(poseA, poseB, []Contact{{
		Normal: lin.V3{Y: 1}, Depth: 0.05,
		PointA: lin.V3{X: -0.9, Z: -0.9}, PointB: lin.V3{X: -0.9, Y: 0.05, Z: -0.9},
	}}, cfg)
	require.Equal(t, 4, m.Num, "manifold must never exceed 4 points")
}
