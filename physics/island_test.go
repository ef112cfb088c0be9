// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func bh(index uint32) BodyHandle   { return Handle{index: index, gen: 1} }
func ch(index uint32) ConstraintHandle { return Handle{index: index, gen: 1} }

func TestIslandGraphAddMergesTwoBodiesIntoOneIsland(t *testing.T) {
	g := NewIslandGraph()
	a, b := bh(1), bh(2)
	g.Add(ch(1), a, b, false, false)

	ia, ib := g.IslandOf(a), g.IslandOf(b)
	require.NotZero(t, ia)
	require.Equal(t, ia, ib)
}

func TestIslandGraphStaticStaticEdgeIsRejected(t *testing.T) {
	g := NewIslandGraph()
	a, b := bh(1), bh(2)
	g.Add(ch(1), a, b, true, true)
	require.Zero(t, g.IslandOf(a))
	require.Zero(t, g.IslandOf(b))
}

func TestIslandGraphStaticAnchorDoesNotMergeTwoIslands(t *testing.T) {
	g := NewIslandGraph()
	ground := bh(100)
	a, b := bh(1), bh(2)
	g.Add(ch(1), a, ground, false, true)
	g.Add(ch(2), b, ground, false, true)

	require.NotZero(t, g.IslandOf(a))
	require.NotZero(t, g.IslandOf(b))
	require.NotEqual(t, g.IslandOf(a), g.IslandOf(b), "a shared static anchor must not merge independent islands")
}

func TestIslandGraphChainMergesAcrossConstraints(t *testing.T) {
	g := NewIslandGraph()
	a, b, c := bh(1), bh(2), bh(3)
	g.Add(ch(1), a, b, false, false)
	g.Add(ch(2), b, c, false, false)

	require.Equal(t, g.IslandOf(a), g.IslandOf(b))
	require.Equal(t, g.IslandOf(b), g.IslandOf(c))
}

func TestIslandGraphRemoveBridgeEdgeSplitsIsland(t *testing.T) {
	g := NewIslandGraph()
	a, b, c := bh(1), bh(2), bh(3)
	g.Add(ch(1), a, b, false, false)
	g.Add(ch(2), b, c, false, false)
	require.Equal(t, g.IslandOf(a), g.IslandOf(c))

	g.Remove(ch(2)) // b-c was the only link to c: removing it isolates c
	require.Equal(t, g.IslandOf(a), g.IslandOf(b))
	require.NotEqual(t, g.IslandOf(b), g.IslandOf(c), "removing the bridge edge must split c off from a and b's island")
}

func TestIslandGraphRemoveNonBridgeEdgeKeepsIslandWhole(t *testing.T) {
	g := NewIslandGraph()
	a, b, c := bh(1), bh(2), bh(3)
	g.Add(ch(1), a, b, false, false)
	g.Add(ch(2), b, c, false, false)
	g.Add(ch(3), a, c, false, false) // closes the triangle: a-b is no longer a bridge

	g.Remove(ch(1))
	require.Equal(t, g.IslandOf(a), g.IslandOf(b))
	require.Equal(t, g.IslandOf(b), g.IslandOf(c), "removing one edge of a cycle must not split the island")
}

func TestIslandGraphRemoveBodyDropsAllItsEdges(t *testing.T) {
	g := NewIslandGraph()
	a, b, c := bh(1), bh(2), bh(3)
	g.Add(ch(1), a, b, false, false)
	g.Add(ch(2), b, c, false, false)

	removed := g.RemoveBody(b)
	require.ElementsMatch(t, []ConstraintHandle{ch(1), ch(2)}, removed)
	require.Zero(t, g.IslandOf(a))
	require.Zero(t, g.IslandOf(c))
}

func TestIslandGraphSleepStateMachineTransitions(t *testing.T) {
	g := NewIslandGraph()
	a, b := bh(1), bh(2)
	g.Add(ch(1), a, b, false, false)
	id := g.IslandOf(a)
	require.Equal(t, Awake, g.IslandState(id))

	cfg := testCfg()
	cfg.TimeToSleep = 1.0

	g.UpdateIslandState(id, Active, 0.5, cfg)
	require.Equal(t, Active, g.IslandState(id))

	g.UpdateIslandState(id, Inactive, 0.5, cfg)
	require.Equal(t, Active, g.IslandState(id), "inactive time below TimeToSleep must not sleep yet")

	g.UpdateIslandState(id, Inactive, 0.6, cfg)
	require.Equal(t, Asleep, g.IslandState(id), "inactive time past TimeToSleep must transition to Asleep")

	g.UpdateIslandState(id, Inactive, 0.1, cfg)
	require.Equal(t, Inactive, g.IslandState(id), "Asleep is a one-step edge that settles into the Inactive steady state")

	g.UpdateIslandState(id, Active, 0, cfg)
	require.Equal(t, Awake, g.IslandState(id), "activity after Inactive must transition back through Awake")
}

func TestIslandGraphWakeBodyForcesAwake(t *testing.T) {
	g := NewIslandGraph()
	a, b := bh(1), bh(2)
	g.Add(ch(1), a, b, false, false)
	id := g.IslandOf(a)

	cfg := testCfg()
	cfg.TimeToSleep = 0.1
	g.UpdateIslandState(id, Inactive, 1.0, cfg)
	require.Equal(t, Asleep, g.IslandState(id))

	g.WakeBody(a, false)
	require.Equal(t, Awake, g.IslandState(id))
}
