// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"math/rand"
	"testing"

	"github.com/gazed/rigid/math/lin"
)

func aabbAt(x, y, z, half float64) lin.AABB {
	var b lin.AABB
	b.SetS(x-half, y-half, z-half, x+half, y+half, z+half)
	return b
}

func TestBroadphaseEmptyInsertAndRemove(t *testing.T) {
	bp := NewBroadphase(0.1)
	if bp.Height() != -1 {
		t.Fatalf("expected empty tree height -1, got %d", bp.Height())
	}
	box := aabbAt(0, 0, 0, 1)
	h := bp.Insert(&box, 42)
	if bp.root == nullNode {
		t.Fatal("expected root to be set after first insert")
	}
	bp.Remove(h)
	if bp.root != nullNode {
		t.Fatal("expected root to be NULL after removing the only leaf")
	}
}

func TestBroadphaseUpdateNoOpWhenStillContained(t *testing.T) {
	bp := NewBroadphase(0.5)
	box := aabbAt(0, 0, 0, 1)
	h := bp.Insert(&box, 1)
	same := bp.Update(&box, h)
	if same != h {
		t.Fatal("update with the same AABB must be a no-op returning the same handle")
	}
}

func TestBroadphasePairsMatchBruteForce(t *testing.T) {
	bp := NewBroadphase(0.0)
	rng := rand.New(rand.NewSource(7))
	type placed struct {
		box     lin.AABB
		data    uint64
		handle  BPHandle
		removed bool
	}
	var all []placed
	for i := 0; i < 100; i++ {
		x := rng.Float64()*20 - 10
		y := rng.Float64()*20 - 10
		z := rng.Float64()*20 - 10
		box := aabbAt(x, y, z, 0.5)
		h := bp.Insert(&box, uint64(i))
		all = append(all, placed{box: box, data: uint64(i), handle: h})
	}

	assertMatchesBruteForce := func(t *testing.T) {
		t.Helper()
		want := map[Pair]bool{}
		for i := 0; i < len(all); i++ {
			if all[i].removed {
				continue
			}
			for j := i + 1; j < len(all); j++ {
				if all[j].removed {
					continue
				}
				if all[i].box.Overlaps(&all[j].box) {
					want[canonPair(all[i].data, all[j].data)] = true
				}
			}
		}

		ctx := NewPairContext()
		bp.QueryPairs(ctx)
		got := map[Pair]bool{}
		for _, p := range ctx.Pairs {
			got[canonPair(p.A, p.B)] = true
		}
		if len(got) != len(want) {
			t.Fatalf("pair count mismatch: got %d want %d", len(got), len(want))
		}
		for p := range want {
			if !got[p] {
				t.Fatalf("missing expected pair %v", p)
			}
		}
	}

	assertMatchesBruteForce(t)

	// Remove 50 at random and re-query: the ground-truth set recomputed
	// over the survivors must still equal the broadphase's pair set.
	order := rng.Perm(len(all))
	for _, idx := range order[:50] {
		bp.Remove(all[idx].handle)
		all[idx].removed = true
	}
	assertMatchesBruteForce(t)
}

func canonPair(a, b uint64) Pair {
	if a < b {
		return Pair{a, b}
	}
	return Pair{b, a}
}

func TestBroadphaseRayQueryFindsAlignedBox(t *testing.T) {
	bp := NewBroadphase(0.0)
	box := aabbAt(5, 0, 0, 1)
	bp.Insert(&box, 99)
	start := lin.V3{X: -5, Y: 0, Z: 0}
	end := lin.V3{X: 15, Y: 0, Z: 0}
	var hits []RayHit
	bp.RayQuery(&start, &end, &hits)
	if len(hits) != 1 || hits[0].Userdata != 99 {
		t.Fatalf("expected one hit with userdata 99, got %v", hits)
	}

	missStart := lin.V3{X: -5, Y: 10, Z: 0}
	missEnd := lin.V3{X: 15, Y: 10, Z: 0}
	bp.RayQuery(&missStart, &missEnd, &hits)
	if len(hits) != 0 {
		t.Fatalf("expected no hits for a ray above the box, got %v", hits)
	}
}

func TestBroadphaseVolumeQuery(t *testing.T) {
	bp := NewBroadphase(0.0)
	a := aabbAt(0, 0, 0, 1)
	b := aabbAt(50, 0, 0, 1)
	bp.Insert(&a, 1)
	bp.Insert(&b, 2)
	query := aabbAt(0, 0, 0, 2)
	var hits []uint64
	bp.VolumeQuery(&query, &hits)
	if len(hits) != 1 || hits[0] != 1 {
		t.Fatalf("expected only leaf 1, got %v", hits)
	}
}

func TestBroadphaseHeightStaysLogarithmic(t *testing.T) {
	bp := NewBroadphase(0.0)
	rng := rand.New(rand.NewSource(11))
	n := 200
	for i := 0; i < n; i++ {
		box := aabbAt(rng.Float64()*40-20, rng.Float64()*40-20, rng.Float64()*40-20, 0.5)
		bp.Insert(&box, uint64(i))
	}
	limit := int32(2*ceilLog2(n) + 2)
	if bp.Height() > limit {
		t.Fatalf("tree height %d exceeds O(log n) bound %d", bp.Height(), limit)
	}
}

func ceilLog2(n int) int {
	bits := 0
	for v := 1; v < n; v <<= 1 {
		bits++
	}
	return bits
}
