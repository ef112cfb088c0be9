// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

import "testing"

func TestAABBOverlaps(t *testing.T) {
	a := (&AABB{}).SetS(0, 0, 0, 1, 1, 1)
	b := (&AABB{}).SetS(0.5, 0.5, 0.5, 2, 2, 2)
	if !a.Overlaps(b) {
		t.Error("expected overlap")
	}
	c := (&AABB{}).SetS(1, 1, 1, 2, 2, 2)
	if a.Overlaps(c) {
		t.Error("boxes touching at a single point should not overlap")
	}
}

func TestAABBUnion(t *testing.T) {
	a := (&AABB{}).SetS(0, 0, 0, 1, 1, 1)
	b := (&AABB{}).SetS(-1, 2, 0, 3, 3, 0.5)
	u := (&AABB{}).Union(a, b)
	want := AABB{Sx: -1, Sy: 0, Sz: 0, Lx: 3, Ly: 3, Lz: 1}
	if *u != want {
		t.Errorf("got %+v want %+v", *u, want)
	}
}

func TestAABBPadContainsOriginal(t *testing.T) {
	a := (&AABB{}).SetS(0, 0, 0, 1, 1, 1)
	padded := (&AABB{}).Set(a).Pad(0.1)
	if !padded.Contains(a) {
		t.Error("padded box must contain the original")
	}
}

func TestAABBSurfaceArea(t *testing.T) {
	a := (&AABB{}).SetS(0, 0, 0, 1, 2, 3)
	got := a.SurfaceArea()
	want := 2.0 * (1*2 + 2*3 + 3*1)
	if !Aeq(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}
