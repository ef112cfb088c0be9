// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package lin

// AABB is an axis aligned bounding box described by its smallest and
// largest corners. It is not a collision primitive: it is the coarse
// volume used by broadphase and by composite/environment shapes to
// cull their sub-elements.
//
//	Sx, Sy, Sz -- smallest vertex (minimum point)
//	Lx, Ly, Lz -- largest vertex (maximum point)
type AABB struct {
	Sx, Sy, Sz float64
	Lx, Ly, Lz float64
}

// NewAABB returns a degenerate (inverted) box suitable as the identity
// element for repeated calls to Union.
func NewAABB() *AABB {
	return &AABB{Sx: Large, Sy: Large, Sz: Large, Lx: -Large, Ly: -Large, Lz: -Large}
}

// Set (=, copy) assigns box a's extents to box b. The updated box b is returned.
func (b *AABB) Set(a *AABB) *AABB {
	b.Sx, b.Sy, b.Sz = a.Sx, a.Sy, a.Sz
	b.Lx, b.Ly, b.Lz = a.Lx, a.Ly, a.Lz
	return b
}

// SetS sets box b's extents directly. The updated box b is returned.
func (b *AABB) SetS(sx, sy, sz, lx, ly, lz float64) *AABB {
	b.Sx, b.Sy, b.Sz = sx, sy, sz
	b.Lx, b.Ly, b.Lz = lx, ly, lz
	return b
}

// Overlaps returns true if box b and box a share any interior volume.
// Boxes that only touch along a face, edge or point do not overlap.
func (b *AABB) Overlaps(a *AABB) bool {
	return b.Lx > a.Sx && b.Sx < a.Lx &&
		b.Ly > a.Sy && b.Sy < a.Ly &&
		b.Lz > a.Sz && b.Sz < a.Lz
}

// Contains returns true if box a lies entirely within box b.
func (b *AABB) Contains(a *AABB) bool {
	return b.Sx <= a.Sx && b.Sy <= a.Sy && b.Sz <= a.Sz &&
		b.Lx >= a.Lx && b.Ly >= a.Ly && b.Lz >= a.Lz
}

// Union updates box b to be the smallest box containing both a and c.
// Box b may be used as one of the input parameters.
func (b *AABB) Union(a, c *AABB) *AABB {
	b.Sx, b.Sy, b.Sz = minf(a.Sx, c.Sx), minf(a.Sy, c.Sy), minf(a.Sz, c.Sz)
	b.Lx, b.Ly, b.Lz = maxf(a.Lx, c.Lx), maxf(a.Ly, c.Ly), maxf(a.Lz, c.Lz)
	return b
}

// Pad grows box b by the given fraction of its own extent in each
// dimension, with a small fixed floor so degenerate (zero-extent) boxes
// still gain margin. Used by broadphase insertion so that small body
// movements do not require an immediate tree update.
func (b *AABB) Pad(fraction float64) *AABB {
	dx := (b.Lx-b.Sx)*fraction + 0.01
	dy := (b.Ly-b.Sy)*fraction + 0.01
	dz := (b.Lz-b.Sz)*fraction + 0.01
	b.Sx, b.Sy, b.Sz = b.Sx-dx, b.Sy-dy, b.Sz-dz
	b.Lx, b.Ly, b.Lz = b.Lx+dx, b.Ly+dy, b.Lz+dz
	return b
}

// SurfaceArea returns the surface area of box b. Used by the broadphase
// SAH insertion cost heuristic.
func (b *AABB) SurfaceArea() float64 {
	dx, dy, dz := b.Lx-b.Sx, b.Ly-b.Sy, b.Lz-b.Sz
	if dx < 0 || dy < 0 || dz < 0 {
		return 0
	}
	return 2 * (dx*dy + dy*dz + dz*dx)
}

// Center returns the midpoint of box b.
func (b *AABB) Center() (x, y, z float64) {
	return (b.Sx + b.Lx) * 0.5, (b.Sy + b.Ly) * 0.5, (b.Sz + b.Lz) * 0.5
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
