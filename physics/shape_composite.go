// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// SubShape is one instance inside a Composite: a shared shape placed at a
// fixed local transform relative to the composite's own origin.
type SubShape struct {
	Shape Shape
	Local lin.T
}

// Composite is a rigid assembly of sub-shape instances, each at a fixed
// local transform. It owns a static broadphase over its sub-shapes'
// local-space AABBs so that narrowphase dispatch (dispatch.go) can cull
// which sub-shapes to recurse into instead of testing every one.
type Composite struct {
	Subs   []SubShape
	bp     *Broadphase
	handles []BPHandle
}

// NewComposite builds a Composite from its sub-shape instances and
// populates its internal broadphase. Per spec §6, composite construction
// re-centers the assembly to its center of mass; callers that need that
// behavior should build with CenterOfMassShift after mass properties are
// known (the shift is a pure translation of every Local.Loc and is left to
// the shape registry, since it depends on per-submodel density).
func NewComposite(subs []SubShape) *Composite {
	c := &Composite{Subs: subs, bp: NewBroadphase(0)}
	for i := range c.Subs {
		var ab lin.AABB
		c.Subs[i].Shape.Aabb(&c.Subs[i].Local, &ab, 0)
		c.handles = append(c.handles, c.bp.Insert(&ab, uint64(i)))
	}
	return c
}

func (c *Composite) Kind() Kind { return CompositeShape }

func (c *Composite) Support(dir *lin.V3) lin.V3 {
	// A composite has no single convex support; narrowphase never calls
	// GJK/EPA directly on a Composite, it recurses into sub-shapes first
	// (dispatch.go). This is provided only to satisfy the Shape interface.
	best := lin.V3{}
	bestDot := -1e300
	for i := range c.Subs {
		local := c.Subs[i].Shape.Support(dir)
		world := lin.NewV3().AppT(&c.Subs[i].Local, &local)
		if d := world.Dot(dir); d > bestDot {
			bestDot, best = d, *world
		}
	}
	return best
}

func (c *Composite) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	box := lin.NewAABB()
	for i := range c.Subs {
		combined := lin.NewT()
		combined.Mult(t, &c.Subs[i].Local)
		var subBox lin.AABB
		c.Subs[i].Shape.Aabb(combined, &subBox, 0)
		box.Union(box, &subBox)
	}
	box.Sx, box.Sy, box.Sz = box.Sx-margin, box.Sy-margin, box.Sz-margin
	box.Lx, box.Ly, box.Lz = box.Lx+margin, box.Ly+margin, box.Lz+margin
	*ab = *box
	return ab
}

func (c *Composite) Volume() float64 {
	total := 0.0
	for i := range c.Subs {
		total += c.Subs[i].Shape.Volume()
	}
	return total
}

func (c *Composite) MassInfo(density float64) MassInfo {
	var total MassInfo
	for i := range c.Subs {
		sub := c.Subs[i].Shape.MassInfo(density)
		total.Mass += sub.Mass
		// Parallel-axis shift: I' = I + m*(r^2*identity - r⊗r), diagonal
		// approximation using squared offset per axis (off-diagonal terms
		// are not tracked since Body stores a diagonal inertia only).
		loc := c.Subs[i].Local.Loc
		r2 := loc.X*loc.X + loc.Y*loc.Y + loc.Z*loc.Z
		total.Inertia.X += sub.Inertia.X + sub.Mass*(r2-loc.X*loc.X)
		total.Inertia.Y += sub.Inertia.Y + sub.Mass*(r2-loc.Y*loc.Y)
		total.Inertia.Z += sub.Inertia.Z + sub.Mass*(r2-loc.Z*loc.Z)
	}
	return total
}

// QuerySubs appends to hits the index of every sub-shape whose local-space
// AABB overlaps box (already expressed in the composite's local space).
func (c *Composite) QuerySubs(box *lin.AABB, hits *[]uint64) {
	c.bp.VolumeQuery(box, hits)
}

// CenterOfMass returns the composite's center of mass in its own local
// space, weighting each sub-shape by its volume as a uniform-density proxy
// for mass (sub-shapes carry no density of their own).
func (c *Composite) CenterOfMass() lin.V3 {
	var com lin.V3
	totalVolume := 0.0
	for i := range c.Subs {
		v := c.Subs[i].Shape.Volume()
		loc := c.Subs[i].Local.Loc
		com.X += loc.X * v
		com.Y += loc.Y * v
		com.Z += loc.Z * v
		totalVolume += v
	}
	if totalVolume <= 0 {
		return lin.V3{}
	}
	com.X, com.Y, com.Z = com.X/totalVolume, com.Y/totalVolume, com.Z/totalVolume
	return com
}

// Recenter shifts every sub-shape's local transform so the composite's
// center of mass sits at its own origin, then rebuilds the internal
// broadphase over the shifted AABBs. Called once by World.AddShape;
// recentering a composite already in use by a live collider would
// invalidate its colliders' cached model AABB.
func (c *Composite) Recenter() {
	com := c.CenterOfMass()
	if com.X == 0 && com.Y == 0 && com.Z == 0 {
		return
	}
	for _, h := range c.handles {
		c.bp.Remove(h)
	}
	c.handles = c.handles[:0]
	for i := range c.Subs {
		c.Subs[i].Local.Loc.X -= com.X
		c.Subs[i].Local.Loc.Y -= com.Y
		c.Subs[i].Local.Loc.Z -= com.Z
		var ab lin.AABB
		c.Subs[i].Shape.Aabb(&c.Subs[i].Local, &ab, 0)
		c.handles = append(c.handles, c.bp.Insert(&ab, uint64(i)))
	}
}

// EnvTriangle is one triangle of an Environment's static soup, carrying the
// stable per-triangle handle spec §4.2 asks for.
type EnvTriangle struct {
	A, B, C lin.V3
}

// Environment is an immutable static triangle soup (e.g. terrain or level
// geometry). It owns a static broadphase over its triangles' AABBs so
// narrowphase dispatch can fabricate Triangle shapes only for the
// triangles whose AABB overlaps the other collider, per spec §4.2.
type Environment struct {
	Triangles []EnvTriangle
	bp        *Broadphase
}

// NewEnvironment builds an Environment from its triangle soup and
// populates its internal broadphase, in the environment's own local space
// (an Environment typically sits at a fixed world transform, usually
// identity).
func NewEnvironment(triangles []EnvTriangle) *Environment {
	e := &Environment{Triangles: triangles, bp: NewBroadphase(0)}
	for i := range e.Triangles {
		box := lin.NewAABB()
		for _, v := range [...]lin.V3{e.Triangles[i].A, e.Triangles[i].B, e.Triangles[i].C} {
			point := lin.AABB{Sx: v.X, Sy: v.Y, Sz: v.Z, Lx: v.X, Ly: v.Y, Lz: v.Z}
			box.Union(box, &point)
		}
		e.bp.Insert(box, uint64(i))
	}
	return e
}

func (e *Environment) Kind() Kind { return EnvironmentShape }

func (e *Environment) Support(dir *lin.V3) lin.V3 { return lin.V3{} }

func (e *Environment) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	box := lin.NewAABB()
	for i := range e.Triangles {
		for _, v := range [...]lin.V3{e.Triangles[i].A, e.Triangles[i].B, e.Triangles[i].C} {
			wx, wy, wz := t.AppS(v.X, v.Y, v.Z)
			point := lin.AABB{Sx: wx, Sy: wy, Sz: wz, Lx: wx, Ly: wy, Lz: wz}
			box.Union(box, &point)
		}
	}
	box.Sx, box.Sy, box.Sz = box.Sx-margin, box.Sy-margin, box.Sz-margin
	box.Lx, box.Ly, box.Lz = box.Lx+margin, box.Ly+margin, box.Lz+margin
	*ab = *box
	return ab
}

func (e *Environment) Volume() float64 { return 0 }

func (e *Environment) MassInfo(density float64) MassInfo { return MassInfo{} }

// QueryTriangles appends to hits the index of every triangle whose
// local-space AABB overlaps box (already expressed in the environment's
// local space).
func (e *Environment) QueryTriangles(box *lin.AABB, hits *[]uint64) {
	e.bp.VolumeQuery(box, hits)
}

// Triangle fabricates a transient Triangle shape for hit index i, encoding
// the stable per-triangle handle in TriHandle per spec §4.2.
func (e *Environment) Triangle(i uint64) *Triangle {
	tri := e.Triangles[i]
	return &Triangle{A: tri.A, B: tri.B, C: tri.C, TriHandle: i}
}
