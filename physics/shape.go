// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"math"

	"github.com/gazed/rigid/math/lin"
)

// Kind tags the variant a Shape holds. Collision dispatch (dispatch.go)
// indexes a kinds×kinds table with this value.
type Kind int

// Enumerate the shape kinds the engine understands. Sphere through Mesh
// are convex primitives usable as collider shapes; Environment and
// Composite are containers that recurse into their own sub-elements;
// Triangle is fabricated transiently during Environment traversal and
// never appears as a stored collider shape.
const (
	SphereShape Kind = iota
	CubeShape
	CapsuleShape
	CylinderShape
	ConeShape
	MeshShape
	EnvironmentShape
	CompositeShape
	TriangleShape
	numShapeKinds
)

// MassInfo is the result of the mass-property black box named in the
// engine's scope notes: given a shape and a density, it returns the total
// mass and the model-space diagonal inertia tensor (the shape's local axes
// are assumed to be its principal axes, true for every primitive below).
type MassInfo struct {
	Mass    float64
	Inertia lin.V3
}

// Shape is a collision primitive in local space, centered at the origin.
// Each primitive carries its own dimensions (radius, half-extents, half
// height) in local units. Shapes are shared and immutable once built.
type Shape interface {
	Kind() Kind

	// Support returns the shape's farthest point, in model space, along
	// direction dir. dir need not be normalized.
	Support(dir *lin.V3) lin.V3

	// Aabb updates and returns ab to be the world-space axis aligned
	// bounding box of the shape under transform t, inflated by margin.
	Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB

	Volume() float64
	MassInfo(density float64) MassInfo
}

// safeDivide implements the engine's degeneracy guard: dividing by a
// near-zero denominator yields zero rather than Inf/NaN.
func safeDivide(a, b float64) float64 {
	if math.Abs(b) < lin.Epsilon {
		return 0
	}
	return a / b
}

// Sphere
// ============================================================================

// Sphere is a ball of the given radius centered at the origin.
type Sphere struct {
	Radius float64
}

// NewSphere creates a Sphere shape. A negative radius is made positive.
func NewSphere(radius float64) *Sphere { return &Sphere{Radius: math.Abs(radius)} }

func (s *Sphere) Kind() Kind { return SphereShape }

func (s *Sphere) Support(dir *lin.V3) lin.V3 {
	unit := lin.NewV3().Set(dir).Unit()
	return *unit.Scale(unit, s.Radius)
}

func (s *Sphere) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	r := s.Radius + margin
	ab.SetS(t.Loc.X-r, t.Loc.Y-r, t.Loc.Z-r, t.Loc.X+r, t.Loc.Y+r, t.Loc.Z+r)
	return ab
}

func (s *Sphere) Volume() float64 { return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius }

func (s *Sphere) MassInfo(density float64) MassInfo {
	mass := density * s.Volume()
	elem := 0.4 * mass * s.Radius * s.Radius
	return MassInfo{Mass: mass, Inertia: lin.V3{X: elem, Y: elem, Z: elem}}
}

// Cube
// ============================================================================

// Cube is an axis-aligned box centered at the origin, described by
// half-extents along each axis.
type Cube struct {
	Hx, Hy, Hz float64
}

// NewCube creates a Cube shape from half-extents. Negative inputs are
// made positive.
func NewCube(hx, hy, hz float64) *Cube {
	return &Cube{math.Abs(hx), math.Abs(hy), math.Abs(hz)}
}

func (c *Cube) Kind() Kind { return CubeShape }

func (c *Cube) Support(dir *lin.V3) lin.V3 {
	x, y, z := c.Hx, c.Hy, c.Hz
	if dir.X < 0 {
		x = -x
	}
	if dir.Y < 0 {
		y = -y
	}
	if dir.Z < 0 {
		z = -z
	}
	return lin.V3{X: x, Y: y, Z: z}
}

func (c *Cube) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	xx, xy, xz := lin.MultSQ(1, 0, 0, t.Rot)
	yx, yy, yz := lin.MultSQ(0, 1, 0, t.Rot)
	zx, zy, zz := lin.MultSQ(0, 0, 1, t.Rot)
	xx, xy, xz = math.Abs(xx), math.Abs(xy), math.Abs(xz)
	yx, yy, yz = math.Abs(yx), math.Abs(yy), math.Abs(yz)
	zx, zy, zz = math.Abs(zx), math.Abs(zy), math.Abs(zz)

	hmx, hmy, hmz := c.Hx+margin, c.Hy+margin, c.Hz+margin
	ex := hmx*xx + hmy*xy + hmz*xz
	ey := hmx*yx + hmy*yy + hmz*yz
	ez := hmx*zx + hmy*zy + hmz*zz

	ab.SetS(t.Loc.X-ex, t.Loc.Y-ey, t.Loc.Z-ez, t.Loc.X+ex, t.Loc.Y+ey, t.Loc.Z+ez)
	return ab
}

func (c *Cube) Volume() float64 { return c.Hx * 2 * c.Hy * 2 * c.Hz * 2 }

func (c *Cube) MassInfo(density float64) MassInfo {
	mass := density * c.Volume()
	lx2, ly2, lz2 := 4.0*c.Hx*c.Hx, 4.0*c.Hy*c.Hy, 4.0*c.Hz*c.Hz
	return MassInfo{Mass: mass, Inertia: lin.V3{
		X: mass / 12.0 * (ly2 + lz2),
		Y: mass / 12.0 * (lx2 + lz2),
		Z: mass / 12.0 * (lx2 + ly2),
	}}
}

// Capsule
// ============================================================================

// Capsule is a cylinder of the given radius capped with hemispheres, its
// axis along model-space Y, spanning from -HalfHeight to +HalfHeight
// before the cap radii are added.
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

// NewCapsule creates a Capsule shape.
func NewCapsule(radius, halfHeight float64) *Capsule {
	return &Capsule{math.Abs(radius), math.Abs(halfHeight)}
}

func (c *Capsule) Kind() Kind { return CapsuleShape }

func (c *Capsule) Support(dir *lin.V3) lin.V3 {
	unit := lin.NewV3().Set(dir).Unit()
	p := lin.NewV3().Scale(unit, c.Radius)
	if dir.Y >= 0 {
		p.Y += c.HalfHeight
	} else {
		p.Y -= c.HalfHeight
	}
	return *p
}

func (c *Capsule) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	return capsuleLikeAabb(t, c.Radius, c.HalfHeight, margin, ab)
}

func (c *Capsule) Volume() float64 {
	cylinder := math.Pi * c.Radius * c.Radius * (2 * c.HalfHeight)
	caps := 4.0 / 3.0 * math.Pi * c.Radius * c.Radius * c.Radius
	return cylinder + caps
}

func (c *Capsule) MassInfo(density float64) MassInfo {
	mass := density * c.Volume()
	// Treat as a cylinder for the inertia estimate; the hemispherical
	// caps contribute comparatively little mass at typical aspect ratios.
	h := 2 * c.HalfHeight
	iy := 0.5 * mass * c.Radius * c.Radius
	ix := mass / 12.0 * (3*c.Radius*c.Radius + h*h)
	return MassInfo{Mass: mass, Inertia: lin.V3{X: ix, Y: iy, Z: ix}}
}

// Cylinder
// ============================================================================

// Cylinder has its axis along model-space Y, radius Radius, and spans
// from -HalfHeight to +HalfHeight.
type Cylinder struct {
	Radius     float64
	HalfHeight float64
}

// NewCylinder creates a Cylinder shape.
func NewCylinder(radius, halfHeight float64) *Cylinder {
	return &Cylinder{math.Abs(radius), math.Abs(halfHeight)}
}

func (c *Cylinder) Kind() Kind { return CylinderShape }

func (c *Cylinder) Support(dir *lin.V3) lin.V3 {
	sideLenSqr := dir.X*dir.X + dir.Z*dir.Z
	var x, z float64
	if sideLenSqr > lin.Epsilon {
		s := c.Radius / math.Sqrt(sideLenSqr)
		x, z = dir.X*s, dir.Z*s
	}
	y := c.HalfHeight
	if dir.Y < 0 {
		y = -c.HalfHeight
	}
	return lin.V3{X: x, Y: y, Z: z}
}

func (c *Cylinder) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	return capsuleLikeAabb(t, c.Radius, c.HalfHeight, margin, ab)
}

func capsuleLikeAabb(t *lin.T, radius, halfHeight, margin float64, ab *lin.AABB) *lin.AABB {
	r := radius + margin
	top := lin.NewV3().AppT(t, &lin.V3{X: 0, Y: halfHeight, Z: 0})
	bot := lin.NewV3().AppT(t, &lin.V3{X: 0, Y: -halfHeight, Z: 0})
	ab.SetS(
		math.Min(top.X, bot.X)-r, math.Min(top.Y, bot.Y)-r, math.Min(top.Z, bot.Z)-r,
		math.Max(top.X, bot.X)+r, math.Max(top.Y, bot.Y)+r, math.Max(top.Z, bot.Z)+r,
	)
	return ab
}

func (c *Cylinder) Volume() float64 { return math.Pi * c.Radius * c.Radius * (2 * c.HalfHeight) }

func (c *Cylinder) MassInfo(density float64) MassInfo {
	mass := density * c.Volume()
	h := 2 * c.HalfHeight
	iy := 0.5 * mass * c.Radius * c.Radius
	ix := mass / 12.0 * (3*c.Radius*c.Radius + h*h)
	return MassInfo{Mass: mass, Inertia: lin.V3{X: ix, Y: iy, Z: ix}}
}

// Cone
// ============================================================================

// Cone has its apex at +HalfHeight on model-space Y and a base circle of
// Radius at -HalfHeight.
type Cone struct {
	Radius     float64
	HalfHeight float64
}

// NewCone creates a Cone shape.
func NewCone(radius, halfHeight float64) *Cone {
	return &Cone{math.Abs(radius), math.Abs(halfHeight)}
}

func (c *Cone) Kind() Kind { return ConeShape }

func (c *Cone) Support(dir *lin.V3) lin.V3 {
	apex := lin.V3{X: 0, Y: c.HalfHeight, Z: 0}
	sideLenSqr := dir.X*dir.X + dir.Z*dir.Z
	var rim lin.V3
	rim.Y = -c.HalfHeight
	if sideLenSqr > lin.Epsilon {
		s := c.Radius / math.Sqrt(sideLenSqr)
		rim.X, rim.Z = dir.X*s, dir.Z*s
	}
	h := 2 * c.HalfHeight
	sinHalfAngle := c.Radius / math.Sqrt(c.Radius*c.Radius+h*h)
	if dir.Y > dir.Len()*sinHalfAngle {
		return apex
	}
	return rim
}

func (c *Cone) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	return capsuleLikeAabb(t, c.Radius, c.HalfHeight, margin, ab)
}

func (c *Cone) Volume() float64 { return math.Pi * c.Radius * c.Radius * (2 * c.HalfHeight) / 3.0 }

func (c *Cone) MassInfo(density float64) MassInfo {
	mass := density * c.Volume()
	h := 2 * c.HalfHeight
	iy := 3.0 / 10.0 * mass * c.Radius * c.Radius
	ix := mass * (3.0/20.0*c.Radius*c.Radius + 3.0/80.0*h*h)
	return MassInfo{Mass: mass, Inertia: lin.V3{X: ix, Y: iy, Z: ix}}
}

// Mesh (convex hull)
// ============================================================================

// Mesh is a convex hull given by its model-space vertices.
type Mesh struct {
	Vertices []lin.V3
}

// NewMesh creates a Mesh shape from a set of vertices assumed to already
// describe a convex hull.
func NewMesh(vertices []lin.V3) *Mesh { return &Mesh{Vertices: vertices} }

func (m *Mesh) Kind() Kind { return MeshShape }

func (m *Mesh) Support(dir *lin.V3) lin.V3 {
	best := 0
	bestDot := -math.MaxFloat64
	for i, v := range m.Vertices {
		d := v.Dot(dir)
		if d > bestDot {
			bestDot, best = d, i
		}
	}
	if len(m.Vertices) == 0 {
		return lin.V3{}
	}
	return m.Vertices[best]
}

func (m *Mesh) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	box := lin.NewAABB()
	for i := range m.Vertices {
		wx, wy, wz := t.AppS(m.Vertices[i].X, m.Vertices[i].Y, m.Vertices[i].Z)
		point := lin.AABB{Sx: wx, Sy: wy, Sz: wz, Lx: wx, Ly: wy, Lz: wz}
		box.Union(box, &point)
	}
	box.Sx, box.Sy, box.Sz = box.Sx-margin, box.Sy-margin, box.Sz-margin
	box.Lx, box.Ly, box.Lz = box.Lx+margin, box.Ly+margin, box.Lz+margin
	*ab = *box
	return ab
}

func (m *Mesh) Volume() float64 {
	// Mesh mass properties are the compute_mass black box named in the
	// engine's scope notes; approximate via the AABB volume of the hull
	// in model space as a stand-in, since no concrete mesh integrator is
	// specified.
	box := lin.NewAABB()
	for i := range m.Vertices {
		point := lin.AABB{Sx: m.Vertices[i].X, Sy: m.Vertices[i].Y, Sz: m.Vertices[i].Z,
			Lx: m.Vertices[i].X, Ly: m.Vertices[i].Y, Lz: m.Vertices[i].Z}
		box.Union(box, &point)
	}
	return (box.Lx - box.Sx) * (box.Ly - box.Sy) * (box.Lz - box.Sz)
}

// recenterMesh shifts m's vertices so their centroid sits at the origin,
// approximating the hull's true volumetric center of mass (no face/winding
// data is kept to integrate the exact one, per the compute_mass black box
// named in the engine's scope notes).
func recenterMesh(m *Mesh) {
	if len(m.Vertices) == 0 {
		return
	}
	var centroid lin.V3
	for _, v := range m.Vertices {
		centroid.X += v.X
		centroid.Y += v.Y
		centroid.Z += v.Z
	}
	n := float64(len(m.Vertices))
	centroid.X, centroid.Y, centroid.Z = centroid.X/n, centroid.Y/n, centroid.Z/n
	for i := range m.Vertices {
		m.Vertices[i].X -= centroid.X
		m.Vertices[i].Y -= centroid.Y
		m.Vertices[i].Z -= centroid.Z
	}
}

func (m *Mesh) MassInfo(density float64) MassInfo {
	mass := density * m.Volume()
	box := lin.NewAABB()
	for i := range m.Vertices {
		point := lin.AABB{Sx: m.Vertices[i].X, Sy: m.Vertices[i].Y, Sz: m.Vertices[i].Z,
			Lx: m.Vertices[i].X, Ly: m.Vertices[i].Y, Lz: m.Vertices[i].Z}
		box.Union(box, &point)
	}
	lx2 := (box.Lx - box.Sx) * (box.Lx - box.Sx)
	ly2 := (box.Ly - box.Sy) * (box.Ly - box.Sy)
	lz2 := (box.Lz - box.Sz) * (box.Lz - box.Sz)
	return MassInfo{Mass: mass, Inertia: lin.V3{
		X: mass / 12.0 * (ly2 + lz2),
		Y: mass / 12.0 * (lx2 + lz2),
		Z: mass / 12.0 * (lx2 + ly2),
	}}
}

// Triangle (transient)
// ============================================================================

// Triangle is fabricated by Environment traversal for each hit leaf; it is
// never a stored collider shape. TriHandle carries the stable per-triangle
// handle spec §4.2 asks for, encoded in a reserved slot so it can travel
// alongside the three vertices without a separate lookup.
type Triangle struct {
	A, B, C  lin.V3
	TriHandle uint64
}

func (tr *Triangle) Kind() Kind { return TriangleShape }

func (tr *Triangle) Support(dir *lin.V3) lin.V3 {
	best := tr.A
	bestDot := tr.A.Dot(dir)
	if d := tr.B.Dot(dir); d > bestDot {
		bestDot, best = d, tr.B
	}
	if d := tr.C.Dot(dir); d > bestDot {
		best = tr.C
	}
	return best
}

func (tr *Triangle) Aabb(t *lin.T, ab *lin.AABB, margin float64) *lin.AABB {
	box := lin.NewAABB()
	for _, v := range [...]lin.V3{tr.A, tr.B, tr.C} {
		wx, wy, wz := t.AppS(v.X, v.Y, v.Z)
		point := lin.AABB{Sx: wx, Sy: wy, Sz: wz, Lx: wx, Ly: wy, Lz: wz}
		box.Union(box, &point)
	}
	box.Sx, box.Sy, box.Sz = box.Sx-margin, box.Sy-margin, box.Sz-margin
	box.Lx, box.Ly, box.Lz = box.Lx+margin, box.Ly+margin, box.Lz+margin
	*ab = *box
	return ab
}

func (tr *Triangle) Volume() float64 { return 0 }

func (tr *Triangle) MassInfo(density float64) MassInfo { return MassInfo{} }
