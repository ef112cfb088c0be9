// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

// caster contains ray casting logic, separate from full collision
// tracking: it answers "what does this line segment touch?" rather than
// "what overlaps what this substep?".

import (
	"math"
	"sort"

	"github.com/gazed/rigid/math/lin"
)

// lineCastIterationCap bounds the conservative-advancement walk used for
// the general convex shape kinds, mirroring the engine's GJK iteration
// caps elsewhere.
const lineCastIterationCap = 20

// LineCastHit is one body struck by LineCastAll, in world space.
type LineCastHit struct {
	Body   BodyHandle
	Point  lin.V3
	Normal lin.V3
	DistSq float64
}

// LineCastAll finds every enabled collider the segment start->end passes
// through, ordered nearest-to-start first (ascending squared distance),
// matching the engine's sort order for a multi-hit line cast.
func (w *World) LineCastAll(start, end lin.V3) []LineCastHit {
	w.rayHits = w.rayHits[:0]
	w.bp.RayQuery(&start, &end, &w.rayHits)

	var hits []LineCastHit
	for _, rh := range w.rayHits {
		bh := userdataToHandle(rh.Userdata)
		b, ok := w.bodies.Get(bh)
		if !ok || !b.HasCollider || !b.Collider.Enabled {
			continue
		}
		shape, ok := w.shapes.Get(b.Collider.ShapeHandle)
		if !ok {
			continue
		}

		localStart, localEnd := start, end
		b.Pose.Inv(&localStart)
		b.Pose.Inv(&localEnd)

		found, point, normal := lineCastShape(*shape, localStart, localEnd)
		if !found {
			continue
		}
		b.Pose.App(&point)
		worldNormal := *lin.NewV3().MultvQ(&normal, b.Pose.Rot)
		dist := lin.NewV3().Sub(&point, &start)
		hits = append(hits, LineCastHit{Body: bh, Point: point, Normal: worldNormal, DistSq: dist.LenSqr()})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].DistSq < hits[j].DistSq })
	return hits
}

// lineCastShape tests segment start->end, already expressed in shape's own
// local space, returning the nearest entry point and surface normal (also
// in that local space) if the segment enters the shape.
func lineCastShape(shape Shape, start, end lin.V3) (hit bool, point, normal lin.V3) {
	switch s := shape.(type) {
	case *Sphere:
		return lineCastSphere(s, start, end)
	case *Cube:
		return lineCastCube(s, start, end)
	case *Composite:
		return lineCastComposite(s, start, end)
	case *Environment:
		return lineCastEnvironment(s, start, end)
	default:
		// Capsule, Cylinder, Cone, Mesh: general convex walk, ported from
		// the engine's own conservative-advancement line cast.
		return lineCastConvex(shape, start, end)
	}
}

// lineCastSphere is the closed-form case: the sphere sits at the local
// origin, so the ray-sphere quadratic reduces to the engine's own
// dot-product form.
func lineCastSphere(s *Sphere, start, end lin.V3) (hit bool, point, normal lin.V3) {
	rdir := lin.NewV3().Sub(&end, &start)
	length := rdir.Len()
	if length < lin.Epsilon {
		return false, lin.V3{}, lin.V3{}
	}
	dir := *lin.NewV3().Scale(rdir, 1/length)
	toCenter := *lin.NewV3().Neg(&start)
	d0 := dir.Dot(&toCenter)
	if d0 < 0 {
		return false, lin.V3{}, lin.V3{}
	}
	radius2 := s.Radius * s.Radius
	d1 := toCenter.Dot(&toCenter) - d0*d0
	if d1 > radius2 {
		return false, lin.V3{}, lin.V3{}
	}
	dlen := d0 - math.Sqrt(radius2-d1)
	if dlen < 0 || dlen > length {
		return false, lin.V3{}, lin.V3{}
	}
	point = lin.V3{X: dir.X*dlen + start.X, Y: dir.Y*dlen + start.Y, Z: dir.Z*dlen + start.Z}
	normal = *lin.NewV3().Scale(&point, 1/s.Radius)
	return true, point, normal
}

// aabbLineIntersect runs the slab method against box for the segment
// start, start+dir (dir not normalized, t parameterizes [0,1] across the
// segment), returning the entry t and which axis/sign produced it.
func aabbLineIntersect(box *lin.AABB, start, dir lin.V3) (t float64, axis int, sign float64, hit bool) {
	tmin, tmax := 0.0, 1.0
	axis = -1
	mins := [3]float64{box.Sx, box.Sy, box.Sz}
	maxs := [3]float64{box.Lx, box.Ly, box.Lz}
	o := [3]float64{start.X, start.Y, start.Z}
	d := [3]float64{dir.X, dir.Y, dir.Z}

	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < lin.Epsilon {
			if o[i] < mins[i] || o[i] > maxs[i] {
				return 0, -1, 0, false
			}
			continue
		}
		inv := 1 / d[i]
		t1, t2 := (mins[i]-o[i])*inv, (maxs[i]-o[i])*inv
		s := -1.0
		if t1 > t2 {
			t1, t2, s = t2, t1, 1.0
		}
		if t1 > tmin {
			tmin, axis, sign = t1, i, s
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, -1, 0, false
		}
	}
	if axis == -1 {
		return 0, -1, 0, false // segment starts inside the box: no entry face
	}
	return tmin, axis, sign, true
}

// lineCastCube uses the cube's own half-extents as an exact slab test,
// grounded on the engine's AABB-based cube cast.
func lineCastCube(c *Cube, start, end lin.V3) (hit bool, point, normal lin.V3) {
	box := lin.AABB{Sx: -c.Hx, Sy: -c.Hy, Sz: -c.Hz, Lx: c.Hx, Ly: c.Hy, Lz: c.Hz}
	dir := *lin.NewV3().Sub(&end, &start)
	t, axis, sign, ok := aabbLineIntersect(&box, start, dir)
	if !ok {
		return false, lin.V3{}, lin.V3{}
	}
	point = lin.V3{X: start.X + dir.X*t, Y: start.Y + dir.Y*t, Z: start.Z + dir.Z*t}
	switch axis {
	case 0:
		normal = lin.V3{X: sign}
	case 1:
		normal = lin.V3{Y: sign}
	case 2:
		normal = lin.V3{Z: sign}
	}
	return true, point, normal
}

// lineCastConvex is conservative advancement against a single shape's
// support function: the segment is treated as a degenerate point sliding
// from start towards end, and the simplex machinery that EPA/GJK already
// use (doSimplex et al. in gjk.go) finds when that sliding point first
// touches the shape's surface. Ported from the engine's own line-cast
// walk; onA of each pushed simplexVertex is repurposed to hold the
// support point on the shape rather than a second shape's witness, so the
// lower-bound update can re-derive every live vertex's position without
// re-querying Support.
func lineCastConvex(shape Shape, start, end lin.V3) (hit bool, point, normal lin.V3) {
	rayDir := *lin.NewV3().Sub(&end, &start)
	startDir := start
	firstSupport := shape.Support(&startDir)
	searchDir := *lin.NewV3().Sub(&start, &firstSupport)

	sx := &simplex{}
	lowerBound := 0.0
	var curNormal lin.V3
	found := false

	for iter := 0; iter < lineCastIterationCap; iter++ {
		if searchDir.LenSqr() < lin.Epsilon {
			searchDir = lin.V3{Y: 1}
		}
		lowerPoint := *lin.NewV3().Lerp(&start, &end, lowerBound)
		supportOnC := shape.Support(&searchDir)
		curPoint := *lin.NewV3().Sub(&lowerPoint, &supportOnC)

		searchDotSupport := searchDir.Dot(&curPoint)
		searchDotRay := searchDir.Dot(&rayDir)
		if searchDotSupport > 0 {
			if searchDotRay >= 0 {
				return false, lin.V3{}, lin.V3{}
			}
			lowerBound -= searchDotSupport / searchDotRay
			if lowerBound > 1 {
				return false, lin.V3{}, lin.V3{}
			}
			curNormal = searchDir
			newLowerPoint := *lin.NewV3().Lerp(&start, &end, lowerBound)
			for i := 0; i < sx.num; i++ {
				sx.v[i].point = *lin.NewV3().Sub(&newLowerPoint, &sx.v[i].onA)
			}
			curPoint = *lin.NewV3().Sub(&newLowerPoint, &supportOnC)
		}

		// The lower bound has advanced onto the shape's surface (curPoint
		// within tolerance of the Minkowski difference's zero point):
		// conservative advancement is done. Needed for rays through a
		// symmetric shape's center, where the simplex reduction below can
		// otherwise degenerate to a zero search direction and never
		// terminate on its own.
		if curPoint.LenSqr() < lin.Epsilon {
			found = true
			break
		}

		sx.pushFront(simplexVertex{point: curPoint, onA: supportOnC})
		if sx.num < 2 {
			searchDir = *lin.NewV3().Neg(&sx.v[0].point)
			continue
		}
		if doSimplex(sx, &searchDir) {
			found = true
			break
		}
	}

	if !found {
		return false, lin.V3{}, lin.V3{}
	}
	point = *lin.NewV3().Lerp(&start, &end, lowerBound)
	normal = *lin.NewV3().Set(&curNormal).Unit()
	return true, point, normal
}

// segmentAABB returns the (degenerate) world-style box enclosing start and
// end, used to cull a Composite/Environment's children the same way
// dispatch.go culls them for overlap testing.
func segmentAABB(start, end lin.V3) lin.AABB {
	var box lin.AABB
	box.SetS(
		math.Min(start.X, end.X), math.Min(start.Y, end.Y), math.Min(start.Z, end.Z),
		math.Max(start.X, end.X), math.Max(start.Y, end.Y), math.Max(start.Z, end.Z),
	)
	return box
}

// lineCastComposite recurses into every sub-shape whose local AABB the
// segment's bounding box overlaps, keeping the nearest-to-start hit.
func lineCastComposite(c *Composite, start, end lin.V3) (hit bool, point, normal lin.V3) {
	box := segmentAABB(start, end)
	var subHits []uint64
	c.QuerySubs(&box, &subHits)

	bestDist := math.MaxFloat64
	found := false
	for _, idx := range subHits {
		sub := c.Subs[idx]
		subStart, subEnd := start, end
		sub.Local.Inv(&subStart)
		sub.Local.Inv(&subEnd)

		h, p, n := lineCastShape(sub.Shape, subStart, subEnd)
		if !h {
			continue
		}
		sub.Local.App(&p)
		worldN := *lin.NewV3().MultvQ(&n, sub.Local.Rot)
		d := lin.NewV3().Sub(&p, &start).LenSqr()
		if d < bestDist {
			bestDist, found, point, normal = d, true, p, worldN
		}
	}
	return found, point, normal
}

// lineCastEnvironment recurses into every triangle whose AABB the
// segment's bounding box overlaps, running an exact Möller-Trumbore test
// and keeping the nearest-to-start hit.
func lineCastEnvironment(e *Environment, start, end lin.V3) (hit bool, point, normal lin.V3) {
	box := segmentAABB(start, end)
	var triHits []uint64
	e.QueryTriangles(&box, &triHits)

	bestDist := math.MaxFloat64
	found := false
	for _, idx := range triHits {
		tri := e.Triangles[idx]
		t, ok := triangleLineIntersect(tri.A, tri.B, tri.C, start, end)
		if !ok {
			continue
		}
		p := *lin.NewV3().Lerp(&start, &end, t)
		n := triangleNormal(tri.A, tri.B, tri.C)
		toStart := *lin.NewV3().Sub(&start, &tri.A)
		if toStart.Dot(&n) < 0 {
			n = *lin.NewV3().Neg(&n)
		}
		d := lin.NewV3().Sub(&p, &start).LenSqr()
		if d < bestDist {
			bestDist, found, point, normal = d, true, p, n
		}
	}
	return found, point, normal
}

// triangleLineIntersect is the standard Möller-Trumbore test, parameterized
// over the segment start->end rather than an infinite ray (t must land in
// [0,1] as well as the usual barycentric bounds).
func triangleLineIntersect(a, b, c, start, end lin.V3) (t float64, hit bool) {
	edge1 := *lin.NewV3().Sub(&b, &a)
	edge2 := *lin.NewV3().Sub(&c, &a)
	dir := *lin.NewV3().Sub(&end, &start)
	h := *lin.NewV3().Cross(&dir, &edge2)
	det := edge1.Dot(&h)
	if math.Abs(det) < lin.Epsilon {
		return 0, false
	}
	invDet := 1 / det
	s := *lin.NewV3().Sub(&start, &a)
	u := s.Dot(&h) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}
	q := *lin.NewV3().Cross(&s, &edge1)
	v := dir.Dot(&q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t = edge2.Dot(&q) * invDet
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

func triangleNormal(a, b, c lin.V3) lin.V3 {
	edge1 := *lin.NewV3().Sub(&b, &a)
	edge2 := *lin.NewV3().Sub(&c, &a)
	n := lin.NewV3().Cross(&edge1, &edge2)
	return *n.Unit()
}
