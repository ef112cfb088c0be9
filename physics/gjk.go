// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"log/slog"

	"github.com/gazed/rigid/math/lin"
)

// gjkIterationCap bounds the GJK main loop so a pathological pair of
// shapes can never spin forever; hitting the cap is treated as "not
// overlapping" and logged.
const gjkIterationCap = 100

// simplexVertex is one point of the Minkowski difference support(A,-B),
// carried alongside its witnesses on A and B so EPA can recover a world
// contact point without re-querying support functions.
type simplexVertex struct {
	point    lin.V3
	onA, onB lin.V3
}

// simplex is the GJK/EPA working set of up to 4 Minkowski-difference
// points, most recently added at index 0.
type simplex struct {
	v   [4]simplexVertex
	num int
}

// pushFront inserts p at index 0, shifting the rest back and capping the
// set at 4 points.
func (s *simplex) pushFront(p simplexVertex) {
	n := s.num
	if n > 3 {
		n = 3
	}
	for i := n; i > 0; i-- {
		s.v[i] = s.v[i-1]
	}
	s.v[0] = p
	s.num = n + 1
}

func tripleCross(a, b, c lin.V3) lin.V3 {
	var ab, tc lin.V3
	ab.Cross(&a, &b)
	tc.Cross(&ab, &c)
	return tc
}

// worldSupport evaluates shape's support function for a world-space
// direction, returning the witness point in world space.
func worldSupport(shape Shape, pose *lin.T, dirWorld lin.V3) lin.V3 {
	invRot := lin.NewQ().Inv(pose.Rot)
	localDir := lin.NewV3().MultvQ(&dirWorld, invRot)
	local := shape.Support(localDir)
	world := lin.NewV3().AppT(pose, &local)
	return *world
}

// minkowskiSupport evaluates support(A,-B) along dir in world space,
// retaining the two witness points for later contact-point recovery.
func minkowskiSupport(shapeA Shape, poseA *lin.T, shapeB Shape, poseB *lin.T, dir lin.V3) simplexVertex {
	negDir := lin.V3{X: -dir.X, Y: -dir.Y, Z: -dir.Z}
	pa := worldSupport(shapeA, poseA, dir)
	pb := worldSupport(shapeB, poseB, negDir)
	var diff lin.V3
	diff.Sub(&pa, &pb)
	return simplexVertex{point: diff, onA: pa, onB: pb}
}

// reduceLine reduces a 2-point simplex to the sub-simplex (edge or vertex)
// closest to the origin, updating dir to point from that sub-simplex
// toward the origin.
func reduceLine(s *simplex, dir *lin.V3) {
	a, b := s.v[0].point, s.v[1].point
	ao := lin.NewV3().Neg(&a)
	ab := lin.NewV3().Sub(&b, &a)
	if ab.Dot(ao) >= 0 {
		s.num = 2
		*dir = tripleCross(*ab, *ao, *ab)
	} else {
		s.num = 1
		*dir = *ao
	}
}

// reduceTriangle reduces a 3-point simplex, discarding to an edge or
// vertex when the origin's projection falls outside the triangle. A
// triangle alone can never enclose the origin in 3D, so this always
// returns false.
func reduceTriangle(sx *simplex, dir *lin.V3) bool {
	a, b, c := sx.v[0].point, sx.v[1].point, sx.v[2].point
	ao := lin.NewV3().Neg(&a)
	ab := lin.NewV3().Sub(&b, &a)
	ac := lin.NewV3().Sub(&c, &a)
	abc := lin.NewV3().Cross(ab, ac)

	if lin.NewV3().Cross(abc, ac).Dot(ao) >= 0 {
		if ac.Dot(ao) >= 0 {
			sx.v[1] = sx.v[2]
			sx.num = 2
			*dir = tripleCross(*ac, *ao, *ac)
		} else if ab.Dot(ao) >= 0 {
			sx.num = 2
			*dir = tripleCross(*ab, *ao, *ab)
		} else {
			sx.num = 1
			*dir = *ao
		}
		return false
	}
	if lin.NewV3().Cross(ab, abc).Dot(ao) >= 0 {
		if ab.Dot(ao) >= 0 {
			sx.num = 2
			*dir = tripleCross(*ab, *ao, *ab)
		} else {
			sx.num = 1
			*dir = *ao
		}
		return false
	}
	if abc.Dot(ao) >= 0 {
		sx.num = 3
		*dir = *abc
	} else {
		sx.v[1], sx.v[2] = sx.v[2], sx.v[1]
		sx.num = 3
		dir.Neg(abc)
	}
	return false
}

// reduceTetrahedron tests the three faces touching the most recently
// added vertex A. If the origin is behind all three it is enclosed by
// the tetrahedron: a hit. Otherwise the simplex reduces to whichever new
// face the origin is in front of, checked in a fixed priority order when
// more than one would otherwise qualify.
func reduceTetrahedron(sx *simplex, dir *lin.V3) bool {
	a, b, c, d := sx.v[0].point, sx.v[1].point, sx.v[2].point, sx.v[3].point
	ao := lin.NewV3().Neg(&a)
	ab := lin.NewV3().Sub(&b, &a)
	ac := lin.NewV3().Sub(&c, &a)
	ad := lin.NewV3().Sub(&d, &a)
	abc := lin.NewV3().Cross(ab, ac)
	acd := lin.NewV3().Cross(ac, ad)
	adb := lin.NewV3().Cross(ad, ab)

	inFrontABC := abc.Dot(ao) > 0
	inFrontACD := acd.Dot(ao) > 0
	inFrontADB := adb.Dot(ao) > 0

	if !inFrontABC && !inFrontACD && !inFrontADB {
		return true
	}
	switch {
	case inFrontABC:
		sx.v[3] = simplexVertex{}
		sx.num = 3
	case inFrontACD:
		sx.v[1] = sx.v[2]
		sx.v[2] = sx.v[3]
		sx.num = 3
	default: // inFrontADB
		sx.v[2] = sx.v[1]
		sx.v[1] = sx.v[3]
		sx.num = 3
	}
	reduceTriangle(sx, dir)
	return false
}

// doSimplex dispatches to the reduction appropriate for the simplex's
// current vertex count, returning true when the origin is enclosed
// (shapes overlap).
func doSimplex(sx *simplex, dir *lin.V3) bool {
	switch sx.num {
	case 2:
		reduceLine(sx, dir)
		return false
	case 3:
		return reduceTriangle(sx, dir)
	case 4:
		return reduceTetrahedron(sx, dir)
	}
	return false
}

// gjkIntersect runs GJK between shapeA at poseA and shapeB at poseB,
// returning the terminal simplex and whether the shapes overlap. On a
// miss the simplex is the last working set and dispatch.go discards it.
func gjkIntersect(shapeA Shape, poseA *lin.T, shapeB Shape, poseB *lin.T) (*simplex, bool) {
	dir := lin.V3{X: 1}
	sx := &simplex{}
	sx.pushFront(minkowskiSupport(shapeA, poseA, shapeB, poseB, dir))
	dir.Neg(&sx.v[0].point)
	if dir.LenSqr() < lin.Epsilon {
		dir = lin.V3{Y: 1}
	}

	for i := 0; i < gjkIterationCap; i++ {
		if dir.LenSqr() < lin.Epsilon {
			dir = lin.V3{Y: 1}
		}
		next := minkowskiSupport(shapeA, poseA, shapeB, poseB, dir)
		if next.point.Dot(&dir) < 0 {
			return sx, false
		}
		sx.pushFront(next)
		if doSimplex(sx, &dir) {
			return sx, true
		}
	}
	slog.Debug("gjk iteration cap reached, treating pair as separated", slog.Int("cap", gjkIterationCap))
	return sx, false
}
