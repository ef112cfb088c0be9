// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// Contact is one point of overlap found between two shapes: Normal points
// from shapeB towards shapeA, Depth is the overlap distance along Normal,
// and PointA/PointB are the witness points on each shape's surface, all in
// world space.
type Contact struct {
	Normal         lin.V3
	Depth          float64
	PointA, PointB lin.V3
}

// Narrowphase finds every point of overlap between shapeA at poseA and
// shapeB at poseB, appending results to out. Sphere pairs use a
// closed-form test; Composite and Environment shapes cull their
// sub-elements through their own internal broadphase and recurse;
// everything else goes through GJK/EPA.
func Narrowphase(shapeA Shape, poseA *lin.T, shapeB Shape, poseB *lin.T, out *[]Contact) {
	ka, kb := shapeA.Kind(), shapeB.Kind()

	switch {
	case ka == EnvironmentShape && kb == EnvironmentShape:
		return // static geometry never collides with itself

	case ka == EnvironmentShape:
		dispatchEnvironment(shapeA.(*Environment), poseA, shapeB, poseB, out, false)
		return

	case kb == EnvironmentShape:
		dispatchEnvironment(shapeB.(*Environment), poseB, shapeA, poseA, out, true)
		return

	case ka == CompositeShape:
		dispatchComposite(shapeA.(*Composite), poseA, shapeB, poseB, out, false)
		return

	case kb == CompositeShape:
		dispatchComposite(shapeB.(*Composite), poseB, shapeA, poseA, out, true)
		return

	case ka == SphereShape && kb == SphereShape:
		sphereSphere(shapeA.(*Sphere), poseA, shapeB.(*Sphere), poseB, out)
		return
	}

	gjkEpaContact(shapeA, poseA, shapeB, poseB, out)
}

// gjkEpaContact runs the general convex/convex path: GJK for overlap,
// then EPA for the penetration depth, normal, and witness points.
func gjkEpaContact(shapeA Shape, poseA *lin.T, shapeB Shape, poseB *lin.T, out *[]Contact) {
	sx, hit := gjkIntersect(shapeA, poseA, shapeB, poseB)
	if !hit {
		return
	}
	normal, depth, pointA, pointB, ok := epaContact(shapeA, poseA, shapeB, poseB, sx)
	if !ok || depth <= 0 {
		return
	}
	*out = append(*out, Contact{Normal: normal, Depth: depth, PointA: pointA, PointB: pointB})
}

// sphereSphere is the closed-form override for two spheres: no GJK/EPA
// iteration needed when both centers and radii are already known.
func sphereSphere(a *Sphere, poseA *lin.T, b *Sphere, poseB *lin.T, out *[]Contact) {
	delta := lin.NewV3().Sub(poseB.Loc, poseA.Loc)
	dist := delta.Len()
	radiusSum := a.Radius + b.Radius
	if dist >= radiusSum {
		return
	}
	var normal lin.V3
	if dist > lin.Epsilon {
		normal = *lin.NewV3().Scale(delta, -1/dist)
	} else {
		normal = lin.V3{Y: 1} // concentric spheres: push along an arbitrary axis
	}
	pointA := *lin.NewV3().Sub(poseA.Loc, lin.NewV3().Scale(&normal, a.Radius))
	pointB := *lin.NewV3().Add(poseB.Loc, lin.NewV3().Scale(&normal, b.Radius))
	*out = append(*out, Contact{Normal: normal, Depth: radiusSum - dist, PointA: pointA, PointB: pointB})
}

// appendOriented copies tmp into out, flipping normal and witness points
// when the recursive call computed contacts with the composite/
// environment side treated as "A" but it was really the caller's "B".
func appendOriented(out *[]Contact, tmp []Contact, flip bool) {
	for _, c := range tmp {
		if !flip {
			*out = append(*out, c)
			continue
		}
		*out = append(*out, Contact{
			Normal: *lin.NewV3().Neg(&c.Normal),
			Depth:  c.Depth,
			PointA: c.PointB,
			PointB: c.PointA,
		})
	}
}

// localAABB returns worldBox re-expressed in the space of transform t, by
// transforming its 8 corners through t's inverse and re-enclosing them.
// Used to cull a Composite/Environment's sub-elements with its own
// internal broadphase, which is built in local space.
func localAABB(worldBox *lin.AABB, t *lin.T) *lin.AABB {
	corners := [8]lin.V3{
		{X: worldBox.Sx, Y: worldBox.Sy, Z: worldBox.Sz},
		{X: worldBox.Lx, Y: worldBox.Sy, Z: worldBox.Sz},
		{X: worldBox.Sx, Y: worldBox.Ly, Z: worldBox.Sz},
		{X: worldBox.Sx, Y: worldBox.Sy, Z: worldBox.Lz},
		{X: worldBox.Lx, Y: worldBox.Ly, Z: worldBox.Sz},
		{X: worldBox.Lx, Y: worldBox.Sy, Z: worldBox.Lz},
		{X: worldBox.Sx, Y: worldBox.Ly, Z: worldBox.Lz},
		{X: worldBox.Lx, Y: worldBox.Ly, Z: worldBox.Lz},
	}
	result := lin.NewAABB()
	for i := range corners {
		t.Inv(&corners[i])
		point := lin.AABB{Sx: corners[i].X, Sy: corners[i].Y, Sz: corners[i].Z, Lx: corners[i].X, Ly: corners[i].Y, Lz: corners[i].Z}
		result.Union(result, &point)
	}
	return result
}

// dispatchComposite culls comp's sub-shapes against other's world AABB
// and recurses Narrowphase on every sub-shape whose local AABB overlaps.
// flip indicates comp was actually the caller's shapeB.
func dispatchComposite(comp *Composite, compPose *lin.T, other Shape, otherPose *lin.T, out *[]Contact, flip bool) {
	otherBox := lin.NewAABB()
	other.Aabb(otherPose, otherBox, 0)
	local := localAABB(otherBox, compPose)

	var hits []uint64
	comp.QuerySubs(local, &hits)
	for _, idx := range hits {
		sub := comp.Subs[idx]
		subPose := lin.NewT()
		subPose.Mult(compPose, &sub.Local)

		var tmp []Contact
		Narrowphase(sub.Shape, subPose, other, otherPose, &tmp)
		appendOriented(out, tmp, flip)
	}
}

// dispatchEnvironment culls env's triangles against other's world AABB
// and recurses Narrowphase on every triangle whose local AABB overlaps.
// flip indicates env was actually the caller's shapeB.
func dispatchEnvironment(env *Environment, envPose *lin.T, other Shape, otherPose *lin.T, out *[]Contact, flip bool) {
	otherBox := lin.NewAABB()
	other.Aabb(otherPose, otherBox, 0)
	local := localAABB(otherBox, envPose)

	var hits []uint64
	env.QueryTriangles(local, &hits)
	for _, idx := range hits {
		tri := env.Triangle(idx)

		var tmp []Contact
		Narrowphase(tri, envPose, other, otherPose, &tmp)
		appendOriented(out, tmp, flip)
	}
}
