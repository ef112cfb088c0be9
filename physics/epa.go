// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// epaIterationCap and epaTolerance bound the expanding-polytope loop: it
// terminates either when the newest support point adds negligible extra
// depth over the closest face, or when the cap is hit.
const (
	epaIterationCap = 100
	epaTolerance    = 1e-5
)

// epaFace is one triangle of the polytope, vertex indices into the
// polytope's vertex slice, with an outward-pointing unit normal and the
// signed distance from the origin to the face's plane along that normal.
type epaFace struct {
	a, b, c int
	normal  lin.V3
	dist    float64
}

type epaPolytope struct {
	verts []simplexVertex
	faces []epaFace
}

// addFace appends a face for vertices a, b, c, orienting its normal to
// point away from the centroid of the polytope's vertices. The polytope is
// convex and encloses the origin, so an outward normal has the origin on
// its negative side; a face built with the wrong winding is corrected by
// swapping b and c. The centroid is used rather than the sign of the
// face's distance so that a face passing through the origin is still
// oriented outward.
func (p *epaPolytope) addFace(a, b, c int) {
	va, vb, vc := p.verts[a].point, p.verts[b].point, p.verts[c].point
	ab := lin.NewV3().Sub(&vb, &va)
	ac := lin.NewV3().Sub(&vc, &va)
	normal := lin.NewV3().Cross(ab, ac)
	if normal.LenSqr() < lin.Epsilon {
		return // degenerate triangle, drop it
	}
	normal.Unit()
	var centroid lin.V3
	for i := range p.verts {
		centroid.Add(&centroid, &p.verts[i].point)
	}
	centroid.Scale(&centroid, 1/float64(len(p.verts)))
	if normal.Dot(lin.NewV3().Sub(&va, &centroid)) < 0 {
		normal.Neg(normal)
		b, c = c, b
	}
	dist := normal.Dot(&va)
	p.faces = append(p.faces, epaFace{a: a, b: b, c: c, normal: *normal, dist: dist})
}

// newPolytope seeds the polytope from a terminal GJK tetrahedron.
func newPolytope(sx *simplex) *epaPolytope {
	p := &epaPolytope{verts: []simplexVertex{sx.v[0], sx.v[1], sx.v[2], sx.v[3]}}
	p.addFace(0, 1, 2)
	p.addFace(0, 1, 3)
	p.addFace(0, 2, 3)
	p.addFace(1, 2, 3)
	return p
}

// closestFace returns the index of the face nearest the origin.
func (p *epaPolytope) closestFace() int {
	best := 0
	for i := 1; i < len(p.faces); i++ {
		if p.faces[i].dist < p.faces[best].dist {
			best = i
		}
	}
	return best
}

type epaEdge struct{ a, b int }

// expand adds a new support vertex to the polytope, removing every face
// it sees past (a "visible" face) and patching the resulting hole with
// new faces fanning from the new vertex to the hole's horizon edges.
func (p *epaPolytope) expand(support simplexVertex) {
	newIndex := len(p.verts)
	p.verts = append(p.verts, support)

	visible := make([]bool, len(p.faces))
	anyVisible := false
	for i, f := range p.faces {
		if f.normal.Dot(&support.point)-f.dist > -lin.Epsilon {
			visible[i] = true
			anyVisible = true
		}
	}
	if !anyVisible {
		return
	}

	var horizon []epaEdge
	edgesOf := func(f epaFace) [3]epaEdge {
		return [3]epaEdge{{f.a, f.b}, {f.b, f.c}, {f.c, f.a}}
	}
	for i, f := range p.faces {
		if !visible[i] {
			continue
		}
		for _, e := range edgesOf(f) {
			shared := false
			for j, g := range p.faces {
				if j == i || !visible[j] {
					continue
				}
				for _, ge := range edgesOf(g) {
					if ge.a == e.b && ge.b == e.a {
						shared = true
					}
				}
			}
			if !shared {
				horizon = append(horizon, e)
			}
		}
	}

	kept := p.faces[:0]
	for i, f := range p.faces {
		if !visible[i] {
			kept = append(kept, f)
		}
	}
	p.faces = kept

	for _, e := range horizon {
		p.addFace(e.a, e.b, newIndex)
	}
}

// barycentric returns the barycentric weights of point relative to
// triangle a, b, c.
func barycentric(point, a, b, c lin.V3) (u, v, w float64) {
	v0 := lin.NewV3().Sub(&b, &a)
	v1 := lin.NewV3().Sub(&c, &a)
	v2 := lin.NewV3().Sub(&point, &a)
	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)
	d20 := v2.Dot(v0)
	d21 := v2.Dot(v1)
	denom := d00*d11 - d01*d01
	v = safeDivide(d11*d20-d01*d21, denom)
	w = safeDivide(d00*d21-d01*d20, denom)
	u = 1 - v - w
	return u, v, w
}

// epaContact expands the terminal GJK simplex into the penetration depth
// and contact normal/points between shapeA and shapeB, per the contact
// extraction step run whenever gjkIntersect reports an overlap.
func epaContact(shapeA Shape, poseA *lin.T, shapeB Shape, poseB *lin.T, sx *simplex) (normal lin.V3, depth float64, pointA, pointB lin.V3, ok bool) {
	if sx.num != 4 {
		return
	}
	poly := newPolytope(sx)
	if len(poly.faces) == 0 {
		return
	}

	for i := 0; i < epaIterationCap; i++ {
		fi := poly.closestFace()
		face := poly.faces[fi]
		support := minkowskiSupport(shapeA, poseA, shapeB, poseB, face.normal)
		d := support.point.Dot(&face.normal)

		if d-face.dist < epaTolerance {
			a, b, c := poly.verts[face.a], poly.verts[face.b], poly.verts[face.c]
			closest := lin.NewV3().Scale(&face.normal, face.dist)
			u, v, w := barycentric(*closest, a.point, b.point, c.point)

			pointA = lin.V3{
				X: u*a.onA.X + v*b.onA.X + w*c.onA.X,
				Y: u*a.onA.Y + v*b.onA.Y + w*c.onA.Y,
				Z: u*a.onA.Z + v*b.onA.Z + w*c.onA.Z,
			}
			pointB = lin.V3{
				X: u*a.onB.X + v*b.onB.X + w*c.onB.X,
				Y: u*a.onB.Y + v*b.onB.Y + w*c.onB.Y,
				Z: u*a.onB.Z + v*b.onB.Z + w*c.onB.Z,
			}
			// face.normal is outward on the A-B Minkowski difference, which
			// points from A towards B; Contact.Normal is documented as B
			// towards A, so flip it here.
			outward := *lin.NewV3().Neg(&face.normal)
			return outward, face.dist, pointA, pointB, true
		}
		poly.expand(support)
		if len(poly.faces) == 0 {
			return
		}
	}
	return
}
