// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"testing"

	"github.com/gazed/rigid/math/lin"
)

func TestLineCastSphereHitsAndMisses(t *testing.T) {
	s := NewSphere(1)
	hit, point, normal := lineCastSphere(s, lin.V3{X: -5}, lin.V3{X: 5})
	if !hit {
		t.Fatal("expected the segment through the origin to hit the sphere")
	}
	if got := point.X; got > -0.9 || got < -1.1 {
		t.Fatalf("expected entry point near x=-1, got %v", point)
	}
	want := lin.V3{X: -1}
	if !normal.Aeq(&want) {
		t.Fatalf("expected entry normal pointing back along -X, got %v", normal)
	}

	missHit, _, _ := lineCastSphere(s, lin.V3{X: -5, Y: 5}, lin.V3{X: 5, Y: 5})
	if missHit {
		t.Fatal("expected a parallel segment 5 units off-axis to miss a unit sphere")
	}
}

func TestLineCastSphereSegmentShortOfShape(t *testing.T) {
	s := NewSphere(1)
	hit, _, _ := lineCastSphere(s, lin.V3{X: -5}, lin.V3{X: -2})
	if hit {
		t.Fatal("a segment ending before the shape must not report a hit")
	}
}

func TestLineCastCubeHitsFace(t *testing.T) {
	c := NewCube(1, 1, 1)
	hit, point, normal := lineCastCube(c, lin.V3{X: -5}, lin.V3{X: 5})
	if !hit {
		t.Fatal("expected the segment through the origin to hit the cube")
	}
	if !lin.Aeq(point.X, -1) {
		t.Fatalf("expected entry point at x=-1, got %v", point)
	}
	want := lin.V3{X: -1}
	if !normal.Aeq(&want) {
		t.Fatalf("expected entry normal -X, got %v", normal)
	}
}

func TestLineCastCubeMissesWhenOffset(t *testing.T) {
	c := NewCube(1, 1, 1)
	hit, _, _ := lineCastCube(c, lin.V3{X: -5, Y: 5}, lin.V3{X: 5, Y: 5})
	if hit {
		t.Fatal("expected a segment well outside the cube's extent to miss")
	}
}

func TestLineCastConvexMatchesSphereClosedForm(t *testing.T) {
	s := NewSphere(1)
	hit, point, _ := lineCastConvex(s, lin.V3{X: -5}, lin.V3{X: 5})
	if !hit {
		t.Fatal("expected the generic convex walk to hit a unit sphere head-on")
	}
	if got := point.X; got > -0.9 || got < -1.1 {
		t.Fatalf("expected conservative-advancement entry point near x=-1, got %v", point)
	}
}

func TestLineCastConvexMisses(t *testing.T) {
	s := NewSphere(1)
	hit, _, _ := lineCastConvex(s, lin.V3{X: -5, Y: 5}, lin.V3{X: 5, Y: 5})
	if hit {
		t.Fatal("expected the generic convex walk to miss a segment well off-axis")
	}
}

func TestLineCastEnvironmentHitsTriangle(t *testing.T) {
	env := NewEnvironment([]EnvTriangle{{
		A: lin.V3{X: -1, Z: -1},
		B: lin.V3{X: 1, Z: -1},
		C: lin.V3{X: 0, Z: 1},
	}})
	hit, point, normal := lineCastEnvironment(env, lin.V3{Y: 5}, lin.V3{Y: -5})
	if !hit {
		t.Fatal("expected a vertical segment through the triangle's centroid to hit")
	}
	if !lin.Aeq(point.Y, 0) {
		t.Fatalf("expected the hit point on the Y=0 triangle plane, got %v", point)
	}
	if normal.Y <= 0 {
		t.Fatalf("expected the normal flipped to face the ray origin (+Y), got %v", normal)
	}
}

func TestLineCastEnvironmentMissesOutsideTriangle(t *testing.T) {
	env := NewEnvironment([]EnvTriangle{{
		A: lin.V3{X: -1, Z: -1},
		B: lin.V3{X: 1, Z: -1},
		C: lin.V3{X: 0, Z: 1},
	}})
	hit, _, _ := lineCastEnvironment(env, lin.V3{X: 10, Y: 5}, lin.V3{X: 10, Y: -5})
	if hit {
		t.Fatal("expected a segment outside the triangle's footprint to miss")
	}
}

func TestWorldLineCastAllOrdersByAscendingDistance(t *testing.T) {
	w := NewWorld()
	mh := w.AddMaterial(DefaultMaterial())

	far := w.AddBody(true, true)
	w.SetColliderShape(far, w.AddShape(NewSphere(1)), mh)
	w.SetPose(far, lin.V3{X: 10}, *lin.NewQI())

	near := w.AddBody(true, true)
	w.SetColliderShape(near, w.AddShape(NewSphere(1)), mh)
	w.SetPose(near, lin.V3{X: 3}, *lin.NewQI())

	hits := w.LineCastAll(lin.V3{X: -20}, lin.V3{X: 20})
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Body != near || hits[1].Body != far {
		t.Fatalf("expected nearest-first ordering, got %v then %v", hits[0].Body, hits[1].Body)
	}
	if hits[0].DistSq >= hits[1].DistSq {
		t.Fatalf("expected strictly ascending squared distance, got %v then %v", hits[0].DistSq, hits[1].DistSq)
	}
}

func TestWorldLineCastAllSkipsDisabledCollider(t *testing.T) {
	w := NewWorld()
	mh := w.AddMaterial(DefaultMaterial())
	h := w.AddBody(true, true)
	w.SetColliderShape(h, w.AddShape(NewSphere(1)), mh)
	w.SetColliderEnabled(h, false)

	hits := w.LineCastAll(lin.V3{X: -5}, lin.V3{X: 5})
	if len(hits) != 0 {
		t.Fatalf("expected a disabled collider to be invisible to line casts, got %v", hits)
	}
}
