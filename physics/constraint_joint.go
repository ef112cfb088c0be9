// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// pointMass3 builds the inverted 3x3 effective mass matrix for a
// point-to-point (ball-and-socket) row pair: the matrix mapping a linear
// impulse applied at rA on A / -impulse at rB on B to the change in their
// relative point velocity. Columns are built by applying a unit impulse
// along each world axis and reading off the resulting relative-velocity
// change, rather than expanding the skew-symmetric algebra by hand.
func pointMass3(a, b *Body, rA, rB lin.V3) lin.M3 {
	var k lin.M3
	axes := [3]lin.V3{{X: 1}, {Y: 1}, {Z: 1}}
	cols := [3]lin.V3{}
	for i, e := range axes {
		linear := lin.V3{X: e.X * (a.InvMass + b.InvMass), Y: e.Y * (a.InvMass + b.InvMass), Z: e.Z * (a.InvMass + b.InvMass)}

		rAxE := lin.NewV3().Cross(&rA, &e)
		angA := lin.NewV3().MultMv(&a.InvInertiaWorld, rAxE)
		contribA := lin.NewV3().Cross(angA, &rA)

		rBxE := lin.NewV3().Cross(&rB, &e)
		angB := lin.NewV3().MultMv(&b.InvInertiaWorld, rBxE)
		contribB := lin.NewV3().Cross(angB, &rB)

		cols[i] = lin.V3{
			X: linear.X + contribA.X + contribB.X,
			Y: linear.Y + contribA.Y + contribB.Y,
			Z: linear.Z + contribA.Z + contribB.Z,
		}
	}
	k.SetS(
		cols[0].X, cols[1].X, cols[2].X,
		cols[0].Y, cols[1].Y, cols[2].Y,
		cols[0].Z, cols[1].Z, cols[2].Z,
	)
	var inv lin.M3
	inv.Inv(&k)
	return inv
}

// angularMass3 builds the inverted 3x3 effective mass matrix for a row
// that matches relative angular velocity directly (no lever arm): used by
// Weld's three cardinal angular rows and Spherical's angular-friction rows.
func angularMass3(a, b *Body) lin.M3 {
	var k lin.M3
	k.Add(&a.InvInertiaWorld, &b.InvInertiaWorld)
	var inv lin.M3
	inv.Inv(&k)
	return inv
}

// applyLinearImpulse3 applies impulse at rA on A and -impulse at rB on B,
// the vector form of applyImpulse in constraint_contact.go.
func applyLinearImpulse3(a, b *Body, rA, rB, impulse lin.V3) {
	applyImpulse(a, b, rA, rB, impulse)
}

// applyAngularImpulse3 applies an impulse directly to angular velocity
// only (no lever arm, no linear change): +invIA*impulse to A, -invIB*impulse
// to B, used by rows that constrain relative angular velocity directly.
func applyAngularImpulse3(a, b *Body, impulse lin.V3) {
	da := lin.NewV3().MultMv(&a.InvInertiaWorld, &impulse)
	a.AngVel.X += da.X
	a.AngVel.Y += da.Y
	a.AngVel.Z += da.Z
	db := lin.NewV3().MultMv(&b.InvInertiaWorld, &impulse)
	b.AngVel.X -= db.X
	b.AngVel.Y -= db.Y
	b.AngVel.Z -= db.Z
}

// mulM3V3 applies matrix m to vector v, returning the result by value.
func mulM3V3(m *lin.M3, v lin.V3) lin.V3 {
	return *lin.NewV3().MultMv(m, &v)
}

// jointAnchorWorld returns the world-space point and the lever arm (point
// minus the body's center of mass) for a local-space anchor on body's
// current pose.
func jointAnchorWorld(body *Body, local lin.V3) (world, r lin.V3) {
	world = local
	body.Pose.App(&world)
	r = *lin.NewV3().Sub(&world, body.Pose.Loc)
	return world, r
}

// baumgarteBias turns a scalar position error into the velocity-level bias
// term shared by every joint's equality rows: symmetric (corrects both an
// overshoot and an undershoot), no position slop (joints have no allowed
// penetration the way contacts do).
func baumgarteBias(cfg *WorldConfig, dt, c float64) float64 {
	bias := cfg.BaumgarteFactor / dt * c
	if bias > cfg.MaxCorrection/dt {
		bias = cfg.MaxCorrection / dt
	} else if bias < -cfg.MaxCorrection/dt {
		bias = -cfg.MaxCorrection / dt
	}
	return bias
}
