// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "math"

// Material describes the surface properties used to combine two colliding
// bodies' friction and restitution.
type Material struct {
	Density     float64
	Restitution float64
	Friction    float64
}

// DefaultMaterial returns a reasonable everyday material: unit density,
// no bounce, moderate friction.
func DefaultMaterial() Material {
	return Material{Density: 1, Restitution: 0, Friction: 0.5}
}

// combinedFriction follows the teacher's own geometric-mean combination
// rule for two materials' friction coefficients.
func combinedFriction(a, b Material) float64 {
	return math.Sqrt(a.Friction * b.Friction)
}

// combinedRestitution takes the larger of the two restitutions, matching
// the common "bounciest wins" convention.
func combinedRestitution(a, b Material) float64 {
	if a.Restitution > b.Restitution {
		return a.Restitution
	}
	return b.Restitution
}

// materialSlot is the reference-counted, deferred-deletion entry the
// material registry (world.go) stores per spec §6 / §9 ("Deferred-deletion
// handles"). A collider keeps its own copy of the resolved Material values
// (see Collider.mat) so that deleting the registry entry mid-step never
// invalidates a collider still resolving contacts this step, per the open
// question in spec §9 about material-deletion ordering.
type materialSlot struct {
	mat    Material
	refs   int
	marked bool
}
