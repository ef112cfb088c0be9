// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"log/slog"

	"github.com/gazed/rigid/math/lin"
)

// WorldConfig holds every tunable named in the engine's tuning table.
// It is immutable once a World is constructed: each subsystem copies the
// values it needs out of it rather than holding a reference to it, per the
// engine's "no global mutable options" design.
type WorldConfig struct {
	SimRate     float64 // substep length in seconds, default 1/60
	Gravity     lin.V3  // applied to every non-static, non-asleep body
	MaxSubsteps int     // accumulator cap per World.Step call, default 5

	SolverIterations  int     // Gauss-Seidel sweeps per island, default 10
	EarlyOutThreshold float64 // solver early-exit |λ|, default 1e-5

	TimeToSleep  float64 // inactive seconds before an island sleeps, default 0.5
	TimeToRemove float64 // inactive seconds before a contact constraint is removed, default 2.0

	BroadphasePadding float64 // fractional AABB inflation on insert

	ManifoldNormalTol      float64 // default 0.03
	ManifoldTangentTol     float64 // default 0.05
	ManifoldMatchTol       float64 // default 0.01
	ManifoldNormalMatchTol float64 // default 0.01

	BaumgarteFactor   float64 // Baumgarte stabilization fraction, default 0.2
	PositionSlop      float64 // allowed penetration before bias kicks in, default 0.01
	MaxCorrection     float64 // clamp on the positional bias term, default 0.2

	Log *slog.Logger
}

// Attr mutates a WorldConfig being built by NewWorld. The functional-options
// pattern keeps World's constructor signature stable as tunables grow.
type Attr func(*WorldConfig)

func defaultConfig() *WorldConfig {
	return &WorldConfig{
		SimRate:                1.0 / 60.0,
		Gravity:                lin.V3{X: 0, Y: -10, Z: 0},
		MaxSubsteps:            5,
		SolverIterations:       10,
		EarlyOutThreshold:      1e-5,
		TimeToSleep:            0.5,
		TimeToRemove:           2.0,
		BroadphasePadding:      0.1,
		ManifoldNormalTol:      0.03,
		ManifoldTangentTol:     0.05,
		ManifoldMatchTol:       0.01,
		ManifoldNormalMatchTol: 0.01,
		BaumgarteFactor:        0.2,
		PositionSlop:           0.01,
		MaxCorrection:          0.2,
		Log:                    slog.Default(),
	}
}

// SimRate sets the fixed substep length in seconds.
func SimRate(seconds float64) Attr { return func(c *WorldConfig) { c.SimRate = seconds } }

// Gravity sets the per-substep acceleration applied to awake dynamic bodies.
func Gravity(x, y, z float64) Attr {
	return func(c *WorldConfig) { c.Gravity = lin.V3{X: x, Y: y, Z: z} }
}

// MaxSubsteps bounds how many fixed substeps a single Step call may run.
func MaxSubsteps(n int) Attr { return func(c *WorldConfig) { c.MaxSubsteps = n } }

// SolverIterations sets the Gauss-Seidel sweep count per island per substep.
func SolverIterations(n int) Attr { return func(c *WorldConfig) { c.SolverIterations = n } }

// EarlyOutThreshold sets the solver's early-exit impulse magnitude.
func EarlyOutThreshold(v float64) Attr { return func(c *WorldConfig) { c.EarlyOutThreshold = v } }

// TimeToSleep sets how many continuous-inactive seconds before an island sleeps.
func TimeToSleep(seconds float64) Attr { return func(c *WorldConfig) { c.TimeToSleep = seconds } }

// TimeToRemove sets how many inactive seconds before a contact constraint is removed.
func TimeToRemove(seconds float64) Attr { return func(c *WorldConfig) { c.TimeToRemove = seconds } }

// BroadphasePadding sets the fractional AABB inflation applied on insert.
func BroadphasePadding(fraction float64) Attr {
	return func(c *WorldConfig) { c.BroadphasePadding = fraction }
}

// ManifoldTolerances overrides the four manifold tolerances in one call.
func ManifoldTolerances(normal, tangent, match, normalMatch float64) Attr {
	return func(c *WorldConfig) {
		c.ManifoldNormalTol, c.ManifoldTangentTol = normal, tangent
		c.ManifoldMatchTol, c.ManifoldNormalMatchTol = match, normalMatch
	}
}

// WithLogger overrides the default logger used for diagnostics.
func WithLogger(log *slog.Logger) Attr { return func(c *WorldConfig) { c.Log = log } }
