// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

// linActivityThreshold and angActivityThreshold bound the per-body energy
// below which a body counts as at rest for an island's activity test,
// matching the engine's resting-contact jitter thresholds.
const (
	linActivityThreshold = 0.001
	angActivityThreshold = 0.00001
)

// islandBinding is one constraint resolved to its live Constraint instance
// and the Body pointers its two handles name, built fresh each substep so
// the solver never holds a stale pointer across a body add/remove.
type islandBinding struct {
	handle ConstraintHandle
	c      Constraint
	a, b   *Body
}

// solveIsland runs one substep's worth of sequential-impulse solving for a
// single island: the fixed-kind-order sweep (spherical, revolute, distance,
// weld, contact) with warm starting and an early-out threshold, per spec
// §4.6. It reports the island's new steady state (Active/Inactive) for the
// caller to fold into the island graph's sleep machine, and any contact
// constraints that have gone idle long enough to be torn down.
func solveIsland(bodies *arena[Body], cs *ConstraintSet, cfg *WorldConfig, dt float64, incoming SleepState, handles []ConstraintHandle) (newState SleepState, toRemove []ConstraintHandle) {
	if incoming == Inactive {
		return Inactive, nil
	}

	var byKind [int(ContactConstraintKind) + 1][]islandBinding
	touched := map[BodyHandle]*Body{}
	for _, h := range handles {
		c, ok := cs.Joint(h)
		if !ok {
			continue
		}
		ah, bh := c.Bodies()
		ab, aok := bodies.Get(ah)
		bb, bok := bodies.Get(bh)
		if !aok || !bok {
			continue
		}
		byKind[c.Kind()] = append(byKind[c.Kind()], islandBinding{handle: h, c: c, a: ab, b: bb})
		if !ab.IsStatic() {
			touched[ah] = ab
		}
		if !bb.IsStatic() {
			touched[bh] = bb
		}
	}

	allInactive := true
	for _, b := range touched {
		lv := b.LinVel
		if !b.flags.has(flagKinematic) {
			lv.X -= cfg.Gravity.X * dt
			lv.Y -= cfg.Gravity.Y * dt
			lv.Z -= cfg.Gravity.Z * dt
		}
		if lv.LenSqr() > linActivityThreshold || b.AngVel.LenSqr() > angActivityThreshold {
			allInactive = false
			break
		}
	}
	newState = Active
	if allInactive {
		newState = Inactive
	}

	switch incoming {
	case Asleep:
		for _, b := range touched {
			b.setAsleep(true)
		}
	case Awake:
		for _, b := range touched {
			b.setAsleep(false)
		}
	}

	for _, kind := range solveOrder {
		for _, bind := range byKind[kind] {
			bind.c.Prepare(bind.a, bind.b, dt, cfg)
			bind.c.WarmStart(bind.a, bind.b)
		}
	}

	for i := 0; i < cfg.SolverIterations; i++ {
		maxImpulse := 0.0
		for _, kind := range solveOrder {
			for _, bind := range byKind[kind] {
				if delta := bind.c.Solve(bind.a, bind.b, cfg); delta > maxImpulse {
					maxImpulse = delta
				}
			}
		}
		if maxImpulse < cfg.EarlyOutThreshold {
			break
		}
	}

	for _, bind := range byKind[ContactConstraintKind] {
		cc := bind.c.(*ContactConstraint)
		if cc.Manifold.Num == 0 {
			cc.inactiveTime += dt
			if cc.inactiveTime > cfg.TimeToRemove {
				toRemove = append(toRemove, bind.handle)
			}
		} else {
			cc.inactiveTime = 0
		}
	}

	return newState, toRemove
}
