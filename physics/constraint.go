// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "log/slog"

// ConstraintKind tags the variant a Constraint holds. The solver sweeps
// each island's constraints kind-by-kind so that joint constraints always
// settle before the contacts that depend on their resulting geometry.
type ConstraintKind int

const (
	SphericalConstraint ConstraintKind = iota
	RevoluteConstraint
	DistanceConstraint
	WeldConstraint
	ContactConstraintKind
)

// solveOrder fixes the per-iteration sweep order used by the solver.
var solveOrder = [...]ConstraintKind{
	SphericalConstraint, RevoluteConstraint, DistanceConstraint, WeldConstraint, ContactConstraintKind,
}

// Constraint is anything the solver can warm-start and iterate. Prepare
// caches whatever Jacobian/mass data a constraint needs for this
// substep's fixed body positions; WarmStart reapplies last substep's
// accumulated impulses before the first Gauss-Seidel sweep; Solve runs
// one sweep and returns the largest impulse correction applied, which the
// solver uses for its early-out test.
type Constraint interface {
	Kind() ConstraintKind
	Bodies() (BodyHandle, BodyHandle)
	Prepare(a, b *Body, dt float64, cfg *WorldConfig)
	WarmStart(a, b *Body)
	Solve(a, b *Body, cfg *WorldConfig) float64
}

// pairKey canonically orders a body handle pair so (a,b) and (b,a) always
// hash the same manifold or blacklist entry.
type pairKey struct{ a, b BodyHandle }

func canonicalPair(a, b BodyHandle) pairKey {
	if a.index > b.index {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// ConstraintSet owns every contact manifold in the world, keyed by the
// canonically-ordered body pair it spans, plus a blacklist of pairs that
// should never generate a contact constraint at all (bodies joined by a
// constraint that already fixes their relative motion, per the engine's
// jointed-pair exemption).
type ConstraintSet struct {
	manifolds     map[pairKey]*Manifold
	contactHandle map[pairKey]ConstraintHandle
	blacklist     map[pairKey]bool

	// joints holds every live Constraint instance, joint or contact alike
	// (spec §2's "typed containers of constraint instances"); contacts are
	// distinguished only by Kind() and by never appearing in the blacklist.
	joints *arena[Constraint]
	byBody map[BodyHandle]map[ConstraintHandle]bool
}

// NewConstraintSet returns an empty ConstraintSet.
func NewConstraintSet() *ConstraintSet {
	return &ConstraintSet{
		manifolds:     make(map[pairKey]*Manifold),
		contactHandle: make(map[pairKey]ConstraintHandle),
		blacklist:     make(map[pairKey]bool),
		joints:        newArena[Constraint](),
		byBody:        make(map[BodyHandle]map[ConstraintHandle]bool),
	}
}

// Blacklist marks a body pair as never generating a contact manifold,
// used when a joint already connects them.
func (cs *ConstraintSet) Blacklist(a, b BodyHandle, blocked bool) {
	key := canonicalPair(a, b)
	if blocked {
		cs.blacklist[key] = true
		delete(cs.manifolds, key)
	} else {
		delete(cs.blacklist, key)
	}
}

// GetOrCreateManifold returns the persistent manifold for body pair (a,b)
// and whether this call created it, or nil if the pair is blacklisted
// (already linked by a joint, per §4.7's jointed-pair exemption).
func (cs *ConstraintSet) GetOrCreateManifold(a, b BodyHandle) (m *Manifold, created bool) {
	key := canonicalPair(a, b)
	if cs.blacklist[key] {
		return nil, false
	}
	if m, ok := cs.manifolds[key]; ok {
		return m, false
	}
	m = NewManifold(a, b)
	cs.manifolds[key] = m
	return m, true
}

// RegisterContact stores the ContactConstraint wrapping a freshly created
// manifold and returns its handle, so the caller (world.go) can add the
// matching island graph edge. Must be called at most once per pairKey,
// immediately after GetOrCreateManifold reports created == true.
func (cs *ConstraintSet) RegisterContact(c *ContactConstraint) ConstraintHandle {
	key := canonicalPair(c.Manifold.BodyA, c.Manifold.BodyB)
	h := cs.joints.Insert(Constraint(c))
	cs.contactHandle[key] = h
	for _, body := range [2]BodyHandle{c.Manifold.BodyA, c.Manifold.BodyB} {
		if cs.byBody[body] == nil {
			cs.byBody[body] = make(map[ConstraintHandle]bool)
		}
		cs.byBody[body][h] = true
	}
	return h
}

// ContactHandle returns the ContactConstraint handle registered for body
// pair (a,b), if any.
func (cs *ConstraintSet) ContactHandle(a, b BodyHandle) (ConstraintHandle, bool) {
	h, ok := cs.contactHandle[canonicalPair(a, b)]
	return h, ok
}

// RemoveContact discards the ContactConstraint and its manifold for the
// pair registered under h, used when the manifold empties past
// TimeToRemove or a collider is removed.
func (cs *ConstraintSet) RemoveContact(h ConstraintHandle) {
	c, ok := cs.joints.Get(h)
	if !ok {
		return
	}
	a, b := (*c).Bodies()
	key := canonicalPair(a, b)
	delete(cs.manifolds, key)
	delete(cs.contactHandle, key)
	for _, body := range [2]BodyHandle{a, b} {
		delete(cs.byBody[body], h)
	}
	cs.joints.Remove(h)
}

// RemoveBodyManifolds drops every manifold and registered contact handle
// touching body h, used when a body is removed from the world. Returns
// the contact constraint handles removed so the caller can also retire
// their island graph edges.
func (cs *ConstraintSet) RemoveBodyManifolds(h BodyHandle) []ConstraintHandle {
	var removed []ConstraintHandle
	for key := range cs.manifolds {
		if key.a == h || key.b == h {
			if ch, ok := cs.contactHandle[key]; ok {
				removed = append(removed, ch)
				cs.joints.Remove(ch)
				delete(cs.contactHandle, key)
			}
			delete(cs.manifolds, key)
		}
	}
	for key := range cs.blacklist {
		if key.a == h || key.b == h {
			delete(cs.blacklist, key)
		}
	}
	return removed
}

// AddJoint stores a joint constraint (distance/spherical/revolute/weld),
// blacklists its body pair against contact generation, and returns its
// handle.
func (cs *ConstraintSet) AddJoint(c Constraint) ConstraintHandle {
	h := cs.joints.Insert(c)
	a, b := c.Bodies()
	cs.Blacklist(a, b, true)
	for _, body := range [2]BodyHandle{a, b} {
		if cs.byBody[body] == nil {
			cs.byBody[body] = make(map[ConstraintHandle]bool)
		}
		cs.byBody[body][h] = true
	}
	return h
}

// RemoveJoint discards a joint constraint and un-blacklists its body
// pair, so the two bodies can generate contacts again.
func (cs *ConstraintSet) RemoveJoint(h ConstraintHandle) {
	c, ok := cs.joints.Get(h)
	if !ok {
		return
	}
	a, b := (*c).Bodies()
	cs.Blacklist(a, b, false)
	for _, body := range [2]BodyHandle{a, b} {
		delete(cs.byBody[body], h)
	}
	cs.joints.Remove(h)
}

// Joint returns the joint constraint named by h.
func (cs *ConstraintSet) Joint(h ConstraintHandle) (Constraint, bool) {
	c, ok := cs.joints.Get(h)
	if !ok {
		return nil, false
	}
	return *c, true
}

// JointsOf returns the constraint handles touching body h: its joints and
// its registered contact constraints.
func (cs *ConstraintSet) JointsOf(h BodyHandle) []ConstraintHandle {
	out := make([]ConstraintHandle, 0, len(cs.byBody[h]))
	for ch := range cs.byBody[h] {
		out = append(out, ch)
	}
	return out
}

// EachManifold calls fn for every live contact manifold.
func (cs *ConstraintSet) EachManifold(fn func(key pairKey, m *Manifold)) {
	for key, m := range cs.manifolds {
		fn(key, m)
	}
}

// EachJoint calls fn for every joint constraint.
func (cs *ConstraintSet) EachJoint(fn func(h ConstraintHandle, c Constraint)) {
	cs.joints.Each(func(h Handle, c *Constraint) { fn(h, *c) })
}

func logDegenerateConstraint(cfg *WorldConfig, kind string) {
	cfg.Log.Warn("constraint solve skipped, degenerate effective mass", slog.String("kind", kind))
}
