// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import (
	"log/slog"

	"github.com/gazed/rigid/math/lin"
	"github.com/google/uuid"
)

// UpdateEvent reports one body's new pose and velocity after a substep that
// actually moved it, so an embedder (a renderer, a network replicator) can
// act on changes instead of re-reading every body every frame.
type UpdateEvent struct {
	Body           BodyHandle
	Pos            lin.V3
	Rot            lin.Q
	LinVel, AngVel lin.V3
}

// World owns every body, shape, material, and constraint in one simulation,
// plus the broadphase and island graph that connect them. Per spec §9's
// "no global mutable state" design note, nothing here is package-level: an
// embedder can run several Worlds side by side (e.g. in parallel tests),
// which is exactly what World.ID exists to let slog output demultiplex.
type World struct {
	ID  string
	cfg *WorldConfig

	bodies    *arena[Body]
	shapes    *arena[Shape]
	materials *arena[materialSlot]

	constraints *ConstraintSet
	islands     *IslandGraph
	bp          *Broadphase

	pairCtx     *PairContext
	accumulator float64

	contacts []Contact
	rayHits  []RayHit
	events   []UpdateEvent
}

// NewWorld returns an empty World configured by the given options, falling
// back to defaultConfig's tuning table for anything not overridden.
func NewWorld(attrs ...Attr) *World {
	cfg := defaultConfig()
	for _, attr := range attrs {
		attr(cfg)
	}
	return &World{
		ID:          uuid.NewString(),
		cfg:         cfg,
		bodies:      newArena[Body](),
		shapes:      newArena[Shape](),
		materials:   newArena[materialSlot](),
		constraints: NewConstraintSet(),
		islands:     NewIslandGraph(),
		bp:          NewBroadphase(cfg.BroadphasePadding),
		pairCtx:     NewPairContext(),
	}
}

// Config returns the World's tuning table, for callers that want to read
// (never mutate) a running World's current settings.
func (w *World) Config() *WorldConfig { return w.cfg }

// linkConstraint records constraint handle ch on both endpoint bodies, the
// cascade-on-removal index body.go's Body.constraints field exists for.
func linkConstraint(a, b *Body, ch ConstraintHandle) {
	a.constraints[ch] = true
	b.constraints[ch] = true
}

func unlinkConstraint(a, b *Body, ch ConstraintHandle) {
	delete(a.constraints, ch)
	delete(b.constraints, ch)
}

// Step advances the world by seconds, running as many fixed-length
// cfg.SimRate substeps as the accumulator covers (capped at
// cfg.MaxSubsteps per call, per spec §4.7's accumulator model), and returns
// every UpdateEvent raised this call.
func (w *World) Step(seconds float64) []UpdateEvent {
	w.events = w.events[:0]
	w.accumulator += seconds
	steps := 0
	for w.accumulator >= w.cfg.SimRate && steps < w.cfg.MaxSubsteps {
		w.substep(w.cfg.SimRate)
		w.accumulator -= w.cfg.SimRate
		steps++
	}
	if steps == w.cfg.MaxSubsteps && w.accumulator >= w.cfg.SimRate {
		w.cfg.Log.Warn("world step exceeded max substeps, dropping accumulated time",
			slog.String("world", w.ID), slog.Float64("behind_seconds", w.accumulator))
		w.accumulator = 0
	}
	return w.events
}

func (w *World) substep(dt float64) {
	w.integrateVelocities(dt)
	w.updateBroadphase()
	w.bp.QueryPairs(w.pairCtx)
	w.narrowphase()
	w.solve(dt)
	w.integratePositions(dt)
}

func (w *World) integrateVelocities(dt float64) {
	w.bodies.Each(func(_ Handle, b *Body) {
		if b.IsStatic() || b.IsAsleep() || b.flags.has(flagKinematic) {
			return
		}
		b.LinVel.X += w.cfg.Gravity.X * dt
		b.LinVel.Y += w.cfg.Gravity.Y * dt
		b.LinVel.Z += w.cfg.Gravity.Z * dt
	})
}

func (w *World) updateBroadphase() {
	w.bodies.Each(func(h Handle, b *Body) {
		if !b.HasCollider || b.IsStatic() || b.IsAsleep() {
			return
		}
		shape, ok := w.shapes.Get(b.Collider.ShapeHandle)
		if !ok {
			return
		}
		(*shape).Aabb(&b.Pose, &b.Collider.WorldAABB, w.cfg.BroadphasePadding)
		b.Collider.bp = w.bp.Update(&b.Collider.WorldAABB, b.Collider.bp)
	})
}

// narrowphase resolves every broadphase pair this substep, running the
// kinds×kinds dispatch and folding the results into each pair's persistent
// manifold, wiring a ContactConstraint and island edge the first time a
// pair is seen (mirrors the teacher's own contactPairs dedup-on-first-sight
// idea in solver.go/contact.go).
func (w *World) narrowphase() {
	for _, pair := range w.pairCtx.Pairs {
		ah, bh := userdataToHandle(pair.A), userdataToHandle(pair.B)
		ab, aok := w.bodies.Get(ah)
		bb, bok := w.bodies.Get(bh)
		if !aok || !bok {
			continue
		}
		if ab.IsStatic() && bb.IsStatic() {
			continue
		}
		if !ab.HasCollider || !bb.HasCollider || !ab.Collider.Enabled || !bb.Collider.Enabled {
			continue
		}
		if ab.IsDisabled() || bb.IsDisabled() {
			continue
		}
		if ab.IsAsleep() && bb.IsAsleep() {
			continue
		}

		m, created := w.constraints.GetOrCreateManifold(ah, bh)
		if m == nil {
			continue // blacklisted: a joint already links this pair
		}

		// Resolve through the manifold's own fixed body order rather than
		// this pair's broadphase order, so PointA/PointB stay anchored to
		// the same body across the manifold's lifetime even if a tree
		// rotation later reports the pair the other way round.
		bodyA, _ := w.bodies.Get(m.BodyA)
		bodyB, _ := w.bodies.Get(m.BodyB)
		shapeA, _ := w.shapes.Get(bodyA.Collider.ShapeHandle)
		shapeB, _ := w.shapes.Get(bodyB.Collider.ShapeHandle)

		if created {
			friction := combinedFriction(bodyA.Collider.mat, bodyB.Collider.mat)
			restitution := combinedRestitution(bodyA.Collider.mat, bodyB.Collider.mat)
			cc := NewContactConstraint(m, friction, restitution)
			ch := w.constraints.RegisterContact(cc)
			linkConstraint(bodyA, bodyB, ch)
			w.islands.Add(ch, m.BodyA, m.BodyB, bodyA.IsStatic(), bodyB.IsStatic())
		}

		w.contacts = w.contacts[:0]
		Narrowphase(*shapeA, &bodyA.Pose, *shapeB, &bodyB.Pose, &w.contacts)
		m.Refresh(&bodyA.Pose, &bodyB.Pose, w.contacts, w.cfg)
	}
}

func (w *World) solve(dt float64) {
	w.islands.Islands(func(id islandID, handles []ConstraintHandle) {
		incoming := w.islands.IslandState(id)
		newState, toRemove := solveIsland(w.bodies, w.constraints, w.cfg, dt, incoming, handles)
		w.islands.UpdateIslandState(id, newState, dt, w.cfg)
		for _, ch := range toRemove {
			if c, ok := w.constraints.Joint(ch); ok {
				a, b := c.Bodies()
				ab, _ := w.bodies.Get(a)
				bb, _ := w.bodies.Get(b)
				if ab != nil && bb != nil {
					unlinkConstraint(ab, bb, ch)
				}
			}
			w.constraints.RemoveContact(ch)
			w.islands.Remove(ch)
		}
	})
}

func (w *World) integratePositions(dt float64) {
	w.bodies.Each(func(h Handle, b *Body) {
		if b.IsStatic() || b.IsAsleep() {
			return
		}
		next := lin.NewT()
		next.Integrate(&b.Pose, &b.LinVel, &b.AngVel, dt)
		b.Pose = *next
		b.refreshWorldInertia()
		w.events = append(w.events, UpdateEvent{
			Body: h, Pos: *b.Pose.Loc, Rot: *b.Pose.Rot, LinVel: b.LinVel, AngVel: b.AngVel,
		})
	})
}

// AddBody inserts a new body at the identity pose with zero velocity and no
// collider, static (infinite mass) until SetColliderShape gives it one.
// hasRigid false pins the body static forever, even across later
// SetColliderShape calls (an immovable prop with a shape, not just a
// bodiless marker). hasCollider false refuses every later
// SetColliderShape call outright, keeping the body out of the broadphase
// entirely (a pure animation root tracked only for its pose).
func (w *World) AddBody(hasRigid, hasCollider bool) BodyHandle {
	return w.bodies.Insert(newBody(hasRigid, hasCollider))
}

// RemoveBody retires body h: its collider leaves the broadphase, its
// material reference is released, and every constraint (joint or contact)
// touching it is torn down along with the matching island edge.
func (w *World) RemoveBody(h BodyHandle) {
	b, ok := w.bodies.Get(h)
	if !ok {
		return
	}
	for ch := range b.constraints {
		if c, ok := w.constraints.Joint(ch); ok {
			a, bh := c.Bodies()
			other := a
			if other == h {
				other = bh
			}
			if ob, ok := w.bodies.Get(other); ok {
				delete(ob.constraints, ch)
			}
			if c.Kind() == ContactConstraintKind {
				w.constraints.RemoveContact(ch)
			} else {
				w.constraints.RemoveJoint(ch)
			}
		}
		w.islands.Remove(ch)
	}
	w.constraints.RemoveBodyManifolds(h) // manifolds never promoted to a ContactConstraint
	if b.HasCollider {
		w.bp.Remove(b.Collider.bp)
		if b.Collider.MaterialHandle.Valid() {
			w.releaseMaterial(b.Collider.MaterialHandle)
		}
	}
	w.bodies.Remove(h)
}

func (w *World) SetStatic(h BodyHandle, static bool) bool {
	b, ok := w.bodies.Get(h)
	if !ok {
		return false
	}
	if static {
		b.flags |= flagStatic
		b.InvMass, b.InvInertiaModel = 0, lin.V3{}
	} else {
		b.flags &^= flagStatic
	}
	w.islands.WakeBody(h, static)
	return true
}

func (w *World) SetKinematic(h BodyHandle, kinematic bool) bool {
	b, ok := w.bodies.Get(h)
	if !ok {
		return false
	}
	if kinematic {
		b.flags |= flagKinematic
	} else {
		b.flags &^= flagKinematic
	}
	return true
}

// LockAngular freezes rotation about the chosen model-space axes, used for
// e.g. a character capsule that must never tip over.
func (w *World) LockAngular(h BodyHandle, x, y, z bool) bool {
	b, ok := w.bodies.Get(h)
	if !ok {
		return false
	}
	b.flags &^= flagLockAngX | flagLockAngY | flagLockAngZ
	if x {
		b.flags |= flagLockAngX
	}
	if y {
		b.flags |= flagLockAngY
	}
	if z {
		b.flags |= flagLockAngZ
	}
	b.refreshWorldInertia()
	return true
}

func (w *World) Pose(h BodyHandle) (pos lin.V3, rot lin.Q, ok bool) {
	b, found := w.bodies.Get(h)
	if !found {
		return lin.V3{}, lin.Q{}, false
	}
	return *b.Pose.Loc, *b.Pose.Rot, true
}

// SetPose teleports body h and wakes its island, since a jump in position
// invalidates whatever resting contact geometry its manifolds cached.
func (w *World) SetPose(h BodyHandle, pos lin.V3, rot lin.Q) bool {
	b, ok := w.bodies.Get(h)
	if !ok {
		return false
	}
	b.Pose.Loc.Set(&pos)
	b.Pose.Rot.Set(&rot)
	b.refreshWorldInertia()
	w.islands.WakeBody(h, b.IsStatic())
	return true
}

func (w *World) Velocity(h BodyHandle) (linVel, angVel lin.V3, ok bool) {
	b, found := w.bodies.Get(h)
	if !found {
		return lin.V3{}, lin.V3{}, false
	}
	return b.LinVel, b.AngVel, true
}

func (w *World) SetVelocity(h BodyHandle, linVel, angVel lin.V3) bool {
	b, ok := w.bodies.Get(h)
	if !ok {
		return false
	}
	b.LinVel, b.AngVel = linVel, angVel
	w.islands.WakeBody(h, b.IsStatic())
	return true
}

func (w *World) SetColliderEnabled(h BodyHandle, enabled bool) bool {
	b, ok := w.bodies.Get(h)
	if !ok || !b.HasCollider {
		return false
	}
	b.Collider.Enabled = enabled
	return true
}

// AddShape registers a shape for use by any number of colliders. Per spec
// §6, a non-Environment shape is re-centered to its own center of mass on
// registration (Mesh: vertex centroid; Composite: mass-weighted sub
// centroid, shifting every sub-shape's local transform to compensate).
func (w *World) AddShape(s Shape) ShapeHandle {
	switch v := s.(type) {
	case *Mesh:
		recenterMesh(v)
	case *Composite:
		v.Recenter()
	}
	return w.shapes.Insert(s)
}

func (w *World) RemoveShape(h ShapeHandle) { w.shapes.Remove(h) }

// AddMaterial registers a material, unreferenced until a collider adopts it.
func (w *World) AddMaterial(m Material) MaterialHandle {
	return w.materials.Insert(materialSlot{mat: m})
}

// RemoveMaterial marks material h for deferred deletion: it frees
// immediately if no collider currently references it, otherwise once the
// last referencing collider releases it (SetMaterial/SetColliderShape
// switching away, or RemoveBody), per spec §9's material-deletion-ordering
// open question.
func (w *World) RemoveMaterial(h MaterialHandle) {
	slot, ok := w.materials.Get(h)
	if !ok {
		return
	}
	slot.marked = true
	if slot.refs == 0 {
		w.materials.Remove(h)
	}
}

// CollectGarbage frees every marked, now-unreferenced material slot. Safe
// to call at any point between steps; never called mid-step so a collider
// resolving this step's contacts never loses the material it already
// copied into Collider.mat.
func (w *World) CollectGarbage() {
	var dead []MaterialHandle
	w.materials.Each(func(h Handle, s *materialSlot) {
		if s.marked && s.refs == 0 {
			dead = append(dead, h)
		}
	})
	for _, h := range dead {
		w.materials.Remove(h)
	}
}

func (w *World) acquireMaterial(h MaterialHandle) (Material, bool) {
	slot, ok := w.materials.Get(h)
	if !ok {
		return Material{}, false
	}
	slot.refs++
	return slot.mat, true
}

func (w *World) releaseMaterial(h MaterialHandle) {
	slot, ok := w.materials.Get(h)
	if !ok {
		return
	}
	slot.refs--
	if slot.marked && slot.refs <= 0 {
		w.materials.Remove(h)
	}
}

// SetMaterial switches body h's collider to material mh, refcounting the
// old and new slots and refreshing the body's mass from the new density.
func (w *World) SetMaterial(h BodyHandle, mh MaterialHandle) bool {
	b, ok := w.bodies.Get(h)
	if !ok || !b.HasCollider {
		return false
	}
	mat, ok := w.acquireMaterial(mh)
	if !ok {
		return false
	}
	if b.Collider.MaterialHandle.Valid() {
		w.releaseMaterial(b.Collider.MaterialHandle)
	}
	b.Collider.MaterialHandle = mh
	b.Collider.mat = mat
	w.refreshMass(h)
	return true
}

// SetColliderShape attaches shape sh and material mh to body h, registering
// it with the broadphase (replacing any prior collider) and deriving the
// body's mass from the shape's volume and the material's density.
func (w *World) SetColliderShape(h BodyHandle, sh ShapeHandle, mh MaterialHandle) bool {
	b, ok := w.bodies.Get(h)
	if !ok || !b.canCollide {
		return false
	}
	shape, ok := w.shapes.Get(sh)
	if !ok {
		return false
	}
	mat, ok := w.acquireMaterial(mh)
	if !ok {
		return false
	}
	if b.HasCollider {
		w.bp.Remove(b.Collider.bp)
		if b.Collider.MaterialHandle.Valid() {
			w.releaseMaterial(b.Collider.MaterialHandle)
		}
	}
	b.Collider.ShapeHandle = sh
	b.Collider.MaterialHandle = mh
	b.Collider.mat = mat
	(*shape).Aabb(lin.NewT(), &b.Collider.ModelAABB, 0)
	(*shape).Aabb(&b.Pose, &b.Collider.WorldAABB, w.cfg.BroadphasePadding)
	b.Collider.bp = w.bp.Insert(&b.Collider.WorldAABB, handleToUserdata(h))
	b.Collider.Enabled = true
	b.HasCollider = true
	w.refreshMass(h)
	return true
}

func (w *World) refreshMass(h BodyHandle) {
	b, ok := w.bodies.Get(h)
	if !ok || !b.HasCollider || !b.hasRigid {
		return
	}
	shape, ok := w.shapes.Get(b.Collider.ShapeHandle)
	if !ok {
		return
	}
	info := (*shape).MassInfo(b.Collider.mat.Density)
	b.SetMass(info.Mass, info.Inertia)
}

func (w *World) addJoint(a, b BodyHandle, c Constraint) (ConstraintHandle, bool) {
	ab, aok := w.bodies.Get(a)
	bb, bok := w.bodies.Get(b)
	if !aok || !bok {
		return Handle{}, false
	}
	h := w.constraints.AddJoint(c)
	linkConstraint(ab, bb, h)
	w.islands.Add(h, a, b, ab.IsStatic(), bb.IsStatic())
	return h, true
}

// AddDistance pins bodies a and b's local anchors to a fixed distance apart.
func (w *World) AddDistance(a, b BodyHandle, localA, localB lin.V3, distance float64) (ConstraintHandle, bool) {
	return w.addJoint(a, b, NewDistanceJoint(a, b, localA, localB, distance))
}

// AddSpherical pins bodies a and b's local anchors together with an
// optional swing-twist cone limit referenced against refA/refB.
func (w *World) AddSpherical(a, b BodyHandle, localA, localB lin.V3, refA, refB lin.Q) (ConstraintHandle, bool) {
	return w.addJoint(a, b, NewSphericalJoint(a, b, localA, localB, refA, refB))
}

// AddRevolute pins bodies a and b's local anchors together with a single
// free rotation axis and an optional angle limit/motor.
func (w *World) AddRevolute(a, b BodyHandle, localA, localB lin.V3, refA, refB lin.Q) (ConstraintHandle, bool) {
	return w.addJoint(a, b, NewRevoluteJoint(a, b, localA, localB, refA, refB))
}

// AddWeld rigidly fuses bodies a and b at their current relative pose.
func (w *World) AddWeld(a, b BodyHandle, localA, localB lin.V3) (ConstraintHandle, bool) {
	ab, aok := w.bodies.Get(a)
	bb, bok := w.bodies.Get(b)
	if !aok || !bok {
		return Handle{}, false
	}
	return w.addJoint(a, b, NewWeldJoint(a, b, localA, localB, ab, bb))
}

// RemoveConstraint discards a joint (not a contact; contacts are retired
// automatically by the solver once their manifold has been empty for
// cfg.TimeToRemove) and un-blacklists its body pair.
func (w *World) RemoveConstraint(h ConstraintHandle) {
	c, ok := w.constraints.Joint(h)
	if !ok {
		return
	}
	a, b := c.Bodies()
	if ab, ok := w.bodies.Get(a); ok {
		if bb, ok := w.bodies.Get(b); ok {
			unlinkConstraint(ab, bb, h)
		}
	}
	w.constraints.RemoveJoint(h)
	w.islands.Remove(h)
}
