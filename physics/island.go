// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

// SleepState is the per-island state in the Active/Awake/Asleep/Inactive
// cycle: Active and Inactive are steady states reported every step by the
// solver; Awake and Asleep are the one-step transition edges into and out
// of activity, there so callers (e.g. a renderer deciding whether to
// re-upload a transform) can react to the edge rather than polling level.
type SleepState int

const (
	Active SleepState = iota
	Inactive
	Awake
	Asleep
)

func (s SleepState) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Awake:
		return "awake"
	case Asleep:
		return "asleep"
	default:
		return "unknown"
	}
}

// islandID names one connected-component record; the zero value means "no
// island" (unconstrained bodies, and the shared static node, never have
// one).
type islandID uint32

// nodeIndex names a non-static body's slot in the graph's node table.
// staticNode is the single sentinel every static body collapses to: static
// bodies never carry an island membership or an adjacency list of their
// own (per §4.5, edges touching them are found through the constraint's
// endpoints, not a materialized list on the node), so there is nothing to
// distinguish one static body's graph presence from another's.
type nodeIndex int32

const staticNode nodeIndex = -1

type islandNode struct {
	body   BodyHandle
	island islandID
	edges  []int32 // indices into IslandGraph.edges
}

type islandEdge struct {
	constraint ConstraintHandle
	from, to   nodeIndex
	live       bool
}

type islandRecord struct {
	root         nodeIndex
	size         int // count of non-static member nodes
	state        SleepState
	inactiveTime float64
	alive        bool
}

// IslandGraph partitions the constraint graph (bodies as nodes, joints and
// contacts as edges) into connected components so the solver can step each
// independently and so sleep state can be tracked per component rather
// than per body. Grounded on the teacher pack's IslandGraph (original
// C++: SyxIslandGraph), generalized from its handle-recycling containers
// to Go's generation-indexed arena idiom used by the rest of this package.
type IslandGraph struct {
	nodes   []islandNode
	edges   []islandEdge
	islands []islandRecord

	bodyToNode       map[BodyHandle]nodeIndex
	constraintToEdge map[ConstraintHandle]int32
	edgesByBody      map[BodyHandle][]int32 // used by RemoveBody and WakeBody, incl. static bodies
}

// NewIslandGraph returns an empty island graph.
func NewIslandGraph() *IslandGraph {
	return &IslandGraph{
		bodyToNode:       make(map[BodyHandle]nodeIndex),
		constraintToEdge: make(map[ConstraintHandle]int32),
		edgesByBody:      make(map[BodyHandle][]int32),
	}
}

func (g *IslandGraph) nodeFor(h BodyHandle, static bool) nodeIndex {
	if static {
		return staticNode
	}
	if n, ok := g.bodyToNode[h]; ok {
		return n
	}
	idx := nodeIndex(len(g.nodes))
	g.nodes = append(g.nodes, islandNode{body: h})
	g.bodyToNode[h] = idx
	return idx
}

func (g *IslandGraph) newIsland(root nodeIndex) islandID {
	g.islands = append(g.islands, islandRecord{root: root, size: 0, state: Awake, alive: true})
	return islandID(len(g.islands))
}

func (g *IslandGraph) island(id islandID) *islandRecord {
	if id == 0 {
		return nil
	}
	return &g.islands[id-1]
}

func (g *IslandGraph) link(a, b nodeIndex, edge int32) {
	if a != staticNode {
		g.nodes[a].edges = append(g.nodes[a].edges, edge)
	}
	if b != staticNode {
		g.nodes[b].edges = append(g.nodes[b].edges, edge)
	}
}

func (g *IslandGraph) unlink(n nodeIndex, edge int32) {
	if n == staticNode {
		return
	}
	list := g.nodes[n].edges
	for i, e := range list {
		if e == edge {
			list[i] = list[len(list)-1]
			g.nodes[n].edges = list[:len(list)-1]
			return
		}
	}
}

// Add inserts constraint ch as an edge between bodies a and b (static flags
// tell the graph which endpoint, if either, collapses to the shared static
// node), implementing the four-case union described in §4.5. A
// static-static edge is rejected: it carries no activity to propagate and
// the caller should never need island membership for it.
func (g *IslandGraph) Add(ch ConstraintHandle, a, b BodyHandle, aStatic, bStatic bool) {
	if aStatic && bStatic {
		return
	}
	na := g.nodeFor(a, aStatic)
	nb := g.nodeFor(b, bStatic)

	edgeIdx := int32(len(g.edges))
	g.edges = append(g.edges, islandEdge{constraint: ch, from: na, to: nb, live: true})
	g.constraintToEdge[ch] = edgeIdx
	g.link(na, nb, edgeIdx)
	g.edgesByBody[a] = append(g.edgesByBody[a], edgeIdx)
	g.edgesByBody[b] = append(g.edgesByBody[b], edgeIdx)

	switch {
	case aStatic || bStatic:
		// Exactly one real island is involved; a static edge never merges
		// two non-static islands (a static body may anchor many islands
		// independently, per §4.5's invariant).
		n := na
		if aStatic {
			n = nb
		}
		g.attachSingle(n)

	default:
		g.unionNonStatic(na, nb)
	}
	g.wakeIslandOf(na)
	g.wakeIslandOf(nb)
}

// attachSingle ensures non-static node n belongs to an island (creating a
// fresh one-member island if it was islandless) after gaining a static
// edge.
func (g *IslandGraph) attachSingle(n nodeIndex) {
	node := &g.nodes[n]
	if node.island != 0 {
		return
	}
	id := g.newIsland(n)
	node.island = id
	g.island(id).size = 1
}

// unionNonStatic implements add(constraint)'s remaining four cases for a
// pair of non-static nodes: both islandless, same island, one islandless,
// or two different islands (merged by relabeling the smaller one).
func (g *IslandGraph) unionNonStatic(na, nb nodeIndex) {
	nodeA, nodeB := &g.nodes[na], &g.nodes[nb]
	switch {
	case nodeA.island == 0 && nodeB.island == 0:
		id := g.newIsland(na)
		nodeA.island, nodeB.island = id, id
		g.island(id).size = 2

	case nodeA.island == nodeB.island:
		// already unioned; nothing further to do

	case nodeA.island == 0:
		id := nodeB.island
		nodeA.island = id
		g.island(id).size++

	case nodeB.island == 0:
		id := nodeA.island
		nodeB.island = id
		g.island(id).size++

	default:
		small, big := nodeA.island, nodeB.island
		if g.island(small).size > g.island(big).size {
			small, big = big, small
		}
		g.relabel(small, big)
	}
}

// relabel walks every non-static node in island `from` (BFS over edges,
// stopping at the shared static node) and assigns it to island `to`,
// then discards `from`.
func (g *IslandGraph) relabel(from, to islandID) {
	root := g.island(from).root
	visited := map[nodeIndex]bool{root: true}
	queue := []nodeIndex{root}
	count := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		g.nodes[n].island = to
		count++
		for _, e := range g.nodes[n].edges {
			edge := &g.edges[e]
			other := edge.to
			if other == n {
				other = edge.from
			}
			if other == staticNode || visited[other] || g.nodes[other].island == to {
				continue
			}
			visited[other] = true
			queue = append(queue, other)
		}
	}
	g.island(to).size += count
	g.island(from).alive = false
}

func (g *IslandGraph) wakeIslandOf(n nodeIndex) {
	if n == staticNode {
		return
	}
	g.wakeIsland(g.nodes[n].island)
}

// wakeIsland forces island id to Awake with its inactive-time accumulator
// reset, per §4.5: "Any graph mutation (add edge, remove edge, explicit
// wake(body)) forces the affected island(s) to Awake." Used by both edge
// addition (wakeIslandOf) and edge removal (Remove/splitCheck), since a
// removal can just as well disturb an island that was Asleep/Inactive.
func (g *IslandGraph) wakeIsland(id islandID) {
	if id == 0 {
		return
	}
	rec := g.island(id)
	if !rec.alive {
		return
	}
	rec.state = Awake
	rec.inactiveTime = 0
}

// WakeBody forces the island containing body h to Awake, used for
// out-of-band activity like an explicit position set. Waking a static
// body wakes every island anchored to it.
func (g *IslandGraph) WakeBody(h BodyHandle, static bool) {
	if static {
		for _, e := range g.edgesByBody[h] {
			edge := &g.edges[e]
			if !edge.live {
				continue
			}
			g.wakeIslandOf(edge.from)
			g.wakeIslandOf(edge.to)
		}
		return
	}
	if n, ok := g.bodyToNode[h]; ok {
		g.wakeIslandOf(n)
	}
}

// Remove drops constraint ch's edge from the graph, splitting its island
// if the edge was a bridge per §4.5's remove(constraint) algorithm.
func (g *IslandGraph) Remove(ch ConstraintHandle) {
	edgeIdx, ok := g.constraintToEdge[ch]
	if !ok {
		return
	}
	edge := &g.edges[edgeIdx]
	if !edge.live {
		return
	}
	edge.live = false
	delete(g.constraintToEdge, ch)
	g.unlink(edge.from, edgeIdx)
	g.unlink(edge.to, edgeIdx)

	if edge.from == staticNode || edge.to == staticNode {
		n := edge.from
		if edge.from == staticNode {
			n = edge.to
		}
		g.detachIfIsolated(n)
		g.wakeIsland(g.nodes[n].island)
		return
	}
	g.splitCheck(edge.from, edge.to)
}

// detachIfIsolated clears n's island membership once it has no edges
// left, decrementing the old island's size. A body-graph node with no
// edges carries no island at all (§4.5: "it detaches; just update island
// size").
func (g *IslandGraph) detachIfIsolated(n nodeIndex) {
	node := &g.nodes[n]
	if len(node.edges) > 0 || node.island == 0 {
		return
	}
	rec := g.island(node.island)
	rec.size--
	if rec.size <= 0 {
		rec.alive = false
	}
	node.island = 0
}

// splitCheck runs after removing an edge between two non-static nodes that
// shared an island: gather every node still reachable from the island's
// root; if that count is short of the island's recorded size, the
// unreached remainder split off into a new island.
func (g *IslandGraph) splitCheck(a, b nodeIndex) {
	g.detachIfIsolated(a)
	g.detachIfIsolated(b)

	id := g.nodes[a].island
	if id == 0 {
		id = g.nodes[b].island
	}
	if id == 0 {
		return
	}
	rec := g.island(id)
	root := rec.root
	if g.nodes[root].island != id {
		root = a
		if g.nodes[a].island != id {
			root = b
		}
	}

	reached := g.gather(root)
	if len(reached) == rec.size {
		rec.root = root
		g.wakeIsland(id)
		return
	}

	// Find a node still labeled id but not reached: the split-off half.
	var newRoot nodeIndex = -1
	for i := range g.nodes {
		ni := nodeIndex(i)
		if g.nodes[ni].island == id && !reached[ni] {
			newRoot = ni
			break
		}
	}
	if newRoot == -1 {
		rec.size = len(reached)
		rec.root = root
		g.wakeIsland(id)
		return
	}

	newID := g.newIsland(newRoot)
	count := 0
	for n := range g.nodes {
		ni := nodeIndex(n)
		if g.nodes[ni].island == id && !reached[ni] {
			g.nodes[ni].island = newID
			count++
		}
	}
	g.island(newID).size = count
	rec.size = len(reached)
	rec.root = root
	// The edge removal disturbed both halves of the split, regardless of
	// whatever steady state the parent island was in; §4.5 requires both
	// to come back Awake rather than the new island inheriting a
	// possibly-Asleep/Inactive state from before the split.
	g.wakeIsland(id)
	g.wakeIsland(newID)
}

func (g *IslandGraph) gather(root nodeIndex) map[nodeIndex]bool {
	visited := map[nodeIndex]bool{root: true}
	queue := []nodeIndex{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.nodes[n].edges {
			edge := &g.edges[e]
			other := edge.to
			if other == n {
				other = edge.from
			}
			if other == staticNode || visited[other] {
				continue
			}
			visited[other] = true
			queue = append(queue, other)
		}
	}
	return visited
}

// RemoveBody deletes every edge touching body h (static or not) from the
// graph and returns the constraint handles that were removed, so the
// caller can also drop them from its ConstraintSet.
func (g *IslandGraph) RemoveBody(h BodyHandle) []ConstraintHandle {
	edgeIdxs := append([]int32(nil), g.edgesByBody[h]...)
	var removed []ConstraintHandle
	for _, e := range edgeIdxs {
		edge := &g.edges[e]
		if !edge.live {
			continue
		}
		removed = append(removed, edge.constraint)
		g.Remove(edge.constraint)
	}
	delete(g.edgesByBody, h)
	delete(g.bodyToNode, h)
	return removed
}

// UpdateIslandState advances island id's sleep state machine by one step,
// given the caller's Active/Inactive report for that step and the world's
// configured TimeToSleep (§4.5).
func (g *IslandGraph) UpdateIslandState(id islandID, stateThisFrame SleepState, dt float64, cfg *WorldConfig) {
	rec := g.island(id)
	if rec == nil || !rec.alive {
		return
	}
	switch stateThisFrame {
	case Active:
		if rec.state == Awake {
			rec.state = Active
		} else if rec.state == Asleep || rec.state == Inactive {
			rec.state = Awake
		}
		rec.inactiveTime = 0
	case Inactive:
		rec.inactiveTime += dt
		switch rec.state {
		case Awake, Active:
			if rec.inactiveTime > cfg.TimeToSleep {
				rec.state = Asleep
			}
		case Asleep:
			rec.state = Inactive
		}
	}
}

// IslandState returns island id's current sleep state.
func (g *IslandGraph) IslandState(id islandID) SleepState {
	rec := g.island(id)
	if rec == nil {
		return Active
	}
	return rec.state
}

// Islands calls fn once per live island with its id and the constraint
// handles belonging to it (deduplicated, since a constraint edge may be
// reachable from either endpoint's adjacency list).
func (g *IslandGraph) Islands(fn func(id islandID, constraints []ConstraintHandle)) {
	for i := range g.islands {
		if !g.islands[i].alive {
			continue
		}
		id := islandID(i + 1)
		seen := map[ConstraintHandle]bool{}
		var constraints []ConstraintHandle
		for ni := range g.nodes {
			if g.nodes[ni].island != id {
				continue
			}
			for _, e := range g.nodes[ni].edges {
				c := g.edges[e].constraint
				if !seen[c] {
					seen[c] = true
					constraints = append(constraints, c)
				}
			}
		}
		fn(id, constraints)
	}
}

// IslandOf returns the island id containing body h, or 0 if h carries no
// constraint edges (an unconstrained body is not tracked by the graph at
// all; the solver steps it individually).
func (g *IslandGraph) IslandOf(h BodyHandle) islandID {
	n, ok := g.bodyToNode[h]
	if !ok {
		return 0
	}
	return g.nodes[n].island
}
