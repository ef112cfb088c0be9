// Copyright © 2013-2015 Galvanized Logic Inc.
// Use is governed by a BSD-style license found in the LICENSE file.

package physics

import "github.com/gazed/rigid/math/lin"

// nullNode marks an absent child, parent, or free-list entry.
const nullNode = -1

// bpNode is one slot in the broadphase's node pool. Leaves carry userdata;
// internal nodes carry left/right child indices. Both cases carry an AABB,
// height, and parent index, so the union is encoded with isLeaf rather than
// as a Go union (not available) per the "tagged variant" design note.
type bpNode struct {
	aabb     lin.AABB
	parent   int32
	left     int32
	right    int32
	height   int32
	isLeaf   bool
	userdata uint64
}

// BPHandle names a leaf inserted into a Broadphase tree.
type BPHandle struct {
	index int32
	gen   uint32
}

// Valid reports whether h could plausibly name a live leaf. It does not
// guarantee the leaf has not since been removed and the slot reused.
func (h BPHandle) Valid() bool { return h.index != nullNode }

// Broadphase is a dynamic AABB tree: a coarse acceleration structure that
// maps handles to padded bounding boxes and answers overlapping-pair, ray,
// and volume queries over the current set of inserted boxes.
type Broadphase struct {
	nodes     []bpNode
	gens      []uint32
	freeList  []int32
	root      int32
	padding   float64
}

// NewBroadphase creates an empty tree. padding is the fractional AABB
// inflation applied to every inserted or updated box (see lin.AABB.Pad).
func NewBroadphase(padding float64) *Broadphase {
	return &Broadphase{root: nullNode, padding: padding}
}

func (bp *Broadphase) allocNode() int32 {
	if n := len(bp.freeList); n > 0 {
		idx := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		bp.nodes[idx] = bpNode{parent: nullNode, left: nullNode, right: nullNode}
		return idx
	}
	bp.nodes = append(bp.nodes, bpNode{parent: nullNode, left: nullNode, right: nullNode})
	bp.gens = append(bp.gens, 1)
	return int32(len(bp.nodes) - 1)
}

func (bp *Broadphase) freeNode(idx int32) {
	bp.nodes[idx] = bpNode{}
	bp.gens[idx]++
	bp.freeList = append(bp.freeList, idx)
}

// Insert stores box (after fractional padding) with the given userdata and
// returns the stable handle naming it.
func (bp *Broadphase) Insert(box *lin.AABB, userdata uint64) BPHandle {
	leaf := bp.allocNode()
	bp.nodes[leaf].isLeaf = true
	bp.nodes[leaf].userdata = userdata
	bp.nodes[leaf].aabb.Set(box).Pad(bp.padding)
	bp.nodes[leaf].height = 0
	bp.insertLeaf(leaf)
	return BPHandle{index: leaf, gen: bp.gens[leaf]}
}

// Remove deletes the leaf named by h and repairs the tree. Removing an
// invalid or already-removed handle is a no-op.
func (bp *Broadphase) Remove(h BPHandle) {
	leaf, ok := bp.resolve(h)
	if !ok {
		return
	}
	bp.removeLeaf(leaf)
	bp.freeNode(leaf)
}

// Update checks whether box still fits inside the leaf's current padded
// AABB (fattened box already contains the tight box); if so it is a no-op
// and h is returned unchanged. Otherwise the leaf is removed and a new one
// is inserted with a freshly padded box, and the new handle is returned.
func (bp *Broadphase) Update(box *lin.AABB, h BPHandle) BPHandle {
	leaf, ok := bp.resolve(h)
	if !ok {
		return h
	}
	if bp.nodes[leaf].aabb.Contains(box) {
		return h
	}
	userdata := bp.nodes[leaf].userdata
	bp.removeLeaf(leaf)
	bp.freeNode(leaf)
	return bp.Insert(box, userdata)
}

// Clear discards every node, leaving an empty tree.
func (bp *Broadphase) Clear() {
	bp.nodes = bp.nodes[:0]
	bp.gens = bp.gens[:0]
	bp.freeList = bp.freeList[:0]
	bp.root = nullNode
}

func (bp *Broadphase) resolve(h BPHandle) (int32, bool) {
	if !h.Valid() || int(h.index) >= len(bp.nodes) {
		return 0, false
	}
	if bp.gens[h.index] != h.gen || !bp.nodes[h.index].isLeaf {
		return 0, false
	}
	return h.index, true
}

// insertLeaf implements the surface-area-heuristic descent from §4.1: at
// each internal node, compare the cost of stopping here (making a new
// sibling) to descending into either child, accounting for the inherited
// cost increase every ancestor above the splice point will pay.
func (bp *Broadphase) insertLeaf(leaf int32) {
	if bp.root == nullNode {
		bp.root = leaf
		bp.nodes[leaf].parent = nullNode
		return
	}

	leafBox := &bp.nodes[leaf].aabb
	node := bp.root
	for !bp.nodes[node].isLeaf {
		left, right := bp.nodes[node].left, bp.nodes[node].right
		area := bp.nodes[node].aabb.SurfaceArea()

		var combined lin.AABB
		combined.Union(&bp.nodes[node].aabb, leafBox)
		combinedArea := combined.SurfaceArea()

		cost := 2 * combinedArea
		inheritance := 2 * (combinedArea - area)

		costLeft := bp.descendCost(left, leafBox) + inheritance
		costRight := bp.descendCost(right, leafBox) + inheritance

		if cost < costLeft && cost < costRight {
			break
		}
		if costLeft < costRight {
			node = left
		} else {
			node = right
		}
	}

	sibling := node
	oldParent := bp.nodes[sibling].parent
	newParent := bp.allocNode()
	bp.nodes[newParent].parent = oldParent
	var unioned lin.AABB
	unioned.Union(&bp.nodes[sibling].aabb, leafBox)
	bp.nodes[newParent].aabb = unioned
	bp.nodes[newParent].height = bp.nodes[sibling].height + 1

	if oldParent != nullNode {
		if bp.nodes[oldParent].left == sibling {
			bp.nodes[oldParent].left = newParent
		} else {
			bp.nodes[oldParent].right = newParent
		}
		bp.nodes[newParent].left = sibling
		bp.nodes[newParent].right = leaf
		bp.nodes[sibling].parent = newParent
		bp.nodes[leaf].parent = newParent
	} else {
		bp.nodes[newParent].left = sibling
		bp.nodes[newParent].right = leaf
		bp.nodes[sibling].parent = newParent
		bp.nodes[leaf].parent = newParent
		bp.root = newParent
	}

	bp.fixupFrom(bp.nodes[leaf].parent)
}

// descendCost is SA(union(child, newbox)), minus the child's own area if
// the child is internal (the cost of creating a new node there is only
// the delta, since the child's existing area is paid for already).
func (bp *Broadphase) descendCost(child int32, newbox *lin.AABB) float64 {
	var combined lin.AABB
	combined.Union(&bp.nodes[child].aabb, newbox)
	cost := combined.SurfaceArea()
	if !bp.nodes[child].isLeaf {
		cost -= bp.nodes[child].aabb.SurfaceArea()
	}
	return cost
}

// fixupFrom walks from node to the root, rebalancing and refreshing height
// and AABB at each step.
func (bp *Broadphase) fixupFrom(node int32) {
	for node != nullNode {
		node = bp.balance(node)
		left, right := bp.nodes[node].left, bp.nodes[node].right
		bp.nodes[node].height = 1 + max32(bp.nodes[left].height, bp.nodes[right].height)
		var unioned lin.AABB
		unioned.Union(&bp.nodes[left].aabb, &bp.nodes[right].aabb)
		bp.nodes[node].aabb = unioned
		node = bp.nodes[node].parent
	}
}

// balance performs an AVL-style rotation at node if its children's heights
// differ by more than 1, promoting the taller grandchild into the parent's
// slot. It returns the index that now occupies node's former position
// (unchanged if no rotation occurred).
func (bp *Broadphase) balance(node int32) int32 {
	if bp.nodes[node].isLeaf || bp.nodes[node].height < 2 {
		return node
	}
	left, right := bp.nodes[node].left, bp.nodes[node].right
	balanceFactor := bp.nodes[right].height - bp.nodes[left].height

	if balanceFactor > 1 {
		return bp.rotate(node, right, left)
	}
	if balanceFactor < -1 {
		return bp.rotate(node, left, right)
	}
	return node
}

// rotate promotes child (the taller side) into node's slot, demoting node
// to be a child of the promoted node. The grandchild of child that stays
// taller is chosen to remain with the promoted node; the other grandchild
// is handed to node.
func (bp *Broadphase) rotate(node, child, sibling int32) int32 {
	grandLeft, grandRight := bp.nodes[child].left, bp.nodes[child].right

	// reparent child into node's old slot.
	parent := bp.nodes[node].parent
	bp.nodes[child].parent = parent
	if parent != nullNode {
		if bp.nodes[parent].left == node {
			bp.nodes[parent].left = child
		} else {
			bp.nodes[parent].right = child
		}
	} else {
		bp.root = child
	}

	var keep, swap int32
	if bp.nodes[grandLeft].height > bp.nodes[grandRight].height {
		keep, swap = grandLeft, grandRight
	} else {
		keep, swap = grandRight, grandLeft
	}

	if bp.nodes[node].left == sibling {
		bp.nodes[node].right = swap
	} else {
		bp.nodes[node].left = swap
	}
	bp.nodes[swap].parent = node

	if bp.nodes[child].left == keep {
		bp.nodes[child].right = node
	} else {
		bp.nodes[child].left = node
	}
	bp.nodes[node].parent = child

	var nodeUnion lin.AABB
	nodeUnion.Union(&bp.nodes[sibling].aabb, &bp.nodes[swap].aabb)
	bp.nodes[node].aabb = nodeUnion
	bp.nodes[node].height = 1 + max32(bp.nodes[sibling].height, bp.nodes[swap].height)

	var childUnion lin.AABB
	childUnion.Union(&bp.nodes[node].aabb, &bp.nodes[keep].aabb)
	bp.nodes[child].aabb = childUnion
	bp.nodes[child].height = 1 + max32(bp.nodes[node].height, bp.nodes[keep].height)

	return child
}

func (bp *Broadphase) removeLeaf(leaf int32) {
	if leaf == bp.root {
		bp.root = nullNode
		return
	}
	parent := bp.nodes[leaf].parent
	grandparent := bp.nodes[parent].parent
	var sibling int32
	if bp.nodes[parent].left == leaf {
		sibling = bp.nodes[parent].right
	} else {
		sibling = bp.nodes[parent].left
	}

	if grandparent != nullNode {
		if bp.nodes[grandparent].left == parent {
			bp.nodes[grandparent].left = sibling
		} else {
			bp.nodes[grandparent].right = sibling
		}
		bp.nodes[sibling].parent = grandparent
		bp.freeNode(parent)
		bp.fixupFrom(grandparent)
	} else {
		bp.root = sibling
		bp.nodes[sibling].parent = nullNode
		bp.freeNode(parent)
	}
}

// Pair is one overlapping leaf pair reported by a PairQuery.
type Pair struct {
	A, B uint64
}

// PairContext is a reusable buffer for QueryPairs. Reuse across calls to
// avoid reallocating the pair slice and traversal stack every step.
type PairContext struct {
	Pairs     []Pair
	stack     []int32pair
	traversed map[int32]bool
}

type int32pair struct{ a, b int32 }

// NewPairContext creates an empty, reusable pair-query context.
func NewPairContext() *PairContext {
	return &PairContext{traversed: make(map[int32]bool)}
}

// QueryPairs finds every pair of overlapping leaves and appends them to
// ctx.Pairs (which is reset first). The implementation is the explicit
// node-pair stack walk of §4.1: leaves are always emitted in pairs, and
// internal self-descent is guarded by a traversed set so that a branch's
// two children are only expanded against each other once.
func (bp *Broadphase) QueryPairs(ctx *PairContext) {
	ctx.Pairs = ctx.Pairs[:0]
	ctx.stack = ctx.stack[:0]
	for k := range ctx.traversed {
		delete(ctx.traversed, k)
	}
	if bp.root == nullNode || bp.nodes[bp.root].isLeaf {
		return
	}
	ctx.stack = append(ctx.stack, int32pair{bp.nodes[bp.root].left, bp.nodes[bp.root].right})

	for len(ctx.stack) > 0 {
		n := len(ctx.stack) - 1
		pair := ctx.stack[n]
		ctx.stack = ctx.stack[:n]
		a, b := pair.a, pair.b

		sameParent := bp.nodes[a].parent == bp.nodes[b].parent && a != b
		if !bp.nodes[a].aabb.Overlaps(&bp.nodes[b].aabb) && !sameParent {
			continue
		}

		aLeaf, bLeaf := bp.nodes[a].isLeaf, bp.nodes[b].isLeaf
		switch {
		case aLeaf && bLeaf:
			if a != b && bp.nodes[a].aabb.Overlaps(&bp.nodes[b].aabb) {
				ctx.Pairs = append(ctx.Pairs, Pair{bp.nodes[a].userdata, bp.nodes[b].userdata})
			}
		case aLeaf && !bLeaf:
			bl, br := bp.nodes[b].left, bp.nodes[b].right
			ctx.stack = append(ctx.stack, int32pair{a, bl}, int32pair{a, br})
			if !ctx.traversed[b] {
				ctx.traversed[b] = true
				ctx.stack = append(ctx.stack, int32pair{bl, br})
			}
		case !aLeaf && bLeaf:
			al, ar := bp.nodes[a].left, bp.nodes[a].right
			ctx.stack = append(ctx.stack, int32pair{al, b}, int32pair{ar, b})
			if !ctx.traversed[a] {
				ctx.traversed[a] = true
				ctx.stack = append(ctx.stack, int32pair{al, ar})
			}
		default:
			al, ar := bp.nodes[a].left, bp.nodes[a].right
			bl, br := bp.nodes[b].left, bp.nodes[b].right
			ctx.stack = append(ctx.stack, int32pair{al, bl}, int32pair{al, br}, int32pair{ar, bl}, int32pair{ar, br})
			if !ctx.traversed[a] {
				ctx.traversed[a] = true
				ctx.stack = append(ctx.stack, int32pair{al, ar})
			}
			if !ctx.traversed[b] {
				ctx.traversed[b] = true
				ctx.stack = append(ctx.stack, int32pair{bl, br})
			}
		}
	}
}

// RayHit is one leaf struck by a RayQuery.
type RayHit struct {
	Userdata uint64
}

// RayQuery walks the tree breadth-first, slab-testing each node's AABB
// against the segment start→end, and appends every struck leaf's userdata
// to hits (which is reset first). The segment is parameterized as
// start + t*(end-start), t ∈ [0, 1].
func (bp *Broadphase) RayQuery(start, end *lin.V3, hits *[]RayHit) {
	*hits = (*hits)[:0]
	if bp.root == nullNode {
		return
	}
	queue := []int32{bp.root}
	dir := lin.V3{X: end.X - start.X, Y: end.Y - start.Y, Z: end.Z - start.Z}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if !rayIntersectsAABB(start, &dir, &bp.nodes[node].aabb) {
			continue
		}
		if bp.nodes[node].isLeaf {
			*hits = append(*hits, RayHit{Userdata: bp.nodes[node].userdata})
			continue
		}
		queue = append(queue, bp.nodes[node].left, bp.nodes[node].right)
	}
}

func rayIntersectsAABB(start, dir *lin.V3, box *lin.AABB) bool {
	tmin, tmax := 0.0, 1.0
	if !slabClip(start.X, dir.X, box.Sx, box.Lx, &tmin, &tmax) {
		return false
	}
	if !slabClip(start.Y, dir.Y, box.Sy, box.Ly, &tmin, &tmax) {
		return false
	}
	if !slabClip(start.Z, dir.Z, box.Sz, box.Lz, &tmin, &tmax) {
		return false
	}
	return tmax >= 0 && tmin <= tmax && tmin <= 1
}

func slabClip(origin, dir, lo, hi float64, tmin, tmax *float64) bool {
	if dir == 0 {
		return origin >= lo && origin <= hi
	}
	inv := 1.0 / dir
	t0, t1 := (lo-origin)*inv, (hi-origin)*inv
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	if t0 > *tmin {
		*tmin = t0
	}
	if t1 < *tmax {
		*tmax = t1
	}
	return *tmin <= *tmax
}

// VolumeQuery depth-first walks the tree, appending the userdata of every
// leaf whose AABB overlaps box to hits (which is reset first).
func (bp *Broadphase) VolumeQuery(box *lin.AABB, hits *[]uint64) {
	*hits = (*hits)[:0]
	bp.volumeQuery(bp.root, box, hits)
}

func (bp *Broadphase) volumeQuery(node int32, box *lin.AABB, hits *[]uint64) {
	if node == nullNode || !bp.nodes[node].aabb.Overlaps(box) {
		return
	}
	if bp.nodes[node].isLeaf {
		*hits = append(*hits, bp.nodes[node].userdata)
		return
	}
	bp.volumeQuery(bp.nodes[node].left, box, hits)
	bp.volumeQuery(bp.nodes[node].right, box, hits)
}

// Height returns the tree height, or -1 for an empty tree. Exposed for
// tests asserting the O(log n) balance invariant.
func (bp *Broadphase) Height() int32 {
	if bp.root == nullNode {
		return -1
	}
	return bp.nodes[bp.root].height
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
