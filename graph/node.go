package graph

import (
	"sync"
	"sync/atomic"

	"github.com/quartzhq/noderpc/errs"
	"github.com/quartzhq/noderpc/logx"
	"github.com/quartzhq/noderpc/netconn"
)

var log = logx.Named("graph")

// Value expresses the "pointer receiver implements Reflectable"
// constraint generically: T is the node's plain value type, PT is its
// pointer form. A Node[T,PT,G] default-constructs via new(T) and always
// operates on the value through PT, mirroring the original Rust Node<T,G>
// which required T: Default + Reflect.
type Value[T any] interface {
	*T
	Reflectable
}

// nodeCore holds everything a node's strong handles share: the payload
// value, the parent/connection bookkeeping, and the strong-handle count
// that gates when Context evicts the node.
type nodeCore[T any, PT Value[T]] struct {
	id uint32

	valMu sync.Mutex
	val   PT

	bkMu        sync.Mutex
	parents     map[uint32]struct{}
	connections map[*netconn.Connection]struct{}
	root        *netconn.Connection

	changedMu sync.Mutex
	changed   bool

	strong int32 // atomic
}

// Node is a reference-counted handle to a replicated value, shared by
// every struct field that points at the same id. G fixes it to either a
// server or client Context; the server-only member-update API
// (server_update.go) panics as a programming error when called on a
// node whose Context is not a ServerTag one.
//
// Go has no destructor, so where the original design relied on Drop to
// detect "last reference gone", a Node handle must be released
// explicitly via Release(). See DESIGN.md for the reasoning.
type Node[T any, PT Value[T], G Tag] struct {
	core *nodeCore[T, PT]
	ctx  *Context[G]

	owner    uint32
	hasOwner bool
	released int32 // atomic bool

	rpcGuard sync.RWMutex
	rpc      map[string]any // name -> RPCHandler[T,PT,G], boxed to dodge a generic field cycle
}

func newNodeHandle[T any, PT Value[T], G Tag](id uint32, val PT, ctx *Context[G]) *Node[T, PT, G] {
	core := &nodeCore[T, PT]{
		id:          id,
		val:         val,
		parents:     make(map[uint32]struct{}),
		connections: make(map[*netconn.Connection]struct{}),
		strong:      1,
	}
	return &Node[T, PT, G]{core: core, ctx: ctx}
}

// MakeNode allocates a fresh id from a server Context and registers a
// new node holding val.
func MakeNode[T any, PT Value[T]](ctx *Context[ServerTag], val PT) *Node[T, PT, ServerTag] {
	id := ctx.allocID()
	n := newNodeHandle[T, PT, ServerTag](id, val, ctx)
	ctx.insert(id, n)
	return n
}

// ID returns the node's stable id.
func (n *Node[T, PT, G]) ID() uint32 { return n.core.id }

// Read runs fn with the node's current value under its read/write lock.
// Go has no RAII guard to auto-unlock on scope exit, so access is a
// callback rather than a borrow handle.
func (n *Node[T, PT, G]) Read(fn func(v PT)) {
	n.core.valMu.Lock()
	defer n.core.valMu.Unlock()
	fn(n.core.val)
}

// Write runs fn with the node's value under lock then marks the node
// changed, for server-side mutation outside the member-update API
// (e.g. seeding initial state before any client is attached).
func (n *Node[T, PT, G]) Write(fn func(v PT)) {
	n.core.valMu.Lock()
	fn(n.core.val)
	n.core.valMu.Unlock()
	n.markChanged()
}

func (n *Node[T, PT, G]) markChanged() {
	n.core.changedMu.Lock()
	n.core.changed = true
	n.core.changedMu.Unlock()
}

// Changed reports and clears whether this node's value was touched by
// an apply (Deserializer/Updater) or by Write since the last call. The
// flag is set by those and cleared by the observer's poll.
func (n *Node[T, PT, G]) Changed() bool {
	n.core.changedMu.Lock()
	defer n.core.changedMu.Unlock()
	c := n.core.changed
	n.core.changed = false
	return c
}

// SetRoot pins conn as this node's own root connection, in addition to
// whatever it inherits from parents. The root node of a server's graph
// (and any node explicitly attached to a connection) uses this.
func (n *Node[T, PT, G]) SetRoot(conn *netconn.Connection) {
	n.core.bkMu.Lock()
	n.core.root = conn
	n.recomputeConnectionsLocked()
	n.core.bkMu.Unlock()
	n.refreshDescendants()
}

// Connections returns a snapshot of the connections currently eligible
// to receive this node's updates.
func (n *Node[T, PT, G]) Connections() []*netconn.Connection {
	n.core.bkMu.Lock()
	defer n.core.bkMu.Unlock()
	out := make([]*netconn.Connection, 0, len(n.core.connections))
	for c := range n.core.connections {
		out = append(out, c)
	}
	return out
}

func (n *Node[T, PT, G]) addConnections(target map[*netconn.Connection]struct{}) {
	n.core.bkMu.Lock()
	defer n.core.bkMu.Unlock()
	if n.core.root != nil {
		target[n.core.root] = struct{}{}
	}
	for c := range n.core.connections {
		target[c] = struct{}{}
	}
}

// recomputeConnectionsLocked rebuilds connections from scratch: root
// plus the union of every current parent's own connections.
// Callers must hold core.bkMu.
func (n *Node[T, PT, G]) recomputeConnectionsLocked() {
	for c := range n.core.connections {
		delete(n.core.connections, c)
	}
	if n.core.root != nil {
		n.core.connections[n.core.root] = struct{}{}
	}
	for parentID := range n.core.parents {
		if ph, ok := n.ctx.get(parentID); ok {
			ph.addConnections(n.core.connections)
		}
	}
}

func (n *Node[T, PT, G]) addRef(parent uint32) {
	if parent == n.core.id {
		errs.ProgrammingError("node %d: cannot be its own parent", n.core.id)
	}
	n.core.bkMu.Lock()
	n.core.parents[parent] = struct{}{}
	n.recomputeConnectionsLocked()
	n.core.bkMu.Unlock()
	n.refreshDescendants()
}

func (n *Node[T, PT, G]) removeRef(parent uint32) {
	n.core.bkMu.Lock()
	delete(n.core.parents, parent)
	n.recomputeConnectionsLocked()
	n.core.bkMu.Unlock()
	n.refreshDescendants()
}

// refreshDescendants recomputes the connection set of every Node field
// reachable from this node's value, recursively, after an edge into
// this node changed.
func (n *Node[T, PT, G]) refreshDescendants() {
	n.core.valMu.Lock()
	defer n.core.valMu.Unlock()
	if err := n.core.val.Reflect(&Refresher{ctx: n.ctx}); err != nil {
		errs.ProgrammingError("node %d: refresh failed: %v", n.core.id, err)
	}
}

func (n *Node[T, PT, G]) acquireAny() any {
	atomic.AddInt32(&n.core.strong, 1)
	return &Node[T, PT, G]{core: n.core, ctx: n.ctx}
}

// Acquire returns a new strong handle sharing this node's underlying
// state, for code that wants to hold its own reference independent of
// wherever this handle came from. A Rust port of this design would use
// Clone for the same purpose, driven by compiler-enforced ownership; Go
// has no such enforcement, so Acquire/Release are explicit.
func (n *Node[T, PT, G]) Acquire() *Node[T, PT, G] {
	return n.acquireAny().(*Node[T, PT, G])
}

// Release drops this handle. If the handle has a recorded owner (the
// parent whose reflection pass last adopted it), that parent edge is
// removed and the connection sets of this node and every descendant are
// recomputed. If it was the last strong handle, the node is also evicted
// from its Context. Release is idempotent: releasing an already-released
// handle is a no-op.
func (n *Node[T, PT, G]) Release() {
	if !atomic.CompareAndSwapInt32(&n.released, 0, 1) {
		return
	}
	if n.hasOwner {
		n.removeRef(n.owner)
	}
	if atomic.AddInt32(&n.core.strong, -1) == 0 {
		n.ctx.evict(n.core.id)
	}
}

// Convert reinterprets this node's peer-side tag as NewG against newCtx,
// for a process acting as both a server and a client against different
// peers that needs to treat one side's node as the other's within
// generic code. The underlying type match is enforced statically by T
// and PT staying fixed across the conversion — Go generics need no
// runtime assertion here the way a dynamically-typed handle would.
// The returned handle is a new strong reference; release it independently.
func Convert[T any, PT Value[T], G Tag, NewG Tag](n *Node[T, PT, G], newCtx *Context[NewG]) *Node[T, PT, NewG] {
	atomic.AddInt32(&n.core.strong, 1)
	return &Node[T, PT, NewG]{core: n.core, ctx: newCtx}
}
