package graph

import (
	"sync"

	"github.com/quartzhq/noderpc/errs"
	"github.com/quartzhq/noderpc/netconn"
)

// nodeHandle is the type-erased face of a Node[T,PT,G] that Context can
// store without knowing T. A parent looks up another node purely by id
// through this interface when unioning connection sets, which are
// derived transitively through parent edges.
type nodeHandle interface {
	ID() uint32
	addConnections(target map[*netconn.Connection]struct{})
	acquireAny() any
	recvRPCRaw(data []byte) error
	recvUpdateRaw(data []byte) error
}

// Context is the per-endpoint id→node registry.
// It never holds a node alive on its own: entries are inserted by the
// first strong handle and evicted by whichever handle's Release drops
// the node's strong count to zero, so Context behaves like a weak map
// without requiring Go's runtime weak-pointer machinery (see DESIGN.md
// for why manual refcounting was chosen over it).
type Context[G Tag] struct {
	mu     sync.Mutex
	nodes  map[uint32]nodeHandle
	nextID uint32 // server-side id allocator; unused on ClientTag contexts
}

// NewContext constructs an empty Context. Server contexts start
// allocating ids at 1; id 0 is reserved to mean "no node".
func NewContext[G Tag]() *Context[G] {
	return &Context[G]{nodes: make(map[uint32]nodeHandle), nextID: 1}
}

func (c *Context[G]) allocID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

func (c *Context[G]) get(id uint32) (nodeHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.nodes[id]
	return h, ok
}

func (c *Context[G]) insert(id uint32, h nodeHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.nodes[id]; exists {
		errs.ProgrammingError("node id %d registered twice in one context", id)
	}
	c.nodes[id] = h
}

func (c *Context[G]) evict(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, id)
}

// Lookup finds the live node registered under id and, if its concrete
// type matches T/PT/G, returns a newly acquired strong handle to it,
// going from a bare packet's node id to a typed handle. (DispatchRPC
// and DispatchUpdate do not use it; they work on the type-erased
// handle.)
func Lookup[T any, PT Value[T], G Tag](ctx *Context[G], id uint32) (*Node[T, PT, G], bool) {
	h, ok := ctx.get(id)
	if !ok {
		return nil, false
	}
	typed, ok := h.acquireAny().(*Node[T, PT, G])
	return typed, ok
}
