package graph

import (
	"github.com/quartzhq/noderpc/errs"
	"github.com/quartzhq/noderpc/wire"
)

// DispatchRPC routes an incoming RPC payload to the node registered
// under id in ctx. A server's receive loop calls this for
// every inbound packet without ever needing to know the target node's
// concrete type — nodeHandle erases it.
func DispatchRPC[G Tag](ctx *Context[G], id uint32, data []byte) error {
	h, ok := ctx.get(id)
	if !ok {
		return errs.NewProtocolError(errs.ErrUnknownRPC, id, "")
	}
	return h.recvRPCRaw(data)
}

// DispatchUpdate routes an incoming update payload to the node
// registered under id in ctx. A client's receive loop calls this for
// every inbound packet once its root has been bootstrapped.
func DispatchUpdate[G Tag](ctx *Context[G], id uint32, data []byte) error {
	h, ok := ctx.get(id)
	if !ok {
		return errs.NewProtocolError(errs.ErrEncoding, id, "")
	}
	return h.recvUpdateRaw(data)
}

// BootstrapNode materializes the node named by id from a top-level
// Replace payload with no parent — used once per connection to create
// (or, on a reconnect replaying a known id, adopt) a client's root node
// the initial replication packet, which is special-cased since the
// node doesn't exist in ctx yet.
func BootstrapNode[T any, PT Value[T], G Tag](ctx *Context[G], id uint32, data []byte) (*Node[T, PT, G], error) {
	r := wire.NewReader(data)
	opByte, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if UpdateOp(opByte) != OpReplace {
		return nil, errs.NewProtocolError(errs.ErrEncoding, id, "")
	}
	if _, err := r.ReadString(); err != nil { // tag, always empty for a Replace
		return nil, err
	}

	var node *Node[T, PT, G]
	if h, found := ctx.get(id); found {
		typed, ok := h.acquireAny().(*Node[T, PT, G])
		if !ok {
			return nil, errs.NewProtocolError(errs.ErrEncoding, id, "")
		}
		node = typed
	} else {
		node = newNodeHandle[T, PT, G](id, PT(new(T)), ctx)
		ctx.insert(id, node)
	}

	dec := NewDeserializer(r, ctx)
	dec.currentNode = id
	node.core.valMu.Lock()
	err = node.core.val.Reflect(dec)
	node.core.valMu.Unlock()
	if err != nil {
		return nil, err
	}
	node.markChanged()
	return node, nil
}
