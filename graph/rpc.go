package graph

import (
	"github.com/quartzhq/noderpc/errs"
	"github.com/quartzhq/noderpc/wire"
)

// RPCHandler decodes its arguments from dec and acts on node. Handlers
// never return a value to the caller: RPCs are fire-and-forget.
type RPCHandler[T any, PT Value[T], G Tag] func(node *Node[T, PT, G], dec *Deserializer) error

// RegisterRPC attaches name as a dispatchable RPC on this node, per-type
// name→handler table, scoped here to one node instance since Go
// generics give us one concrete handler map per (T,PT,G) instantiation
// already — callers typically register the same set on every node of a
// given type right after construction.
func (n *Node[T, PT, G]) RegisterRPC(name string, h RPCHandler[T, PT, G]) {
	n.rpcGuard.Lock()
	defer n.rpcGuard.Unlock()
	if n.rpc == nil {
		n.rpc = map[string]any{}
	}
	n.rpc[name] = h
}

// recvRPCRaw decodes the call name from data, looks it up, and invokes
// its handler with the remaining bytes: name then positional arguments.
func (n *Node[T, PT, G]) recvRPCRaw(data []byte) error {
	r := wire.NewReader(data)
	name, err := r.ReadString()
	if err != nil {
		return err
	}

	n.rpcGuard.RLock()
	raw, ok := n.rpc[name]
	n.rpcGuard.RUnlock()
	if !ok {
		return errs.NewProtocolError(errs.ErrUnknownRPC, n.core.id, name)
	}
	h := raw.(RPCHandler[T, PT, G])

	dec := NewArgsDeserializer(r)
	return h(n, dec)
}

// recvUpdateRaw decodes and applies one granular update payload, used
// by a client's receive loop dispatching on node id.
func (n *Node[T, PT, G]) recvUpdateRaw(data []byte) error {
	r := wire.NewReader(data)
	opByte, err := r.ReadU8()
	if err != nil {
		return err
	}
	op := UpdateOp(opByte)
	tag, err := r.ReadString()
	if err != nil {
		return err
	}

	inner := NewDeserializer(r, n.ctx)
	inner.currentNode = n.core.id
	dec := &Updater{
		inner:       inner,
		tag:         tag,
		op:          op,
		currentNode: n.core.id,
		ctx:         n.ctx,
	}

	n.core.valMu.Lock()
	err = n.core.val.Reflect(dec)
	n.core.valMu.Unlock()
	if err != nil {
		return err
	}
	n.markChanged()
	return nil
}
