package graph

import (
	"github.com/quartzhq/noderpc/errs"
	"github.com/quartzhq/noderpc/netconn"
	"github.com/quartzhq/noderpc/wire"
)

// buildAndSend encodes one granular update payload (op, tag, then the
// op-specific body produced by reflecting the node's value through an
// Updater in encode mode) and fans it out to every connection currently
// in the node's connection set. Calling it on a node that does not live
// in a ServerTag Context is a programming error.
func (n *Node[T, PT, G]) buildAndSend(op UpdateOp, tag string, key, val any, index uint32) {
	if _, ok := any(n.ctx).(*Context[ServerTag]); !ok {
		errs.ProgrammingError("node %d: update API called on a non-server node", n.core.id)
	}
	w := wire.NewWriter()
	w.WriteU8(uint8(op))
	w.WriteString(tag)

	enc := &Updater{
		inner:       &Serializer{w: w, currentNode: n.core.id},
		tag:         tag,
		op:          op,
		currentNode: n.core.id,
		key:         key,
		val:         val,
		index:       index,
	}

	n.core.valMu.Lock()
	err := n.core.val.Reflect(enc)
	n.core.valMu.Unlock()
	if err != nil {
		errs.ProgrammingError("node %d: update encode failed for tag %q: %v", n.core.id, tag, err)
	}

	n.sendToConnections(w.Bytes())
}

func (n *Node[T, PT, ServerTag]) sendToConnections(payload []byte) {
	n.core.bkMu.Lock()
	targets := make([]*netconn.Connection, 0, len(n.core.connections))
	for c := range n.core.connections {
		targets = append(targets, c)
	}
	n.core.bkMu.Unlock()

	for _, c := range targets {
		if err := c.Send(n.core.id, payload); err != nil {
			log.WithField("node", n.core.id).Warnf("update send failed: %v", err)
		}
	}
}

// MemberModified re-encodes the single field named tag and sends it to
// every connected observer.
func (n *Node[T, PT, ServerTag]) MemberModified(tag string) {
	n.buildAndSend(OpUpdate, tag, nil, nil, 0)
}

// Resync re-sends the node's entire current value as a Replace op to
// every connection in the node's connection set. The initial full
// replication a freshly attached connection receives goes through
// SendInitialTo instead.
func (n *Node[T, PT, ServerTag]) Resync() {
	n.buildAndSend(OpReplace, "", nil, nil, 0)
}

// MemberVecPush appends val to the []E field named tag on every
// observer's copy.
func (n *Node[T, PT, ServerTag]) MemberVecPush(tag string, val any) {
	n.buildAndSend(OpVecPush, tag, nil, val, 0)
}

// MemberVecInsert inserts val at index into the []E field named tag.
func (n *Node[T, PT, ServerTag]) MemberVecInsert(tag string, index uint32, val any) {
	n.buildAndSend(OpVecInsert, tag, nil, val, index)
}

// MemberVecRemove removes the element at index from the []E field named tag.
func (n *Node[T, PT, ServerTag]) MemberVecRemove(tag string, index uint32) {
	n.buildAndSend(OpVecRemove, tag, nil, nil, index)
}

// MemberVecClear empties the []E field named tag.
func (n *Node[T, PT, ServerTag]) MemberVecClear(tag string) {
	n.buildAndSend(OpVecClear, tag, nil, nil, 0)
}

// MemberMapInsert sets key->val in the map[K]V field named tag.
func (n *Node[T, PT, ServerTag]) MemberMapInsert(tag string, key, val any) {
	n.buildAndSend(OpMapInsert, tag, key, val, 0)
}

// MemberMapRemove deletes key from the map[K]V field named tag.
func (n *Node[T, PT, ServerTag]) MemberMapRemove(tag string, key any) {
	n.buildAndSend(OpMapRemove, tag, key, nil, 0)
}

// MemberMapClear empties the map[K]V field named tag.
func (n *Node[T, PT, ServerTag]) MemberMapClear(tag string) {
	n.buildAndSend(OpMapClear, tag, nil, nil, 0)
}

// SendInitialTo pushes this node's full current value to a single new
// connection as a top-level Replace payload, without fanning out to
// any other connection already watching this node, for the initial
// replication handshake. It does not add conn to the node's
// connection set; SetRoot (or parent bookkeeping) does that, so that
// subsequent incremental updates reach it.
func (n *Node[T, PT, ServerTag]) SendInitialTo(conn *netconn.Connection) error {
	w := wire.NewWriter()
	w.WriteU8(uint8(OpReplace))
	w.WriteString("")

	ser := &Serializer{w: w, currentNode: n.core.id}
	n.core.valMu.Lock()
	err := n.core.val.Reflect(ser)
	n.core.valMu.Unlock()
	if err != nil {
		return err
	}
	return conn.Send(n.core.id, w.Bytes())
}
