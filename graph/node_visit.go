package graph

import (
	"fmt"

	"github.com/quartzhq/noderpc/errs"
)

// VisitNode drives a *Node[T,PT,G] field through any visitor. field is
// a pointer to the struct slot holding the child handle; on first
// decode it may be nil, in which case Deserializer creates or adopts
// the node named by the id on the wire.
func VisitNode[T any, PT Value[T], G Tag](v Visitor, tag string, field **Node[T, PT, G]) error {
	switch vv := v.(type) {
	case *Serializer:
		return serializeNode(vv, field)
	case *Deserializer:
		return deserializeNode(vv, field)
	case *Updater:
		return updateNode(vv, tag, field)
	case *Refresher:
		return refreshNode(vv, field)
	case *Printer:
		return printNode(vv, tag, field)
	default:
		return fmt.Errorf("graph: VisitNode: unsupported visitor %T", v)
	}
}

func serializeNode[T any, PT Value[T], G Tag](s *Serializer, field **Node[T, PT, G]) error {
	child := *field
	if child == nil {
		s.w.WriteU32(0) // id 0 means "no node"
		return nil
	}
	s.w.WriteU32(child.ID())

	parent := s.currentNode
	if parent != 0 {
		child.addRef(parent)
	}
	child.owner, child.hasOwner = parent, parent != 0

	prev := s.currentNode
	s.currentNode = child.ID()
	child.core.valMu.Lock()
	err := child.core.val.Reflect(s)
	child.core.valMu.Unlock()
	s.currentNode = prev
	return err
}

func deserializeNode[T any, PT Value[T], G Tag](d *Deserializer, field **Node[T, PT, G]) error {
	id, err := d.r.ReadU32()
	if err != nil {
		return err
	}
	if id == 0 {
		*field = nil
		return nil
	}

	ctx, ok := d.ctx.(*Context[G])
	if !ok {
		errs.ProgrammingError("deserializer context type mismatch resolving node %d", id)
	}

	var child *Node[T, PT, G]
	if h, found := ctx.get(id); found {
		typed, ok := h.acquireAny().(*Node[T, PT, G])
		if !ok {
			return errs.NewProtocolError(errs.ErrEncoding, id, "")
		}
		child = typed
	} else {
		child = newNodeHandle[T, PT, G](id, PT(new(T)), ctx)
		ctx.insert(id, child)
	}

	parent := d.currentNode
	if parent != 0 {
		child.addRef(parent)
	}
	child.owner, child.hasOwner = parent, parent != 0

	prev := d.currentNode
	d.currentNode = id
	child.core.valMu.Lock()
	err = child.core.val.Reflect(d)
	child.core.valMu.Unlock()
	d.currentNode = prev
	if err != nil {
		return err
	}

	child.markChanged()
	*field = child
	return nil
}

func updateNode[T any, PT Value[T], G Tag](u *Updater, tag string, field **Node[T, PT, G]) error {
	entered, justMatched, err := u.enter(tag)
	if err != nil || !entered {
		return err
	}
	if u.op == OpReplace {
		// Full replacement forwards straight to the underlying
		// encode/decode pass, which can create or adopt the node same
		// as the initial replication walk.
		return VisitNode(u.inner, "", field)
	}
	if justMatched {
		if u.op != OpUpdate {
			return errs.NewProtocolError(errs.ErrContainerMismatch, u.currentNode, tag)
		}
		u.nest++
		defer func() { u.nest-- }()
	}

	child := *field
	if child == nil {
		return errs.NewProtocolError(errs.ErrEncoding, u.currentNode, tag)
	}
	child.core.valMu.Lock()
	defer child.core.valMu.Unlock()
	err = child.core.val.Reflect(u)
	if err == nil {
		if _, isDecode := u.inner.(*Deserializer); isDecode {
			child.markChanged()
		}
	}
	return err
}

func refreshNode[T any, PT Value[T], G Tag](r *Refresher, field **Node[T, PT, G]) error {
	child := *field
	if child == nil {
		return nil
	}
	if _, ok := r.ctx.(*Context[G]); !ok {
		errs.ProgrammingError("refresher context type mismatch resolving node %d", child.ID())
	}
	child.core.bkMu.Lock()
	child.recomputeConnectionsLocked()
	child.core.bkMu.Unlock()
	child.core.valMu.Lock()
	defer child.core.valMu.Unlock()
	return child.core.val.Reflect(r)
}
