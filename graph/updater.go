package graph

import (
	"time"

	"github.com/quartzhq/noderpc/errs"
)

// Updater applies (or, on the encode side, produces) one granular
// update op addressed at a single tagged field. inner does
// the actual reading/writing once the tag-matching gate lets a field
// through: a *Serializer when the server is building the outgoing
// payload, a *Deserializer when the client is applying an incoming one.
//
// found/nest implement the gating state machine: found counts how many
// times, at the current nesting level, a field's tag has equaled the
// target tag (more than one is a protocol violation); nest counts how
// many enclosing levels have already matched under OpUpdate, so every
// field below a matched Update-mode ancestor is forwarded unconditionally.
type Updater struct {
	inner       Visitor
	tag         string
	op          UpdateOp
	currentNode uint32
	ctx         any // carried alongside the other fields; VisitNode does not need it

	found int
	nest  int

	// key/val/index carry the out-of-band arguments for container ops:
	// key for Map ops, index for Vec ops, val for the element/value
	// payload of a push/insert. Only one side (encode XOR apply) reads
	// them in a given pass — see vecPush/mapInsert etc.
	key   any
	val   any
	index uint32
}

// enter reports whether the field named tag should be forwarded to
// inner, and whether this call is the one that matched (as opposed to
// being nested under an ancestor that already matched).
func (u *Updater) enter(tag string) (entered, justMatched bool, err error) {
	if u.op == OpReplace {
		return true, false, nil
	}
	if u.nest > 0 {
		return true, false, nil
	}
	if tag == u.tag {
		u.found++
		if u.found > 1 {
			return false, false, errs.NewProtocolError(errs.ErrDuplicateTag, u.currentNode, tag)
		}
		return true, true, nil
	}
	return false, false, nil
}

// updaterPrimitive is shared by every scalar Visit* method: gate on the
// tag, then forward to inner (Update/Replace/nested); a container op
// matched against a scalar field is rejected as a container mismatch.
func updaterPrimitive[V any](u *Updater, tag string, v *V, visit func(Visitor, string, *V) error) error {
	entered, justMatched, err := u.enter(tag)
	if err != nil || !entered {
		return err
	}
	if justMatched && u.op != OpReplace && u.op != OpUpdate {
		return errs.NewProtocolError(errs.ErrContainerMismatch, u.currentNode, tag)
	}
	return visit(u.inner, "", v)
}

func (u *Updater) VisitBool(tag string, v *bool) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitBool)
}
func (u *Updater) VisitU8(tag string, v *uint8) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitU8)
}
func (u *Updater) VisitI8(tag string, v *int8) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitI8)
}
func (u *Updater) VisitU16(tag string, v *uint16) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitU16)
}
func (u *Updater) VisitI16(tag string, v *int16) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitI16)
}
func (u *Updater) VisitU32(tag string, v *uint32) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitU32)
}
func (u *Updater) VisitI32(tag string, v *int32) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitI32)
}
func (u *Updater) VisitU64(tag string, v *uint64) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitU64)
}
func (u *Updater) VisitI64(tag string, v *int64) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitI64)
}
func (u *Updater) VisitF32(tag string, v *float32) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitF32)
}
func (u *Updater) VisitF64(tag string, v *float64) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitF64)
}
func (u *Updater) VisitString(tag string, v *string) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitString)
}
func (u *Updater) VisitDuration(tag string, v *time.Duration) error {
	return updaterPrimitive(u, tag, v, Visitor.VisitDuration)
}
