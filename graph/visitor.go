package graph

import "time"

// Reflectable is implemented by every node payload type and every
// composite type nested inside one. A single Reflect method drives all
// five passes (encode, decode, update, refresh, print) by forwarding
// each field to the visitor in declared order, so every pass sees the
// same straight-line visit-call sequence.
type Reflectable interface {
	Reflect(v Visitor) error
}

// Visitor is the contract a Reflect method is written against. Each
// primitive method takes the field's tag (its wire/update name) and a
// pointer to the field, so the same call both writes (Serializer) and
// reads (Deserializer) depending on which concrete visitor is in play.
type Visitor interface {
	VisitBool(tag string, v *bool) error
	VisitU8(tag string, v *uint8) error
	VisitI8(tag string, v *int8) error
	VisitU16(tag string, v *uint16) error
	VisitI16(tag string, v *int16) error
	VisitU32(tag string, v *uint32) error
	VisitI32(tag string, v *int32) error
	VisitU64(tag string, v *uint64) error
	VisitI64(tag string, v *int64) error
	VisitF32(tag string, v *float32) error
	VisitF64(tag string, v *float64) error
	VisitString(tag string, v *string) error
	VisitDuration(tag string, v *time.Duration) error
}

// noopPrimitives satisfies every Visitor primitive method as a no-op.
// Refresher embeds it: refreshing never inspects scalar field values,
// only the Node fields reachable through them.
type noopPrimitives struct{}

func (noopPrimitives) VisitBool(string, *bool) error             { return nil }
func (noopPrimitives) VisitU8(string, *uint8) error               { return nil }
func (noopPrimitives) VisitI8(string, *int8) error                { return nil }
func (noopPrimitives) VisitU16(string, *uint16) error             { return nil }
func (noopPrimitives) VisitI16(string, *int16) error              { return nil }
func (noopPrimitives) VisitU32(string, *uint32) error             { return nil }
func (noopPrimitives) VisitI32(string, *int32) error              { return nil }
func (noopPrimitives) VisitU64(string, *uint64) error             { return nil }
func (noopPrimitives) VisitI64(string, *int64) error              { return nil }
func (noopPrimitives) VisitF32(string, *float32) error            { return nil }
func (noopPrimitives) VisitF64(string, *float64) error            { return nil }
func (noopPrimitives) VisitString(string, *string) error          { return nil }
func (noopPrimitives) VisitDuration(string, *time.Duration) error { return nil }

// UpdateOp names the nine granular update operations, addressed
// against a single tagged field.
type UpdateOp uint8

const (
	OpReplace UpdateOp = iota
	OpUpdate
	OpVecPush
	OpVecInsert
	OpVecRemove
	OpVecClear
	OpMapInsert
	OpMapRemove
	OpMapClear
)

func (op UpdateOp) String() string {
	switch op {
	case OpReplace:
		return "replace"
	case OpUpdate:
		return "update"
	case OpVecPush:
		return "vec_push"
	case OpVecInsert:
		return "vec_insert"
	case OpVecRemove:
		return "vec_remove"
	case OpVecClear:
		return "vec_clear"
	case OpMapInsert:
		return "map_insert"
	case OpMapRemove:
		return "map_remove"
	case OpMapClear:
		return "map_clear"
	default:
		return "unknown"
	}
}
