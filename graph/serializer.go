package graph

import (
	"time"

	"github.com/quartzhq/noderpc/wire"
)

// Serializer writes a full reflection pass to the wire: the
// initial-replication and Resync encoder. currentNode tracks the id of
// the node whose fields are presently being written, so a nested Node
// field can record the right owner via addRef.
type Serializer struct {
	w           *wire.Writer
	currentNode uint32
}

// NewSerializer wraps w for driving one Reflect pass with no enclosing
// node (used for RPC argument encoding, which never carries Node
// fields).
func NewSerializer(w *wire.Writer) *Serializer {
	return &Serializer{w: w}
}

func (s *Serializer) VisitBool(_ string, v *bool) error  { s.w.WriteBool(*v); return nil }
func (s *Serializer) VisitU8(_ string, v *uint8) error   { s.w.WriteU8(*v); return nil }
func (s *Serializer) VisitI8(_ string, v *int8) error    { s.w.WriteI8(*v); return nil }
func (s *Serializer) VisitU16(_ string, v *uint16) error { s.w.WriteU16(*v); return nil }
func (s *Serializer) VisitI16(_ string, v *int16) error  { s.w.WriteI16(*v); return nil }
func (s *Serializer) VisitU32(_ string, v *uint32) error { s.w.WriteU32(*v); return nil }
func (s *Serializer) VisitI32(_ string, v *int32) error  { s.w.WriteI32(*v); return nil }
func (s *Serializer) VisitU64(_ string, v *uint64) error { s.w.WriteU64(*v); return nil }
func (s *Serializer) VisitI64(_ string, v *int64) error  { s.w.WriteI64(*v); return nil }
func (s *Serializer) VisitF32(_ string, v *float32) error { s.w.WriteF32(*v); return nil }
func (s *Serializer) VisitF64(_ string, v *float64) error { s.w.WriteF64(*v); return nil }
func (s *Serializer) VisitString(_ string, v *string) error { s.w.WriteString(*v); return nil }
func (s *Serializer) VisitDuration(_ string, v *time.Duration) error {
	s.w.WriteI64(int64(*v))
	return nil
}
