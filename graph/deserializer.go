package graph

import (
	"time"

	"github.com/quartzhq/noderpc/wire"
)

// Deserializer reads a full reflection pass back off the wire. ctx is
// carried as any because Deserializer itself cannot be
// generic over the node-type-specific G without breaking the type
// switches VisitNode relies on; VisitNode recovers the concrete
// *Context[G] via a type assertion once G is known at its call site.
type Deserializer struct {
	r           *wire.Reader
	currentNode uint32
	ctx         any
}

// NewDeserializer wraps r for a pass that may create/adopt Node fields
// registered in ctx.
func NewDeserializer[G Tag](r *wire.Reader, ctx *Context[G]) *Deserializer {
	return &Deserializer{r: r, ctx: ctx}
}

// NewArgsDeserializer wraps r for decoding RPC arguments, which never
// reference Node fields: arguments are restricted to plain reflectable
// values.
func NewArgsDeserializer(r *wire.Reader) *Deserializer {
	return &Deserializer{r: r}
}

func (d *Deserializer) VisitBool(_ string, v *bool) (err error)  { *v, err = d.r.ReadBool(); return }
func (d *Deserializer) VisitU8(_ string, v *uint8) (err error)   { *v, err = d.r.ReadU8(); return }
func (d *Deserializer) VisitI8(_ string, v *int8) (err error)    { *v, err = d.r.ReadI8(); return }
func (d *Deserializer) VisitU16(_ string, v *uint16) (err error) { *v, err = d.r.ReadU16(); return }
func (d *Deserializer) VisitI16(_ string, v *int16) (err error)  { *v, err = d.r.ReadI16(); return }
func (d *Deserializer) VisitU32(_ string, v *uint32) (err error) { *v, err = d.r.ReadU32(); return }
func (d *Deserializer) VisitI32(_ string, v *int32) (err error)  { *v, err = d.r.ReadI32(); return }
func (d *Deserializer) VisitU64(_ string, v *uint64) (err error) { *v, err = d.r.ReadU64(); return }
func (d *Deserializer) VisitI64(_ string, v *int64) (err error)  { *v, err = d.r.ReadI64(); return }
func (d *Deserializer) VisitF32(_ string, v *float32) (err error) { *v, err = d.r.ReadF32(); return }
func (d *Deserializer) VisitF64(_ string, v *float64) (err error) { *v, err = d.r.ReadF64(); return }
func (d *Deserializer) VisitString(_ string, v *string) (err error) {
	*v, err = d.r.ReadString()
	return
}
func (d *Deserializer) VisitDuration(_ string, v *time.Duration) error {
	i, err := d.r.ReadI64()
	if err != nil {
		return err
	}
	*v = time.Duration(i)
	return nil
}
