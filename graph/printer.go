package graph

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Printer is the additive fifth visitor: it drives a Reflect pass to
// produce a human-readable dump of a node's current value, purely for
// operator debugging (no wire effect, no graph mutation). It is not
// part of the replication protocol itself.
type Printer struct {
	w     io.Writer
	depth int
}

// NewPrinter wraps w for one debug dump.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) indent() string { return strings.Repeat("  ", p.depth) }

func (p *Printer) line(tag string, v any) {
	fmt.Fprintf(p.w, "%s%s = %v\n", p.indent(), tag, v)
}

func (p *Printer) VisitBool(tag string, v *bool) error  { p.line(tag, *v); return nil }
func (p *Printer) VisitU8(tag string, v *uint8) error   { p.line(tag, *v); return nil }
func (p *Printer) VisitI8(tag string, v *int8) error    { p.line(tag, *v); return nil }
func (p *Printer) VisitU16(tag string, v *uint16) error { p.line(tag, *v); return nil }
func (p *Printer) VisitI16(tag string, v *int16) error  { p.line(tag, *v); return nil }
func (p *Printer) VisitU32(tag string, v *uint32) error { p.line(tag, *v); return nil }
func (p *Printer) VisitI32(tag string, v *int32) error  { p.line(tag, *v); return nil }
func (p *Printer) VisitU64(tag string, v *uint64) error { p.line(tag, *v); return nil }
func (p *Printer) VisitI64(tag string, v *int64) error  { p.line(tag, *v); return nil }
func (p *Printer) VisitF32(tag string, v *float32) error { p.line(tag, *v); return nil }
func (p *Printer) VisitF64(tag string, v *float64) error { p.line(tag, *v); return nil }
func (p *Printer) VisitString(tag string, v *string) error {
	p.line(tag, fmt.Sprintf("%q", *v))
	return nil
}
func (p *Printer) VisitDuration(tag string, v *time.Duration) error {
	p.line(tag, v.String())
	return nil
}

func printSeq[T any](p *Printer, tag string, s *[]T, elem func(Visitor, string, *T) error) error {
	fmt.Fprintf(p.w, "%s%s = [\n", p.indent(), tag)
	p.depth++
	for i := range *s {
		if err := elem(p, fmt.Sprintf("[%d]", i), &(*s)[i]); err != nil {
			return err
		}
	}
	p.depth--
	fmt.Fprintf(p.w, "%s]\n", p.indent())
	return nil
}

func printMap[K comparable, V any](p *Printer, tag string, m *map[K]V, keyFn func(Visitor, string, *K) error, valFn func(Visitor, string, *V) error) error {
	fmt.Fprintf(p.w, "%s%s = {\n", p.indent(), tag)
	p.depth++
	for k, v := range *m {
		kc, vc := k, v
		fmt.Fprintf(p.w, "%s%v:\n", p.indent(), kc)
		p.depth++
		if err := valFn(p, "value", &vc); err != nil {
			return err
		}
		p.depth--
	}
	p.depth--
	fmt.Fprintf(p.w, "%s}\n", p.indent())
	return nil
}

func printOption[T any](p *Printer, tag string, o **T, elem func(Visitor, string, *T) error) error {
	if *o == nil {
		p.line(tag, "<none>")
		return nil
	}
	return elem(p, tag, *o)
}

func printNode[T any, PT Value[T], G Tag](p *Printer, tag string, field **Node[T, PT, G]) error {
	child := *field
	if child == nil {
		p.line(tag, "<nil node>")
		return nil
	}
	fmt.Fprintf(p.w, "%s%s = Node(%d) {\n", p.indent(), tag, child.ID())
	p.depth++
	child.core.valMu.Lock()
	err := child.core.val.Reflect(p)
	child.core.valMu.Unlock()
	p.depth--
	fmt.Fprintf(p.w, "%s}\n", p.indent())
	return err
}
