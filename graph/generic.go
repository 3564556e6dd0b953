package graph

import (
	"fmt"

	"github.com/quartzhq/noderpc/errs"
)

// VisitSeq drives a []T field through any visitor. elem is the
// element-level visit call (e.g. method-expression Visitor.VisitU32 for
// a []uint32, or a generated VisitStruct/VisitNode closure for a slice
// of composite values).
func VisitSeq[T any](v Visitor, tag string, s *[]T, elem func(Visitor, string, *T) error) error {
	switch vv := v.(type) {
	case *Serializer:
		vv.w.WriteU32(uint32(len(*s)))
		for i := range *s {
			if err := elem(vv, "", &(*s)[i]); err != nil {
				return err
			}
		}
		return nil
	case *Deserializer:
		n, err := vv.r.ReadU32()
		if err != nil {
			return err
		}
		out := make([]T, n)
		for i := range out {
			if err := elem(vv, "", &out[i]); err != nil {
				return err
			}
		}
		*s = out
		return nil
	case *Updater:
		return updateSeq(vv, tag, s, elem)
	case *Refresher:
		return nil // plain-value sequences carry no Node references to refresh
	case *Printer:
		return printSeq(vv, tag, s, elem)
	default:
		return fmt.Errorf("graph: VisitSeq: unsupported visitor %T", v)
	}
}

func updateSeq[T any](u *Updater, tag string, s *[]T, elem func(Visitor, string, *T) error) error {
	entered, justMatched, err := u.enter(tag)
	if err != nil || !entered {
		return err
	}
	if !justMatched {
		return VisitSeq(u.inner, "", s, elem)
	}
	switch u.op {
	case OpUpdate:
		u.nest++
		err := VisitSeq(u.inner, "", s, elem)
		u.nest--
		return err
	case OpVecPush:
		return vecPush(u, s, elem)
	case OpVecInsert:
		return vecInsert(u, s, elem)
	case OpVecRemove:
		return vecRemove(u, s)
	case OpVecClear:
		return vecClear(u, s)
	default:
		return errs.NewProtocolError(errs.ErrContainerMismatch, u.currentNode, tag)
	}
}

func vecPush[T any](u *Updater, s *[]T, elem func(Visitor, string, *T) error) error {
	switch inner := u.inner.(type) {
	case *Serializer:
		val, ok := u.val.(T)
		if !ok {
			errs.ProgrammingError("vec_push: value type mismatch for node %d tag %q", u.currentNode, u.tag)
		}
		return elem(inner, "", &val)
	case *Deserializer:
		var nv T
		if err := elem(inner, "", &nv); err != nil {
			return err
		}
		*s = append(*s, nv)
		return nil
	default:
		return fmt.Errorf("graph: vec_push: updater inner visitor must encode or decode, got %T", inner)
	}
}

func vecInsert[T any](u *Updater, s *[]T, elem func(Visitor, string, *T) error) error {
	switch inner := u.inner.(type) {
	case *Serializer:
		inner.w.WriteU32(u.index)
		val, ok := u.val.(T)
		if !ok {
			errs.ProgrammingError("vec_insert: value type mismatch for node %d tag %q", u.currentNode, u.tag)
		}
		return elem(inner, "", &val)
	case *Deserializer:
		idx, err := inner.r.ReadU32()
		if err != nil {
			return err
		}
		var nv T
		if err := elem(inner, "", &nv); err != nil {
			return err
		}
		if int(idx) > len(*s) {
			return errs.NewProtocolError(errs.ErrEncoding, u.currentNode, u.tag)
		}
		*s = append(*s, nv)
		copy((*s)[idx+1:], (*s)[idx:])
		(*s)[idx] = nv
		return nil
	default:
		return fmt.Errorf("graph: vec_insert: updater inner visitor must encode or decode, got %T", inner)
	}
}

func vecRemove[T any](u *Updater, s *[]T) error {
	switch inner := u.inner.(type) {
	case *Serializer:
		inner.w.WriteU32(u.index)
		return nil
	case *Deserializer:
		idx, err := inner.r.ReadU32()
		if err != nil {
			return err
		}
		if int(idx) >= len(*s) {
			return errs.NewProtocolError(errs.ErrEncoding, u.currentNode, u.tag)
		}
		*s = append((*s)[:idx], (*s)[idx+1:]...)
		return nil
	default:
		return fmt.Errorf("graph: vec_remove: updater inner visitor must encode or decode, got %T", inner)
	}
}

func vecClear[T any](u *Updater, s *[]T) error {
	switch u.inner.(type) {
	case *Serializer:
		return nil
	case *Deserializer:
		*s = nil
		return nil
	default:
		return fmt.Errorf("graph: vec_clear: updater inner visitor must encode or decode, got %T", u.inner)
	}
}

// VisitMap drives a map[K]V field through any visitor.
func VisitMap[K comparable, V any](v Visitor, tag string, m *map[K]V, keyFn func(Visitor, string, *K) error, valFn func(Visitor, string, *V) error) error {
	switch vv := v.(type) {
	case *Serializer:
		vv.w.WriteU32(uint32(len(*m)))
		for k, val := range *m {
			kc, vc := k, val
			if err := keyFn(vv, "", &kc); err != nil {
				return err
			}
			if err := valFn(vv, "", &vc); err != nil {
				return err
			}
		}
		return nil
	case *Deserializer:
		n, err := vv.r.ReadU32()
		if err != nil {
			return err
		}
		out := make(map[K]V, n)
		for i := uint32(0); i < n; i++ {
			var k K
			if err := keyFn(vv, "", &k); err != nil {
				return err
			}
			var val V
			if err := valFn(vv, "", &val); err != nil {
				return err
			}
			out[k] = val
		}
		*m = out
		return nil
	case *Updater:
		return updateMap(vv, tag, m, keyFn, valFn)
	case *Refresher:
		return nil
	case *Printer:
		return printMap(vv, tag, m, keyFn, valFn)
	default:
		return fmt.Errorf("graph: VisitMap: unsupported visitor %T", v)
	}
}

func updateMap[K comparable, V any](u *Updater, tag string, m *map[K]V, keyFn func(Visitor, string, *K) error, valFn func(Visitor, string, *V) error) error {
	entered, justMatched, err := u.enter(tag)
	if err != nil || !entered {
		return err
	}
	if !justMatched {
		return VisitMap(u.inner, "", m, keyFn, valFn)
	}
	switch u.op {
	case OpUpdate:
		u.nest++
		err := VisitMap(u.inner, "", m, keyFn, valFn)
		u.nest--
		return err
	case OpMapInsert:
		return mapInsert(u, m, keyFn, valFn)
	case OpMapRemove:
		return mapRemove(u, m, keyFn)
	case OpMapClear:
		return mapClear(u, m)
	default:
		return errs.NewProtocolError(errs.ErrContainerMismatch, u.currentNode, tag)
	}
}

func mapInsert[K comparable, V any](u *Updater, m *map[K]V, keyFn func(Visitor, string, *K) error, valFn func(Visitor, string, *V) error) error {
	switch inner := u.inner.(type) {
	case *Serializer:
		key, ok := u.key.(K)
		if !ok {
			errs.ProgrammingError("map_insert: key type mismatch for node %d tag %q", u.currentNode, u.tag)
		}
		if err := keyFn(inner, "", &key); err != nil {
			return err
		}
		val, ok := u.val.(V)
		if !ok {
			errs.ProgrammingError("map_insert: value type mismatch for node %d tag %q", u.currentNode, u.tag)
		}
		return valFn(inner, "", &val)
	case *Deserializer:
		var k K
		if err := keyFn(inner, "", &k); err != nil {
			return err
		}
		var val V
		if err := valFn(inner, "", &val); err != nil {
			return err
		}
		if *m == nil {
			*m = make(map[K]V)
		}
		(*m)[k] = val
		return nil
	default:
		return fmt.Errorf("graph: map_insert: updater inner visitor must encode or decode, got %T", inner)
	}
}

func mapRemove[K comparable, V any](u *Updater, m *map[K]V, keyFn func(Visitor, string, *K) error) error {
	switch inner := u.inner.(type) {
	case *Serializer:
		key, ok := u.key.(K)
		if !ok {
			errs.ProgrammingError("map_remove: key type mismatch for node %d tag %q", u.currentNode, u.tag)
		}
		return keyFn(inner, "", &key)
	case *Deserializer:
		var k K
		if err := keyFn(inner, "", &k); err != nil {
			return err
		}
		delete(*m, k)
		return nil
	default:
		return fmt.Errorf("graph: map_remove: updater inner visitor must encode or decode, got %T", inner)
	}
}

func mapClear[K comparable, V any](u *Updater, m *map[K]V) error {
	switch u.inner.(type) {
	case *Serializer:
		return nil
	case *Deserializer:
		*m = make(map[K]V)
		return nil
	default:
		return fmt.Errorf("graph: map_clear: updater inner visitor must encode or decode, got %T", u.inner)
	}
}

// VisitOption drives an optional field, represented as **T where a nil
// *T means "none".
func VisitOption[T any](v Visitor, tag string, o **T, elem func(Visitor, string, *T) error) error {
	switch vv := v.(type) {
	case *Serializer:
		present := *o != nil
		vv.w.WriteBool(present)
		if present {
			return elem(vv, "", *o)
		}
		return nil
	case *Deserializer:
		present, err := vv.r.ReadBool()
		if err != nil {
			return err
		}
		if !present {
			*o = nil
			return nil
		}
		val := new(T)
		if err := elem(vv, "", val); err != nil {
			return err
		}
		*o = val
		return nil
	case *Updater:
		return updateOption(vv, tag, o, elem)
	case *Refresher:
		return nil
	case *Printer:
		return printOption(vv, tag, o, elem)
	default:
		return fmt.Errorf("graph: VisitOption: unsupported visitor %T", v)
	}
}

func updateOption[T any](u *Updater, tag string, o **T, elem func(Visitor, string, *T) error) error {
	entered, justMatched, err := u.enter(tag)
	if err != nil || !entered {
		return err
	}
	if justMatched {
		if u.op != OpUpdate && u.op != OpReplace {
			return errs.NewProtocolError(errs.ErrContainerMismatch, u.currentNode, tag)
		}
		u.nest++
		defer func() { u.nest-- }()
	}
	return VisitOption(u.inner, "", o, elem)
}

// VisitStruct drives a nested composite Reflectable field (not itself a
// Node): the Updater gates entry into it by tag exactly like a
// primitive, then the composite's own Reflect walks its own fields.
func VisitStruct[T any, PT interface {
	*T
	Reflectable
}](v Visitor, tag string, val *T) error {
	u, ok := v.(*Updater)
	if !ok {
		return PT(val).Reflect(v)
	}
	entered, justMatched, err := u.enter(tag)
	if err != nil || !entered {
		return err
	}
	if justMatched {
		if u.op != OpUpdate && u.op != OpReplace {
			return errs.NewProtocolError(errs.ErrContainerMismatch, u.currentNode, tag)
		}
		u.nest++
		defer func() { u.nest-- }()
	}
	return PT(val).Reflect(u)
}
