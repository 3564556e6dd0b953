package graph_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/quartzhq/noderpc/errs"
	"github.com/quartzhq/noderpc/graph"
	"github.com/quartzhq/noderpc/netconn"
	"github.com/quartzhq/noderpc/wire"
)

// Leaf and Room are hand-written Reflectable fixtures exercising every
// field kind a user type can have: scalars, a nested composite, a
// sequence, a map, an option, and a nested Node.

type Leaf struct {
	Name  string
	Count uint32
}

func (l *Leaf) Reflect(v graph.Visitor) error {
	if err := v.VisitString("name", &l.Name); err != nil {
		return err
	}
	return v.VisitU32("count", &l.Count)
}

type Address struct {
	City string
}

func (a *Address) Reflect(v graph.Visitor) error {
	return v.VisitString("city", &a.City)
}

type Room struct {
	Title   string
	Tags    []string
	Scores  map[string]int32
	Nick    *string
	Address Address
	Leaf    *graph.Node[Leaf, *Leaf, graph.ServerTag]
}

func (r *Room) Reflect(v graph.Visitor) error {
	if err := v.VisitString("title", &r.Title); err != nil {
		return err
	}
	if err := graph.VisitSeq(v, "tags", &r.Tags, graph.Visitor.VisitString); err != nil {
		return err
	}
	if err := graph.VisitMap(v, "scores", &r.Scores, graph.Visitor.VisitString, graph.Visitor.VisitI32); err != nil {
		return err
	}
	if err := graph.VisitOption(v, "nick", &r.Nick, graph.Visitor.VisitString); err != nil {
		return err
	}
	if err := graph.VisitStruct[Address](v, "address", &r.Address); err != nil {
		return err
	}
	return graph.VisitNode(v, "leaf", &r.Leaf)
}

func newPipeConn() (*netconn.Connection, *netconn.Connection, func()) {
	a, b := net.Pipe()
	ca := netconn.New(a)
	cb := netconn.New(b)
	return ca, cb, func() { ca.Close(); cb.Close() }
}

func TestRoundTripFullValue(t *testing.T) {
	ctxS := graph.NewContext[graph.ServerTag]()
	leaf := graph.MakeNode[Leaf, *Leaf](ctxS, &Leaf{Name: "a", Count: 3})
	nick := "bob"
	room := &Room{
		Title:   "lobby",
		Tags:    []string{"x", "y"},
		Scores:  map[string]int32{"x": 1, "y": -2},
		Nick:    &nick,
		Address: Address{City: "nyc"},
		Leaf:    leaf,
	}

	w := wire.NewWriter()
	if err := room.Reflect(graph.NewSerializer(w)); err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Room's Leaf field is a ServerTag node, and a Node field can only be
	// decoded into a Context of its own tag, so the decode side here is a
	// fresh ServerTag context rather than a client one.
	ctxC := graph.NewContext[graph.ServerTag]()
	var got Room
	dec := graph.NewDeserializer(wire.NewReader(w.Bytes()), ctxC)
	if err := got.Reflect(dec); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Title != room.Title {
		t.Fatalf("title: got %q want %q", got.Title, room.Title)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "x" || got.Tags[1] != "y" {
		t.Fatalf("tags: %+v", got.Tags)
	}
	if got.Scores["x"] != 1 || got.Scores["y"] != -2 {
		t.Fatalf("scores: %+v", got.Scores)
	}
	if got.Nick == nil || *got.Nick != "bob" {
		t.Fatalf("nick: %+v", got.Nick)
	}
	if got.Address.City != "nyc" {
		t.Fatalf("address: %+v", got.Address)
	}
	if got.Leaf == nil || got.Leaf.ID() != leaf.ID() {
		t.Fatalf("leaf node not adopted: %+v", got.Leaf)
	}
	var gotLeafVal Leaf
	got.Leaf.Read(func(v *Leaf) { gotLeafVal = *v })
	if gotLeafVal.Name != "a" || gotLeafVal.Count != 3 {
		t.Fatalf("leaf value: %+v", gotLeafVal)
	}
}

func TestMemberModifiedTargetedUpdate(t *testing.T) {
	ctxS := graph.NewContext[graph.ServerTag]()
	room := graph.MakeNode[Room, *Room](ctxS, &Room{Title: "lobby", Tags: []string{"x"}})

	ca, cb, closeConns := newPipeConn()
	defer closeConns()

	if err := room.SendInitialTo(ca); err != nil {
		t.Fatalf("SendInitialTo: %v", err)
	}
	room.SetRoot(ca)

	initial := drainOnce(t, cb)
	if initial.NodeID != room.ID() {
		t.Fatalf("initial packet id mismatch")
	}

	room.Write(func(v *Room) { v.Title = "renamed" })
	room.MemberModified("title")
	upd := drainOnce(t, cb)
	if upd.NodeID != room.ID() {
		t.Fatalf("update packet id mismatch")
	}

	ctxC := graph.NewContext[graph.ClientTag]()
	gotRoot, err := graph.BootstrapNode[Room, *Room, graph.ClientTag](ctxC, initial.NodeID, initial.Data)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := graph.DispatchUpdate(ctxC, upd.NodeID, upd.Data); err != nil {
		t.Fatalf("dispatch update: %v", err)
	}
	var title string
	gotRoot.Read(func(v *Room) { title = v.Title })
	if title != "renamed" {
		t.Fatalf("title not applied: %q", title)
	}
	if !gotRoot.Changed() {
		t.Fatal("expected Changed() to report true after apply")
	}
	if gotRoot.Changed() {
		t.Fatal("expected Changed() to clear on read")
	}
}

func TestVecOps(t *testing.T) {
	ctxS := graph.NewContext[graph.ServerTag]()
	room := graph.MakeNode[Room, *Room](ctxS, &Room{Tags: []string{"a", "b"}})
	ca, cb, closeConns := newPipeConn()
	defer closeConns()

	if err := room.SendInitialTo(ca); err != nil {
		t.Fatalf("SendInitialTo: %v", err)
	}
	room.SetRoot(ca)

	ctxC := graph.NewContext[graph.ClientTag]()
	gotRoot := mustBootstrap(t, ctxC, room, cb)

	room.MemberVecPush("tags", "c")
	apply(t, ctxC, drainOnce(t, cb))
	var tags []string
	gotRoot.Read(func(v *Room) { tags = append([]string(nil), v.Tags...) })
	if len(tags) != 3 || tags[2] != "c" {
		t.Fatalf("after push: %+v", tags)
	}

	room.MemberVecInsert("tags", 0, "z")
	apply(t, ctxC, drainOnce(t, cb))
	gotRoot.Read(func(v *Room) { tags = append([]string(nil), v.Tags...) })
	if len(tags) != 4 || tags[0] != "z" {
		t.Fatalf("after insert: %+v", tags)
	}

	room.MemberVecRemove("tags", 1)
	apply(t, ctxC, drainOnce(t, cb))
	gotRoot.Read(func(v *Room) { tags = append([]string(nil), v.Tags...) })
	if len(tags) != 3 || tags[1] != "b" {
		t.Fatalf("after remove: %+v", tags)
	}

	room.MemberVecClear("tags")
	apply(t, ctxC, drainOnce(t, cb))
	gotRoot.Read(func(v *Room) { tags = append([]string(nil), v.Tags...) })
	if len(tags) != 0 {
		t.Fatalf("after clear: %+v", tags)
	}
}

func TestMapOps(t *testing.T) {
	ctxS := graph.NewContext[graph.ServerTag]()
	room := graph.MakeNode[Room, *Room](ctxS, &Room{Scores: map[string]int32{}})
	ca, cb, closeConns := newPipeConn()
	defer closeConns()

	if err := room.SendInitialTo(ca); err != nil {
		t.Fatalf("SendInitialTo: %v", err)
	}
	room.SetRoot(ca)

	ctxC := graph.NewContext[graph.ClientTag]()
	gotRoot := mustBootstrap(t, ctxC, room, cb)

	room.MemberMapInsert("scores", "a", int32(5))
	apply(t, ctxC, drainOnce(t, cb))
	var scores map[string]int32
	gotRoot.Read(func(v *Room) { scores = v.Scores })
	if scores["a"] != 5 {
		t.Fatalf("after insert: %+v", scores)
	}

	room.MemberMapRemove("scores", "a")
	apply(t, ctxC, drainOnce(t, cb))
	gotRoot.Read(func(v *Room) { scores = v.Scores })
	if _, ok := scores["a"]; ok {
		t.Fatalf("after remove: %+v", scores)
	}

	room.MemberMapInsert("scores", "b", int32(9))
	apply(t, ctxC, drainOnce(t, cb))
	room.MemberMapClear("scores")
	apply(t, ctxC, drainOnce(t, cb))
	gotRoot.Read(func(v *Room) { scores = v.Scores })
	if len(scores) != 0 {
		t.Fatalf("after clear: %+v", scores)
	}
}

// dupRoom's Reflect deliberately visits "a" twice, simulating a
// programming mistake in a user type, to prove the Updater's gating
// rejects a second match at the same nesting level rather than silently
// applying the update to whichever field happened to match last.
type dupRoom struct {
	A, B string
}

func (d *dupRoom) Reflect(v graph.Visitor) error {
	if err := v.VisitString("a", &d.A); err != nil {
		return err
	}
	return v.VisitString("a", &d.B)
}

func TestDuplicateTagIsProtocolError(t *testing.T) {
	ctxS := graph.NewContext[graph.ServerTag]()
	room := graph.MakeNode[dupRoom, *dupRoom](ctxS, &dupRoom{A: "1", B: "2"})
	ca, cb, closeConns := newPipeConn()
	defer closeConns()

	if err := room.SendInitialTo(ca); err != nil {
		t.Fatalf("SendInitialTo: %v", err)
	}
	room.SetRoot(ca)
	initial := drainOnce(t, cb)

	ctxC := graph.NewContext[graph.ClientTag]()
	if _, err := graph.BootstrapNode[dupRoom, *dupRoom, graph.ClientTag](ctxC, initial.NodeID, initial.Data); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// Hand-craft a malformed Update payload: op=Update, tag="a", one
	// string value. dupRoom.Reflect will match "a" against field A (ok)
	// then try to match "a" again against field B — the second match is
	// the protocol violation under test.
	w := wire.NewWriter()
	w.WriteU8(uint8(graph.OpUpdate))
	w.WriteString("a")
	w.WriteString("new-value")
	if err := ca.Send(room.ID(), w.Bytes()); err != nil {
		t.Fatalf("send malformed update: %v", err)
	}
	up := drainOnce(t, cb)

	err := graph.DispatchUpdate(ctxC, up.NodeID, up.Data)
	if err == nil {
		t.Fatal("expected duplicate-tag protocol error")
	}
	if !errors.Is(err, errs.ErrDuplicateTag) {
		t.Fatalf("expected ErrDuplicateTag, got %v", err)
	}
}

// TestSharedNodeFanoutAcrossTwoRoots attaches the same child node to two
// separate root nodes (each Acquiring its own handle, the way
// server.Server.AddClient gives every client its own root while a child
// like a shared chat log stays one node) and proves an update to the
// child reaches both roots' connections, not just the most recently
// attached one.
func TestSharedNodeFanoutAcrossTwoRoots(t *testing.T) {
	ctxS := graph.NewContext[graph.ServerTag]()
	leaf := graph.MakeNode[Leaf, *Leaf](ctxS, &Leaf{Name: "a"})
	room1 := graph.MakeNode[Room, *Room](ctxS, &Room{Title: "one", Leaf: leaf.Acquire()})
	room2 := graph.MakeNode[Room, *Room](ctxS, &Room{Title: "two", Leaf: leaf.Acquire()})

	ca1, cb1, close1 := newPipeConn()
	defer close1()
	ca2, cb2, close2 := newPipeConn()
	defer close2()

	if err := room1.SendInitialTo(ca1); err != nil {
		t.Fatalf("SendInitialTo room1: %v", err)
	}
	room1.SetRoot(ca1)
	if err := room2.SendInitialTo(ca2); err != nil {
		t.Fatalf("SendInitialTo room2: %v", err)
	}
	room2.SetRoot(ca2)

	drainOnce(t, cb1)
	drainOnce(t, cb2)

	leaf.Write(func(v *Leaf) { v.Name = "b" })
	leaf.MemberModified("name")

	p1 := drainOnce(t, cb1)
	if p1.NodeID != leaf.ID() {
		t.Fatalf("root1 did not receive leaf update: got node %d want %d", p1.NodeID, leaf.ID())
	}
	p2 := drainOnce(t, cb2)
	if p2.NodeID != leaf.ID() {
		t.Fatalf("root2 did not receive leaf update: got node %d want %d", p2.NodeID, leaf.ID())
	}
}

// TestChildConnectionsDropAfterParentReleasesIt proves a child node's
// fan-out set shrinks once its only parent releases it, rather than
// keeping a stale connection around.
func TestChildConnectionsDropAfterParentReleasesIt(t *testing.T) {
	ctxS := graph.NewContext[graph.ServerTag]()
	leaf := graph.MakeNode[Leaf, *Leaf](ctxS, &Leaf{Name: "a"})
	room := graph.MakeNode[Room, *Room](ctxS, &Room{Title: "lobby", Leaf: leaf})

	ca, cb, closeConns := newPipeConn()
	defer closeConns()

	if err := room.SendInitialTo(ca); err != nil {
		t.Fatalf("SendInitialTo: %v", err)
	}
	room.SetRoot(ca)
	drainOnce(t, cb)

	if got := len(leaf.Connections()); got != 1 {
		t.Fatalf("leaf connections before release: got %d want 1", got)
	}

	room.Write(func(v *Room) { v.Leaf = nil })
	leaf.Release()

	if got := len(leaf.Connections()); got != 0 {
		t.Fatalf("leaf connections after parent released it: got %d want 0", got)
	}
}

func mustBootstrap[T any, PT graph.Value[T]](t *testing.T, ctxC *graph.Context[graph.ClientTag], root *graph.Node[T, PT, graph.ServerTag], cb *netconn.Connection) *graph.Node[T, PT, graph.ClientTag] {
	t.Helper()
	p := drainOnce(t, cb)
	got, err := graph.BootstrapNode[T, PT, graph.ClientTag](ctxC, p.NodeID, p.Data)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return got
}

func drainOnce(t *testing.T, c *netconn.Connection) netconn.Packet {
	t.Helper()
	p, ok := c.RecvBlocking(context.Background())
	if !ok {
		t.Fatal("expected a packet, got none")
	}
	return p
}

func apply[G graph.Tag](t *testing.T, ctx *graph.Context[G], p netconn.Packet) {
	t.Helper()
	if err := graph.DispatchUpdate(ctx, p.NodeID, p.Data); err != nil {
		t.Fatalf("apply: %v", err)
	}
}
