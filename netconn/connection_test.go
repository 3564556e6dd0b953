package netconn

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestSendRecvRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	ca := New(a)
	cb := New(b)

	if err := ca.Send(42, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, ok := cb.RecvBlocking(ctx)
	if !ok {
		t.Fatal("expected packet")
	}
	if p.NodeID != 42 || string(p.Data) != "hello" {
		t.Fatalf("got %+v", p)
	}
}

func TestRecvNonBlockingEmpty(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	cb := New(b)
	_ = New(a)

	if _, ok := cb.Recv(); ok {
		t.Fatal("expected no packet available")
	}
}

func TestCloseKillsConnection(t *testing.T) {
	a, b := net.Pipe()
	ca := New(a)
	cb := New(b)
	defer cb.Close()

	_ = ca.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := cb.RecvBlocking(ctx); ok {
		t.Fatal("expected connection to die, not deliver a packet")
	}
	if cb.Alive() {
		t.Fatal("expected cb to be dead after peer closed")
	}
	if cb.Status() == nil {
		t.Fatal("expected a recorded status error")
	}
}

func TestMagicMismatchKillsConnection(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	cb := New(b)

	// write a malformed header directly, bypassing Connection.Send
	go func() {
		hdr := []byte{0, 0, 0, 1 /* node */, 0xDE, 0xAD, 0xBE, 0xEF /* bad magic */, 0, 0, 0, 0}
		a.Write(hdr)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := cb.RecvBlocking(ctx); ok {
		t.Fatal("expected no packet delivered on magic mismatch")
	}
	if cb.Alive() {
		t.Fatal("expected connection to be dead after magic mismatch")
	}
}

func TestConnIDsMonotonic(t *testing.T) {
	a1, b1 := net.Pipe()
	defer a1.Close()
	defer b1.Close()
	c1 := New(a1)
	c2 := New(b1)
	if c2.ID() <= c1.ID() {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", c1.ID(), c2.ID())
	}
}
