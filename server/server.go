// Package server implements the server-side facade: owning a graph's
// Context, accepting new client connections each onto their own root
// node (folding the connection into the node graph's fan-out, then
// sending the initial full replication), and a per-tick Update that
// drops dead clients and drains inbound RPC packets.
package server

import (
	"io"
	"sync"

	"github.com/quartzhq/noderpc/graph"
	"github.com/quartzhq/noderpc/logx"
	"github.com/quartzhq/noderpc/netconn"
)

var log = logx.Named("server")

// clientEntry pairs a connection with the root node constructed for it:
// every client gets its own root node instance so one client's fan-out
// can never collide with another's (see AddClient).
type clientEntry[T any, PT graph.Value[T]] struct {
	conn *netconn.Connection
	root *graph.Node[T, PT, graph.ServerTag]
}

// Server owns one replicated graph's Context and the list of attached
// (connection, root node) pairs.
type Server[T any, PT graph.Value[T]] struct {
	ctx *graph.Context[graph.ServerTag]

	mu      sync.Mutex
	clients []clientEntry[T, PT]
}

// New constructs a server around a fresh Context.
func New[T any, PT graph.Value[T]]() *Server[T, PT] {
	return &Server[T, PT]{ctx: graph.NewContext[graph.ServerTag]()}
}

// Attach wraps an already-constructed Context, for callers that need to
// build shared child nodes (via NewChild) before the first client's root
// value can reference them.
func Attach[T any, PT graph.Value[T]](ctx *graph.Context[graph.ServerTag]) *Server[T, PT] {
	return &Server[T, PT]{ctx: ctx}
}

// Context returns the server's node registry, for constructing shared
// child nodes (NewChild) or looking nodes up directly.
func (s *Server[T, PT]) Context() *graph.Context[graph.ServerTag] { return s.ctx }

// NewChild allocates and registers a node of a different type C sharing
// this server's context, for child nodes a root value will reference —
// typically Acquired once per client root so each root's fan-out tracks
// its own connection independently.
func NewChild[C any, PC graph.Value[C], T any, PT graph.Value[T]](s *Server[T, PT], val PC) *graph.Node[C, PC, graph.ServerTag] {
	return graph.MakeNode[C, PC](s.ctx, val)
}

// AddClient wraps rw in a framed connection, allocates a fresh root node
// holding rootVal, attaches the connection to the new root's fan-out
// set, sends that root's full current value as the initial replication
// payload, and appends the (connection, root) pair to the client
// list Update drains. Every client gets its own root node — two clients
// never share one, so one client's SetRoot can never overwrite another's.
func (s *Server[T, PT]) AddClient(rw io.ReadWriteCloser, rootVal PT) (*netconn.Connection, *graph.Node[T, PT, graph.ServerTag], error) {
	conn := netconn.New(rw)
	root := graph.MakeNode[T, PT](s.ctx, rootVal)
	root.SetRoot(conn)
	if err := root.SendInitialTo(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}

	s.mu.Lock()
	s.clients = append(s.clients, clientEntry[T, PT]{conn: conn, root: root})
	s.mu.Unlock()
	return conn, root, nil
}

// ForEachRoot calls fn with every currently attached client's root node,
// for broadcasting a change to canonical state that every client's
// separate root value must carry (e.g. a title or lifecycle flag shared
// by the whole room).
func (s *Server[T, PT]) ForEachRoot(fn func(*graph.Node[T, PT, graph.ServerTag])) {
	s.mu.Lock()
	roots := make([]*graph.Node[T, PT, graph.ServerTag], len(s.clients))
	for i, ce := range s.clients {
		roots[i] = ce.root
	}
	s.mu.Unlock()

	for _, root := range roots {
		fn(root)
	}
}

// NumClients reports how many clients are on the client list: those
// the last Update kept as live plus any added by AddClient since.
func (s *Server[T, PT]) NumClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Update drops clients whose connection has died (releasing their root
// node) and, for every remaining live client, drains all pending
// packets non-blockingly and dispatches each as an RPC targeted at its
// node id. Callers drive this from their own main loop; it never blocks.
func (s *Server[T, PT]) Update() {
	s.mu.Lock()
	live := s.clients[:0]
	for _, ce := range s.clients {
		if !ce.conn.Alive() {
			log.WithField("conn", ce.conn.ID()).Infof("client connection dead, dropping")
			ce.root.Release()
			continue
		}
		live = append(live, ce)
	}
	s.clients = live
	snapshot := append([]clientEntry[T, PT](nil), s.clients...)
	s.mu.Unlock()

	for _, ce := range snapshot {
		for {
			p, ok := ce.conn.Recv()
			if !ok {
				break
			}
			if err := graph.DispatchRPC(s.ctx, p.NodeID, p.Data); err != nil {
				log.WithField("conn", ce.conn.ID()).Warnf("rpc dispatch failed: %v", err)
			}
		}
	}
}
