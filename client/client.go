// Package client implements the client-side facade: a blocking initial
// handshake that materializes the graph root from the first packet,
// plus a per-tick Update that drains and applies inbound update
// packets, and a thin RPC call proxy.
package client

import (
	"context"
	"fmt"
	"io"

	"github.com/quartzhq/noderpc/errs"
	"github.com/quartzhq/noderpc/graph"
	"github.com/quartzhq/noderpc/logx"
	"github.com/quartzhq/noderpc/netconn"
	"github.com/quartzhq/noderpc/rpc"
)

var log = logx.Named("client")

// Client owns one replicated graph's root node and Context, mirrored
// from a single server connection.
type Client[T any, PT graph.Value[T]] struct {
	ctx  *graph.Context[graph.ClientTag]
	conn *netconn.Connection
	root *graph.Node[T, PT, graph.ClientTag]
}

// Connect wraps rw in a framed connection and blocks for the initial
// full-replication packet the server sends a freshly attached client.
// The first packet is recognized structurally — it is whatever packet
// arrives first, always framed as a Replace — rather than by any
// side-channel handshake message (see DESIGN.md for the reasoning).
func Connect[T any, PT graph.Value[T]](ctx context.Context, rw io.ReadWriteCloser) (*Client[T, PT], error) {
	conn := netconn.New(rw)
	cctx := graph.NewContext[graph.ClientTag]()

	p, ok := conn.RecvBlocking(ctx)
	if !ok {
		conn.Close()
		return nil, errs.NewConnError(errs.ErrIO, conn.ID(), fmt.Errorf("connection closed before initial replication"))
	}

	root, err := graph.BootstrapNode[T, PT, graph.ClientTag](cctx, p.NodeID, p.Data)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Client[T, PT]{ctx: cctx, conn: conn, root: root}, nil
}

// Update drains every packet currently buffered on the connection
// without blocking and applies each as a granular update to its target
// node. Callers drive this from their own main loop; it never blocks.
// It returns the connection's recorded error once the connection has
// died, and nil otherwise.
func (c *Client[T, PT]) Update() error {
	for {
		p, ok := c.conn.Recv()
		if !ok {
			break
		}
		if err := graph.DispatchUpdate(c.ctx, p.NodeID, p.Data); err != nil {
			log.WithField("conn", c.conn.ID()).Warnf("update dispatch failed: %v", err)
		}
	}
	return c.conn.Status()
}

// Root returns the client's mirrored graph root.
func (c *Client[T, PT]) Root() *graph.Node[T, PT, graph.ClientTag] { return c.root }

// Connection returns the underlying framed connection, e.g. to check
// Alive()/Status() or Close() it.
func (c *Client[T, PT]) Connection() *netconn.Connection { return c.conn }

// Call issues a fire-and-forget RPC named name at the node identified
// by nodeID. encodeArgs writes the method's arguments, in
// declared order, onto the provided Serializer.
func (c *Client[T, PT]) Call(nodeID uint32, name string, encodeArgs func(*graph.Serializer) error) error {
	return rpc.Call(c.conn, nodeID, name, encodeArgs)
}
