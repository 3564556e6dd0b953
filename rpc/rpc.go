// Package rpc implements the client-side half of the RPC call:
// encoding a call name plus positional arguments and shipping it
// as a packet addressed to the target node's id. The dispatch table
// that decodes and invokes a named handler lives on graph.Node itself
// (RegisterRPC) rather than here, so this package never needs to know
// about Node's internals and graph never needs to import rpc — keeping
// the dependency a one-way arrow.
package rpc

import (
	"github.com/quartzhq/noderpc/graph"
	"github.com/quartzhq/noderpc/netconn"
	"github.com/quartzhq/noderpc/wire"
)

// Call encodes name followed by whatever encodeArgs writes (in the
// method's declared argument order) and sends it to conn addressed at
// nodeID. RPCs are fire-and-forget: Call returns as soon as the bytes
// are handed to the connection, with no reply to wait for.
func Call(conn *netconn.Connection, nodeID uint32, name string, encodeArgs func(*graph.Serializer) error) error {
	w := wire.NewWriter()
	w.WriteString(name)
	ser := graph.NewSerializer(w)
	if encodeArgs != nil {
		if err := encodeArgs(ser); err != nil {
			return err
		}
	}
	return conn.Send(nodeID, w.Bytes())
}
