package graph

// Refresher walks a node's value purely to recompute the connection
// sets of every Node field reachable from it, after an ancestor's edge
// changed. It never touches scalar data, hence embedding
// noopPrimitives; its only real work happens in VisitNode (node_visit.go).
//
// ctx is carried as any for the same reason Deserializer carries it:
// Refresher cannot itself be generic over G without breaking the
// *Refresher type switch in VisitSeq/VisitMap/VisitNode, so VisitNode
// recovers the concrete *Context[G] via assertion once G is known.
type Refresher struct {
	noopPrimitives
	ctx any
}
