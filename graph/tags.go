package graph

// Tag specializes Node behavior between the server and client endpoints
// of a connection. ServerTag nodes expose the
// member-update API; ClientTag nodes are populated purely by
// Deserializer/Updater and never mutated directly by user code.
type Tag interface {
	isTag()
}

// ServerTag marks a Node living in a server's Context.
type ServerTag struct{}

func (ServerTag) isTag() {}

// ClientTag marks a Node living in a client's Context.
type ClientTag struct{}

func (ClientTag) isTag() {}
