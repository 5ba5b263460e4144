package domain

// UserNodeType is the node type SkyWalking uses for the synthetic end-user node.
const UserNodeType = "USER"

// TopologyNode is a node in the services topology.
type TopologyNode struct {
	ID   string
	Name string
	// Type is the component type reported by the backend; empty when unknown.
	Type string
	// DisplayID is a diagram-safe identifier, stable for a given raw node ordering.
	DisplayID string
}

// TopologyEdge is a call between two nodes, referenced by display id.
type TopologyEdge struct {
	Source string
	Target string
}

// Topology is the services call graph.
type Topology struct {
	Nodes []TopologyNode
	Edges []TopologyEdge
}
