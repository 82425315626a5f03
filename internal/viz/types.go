package viz

// NodeInfo is the input type for archive tree rendering.
// Decoupled from model types so viz is a pure rendering package.
type NodeInfo struct {
	Type     string
	ID       string
	Fields   []FieldInfo // flattened artifact fields, in artifact order
	Children []NodeInfo
}

// FieldInfo is one artifact field formatted for display.
type FieldInfo struct {
	Name  string
	Value string
}

// TypeStats describes one operation type for the build summary.
type TypeStats struct {
	Type     string
	Count    int // models instantiated
	Unlinked int // models that failed linking
}
