package storage

// All bundles the storage abstractions a node wires together.
type All struct {
	Headers        Headers
	Blocks         Blocks
	Justifications Justifications
}
