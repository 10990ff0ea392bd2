// Package adapter wires the block handler registry to a specific execution
// environment's capabilities, per §6's Server/Mobile/Cloud-worker split.
package adapter

import "github.com/moizaamir12/vsync-workflow-sub000/engine"

// Adapter binds a concrete platform (full server, mobile device, or a
// capability-limited cloud worker) to a freshly built Registry.
type Adapter interface {
	// Platform names the adapter for error messages and Step records.
	Platform() string
	// Capabilities reports what this platform can actually do.
	Capabilities() engine.Capabilities
	// RegisterBlocks installs a handler (or a capability-gated stub) for
	// every required block type into r.
	RegisterBlocks(r *engine.Registry)
}
