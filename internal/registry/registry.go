// Package registry implements the process-wide set of (device-number,
// inode) pairs that breaks the otherwise-cyclic relationship between
// the device monitor and this process's own virtual writer outputs:
// without it, a freshly created virtual keyboard would itself look like
// a newly plugged-in device to the next directory scan.
package registry

import (
	"sync"

	"github.com/rkvm-go/rkvm/internal/model"
	"github.com/rkvm-go/rkvm/internal/rkvmio"
)

// Registry is a mutex-guarded set of registered device nodes. The zero
// value is ready to use.
type Registry struct {
	mu   sync.Mutex
	seen map[rkvmio.DeviceNode]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{seen: make(map[rkvmio.DeviceNode]struct{})}
}

// Handle is a RAII-style token: its Close removes the corresponding
// entry from the registry. A Handle must be closed exactly once.
type Handle struct {
	r    *Registry
	node rkvmio.DeviceNode
}

// Close removes this handle's entry from the registry.
func (h *Handle) Close() {
	h.r.mu.Lock()
	delete(h.r.seen, h.node)
	h.r.mu.Unlock()
}

// Register atomically inserts node and returns a Handle whose Close
// removes it again. If node is already registered, it returns
// model.ErrNotApplicable — the caller (typically Interceptor.Open)
// should treat this as "skip, not an error": the device is one of this
// process's own writer outputs.
func (r *Registry) Register(node rkvmio.DeviceNode) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.seen[node]; exists {
		return nil, model.ErrNotApplicable
	}
	r.seen[node] = struct{}{}
	return &Handle{r: r, node: node}, nil
}

// Len reports the number of currently registered nodes, for tests and
// the status API.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
