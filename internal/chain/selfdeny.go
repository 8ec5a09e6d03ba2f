package chain

import (
	"fmt"

	"github.com/tunelo-project/tunelo/internal/addr"
)

// SelfDenyFilter rejects a hop or a final target that resolves to one
// of the process's own listener addresses, preventing a chain or
// listener from looping back into itself. Checked once at startup
// against the active listener set, rather than as a per-request hook.
type SelfDenyFilter struct {
	denied map[string]struct{}
}

// NewSelfDenyFilter builds a filter that denies the given listener
// endpoints.
func NewSelfDenyFilter(listeners ...addr.Endpoint) *SelfDenyFilter {
	f := &SelfDenyFilter{denied: make(map[string]struct{}, len(listeners))}
	for _, ep := range listeners {
		f.denied[ep.String()] = struct{}{}
	}
	return f
}

// Check returns an error if ep matches one of the filter's own listener
// addresses.
func (f *SelfDenyFilter) Check(ep addr.Endpoint) error {
	if _, denied := f.denied[ep.String()]; denied {
		return fmt.Errorf("chain: refusing to proxy to own listener address %s", ep)
	}
	return nil
}

// CheckChain consults Check against every hop in the chain, catching a
// chain that would loop back into one of the process's own listeners
// before the chain engine ever dials hop 1.
func (f *SelfDenyFilter) CheckChain(c Chain) error {
	for _, hop := range c.Hops() {
		if err := f.Check(hop.Endpoint); err != nil {
			return err
		}
	}
	return nil
}
