// Package strategy implements the pluggable endpoint-selection policies
// referenced by spec §4.3 step 4: once the registry has filtered an
// action's endpoints down to the ones that are actually selectable
// (node available, circuit not OPEN), a Strategy picks exactly one.
//
// Strategies are pure: Select never mutates its input and never talks to
// the network; round-robin's "per-action cursor" is the only state a
// strategy instance carries, and it lives on the strategy instance itself
// so that pkg/registry can keep one strategy per action name.
package strategy

import (
	"math/rand"
	"sync/atomic"

	"github.com/cuemby/relaybroker/pkg/types"
)

// Strategy selects one endpoint from a non-empty slice of candidates that
// have already been filtered for availability.
type Strategy interface {
	Select(endpoints []*types.Endpoint) *types.Endpoint
}

// Factory builds a fresh Strategy instance, used so the registry can hand
// every action entry its own cursor/RNG state rather than sharing one
// across unrelated actions.
type Factory func() Strategy

// RoundRobin cycles through candidates in order using an atomic cursor,
// the spec's default strategy (§4.3).
type RoundRobin struct {
	cursor uint64
}

// NewRoundRobin is a Factory for RoundRobin.
func NewRoundRobin() Strategy {
	return &RoundRobin{}
}

func (r *RoundRobin) Select(endpoints []*types.Endpoint) *types.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}
	n := atomic.AddUint64(&r.cursor, 1) - 1
	return endpoints[n%uint64(len(endpoints))]
}

// Random picks a uniformly random candidate, grounded on the member-pick
// shape of go-nano's cluster handler (remoteProcess uses rand.Intn(len(members))
// to fan a message out to an arbitrary remote service instance).
type Random struct{}

// NewRandom is a Factory for Random.
func NewRandom() Strategy {
	return Random{}
}

func (Random) Select(endpoints []*types.Endpoint) *types.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}
	return endpoints[rand.Intn(len(endpoints))]
}

// LoadFn reports an endpoint's current in-flight load, supplied by the
// caller (the registry keeps no load counts; strategy itself stays
// stateless about load).
type LoadFn func(e *types.Endpoint) int

// LeastLoaded picks the candidate with the lowest reported load, breaking
// ties by the first endpoint encountered (stable given a fixed input
// order, which the registry provides in node-registration order).
type LeastLoaded struct {
	Load LoadFn
}

func (l LeastLoaded) Select(endpoints []*types.Endpoint) *types.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}
	best := endpoints[0]
	bestLoad := l.Load(best)
	for _, e := range endpoints[1:] {
		if load := l.Load(e); load < bestLoad {
			best, bestLoad = e, load
		}
	}
	return best
}
