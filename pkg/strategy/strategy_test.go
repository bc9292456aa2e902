package strategy

import (
	"testing"

	"github.com/cuemby/relaybroker/pkg/types"
	"github.com/stretchr/testify/assert"
)

func endpoints(n int) []*types.Endpoint {
	out := make([]*types.Endpoint, n)
	for i := range out {
		out[i] = &types.Endpoint{NodeID: string(rune('a' + i))}
	}
	return out
}

func TestRoundRobinCyclesInOrder(t *testing.T) {
	eps := endpoints(3)
	s := NewRoundRobin()

	got := []string{
		s.Select(eps).NodeID,
		s.Select(eps).NodeID,
		s.Select(eps).NodeID,
		s.Select(eps).NodeID,
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestRoundRobinEmpty(t *testing.T) {
	s := NewRoundRobin()
	assert.Nil(t, s.Select(nil))
}

func TestRoundRobinSingleCandidateAlwaysSelected(t *testing.T) {
	eps := endpoints(1)
	s := NewRoundRobin()
	for i := 0; i < 5; i++ {
		assert.Same(t, eps[0], s.Select(eps))
	}
}

func TestRandomSelectsFromCandidates(t *testing.T) {
	eps := endpoints(4)
	s := NewRandom()
	for i := 0; i < 20; i++ {
		picked := s.Select(eps)
		assert.Contains(t, eps, picked)
	}
}

func TestRandomEmpty(t *testing.T) {
	s := NewRandom()
	assert.Nil(t, s.Select(nil))
}

func TestLeastLoadedPicksLowest(t *testing.T) {
	eps := endpoints(3)
	load := map[string]int{"a": 5, "b": 1, "c": 9}
	s := LeastLoaded{Load: func(e *types.Endpoint) int { return load[e.NodeID] }}

	assert.Equal(t, "b", s.Select(eps).NodeID)
}

func TestLeastLoadedEmpty(t *testing.T) {
	s := LeastLoaded{Load: func(*types.Endpoint) int { return 0 }}
	assert.Nil(t, s.Select(nil))
}

func TestLeastLoadedTieBreaksFirst(t *testing.T) {
	eps := endpoints(3)
	s := LeastLoaded{Load: func(*types.Endpoint) int { return 1 }}
	assert.Same(t, eps[0], s.Select(eps))
}
