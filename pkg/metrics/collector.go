package metrics

import (
	"time"

	"github.com/cuemby/relaybroker/pkg/registry"
	"github.com/cuemby/relaybroker/pkg/types"
)

// Collector periodically samples a Registry into the package-level gauges
// (node/service/action/subscription counts) that can't be updated inline
// at the point of a single call the way CallsTotal/CallDuration are.
type Collector struct {
	reg      *registry.Registry
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector returns a Collector sampling reg every interval.
func NewCollector(reg *registry.Registry, interval time.Duration) *Collector {
	return &Collector{
		reg:      reg,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sampling loop in its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the sampling loop. Call once.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectNodeMetrics()
	c.collectServiceMetrics()
}

func (c *Collector) collectNodeMetrics() {
	nodes := c.reg.Nodes.List()

	counts := map[types.NodeStatus]int{}
	for _, n := range nodes {
		status := types.NodeStatusOffline
		if n.Available {
			status = types.NodeStatusOnline
		}
		counts[status]++
	}
	NodesTotal.WithLabelValues(string(types.NodeStatusOnline)).Set(float64(counts[types.NodeStatusOnline]))
	NodesTotal.WithLabelValues(string(types.NodeStatusOffline)).Set(float64(counts[types.NodeStatusOffline]))
}

func (c *Collector) collectServiceMetrics() {
	services := c.reg.Services.List(registry.ListFilter{})
	ServicesTotal.Set(float64(len(services)))

	var actions, events int
	for _, svc := range services {
		actions += len(svc.Actions)
		events += len(svc.Events)
	}
	ActionsTotal.Set(float64(actions))
	EventSubscriptionsTotal.Set(float64(events))
}
