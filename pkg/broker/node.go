package broker

import (
	"context"
	"time"

	"github.com/cuemby/relaybroker/pkg/metrics"
)

// Ping round-trips a latency probe to nodeID (SPEC_FULL §11 supplemented
// feature), recording the measured duration as a histogram observation.
func (b *Broker) Ping(ctx context.Context, nodeID string) (time.Duration, error) {
	d, err := b.transit.Ping(ctx, nodeID)
	if err != nil {
		return 0, err
	}
	metrics.PingDuration.WithLabelValues(nodeID).Observe(d.Seconds())
	return d, nil
}
