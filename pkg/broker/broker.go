// Package broker is the runtime entry point: it wires pkg/registry and
// pkg/transit together into the single object a host process embeds to
// register services, call actions, and emit/subscribe to events across a
// cluster of peer brokers (spec §4.7, grounded on the teacher's
// pkg/manager.Manager Config+New(cfg) shape).
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/relaybroker/pkg/cache"
	"github.com/cuemby/relaybroker/pkg/cache/memcache"
	"github.com/cuemby/relaybroker/pkg/config"
	"github.com/cuemby/relaybroker/pkg/log"
	"github.com/cuemby/relaybroker/pkg/registry"
	"github.com/cuemby/relaybroker/pkg/strategy"
	"github.com/cuemby/relaybroker/pkg/transit"
	"github.com/cuemby/relaybroker/pkg/transport"
	"github.com/cuemby/relaybroker/pkg/types"
	"github.com/cuemby/relaybroker/pkg/validate"
	"github.com/cuemby/relaybroker/pkg/validate/jsonschema"
)

// Middleware wraps a local action invocation, composed around the
// handler in registration order (spec §9 ambient stack: "a middleware
// chain, closest-registered-runs-innermost").
type Middleware func(next types.Handler) types.Handler

// localService is a registered service plus its optional stop hook,
// recorded so Stop can unwind them in reverse registration order (spec
// §4.7 stop: "call each local service's stop hook, most-recently-started
// first").
type localService struct {
	svc  *types.Service
	stop func() error
}

// Broker is one node's embedded runtime.
type Broker struct {
	cfg config.Config

	registry *registry.Registry
	transit  *transit.Transit
	tr       transport.Transport

	cacher    cache.Cacher
	validator validate.Validator

	mu         sync.Mutex
	started    bool
	startedAt  time.Time
	middleware []Middleware
	local      []localService
	checkers   map[string]validate.Checker // action name -> compiled schema checker
}

// Option configures optional pluggables at construction time. Unlike
// config.Config, these are not YAML-serializable.
type Option func(*Broker)

// WithCacher overrides the default memcache.Cache.
func WithCacher(c cache.Cacher) Option {
	return func(b *Broker) { b.cacher = c }
}

// WithValidator overrides the default jsonschema.Validator.
func WithValidator(v validate.Validator) Option {
	return func(b *Broker) { b.validator = v }
}

// New constructs a Broker for cfg bound to tr, grounded on the teacher's
// NewManager(cfg *Config) (*Manager, error) pattern.
func New(cfg config.Config, tr transport.Transport, opts ...Option) (*Broker, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("broker: NodeID is required")
	}
	b := &Broker{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.cacher == nil {
		b.cacher = memcache.New(cfg.CacheDefaultTTL, cfg.CacheCleanupInterval)
	}
	if b.validator == nil {
		b.validator = jsonschema.New()
	}
	b.checkers = make(map[string]validate.Checker)

	reg := registry.New(cfg.NodeID, strategy.NewRoundRobin, cfg.Breaker)
	reg.OnNodeConnected(func(nodeID string) {
		log.WithComponent("broker").Info().Str("node_id", nodeID).Msg("node connected")
	})
	reg.OnNodeDisconnected(func(nodeID string, unexpected bool) {
		log.WithComponent("broker").Warn().Str("node_id", nodeID).Bool("unexpected", unexpected).Msg("node disconnected")
	})
	b.registry = reg
	b.tr = tr

	b.transit = transit.New(cfg.NodeID, tr, transit.Callbacks{
		OnInfo: func(sender string, payload *types.InfoPayload) {
			reg.ProcessInfo(sender, payload, false)
			b.learnPeerAddr(sender, payload)
		},
		OnHeartbeat: func(sender string, payload *types.HeartbeatPayload) bool {
			return reg.Heartbeat(sender, payload)
		},
		OnDisconnect: func(sender string) {
			reg.Disconnected(sender, false)
		},
		OnDiscover: func(sender string) {
			_ = b.publishInfo(context.Background())
		},
		OnEvent:   b.onEvent,
		OnRequest: b.onRequest,
	})

	return b, nil
}

// Use registers mw, wrapping every subsequent local action invocation.
// Only valid before Start; panics on the teacher's philosophy of failing
// loud on programmer error would be wrong here, so it returns an error
// instead.
func (b *Broker) Use(mw Middleware) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("broker: Use called after Start")
	}
	b.middleware = append(b.middleware, mw)
	return nil
}

// NodeID returns the local node id.
func (b *Broker) NodeID() string { return b.cfg.NodeID }

// Registry exposes the registry for $node.* introspection and tests.
func (b *Broker) Registry() *registry.Registry { return b.registry }

// Start connects the transport, registers the internal $node service,
// announces this node's services, and begins the heartbeat loop (spec
// §4.7 start).
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("broker: already started")
	}
	b.started = true
	b.startedAt = time.Now()
	b.mu.Unlock()

	if err := b.registerNodeService(); err != nil {
		return err
	}

	if err := b.transit.Connect(ctx); err != nil {
		return fmt.Errorf("broker: connect transport: %w", err)
	}

	if err := b.publishInfo(ctx); err != nil {
		return fmt.Errorf("broker: publish info: %w", err)
	}
	// Peers that were already running announced their services before this
	// node subscribed; ask them to announce again.
	if err := b.transit.PublishDiscover(ctx); err != nil {
		return fmt.Errorf("broker: publish discover: %w", err)
	}
	reg := b.registry
	reg.ProcessInfo(b.cfg.NodeID, b.infoPayload(), true)

	b.transit.StartHeartbeatLoop(ctx, b.cfg.HeartbeatInterval, cpuUsage)

	go b.heartbeatCheckLoop(ctx)

	log.WithComponent("broker").Info().Str("node_id", b.cfg.NodeID).Msg("broker started")
	return nil
}

// Stop announces a clean disconnect and tears down the transport, then
// calls every local service's stop hook in reverse registration order
// (spec §4.7 stop).
func (b *Broker) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return fmt.Errorf("broker: not started")
	}
	b.started = false
	services := make([]localService, len(b.local))
	copy(services, b.local)
	b.mu.Unlock()

	err := b.transit.Stop(ctx)

	for i := len(services) - 1; i >= 0; i-- {
		if services[i].stop == nil {
			continue
		}
		if stopErr := services[i].stop(); stopErr != nil {
			log.WithServiceID(services[i].svc.Name).Error().Err(stopErr).Msg("service stop hook failed")
		}
	}

	log.WithComponent("broker").Info().Str("node_id", b.cfg.NodeID).Msg("broker stopped")
	return err
}

func (b *Broker) heartbeatCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.HeartbeatTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.registry.Check(b.cfg.HeartbeatTimeout)
		case <-ctx.Done():
			return
		}
	}
}

func (b *Broker) publishInfo(ctx context.Context) error {
	return b.transit.PublishInfo(ctx, b.infoPayload())
}

func (b *Broker) infoPayload() *types.InfoPayload {
	b.mu.Lock()
	defer b.mu.Unlock()

	snaps := make([]types.ServiceSnapshot, 0, len(b.local))
	for _, ls := range b.local {
		snaps = append(snaps, registry.ToSnapshot(ls.svc))
	}
	var ipList []string
	if addresser, ok := b.tr.(transport.SelfAddresser); ok {
		if addr := addresser.Addr(); addr != "" {
			ipList = []string{addr}
		}
	}
	return &types.InfoPayload{
		Services: snaps,
		IPList:   ipList,
		Client:   types.ClientInfo{Type: "relaybroker", Version: "1"},
		Uptime:   time.Since(b.startedAt),
	}
}

// learnPeerAddr lets a dynamic-mesh transport binding (pkg/transport/grpcbus)
// pick up sender's dial address straight from its INFO announcement,
// rather than requiring every node's address pre-configured on every
// other node.
func (b *Broker) learnPeerAddr(sender string, payload *types.InfoPayload) {
	if sender == b.cfg.NodeID || len(payload.IPList) == 0 {
		return
	}
	if registrar, ok := b.tr.(transport.PeerRegistrar); ok {
		registrar.AddPeer(sender, payload.IPList[0])
	}
}

// cpuUsage is the load figure carried on every HEARTBEAT. The reference
// transport has no resource sampler of its own; 0 keeps LeastLoaded usable
// without pulling in a platform-specific CPU sampling dependency.
func cpuUsage() float64 { return 0 }
