package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/relaybroker/pkg/broker"
	"github.com/cuemby/relaybroker/pkg/config"
	"github.com/cuemby/relaybroker/pkg/transport"
	"github.com/cuemby/relaybroker/pkg/transport/grpcbus"
	"github.com/cuemby/relaybroker/pkg/transport/local"
	"github.com/cuemby/relaybroker/pkg/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a broker node",
	Long: `Start boots a broker node: it connects its transport, announces
any locally hosted services, and serves calls/events until interrupted.

Examples:
  # A single, transport-isolated node (no peers)
  relaybrokerd start --node-id node-a

  # A node listening for peers over gRPC and dialing one
  relaybrokerd start --node-id node-b --listen :7946 --peer node-a=node-a.internal:7946`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().String("node-id", "", "This node's cluster-unique id (required)")
	startCmd.Flags().String("config", "", "YAML config file (pkg/config.Load); flags below override it")
	startCmd.Flags().String("listen", "", "gRPC listen address (empty disables the networked transport)")
	startCmd.Flags().StringArray("peer", nil, "peer in nodeID=address form; repeatable")
	startCmd.Flags().String("services", "", "YAML file describing demo services to host (see demoManifest)")
	_ = startCmd.MarkFlagRequired("node-id")
}

func runStart(cmd *cobra.Command, args []string) error {
	nodeID, _ := cmd.Flags().GetString("node-id")
	configPath, _ := cmd.Flags().GetString("config")
	listenAddr, _ := cmd.Flags().GetString("listen")
	peers, _ := cmd.Flags().GetStringArray("peer")
	servicesPath, _ := cmd.Flags().GetString("services")

	cfg := config.Default(nodeID)
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	var tr transport.Transport
	if listenAddr != "" {
		gb := grpcbus.New(nodeID, listenAddr)
		for _, p := range peers {
			id, addr, ok := strings.Cut(p, "=")
			if !ok {
				return fmt.Errorf("invalid --peer %q, expected nodeID=address", p)
			}
			gb.AddPeer(id, addr)
		}
		tr = gb
	} else {
		tr = local.NewBus()
	}

	b, err := broker.New(cfg, tr)
	if err != nil {
		return fmt.Errorf("construct broker: %w", err)
	}

	if servicesPath != "" {
		if err := hostDemoServices(b, servicesPath); err != nil {
			return fmt.Errorf("host demo services: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start broker: %w", err)
	}
	fmt.Printf("relaybrokerd: node %q running (listen=%q)\n", nodeID, listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer stopCancel()
	if err := b.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop broker: %w", err)
	}
	fmt.Println("✓ shutdown complete")
	return nil
}

// demoManifest is a minimal YAML resource for standing up placeholder
// services at boot, grounded on the teacher's apply.go generic-resource
// loading shape. Each action gets an echo handler: it returns its
// params unchanged, useful for smoke-testing a cluster's routing without
// writing Go.
type demoManifest struct {
	Services []struct {
		Name    string   `yaml:"name"`
		Actions []string `yaml:"actions"`
	} `yaml:"services"`
}

func hostDemoServices(b *broker.Broker, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var manifest demoManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return err
	}
	for _, svcDef := range manifest.Services {
		actions := make(map[string]*types.ActionDescriptor, len(svcDef.Actions))
		for _, name := range svcDef.Actions {
			actions[name] = &types.ActionDescriptor{
				Name: name,
				Handler: func(ctx types.CallContext) (interface{}, error) {
					return ctx.Params(), nil
				},
			}
		}
		svc := &types.Service{Name: svcDef.Name, Actions: actions}
		if err := b.CreateService(svc, nil); err != nil {
			return fmt.Errorf("service %q: %w", svcDef.Name, err)
		}
	}
	return nil
}
