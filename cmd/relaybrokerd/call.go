package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/relaybroker/pkg/broker"
	"github.com/cuemby/relaybroker/pkg/config"
	"github.com/cuemby/relaybroker/pkg/transport/grpcbus"
)

var callCmd = &cobra.Command{
	Use:   "call <action>",
	Short: "Invoke a remote action on a running node",
	Long: `call boots a short-lived broker node just long enough to reach a
peer and invoke one action on it, printing the result as JSON.

Example:
  relaybrokerd call math.add --peer node-a=node-a.internal:7946 --params '{"a":2,"b":3}'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().String("peer", "", "target node as nodeID=address (required)")
	callCmd.Flags().String("listen", ":0", "this CLI node's own listen address, so the target can reply")
	callCmd.Flags().String("params", "", "JSON-encoded action params")
	callCmd.Flags().Duration("timeout", 5*time.Second, "call timeout")
	_ = callCmd.MarkFlagRequired("peer")
}

func runCall(cmd *cobra.Command, args []string) error {
	action := args[0]
	peer, _ := cmd.Flags().GetString("peer")
	listenAddr, _ := cmd.Flags().GetString("listen")
	paramsJSON, _ := cmd.Flags().GetString("params")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	targetID, targetAddr, ok := strings.Cut(peer, "=")
	if !ok {
		return fmt.Errorf("invalid --peer %q, expected nodeID=address", peer)
	}

	var params interface{}
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			return fmt.Errorf("parse --params: %w", err)
		}
	}

	nodeID := "cli-" + uuid.NewString()
	tr := grpcbus.New(nodeID, listenAddr)
	tr.AddPeer(targetID, targetAddr)

	cfg := config.New(nodeID, config.WithRequestRetry(timeout, 0))
	b, err := broker.New(cfg, tr)
	if err != nil {
		return fmt.Errorf("construct broker: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start broker: %w", err)
	}
	defer b.Stop(context.Background())

	// The target only learns our dial address from our INFO broadcast,
	// which just went out from Start; give it a moment to answer back
	// and reconcile before we Select an endpoint for action.
	deadline := time.Now().Add(timeout)
	for !hasAction(b, action) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	result, err := b.Call(ctx, action, params, broker.CallOptions{Timeout: timeout})
	if err != nil {
		return fmt.Errorf("call %q: %w", action, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func hasAction(b *broker.Broker, action string) bool {
	_, ok := b.Registry().Services.GetActionEntry(action)
	return ok
}
