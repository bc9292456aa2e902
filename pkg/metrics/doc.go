/*
Package metrics provides Prometheus metrics collection and exposition for
relaybroker.

It defines and registers every broker metric using the Prometheus client
library: cluster composition (known nodes, services, actions, event
subscriptions), call outcomes and latency, circuit breaker state, and
transit packet volume. Metrics are exposed over HTTP for scraping.

# Metrics catalog

Cluster:

	relaybroker_nodes_total{status}           Gauge  known nodes by status (online/offline)
	relaybroker_services_total                Gauge  registered services
	relaybroker_actions_total                  Gauge  registered actions
	relaybroker_event_subscriptions_total      Gauge  registered event subscriptions

Calls:

	relaybroker_calls_total{action,outcome}    Counter   calls by action and outcome (success/error)
	relaybroker_call_duration_seconds{action}  Histogram call latency
	relaybroker_call_retries_total{action}     Counter   retries issued
	relaybroker_cache_hits_total{action}       Counter   cache hits
	relaybroker_cache_misses_total{action}     Counter   cache misses

Circuit breakers:

	relaybroker_circuit_breaker_state{action,node}        Gauge    0=closed 1=half_open 2=open
	relaybroker_circuit_breaker_trips_total{action,node}  Counter  open transitions

Events:

	relaybroker_events_emitted_total{event,mode}  Counter  emits by delivery mode (balanced/broadcast)

Transit:

	relaybroker_transit_packets_total{kind,direction}  Counter   packets sent/received by kind
	relaybroker_ping_duration_seconds{node}            Histogram round-trip ping latency

# Usage

Gauges that reflect registry composition (nodes/services/actions/event
subscriptions) are kept current by a Collector sampling on a timer:

	coll := metrics.NewCollector(reg, 15*time.Second)
	coll.Start()
	defer coll.Stop()

Per-call counters and histograms are updated inline at the call site, e.g.
pkg/broker records CallsTotal and CallDuration around every Call.

	timer := metrics.NewTimer()
	result, err := handler(ctx)
	timer.ObserveDurationVec(metrics.CallDuration, action)

Metrics are served alongside the broker's other HTTP endpoints:

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
