/*
Package registry is the broker's in-memory catalog: the data structure
that answers "who can serve action X right now?" (spec §1).

It is split into three catalogs that mirror the spec's component
breakdown:

  - NodeCatalog (§4.1) tracks peer liveness.
  - ServiceCatalog (§4.2), together with the per-action ActionEntry (§4.3),
    tracks services, their actions, and per-endpoint circuit-breaker state.
  - EventCatalog (§4.5) tracks event subscribers and implements the
    broadcast vs group-balanced delivery split.

Registry composes the three and performs the cross-catalog bookkeeping
spec §4.1 assigns to processInfo/disconnected (service reconciliation,
event re-registration, $node.* lifecycle callbacks) so that no individual
catalog needs to import another.

All mutation entry points serialize internally (each catalog owns its own
mutex: an RWMutex for nodes and services, a plain Mutex for events);
callers never need an external lock.
*/
package registry
