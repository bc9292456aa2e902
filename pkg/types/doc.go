/*
Package types defines the data model shared by every broker package: the
cluster's Node catalog, the Service/Action/Event descriptors a hosted
service contributes, and the wire Packet exchanged between peer brokers.

# Identity

  - A Node is identified by an opaque, cluster-unique ID.
  - A Service is identified by (Name, Version, NodeID); two services are
    "equal" iff Name and Version match, regardless of node.
  - An action endpoint is identified by (NodeID, Service, ActionDescriptor)
    and is tracked by pkg/registry, not here — this package only holds the
    descriptor shape an action/event is announced with.

# Wire form

Packet is a tagged union: exactly one of its typed payload fields is
populated, selected by Kind. ServiceSnapshot/ActionSnapshot/EventSnapshot
are the wire forms of Service/ActionDescriptor/EventDescriptor used inside
an INFO packet — they drop the Handler fields, which are only
meaningful for locally-hosted endpoints.
*/
package types
