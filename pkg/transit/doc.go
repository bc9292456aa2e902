/*
Package transit implements spec §4.6: request/response correlation,
packet dispatch by kind, and the heartbeat/ping loops, against any
pkg/transport.Transport binding.

Pending-slot invariants (spec §4.6, §8):
  - at most one live slot per requestId (the table is keyed by requestId)
  - exactly one of {resolve, reject, timeout} ever settles a slot
    (enforced by Pending's settle-under-lock compare-and-set)
  - a failed publish rejects that request's slot with TRANSPORT_ERROR;
    on a target-node DISCONNECT, that node's live slots reject with
    NODE_DISCONNECTED. Loss of the transport connection itself is not
    detected and rejects no slot.
  - on Stop, every live slot rejects with BROKER_STOPPING
*/
package transit
