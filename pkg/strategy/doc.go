/*
Package strategy implements the endpoint-selection policies of spec §4.3.

RoundRobin is the broker default: each action entry in pkg/registry owns
one RoundRobin instance so unrelated actions don't share a cursor. Random
and LeastLoaded are provided as drop-in alternatives behind the same
Strategy interface.
*/
package strategy
