/*
Package callctx implements spec §4.8's Context: a per-call record that
threads broker/action/params/meta/requestId/parentId/level through the
call graph, plus the retryCount/nodeId/metrics/cachedResult bookkeeping
the broker mutates as a call proceeds.

Context inheritance (spec §8 "Context inheritance" invariant):
every child created by Child() satisfies

	child.RequestID() == parent.RequestID()
	child.Level()     == parent.Level() + 1

Meta is shared by reference across a call family. The retryCount/nodeId/
metrics/cachedResult bookkeeping changes through its setters; every other
field is fixed at construction.
*/
package callctx
