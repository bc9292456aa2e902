/*
Package breaker implements the per-endpoint circuit breaker described in
spec §4.4:

	CLOSED --[failures >= MaxFailures within Window]--> OPEN
	OPEN --[now - openedAt >= HalfOpenTimeout, on select]--> HALF_OPEN
	HALF_OPEN --[probe success]--> CLOSED
	HALF_OPEN --[probe failure]--> OPEN

Only one probe is admitted per half-open window: concurrent callers that
observe HALF_OPEN while a probe is already outstanding are told Allow() ==
false, matching "HALF_OPEN is selectable exactly once per probe window"
from spec §4.3.
*/
package breaker
