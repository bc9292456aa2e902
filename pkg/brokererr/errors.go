// Package brokererr implements the broker's error-kind taxonomy (spec §7)
// on top of gravitational/trace, so every error that crosses a call
// boundary carries a stack trace, a stable Kind, and a Retryable flag that
// survives a RESPONSE packet round-trip.
package brokererr

import (
	"errors"
	"fmt"

	"github.com/gravitational/trace"
)

// Kind is one of the fixed error kinds from spec §7. It is carried on the
// wire (types.ErrorDetail.Kind) and used by the caller boundary to decide
// whether a failure is retryable, independent of the underlying message.
type Kind string

const (
	KindServiceNotFound     Kind = "SERVICE_NOT_FOUND"
	KindServiceNotAvailable Kind = "SERVICE_NOT_AVAILABLE"
	KindRequestTimeout      Kind = "REQUEST_TIMEOUT"
	KindRequestRejected     Kind = "REQUEST_REJECTED"
	KindValidationError     Kind = "VALIDATION_ERROR"
	KindTransportError      Kind = "TRANSPORT_ERROR"
	KindNodeDisconnected    Kind = "NODE_DISCONNECTED"
	KindBrokerStopping      Kind = "BROKER_STOPPING"
	KindCustom              Kind = "CUSTOM"
)

// retryableKinds mirrors spec §7: timeouts, circuit rejections, transport
// failures and node disconnects are worth retrying against a different
// endpoint; validation, custom and not-found errors are not.
var retryableKinds = map[Kind]bool{
	KindRequestTimeout:   true,
	KindRequestRejected:  true,
	KindTransportError:   true,
	KindNodeDisconnected: true,
}

// Error is a broker error: a gravitational/trace-wrapped cause plus the
// kind tagging spec §7 requires. It implements error and unwraps to its
// trace-decorated cause so %+v / trace.DebugReport still produce a stack.
type Error struct {
	cause     error
	Kind      Kind
	Code      int
	Data      map[string]interface{}
	NodeID    string
	Retryable bool
}

func (e *Error) Error() string {
	return e.cause.Error()
}

// Unwrap exposes the trace-decorated cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Retry reports whether err (or any error in its chain) is retryable.
func Retry(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

func newError(kind Kind, code int, nodeID string, cause error) *Error {
	return &Error{
		cause:     cause,
		Kind:      kind,
		Code:      code,
		NodeID:    nodeID,
		Retryable: retryableKinds[kind],
	}
}

// ServiceNotFound reports that no action entry exists at all for the
// given name (spec §4.7 step 2).
func ServiceNotFound(action string) *Error {
	return newError(KindServiceNotFound, 404, "",
		trace.NotFound("action %q is not registered on any known node", action))
}

// ServiceNotAvailable reports that an action entry exists but has no
// endpoint left after filtering for availability/circuit state.
func ServiceNotAvailable(action string) *Error {
	return newError(KindServiceNotAvailable, 503, "",
		trace.ConnectionProblem(nil, "action %q has no available endpoint", action))
}

// RequestTimeout reports that a REQUEST packet's pending slot timed out
// waiting for a RESPONSE.
func RequestTimeout(action, nodeID string, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return newError(KindRequestTimeout, 504, nodeID,
		trace.Errorf("timed out calling %q on node %q: %s", action, nodeID, msg))
}

// RequestRejected reports a circuit-open rejection for an endpoint.
func RequestRejected(action, nodeID string) *Error {
	return newError(KindRequestRejected, 503, nodeID,
		trace.Errorf("circuit open for %q on node %q", action, nodeID))
}

// ValidationError wraps a Validator failure. Non-retryable.
func ValidationError(action string, cause error) *Error {
	return newError(KindValidationError, 422, "",
		trace.Wrap(cause, "parameters for %q failed validation", action))
}

// TransportError wraps a failure surfaced by the Transport pluggable.
func TransportError(cause error) *Error {
	return newError(KindTransportError, 502, "", trace.Wrap(cause, "transport error"))
}

// NodeDisconnected reports that the node hosting a pending request
// disconnected before it could respond.
func NodeDisconnected(nodeID string) *Error {
	return newError(KindNodeDisconnected, 503, nodeID,
		trace.Errorf("node %q disconnected", nodeID))
}

// BrokerStopping reports that Broker.Stop rejected all pending slots.
func BrokerStopping() *Error {
	return newError(KindBrokerStopping, 503, "", trace.Errorf("broker is stopping"))
}

// Custom wraps a user handler's returned/panicked error. Non-retryable
// unless the handler explicitly returned a retryable *Error itself.
func Custom(cause error) *Error {
	var be *Error
	if errors.As(cause, &be) {
		return be
	}
	return newError(KindCustom, 500, "", trace.Wrap(cause))
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
