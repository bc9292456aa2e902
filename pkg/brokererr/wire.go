package brokererr

import (
	"github.com/cuemby/relaybroker/pkg/types"
	"github.com/gravitational/trace"
)

// ToDetail renders err into the wire envelope carried by a RESPONSE
// packet (spec §7: "the handler boundary converts thrown/rejected values
// into a RESPONSE with success=false, error={...}").
func ToDetail(err error, localNodeID string) *types.ErrorDetail {
	be := Custom(err)
	if be.NodeID == "" {
		be.NodeID = localNodeID
	}
	return &types.ErrorDetail{
		Name:      string(be.Kind),
		Message:   be.Error(),
		Code:      be.Code,
		Kind:      string(be.Kind),
		Data:      be.Data,
		Stack:     trace.DebugReport(be),
		NodeID:    be.NodeID,
		Retryable: be.Retryable,
	}
}

// FromDetail rehydrates an error of the same Kind from a RESPONSE packet's
// error envelope, preserving the NodeID of the original thrower (spec §7:
// "the caller boundary rehydrates an error of the same kind").
func FromDetail(d *types.ErrorDetail) *Error {
	if d == nil {
		return newError(KindCustom, 500, "", trace.Errorf("unknown remote error"))
	}
	return &Error{
		cause:     trace.Errorf("%s", d.Message),
		Kind:      Kind(d.Kind),
		Code:      d.Code,
		Data:      d.Data,
		NodeID:    d.NodeID,
		Retryable: d.Retryable,
	}
}
