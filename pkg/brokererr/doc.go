// Package brokererr is documented in errors.go; this file only exists to
// hold the package-level example below.
//
// Example round trip across a RESPONSE packet:
//
//	err := brokererr.ServiceNotAvailable("math.add")
//	detail := brokererr.ToDetail(err, localNodeID)
//	// ... detail is JSON-encoded into a RESPONSE packet, sent, decoded ...
//	rehydrated := brokererr.FromDetail(detail)
//	brokererr.Retry(rehydrated) // == false
package brokererr
