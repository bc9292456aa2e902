// Package validate defines the Validator pluggable contract of spec §6:
// "compile(schema) -> checker; checker(params) returns true or a list of
// errors. Compiled once at action registration."
package validate

// Checker validates one set of action params against the schema it was
// compiled from. It returns a nil slice on success.
type Checker func(params interface{}) []error

// Validator compiles an opaque schema (pkg/types.ActionDescriptor.Schema)
// into a Checker.
type Validator interface {
	Compile(schema []byte) (Checker, error)
}
