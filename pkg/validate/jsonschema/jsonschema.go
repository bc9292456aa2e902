// Package jsonschema is the default Validator: JSON Schema compiled with
// santhosh-tekuri/jsonschema/v6.
package jsonschema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	js "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/cuemby/relaybroker/pkg/validate"
)

// Validator implements validate.Validator.
type Validator struct{}

// New returns a ready-to-use Validator; it carries no state — each
// Compile call gets its own compiler so unrelated schemas never share
// resource ids.
func New() *Validator {
	return &Validator{}
}

func (Validator) Compile(schema []byte) (validate.Checker, error) {
	var doc interface{}
	if err := json.Unmarshal(schema, &doc); err != nil {
		return nil, err
	}

	id := "mem://schema/" + fingerprint(schema)
	compiler := js.NewCompiler()
	if err := compiler.AddResource(id, doc); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return nil, err
	}

	return func(params interface{}) []error {
		if err := compiled.Validate(params); err != nil {
			var ve *js.ValidationError
			if errors.As(err, &ve) {
				return flatten(ve)
			}
			return []error{err}
		}
		return nil
	}, nil
}

// fingerprint gives each distinct schema body a stable resource id so
// repeated Compile calls for the same bytes don't collide across actions.
func fingerprint(schema []byte) string {
	sum := sha256.Sum256(schema)
	return hex.EncodeToString(sum[:8])
}

func flatten(ve *js.ValidationError) []error {
	var out []error
	var walk func(*js.ValidationError)
	walk = func(e *js.ValidationError) {
		out = append(out, errors.New(e.Error()))
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}
