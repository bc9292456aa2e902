package jsonschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addSchema = `{
	"type": "object",
	"required": ["a", "b"],
	"properties": {
		"a": {"type": "number"},
		"b": {"type": "number"}
	}
}`

func TestCompileValidParams(t *testing.T) {
	v := New()
	check, err := v.Compile([]byte(addSchema))
	require.NoError(t, err)

	errs := check(map[string]interface{}{"a": 1.0, "b": 2.0})
	assert.Empty(t, errs)
}

func TestCompileRejectsMissingField(t *testing.T) {
	v := New()
	check, err := v.Compile([]byte(addSchema))
	require.NoError(t, err)

	errs := check(map[string]interface{}{"a": 1.0})
	assert.NotEmpty(t, errs)
}

func TestCompileRejectsWrongType(t *testing.T) {
	v := New()
	check, err := v.Compile([]byte(addSchema))
	require.NoError(t, err)

	errs := check(map[string]interface{}{"a": "not a number", "b": 2.0})
	assert.NotEmpty(t, errs)
}

func TestCompileInvalidSchemaBytes(t *testing.T) {
	v := New()
	_, err := v.Compile([]byte("not json"))
	assert.Error(t, err)
}
