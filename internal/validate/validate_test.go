package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBad = errors.New("bad input")

type sample struct {
	Kind  string  `json:"kind" validate:"required,oneof=a b"`
	Label *string `json:"label,omitempty" validate:"omitempty,oneof=x y"`
}

func TestStruct(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, Struct(errBad, sample{Kind: "a"}))
	})

	t.Run("Invalid enum reports json field names", func(t *testing.T) {
		z := "z"
		err := Struct(errBad, sample{Kind: "c", Label: &z})
		assert.ErrorIs(t, err, errBad)
		assert.EqualError(t, err, "bad input: kind=oneof, label=oneof")
	})

	t.Run("Missing required", func(t *testing.T) {
		err := Struct(errBad, &sample{})
		assert.EqualError(t, err, "bad input: kind=required")
	})
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var(errBad, "status", "a", "required,oneof=a b"))
	assert.EqualError(t, Var(errBad, "status", "q", "required,oneof=a b"), "bad input: status=q")
}
