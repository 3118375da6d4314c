package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type block struct {
	Phone string `json:"phone" validate:"required"`
}

type request struct {
	Name   string  `json:"name" validate:"required"`
	Blocks []block `json:"blocks" validate:"max=1,dive"`
}

func TestStructPasses(t *testing.T) {
	assert.NoError(t, Struct(request{Name: "x", Blocks: []block{{Phone: "1"}}}))
	assert.NoError(t, Struct(request{Name: "x"}))
}

func TestStructRequiredUsesJSONName(t *testing.T) {
	err := Struct(request{})
	require.Error(t, err)
	assert.Equal(t, "name is required", err.Error())
}

func TestStructNestedField(t *testing.T) {
	err := Struct(request{Name: "x", Blocks: []block{{}}})
	require.Error(t, err)
	assert.Equal(t, "blocks[0].phone is required", err.Error())
}

func TestStructSliceMax(t *testing.T) {
	err := Struct(request{Name: "x", Blocks: []block{{Phone: "1"}, {Phone: "2"}}})
	require.Error(t, err)
	assert.Equal(t, "blocks accepts at most 1 item(s)", err.Error())
}

func TestStructRejectsNonStruct(t *testing.T) {
	assert.Error(t, Struct(42))
}
