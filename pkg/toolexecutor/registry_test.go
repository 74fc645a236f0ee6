package toolexecutor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func echoDefinition(name string) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: "Echo tool",
		Parameters: []ToolParameter{
			{
				Name:        "message",
				Type:        "string",
				Description: "Message to echo",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args["message"], nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := testRegistry()

	err := reg.Register(echoDefinition("echo"))
	assert.NoError(t, err)

	tool := reg.Get("echo")
	require.NotNil(t, tool)
	assert.Equal(t, "echo", tool.Name)
	assert.False(t, tool.ComputeHeavy)
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := testRegistry()

	require.NoError(t, reg.Register(echoDefinition("echo")))

	err := reg.Register(echoDefinition("echo"))
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegistry_Register_InvalidDefinition(t *testing.T) {
	reg := testRegistry()

	tests := []struct {
		name string
		def  ToolDefinition
	}{
		{
			name: "empty name",
			def: ToolDefinition{
				Description: "Test",
				Handler:     func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil },
			},
		},
		{
			name: "empty description",
			def: ToolDefinition{
				Name:    "test",
				Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil },
			},
		},
		{
			name: "nil handler",
			def: ToolDefinition{
				Name:        "test",
				Description: "Test",
			},
		},
		{
			name: "invalid parameter type",
			def: ToolDefinition{
				Name:        "test",
				Description: "Test",
				Parameters: []ToolParameter{
					{Name: "x", Type: "decimal", Description: "x"},
				},
				Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.def)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestRegistry_Register_RawSchema(t *testing.T) {
	reg := testRegistry()

	def := ToolDefinition{
		Name:        "typed",
		Description: "Tool with an externally derived schema",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"count": map[string]interface{}{"type": "integer"},
			},
			"required": []string{"count"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return args["count"], nil
		},
	}

	require.NoError(t, reg.Register(def))

	t.Run("accepts valid arguments", func(t *testing.T) {
		err := reg.validateArguments("typed", map[string]interface{}{"count": 3})
		assert.NoError(t, err)
	})

	t.Run("rejects missing required argument", func(t *testing.T) {
		err := reg.validateArguments("typed", map[string]interface{}{})
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("rejects wrong type", func(t *testing.T) {
		err := reg.validateArguments("typed", map[string]interface{}{"count": "three"})
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})
}

func TestRegistry_Unregister(t *testing.T) {
	reg := testRegistry()

	require.NoError(t, reg.Register(echoDefinition("echo")))
	assert.Equal(t, 1, reg.Count())

	reg.Unregister("echo")
	assert.Nil(t, reg.Get("echo"))
	assert.Equal(t, 0, reg.Count())
}

func TestRegistry_List(t *testing.T) {
	reg := testRegistry()

	require.NoError(t, reg.Register(echoDefinition("zeta")))
	require.NoError(t, reg.Register(echoDefinition("alpha")))

	assert.Equal(t, []string{"alpha", "zeta"}, reg.List())
}

func TestRegistry_Descriptors(t *testing.T) {
	reg := testRegistry()

	def := echoDefinition("echo")
	def.ComputeHeavy = true
	require.NoError(t, reg.Register(def))
	require.NoError(t, reg.Register(echoDefinition("another")))

	descriptors := reg.Descriptors()
	require.Len(t, descriptors, 2)

	// Sorted by name for a stable declaration order
	assert.Equal(t, "another", descriptors[0].Name)
	assert.Equal(t, "echo", descriptors[1].Name)

	schema := descriptors[1].InputSchema
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema["type"])

	properties, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, properties, "message")
}
