package toolexecutor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// ToolDefinition defines a tool's metadata and handler. ComputeHeavy marks
// tools that must not run concurrently with another invocation sharing their
// resource (for example a shell session); the dispatcher serializes them.
type ToolDefinition struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Parameters   []ToolParameter        `json:"parameters,omitempty"`
	InputSchema  map[string]interface{} `json:"input_schema,omitempty"` // takes precedence over Parameters
	Handler      ToolHandler            `json:"-"`
	ComputeHeavy bool                   `json:"compute_heavy,omitempty"`
}

// Descriptor is the vendor-neutral tool declaration handed to a model call.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// Registry stores tool definitions with their compiled input schemas
type Registry struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	docs    map[string]map[string]interface{} // raw schema documents for declarations
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
		docs:    make(map[string]map[string]interface{}),
		logger:  logger,
	}
}

// Register adds a new tool. The name must be unused and the input schema must
// compile; the definition is immutable afterwards.
func (r *Registry) Register(def ToolDefinition) error {
	if err := validateToolDefinition(def); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	doc := def.InputSchema
	if doc == nil {
		doc = schemaFromParameters(def.Parameters)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema
	r.docs[def.Name] = doc

	r.logger.Info().Str("tool", def.Name).Bool("compute_heavy", def.ComputeHeavy).Msg("Tool registered")

	return nil
}

// Unregister removes a tool
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tools, name)
	delete(r.schemas, name)
	delete(r.docs, name)

	r.logger.Info().Str("tool", name).Msg("Tool unregistered")
}

// Get returns a tool definition by name, or nil
func (r *Registry) Get(name string) *ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tools[name]
}

// List returns all registered tool names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Descriptors returns vendor-neutral declarations for all registered tools,
// sorted by name for a stable declaration order across calls.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]Descriptor, 0, len(r.tools))
	for name, def := range r.tools {
		descriptors = append(descriptors, Descriptor{
			Name:        name,
			Description: def.Description,
			InputSchema: r.docs[name],
		})
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })

	return descriptors
}

// validateArguments checks call arguments against the tool's compiled schema
func (r *Registry) validateArguments(name string, args map[string]interface{}) error {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()

	if schema == nil {
		return nil
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	if !result.Valid() {
		violations := []string{}
		for _, verr := range result.Errors() {
			violations = append(violations, verr.String())
		}
		return fmt.Errorf("%w: %v", ErrInvalidArguments, violations)
	}

	return nil
}

// validateToolDefinition validates a tool definition
func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}

	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// schemaFromParameters assembles a JSON Schema document from a declared
// parameter list
func schemaFromParameters(params []ToolParameter) map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for _, param := range params {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}

		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	doc := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}

	if len(required) > 0 {
		doc["required"] = required
	}

	return doc
}
