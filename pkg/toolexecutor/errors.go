package toolexecutor

import "errors"

var (
	// ErrToolNotFound indicates the requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool indicates a registration with an already-taken name.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidDefinition indicates a tool definition that fails validation.
	ErrInvalidDefinition = errors.New("invalid tool definition")

	// ErrInvalidSchema indicates an input schema that does not compile.
	ErrInvalidSchema = errors.New("invalid input schema")

	// ErrInvalidArguments indicates call arguments rejected by the tool's schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)
