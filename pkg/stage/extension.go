package stage

import "context"

// Extension hooks into the lifecycle of an Instance.
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Wrap intercepts every input or transform invocation. It must call next
	// at most once and return its result or an error.
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnConfigure runs after a configuration was written, before invalidation.
	OnConfigure(inst *Instance, cfg Summary)

	// OnInvalidate runs after cached values from position onward were dropped.
	OnInvalidate(inst *Instance, position, dropped int)
}

// BaseExtension provides no-op implementations of Extension.
type BaseExtension struct {
	name string
}

func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnConfigure(inst *Instance, cfg Summary) {
}

func (e *BaseExtension) OnInvalidate(inst *Instance, position, dropped int) {
}

// Operation describes the invocation being wrapped.
type Operation struct {
	Kind     OperationKind
	Instance *Instance
	Stage    string
	Position int
	Variant  string
	Args     []any
}

type OperationKind string

const (
	// OpInput indicates a call to the instance's input
	OpInput OperationKind = "input"
	// OpTransform indicates a stage transform invocation
	OpTransform OperationKind = "transform"
)
