package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// Instance evaluates a Pipeline for one input. It owns the configuration
// store and the result cache; neither is shared with other instances.
type Instance struct {
	id         uuid.UUID
	pipeline   *Pipeline
	input      InputFunc
	configs    configStore
	cache      resultCache
	extensions []Extension
	err        error
}

// Option configures an Instance.
type Option func(*Instance)

// WithExtension registers an extension. Extensions wrap invocations in
// registration order, the first registered being the outermost.
func WithExtension(ext Extension) Option {
	return func(i *Instance) {
		i.extensions = append(i.extensions, ext)
	}
}

// WithLogger registers a LoggingExtension writing to logger.
func WithLogger(logger *slog.Logger) Option {
	return WithExtension(NewLoggingExtension(logger))
}

// WithID overrides the generated instance ID.
func WithID(id uuid.UUID) Option {
	return func(i *Instance) {
		i.id = id
	}
}

// New creates an unconfigured instance of p reading its root value from input.
func New(p *Pipeline, input InputFunc, opts ...Option) *Instance {
	i := &Instance{
		id:       uuid.New(),
		pipeline: p,
		input:    input,
		configs:  newConfigStore(p),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Instance) ID() uuid.UUID {
	return i.id
}

func (i *Instance) Pipeline() *Pipeline {
	return i.pipeline
}

// Err returns the errors recorded by failed Apply calls. They are kept until
// Reset.
func (i *Instance) Err() error {
	return i.err
}

// Apply selects the variant behind s with the given args and returns the
// instance for chaining. A setter that does not belong to this instance's
// pipeline is recorded in Err and reported by the next evaluation.
func (i *Instance) Apply(s Setter, args ...any) *Instance {
	v, err := i.variant(s.stage, s.variant)
	if err != nil {
		i.err = errors.Join(i.err, err)
		return i
	}
	i.configure(v, args)
	return i
}

// Configure selects a variant by stage and variant name.
func (i *Instance) Configure(stage, variant string, args ...any) (*Instance, error) {
	v, err := i.variant(stage, variant)
	if err != nil {
		return i, err
	}
	i.configure(v, args)
	return i, nil
}

// Call selects a variant by its operation name, e.g. "to_csv".
func (i *Instance) Call(operation string, args ...any) (*Instance, error) {
	key, ok := i.pipeline.operations[operation]
	if !ok {
		return i, errorf(ErrUnknownVariant, "operation %q, available operations %v", operation, i.pipeline.Operations())
	}
	i.configure(i.pipeline.variants[key], args)
	return i, nil
}

func (i *Instance) variant(stage, variant string) (variantDef, error) {
	if _, err := i.pipeline.Setter(stage, variant); err != nil {
		return variantDef{}, err
	}
	return i.pipeline.variants[variantKey{stage: stage, variant: variant}], nil
}

func (i *Instance) configure(v variantDef, args []any) {
	pos := i.pipeline.position(v.stage)
	cfg := &Configuration{
		Stage:     v.stage,
		Position:  pos,
		Variant:   v.variant,
		Args:      slices.Clone(args),
		transform: v.transform,
	}
	if cfg.Args == nil {
		cfg.Args = []any{}
	}
	i.configs.Set(cfg)

	for _, ext := range i.extensions {
		ext.OnConfigure(i, *cfg.summary())
	}
	i.invalidateFrom(pos)
}

func (i *Instance) invalidateFrom(position int) {
	dropped := i.cache.Truncate(position)
	for _, ext := range i.extensions {
		ext.OnInvalidate(i, position, dropped)
	}
}

// Invalidate drops the cached values of the named stage and every stage
// after it.
func (i *Instance) Invalidate(name string) error {
	pos, err := i.positionOf(name)
	if err != nil {
		return err
	}
	i.invalidateFrom(pos)
	return nil
}

// Reset drops every cached value and the errors recorded by Apply.
// Configurations are kept.
func (i *Instance) Reset() {
	i.err = nil
	i.invalidateFrom(0)
}

// Run evaluates the last stage. With no stages it returns the input.
func (i *Instance) Run(ctx context.Context) (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	return i.runStage(ctx, i.pipeline.Len()-1)
}

// RunStage evaluates the named stage, computing only what is not cached.
func (i *Instance) RunStage(ctx context.Context, name string) (any, error) {
	if i.err != nil {
		return nil, i.err
	}
	pos, err := i.positionOf(name)
	if err != nil {
		return nil, err
	}
	return i.runStage(ctx, pos)
}

func (i *Instance) runStage(ctx context.Context, position int) (any, error) {
	if position < 0 {
		return i.invoke(ctx, &Operation{Kind: OpInput, Instance: i, Position: -1}, func() (any, error) {
			return i.input(ctx)
		})
	}

	if e, ok := i.cache.Load(position); ok {
		return e.value, nil
	}

	prev, err := i.runStage(ctx, position-1)
	if err != nil {
		return nil, err
	}

	cfg, ok := i.configs.At(position)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnconfiguredStage, i.pipeline.stages[position].Name)
	}

	op := &Operation{
		Kind:     OpTransform,
		Instance: i,
		Stage:    cfg.Stage,
		Position: position,
		Variant:  cfg.Variant,
		Args:     slices.Clone(cfg.Args),
	}
	value, err := i.invoke(ctx, op, func() (any, error) {
		return cfg.transform(ctx, prev, slices.Clone(cfg.Args)...)
	})
	if err != nil {
		return nil, err
	}

	// a transform or extension reconfigured or reset this instance mid-run
	if position != i.cache.Len() {
		return nil, fmt.Errorf("%w: stage %s computed after the cache was truncated to %d", ErrConcurrentModification, cfg.Stage, i.cache.Len())
	}
	i.cache.Append(position, newEntry(cfg, value))
	return value, nil
}

func (i *Instance) invoke(ctx context.Context, op *Operation, call func() (any, error)) (any, error) {
	next := call
	for n := len(i.extensions) - 1; n >= 0; n-- {
		ext := i.extensions[n]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}

	value, err := next()
	if err != nil {
		return nil, &StageError{Stage: op.Stage, Position: op.Position, Variant: op.Variant, Cause: err}
	}
	return value, nil
}

// DryStageResult returns the cached value of a stage without computing it.
func (i *Instance) DryStageResult(name string) (any, error) {
	e, err := i.Entry(name)
	if err != nil {
		return nil, err
	}
	return e.value, nil
}

// Entry returns the cached entry of a stage without computing it.
func (i *Instance) Entry(name string) (Entry, error) {
	pos, err := i.positionOf(name)
	if err != nil {
		return Entry{}, err
	}
	e, ok := i.cache.Load(pos)
	if !ok {
		return Entry{}, fmt.Errorf("%w %s", ErrUncachedStage, name)
	}
	return e, nil
}

// DryStages returns the stage names in evaluation order.
func (i *Instance) DryStages() []string {
	return i.pipeline.StageNames()
}

// DryStagesConfigs returns one summary per stage position. Unconfigured
// positions are nil.
func (i *Instance) DryStagesConfigs() []*Summary {
	return i.configs.Summaries()
}

// Cached reports how many leading stages currently hold a value.
func (i *Instance) Cached() int {
	return i.cache.Len()
}

func (i *Instance) positionOf(name string) (int, error) {
	pos := i.pipeline.position(name)
	if pos < 0 {
		return -1, unknownStageError(name, i.pipeline.StageNames())
	}
	return pos, nil
}
