package stage

import (
	"errors"
	"slices"
	"sort"
)

// DefaultVariant names the configuration synthesized for fixed stages.
const DefaultVariant = "default"

// Definition describes one stage of a pipeline.
type Definition struct {
	Name         string
	Position     int
	Configurable bool
	Prefix       string

	defaultTransform Transform
}

// HasDefault reports whether the stage carries a default transform.
func (d Definition) HasDefault() bool {
	return d.defaultTransform != nil
}

type variantKey struct {
	stage   string
	variant string
}

type variantDef struct {
	stage     string
	variant   string
	operation string
	transform Transform
}

// Pipeline is an immutable, ordered list of stages with their variants.
// Pipelines are shared read-only by every Instance built from them.
type Pipeline struct {
	name       string
	parent     *Pipeline
	stages     []Definition
	variants   map[variantKey]variantDef
	operations map[string]variantKey
}

func (p *Pipeline) Name() string {
	return p.name
}

// Parent returns the pipeline this one was extended from, or nil.
func (p *Pipeline) Parent() *Pipeline {
	return p.parent
}

func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Stages returns the stage definitions in evaluation order, inherited stages
// first.
func (p *Pipeline) Stages() []Definition {
	return slices.Clone(p.stages)
}

func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, d := range p.stages {
		names[i] = d.Name
	}
	return names
}

func (p *Pipeline) Lookup(name string) (Definition, bool) {
	i := p.position(name)
	if i < 0 {
		return Definition{}, false
	}
	return p.stages[i], true
}

// Variants returns the sorted variant names registered for a stage.
func (p *Pipeline) Variants(stage string) []string {
	var names []string
	for k := range p.variants {
		if k.stage == stage {
			names = append(names, k.variant)
		}
	}
	sort.Strings(names)
	return names
}

// Operations returns the sorted names of all configuration operations
// ("<prefix>_<variant>") this pipeline exposes.
func (p *Pipeline) Operations() []string {
	names := make([]string, 0, len(p.operations))
	for name := range p.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Setter returns the configuration handle for a registered variant.
func (p *Pipeline) Setter(stage, variant string) (Setter, error) {
	if p.position(stage) < 0 {
		return Setter{}, unknownStageError(stage, p.StageNames())
	}
	v, ok := p.variants[variantKey{stage: stage, variant: variant}]
	if !ok {
		return Setter{}, errorf(ErrUnknownVariant, "%q for stage %s, available variants %v", variant, stage, p.Variants(stage))
	}
	return Setter{stage: v.stage, variant: v.variant, operation: v.operation}, nil
}

func (p *Pipeline) position(name string) int {
	return slices.IndexFunc(p.stages, func(d Definition) bool { return d.Name == name })
}

// Setter selects one variant of one stage on an Instance. It is the typed
// stand-in for a generated "<prefix>_<variant>" configuration method.
type Setter struct {
	stage     string
	variant   string
	operation string
}

func (s Setter) Stage() string {
	return s.stage
}

func (s Setter) Variant() string {
	return s.variant
}

// Name returns the conventional operation name, e.g. "to_csv".
func (s Setter) Name() string {
	return s.operation
}

// StageOption modifies a stage definition.
type StageOption func(*stageSpec)

type stageSpec struct {
	prefix       string
	hasPrefix    bool
	configurable bool
	transform    Transform
}

// WithPrefix declares the config prefix of a configurable stage.
func WithPrefix(prefix string) StageOption {
	return func(s *stageSpec) {
		s.prefix = prefix
		s.hasPrefix = true
	}
}

// Fixed declares a non-configurable stage that always runs t.
func Fixed(t Transform) StageOption {
	return func(s *stageSpec) {
		s.configurable = false
		s.transform = t
	}
}

// VariantOption modifies a variant registration.
type VariantOption func(*variantSpec)

type variantSpec struct {
	block Transform
}

// WithBlock supplies the transform as a trailing block. It is an alternative
// to the explicit transform argument of Builder.Variant, never an addition.
func WithBlock(t Transform) VariantOption {
	return func(s *variantSpec) {
		s.block = t
	}
}

// Builder assembles a Pipeline. A Builder is not safe for concurrent use.
type Builder struct {
	p    *Pipeline
	errs []error
}

// NewBuilder starts an empty pipeline.
func NewBuilder(name string) *Builder {
	return &Builder{
		p: &Pipeline{
			name:       name,
			variants:   make(map[variantKey]variantDef),
			operations: make(map[string]variantKey),
		},
	}
}

// Extend starts a specialization of parent: the inherited stages and variants
// are kept in order and new stages are appended after them.
func Extend(parent *Pipeline, name string) *Builder {
	b := NewBuilder(name)
	b.p.parent = parent
	b.p.stages = slices.Clone(parent.stages)
	for k, v := range parent.variants {
		b.p.variants[k] = v
	}
	for k, v := range parent.operations {
		b.p.operations[k] = v
	}
	return b
}

// Define appends a stage at the next position.
func (b *Builder) Define(name string, opts ...StageOption) error {
	spec := stageSpec{configurable: true}
	for _, opt := range opts {
		opt(&spec)
	}

	if err := validateStage(b.p, name, spec); err != nil {
		b.errs = append(b.errs, err)
		return err
	}

	b.p.stages = append(b.p.stages, Definition{
		Name:             name,
		Position:         len(b.p.stages),
		Configurable:     spec.configurable,
		Prefix:           spec.prefix,
		defaultTransform: spec.transform,
	})
	return nil
}

func validateStage(p *Pipeline, name string, spec stageSpec) error {
	switch {
	case name == "":
		return definitionError("stage name is empty")
	case p.position(name) >= 0:
		return definitionError("stage %s already defined", name)
	case !spec.configurable && spec.transform == nil:
		return definitionError("no default implementation for non configurable stage %s given", name)
	case !spec.configurable && spec.hasPrefix:
		return definitionError("config prefix for non configurable stage %s given", name)
	case spec.configurable && (!spec.hasPrefix || spec.prefix == ""):
		return definitionError("config prefix for configurable stage %s missing", name)
	}
	return nil
}

// Variant registers a named transform for a configurable stage and returns
// the Setter instances use to select it. Registering the same variant twice
// replaces its transform.
func (b *Builder) Variant(stage, variant string, t Transform, opts ...VariantOption) (Setter, error) {
	var spec variantSpec
	for _, opt := range opts {
		opt(&spec)
	}

	s, err := b.registerVariant(stage, variant, t, spec)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return s, err
}

func (b *Builder) registerVariant(stage, variant string, t Transform, spec variantSpec) (Setter, error) {
	pos := b.p.position(stage)
	if pos < 0 {
		return Setter{}, unknownStageError(stage, b.p.StageNames())
	}
	def := b.p.stages[pos]
	if !def.Configurable {
		return Setter{}, definitionError("stage %s is not configurable", stage)
	}
	if variant == "" {
		return Setter{}, definitionError("variant name for stage %s is empty", stage)
	}
	if t != nil && spec.block != nil {
		return Setter{}, errorf(ErrDuplicateTransformDefinition, "variant %s of stage %s", variant, stage)
	}
	if t == nil {
		t = spec.block
	}
	if t == nil {
		return Setter{}, errorf(ErrMissingTransform, "variant %s of stage %s", variant, stage)
	}

	key := variantKey{stage: stage, variant: variant}
	operation := def.Prefix + "_" + variant
	if owner, taken := b.p.operations[operation]; taken && owner != key {
		return Setter{}, definitionError("operation %s already selects variant %s of stage %s", operation, owner.variant, owner.stage)
	}

	b.p.variants[key] = variantDef{stage: stage, variant: variant, operation: operation, transform: t}
	b.p.operations[operation] = key
	return Setter{stage: stage, variant: variant, operation: operation}, nil
}

// MustDefine is like Define but panics on error. It simplifies assembling
// pipelines in package-level variables.
func (b *Builder) MustDefine(name string, opts ...StageOption) *Builder {
	if err := b.Define(name, opts...); err != nil {
		panic(err)
	}
	return b
}

// MustVariant is like Variant but panics on error.
func (b *Builder) MustVariant(stage, variant string, t Transform, opts ...VariantOption) Setter {
	s, err := b.Variant(stage, variant, t, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Err returns every definition error seen so far, joined.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Build snapshots the pipeline. The builder may keep registering variants
// afterwards; already built pipelines are not affected.
func (b *Builder) Build() *Pipeline {
	p := &Pipeline{
		name:       b.p.name,
		parent:     b.p.parent,
		stages:     slices.Clone(b.p.stages),
		variants:   make(map[variantKey]variantDef, len(b.p.variants)),
		operations: make(map[string]variantKey, len(b.p.operations)),
	}
	for k, v := range b.p.variants {
		p.variants[k] = v
	}
	for k, v := range b.p.operations {
		p.operations[k] = v
	}
	return p
}
