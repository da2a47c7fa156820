// Package stage provides a linear, memoizing pipeline of named stages whose
// behaviour is chosen per instance rather than per pipeline.
//
// A Pipeline is assembled once with a Builder. Each stage is either
// configurable (it has a config prefix and any number of named variants) or
// fixed (it always runs its default transform). An Instance binds a pipeline
// to an input and keeps two pieces of private state:
// - the configuration store: which variant, with which args, runs at each stage
// - the result cache: a contiguous prefix of computed stage values
//
// Key operations:
// - Builder.Define/Variant: declare stages and register variants
// - Extend: clone a pipeline and append stages to it
// - Instance.Apply/Configure/Call: select a variant (invalidates that stage onward)
// - Instance.Run/RunStage: evaluate lazily, reusing cached predecessors
// - Instance.DryStageResult/DryStages/DryStagesConfigs: introspection
//
// An Instance is not safe for concurrent use; callers sharing one across
// goroutines must serialize configuration and evaluation themselves.
package stage
