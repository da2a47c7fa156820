package stage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textPipeline builds parse -> transform -> format and counts the calls of
// every transform by stage name.
type textPipeline struct {
	p        *Pipeline
	calls    map[string]int
	inputs   int
	toUpcase Setter
	toLower  Setter
	asIs     Setter
	asPlain  Setter
}

func newTextPipeline() *textPipeline {
	tp := &textPipeline{calls: make(map[string]int)}
	counted := func(stage string, fn func(s string, args ...any) string) Transform {
		return func(_ context.Context, prev any, args ...any) (any, error) {
			tp.calls[stage]++
			return fn(prev.(string), args...), nil
		}
	}

	b := NewBuilder("text")
	b.MustDefine("parse", WithPrefix("parse_as"))
	b.MustDefine("transform", WithPrefix("to"))
	b.MustDefine("format", WithPrefix("format_as"))

	tp.asPlain = b.MustVariant("parse", "plain", counted("parse", func(s string, _ ...any) string { return s }))
	tp.toUpcase = b.MustVariant("transform", "upcase", counted("transform", func(s string, _ ...any) string { return strings.ToUpper(s) }))
	tp.toLower = b.MustVariant("transform", "lower", counted("transform", func(s string, _ ...any) string { return strings.ToLower(s) }))
	tp.asIs = b.MustVariant("format", "identity", counted("format", func(s string, _ ...any) string { return s }))
	b.MustVariant("format", "suffix", counted("format", func(s string, args ...any) string {
		for _, a := range args {
			s += a.(string)
		}
		return s
	}))

	tp.p = b.Build()
	return tp
}

func (tp *textPipeline) instance(input string, opts ...Option) *Instance {
	return New(tp.p, func(context.Context) (any, error) {
		tp.inputs++
		return input, nil
	}, opts...)
}

func TestInstance_RunConfigured(t *testing.T) {
	t.Parallel()

	tp := newTextPipeline()
	inst := tp.instance("abc")

	out, err := As[string](inst.Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs).Run(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)

	res, err := inst.DryStageResult("transform")
	require.NoError(t, err)
	assert.Equal(t, "ABC", res)
	assert.Equal(t, 3, inst.Cached())
}

func TestInstance_ApplyReturnsSameInstance(t *testing.T) {
	t.Parallel()

	tp := newTextPipeline()
	inst := tp.instance("abc")

	assert.Same(t, inst, inst.Apply(tp.toUpcase))
	got, err := inst.Configure("format", "identity")
	require.NoError(t, err)
	assert.Same(t, inst, got)
	got, err = inst.Call("parse_as_plain")
	require.NoError(t, err)
	assert.Same(t, inst, got)
	assert.Empty(t, tp.calls, "configuration must not invoke transforms")
	assert.Zero(t, tp.inputs)
}

func TestInstance_Unconfigured(t *testing.T) {
	t.Parallel()

	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(tp.asPlain)

	_, err := inst.Run(context.Background())
	require.ErrorIs(t, err, ErrUnconfiguredStage)
	assert.Contains(t, err.Error(), "transform")
	assert.Equal(t, 1, inst.Cached(), "stages before the unconfigured one stay cached")
}

func TestInstance_Memoization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)

	for range 3 {
		out, err := inst.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ABC", out)
	}

	assert.Equal(t, map[string]int{"parse": 1, "transform": 1, "format": 1}, tp.calls)
	assert.Equal(t, 1, tp.inputs)
}

func TestInstance_ReconfigureRecomputesSuffixOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	inst := tp.instance("aBc").Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)

	_, err := inst.Run(ctx)
	require.NoError(t, err)
	parsed, err := inst.Entry("parse")
	require.NoError(t, err)

	inst.Apply(tp.toLower)
	assert.Equal(t, 1, inst.Cached())

	out, err := inst.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
	assert.Equal(t, map[string]int{"parse": 1, "transform": 2, "format": 2}, tp.calls)
	assert.Equal(t, 1, tp.inputs)

	reparsed, err := inst.Entry("parse")
	require.NoError(t, err)
	assert.Equal(t, parsed.ID(), reparsed.ID(), "prefix entries are reused unchanged")
}

func TestInstance_ReconfigureSameVariantRecomputes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)

	_, err := inst.Run(ctx)
	require.NoError(t, err)

	inst.Apply(tp.toUpcase)
	out, err := inst.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "ABC", out)
	assert.Equal(t, 2, tp.calls["transform"])
}

func TestInstance_DryStageResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)

	_, err := inst.DryStageResult("format")
	require.ErrorIs(t, err, ErrUncachedStage, "before run")

	out, err := inst.Run(ctx)
	require.NoError(t, err)
	res, err := inst.DryStageResult("format")
	require.NoError(t, err)
	assert.Equal(t, out, res)

	inst.Apply(tp.toUpcase)
	_, err = inst.DryStageResult("format")
	require.ErrorIs(t, err, ErrUncachedStage, "after reconfiguration")
	assert.Contains(t, err.Error(), "format")

	res, err = inst.DryStageResult("parse")
	require.NoError(t, err)
	assert.Equal(t, "abc", res)

	_, err = inst.DryStageResult("nope")
	require.ErrorIs(t, err, ErrUnknownStage)
	assert.Contains(t, err.Error(), "parse, transform, format")
}

func TestInstance_RunStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(tp.asPlain).Apply(tp.toUpcase)

	out, err := inst.RunStage(ctx, "transform")
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
	assert.Equal(t, 2, inst.Cached())
	assert.Zero(t, tp.calls["format"])

	_, err = inst.RunStage(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestInstance_ArgsReplayed(t *testing.T) {
	t.Parallel()

	tp := newTextPipeline()
	suffix := []any{"-", "x"}
	inst, err := tp.instance("abc").Apply(tp.asPlain).Apply(tp.toUpcase).Configure("format", "suffix", suffix...)
	require.NoError(t, err)
	suffix[1] = "mutated"

	out, err := inst.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC-x", out)

	e, err := inst.Entry("format")
	require.NoError(t, err)
	assert.Equal(t, "suffix", e.Variant())
	assert.Equal(t, []any{"-", "x"}, e.Args())
}

func TestInstance_DryStagesConfigs(t *testing.T) {
	t.Parallel()

	tp := newTextPipeline()
	inst := tp.instance("abc")

	assert.Equal(t, []string{"parse", "transform", "format"}, inst.DryStages())
	assert.Equal(t, []*Summary{nil, nil, nil}, inst.DryStagesConfigs())

	_, err := inst.Call("format_as_suffix", "!")
	require.NoError(t, err)
	inst.Apply(tp.toUpcase)

	want := []*Summary{
		nil,
		{Stage: "transform", Variant: "upcase", Args: []any{}},
		{Stage: "format", Variant: "suffix", Args: []any{"!"}},
	}
	if diff := cmp.Diff(want, inst.DryStagesConfigs()); diff != "" {
		t.Fatalf("configs mismatch (-want +got):\n%s", diff)
	}
}

func TestInstance_FixedStage(t *testing.T) {
	t.Parallel()

	reverse := Map(func(_ context.Context, s string) string {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	})
	p := NewBuilder("reverse").MustDefine("reverse", Fixed(reverse)).Build()
	inst := New(p, Value("abc"))

	assert.Empty(t, p.Operations(), "fixed stages expose no configuration operation")
	assert.Equal(t, []*Summary{{Stage: "reverse", Variant: DefaultVariant, Args: []any{}}}, inst.DryStagesConfigs())

	out, err := inst.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cba", out)

	_, err = inst.Configure("reverse", DefaultVariant)
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestInstance_EmptyPipelineReturnsInput(t *testing.T) {
	t.Parallel()

	inst := New(NewBuilder("empty").Build(), Value(42))

	out, err := As[int](inst.Run(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestInstance_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tp := newTextPipeline()
	inst := tp.instance("abc")

	_, err := inst.Configure("transform", "reverse")
	assert.ErrorIs(t, err, ErrUnknownVariant)
	_, err = inst.Configure("nope", "upcase")
	assert.ErrorIs(t, err, ErrUnknownStage)
	_, err = inst.Call("to_reverse")
	assert.ErrorIs(t, err, ErrUnknownVariant)
	assert.NoError(t, inst.Err(), "returned errors are not sticky")
}

func TestInstance_ForeignSetterIsSticky(t *testing.T) {
	t.Parallel()

	other := NewBuilder("other").MustDefine("emit", WithPrefix("emit_as"))
	foreign := other.MustVariant("emit", "json", identity)

	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(foreign).Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)

	require.ErrorIs(t, inst.Err(), ErrUnknownStage)
	_, err := inst.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnknownStage)
	_, err = inst.RunStage(context.Background(), "parse")
	assert.ErrorIs(t, err, ErrUnknownStage)
	assert.Zero(t, tp.inputs)
}

func TestInstance_SpecializationUsesParentSetters(t *testing.T) {
	t.Parallel()

	tp := newTextPipeline()
	child := Extend(tp.p, "wrapped_text")
	child.MustDefine("wrap", WithPrefix("wrap_in"))
	brackets := child.MustVariant("wrap", "brackets", Map(func(_ context.Context, s string) string { return "[" + s + "]" }))

	inst := New(child.Build(), Value("abc")).
		Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs).Apply(brackets)

	out, err := inst.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "[ABC]", out)
	assert.Equal(t, []string{"parse", "transform", "format", "wrap"}, inst.DryStages())
}

func TestInstance_TransformErrorIsNotCached(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	fail := true
	b := NewBuilder("flaky")
	b.MustDefine("load", WithPrefix("load_from"))
	b.MustDefine("check", WithPrefix("check_with"))
	load := b.MustVariant("load", "memory", identity)
	check := b.MustVariant("check", "flaky", func(_ context.Context, prev any, _ ...any) (any, error) {
		if fail {
			return nil, boom
		}
		return prev, nil
	})
	inst := New(b.Build(), Value("x")).Apply(load).Apply(check)

	_, err := inst.Run(context.Background())
	require.ErrorIs(t, err, boom)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "check", stageErr.Stage)
	assert.Equal(t, 1, stageErr.Position)
	assert.Equal(t, "flaky", stageErr.Variant)
	assert.Equal(t, 1, inst.Cached())

	fail = false
	out, err := inst.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestInstance_InputError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no input")
	tp := newTextPipeline()
	inst := New(tp.p, func(context.Context) (any, error) { return nil, boom }).Apply(tp.asPlain)

	_, err := inst.Run(context.Background())
	require.ErrorIs(t, err, boom)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, -1, stageErr.Position)
	assert.Zero(t, inst.Cached())
}

func TestInstance_InvalidateAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)

	_, err := inst.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, inst.Invalidate("format"))
	assert.Equal(t, 2, inst.Cached())
	assert.ErrorIs(t, inst.Invalidate("nope"), ErrUnknownStage)

	inst.Reset()
	assert.Zero(t, inst.Cached())
	assert.Len(t, inst.DryStagesConfigs(), 3)

	_, err = inst.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tp.inputs)
}

func TestInstance_InstancesAreIndependent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	upper := tp.instance("abc").Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)
	lower := tp.instance("ABC").Apply(tp.asPlain).Apply(tp.toLower).Apply(tp.asIs)

	u, err := upper.Run(ctx)
	require.NoError(t, err)
	l, err := lower.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "ABC", u)
	assert.Equal(t, "abc", l)
	assert.NotEqual(t, upper.ID(), lower.ID())
}

func TestInstance_ArgsCannotBeChangedAfterConfiguration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := newTextPipeline()
	var seen []any
	spy := &argsExtension{BaseExtension: NewBaseExtension("args"), seen: &seen}
	inst := New(tp.p, Value("abc"), WithExtension(spy)).Apply(tp.asPlain).Apply(tp.toUpcase)
	_, err := inst.Configure("format", "suffix", "!")
	require.NoError(t, err)

	out, err := inst.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC!", out)

	e, err := inst.Entry("format")
	require.NoError(t, err)
	e.Args()[0] = "?"
	seen[0] = "?"

	inst.Reset()
	out, err = inst.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABC!", out)

	e, err = inst.Entry("format")
	require.NoError(t, err)
	assert.Equal(t, []any{"!"}, e.Args())
	assert.Equal(t, []any{"!"}, inst.DryStagesConfigs()[2].Args)
}

type argsExtension struct {
	BaseExtension
	seen *[]any
}

func (e *argsExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	if op.Kind == OpTransform && op.Stage == "format" {
		*e.seen = op.Args
	}
	return next()
}

func TestInstance_TransformMutatingItsArgs(t *testing.T) {
	t.Parallel()

	b := NewBuilder("greedy").MustDefine("emit", WithPrefix("emit_as"))
	greedy := b.MustVariant("emit", "greedy", func(_ context.Context, prev any, args ...any) (any, error) {
		out := prev.(string) + args[0].(string)
		args[0] = "changed"
		return out, nil
	})
	inst := New(b.Build(), Value("a")).Apply(greedy, "b")

	for range 2 {
		out, err := inst.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ab", out)
		inst.Reset()
	}
}

func TestInstance_ModifiedDuringRun(t *testing.T) {
	t.Parallel()

	var inst *Instance
	b := NewBuilder("reentrant")
	b.MustDefine("a", WithPrefix("a_as"))
	b.MustDefine("b", WithPrefix("b_as"))
	first := b.MustVariant("a", "same", identity)
	resetting := b.MustVariant("b", "resetting", func(_ context.Context, prev any, _ ...any) (any, error) {
		inst.Reset()
		return prev, nil
	})
	inst = New(b.Build(), Value("x")).Apply(first).Apply(resetting)

	require.NotPanics(t, func() {
		_, err := inst.Run(context.Background())
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})
	assert.Zero(t, inst.Cached())
}

func TestInstance_ResetClearsApplyErrors(t *testing.T) {
	t.Parallel()

	other := NewBuilder("other").MustDefine("emit", WithPrefix("emit_as"))
	foreign := other.MustVariant("emit", "json", identity)

	tp := newTextPipeline()
	inst := tp.instance("abc").Apply(foreign).Apply(tp.asPlain).Apply(tp.toUpcase).Apply(tp.asIs)
	require.Error(t, inst.Err())

	inst.Reset()
	require.NoError(t, inst.Err())

	out, err := inst.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}
