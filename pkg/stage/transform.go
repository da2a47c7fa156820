package stage

import (
	"context"
	"reflect"
)

// Transform computes a stage value from the previous stage's value. args are
// the values captured when the variant was selected on the instance.
type Transform func(ctx context.Context, prev any, args ...any) (any, error)

// InputFunc supplies the root value consumed by the first stage.
type InputFunc func(ctx context.Context) (any, error)

// Value returns an InputFunc that always yields v.
func Value(v any) InputFunc {
	return func(context.Context) (any, error) {
		return v, nil
	}
}

// Map adapts a pure typed function. Configuration args are ignored.
func Map[In, Out any](onSuccess func(ctx context.Context, in In) Out) Transform {
	return func(ctx context.Context, prev any, _ ...any) (any, error) {
		in, err := As[In](prev, nil)
		if err != nil {
			return nil, err
		}
		return onSuccess(ctx, in), nil
	}
}

// Try adapts a typed function that may fail. Configuration args are ignored.
func Try[In, Out any](onTryExecute func(ctx context.Context, in In) (Out, error)) Transform {
	return func(ctx context.Context, prev any, _ ...any) (any, error) {
		in, err := As[In](prev, nil)
		if err != nil {
			return nil, err
		}
		return onTryExecute(ctx, in)
	}
}

// As converts a stage value to T. It passes err through unchanged, so it can
// wrap Run directly:
//
//	s, err := stage.As[string](inst.Run(ctx))
func As[T any](value any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		return zero, &TypeError{Expected: reflect.TypeFor[T]().String(), Got: value}
	}
	return typed, nil
}
