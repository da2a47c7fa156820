package stage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidStageDefinition       = errors.New("invalid stage definition")
	ErrDuplicateTransformDefinition = errors.New("transform and block given, only one is allowed at a time")
	ErrMissingTransform             = errors.New("no transform given")
	ErrUnconfiguredStage            = errors.New("unconfigured stage")
	ErrUnknownStage                 = errors.New("unknown stage")
	ErrUnknownVariant               = errors.New("unknown variant")
	ErrUncachedStage                = errors.New("uncached stage")
	ErrConcurrentModification       = errors.New("instance modified during evaluation")
)

// StageError reports a failure raised by an input or transform while
// evaluating a stage. Position is -1 for the input.
type StageError struct {
	Stage    string
	Position int
	Variant  string
	Cause    error
}

func (e *StageError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("input failed: %v", e.Cause)
	}
	return fmt.Sprintf("stage %s (#%d, variant %s) failed: %v", e.Stage, e.Position, e.Variant, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// TypeError is returned by typed transforms when the incoming value does not
// have the expected type.
type TypeError struct {
	Expected string
	Got      any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type assertion error: expected %s, got %T (value: %v)", e.Expected, e.Got, e.Got)
}

func definitionError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStageDefinition, fmt.Sprintf(format, args...))
}

func unknownStageError(name string, available []string) error {
	return fmt.Errorf("%w %q, available stages [%s]", ErrUnknownStage, name, strings.Join(available, ", "))
}

func errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w %s", sentinel, fmt.Sprintf(format, args...))
}
