package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ib-77/drystages/pkg/stage"
)

const (
	StageFormat   = "format"
	StageDelivery = "delivery"
)

var (
	builder = stage.NewBuilder("export").
		MustDefine(StageFormat, stage.WithPrefix("to")).
		MustDefine(StageDelivery, stage.WithPrefix("send_to"))

	toString     = builder.MustVariant(StageFormat, "string", formatString)
	toCSV        = builder.MustVariant(StageFormat, "csv", formatCSV)
	toTable      = builder.MustVariant(StageFormat, "table", formatTable)
	sendToStdout = builder.MustVariant(StageDelivery, "stdout", deliverStdout)
	sendToEmail  = builder.MustVariant(StageDelivery, "email", deliverEmail)

	// Pipeline is the export pipeline: format, then delivery.
	Pipeline = builder.Build()
)

// Export is a configured export of one table.
type Export struct {
	*stage.Instance
}

// New creates an unconfigured export reading its table from input.
func New(input stage.InputFunc, opts ...stage.Option) *Export {
	return &Export{Instance: stage.New(Pipeline, input, opts...)}
}

func (e *Export) ToString() *Export {
	e.Apply(toString)
	return e
}

func (e *Export) ToCSV(opts CSVOptions) *Export {
	e.Apply(toCSV, opts)
	return e
}

// ToTable renders a table; header names the columns.
func (e *Export) ToTable(header ...string) *Export {
	args := make([]any, len(header))
	for i, h := range header {
		args[i] = h
	}
	e.Apply(toTable, args...)
	return e
}

func (e *Export) SendToStdout() *Export {
	e.Apply(sendToStdout)
	return e
}

func (e *Export) SendToEmail(address string) *Export {
	e.Apply(sendToEmail, address)
	return e
}

// Run formats and delivers the table.
func (e *Export) Run(ctx context.Context) (Receipt, error) {
	return stage.As[Receipt](e.Instance.Run(ctx))
}

// Formatted returns the cached output of the format stage.
func (e *Export) Formatted() (string, error) {
	return stage.As[string](e.DryStageResult(StageFormat))
}

// NewFibonacci creates an export of the first n fibonacci numbers, one
// "index,value" row each, formatted as csv unless reconfigured.
func NewFibonacci(n int, opts ...stage.Option) *Export {
	e := New(func(context.Context) (any, error) {
		return Fibonacci(n)
	}, opts...)
	return e.ToCSV(CSVOptions{})
}

// Fibonacci returns the first n fibonacci numbers as a table.
func Fibonacci(n int) (Table, error) {
	if n < 0 {
		return nil, fmt.Errorf("fibonacci length must not be negative, got %d", n)
	}
	if n > 94 {
		return nil, fmt.Errorf("fibonacci length %d overflows uint64, max is 94", n)
	}

	t := make(Table, 0, n)
	var a, b uint64 = 0, 1
	for i := 0; i < n; i++ {
		t = append(t, []string{strconv.Itoa(i), strconv.FormatUint(a, 10)})
		a, b = b, a+b
	}
	return t, nil
}
