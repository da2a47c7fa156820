package export

import (
	"context"
	"io"
	"os"
)

type optionKey string

const writerOptionKey optionKey = "export_writer"

// WithWriter routes deliveries made under ctx to w.
func WithWriter(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, writerOptionKey, w)
}

func writerFrom(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(writerOptionKey).(io.Writer); ok && w != nil {
		return w
	}
	return os.Stdout
}
