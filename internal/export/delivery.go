package export

import (
	"context"
	"fmt"
	"io"
	"net/mail"
)

// Receipt is the value of the delivery stage.
type Receipt struct {
	Channel   string
	Recipient string
	Bytes     int
}

func deliverStdout(ctx context.Context, prev any, _ ...any) (any, error) {
	content, err := contentOf(prev)
	if err != nil {
		return nil, err
	}
	n, err := io.WriteString(writerFrom(ctx), content+"\n")
	if err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	return Receipt{Channel: "stdout", Bytes: n}, nil
}

func deliverEmail(ctx context.Context, prev any, args ...any) (any, error) {
	content, err := contentOf(prev)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("email delivery expects one address, got %d args", len(args))
	}
	address, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("email address must be a string, got %T", args[0])
	}
	addr, err := mail.ParseAddress(address)
	if err != nil {
		return nil, fmt.Errorf("email address %q: %w", address, err)
	}

	// TODO: hand the message to an SMTP relay once one is configurable.
	n, err := fmt.Fprintf(writerFrom(ctx), "sending email to %s with content:\n%s\n", addr.Address, content)
	if err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}
	return Receipt{Channel: "email", Recipient: addr.Address, Bytes: n}, nil
}

func contentOf(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("delivery expects formatted text, got %T", v)
	}
	return s, nil
}
