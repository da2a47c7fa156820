package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Table is the input of an export: rows of cells.
type Table [][]string

// CSVOptions tune the csv format.
type CSVOptions struct {
	Comma  string
	Header []string
	CRLF   bool
}

func formatString(_ context.Context, prev any, _ ...any) (any, error) {
	t, err := tableOf(prev)
	if err != nil {
		return nil, err
	}
	return fmt.Sprint([][]string(t)), nil
}

func formatCSV(_ context.Context, prev any, args ...any) (any, error) {
	t, err := tableOf(prev)
	if err != nil {
		return nil, err
	}
	opts, err := optionArg[CSVOptions](args)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if opts.Comma != "" {
		r, size := utf8.DecodeRuneInString(opts.Comma)
		if size != len(opts.Comma) {
			return nil, fmt.Errorf("csv separator %q must be a single character", opts.Comma)
		}
		w.Comma = r
	}
	w.UseCRLF = opts.CRLF

	if len(opts.Header) > 0 {
		if err := w.Write(opts.Header); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := w.WriteAll(t); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}

// formatTable renders a rounded table. The optional string args are used as
// column headers and title-cased.
func formatTable(_ context.Context, prev any, args ...any) (any, error) {
	t, err := tableOf(prev)
	if err != nil {
		return nil, err
	}

	tw := table.NewWriter()
	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	if len(args) > 0 {
		caser := cases.Title(language.English)
		header := make(table.Row, 0, len(args))
		for _, a := range args {
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("table header must be strings, got %T", a)
			}
			header = append(header, caser.String(strings.ReplaceAll(s, "_", " ")))
		}
		tw.AppendHeader(header)
	}

	for _, row := range t {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}
	return tw.Render(), nil
}

func tableOf(v any) (Table, error) {
	switch t := v.(type) {
	case Table:
		return t, nil
	case [][]string:
		return Table(t), nil
	default:
		return nil, fmt.Errorf("export input must be a table, got %T", v)
	}
}

func optionArg[T any](args []any) (T, error) {
	var zero T
	switch len(args) {
	case 0:
		return zero, nil
	case 1:
		opts, ok := args[0].(T)
		if !ok {
			return zero, fmt.Errorf("expected %T argument, got %T", zero, args[0])
		}
		return opts, nil
	default:
		return zero, fmt.Errorf("expected at most one argument, got %d", len(args))
	}
}
