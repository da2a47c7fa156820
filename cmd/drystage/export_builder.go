package main

import (
	"fmt"
	"strings"

	"github.com/ib-77/drystages/internal/config"
	"github.com/ib-77/drystages/internal/export"
	"github.com/ib-77/drystages/pkg/stage"
)

// buildExport selects the variants named by cfg, then applies the raw
// operations ("to_csv", "send_to_email=a@b.c") in order.
func buildExport(cfg config.ExportConfig, operations []string, opts ...stage.Option) (*export.Export, error) {
	e := export.NewFibonacci(cfg.Rows, opts...)

	switch cfg.Format {
	case "string":
		e.ToString()
	case "csv":
		e.ToCSV(export.CSVOptions{Comma: cfg.Comma, Header: cfg.Header})
	case "table":
		e.ToTable(cfg.Header...)
	default:
		return nil, fmt.Errorf("unsupported format %q", cfg.Format)
	}

	switch cfg.Delivery {
	case "stdout":
		e.SendToStdout()
	case "email":
		e.SendToEmail(cfg.Email)
	default:
		return nil, fmt.Errorf("unsupported delivery %q", cfg.Delivery)
	}

	for _, raw := range operations {
		name, args := parseOperation(raw)
		if _, err := e.Call(name, args...); err != nil {
			return nil, err
		}
	}
	return e, e.Err()
}

func parseOperation(raw string) (string, []any) {
	name, rawArgs, found := strings.Cut(strings.TrimSpace(raw), "=")
	name = strings.TrimSpace(name)
	if !found || strings.TrimSpace(rawArgs) == "" {
		return name, nil
	}
	parts := strings.Split(rawArgs, ",")
	args := make([]any, len(parts))
	for i, p := range parts {
		args[i] = strings.TrimSpace(p)
	}
	return name, args
}
