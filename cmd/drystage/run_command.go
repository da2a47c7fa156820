package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ib-77/drystages/internal/export"
	"github.com/ib-77/drystages/pkg/stage"
)

type exportFlags struct {
	rows       int
	format     string
	delivery   string
	email      string
	operations []string
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.rows, "rows", "n", 0, "Number of fibonacci rows")
	cmd.Flags().StringVar(&f.format, "format", "", "Format variant (string, csv, table)")
	cmd.Flags().StringVar(&f.delivery, "delivery", "", "Delivery variant (stdout, email)")
	cmd.Flags().StringVar(&f.email, "email", "", "Recipient for email delivery")
	cmd.Flags().StringArrayVar(&f.operations, "apply", nil, "Configuration operation to apply, e.g. to_string or send_to_email=a@example.com")
}

func (f *exportFlags) build(cmd *cobra.Command, ctx *commandContext, opts ...stage.Option) (*export.Export, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	exportCfg := cfg.Export
	if cmd.Flags().Changed("rows") {
		exportCfg.Rows = f.rows
	}
	if cmd.Flags().Changed("format") {
		exportCfg.Format = f.format
	}
	if cmd.Flags().Changed("delivery") {
		exportCfg.Delivery = f.delivery
	}
	if cmd.Flags().Changed("email") {
		exportCfg.Email = f.email
	}
	return buildExport(exportCfg, f.operations, opts...)
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Format and deliver the fibonacci export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			e, err := flags.build(cmd, ctx, stage.WithLogger(logger))
			if err != nil {
				return err
			}

			receipt, err := e.Run(export.WithWriter(cmd.Context(), cmd.OutOrStdout()))
			if err != nil {
				return fmt.Errorf("run export: %w", err)
			}

			logger.Info("export delivered",
				slog.String("instance", e.ID().String()),
				slog.String("channel", receipt.Channel),
				slog.String("recipient", receipt.Recipient),
				slog.Int("bytes", receipt.Bytes))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
