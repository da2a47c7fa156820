package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ib-77/drystages/internal/export"
	"github.com/ib-77/drystages/pkg/stage"
)

func newStagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List the export pipeline stages and their variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), renderStages(export.Pipeline))
			return nil
		},
	}
}

func renderStages(p *stage.Pipeline) string {
	rows := make([][]string, 0, p.Len())
	for _, d := range p.Stages() {
		variants := "-"
		operations := "-"
		if d.HasDefault() {
			variants = stage.DefaultVariant
		}
		if d.Configurable {
			names := p.Variants(d.Name)
			variants = strings.Join(names, ", ")
			ops := make([]string, len(names))
			for i, n := range names {
				ops[i] = d.Prefix + "_" + n
			}
			operations = strings.Join(ops, ", ")
		}
		rows = append(rows, []string{strconv.Itoa(d.Position), d.Name, strconv.FormatBool(d.Configurable), variants, operations})
	}
	return renderTable(
		[]string{"#", "Stage", "Configurable", "Variants", "Operations"},
		rows,
		[]columnAlignment{alignRight},
	)
}

func newConfigsCommand(ctx *commandContext) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "Show which variant each stage would run, without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := flags.build(cmd, ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderConfigs(e.DryStages(), e.DryStagesConfigs()))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func renderConfigs(stages []string, configs []*stage.Summary) string {
	rows := make([][]string, len(stages))
	for i, name := range stages {
		cfg := configs[i]
		if cfg == nil {
			rows[i] = []string{strconv.Itoa(i), name, "(unconfigured)", ""}
			continue
		}
		args := make([]string, len(cfg.Args))
		for j, a := range cfg.Args {
			args[j] = fmt.Sprintf("%+v", a)
		}
		rows[i] = []string{strconv.Itoa(i), name, cfg.Variant, strings.Join(args, " ")}
	}
	return renderTable([]string{"#", "Stage", "Variant", "Args"}, rows, []columnAlignment{alignRight})
}
