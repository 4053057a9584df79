package main

import (
	"fmt"

	"github.com/paveg/idaframe/internal/ae"
	"github.com/spf13/cobra"
)

func newCodegenCommand(flags *globalFlags) *cobra.Command {
	var (
		table       string
		columns     []string
		source      string
		function    string
		signature   []string
		batch       bool
		outputTable string
		appendMode  bool
	)

	cmd := &cobra.Command{
		Use:   "codegen",
		Short: "Print the generated AE module and SQL without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			sig, err := ae.ParseSignature(signature...)
			if err != nil {
				return err
			}

			mode := ae.ModeRow
			if batch {
				mode = ae.ModeBatch
			}
			doc, err := ae.Synthesize(ae.FunctionFromFile(source, function), columns, sig, mode)
			if err != nil {
				return err
			}

			in := ae.Input{Table: table, Columns: columns}
			b := ae.NewQueryBuilder(cfg.AEFunction)
			var stmt string
			if outputTable != "" {
				stmt, err = b.Persist(in, doc, outputTable, appendMode)
			} else {
				stmt, err = b.Select(in, doc)
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "-- AE module")
			fmt.Fprint(w, doc.Source())
			fmt.Fprintln(w, "-- SQL")
			fmt.Fprintln(w, stmt)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&table, "table", "INPUT_TABLE", "input table named in the statement")
	fl.StringSliceVar(&columns, "columns", nil, "input columns passed to the function")
	fl.StringVar(&source, "source", "", "Python file defining the function")
	fl.StringVar(&function, "func", "", "name of the function in the source file")
	fl.StringArrayVar(&signature, "sig", nil, "output column as name=type; repeat in order")
	fl.BoolVar(&batch, "batch", false, "generate a batch-mode module")
	fl.StringVar(&outputTable, "output-table", "", "generate a statement persisting into this table")
	fl.BoolVar(&appendMode, "append", false, "with --output-table, generate INSERT instead of CREATE TABLE AS")
	for _, name := range []string{"columns", "source", "func"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
