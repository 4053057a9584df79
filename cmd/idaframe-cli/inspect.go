package main

import (
	"github.com/spf13/cobra"
)

func newHeadCommand(flags *globalFlags) *cobra.Command {
	var (
		table   string
		columns []string
		where   string
		rows    int
		out     string
	)

	cmd := &cobra.Command{
		Use:   "head",
		Short: "Print the first rows of a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			df, err := openInput(cmd, s, table, columns, where)
			if err != nil {
				return err
			}
			f, err := df.Head(commandContext(cmd), rows)
			if err != nil {
				return err
			}
			defer f.Release()
			return emit(cmd, f, 0, out)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&table, "table", "", "table to read")
	fl.StringSliceVar(&columns, "columns", nil, "columns to print (default: all)")
	fl.StringVar(&where, "where", "", "SQL predicate restricting the rows")
	fl.IntVarP(&rows, "rows", "n", 5, "number of rows")
	fl.StringVar(&out, "out", "", "also write the rows to a .csv, .tsv, .json, .jsonl or .parquet file")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func newDescribeCommand(flags *globalFlags) *cobra.Command {
	var (
		table   string
		columns []string
		where   string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print summary statistics of the numeric columns of a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			df, err := openInput(cmd, s, table, columns, where)
			if err != nil {
				return err
			}
			f, err := df.Describe(commandContext(cmd))
			if err != nil {
				return err
			}
			defer f.Release()
			return emit(cmd, f, 0, out)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&table, "table", "", "table to describe")
	fl.StringSliceVar(&columns, "columns", nil, "columns to describe (default: all numeric)")
	fl.StringVar(&where, "where", "", "SQL predicate restricting the rows")
	fl.StringVar(&out, "out", "", "also write the statistics to a .csv, .tsv, .json, .jsonl or .parquet file")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
