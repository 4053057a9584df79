package main

import (
	"fmt"
	"os"

	"github.com/paveg/idaframe/internal/ae"
	"github.com/paveg/idaframe/internal/frame"
	"github.com/paveg/idaframe/internal/idadf"
	idaio "github.com/paveg/idaframe/internal/io"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type applyOptions struct {
	table       string
	columns     []string
	where       string
	source      string
	function    string
	signature   []string
	batch       bool
	outputTable string
	out         string
	rows        int
}

func newApplyCommand(flags *globalFlags) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Run a Python function over a table inside the database",
		Example: `  idaframe-cli apply --table IRIS --source score.py --func score \
      --sig ID=int --sig LABEL=str --output-table IRIS_SCORED`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd, flags, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.table, "table", "", "input table")
	f.StringSliceVar(&opts.columns, "columns", nil, "input columns passed to the function (default: all)")
	f.StringVar(&opts.where, "where", "", "SQL predicate restricting the input rows")
	f.StringVar(&opts.source, "source", "", "Python file defining the function")
	f.StringVar(&opts.function, "func", "", "name of the function in the source file")
	f.StringArrayVar(&opts.signature, "sig", nil, "output column as name=type (int, float, double, str); repeat in order")
	f.BoolVar(&opts.batch, "batch", false, "call the function once with all rows as a pandas DataFrame")
	f.StringVar(&opts.outputTable, "output-table", "", "store the output in this table, creating it when absent")
	f.StringVar(&opts.out, "out", "", "also write the output to a .csv, .tsv, .json, .jsonl or .parquet file")
	f.IntVarP(&opts.rows, "rows", "n", 20, "number of output rows to print (0 prints all)")
	for _, name := range []string{"table", "source", "func"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runApply(cmd *cobra.Command, flags *globalFlags, opts *applyOptions) error {
	sig, err := ae.ParseSignature(opts.signature...)
	if err != nil {
		return err
	}
	fn := ae.FunctionFromFile(opts.source, opts.function)

	s, err := openSession(cmd, flags)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)
	df, err := openInput(cmd, s, opts.table, opts.columns, opts.where)
	if err != nil {
		return err
	}

	var res *idadf.ApplyResult
	if opts.batch {
		res, err = df.ApplyBatch(ctx, fn, sig, opts.outputTable)
	} else {
		res, err = df.Apply(ctx, fn, sig, opts.outputTable)
	}
	if err != nil {
		return err
	}
	defer res.Release()

	if res.OutputTable != "" {
		verb := "Appended to"
		if res.Created {
			verb = "Created"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", verb, res.OutputTable)
	}
	s.logger.Debug("Apply finished", zap.Int("rows", res.Frame.Len()))

	return emit(cmd, res.Frame, opts.rows, opts.out)
}

// openInput opens table and applies the optional projection and filter.
func openInput(cmd *cobra.Command, s *session, table string, columns []string, where string) (*idadf.IdaDataFrame, error) {
	df, err := idadf.New(commandContext(cmd), s.db, table)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		if df, err = df.Select(columns...); err != nil {
			return nil, err
		}
	}
	if where != "" {
		df = df.Where(where)
	}
	return df, nil
}

// emit prints up to rows rows of f and writes it to out when set.
func emit(cmd *cobra.Command, f *frame.Frame, rows int, out string) error {
	if err := f.Format(cmd.OutOrStdout(), rows); err != nil {
		return err
	}
	if out == "" {
		return nil
	}
	return writeFile(out, f)
}

func writeFile(path string, f *frame.Frame) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	w, err := idaio.WriterFor(path, file)
	if err != nil {
		return err
	}
	return w.Write(f)
}
