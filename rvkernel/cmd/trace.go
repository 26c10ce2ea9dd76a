package cmd

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvkernel/datarecording"
	"github.com/sarchlab/rvkernel/tracing"
)

// defaultGroupBy is the column each table is summarized by unless --by is
// given.
var defaultGroupBy = map[string]string{
	tracing.SyscallTable:  "Name",
	tracing.ScheduleTable: "PID",
	tracing.ExitTable:     "Code",
	tracing.FaultTable:    "PID",
}

var (
	traceTable string
	traceBy    string
)

var traceCmd = &cobra.Command{
	Use:   "trace [database]",
	Short: "Summarize a trace database recorded with run --trace-db",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			log.Fatalf("Error opening %s: %v", args[0], err)
		}
		defer reader.Close()

		err = summarizeTrace(context.Background(), cmd.OutOrStdout(),
			reader, traceTable, traceBy)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	traceCmd.Flags().StringVar(&traceTable, "table", tracing.SyscallTable,
		"syscall, schedule, exit or fault")
	traceCmd.Flags().StringVar(&traceBy, "by", "",
		"column to group by, defaults per table")

	rootCmd.AddCommand(traceCmd)
}

func summarizeTrace(
	ctx context.Context,
	w io.Writer,
	reader datarecording.DataReader,
	table, by string,
) error {
	tracing.MapTables(reader)

	if by == "" {
		var ok bool

		by, ok = defaultGroupBy[table]
		if !ok {
			return fmt.Errorf("unknown table %q", table)
		}
	}

	sessions, _, err := reader.Query(ctx, tracing.SessionTable,
		datarecording.QueryParams{})
	if err != nil {
		return err
	}

	for _, s := range sessions {
		e := s.(*tracing.SessionEntry)
		fmt.Fprintf(w, "session %s (%s)\n", e.ID, e.Label)
	}

	reader.MapTable(datarecording.ExecInfoTable, datarecording.ExecInfo{})

	infos, _, err := reader.Query(ctx, datarecording.ExecInfoTable,
		datarecording.QueryParams{})
	if err == nil {
		for _, i := range infos {
			e := i.(*datarecording.ExecInfo)
			fmt.Fprintf(w, "  %s: %s\n", e.Property, e.Value)
		}
	}

	counts, err := reader.CountBy(ctx, table, by)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-16s %8s\n", by, "count")

	for _, c := range counts {
		fmt.Fprintf(w, "%-16s %8d\n", c.Value, c.N)
	}

	return nil
}
