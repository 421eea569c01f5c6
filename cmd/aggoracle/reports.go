package main

import (
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cyw0ng95/aggoracle/internal/TS/Runner"
)

var reportsCmd = &cobra.Command{
	Use:   "reports [dir]",
	Short: "List stored bug reports",
	Long: `Lists the bug reports in dir, oldest first, with the command that replays
each one. dir defaults to run.report_dir from the config.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReports,
}

func runReports(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Run.ReportDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no report directory: pass one or set run.report_dir")
	}

	reports, err := Runner.NewReporter(dir).Load()
	if errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "no reports in %s\n", dir)
		return nil
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFOUND\tAGGREGATE\tREASON\tREPLAY")
	for _, rep := range reports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rep.ID, rep.FoundAt.Format("2006-01-02 15:04:05"), rep.Aggregate, rep.Reason, rep.ReplayCommand())
	}
	return w.Flush()
}
