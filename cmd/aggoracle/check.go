package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyw0ng95/aggoracle/internal/SF/util"
	"github.com/cyw0ng95/aggoracle/internal/TS/AggOracle"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single check and print its queries",
	Long: `Populates the tables from --seed, runs the check drawn from --check-seed
and prints the direct and partitioned queries with their results. The check
seed defaults to --seed. A bug reported by "aggoracle run" replays with
"aggoracle check --seed <run_seed> --check-seed <seed>".`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Uint64("check-seed", 0, "seed of the check (default: --seed)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	checkSeed := cfg.Run.Seed
	if f := cmd.Flags().Lookup("check-seed"); f.Changed {
		if checkSeed, err = cmd.Flags().GetUint64("check-seed"); err != nil {
			return err
		}
	}

	res, err := sess.oracle.Check(ctx, util.NewLCG(checkSeed))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, res.Evidence.Script())
	fmt.Fprintf(out, "outcome: %s\n", res.Outcome)
	if res.Reason != "" {
		fmt.Fprintf(out, "reason: %s\n", res.Reason)
	}
	if res.Outcome == AggOracle.Bug {
		return res.Err()
	}
	return nil
}
