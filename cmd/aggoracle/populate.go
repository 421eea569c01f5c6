package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cyw0ng95/aggoracle/internal/IS"
	"github.com/cyw0ng95/aggoracle/internal/QE"
	"github.com/cyw0ng95/aggoracle/internal/QP"
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Create random tables in the engine and list them",
	Long: `Creates the tables described by the populate section of the config with
rows drawn from --seed. Useful with a file DSN to prepare a database that a
later run reuses with populate.enabled=false.`,
	RunE: runPopulate,
}

func runPopulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	dialect, err := QP.DialectByName(cfg.DialectName())
	if err != nil {
		return err
	}
	db, err := QE.Open(cfg.Engine.Driver, cfg.Engine.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := populate(ctx, db, dialect, cfg); err != nil {
		return err
	}

	catalog := IS.NewCatalog(db, dialect, cfg.Populate.Tables)
	if err := catalog.Load(ctx); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, t := range catalog.Tables() {
		var cols []string
		for _, c := range t.Columns {
			cols = append(cols, fmt.Sprintf("%s %s", c.Name, c.Affinity))
		}
		fmt.Fprintf(out, "%s(%s)\n", t.Name, strings.Join(cols, ", "))
	}
	return nil
}
