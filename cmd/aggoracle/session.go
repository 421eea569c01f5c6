package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/cyw0ng95/aggoracle/internal/IS"
	"github.com/cyw0ng95/aggoracle/internal/QE"
	"github.com/cyw0ng95/aggoracle/internal/QP"
	sferrors "github.com/cyw0ng95/aggoracle/internal/SF/errors"
	"github.com/cyw0ng95/aggoracle/internal/SF/util"
	"github.com/cyw0ng95/aggoracle/internal/TS/AggOracle"
	"github.com/cyw0ng95/aggoracle/internal/TS/ExprGen"
	"github.com/cyw0ng95/aggoracle/internal/config"
	"github.com/cyw0ng95/aggoracle/internal/log"
	"github.com/cyw0ng95/aggoracle/internal/metrics"
)

// session is an open engine with its schema loaded and an oracle bound to it.
type session struct {
	db      *sql.DB
	dialect QP.Dialect
	catalog *IS.Catalog
	oracle  *AggOracle.Oracle
}

func openSession(ctx context.Context, cfg config.Config) (*session, error) {
	dialect, err := QP.DialectByName(cfg.DialectName())
	if err != nil {
		return nil, err
	}
	db, err := QE.Open(cfg.Engine.Driver, cfg.Engine.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", cfg.Engine.Driver, err)
	}

	if cfg.Populate.Enabled {
		if err := populate(ctx, db, dialect, cfg); err != nil {
			db.Close()
			return nil, err
		}
	}

	catalog := IS.NewCatalog(db, dialect, cfg.Oracle.MaxTables)
	if err := catalog.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	registry, err := sferrors.ForDialect(dialect.Name, cfg.Errors.Catalog)
	if err != nil {
		db.Close()
		return nil, err
	}

	exprOpts := ExprGen.DefaultOptions()
	exprOpts.MaxDepth = cfg.Oracle.MaxExprDepth
	exec := QE.NewExecutor(db,
		QE.WithObserver(metrics.ObserveQuery),
		QE.WithTimeout(cfg.Engine.QueryTimeout))

	tol := AggOracle.Tolerance{Abs: cfg.Oracle.AbsTolerance, Rel: cfg.Oracle.RelTolerance}
	oracle := AggOracle.New(AggOracle.Deps{
		Schema:  catalog,
		Exprs:   AggOracle.GeneratorSource(exprOpts),
		Exec:    exec,
		Errors:  registry,
		Dialect: dialect,
	}, AggOracle.Config{
		ProbGroupBy:    cfg.Oracle.ProbGroupBy,
		ProbOrderBy:    cfg.Oracle.ProbOrderBy,
		ProbNotIndexed: cfg.Oracle.ProbNotIndexed,
		Tolerance:      tol,
	})

	log.Info("session ready",
		zap.String("driver", cfg.Engine.Driver),
		zap.String("dialect", dialect.Name),
		zap.Int("tables", len(catalog.Tables())))
	return &session{db: db, dialect: dialect, catalog: catalog, oracle: oracle}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}

// populate fills the engine with random tables drawn from the run seed.
func populate(ctx context.Context, db *sql.DB, dialect QP.Dialect, cfg config.Config) error {
	opts, err := populateOptions(cfg.Populate)
	if err != nil {
		return err
	}
	tables, err := IS.Populate(ctx, db, dialect, util.NewLCG(cfg.Run.Seed).Split(), opts)
	if err != nil {
		return err
	}
	log.Info("populated tables", zap.Strings("tables", IS.TableSet{Tables: tables}.Names()))
	return nil
}

func populateOptions(pc config.PopulateConfig) (IS.PopulateOptions, error) {
	opts := IS.PopulateOptions{
		Tables:     pc.Tables,
		MinColumns: pc.MinColumns,
		MaxColumns: pc.MaxColumns,
		MinRows:    pc.MinRows,
		MaxRows:    pc.MaxRows,
		NullProb:   pc.NullProb,
	}
	for _, name := range pc.Types {
		a, err := config.ParseAffinity(name)
		if err != nil {
			return IS.PopulateOptions{}, err
		}
		opts.Affinities = append(opts.Affinities, a)
	}
	return opts, nil
}
