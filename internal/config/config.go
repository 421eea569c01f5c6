package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyw0ng95/aggoracle/internal/QE"
	"github.com/cyw0ng95/aggoracle/internal/QP"
)

type Config struct {
	Engine        EngineConfig   `mapstructure:"engine"`
	Oracle        OracleConfig   `mapstructure:"oracle"`
	Run           RunConfig      `mapstructure:"run"`
	Populate      PopulateConfig `mapstructure:"populate"`
	Errors        ErrorsConfig   `mapstructure:"errors"`
	LogLevel      string         `mapstructure:"log_level"`
	LogFormat     string         `mapstructure:"log_format"`
	MetricsAddr   string         `mapstructure:"metrics_addr"`
	TraceExporter string         `mapstructure:"trace_exporter"`
}

type EngineConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, sqlite3, postgres
	DSN    string `mapstructure:"dsn"`
	// Dialect defaults to the one implied by Driver.
	Dialect string `mapstructure:"dialect"`
	// QueryTimeout bounds each query; zero disables the deadline.
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

type OracleConfig struct {
	ProbGroupBy    float64 `mapstructure:"prob_group_by"`
	ProbOrderBy    float64 `mapstructure:"prob_order_by"`
	ProbNotIndexed float64 `mapstructure:"prob_not_indexed"`
	MaxExprDepth   int     `mapstructure:"max_expr_depth"`
	MaxTables      int     `mapstructure:"max_tables"`
	AbsTolerance   float64 `mapstructure:"abs_tolerance"`
	RelTolerance   float64 `mapstructure:"rel_tolerance"`
}

type RunConfig struct {
	Checks    int    `mapstructure:"checks"`
	Workers   int    `mapstructure:"workers"`
	Seed      uint64 `mapstructure:"seed"`
	ReportDir string `mapstructure:"report_dir"`
	StopOnBug bool   `mapstructure:"stop_on_bug"`
}

type PopulateConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Tables     int      `mapstructure:"tables"`
	MinColumns int      `mapstructure:"min_columns"`
	MaxColumns int      `mapstructure:"max_columns"`
	MinRows    int      `mapstructure:"min_rows"`
	MaxRows    int      `mapstructure:"max_rows"`
	NullProb   float64  `mapstructure:"null_prob"`
	Types      []string `mapstructure:"types"`
}

type ErrorsConfig struct {
	// Catalog is an extra YAML file of expected error signatures.
	Catalog string `mapstructure:"catalog"`
}

// Default returns the configuration used when nothing is set: an in-memory
// SQLite database that is populated before the run.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Oracle: OracleConfig{
			ProbGroupBy:    0.1,
			ProbOrderBy:    0.5,
			ProbNotIndexed: 0.05,
			MaxExprDepth:   2,
			MaxTables:      2,
			AbsTolerance:   1e-9,
			RelTolerance:   1e-9,
		},
		Run: RunConfig{
			Checks:    1000,
			Workers:   1,
			Seed:      1,
			ReportDir: "reports",
		},
		Populate: PopulateConfig{
			Enabled:    true,
			Tables:     2,
			MinColumns: 1,
			MaxColumns: 3,
			MinRows:    1,
			MaxRows:    8,
			NullProb:   0.2,
			Types:      []string{"INTEGER"},
		},
		LogLevel:      "info",
		LogFormat:     "text",
		TraceExporter: "none",
	}
}

// DialectName resolves the dialect from Engine.Dialect or Engine.Driver.
func (c Config) DialectName() string {
	if c.Engine.Dialect != "" {
		return c.Engine.Dialect
	}
	return c.Engine.Driver
}

// Validate performs structural validation on the config.
func (c Config) Validate() error {
	var errs []string

	if _, err := QE.DriverFor(c.Engine.Driver); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Engine.DSN == "" {
		errs = append(errs, "engine.dsn is required")
	}
	if _, err := QP.DialectByName(c.DialectName()); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Engine.QueryTimeout < 0 {
		errs = append(errs, "engine.query_timeout must be >= 0")
	}

	checkProb := func(path string, p float64) {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Sprintf("%s must be within [0, 1], got %g", path, p))
		}
	}
	checkProb("oracle.prob_group_by", c.Oracle.ProbGroupBy)
	checkProb("oracle.prob_order_by", c.Oracle.ProbOrderBy)
	checkProb("oracle.prob_not_indexed", c.Oracle.ProbNotIndexed)
	checkProb("populate.null_prob", c.Populate.NullProb)

	if c.Oracle.MaxExprDepth < 0 {
		errs = append(errs, "oracle.max_expr_depth must be >= 0")
	}
	if c.Oracle.MaxTables < 1 {
		errs = append(errs, "oracle.max_tables must be >= 1")
	}
	if c.Oracle.AbsTolerance < 0 || c.Oracle.RelTolerance < 0 {
		errs = append(errs, "oracle tolerances must be >= 0")
	}

	if c.Run.Checks < 1 {
		errs = append(errs, fmt.Sprintf("run.checks must be > 0, got %d", c.Run.Checks))
	}
	if c.Run.Workers < 1 {
		errs = append(errs, fmt.Sprintf("run.workers must be > 0, got %d", c.Run.Workers))
	}
	if c.Run.Workers > 1 && strings.Contains(c.Engine.DSN, ":memory:") {
		errs = append(errs, "run.workers > 1 needs a shared database; :memory: is private to each connection")
	}

	if c.Populate.Enabled {
		if c.Populate.Tables < 1 {
			errs = append(errs, "populate.tables must be > 0")
		}
		if c.Populate.MinColumns < 1 || c.Populate.MaxColumns < c.Populate.MinColumns {
			errs = append(errs, "populate columns need 1 <= min_columns <= max_columns")
		}
		if c.Populate.MinRows < 0 || c.Populate.MaxRows < c.Populate.MinRows {
			errs = append(errs, "populate rows need 0 <= min_rows <= max_rows")
		}
		for _, t := range c.Populate.Types {
			if _, err := ParseAffinity(t); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}

	switch strings.ToLower(c.TraceExporter) {
	case "", "none", "stdout":
	default:
		errs = append(errs, fmt.Sprintf("unknown trace_exporter %q (expected none, stdout)", c.TraceExporter))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseAffinity maps a populate type name to an affinity.
func ParseAffinity(name string) (QP.Affinity, error) {
	switch a := QP.Affinity(strings.ToUpper(strings.TrimSpace(name))); a {
	case QP.AffinityInteger, QP.AffinityReal, QP.AffinityText, QP.AffinityBlob, QP.AffinityNumeric:
		return a, nil
	default:
		return "", fmt.Errorf("unknown populate type %q (expected INTEGER, REAL, TEXT, BLOB, NUMERIC)", name)
	}
}
