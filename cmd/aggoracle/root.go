package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cyw0ng95/aggoracle/internal/config"
	"github.com/cyw0ng95/aggoracle/internal/log"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "aggoracle",
	Short: "Find aggregate bugs in SQL engines by query partitioning",
	Long: `aggoracle compares SELECT agg(e) FROM t with the same aggregate folded over
the UNION ALL of three partitions of t: the rows where a random predicate P is
true, where NOT P is true, and where P IS NULL. A correct engine returns the
same value for both queries.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.Setup(viper.GetString("log_level"), viper.GetString("log_format"))
	},
	SilenceUsage: true,
}

// Execute is called by main and is the entry point for the CLI.
func Execute() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	d := config.Default()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./aggoracle.yaml)")
	pf.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", d.LogFormat, "log format: text, json")
	pf.String("driver", d.Engine.Driver, "engine under test: sqlite, sqlite3, postgres")
	pf.String("dsn", d.Engine.DSN, "data source name of the engine under test")
	pf.Uint64("seed", d.Run.Seed, "run seed: populates the tables and seeds the first check")

	mustBindPFlag("log_level", pf.Lookup("log-level"))
	mustBindPFlag("log_format", pf.Lookup("log-format"))
	mustBindPFlag("engine.driver", pf.Lookup("driver"))
	mustBindPFlag("engine.dsn", pf.Lookup("dsn"))
	mustBindPFlag("run.seed", pf.Lookup("seed"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(populateCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("aggoracle")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("AGGORACLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if cfgFile != "" {
				fmt.Fprintf(os.Stderr, "Warning: could not read config file: %v\n", err)
			}
		}
	}
}

// loadConfig overlays the config file, environment and flags on the defaults.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("viper.BindPFlag(%q): %v", key, err))
	}
}
