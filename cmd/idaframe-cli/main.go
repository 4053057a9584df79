// Command idaframe-cli runs Python functions inside an IBM Netezza
// Performance Server through the Analytics Engine and inspects tables.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/IBM/nzgo/v12"     // registers the nzgo driver
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/paveg/idaframe/internal/config"
	"github.com/paveg/idaframe/internal/database"
	"github.com/paveg/idaframe/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	dsn        string
	driver     string
	schema     string
	logLevel   string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to a JSON or YAML configuration file")
	pf.StringVar(&f.dsn, "dsn", "", "data source name (overrides IDA_DSN)")
	pf.StringVar(&f.driver, "driver", "", "database/sql driver: nzgo or sqlite3 (overrides IDA_DRIVER)")
	pf.StringVar(&f.schema, "schema", "", "schema for unqualified table names (overrides IDA_SCHEMA)")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides IDA_LOG_LEVEL)")
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "idaframe-cli",
		Short:         "Run Python functions in the database through the Analytics Engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags.register(root)
	root.AddCommand(
		newApplyCommand(flags),
		newHeadCommand(flags),
		newDescribeCommand(flags),
		newCodegenCommand(flags),
		newVersionCommand(),
	)
	return root
}

// loadConfig layers the configuration file, IDA_* variables and flags, in
// increasing precedence.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (config.Config, error) {
	cfg := config.NewConfig()
	if flags.configPath != "" {
		loaded, err := config.LoadFromFile(flags.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg = config.LoadFromEnv(cfg)

	pf := cmd.Flags()
	if pf.Changed("dsn") {
		cfg.DSN = flags.dsn
	}
	if pf.Changed("driver") {
		cfg.Driver = flags.driver
	}
	if pf.Changed("schema") {
		cfg.Schema = flags.schema
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("client", version.UserAgent())), nil
}

// session is an open database connection with its logger.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	db     *database.DataBase
}

func openSession(cmd *cobra.Command, flags *globalFlags) (*session, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	logger.Debug("Connected", zap.String("driver", cfg.Driver), zap.String("schema", cfg.Schema))
	return &session{cfg: cfg, logger: logger, db: db}, nil
}

func (s *session) Close() {
	if m := s.db.Metrics(); m != nil {
		summary := m.Summary()
		s.logger.Info("Session statistics",
			zap.Int("statements", summary.TotalStatements),
			zap.Int("failures", summary.Failures),
			zap.Duration("total_duration", summary.TotalDuration))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("Closing connection failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info().String())
		},
	}
}
