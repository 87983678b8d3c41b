package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hupe1980/archmesh/config"
	"github.com/hupe1980/archmesh/logging"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	envFile  string
	logLevel string

	cfg    *config.Config
	logger logging.Logger
	// flush is set for loggers that buffer.
	flush func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "archmesh",
		Short:         "ArchMesh - a team of AI renovation specialists",
		Long:          `ArchMesh routes questions about a room to structural, design, vision and project specialists backed by interchangeable language models, and analyzes room photos into walls, openings and planes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.flush != nil {
				_ = a.flush()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newAnalyzeCmd(a),
		newParseCmd(a),
		newAskCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	level := logging.ParseLevel(cfg.LogLevel)
	switch cfg.LogBackend {
	case "zap":
		z, err := logging.NewZapLogger(level, cfg.LogFormat)
		if err != nil {
			return err
		}
		a.logger, a.flush = z, z.Sync
	default:
		lc := logging.DefaultLoggerConfig()
		lc.Level = level
		lc.Format = cfg.LogFormat
		lc.Output = os.Stderr
		a.logger = logging.NewLogger(lc)
	}
	return nil
}
