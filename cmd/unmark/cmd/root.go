package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/unmark/internal/config"
	"github.com/MeKo-Tech/unmark/internal/pipeline"
	"github.com/MeKo-Tech/unmark/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is the state shared by one command tree: the config file flag, the
// loaded configuration and the logger built from it.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCommand builds a fresh command tree with its own viper instance, so
// several trees can run in one process without sharing state.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "unmark [-i] <path> [-o <path>]",
		Short: "Remove the semi-transparent corner watermark from images",
		Long: `unmark removes the semi-transparent sparkle watermark that image generators
stamp into the bottom-right corner of their output. The mark is blended with a
known alpha matte, so it can be inverted exactly instead of being inpainted.

This tool provides:
- Removal and re-application of the mark on files and directories
- Alpha matte calibration from captures over known backgrounds
- Round-trip quality verification
- A watch mode and an HTTP API

Examples:
  unmark photo.png
  unmark remove -i ./generated -o ./clean --recursive --stats
  unmark info photo.png
  unmark serve --port 8080`,
		Version:           version.String(),
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !cmd.Flags().Changed("input") {
				return cmd.Help()
			}
			return a.runTransform(cmd, args, pipeline.OpRemove)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/unmark, /etc/unmark)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	addTransformFlags(rootCmd)

	rootCmd.AddCommand(
		a.newRemoveCommand(),
		a.newAddCommand(),
		a.newAlphaCommand(),
		a.newInfoCommand(),
		a.newVerifyCommand(),
		a.newWatchCommand(),
		a.newServeCommand(),
		a.newConfigCommand(),
	)
	return rootCmd
}

// GetRootCommand returns a new root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// Execute runs the CLI until it finishes or SIGINT/SIGTERM arrives. This is
// called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the logger. Flags bound here
// take precedence over the config file and UNMARK_* variables.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("log_level", flags.Lookup("log-level")); err != nil {
		return err
	}

	a.loader = config.NewLoaderWithViper(v)
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(a.logger)

	if used := a.loader.GetConfigFileUsed(); used != "" {
		a.logger.Debug("Loaded configuration", "file", used)
	}
	return nil
}

// newLogger builds the JSON logger for cfg. Verbose wins over log_level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// config returns the loaded configuration, or the defaults when setup did
// not run.
func (a *app) config() *config.Config {
	if a.cfg == nil {
		cfg := config.DefaultConfig()
		a.cfg = &cfg
	}
	return a.cfg
}

func (a *app) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

var errNoInput = errors.New("no input given (use -i <path> or a positional path)")
