package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"phg/config"
)

var (
	cfgFile string
	cfg     *config.Config
	baseDir string
	verbose bool
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "phg",
	Short: "Papyrus Header Generator - Emit declaration stubs for compiled scripts",
	Long: `phg generates Papyrus header files: .psc stubs holding the declarations
(script header, auto properties, functions, events) of every script in a game
Data directory, recovering source text from loose files, BSA archives, or the
Champollion decompiler.

Example usage:
  phg generate .              # Generate headers for ./Data
  phg scan --enable-bsa       # Report where each script's source lives
  phg watch                   # Regenerate whenever sources change`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if baseDir == "" {
			baseDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(baseDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return setupLogging(cfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./phg.yaml)")
	rootCmd.PersistentFlags().StringVarP(&baseDir, "dir", "d", "", "base directory holding Data (default is current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func GetBaseDir() string {
	return baseDir
}

// setupLogging installs the default slog handler, mirroring output to the
// configured log file when one is set.
func setupLogging(cfg *config.Config) error {
	level := parseLevel(cfg.Logging.Level)
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(os.Stdout, f)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
