package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"phg/internal/adapter/fs"
	"phg/internal/adapter/header"
	"phg/internal/adapter/papyrus"
	"phg/internal/adapter/watch"
	"phg/internal/usecase"
)

var (
	watchOutput       string
	watchWorkers      int
	watchEnableBSA    bool
	watchEnableDecomp bool
	watchChampollion  string
	watchDebounce     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Regenerate headers when script files change",
	Long: `Run a generation pass, then watch the source directories and rerun it
whenever .psc, .pex, or .bsa files change. Unchanged scripts are cheap skips,
so a rerun costs roughly one changed file.

Examples:
  phg watch .
  phg watch /games/skyrim --debounce 2s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "output directory for headers (default from config)")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "parallel workers (default one per CPU)")
	watchCmd.Flags().BoolVar(&watchEnableBSA, "enable-bsa", false, "look for sources inside BSA archives")
	watchCmd.Flags().BoolVar(&watchEnableDecomp, "enable-decompile", false, "decompile scripts that have no source")
	watchCmd.Flags().StringVar(&watchChampollion, "champollion", "", "path to the Champollion executable or its directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a rerun")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveTarget(args)
	if err != nil {
		return err
	}
	cfg := GetConfig()

	filter, err := buildNameFilter("", "")
	if err != nil {
		return err
	}
	scanner := fs.NewScanner(dataDir, cfg.Scan.Includes, cfg.Scan.Excludes, filter)

	catalog, err := openCatalog(scanner, watchEnableBSA)
	if err != nil {
		return err
	}
	if catalog != nil {
		defer catalog.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decomp := buildDecompiler(ctx, watchEnableDecomp, watchChampollion)

	manifest, err := openManifest(dataDir)
	if err != nil {
		return err
	}
	defer manifest.Close()

	outDir := cfg.Output.Dir
	if watchOutput != "" {
		outDir = watchOutput
	}
	writer, err := header.NewWriter(outDir)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	workers := cfg.Generate.Workers
	if watchWorkers > 0 {
		workers = watchWorkers
	}

	uc := usecase.NewGenerateUseCase(scanner, papyrus.New(), writer, manifest, catalog, decomp)

	runBatch := func() {
		result, err := uc.Run(ctx, usecase.GenerateOptions{
			Workers:    workers,
			MissingLog: cfg.Generate.MissingLog,
		})
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Error("generation failed", "error", err)
			}
			return
		}
		slog.Info("generation finished",
			"written", result.Written,
			"skipped", result.Skipped,
			"missing", len(result.Missing),
			"failed", len(result.Errors))
	}

	// Initial pass so the headers start out current.
	runBatch()

	watcher, err := watch.NewWatcher(watchDebounce, func(paths []string) {
		slog.Info("change detected", "files", len(paths))
		runBatch()
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Watch(fs.WatchRoots(dataDir)); err != nil {
		return err
	}

	fmt.Printf("Watching %s for script changes. Press Ctrl-C to stop.\n", dataDir)
	<-ctx.Done()
	fmt.Println("\nStopped.")
	return nil
}
