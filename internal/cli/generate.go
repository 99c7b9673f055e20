package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"phg/config"
	"phg/internal/adapter/bsa"
	"phg/internal/adapter/decompiler"
	"phg/internal/adapter/fs"
	"phg/internal/adapter/header"
	"phg/internal/adapter/papyrus"
	"phg/internal/adapter/store"
	"phg/internal/port"
	"phg/internal/usecase"
)

var (
	genOutput       string
	genForce        bool
	genWorkers      int
	genMissingLog   string
	genPattern      string
	genPatterns     string
	genEnableBSA    bool
	genEnableDecomp bool
	genChampollion  string
)

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate header stubs for every script",
	Long: `Generate .psc header stubs for the scripts of a game Data directory.
Loose sources are used directly; compiled scripts without one fall back to
archived sources and, when enabled, decompilation.

Examples:
  phg generate .                          # Headers for ./Data into ./Headers
  phg generate /games/skyrim --enable-bsa # Also look inside BSA archives
  phg generate . -p "dlc.*quest" --force  # Regenerate a subset`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "output directory for headers (default from config)")
	generateCmd.Flags().BoolVarP(&genForce, "force", "f", false, "regenerate headers even when up to date")
	generateCmd.Flags().IntVar(&genWorkers, "workers", 0, "parallel workers (default one per CPU)")
	generateCmd.Flags().StringVar(&genMissingLog, "missing-log", "", "file recording scripts with no source (default from config)")
	generateCmd.Flags().StringVarP(&genPattern, "pattern", "p", "", "only scripts whose name matches this regular expression")
	generateCmd.Flags().StringVar(&genPatterns, "patterns", "", "comma-separated list of name patterns")
	generateCmd.Flags().BoolVar(&genEnableBSA, "enable-bsa", false, "look for sources inside BSA archives")
	generateCmd.Flags().BoolVar(&genEnableDecomp, "enable-decompile", false, "decompile scripts that have no source")
	generateCmd.Flags().StringVar(&genChampollion, "champollion", "", "path to the Champollion executable or its directory")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveTarget(args)
	if err != nil {
		return err
	}
	cfg := GetConfig()

	filter, err := buildNameFilter(genPattern, genPatterns)
	if err != nil {
		return err
	}
	scanner := fs.NewScanner(dataDir, cfg.Scan.Includes, cfg.Scan.Excludes, filter)

	catalog, err := openCatalog(scanner, genEnableBSA)
	if err != nil {
		return err
	}
	if catalog != nil {
		defer catalog.Close()
	}

	decomp := buildDecompiler(cmd.Context(), genEnableDecomp, genChampollion)

	manifest, err := openManifest(dataDir)
	if err != nil {
		return err
	}
	defer manifest.Close()

	outDir := cfg.Output.Dir
	if genOutput != "" {
		outDir = genOutput
	}
	writer, err := header.NewWriter(outDir)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	missingLog := cfg.Generate.MissingLog
	if genMissingLog != "" {
		missingLog = genMissingLog
	}
	workers := cfg.Generate.Workers
	if genWorkers > 0 {
		workers = genWorkers
	}

	uc := usecase.NewGenerateUseCase(scanner, papyrus.New(), writer, manifest, catalog, decomp)

	fmt.Printf("Scanning %s...\n", dataDir)

	// Progress bar (initialized once the total is known)
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time
	var initialized bool

	progressCallback := func(done, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Generating[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}

		bar.Set(done)

		if done > 0 {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			remaining := total - done
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Generating[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	result, err := uc.Run(cmd.Context(), usecase.GenerateOptions{
		Force:      genForce,
		Workers:    workers,
		MissingLog: missingLog,
		Progress:   progressCallback,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if result.Sources == 0 && result.Compiled == 0 {
		fmt.Println("No scripts found.")
		return nil
	}

	printSummary(result, outDir, missingLog)
	return nil
}

func printSummary(result *usecase.GenerateResult, outDir, missingLog string) {
	fmt.Printf("\nGeneration complete:\n")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Append([]string{"Sources found", strconv.Itoa(result.Sources)})
	table.Append([]string{"Compiled scripts", strconv.Itoa(result.Compiled)})
	table.Append([]string{"Headers written", strconv.Itoa(result.Written)})
	table.Append([]string{"Skipped (unchanged)", strconv.Itoa(result.Skipped)})
	table.Append([]string{"Missing sources", strconv.Itoa(len(result.Missing))})
	table.Append([]string{"Failed", strconv.Itoa(len(result.Errors))})
	if result.Pruned > 0 {
		table.Append([]string{"Stale records pruned", strconv.Itoa(result.Pruned)})
	}
	table.Render()

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if len(result.Missing) > 0 && missingLog != "" {
		fmt.Printf("\nMissing sources logged to: %s\n", missingLog)
	}

	fmt.Printf("\nHeaders stored in: %s\n", outDir)
}

// resolveTarget turns the optional positional path into the data directory.
func resolveTarget(args []string) (string, error) {
	path := GetBaseDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid path: %w", err)
		}
	}
	return fs.ResolveDataDir(path)
}

// buildNameFilter combines configured name patterns with any command-line
// override; flags replace the config list.
func buildNameFilter(patternFlag, patternsFlag string) (*fs.NameFilter, error) {
	patterns := GetConfig().Scan.Names
	if patternFlag != "" {
		patterns = []string{patternFlag}
	}
	if patternsFlag != "" {
		patterns = strings.Split(patternsFlag, ",")
	}
	return fs.NewNameFilter(patterns)
}

// openCatalog opens the configured archives, or every .bsa in the data
// directory when none are named. A nil catalog means archive reading is off.
func openCatalog(scanner *fs.Scanner, enabledFlag bool) (port.ArchiveCatalog, error) {
	cfg := GetConfig()
	if !enabledFlag && !cfg.Archives.Enabled {
		return nil, nil
	}

	paths := make([]string, 0, len(cfg.Archives.Files))
	for _, p := range cfg.Archives.Files {
		if !filepath.IsAbs(p) {
			p = filepath.Join(scanner.DataDir(), p)
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		var err error
		paths, err = scanner.FindArchives()
		if err != nil {
			return nil, fmt.Errorf("failed to list archives: %w", err)
		}
	}
	if len(paths) == 0 {
		slog.Info("archive reading enabled but no archives found", "dir", scanner.DataDir())
		return nil, nil
	}

	catalog, err := bsa.OpenCatalog(paths)
	if err != nil {
		return nil, fmt.Errorf("failed to open archives: %w", err)
	}
	slog.Debug("opened archives", "count", len(paths))
	return catalog, nil
}

// buildDecompiler resolves Champollion. An unavailable decompiler downgrades
// to a warning; affected scripts end up in the missing list.
func buildDecompiler(ctx context.Context, enabledFlag bool, pathFlag string) port.Decompiler {
	cfg := GetConfig()
	if !enabledFlag && !cfg.Decompiler.Enabled {
		return nil
	}

	path := cfg.Decompiler.Path
	if pathFlag != "" {
		path = pathFlag
	}
	timeout := time.Duration(cfg.Decompiler.TimeoutSeconds) * time.Second

	champ, err := decompiler.New(path, timeout)
	if err != nil {
		slog.Warn("decompiler unavailable", "error", err)
		return nil
	}
	if err := champ.Probe(ctx); err != nil {
		slog.Warn("decompiler failed its probe", "error", err)
		return nil
	}
	slog.Debug("decompiler ready", "path", champ.Path())
	return champ
}

func openManifest(dataDir string) (*store.Manifest, error) {
	if err := config.EnsureStateDir(dataDir); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	manifest, err := store.NewManifest(config.ManifestPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	return manifest, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
