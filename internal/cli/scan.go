package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"phg/internal/adapter/fs"
)

var (
	scanPattern   string
	scanPatterns  string
	scanEnableBSA bool
	scanJSON      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Report where each script's source lives",
	Long: `Scan the data directory without generating anything and report, per
script, whether its source is a loose file, an archive entry, or missing.

Examples:
  phg scan .
  phg scan /games/skyrim --enable-bsa --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanPattern, "pattern", "p", "", "only scripts whose name matches this regular expression")
	scanCmd.Flags().StringVar(&scanPatterns, "patterns", "", "comma-separated list of name patterns")
	scanCmd.Flags().BoolVar(&scanEnableBSA, "enable-bsa", false, "look for sources inside BSA archives")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "output as JSON")
}

type scanRow struct {
	Script     string `json:"script"`
	Resolution string `json:"resolution"`
	Location   string `json:"location"`
}

func runScan(cmd *cobra.Command, args []string) error {
	dataDir, err := resolveTarget(args)
	if err != nil {
		return err
	}
	cfg := GetConfig()

	filter, err := buildNameFilter(scanPattern, scanPatterns)
	if err != nil {
		return err
	}
	scanner := fs.NewScanner(dataDir, cfg.Scan.Includes, cfg.Scan.Excludes, filter)

	catalog, err := openCatalog(scanner, scanEnableBSA)
	if err != nil {
		return err
	}
	if catalog != nil {
		defer catalog.Close()
	}

	sources, err := scanner.FindSources()
	if err != nil {
		return fmt.Errorf("failed to scan sources: %w", err)
	}
	compiled, err := scanner.FindCompiled()
	if err != nil {
		return fmt.Errorf("failed to scan compiled scripts: %w", err)
	}

	rows := []scanRow{}
	seen := make(map[string]bool)
	archived, missing := 0, 0

	for _, src := range sources {
		rows = append(rows, scanRow{Script: src.Stem, Resolution: "source", Location: src.Path})
		seen[src.Stem] = true
	}

	resolveCompiled := func(stem, location string) {
		if catalog != nil {
			if archive, ok := catalog.Find(stem + ".psc"); ok {
				rows = append(rows, scanRow{Script: stem, Resolution: "archive", Location: archive})
				archived++
				return
			}
		}
		rows = append(rows, scanRow{Script: stem, Resolution: "missing", Location: location})
		missing++
	}

	for _, pex := range compiled {
		if seen[pex.Stem] {
			continue
		}
		seen[pex.Stem] = true
		resolveCompiled(pex.Stem, pex.Path)
	}

	if catalog != nil {
		for _, name := range catalog.Entries(".pex") {
			stem := fs.Stem(name)
			if seen[stem] || !scanner.MatchesFilter(stem, name) {
				continue
			}
			seen[stem] = true
			resolveCompiled(stem, name)
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Script < rows[j].Script })

	if scanJSON {
		output, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(rows) == 0 {
		fmt.Println("No scripts found.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Script", "Resolution", "Location"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	for _, row := range rows {
		table.Append([]string{row.Script, row.Resolution, row.Location})
	}
	table.Render()

	fmt.Printf("\n%d scripts: %d loose sources, %d archived, %d missing\n",
		len(rows), len(sources), archived, missing)
	return nil
}
