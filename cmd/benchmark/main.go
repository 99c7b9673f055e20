package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"phg/internal/adapter/fs"
	"phg/internal/adapter/header"
	"phg/internal/adapter/papyrus"
)

func main() {
	dataPath := flag.String("data", ".", "Path to the game directory or its Data folder")
	runs := flag.Int("runs", 3, "Number of timed passes")
	flag.Parse()

	dataDir, err := fs.ResolveDataDir(*dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving data directory: %v\n", err)
		os.Exit(1)
	}

	scanner := fs.NewScanner(dataDir, nil, nil, nil)
	sources, err := scanner.FindSources()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning sources: %v\n", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		fmt.Println("No .psc sources found; nothing to measure.")
		os.Exit(1)
	}

	texts := make([]string, 0, len(sources))
	var totalBytes int64
	for _, src := range sources {
		text, err := fs.ReadSourceText(src.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", src.Path, err)
			continue
		}
		texts = append(texts, text)
		totalBytes += int64(len(text))
	}

	fmt.Println("PARSER BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Sources: %d (%.2f MB)\n", len(texts), float64(totalBytes)/(1024*1024))
	fmt.Println()

	parser := papyrus.New()
	for run := 1; run <= *runs; run++ {
		start := time.Now()
		parsed, failed := 0, 0
		var headerBytes int64

		for _, text := range texts {
			script, err := parser.Parse(text)
			if err != nil {
				failed++
				continue
			}
			parsed++
			headerBytes += int64(len(header.Render(script)))
		}

		elapsed := time.Since(start)
		rate := float64(parsed) / elapsed.Seconds()
		mbps := float64(totalBytes) / (1024 * 1024) / elapsed.Seconds()
		fmt.Printf("Run %d: %d parsed, %d failed in %v (%.0f scripts/s, %.1f MB/s, %d header bytes)\n",
			run, parsed, failed, elapsed.Round(time.Millisecond), rate, mbps, headerBytes)
	}
}
