package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"phg/internal/adapter/fs"
	"phg/internal/adapter/header"
	"phg/internal/adapter/papyrus"
	"phg/internal/adapter/store"
	"phg/internal/domain"
	"phg/internal/port"
)

// GenerateUseCase drives header generation: source discovery, parsing, stub
// emission and manifest bookkeeping.
type GenerateUseCase struct {
	scanner  *fs.Scanner
	parser   *papyrus.Parser
	writer   *header.Writer
	manifest *store.Manifest
	archives port.ArchiveCatalog // nil when archive reading is disabled
	decomp   port.Decompiler     // nil when decompilation is disabled
}

// NewGenerateUseCase creates a new generate use case. archives and decomp may
// be nil; compiled scripts that would need them are then recorded as missing.
func NewGenerateUseCase(
	scanner *fs.Scanner,
	parser *papyrus.Parser,
	writer *header.Writer,
	manifest *store.Manifest,
	archives port.ArchiveCatalog,
	decomp port.Decompiler,
) *GenerateUseCase {
	return &GenerateUseCase{
		scanner:  scanner,
		parser:   parser,
		writer:   writer,
		manifest: manifest,
		archives: archives,
		decomp:   decomp,
	}
}

// GenerateOptions controls one batch run.
type GenerateOptions struct {
	// Force regenerates headers even when the manifest says they are current.
	Force bool
	// Workers bounds the worker pool; zero or less means NumCPU.
	Workers int
	// MissingLog, when set, receives one line per script that has no source.
	MissingLog string
	// Progress, when set, is called after each script is handled. Calls are
	// serialized.
	Progress func(done, total int)
}

// GenerateResult contains the results of a generation run.
type GenerateResult struct {
	Sources  int
	Compiled int
	Written  int
	Skipped  int
	Pruned   int
	Missing  []string
	Errors   []string
}

// pexCandidate is a compiled script with no loose source next to it. Exactly
// one of loosePath and archiveEntry is set.
type pexCandidate struct {
	stem         string
	loosePath    string
	archiveEntry string
	modTime      int64
}

// Run generates headers for every script the scanner finds. Loose sources are
// handled first; compiled scripts without one are resolved through the
// archive catalog and the decompiler. Per-script failures land in the result,
// they never abort the batch.
func (u *GenerateUseCase) Run(ctx context.Context, opts GenerateOptions) (*GenerateResult, error) {
	result := &GenerateResult{}

	sources, err := u.scanner.FindSources()
	if err != nil {
		return nil, fmt.Errorf("failed to scan sources: %w", err)
	}
	compiled, err := u.scanner.FindCompiled()
	if err != nil {
		return nil, fmt.Errorf("failed to scan compiled scripts: %w", err)
	}
	result.Sources = len(sources)

	hasSource := make(map[string]bool, len(sources))
	for _, src := range sources {
		hasSource[src.Stem] = true
	}

	candidates := u.collectCandidates(compiled, hasSource)
	result.Compiled = len(compiled)

	tmpDir := ""
	if u.decomp != nil && len(candidates) > 0 {
		tmpDir, err = os.MkdirTemp("", "phg-decompile-")
		if err != nil {
			return nil, fmt.Errorf("failed to create scratch directory: %w", err)
		}
		defer os.RemoveAll(tmpDir)
	}

	total := len(sources) + len(candidates)
	done := 0
	var mu sync.Mutex
	records := make(map[string]store.Record)

	step := func(update func()) {
		mu.Lock()
		defer mu.Unlock()
		update()
		done++
		if opts.Progress != nil {
			opts.Progress(done, total)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// Phase 1: loose sources.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u.processSource(src, opts, step, result, records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Phase 2: compiled scripts without a loose source.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, cand := range candidates {
		cand := cand
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u.processCandidate(gctx, cand, opts, tmpDir, step, result, records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(result.Missing)
	if err := u.writeMissingLog(opts.MissingLog, result.Missing); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to write missing log: %v", err))
	}

	if err := u.manifest.PutAll(records); err != nil {
		return nil, fmt.Errorf("failed to update manifest: %w", err)
	}

	// A filtered run sees a partial view of the data directory; records
	// outside the filter stay untouched.
	if !u.scanner.Filtered() {
		live := make(map[string]bool, len(hasSource)+len(candidates))
		for stem := range hasSource {
			live[stem] = true
		}
		for _, cand := range candidates {
			live[cand.stem] = true
		}
		pruned, err := u.manifest.Prune(live)
		if err != nil {
			return nil, fmt.Errorf("failed to prune manifest: %w", err)
		}
		result.Pruned = pruned
	}

	return result, nil
}

// collectCandidates pairs loose compiled scripts, and compiled scripts that
// exist only inside archives, against the set of known loose sources.
func (u *GenerateUseCase) collectCandidates(compiled []fs.SourceFile, hasSource map[string]bool) []pexCandidate {
	var candidates []pexCandidate
	seen := make(map[string]bool)

	for _, pex := range compiled {
		if hasSource[pex.Stem] {
			continue
		}
		seen[pex.Stem] = true
		candidates = append(candidates, pexCandidate{
			stem:      pex.Stem,
			loosePath: pex.Path,
			modTime:   pex.ModTime,
		})
	}

	if u.archives == nil {
		return candidates
	}
	for _, name := range u.archives.Entries(".pex") {
		stem := fs.Stem(name)
		if hasSource[stem] || seen[stem] {
			continue
		}
		if !u.scanner.MatchesFilter(stem, name) {
			continue
		}
		seen[stem] = true
		candidates = append(candidates, pexCandidate{
			stem:         stem,
			archiveEntry: name,
		})
	}
	return candidates
}

// upToDate reports whether the manifest already covers this stem at the given
// mod time and the recorded header file still exists.
func (u *GenerateUseCase) upToDate(stem string, modTime int64) bool {
	rec, found, err := u.manifest.Get(stem)
	if err != nil || !found {
		return false
	}
	if rec.SourceMod < modTime {
		return false
	}
	_, statErr := os.Stat(rec.HeaderPath)
	return statErr == nil
}

func (u *GenerateUseCase) processSource(
	src fs.SourceFile,
	opts GenerateOptions,
	step func(func()),
	result *GenerateResult,
	records map[string]store.Record,
) {
	if !opts.Force && u.upToDate(src.Stem, src.ModTime) {
		step(func() { result.Skipped++ })
		return
	}

	text, err := fs.ReadSourceText(src.Path)
	if err != nil {
		step(func() {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to read %s: %v", src.Path, err))
		})
		return
	}

	script, err := u.parser.Parse(text)
	if err != nil {
		step(func() {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to parse %s: %v", src.Path, err))
		})
		return
	}

	headerPath, err := u.writer.Write(script)
	if err != nil {
		step(func() {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to write header for %s: %v", src.Path, err))
		})
		return
	}

	step(func() {
		result.Written++
		records[src.Stem] = store.Record{
			SourcePath:  src.Path,
			SourceMod:   src.ModTime,
			HeaderPath:  headerPath,
			GeneratedAt: time.Now().Unix(),
		}
	})
}

func (u *GenerateUseCase) processCandidate(
	ctx context.Context,
	cand pexCandidate,
	opts GenerateOptions,
	tmpDir string,
	step func(func()),
	result *GenerateResult,
	records map[string]store.Record,
) {
	if !opts.Force && u.upToDate(cand.stem, cand.modTime) {
		step(func() { result.Skipped++ })
		return
	}

	script, sourceLabel, err := u.resolveCandidate(ctx, cand, tmpDir)
	if err != nil {
		step(func() {
			result.Errors = append(result.Errors, err.Error())
		})
		return
	}
	if script == nil {
		step(func() { result.Missing = append(result.Missing, cand.stem) })
		return
	}

	headerPath, err := u.writer.Write(script)
	if err != nil {
		step(func() {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to write header for %s: %v", sourceLabel, err))
		})
		return
	}

	step(func() {
		result.Written++
		records[cand.stem] = store.Record{
			SourcePath:  sourceLabel,
			SourceMod:   cand.modTime,
			HeaderPath:  headerPath,
			GeneratedAt: time.Now().Unix(),
		}
	})
}

// resolveCandidate recovers source text for a compiled script: an archived
// .psc first, then decompilation of the loose or archived .pex. A nil script
// with nil error means no producer could supply source.
func (u *GenerateUseCase) resolveCandidate(ctx context.Context, cand pexCandidate, tmpDir string) (*domain.Script, string, error) {
	if u.archives != nil {
		pscName := cand.stem + ".psc"
		if archive, ok := u.archives.Find(pscName); ok {
			label := archive + "::" + pscName
			data, err := u.archives.Extract(pscName)
			if err != nil {
				return nil, "", fmt.Errorf("failed to extract %s: %v", label, err)
			}
			script, err := u.parser.Parse(fs.DecodeText(data))
			if err != nil {
				return nil, "", fmt.Errorf("failed to parse %s: %v", label, err)
			}
			return script, label, nil
		}
	}

	if u.decomp == nil {
		return nil, "", nil
	}

	pexPath := cand.loosePath
	if pexPath == "" {
		data, err := u.archives.Extract(cand.archiveEntry)
		if err != nil {
			return nil, "", fmt.Errorf("failed to extract %s: %v", cand.archiveEntry, err)
		}
		pexPath = filepath.Join(tmpDir, filepath.Base(cand.archiveEntry))
		if err := os.WriteFile(pexPath, data, 0644); err != nil {
			return nil, "", fmt.Errorf("failed to stage %s: %v", cand.archiveEntry, err)
		}
	}

	pscPath, err := u.decomp.Decompile(ctx, pexPath, tmpDir)
	if err != nil {
		slog.Warn("decompilation failed", "pex", pexPath, "error", err)
		return nil, "", nil
	}
	text, err := fs.ReadSourceText(pscPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read decompiled %s: %v", pscPath, err)
	}
	script, err := u.parser.Parse(text)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse decompiled %s: %v", pexPath, err)
	}
	return script, pexPath, nil
}

// writeMissingLog records scripts with no source, one stem per line. A stale
// log from an earlier run is removed when nothing is missing now.
func (u *GenerateUseCase) writeMissingLog(path string, missing []string) error {
	if path == "" {
		return nil
	}
	if len(missing) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(missing, "\n")+"\n"), 0644)
}
