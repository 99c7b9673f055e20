// Package fs discovers script sources and compiled artifacts inside a game
// data directory.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// Loose source locations in precedence order. The first directory holding a
// source for a given stem wins. "Souce" is a widespread typo in shipped mods,
// kept as a real search location.
var sourceSearchDirs = []string{
	filepath.Join("Source", "Scripts"),
	filepath.Join("Scripts", "Source"),
	filepath.Join("Scripts", "Souce"),
	"Scripts",
}

const compiledDir = "Scripts"

// SourceFile describes one discovered file. Stem is the lowercase base name
// without extension and is the identity scripts are matched on.
type SourceFile struct {
	Path    string
	Stem    string
	ModTime int64
	Size    int64
}

// ResolveDataDir normalizes a target path to the game Data directory: a path
// already named Data is used as-is, otherwise its Data child is used.
func ResolveDataDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if !strings.EqualFold(filepath.Base(abs), "Data") {
		abs = filepath.Join(abs, "Data")
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("data directory not found: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("data directory is not a directory: %s", abs)
	}
	return abs, nil
}

// Scanner walks the data directory for script files, applying doublestar
// include/exclude globs on paths relative to each search root and an optional
// name filter on stems.
type Scanner struct {
	dataDir  string
	includes []string
	excludes []string
	filter   *NameFilter
}

func NewScanner(dataDir string, includes, excludes []string, filter *NameFilter) *Scanner {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Scanner{
		dataDir:  dataDir,
		includes: includes,
		excludes: excludes,
		filter:   filter,
	}
}

func (s *Scanner) DataDir() string {
	return s.dataDir
}

// Filtered reports whether a name filter narrows this scanner's view.
func (s *Scanner) Filtered() bool {
	return !s.filter.Empty()
}

// MatchesFilter applies the scanner's name filter to a stem and path.
func (s *Scanner) MatchesFilter(stem, path string) bool {
	return s.filter.Match(stem, path)
}

// FindSources returns every loose .psc file under the source search paths,
// deduplicated by stem with earlier search paths taking precedence.
func (s *Scanner) FindSources() ([]SourceFile, error) {
	seen := make(map[string]bool)
	var files []SourceFile

	for _, rel := range sourceSearchDirs {
		found, err := s.walk(filepath.Join(s.dataDir, rel), ".psc")
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if seen[f.Stem] {
				continue
			}
			seen[f.Stem] = true
			files = append(files, f)
		}
	}

	return files, nil
}

// FindCompiled returns every .pex file under the Scripts directory,
// deduplicated by stem.
func (s *Scanner) FindCompiled() ([]SourceFile, error) {
	found, err := s.walk(filepath.Join(s.dataDir, compiledDir), ".pex")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var files []SourceFile
	for _, f := range found {
		if seen[f.Stem] {
			continue
		}
		seen[f.Stem] = true
		files = append(files, f)
	}
	return files, nil
}

// FindArchives returns the .bsa files directly under the data directory,
// sorted by name so archive precedence is stable across runs.
func (s *Scanner) FindArchives() ([]string, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, err
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".bsa") {
			archives = append(archives, filepath.Join(s.dataDir, entry.Name()))
		}
	}
	sort.Strings(archives)
	return archives, nil
}

func (s *Scanner) walk(root, ext string) ([]SourceFile, error) {
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, nil
	}

	var files []SourceFile
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if s.shouldExclude(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		if !s.shouldInclude(relPath) || s.shouldExclude(relPath) {
			return nil
		}

		stem := Stem(path)
		if !s.filter.Match(stem, path) {
			return nil
		}

		files = append(files, SourceFile{
			Path:    path,
			Stem:    stem,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})
		return nil
	})

	return files, err
}

func (s *Scanner) shouldInclude(path string) bool {
	for _, pattern := range s.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (s *Scanner) shouldExclude(path string) bool {
	for _, pattern := range s.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// WatchRoots returns the directories a watcher should observe for script
// changes. The compiled Scripts directory is among the source search paths,
// so .pex changes are covered too.
func WatchRoots(dataDir string) []string {
	roots := make([]string, 0, len(sourceSearchDirs))
	for _, rel := range sourceSearchDirs {
		roots = append(roots, filepath.Join(dataDir, rel))
	}
	return roots
}

// Stem returns the lowercase base name of a path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// ReadSourceText reads a script source file as UTF-8, falling back to Latin-1
// when the bytes are not valid UTF-8. Decoding never fails; only I/O errors
// are returned.
func ReadSourceText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(data), nil
}

// DecodeText converts raw script bytes to a string, treating invalid UTF-8 as
// Latin-1.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
