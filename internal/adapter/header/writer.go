// Package header renders Script signature models into Papyrus header stubs
// and writes them out as .psc files.
package header

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"phg/internal/domain"
)

// Writer emits header stubs into a single flat output directory. Files are
// named after the script declaration, not the source file, and existing files
// are overwritten.
type Writer struct {
	dir string
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write renders the script and writes <Name>.psc under the output directory,
// returning the written path.
func (w *Writer) Write(script *domain.Script) (string, error) {
	path := filepath.Join(w.dir, script.Name+".psc")
	if err := os.WriteFile(path, []byte(Render(script)), 0644); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	return path, nil
}

// Render produces the header stub text for a script. The output is a pure
// function of the model: scriptname line, blank line, properties (followed by
// a blank line when present), functions, then events, with one blank line
// separating the function and event groups when both are present. Property
// default values are never emitted.
func Render(script *domain.Script) string {
	headerLine := "Scriptname " + script.Name
	if script.Extends != "" {
		headerLine += " extends " + script.Extends
	}
	if len(script.Flags) > 0 {
		headerLine += " " + strings.Join(script.Flags, " ")
	}

	lines := []string{headerLine, ""}

	if len(script.Properties) > 0 {
		for _, prop := range script.Properties {
			lines = append(lines, renderProperty(prop))
		}
		lines = append(lines, "")
	}

	for _, fn := range script.Functions {
		lines = append(lines, renderFunction(fn))
	}
	if len(script.Functions) > 0 && len(script.Events) > 0 {
		lines = append(lines, "")
	}
	for _, ev := range script.Events {
		lines = append(lines, renderEvent(ev))
	}

	return strings.Join(lines, "\n") + "\n"
}

func renderProperty(prop domain.PropertySignature) string {
	line := prop.Type + " Property " + prop.Name
	if len(prop.Flags) > 0 {
		line += " " + strings.Join(prop.Flags, " ")
	}
	return line
}

func renderFunction(fn domain.FunctionSignature) string {
	line := "Function " + fn.Name + "(" + strings.Join(fn.Parameters, ", ") + ")"
	if fn.ReturnType != "" {
		line = fn.ReturnType + " " + line
	}
	if fn.Flags != "" {
		line += " " + fn.Flags
	}
	return line
}

func renderEvent(ev domain.EventSignature) string {
	return "Event " + ev.Name + "(" + strings.Join(ev.Parameters, ", ") + ")"
}
