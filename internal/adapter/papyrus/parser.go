package papyrus

import (
	"log/slog"
	"regexp"
	"strings"

	"phg/internal/domain"
)

const (
	nativeMarker       = "native"
	globalVariableType = "GlobalVariable"
)

// Declaration patterns. Papyrus keywords are case-insensitive. The multi-line
// patterns use [ \t] rather than \s so a declaration never leaks across line
// boundaries; function and event patterns run against a single reassembled
// line, where \s is safe.
var (
	scriptnameRe = regexp.MustCompile(`(?im)^[ \t]*Scriptname[ \t]+(\w+)(?:[ \t]+extends[ \t]+(\w+))?(?:[ \t]+(Hidden|Conditional))?[ \t]*$`)

	functionStartRe = regexp.MustCompile(`(?i)^[ \t]*(?:\w+[ \t]+)?Function[ \t]+\w+`)
	functionRe      = regexp.MustCompile(`(?i)^\s*(?:(\w+)\s+)?Function\s+(\w+)\s*\((.*?)\)(?:\s+([\w \t]*\w))?\s*$`)

	eventStartRe = regexp.MustCompile(`(?i)^[ \t]*Event[ \t]+\w+`)
	eventRe      = regexp.MustCompile(`(?i)^\s*Event\s+(\w+)\s*\((.*?)\)\s*$`)

	propertyRe = regexp.MustCompile(`(?im)^[ \t]*(\w+)[ \t]+Property[ \t]+(\w+)(?:[ \t]*=[ \t]*[^;\r\n]*?)?(?:[ \t]+(Auto\w*))?[ \t]*$`)
)

// Parser turns Papyrus source text into a Script signature model. It holds no
// state beyond the package-level compiled patterns, so a single value is safe
// for concurrent use across files.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Parse preprocesses raw source text and extracts every recognizable
// declaration. It fails only when the text has no script header; malformed
// function, event, or property candidates are dropped individually.
func (p *Parser) Parse(raw string) (*domain.Script, error) {
	clean := Preprocess(raw)

	name, extends, flags, err := parseHeader(clean)
	if err != nil {
		return nil, err
	}

	return &domain.Script{
		Name:       name,
		Extends:    extends,
		Flags:      flags,
		Functions:  parseFunctions(clean),
		Events:     parseEvents(clean),
		Properties: parseProperties(clean),
	}, nil
}

// parseHeader finds the script declaration. The first matching line wins;
// later Scriptname lines are ignored.
func parseHeader(text string) (name, extends string, flags []string, err error) {
	m := scriptnameRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", nil, domain.ErrMissingScriptname
	}
	if m[3] != "" {
		flags = []string{m[3]}
	}
	return m[1], m[2], flags, nil
}

// collectDecl reassembles a declaration that wraps across physical lines,
// consuming lines from i until the accumulated text holds a closing
// parenthesis or input runs out. It returns the joined text and the index of
// the last line consumed, where scanning resumes.
func collectDecl(lines []string, i int) (string, int) {
	decl := strings.TrimSpace(lines[i])
	for !strings.Contains(decl, ")") && i+1 < len(lines) {
		i++
		decl += " " + strings.TrimSpace(lines[i])
	}
	return decl, i
}

// parseFunctions scans for function declarations, reassembling parameter lists
// that wrap across physical lines before matching the full pattern.
func parseFunctions(text string) []domain.FunctionSignature {
	var funcs []domain.FunctionSignature

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		if !functionStartRe.MatchString(lines[i]) {
			continue
		}
		var decl string
		decl, i = collectDecl(lines, i)

		sig, ok := parseFunction(decl)
		if !ok {
			slog.Debug("skipping malformed function declaration", "decl", decl)
			continue
		}
		funcs = append(funcs, sig)
	}

	return funcs
}

func parseFunction(decl string) (domain.FunctionSignature, bool) {
	m := functionRe.FindStringSubmatch(decl)
	if m == nil {
		return domain.FunctionSignature{}, false
	}
	flags := normalizeFunctionFlags(m[4])
	return domain.FunctionSignature{
		Name:       m[2],
		ReturnType: m[1],
		Parameters: splitParameters(m[3]),
		Flags:      flags,
		Native:     containsNative(flags),
	}, true
}

// normalizeFunctionFlags appends the native marker when the declaration lacks
// it. Emitted stubs carry no bodies, so the compiler has to treat every
// stubbed function as externally implemented.
func normalizeFunctionFlags(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case containsNative(raw):
		return raw
	case raw == "":
		return nativeMarker
	default:
		return raw + " " + nativeMarker
	}
}

func containsNative(flags string) bool {
	return strings.Contains(strings.ToLower(flags), nativeMarker)
}

// parseEvents scans for event declarations with the same line reassembly as
// parseFunctions. Events carry no return type and no flags.
func parseEvents(text string) []domain.EventSignature {
	var events []domain.EventSignature

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		if !eventStartRe.MatchString(lines[i]) {
			continue
		}
		var decl string
		decl, i = collectDecl(lines, i)

		m := eventRe.FindStringSubmatch(decl)
		if m == nil {
			slog.Debug("skipping malformed event declaration", "decl", decl)
			continue
		}
		events = append(events, domain.EventSignature{
			Name:       m[1],
			Parameters: splitParameters(m[2]),
		})
	}

	return events
}

// parseProperties matches single-line property declarations across the whole
// text and keeps only those a header stub can express: GlobalVariable
// properties and auto-storage properties. Script-backed properties need
// accessor bodies a stub cannot carry, so they are dropped.
func parseProperties(text string) []domain.PropertySignature {
	var props []domain.PropertySignature

	for _, m := range propertyRe.FindAllStringSubmatch(text, -1) {
		prop := domain.PropertySignature{Type: m[1], Name: m[2]}
		if m[3] != "" {
			prop.Flags = []string{m[3]}
		}
		if !stubbable(prop) {
			slog.Debug("skipping script-backed property", "name", prop.Name, "type", prop.Type)
			continue
		}
		props = append(props, prop)
	}

	return props
}

func stubbable(prop domain.PropertySignature) bool {
	if strings.EqualFold(prop.Type, globalVariableType) {
		return true
	}
	for _, f := range prop.Flags {
		if strings.Contains(strings.ToLower(f), "auto") {
			return true
		}
	}
	return false
}

// splitParameters splits parameter text on top-level commas. Parentheses track
// nesting depth so commas inside call-shaped default values do not split, and
// the parens themselves stay in the segment text.
func splitParameters(paramsText string) []string {
	if strings.TrimSpace(paramsText) == "" {
		return nil
	}

	var params []string
	var current strings.Builder
	depth := 0

	emit := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			params = append(params, s)
		}
		current.Reset()
	}

	for _, ch := range paramsText {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				emit()
				continue
			}
		}
		current.WriteRune(ch)
	}
	emit()

	return params
}
