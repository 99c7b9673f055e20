package domain

import "errors"

// ErrMissingScriptname is returned when a source file contains no Scriptname
// declaration. It is fatal for that file only; batch callers record it and
// move on.
var ErrMissingScriptname = errors.New("missing Scriptname declaration")

// Script is the parsed view of one Papyrus source file: the script header plus
// every declaration the header generator needs to stub it. It is assembled in
// one pass and never mutated afterwards.
type Script struct {
	Name       string
	Extends    string
	Flags      []string
	Functions  []FunctionSignature
	Events     []EventSignature
	Properties []PropertySignature
}

// FunctionSignature is a single function declaration. Parameters hold the raw
// declared text of each parameter (type, name, optional default) unparsed.
// Flags keeps the trailing modifier text verbatim; the vocabulary is open-ended
// and only passed through to the emitted stub.
type FunctionSignature struct {
	Name       string
	ReturnType string // empty means no return value
	Parameters []string
	Flags      string
	Native     bool
}

// EventSignature is a single event declaration. Events carry no return type
// and no modifier flags.
type EventSignature struct {
	Name       string
	Parameters []string
}

// PropertySignature is a single property declaration. Only auto-storage
// properties (and GlobalVariable properties) survive into a Script; everything
// else needs accessor bodies that a stub cannot reproduce.
type PropertySignature struct {
	Name  string
	Type  string
	Flags []string
}
