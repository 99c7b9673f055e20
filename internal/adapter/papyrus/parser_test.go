package papyrus

import (
	"errors"
	"reflect"
	"testing"

	"phg/internal/domain"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		input   string
		name    string
		extends string
		flags   []string
	}{
		{"Scriptname Foo", "Foo", "", nil},
		{"scriptname foo extends bar", "foo", "bar", nil},
		{"Scriptname Foo extends Bar Hidden", "Foo", "Bar", []string{"Hidden"}},
		{"ScriptName Widget Conditional", "Widget", "", []string{"Conditional"}},
		{"  Scriptname Indented extends Base", "Indented", "Base", nil},
	}

	p := New()
	for _, tt := range tests {
		script, err := p.Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.input, err)
		}
		if script.Name != tt.name {
			t.Errorf("Parse(%q) name = %q, want %q", tt.input, script.Name, tt.name)
		}
		if script.Extends != tt.extends {
			t.Errorf("Parse(%q) extends = %q, want %q", tt.input, script.Extends, tt.extends)
		}
		if !reflect.DeepEqual(script.Flags, tt.flags) {
			t.Errorf("Parse(%q) flags = %v, want %v", tt.input, script.Flags, tt.flags)
		}
	}
}

func TestParseMissingScriptname(t *testing.T) {
	p := New()

	_, err := p.Parse("Function DoStuff()\nEndFunction\n")
	if !errors.Is(err, domain.ErrMissingScriptname) {
		t.Errorf("expected ErrMissingScriptname, got %v", err)
	}
}

func TestParseFirstScriptnameWins(t *testing.T) {
	p := New()

	script, err := p.Parse("Scriptname First extends A\nScriptname Second extends B\n")
	if err != nil {
		t.Fatal(err)
	}
	if script.Name != "First" || script.Extends != "A" {
		t.Errorf("expected First/A, got %s/%s", script.Name, script.Extends)
	}
}

func TestParseFunctions(t *testing.T) {
	src := `Scriptname Funcs

Function Simple()
EndFunction

Int Function GetCount() Global
EndFunction

Function Delayed(Float afSeconds = 1.5) native

Bool Function Compare(Int a, Int b = Max(1, 2)) Global Native
EndFunction
`

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Functions) != 4 {
		t.Fatalf("expected 4 functions, got %d: %v", len(script.Functions), script.Functions)
	}

	want := []domain.FunctionSignature{
		{Name: "Simple", ReturnType: "", Parameters: nil, Flags: "native", Native: true},
		{Name: "GetCount", ReturnType: "Int", Parameters: nil, Flags: "Global native", Native: true},
		{Name: "Delayed", ReturnType: "", Parameters: []string{"Float afSeconds = 1.5"}, Flags: "native", Native: true},
		{Name: "Compare", ReturnType: "Bool", Parameters: []string{"Int a", "Int b = Max(1, 2)"}, Flags: "Global Native", Native: true},
	}
	for i, w := range want {
		if !reflect.DeepEqual(script.Functions[i], w) {
			t.Errorf("function %d = %+v, want %+v", i, script.Functions[i], w)
		}
	}
}

func TestParseFunctionNativeAlwaysSet(t *testing.T) {
	src := "Scriptname N\nFunction NoMarker(Int a)\nEndFunction\n"

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(script.Functions))
	}
	fn := script.Functions[0]
	if !fn.Native {
		t.Error("expected Native to be set on a stubbed function")
	}
	if fn.Flags != "native" {
		t.Errorf("expected flags %q, got %q", "native", fn.Flags)
	}
}

func TestParseFunctionMultiline(t *testing.T) {
	src := `Scriptname M
Function Configure(Int width,
    Int height,
    Bool fullscreen = false) Global
EndFunction
`

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(script.Functions))
	}

	fn := script.Functions[0]
	if fn.Name != "Configure" {
		t.Errorf("expected Configure, got %s", fn.Name)
	}
	wantParams := []string{"Int width", "Int height", "Bool fullscreen = false"}
	if !reflect.DeepEqual(fn.Parameters, wantParams) {
		t.Errorf("parameters = %v, want %v", fn.Parameters, wantParams)
	}
	if fn.Flags != "Global native" {
		t.Errorf("flags = %q, want %q", fn.Flags, "Global native")
	}
}

func TestParseFunctionContinuation(t *testing.T) {
	src := "Scriptname C\nFunction Wrapped(Int a, \\\nInt b) native\n"

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(script.Functions))
	}
	wantParams := []string{"Int a", "Int b"}
	if !reflect.DeepEqual(script.Functions[0].Parameters, wantParams) {
		t.Errorf("parameters = %v, want %v", script.Functions[0].Parameters, wantParams)
	}
}

func TestParseFunctionMalformedDropped(t *testing.T) {
	// No closing parenthesis anywhere: the candidate is dropped without error.
	src := "Scriptname B\nFunction Broken\n"

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Functions) != 0 {
		t.Errorf("expected no functions, got %v", script.Functions)
	}
}

func TestParseEvents(t *testing.T) {
	src := `Scriptname E
Event OnInit()
EndEvent

Event OnHit(ObjectReference akAggressor, Form akSource)
EndEvent

Event Broken(Int a) extra
`

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(script.Events), script.Events)
	}

	if script.Events[0].Name != "OnInit" || script.Events[0].Parameters != nil {
		t.Errorf("unexpected first event: %+v", script.Events[0])
	}
	wantParams := []string{"ObjectReference akAggressor", "Form akSource"}
	if script.Events[1].Name != "OnHit" || !reflect.DeepEqual(script.Events[1].Parameters, wantParams) {
		t.Errorf("unexpected second event: %+v", script.Events[1])
	}
}

func TestParseEventMultiline(t *testing.T) {
	src := "Scriptname E\nEvent OnMenuOpen(String menuName,\nBool opening)\nEndEvent\n"

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(script.Events))
	}
	wantParams := []string{"String menuName", "Bool opening"}
	if !reflect.DeepEqual(script.Events[0].Parameters, wantParams) {
		t.Errorf("parameters = %v, want %v", script.Events[0].Parameters, wantParams)
	}
}

func TestParseProperties(t *testing.T) {
	src := `Scriptname P
Int Property Health = 100 Auto
Int Property Hidden
Int Property Hidden Auto
GlobalVariable Property GameDaysPassed
Actor Property PlayerRef Auto
Float Property Speed = 5.0
String Property Title = "The One" Auto
Int Property Threshold = Clamp(1, 10) AutoReadOnly
`

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.PropertySignature{
		{Name: "Health", Type: "Int", Flags: []string{"Auto"}},
		{Name: "Hidden", Type: "Int", Flags: []string{"Auto"}},
		{Name: "GameDaysPassed", Type: "GlobalVariable", Flags: nil},
		{Name: "PlayerRef", Type: "Actor", Flags: []string{"Auto"}},
		{Name: "Title", Type: "String", Flags: []string{"Auto"}},
		{Name: "Threshold", Type: "Int", Flags: []string{"AutoReadOnly"}},
	}
	if !reflect.DeepEqual(script.Properties, want) {
		t.Errorf("properties = %+v, want %+v", script.Properties, want)
	}
}

func TestParsePropertyDropsScriptBacked(t *testing.T) {
	// Properties without auto storage need accessor bodies, so they cannot
	// appear in a header stub.
	src := "Scriptname P\nFloat Property internalTimer\nInt Property Counter = 3\n"

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(script.Properties) != 0 {
		t.Errorf("expected no properties, got %+v", script.Properties)
	}
}

func TestParseCaseInsensitiveKeywords(t *testing.T) {
	src := "scriptname lower extends base hidden\nint function f() NATIVE\nevent oninit()\nint property p auto\n"

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if script.Name != "lower" || len(script.Flags) != 1 || script.Flags[0] != "hidden" {
		t.Errorf("unexpected header: %+v", script)
	}
	if len(script.Functions) != 1 || script.Functions[0].Flags != "NATIVE" || !script.Functions[0].Native {
		t.Errorf("unexpected functions: %+v", script.Functions)
	}
	if len(script.Events) != 1 || script.Events[0].Name != "oninit" {
		t.Errorf("unexpected events: %+v", script.Events)
	}
	if len(script.Properties) != 1 || script.Properties[0].Flags[0] != "auto" {
		t.Errorf("unexpected properties: %+v", script.Properties)
	}
}

func TestSplitParameters(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"   ", nil},
		{"Int a", []string{"Int a"}},
		{"Int a, Bool b", []string{"Int a", "Bool b"}},
		{"Int x = foo(1,2), string s", []string{"Int x = foo(1,2)", "string s"}},
		{"a As Int, b As Float = foo(1,2)", []string{"a As Int", "b As Float = foo(1,2)"}},
		{"Form f = Game.GetForm(0x1, 0x2), Int n = 3", []string{"Form f = Game.GetForm(0x1, 0x2)", "Int n = 3"}},
		{"a,,b", []string{"a", "b"}},
	}

	for _, tt := range tests {
		got := splitParameters(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitParameters(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseFullScript(t *testing.T) {
	src := `; Device controller for powered contraptions.
Scriptname DeviceController extends ObjectReference Conditional

;/ Maintains charge state and forwards activation
   to the linked reference. /;

Import Utility

GlobalVariable Property GameHour Auto
Actor Property PlayerRef Auto
Int Property ChargeLevel = 100 Auto
Float Property internalTimer ; script-backed

Event OnInit()
    RegisterForSingleUpdate(5.0)
EndEvent

Event OnActivate(ObjectReference akActionRef)
    Activate(akActionRef)
EndEvent

Bool Function TryCharge(Int amount, \
                        Bool force = false) Global
    Return true
EndFunction

Function Reset() native

String Function DescribeState(Int verbosity = GetDefault(1, 2))
    Return ""
EndFunction
`

	script, err := New().Parse(src)
	if err != nil {
		t.Fatal(err)
	}

	if script.Name != "DeviceController" || script.Extends != "ObjectReference" {
		t.Errorf("unexpected header: %s extends %s", script.Name, script.Extends)
	}
	if len(script.Flags) != 1 || script.Flags[0] != "Conditional" {
		t.Errorf("unexpected script flags: %v", script.Flags)
	}

	wantProps := []string{"GameHour", "PlayerRef", "ChargeLevel"}
	if len(script.Properties) != len(wantProps) {
		t.Fatalf("expected %d properties, got %d: %+v", len(wantProps), len(script.Properties), script.Properties)
	}
	for i, name := range wantProps {
		if script.Properties[i].Name != name {
			t.Errorf("property %d = %s, want %s", i, script.Properties[i].Name, name)
		}
	}

	wantEvents := []string{"OnInit", "OnActivate"}
	if len(script.Events) != len(wantEvents) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantEvents), len(script.Events), script.Events)
	}
	for i, name := range wantEvents {
		if script.Events[i].Name != name {
			t.Errorf("event %d = %s, want %s", i, script.Events[i].Name, name)
		}
	}

	wantFuncs := []string{"TryCharge", "Reset", "DescribeState"}
	if len(script.Functions) != len(wantFuncs) {
		t.Fatalf("expected %d functions, got %d: %+v", len(wantFuncs), len(script.Functions), script.Functions)
	}
	for i, name := range wantFuncs {
		if script.Functions[i].Name != name {
			t.Errorf("function %d = %s, want %s", i, script.Functions[i].Name, name)
		}
	}

	charge := script.Functions[0]
	if !reflect.DeepEqual(charge.Parameters, []string{"Int amount", "Bool force = false"}) {
		t.Errorf("unexpected TryCharge parameters: %v", charge.Parameters)
	}
	if charge.Flags != "Global native" {
		t.Errorf("unexpected TryCharge flags: %q", charge.Flags)
	}
	describe := script.Functions[2]
	if !reflect.DeepEqual(describe.Parameters, []string{"Int verbosity = GetDefault(1, 2)"}) {
		t.Errorf("unexpected DescribeState parameters: %v", describe.Parameters)
	}
}
