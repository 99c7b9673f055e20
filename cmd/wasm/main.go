//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"phg/internal/adapter/header"
	"phg/internal/adapter/papyrus"
)

var parser = papyrus.New()

func main() {
	c := make(chan struct{})

	js.Global().Set("phgGenerate", js.FuncOf(generateHeader))
	js.Global().Set("phgParse", js.FuncOf(parseScript))

	<-c
}

// generateHeader renders the header stub for one script source.
func generateHeader(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: phgGenerate(source)")
	}

	script, err := parser.Parse(args[0].String())
	if err != nil {
		return makeError("parse failed: " + err.Error())
	}

	return makeResult(map[string]interface{}{
		"name":   script.Name,
		"header": header.Render(script),
	})
}

// parseScript exposes the declaration model itself.
func parseScript(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: phgParse(source)")
	}

	script, err := parser.Parse(args[0].String())
	if err != nil {
		return makeError("parse failed: " + err.Error())
	}

	result, err := json.Marshal(script)
	if err != nil {
		return makeError("encoding failed: " + err.Error())
	}
	return string(result)
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
