package core

import (
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"skeditor/internal/types"
)

type fieldSection int

const (
	sectionNone fieldSection = iota
	sectionParameters
	sectionState
	sectionInput
)

// classifierToken matches, in order of alternation: a struct section header
// with its terminator, a floating-point field declaration, or a closing
// brace. A header terminated by ';' is a forward declaration and does not
// open a section.
var classifierToken = regexp.MustCompile(
	`typedef\s+struct\s+(parameters?|state|input)\b[^{;]*([{;])` +
		`|\b(?:long\s+double|double|float)\s+([A-Za-z_]\w*)\s*;` +
		`|\}`)

var stepFunctionStart = regexp.MustCompile(`(?m)^[ \t]*(?:struct[ \t]+)?state[ \t]+ctrlStep[ \t]*\(`)

// ClassifyGeneratedCode extracts the parameter, state and input field names
// declared by translator output together with the control-step function and
// everything after it.
func ClassifyGeneratedCode(code string) (types.ControllerModel, error) {
	var model types.ControllerModel
	seen := map[fieldSection]map[string]bool{
		sectionParameters: {},
		sectionState:      {},
		sectionInput:      {},
	}
	current := sectionNone
	for _, match := range classifierToken.FindAllStringSubmatch(code, -1) {
		switch {
		case match[1] != "":
			if match[2] == "{" {
				current = sectionFor(match[1])
			}
		case match[3] != "":
			if current == sectionNone || seen[current][match[3]] {
				continue
			}
			seen[current][match[3]] = true
			switch current {
			case sectionParameters:
				model.Parameters = append(model.Parameters, match[3])
			case sectionState:
				model.State = append(model.State, match[3])
			case sectionInput:
				model.Input = append(model.Input, match[3])
			}
		default:
			current = sectionNone
		}
	}

	loc := stepFunctionStart.FindStringIndex(code)
	if loc == nil {
		return types.ControllerModel{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("generated code has no ctrlStep function")
	}
	model.StepFunction = strings.TrimLeft(code[loc[0]:], " \t")
	return model, nil
}

func sectionFor(name string) fieldSection {
	switch name {
	case "parameter", "parameters":
		return sectionParameters
	case "state":
		return sectionState
	default:
		return sectionInput
	}
}
