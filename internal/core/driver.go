package core

import (
	"bytes"
	"regexp"
	"text/template"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"skeditor/internal/types"
)

// The generated step function declares its result as the lower-case struct
// tag; the driver declares the typedef, so the local is renamed.
var stepLocalDeclaration = regexp.MustCompile(`\bstate\s+state\s*;`)

const driverSource = `#include "Skill.h"
#include <string>
#include <iostream>
#include <math.h>
#include <stdbool.h>

typedef struct parameters {
{{- range .Model.Parameters}}
  long double {{.}};
{{- end}}
} Parameters;

typedef struct state {
{{- range .Model.State}}
  long double {{.}};
{{- end}}
} State;

typedef struct input {
{{- range .Model.Input}}
  long double {{.}};
{{- end}}
} Input;

/* START OF GENERATED CONTROLLER CODE */
{{.StepFunction}}
/* END OF GENERATED CONTROLLER CODE */

int main(int argc, const char **argv) {
  parameters params;
  state states;
  input inputs;
{{range .Bindings}}
  params.{{.Name}} = {{.Value}};
{{- end}}

  init({{printf "%q" .SkillName}});
{{- range .Exposed}}
  registerInputVar({{printf "%q" .}}, &params.{{.}});
{{- end}}
{{- range .Model.State}}
  registerInputVar({{printf "%q" .}}, &states.{{.}});
{{- end}}
{{- range .Model.Input}}
  registerInputVar({{printf "%q" .}}, &inputs.{{.}});
{{- end}}
{{- range .Model.State}}
  registerOutputVar({{printf "%q" .}}, &states.{{.}});
{{- end}}

  while (loop()) {
    states = ctrlStep(states, &params, &inputs);
  }
  return 0;
}
`

var driverTemplate = template.Must(template.New("main.cpp").Parse(driverSource))

type driverData struct {
	SkillName    string
	Model        types.ControllerModel
	StepFunction string
	Bindings     []types.ParameterBinding
	Exposed      []string
}

// RenderDriver produces the main.cpp of a generated project: typedefs for
// the classified fields, the verbatim step function, and a main that binds
// parameters, registers variables and loops the controller.
func RenderDriver(skillName string, model types.ControllerModel, bindings []types.ParameterBinding) ([]byte, error) {
	data := driverData{
		SkillName:    skillName,
		Model:        model,
		StepFunction: stepLocalDeclaration.ReplaceAllString(model.StepFunction, "State state;"),
		Bindings:     bindings,
	}
	for _, binding := range bindings {
		if binding.Exposed {
			data.Exposed = append(data.Exposed, binding.Name)
		}
	}
	var buf bytes.Buffer
	if err := driverTemplate.Execute(&buf, data); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to render controller driver").
			WithCause(err)
	}
	return buf.Bytes(), nil
}
