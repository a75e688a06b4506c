package policies

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"skeditor/internal/types"
)

// exposedDefault is the initial value of a parameter that is exposed as an
// external input instead of being bound from the graph.
const exposedDefault = "0"

// ParameterPolicy binds the parameter fields of a generated controller to
// values. Graph values win over builtins; the policy decides what happens
// to names neither source provides.
type ParameterPolicy struct {
	Mode     types.ParameterPolicy
	Builtins map[string]string
}

func NewParameterPolicy(mode types.ParameterPolicy, builtins map[string]string) ParameterPolicy {
	if mode == "" {
		mode = types.ParameterPolicyFail
	}
	normalized := map[string]string{}
	for name, value := range builtins {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		normalized[name] = strings.TrimSpace(value)
	}
	return ParameterPolicy{Mode: mode, Builtins: normalized}
}

func ParseParameterPolicy(value string) (types.ParameterPolicy, error) {
	switch types.ParameterPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", types.ParameterPolicyFail:
		return types.ParameterPolicyFail, nil
	case types.ParameterPolicyExpose:
		return types.ParameterPolicyExpose, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown parameter policy %q (expected fail or expose)", value))
	}
}

func (p ParameterPolicy) Resolve(names []string, table types.ParameterTable) ([]types.ParameterBinding, error) {
	bindings := make([]types.ParameterBinding, 0, len(names))
	for _, name := range names {
		if value, ok := table.Lookup(name); ok {
			if err := validateParameterValue(name, value); err != nil {
				return nil, err
			}
			bindings = append(bindings, types.ParameterBinding{Name: name, Value: value})
			continue
		}
		if value, ok := p.Builtins[name]; ok && value != "" {
			if err := validateParameterValue(name, value); err != nil {
				return nil, err
			}
			bindings = append(bindings, types.ParameterBinding{Name: name, Value: value})
			continue
		}
		if p.Mode == types.ParameterPolicyExpose {
			bindings = append(bindings, types.ParameterBinding{Name: name, Value: exposedDefault, Exposed: true})
			continue
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("could not find parameter %s in skill graph", name))
	}
	return bindings, nil
}

// validateParameterValue rejects values that would break out of the single
// assignment expression they are spliced into.
func validateParameterValue(name string, value string) error {
	if strings.ContainsAny(value, ";{}\n\r") || strings.Contains(value, "/*") || strings.Contains(value, "//") {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("parameter %s has an invalid value %q", name, value))
	}
	return nil
}
