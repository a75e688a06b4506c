package types

// ControllerModel is the structured form of translator output: the three
// field groups and the verbatim control-step function.
type ControllerModel struct {
	Parameters   []string
	State        []string
	Input        []string
	StepFunction string
}

// ParameterBinding is the initial value of one parameter field in the
// generated driver. Exposed bindings are registered as external inputs.
type ParameterBinding struct {
	Name    string
	Value   string
	Exposed bool
}
