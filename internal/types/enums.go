package types

// ParameterPolicy decides what the generated driver does with a parameter
// that has no value in the parameter table.
type ParameterPolicy string

const (
	ParameterPolicyFail   ParameterPolicy = "fail"
	ParameterPolicyExpose ParameterPolicy = "expose"
)
