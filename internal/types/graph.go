package types

import "strings"

type NodeKind string

const (
	NodeKindController NodeKind = "controller"
	NodeKindProgram    NodeKind = "program"
	NodeKindSkip       NodeKind = "skip"
)

// SkillNode is one unit of a skill graph. Controllers holds hybrid-program
// sources; ProgramPath points at an executable or a native project directory.
type SkillNode struct {
	Name        string
	Controllers []string
	ProgramPath string
}

// Slug returns the filesystem-safe form of the node name.
func (n SkillNode) Slug() string {
	return Slug(n.Name)
}

// ControllerSpecs returns the non-blank controller sources in declaration order.
func (n SkillNode) ControllerSpecs() []string {
	var specs []string
	for _, ctrl := range n.Controllers {
		if strings.TrimSpace(ctrl) == "" {
			continue
		}
		specs = append(specs, ctrl)
	}
	return specs
}

func (n SkillNode) Kind() NodeKind {
	if len(n.ControllerSpecs()) > 0 {
		return NodeKindController
	}
	if strings.TrimSpace(n.ProgramPath) != "" {
		return NodeKindProgram
	}
	return NodeKindSkip
}

type Parameter struct {
	Name    string
	Default string
}

// ParameterTable maps parameter names to their default values.
type ParameterTable map[string]string

func (t ParameterTable) Lookup(name string) (string, bool) {
	value, ok := t[name]
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

type Graph struct {
	Nodes      []SkillNode
	Parameters []Parameter
}

// ParameterTable builds the name -> default mapping. Later declarations of
// the same name override earlier ones.
func (g Graph) ParameterTable() ParameterTable {
	table := ParameterTable{}
	for _, param := range g.Parameters {
		name := strings.TrimSpace(param.Name)
		if name == "" {
			continue
		}
		table[name] = param.Default
	}
	return table
}

// DuplicateParameters lists parameter names declared more than once.
func (g Graph) DuplicateParameters() []string {
	seen := map[string]int{}
	var dups []string
	for _, param := range g.Parameters {
		name := strings.TrimSpace(param.Name)
		seen[name]++
		if seen[name] == 2 {
			dups = append(dups, name)
		}
	}
	return dups
}

// DuplicateSlugs lists node slugs shared by more than one node. Such nodes
// would build into and log to the same place.
func (g Graph) DuplicateSlugs() []string {
	seen := map[string]int{}
	var dups []string
	for _, node := range g.Nodes {
		slug := node.Slug()
		seen[slug]++
		if seen[slug] == 2 {
			dups = append(dups, slug)
		}
	}
	return dups
}

func Slug(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}
