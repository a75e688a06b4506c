package app

import (
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"skeditor/internal/types"
)

// Inspect loads a skill graph and summarizes what a launch would build.
func (s Service) Inspect(req InspectRequest) (InspectResult, error) {
	graphPath := strings.TrimSpace(req.GraphPath)
	if graphPath == "" {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("skill graph path is required")
	}
	graph, err := s.Graphs.Load(graphPath)
	if err != nil {
		return InspectResult{}, types.NewLaunchError(types.ErrorKindParse, graphPath, err)
	}

	result := InspectResult{Duplicates: graph.DuplicateParameters()}
	for _, node := range graph.Nodes {
		result.Nodes = append(result.Nodes, InspectNode{
			Name:        node.Name,
			Slug:        node.Slug(),
			Kind:        node.Kind(),
			Controllers: len(node.ControllerSpecs()),
			ProgramPath: strings.TrimSpace(node.ProgramPath),
		})
	}
	table := graph.ParameterTable()
	for _, name := range sortedKeys(table) {
		result.Parameters = append(result.Parameters, types.Parameter{Name: name, Default: table[name]})
	}
	return result, nil
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
