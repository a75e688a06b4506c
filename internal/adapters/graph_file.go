package adapters

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"skeditor/internal/ports"
	"skeditor/internal/types"
)

// GraphFileAdapter loads skill graphs. The format is chosen by extension:
// .sked, .xmi and .xml are the editor's XMI export; .yaml, .hcl and .json
// are hand-written alternatives. Unknown extensions are sniffed.
type GraphFileAdapter struct{}

func NewGraphFileAdapter() GraphFileAdapter {
	return GraphFileAdapter{}
}

func (a GraphFileAdapter) Load(path string) (types.Graph, error) {
	if strings.TrimSpace(path) == "" {
		return types.Graph{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("skill graph path is empty")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return types.Graph{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read skill graph").
			WithCause(err)
	}

	var graph types.Graph
	switch graphFormat(path, content) {
	case "xmi":
		graph, err = decodeXMIGraph(content)
	case "hcl":
		graph, err = decodeHCLGraph(path, content)
	case "json":
		graph, err = decodeJSONGraph(content)
	default:
		graph, err = decodeYAMLGraph(content)
	}
	if err != nil {
		return types.Graph{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse skill graph " + path).
			WithCause(err)
	}
	if err := validateGraph(graph); err != nil {
		return types.Graph{}, err
	}
	return graph, nil
}

func graphFormat(path string, content []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sked", ".xmi", ".xml":
		return "xmi"
	case ".hcl":
		return "hcl"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	trimmed := bytes.TrimSpace(content)
	switch {
	case bytes.HasPrefix(trimmed, []byte("<")):
		return "xmi"
	case bytes.HasPrefix(trimmed, []byte("{")):
		return "json"
	default:
		return "yaml"
	}
}

func validateGraph(graph types.Graph) error {
	for i, node := range graph.Nodes {
		if strings.TrimSpace(node.Name) == "" {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("skill graph node %d has no name", i))
		}
	}
	if dups := graph.DuplicateSlugs(); len(dups) > 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("skill graph nodes share the name %s", strings.Join(dups, ", ")))
	}
	return nil
}

type xmiDocument struct {
	xmiGraph
	Graphs []xmiGraph `xml:"Graph"`
}

type xmiGraph struct {
	Nodes      []xmiNode      `xml:"nodes"`
	Parameters []xmiParameter `xml:"parameterList"`
}

type xmiNode struct {
	Name        string          `xml:"name,attr"`
	ProgramPath string          `xml:"programPath,attr"`
	Controllers []xmiController `xml:"controller"`
}

type xmiController struct {
	Ctrl string `xml:"ctrl,attr"`
	Text string `xml:",chardata"`
}

// xmiParameter keys parameters by their abbreviation, which is the name the
// generated controller code uses. The long name is only a fallback.
type xmiParameter struct {
	Name         string `xml:"name,attr"`
	Abbreviation string `xml:"abbreviation,attr"`
	DefaultValue string `xml:"defaultValue,attr"`
}

func decodeXMIGraph(content []byte) (types.Graph, error) {
	var doc xmiDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return types.Graph{}, err
	}
	var graph types.Graph
	for _, g := range append([]xmiGraph{doc.xmiGraph}, doc.Graphs...) {
		for _, node := range g.Nodes {
			skill := types.SkillNode{Name: node.Name, ProgramPath: node.ProgramPath}
			for _, ctrl := range node.Controllers {
				spec := ctrl.Ctrl
				if strings.TrimSpace(spec) == "" {
					spec = ctrl.Text
				}
				skill.Controllers = append(skill.Controllers, spec)
			}
			graph.Nodes = append(graph.Nodes, skill)
		}
		for _, param := range g.Parameters {
			name := param.Abbreviation
			if strings.TrimSpace(name) == "" {
				name = param.Name
			}
			graph.Parameters = append(graph.Parameters, types.Parameter{
				Name:    strings.TrimSpace(name),
				Default: param.DefaultValue,
			})
		}
	}
	return graph, nil
}

type yamlGraph struct {
	Nodes []struct {
		Name        string   `yaml:"name"`
		Controllers []string `yaml:"controllers"`
		ProgramPath string   `yaml:"program_path"`
	} `yaml:"nodes"`
	Parameters []struct {
		Name    string `yaml:"name"`
		Default string `yaml:"default"`
	} `yaml:"parameters"`
}

func decodeYAMLGraph(content []byte) (types.Graph, error) {
	var doc yamlGraph
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return types.Graph{}, err
	}
	var graph types.Graph
	for _, node := range doc.Nodes {
		graph.Nodes = append(graph.Nodes, types.SkillNode{
			Name:        node.Name,
			Controllers: node.Controllers,
			ProgramPath: node.ProgramPath,
		})
	}
	for _, param := range doc.Parameters {
		graph.Parameters = append(graph.Parameters, types.Parameter{
			Name:    strings.TrimSpace(param.Name),
			Default: param.Default,
		})
	}
	return graph, nil
}

type hclGraphFile struct {
	Nodes      []*hclNode      `hcl:"node,block"`
	Parameters []*hclParameter `hcl:"parameter,block"`
}

type hclNode struct {
	Name        string   `hcl:"name,label"`
	ProgramPath string   `hcl:"program_path,optional"`
	Controllers []string `hcl:"controllers,optional"`
}

type hclParameter struct {
	Name    string `hcl:"name,label"`
	Default string `hcl:"default,optional"`
}

func decodeHCLGraph(path string, content []byte) (types.Graph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, path)
	if diags.HasErrors() {
		return types.Graph{}, diags
	}
	var parsed hclGraphFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return types.Graph{}, diags
	}
	var graph types.Graph
	for _, node := range parsed.Nodes {
		graph.Nodes = append(graph.Nodes, types.SkillNode{
			Name:        node.Name,
			Controllers: node.Controllers,
			ProgramPath: node.ProgramPath,
		})
	}
	for _, param := range parsed.Parameters {
		graph.Parameters = append(graph.Parameters, types.Parameter{
			Name:    strings.TrimSpace(param.Name),
			Default: param.Default,
		})
	}
	return graph, nil
}

func decodeJSONGraph(content []byte) (types.Graph, error) {
	if !gjson.ValidBytes(content) {
		return types.Graph{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid JSON document")
	}
	root := gjson.ParseBytes(content)
	var graph types.Graph
	root.Get("nodes").ForEach(func(_, node gjson.Result) bool {
		skill := types.SkillNode{
			Name:        node.Get("name").String(),
			ProgramPath: node.Get("programPath").String(),
		}
		if skill.ProgramPath == "" {
			skill.ProgramPath = node.Get("program_path").String()
		}
		for _, ctrl := range node.Get("controllers").Array() {
			skill.Controllers = append(skill.Controllers, ctrl.String())
		}
		graph.Nodes = append(graph.Nodes, skill)
		return true
	})
	root.Get("parameters").ForEach(func(_, param gjson.Result) bool {
		graph.Parameters = append(graph.Parameters, types.Parameter{
			Name:    strings.TrimSpace(param.Get("name").String()),
			Default: param.Get("default").String(),
		})
		return true
	})
	return graph, nil
}

var _ ports.GraphLoaderPort = GraphFileAdapter{}
