package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"skeditor/internal/core"
	"skeditor/internal/types"
)

// Generate builds a single controller from a hybrid-program file without
// starting anything. Parameters come from the optional graph and are
// overridden by req.Parameters.
func (s Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	programPath := strings.TrimSpace(req.ProgramPath)
	if programPath == "" {
		return GenerateResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("hybrid program file is required")
	}
	program, err := os.ReadFile(programPath)
	if err != nil {
		return GenerateResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read hybrid program").
			WithCause(err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(programPath), filepath.Ext(programPath))
	}
	name = types.Slug(name)
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		outputDir = filepath.Join("build", "kyx", name)
	}

	params := types.ParameterTable{}
	if graphPath := strings.TrimSpace(req.GraphPath); graphPath != "" {
		graph, err := s.Graphs.Load(graphPath)
		if err != nil {
			return GenerateResult{}, types.NewLaunchError(types.ErrorKindParse, graphPath, err)
		}
		params = graph.ParameterTable()
	}
	for key, value := range req.Parameters {
		params[strings.TrimSpace(key)] = value
	}

	executable, err := s.codeGenerator().Generate(ctx, core.GenerateConfig{
		Name:          name,
		OutputDir:     outputDir,
		HybridProgram: string(program),
		Parameters:    params,
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Executable: executable}, nil
}
