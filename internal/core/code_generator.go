package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"skeditor/internal/policies"
	"skeditor/internal/ports"
	"skeditor/internal/types"
)

const (
	generatedBuildDir  = "build"
	generatedDriver    = "src/main.cpp"
	generatedManifest  = "package.xml"
	configureLogFile   = "CMAKE.log"
	compileLogFile     = "MAKE.log"
	develExecutableDir = "devel/lib"
)

// GenerateConfig is everything needed to turn one hybrid program into an
// executable. Name is used verbatim as project, package and node name.
type GenerateConfig struct {
	Name          string
	OutputDir     string
	HybridProgram string
	Parameters    types.ParameterTable
}

type CodeGenerator struct {
	Translator ports.TranslatorPort
	Toolchain  ports.ToolchainPort
	Projects   ports.ProjectPort
	PackageXML ports.PackageXMLPort
	Parameters policies.ParameterPolicy
}

func NewCodeGenerator(
	translator ports.TranslatorPort,
	toolchain ports.ToolchainPort,
	projects ports.ProjectPort,
	packageXML ports.PackageXMLPort,
	parameters policies.ParameterPolicy,
) CodeGenerator {
	return CodeGenerator{
		Translator: translator,
		Toolchain:  toolchain,
		Projects:   projects,
		PackageXML: packageXML,
		Parameters: parameters,
	}
}

// Generate translates, materializes and builds one controller project and
// returns the path of the produced executable. Every failure is reported as
// a generation error naming the project.
func (g CodeGenerator) Generate(ctx context.Context, cfg GenerateConfig) (string, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return "", generationError(cfg.Name, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("project name is required"))
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return "", generationError(name, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is required"))
	}
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return "", generationError(name, err)
	}
	assert.NotEmpty(ctx, outputDir, "output directory must be resolved")

	logger := log.Ctx(ctx).With().Str("project", name).Logger()
	logger.Debug().Str("output", outputDir).Msg("translating hybrid program")
	generated, err := g.Translator.Translate(ctx, cfg.HybridProgram)
	if err != nil {
		return "", generationError(name, err)
	}
	model, err := ClassifyGeneratedCode(generated)
	if err != nil {
		return "", generationError(name, err)
	}
	logger.Debug().
		Strs("parameters", model.Parameters).
		Strs("state", model.State).
		Strs("input", model.Input).
		Msg("classified generated controller")

	if err := g.Projects.Materialize(outputDir, name); err != nil {
		return "", generationError(name, err)
	}
	if err := g.verifyPackageName(outputDir, name); err != nil {
		return "", generationError(name, err)
	}

	bindings, err := g.Parameters.Resolve(model.Parameters, cfg.Parameters)
	if err != nil {
		return "", generationError(name, err)
	}
	driver, err := RenderDriver(name, model, bindings)
	if err != nil {
		return "", generationError(name, err)
	}
	if err := g.Projects.WriteFile(outputDir, generatedDriver, driver); err != nil {
		return "", generationError(name, err)
	}

	buildDir := filepath.Join(outputDir, generatedBuildDir)
	logger.Debug().Str("build", buildDir).Msg("configuring generated project")
	if err := g.Toolchain.Configure(ctx, outputDir, buildDir, configureLogFile); err != nil {
		return "", generationError(name, err)
	}
	logger.Debug().Str("build", buildDir).Msg("compiling generated project")
	if err := g.Toolchain.Compile(ctx, buildDir, compileLogFile); err != nil {
		return "", generationError(name, err)
	}
	return GeneratedExecutablePath(outputDir, name), nil
}

// GeneratedExecutablePath is where the catkin devel space puts the
// executable of a generated project.
func GeneratedExecutablePath(outputDir string, name string) string {
	return filepath.Join(outputDir, generatedBuildDir, develExecutableDir, name, name)
}

func (g CodeGenerator) verifyPackageName(outputDir string, name string) error {
	if g.PackageXML == nil {
		return nil
	}
	names, err := g.PackageXML.ParsePackageNames([]string{filepath.Join(outputDir, generatedManifest)})
	if err != nil {
		return err
	}
	if len(names) != 1 || names[0] != name {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("project template does not name package %s", name))
	}
	return nil
}

func generationError(name string, err error) error {
	return types.NewLaunchError(types.ErrorKindGeneration, name, errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("failed to generate executable for %s due to %s", name, errorMessage(err))).
		WithCause(err))
}

// errorMessage prefers the builder message over the full error chain.
func errorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && builder.Msg != "" {
		return builder.Msg
	}
	return err.Error()
}
