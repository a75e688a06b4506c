package app

import (
	"time"

	"skeditor/internal/adapters"
	"skeditor/internal/core"
	"skeditor/internal/policies"
	"skeditor/internal/ports"
)

type Service struct {
	Config     Config
	Graphs     ports.GraphLoaderPort
	Runner     ports.ProcessRunnerPort
	Translator ports.TranslatorPort
	Toolchain  ports.ToolchainPort
	Projects   ports.ProjectPort
	PackageXML ports.PackageXMLPort
	Workspace  ports.WorkspacePort
	Consoles   ports.ConsolePort
	Clock      func() time.Time
}

func NewService(cfg Config) Service {
	runner := adapters.NewProcessRunnerAdapter(cfg.Shell)
	toolchain := adapters.NewToolchainAdapter(runner)
	if cfg.ConfigureCommand != "" {
		toolchain.ConfigureCommand = cfg.ConfigureCommand
	}
	if cfg.CompileCommand != "" {
		toolchain.CompileCommand = cfg.CompileCommand
	}
	if cfg.VersionCommand != "" {
		toolchain.VersionCommand = cfg.VersionCommand
	}
	return Service{
		Config:     cfg,
		Graphs:     adapters.NewGraphFileAdapter(),
		Runner:     runner,
		Translator: adapters.NewCommandTranslatorAdapter(runner, cfg.TranslatorCommand),
		Toolchain:  toolchain,
		Projects:   adapters.NewProjectTemplateAdapter(cfg.TemplateDir),
		PackageXML: adapters.NewPackageXMLAdapter(),
		Workspace:  adapters.NewWorkspaceAdapter(),
		Consoles:   adapters.NewConsoleRegistryAdapter(cfg.Output, cfg.ConsoleDir),
		Clock:      time.Now,
	}
}

// Close flushes and closes the process consoles.
func (s Service) Close() error {
	if s.Consoles == nil {
		return nil
	}
	return s.Consoles.Close()
}

func (s Service) codeGenerator() core.CodeGenerator {
	return core.NewCodeGenerator(
		s.Translator,
		s.Toolchain,
		s.Projects,
		s.PackageXML,
		policies.NewParameterPolicy(s.Config.ParameterPolicy, s.Config.BuiltinParameters),
	)
}
