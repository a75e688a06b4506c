package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"skeditor/internal/shared"
	"skeditor/internal/types"
)

const (
	// generatedRootDir holds one generated project per controller.
	generatedRootDir   = "kyx"
	nativeConfigureLog = "SKEDITOR_CMAKE.log"
	nativeCompileLog   = "SKEDITOR_MAKE.log"
)

func (s *Session) buildControllerNodes(ctx context.Context, nodes []types.SkillNode, params types.ParameterTable, buildRoot string) error {
	taken := map[string]bool{}
	for _, node := range nodes {
		taken[node.Slug()] = true
	}
	for _, node := range nodes {
		for i, spec := range node.ControllerSpecs() {
			if s.interrupted(ctx) {
				return errLaunchCancelled
			}
			project := controllerProjectName(node.Slug(), i, taken)
			fmt.Fprintf(s.Out, "%s: generating controller\n", project)
			executable, err := s.Generator.Generate(ctx, GenerateConfig{
				Name:          project,
				OutputDir:     filepath.Join(buildRoot, generatedRootDir, project),
				HybridProgram: spec,
				Parameters:    params,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(s.Out, "%s: Executable (%s)\n", project, filepath.Base(executable))
			s.schedule(project, executable, buildRoot)
		}
	}
	return nil
}

// controllerProjectName keeps the node slug for the first controller and
// numbers the rest, skipping numbers already taken by other projects or
// node slugs. The returned name is added to taken.
func controllerProjectName(slug string, index int, taken map[string]bool) string {
	if index == 0 {
		return slug
	}
	for n := index + 1; ; n++ {
		name := fmt.Sprintf("%s_%d", slug, n)
		if !taken[name] {
			taken[name] = true
			return name
		}
	}
}

func (s *Session) buildProgramNodes(ctx context.Context, nodes []types.SkillNode, buildRoot string) error {
	fmt.Fprintln(s.Out, "Building programs...")
	for _, node := range nodes {
		if s.interrupted(ctx) {
			return errLaunchCancelled
		}
		slug := node.Slug()
		programPath := strings.TrimSpace(node.ProgramPath)
		if programPath == "" {
			if node.Kind() == types.NodeKindSkip {
				fmt.Fprintf(s.Out, "%s: Skip\n", slug)
			}
			continue
		}
		programPath, err := filepath.Abs(programPath)
		if err != nil {
			return types.NewLaunchError(types.ErrorKindMissingExecutable, slug, err)
		}
		info, err := os.Stat(programPath)
		if err != nil {
			return types.NewLaunchError(types.ErrorKindMissingExecutable, slug, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("program %s of %s does not exist", programPath, slug)).
				WithCause(err))
		}
		if !info.IsDir() {
			if !shared.IsExecutableFile(info) {
				return types.NewLaunchError(types.ErrorKindNotExecutable, slug, errbuilder.New().
					WithCode(errbuilder.CodePermissionDenied).
					WithMsg(fmt.Sprintf("file %s of %s is not executable", programPath, slug)))
			}
			fmt.Fprintf(s.Out, "%s: Executable (%s)\n", slug, filepath.Base(programPath))
			s.schedule(slug, programPath, buildRoot)
			continue
		}

		buildDir := filepath.Join(buildRoot, slug)
		executable, err := s.buildNativeProject(ctx, slug, programPath, buildDir)
		if err != nil {
			return err
		}
		s.schedule(slug, executable, buildDir)
	}
	return nil
}

// buildNativeProject configures and compiles a native project in a fresh
// build directory and returns the executable it produced.
func (s *Session) buildNativeProject(ctx context.Context, slug string, sourceDir string, buildDir string) (string, error) {
	logger := log.Ctx(ctx).With().Str("node", slug).Logger()
	if err := os.RemoveAll(buildDir); err != nil {
		return "", generationError(slug, err)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return "", generationError(slug, err)
	}

	fmt.Fprintf(s.Out, "%s: CMAKE", slug)
	logger.Debug().Str("source", sourceDir).Str("build", buildDir).Msg("configuring native project")
	if err := s.Toolchain.Configure(ctx, sourceDir, buildDir, nativeConfigureLog); err != nil {
		fmt.Fprintln(s.Out)
		return "", generationError(slug, err)
	}
	fmt.Fprint(s.Out, " - MAKE")
	if err := s.Toolchain.Compile(ctx, buildDir, nativeCompileLog); err != nil {
		fmt.Fprintln(s.Out)
		return "", generationError(slug, err)
	}
	fmt.Fprintln(s.Out, " - OK")

	return s.locateExecutable(sourceDir, buildDir, slug)
}

// locateExecutable looks in the devel space for the executable, trying the
// manifest's package name before falling back to the node slug.
func (s *Session) locateExecutable(sourceDir string, buildDir string, slug string) (string, error) {
	var candidates []string
	if pkg := s.packageName(sourceDir); pkg != "" {
		candidates = append(candidates,
			filepath.Join(buildDir, develExecutableDir, pkg, slug),
			filepath.Join(buildDir, develExecutableDir, pkg, pkg),
		)
	}
	candidates = append(candidates, filepath.Join(buildDir, develExecutableDir, slug, slug))

	var notExecutable string
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if shared.IsExecutableFile(info) {
			return candidate, nil
		}
		if notExecutable == "" && info.Mode().IsRegular() {
			notExecutable = candidate
		}
	}
	if notExecutable != "" {
		return "", types.NewLaunchError(types.ErrorKindNotExecutable, slug, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("file %s is not executable", notExecutable)))
	}
	return "", types.NewLaunchError(types.ErrorKindMissingExecutable, slug, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("could not find executable %s", candidates[len(candidates)-1])))
}

func (s *Session) packageName(sourceDir string) string {
	if s.Workspace == nil || s.PackageXML == nil {
		return ""
	}
	manifests, err := s.Workspace.FindPackageXML(sourceDir)
	if err != nil || len(manifests) == 0 {
		return ""
	}
	names, err := s.PackageXML.ParsePackageNames(manifests[:1])
	if err != nil || len(names) == 0 {
		return ""
	}
	return names[0]
}

func (s *Session) schedule(name string, executable string, dir string) {
	task := types.ScheduledTask{
		ID:      uuid.NewString(),
		Name:    name,
		Command: shared.ShellQuote(executable),
		Dir:     dir,
	}
	s.Scheduler.Schedule(task)
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}
