package adapters

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	debversion "github.com/knqyf263/go-deb-version"

	"skeditor/internal/ports"
	"skeditor/internal/shared"
	"skeditor/internal/types"
)

const (
	DefaultConfigureCommand = "cmake {source}"
	DefaultCompileCommand   = "make"
	DefaultVersionCommand   = "cmake --version"
)

var toolVersionPattern = regexp.MustCompile(`\d+(?:\.\d+)+(?:[-~+][0-9A-Za-z.~+-]*)?`)

// ToolchainAdapter runs the configure and compile steps of a native build
// through the process runner. Command templates may reference {source}
// and {build}.
type ToolchainAdapter struct {
	Runner           ports.ProcessRunnerPort
	ConfigureCommand string
	CompileCommand   string
	VersionCommand   string
}

func NewToolchainAdapter(runner ports.ProcessRunnerPort) ToolchainAdapter {
	return ToolchainAdapter{
		Runner:           runner,
		ConfigureCommand: DefaultConfigureCommand,
		CompileCommand:   DefaultCompileCommand,
		VersionCommand:   DefaultVersionCommand,
	}
}

func (a ToolchainAdapter) Configure(ctx context.Context, sourceDir string, buildDir string, logFile string) error {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create build directory").
			WithCause(err)
	}
	line := shared.ExpandCommand(a.ConfigureCommand, map[string]string{"source": sourceDir, "build": buildDir})
	return a.runStep(ctx, "configure", line, buildDir, logFile)
}

func (a ToolchainAdapter) Compile(ctx context.Context, buildDir string, logFile string) error {
	line := shared.ExpandCommand(a.CompileCommand, map[string]string{"build": buildDir})
	return a.runStep(ctx, "compile", line, buildDir, logFile)
}

func (a ToolchainAdapter) CheckVersion(ctx context.Context, minVersion string) (string, error) {
	var out bytes.Buffer
	code, err := a.Runner.Run(ctx, types.Command{
		Name:    "toolchain-version",
		Line:    a.VersionCommand,
		Console: &out,
	})
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("toolchain version command %q exited with code %d", a.VersionCommand, code))
	}
	detected := toolVersionPattern.FindString(out.String())
	if detected == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("could not detect toolchain version")
	}
	if strings.TrimSpace(minVersion) == "" {
		return detected, nil
	}
	want, err := debversion.NewVersion(strings.TrimSpace(minVersion))
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid minimum toolchain version").
			WithCause(err)
	}
	have, err := debversion.NewVersion(detected)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("unparseable toolchain version " + detected).
			WithCause(err)
	}
	if have.Compare(want) < 0 {
		return detected, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("toolchain version %s is older than required %s", detected, minVersion))
	}
	return detected, nil
}

func (a ToolchainAdapter) runStep(ctx context.Context, step string, line string, dir string, logFile string) error {
	code, err := a.Runner.Run(ctx, types.Command{
		Name:    step,
		Line:    line,
		Dir:     dir,
		LogFile: logFile,
	})
	if err != nil {
		return err
	}
	if code == types.ExitInterrupted {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(step + " interrupted")
	}
	if code != 0 {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s failed with exit code %d, see %s", step, code, filepath.Join(dir, logFile)))
	}
	return nil
}

var _ ports.ToolchainPort = ToolchainAdapter{}
