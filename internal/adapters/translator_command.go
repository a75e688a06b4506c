package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"skeditor/internal/ports"
	"skeditor/internal/shared"
	"skeditor/internal/types"
)

// DefaultTranslatorCommand invokes KeYmaera X code generation. {input} and
// {output} are replaced with the hybrid program and generated C file paths.
const DefaultTranslatorCommand = "keymaerax -codegen {input} -out {output}"

const (
	translatorInputFile  = "controller.kyx"
	translatorOutputFile = "controller.c"
	translatorLogFile    = "translate.log"
	translatorLogTail    = 2048
)

// CommandTranslatorAdapter runs an external hybrid-program translator in a
// scratch directory and returns the C source it produced.
type CommandTranslatorAdapter struct {
	Runner  ports.ProcessRunnerPort
	Command string
}

func NewCommandTranslatorAdapter(runner ports.ProcessRunnerPort, command string) CommandTranslatorAdapter {
	if strings.TrimSpace(command) == "" {
		command = DefaultTranslatorCommand
	}
	return CommandTranslatorAdapter{Runner: runner, Command: command}
}

func (a CommandTranslatorAdapter) Translate(ctx context.Context, hybridProgram string) (string, error) {
	if strings.TrimSpace(hybridProgram) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("hybrid program is empty")
	}
	workDir, err := os.MkdirTemp("", "skeditor-translate-")
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create translator work directory").
			WithCause(err)
	}
	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	input := filepath.Join(workDir, translatorInputFile)
	output := filepath.Join(workDir, translatorOutputFile)
	if err := os.WriteFile(input, []byte(hybridProgram), 0o644); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write hybrid program").
			WithCause(err)
	}

	line := shared.ExpandCommand(a.Command, map[string]string{"input": input, "output": output})
	log.Ctx(ctx).Debug().Str("command", line).Msg("translating hybrid program")
	code, err := a.Runner.Run(ctx, types.Command{
		Name:    "translate",
		Line:    line,
		Dir:     workDir,
		LogFile: translatorLogFile,
	})
	if err != nil {
		return "", err
	}
	if code == types.ExitInterrupted {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("translation interrupted")
	}
	if code != 0 {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("translator exited with code %d", code)).
			WithCause(shared.CommandError(readLogTail(filepath.Join(workDir, translatorLogFile)), fmt.Errorf("exit status %d", code)))
	}

	generated, err := os.ReadFile(output)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("translator produced no output").
			WithCause(err)
	}
	if strings.TrimSpace(string(generated)) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("translator produced empty output")
	}
	return string(generated), nil
}

func readLogTail(path string) []byte {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	if len(content) > translatorLogTail {
		content = content[len(content)-translatorLogTail:]
	}
	return content
}

var _ ports.TranslatorPort = CommandTranslatorAdapter{}
