package adapters

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skeditor/internal/ports"
	"skeditor/internal/types"
)

// outputChunkSize is the read size used when draining child output.
const outputChunkSize = 8192

const (
	defaultKillGrace   = 2 * time.Second
	defaultOutputGrace = 500 * time.Millisecond
)

// DefaultShell runs commands through an interactive bash so that the
// toolchain environment from the user's rc files is visible.
var DefaultShell = []string{"bash", "-ic"}

// ProcessRunnerAdapter runs shell commands in their own process group.
// KillGrace is the wait between SIGTERM and SIGKILL on cancellation;
// OutputGrace bounds how long output is drained after the child exited.
type ProcessRunnerAdapter struct {
	Shell       []string
	KillGrace   time.Duration
	OutputGrace time.Duration
}

func NewProcessRunnerAdapter(shell []string) ProcessRunnerAdapter {
	if len(shell) == 0 {
		shell = DefaultShell
	}
	return ProcessRunnerAdapter{
		Shell:       append([]string(nil), shell...),
		KillGrace:   defaultKillGrace,
		OutputGrace: defaultOutputGrace,
	}
}

func (a ProcessRunnerAdapter) Run(ctx context.Context, command types.Command) (int, error) {
	if strings.TrimSpace(command.Line) == "" {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("command is empty")
	}
	if command.Console != nil && strings.TrimSpace(command.LogFile) != "" {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("cannot use console and log file for the same command")
	}
	if len(a.Shell) == 0 {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("shell is not configured")
	}
	if ctx.Err() != nil {
		return types.ExitInterrupted, nil
	}

	logger := log.Ctx(ctx).With().Str("command", commandName(command)).Logger()
	sink, closeSink := openSink(&logger, command)
	defer closeSink()

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create stdout pipe").
			WithCause(err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeFiles(stdoutR, stdoutW)
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create stderr pipe").
			WithCause(err)
	}
	defer closeFiles(stdoutR, stderrR)

	args := append(append([]string{}, a.Shell[1:]...), command.Line)
	cmd := exec.Command(a.Shell[0], args...)
	cmd.Dir = command.Dir
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	startErr := cmd.Start()
	closeFiles(stdoutW, stderrW)
	if startErr != nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to start command").
			WithCause(startErr)
	}
	pid := cmd.Process.Pid
	logger.Debug().Int("pid", pid).Str("dir", command.Dir).Msg("process started")

	var readers sync.WaitGroup
	readers.Add(2)
	go drainOutput(&logger, stdoutR, sink, &readers)
	go drainOutput(&logger, stderrR, sink, &readers)
	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(drained)
	}()

	exited := make(chan struct{})
	go a.interruptOnCancel(ctx, &logger, pid, exited)

	waitErr := cmd.Wait()
	close(exited)
	a.awaitOutput(&logger, pid, drained, stdoutR, stderrR)

	if ctx.Err() != nil {
		logger.Debug().Int("pid", pid).Msg("process interrupted")
		return types.ExitInterrupted, nil
	}
	code, err := exitCode(waitErr)
	if err != nil {
		return 0, err
	}
	logger.Debug().Int("pid", pid).Int("exit_code", code).Msg("process exited")
	return code, nil
}

// interruptOnCancel terminates the child's process group when ctx is done,
// escalating to SIGKILL if the group is still alive after the grace period.
func (a ProcessRunnerAdapter) interruptOnCancel(ctx context.Context, logger *zerolog.Logger, pid int, exited <-chan struct{}) {
	select {
	case <-exited:
		return
	case <-ctx.Done():
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	grace := a.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		logger.Debug().Int("pid", pid).Msg("process group ignored SIGTERM, killing")
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
}

// awaitOutput waits for the readers to reach EOF. Descendants that outlive
// the child keep the pipes open; after OutputGrace the read ends are closed
// and whatever they still write is lost.
func (a ProcessRunnerAdapter) awaitOutput(logger *zerolog.Logger, pid int, drained <-chan struct{}, pipes ...*os.File) {
	grace := a.OutputGrace
	if grace <= 0 {
		grace = defaultOutputGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-drained:
		return
	case <-timer.C:
	}
	logger.Debug().
		Int("pid", pid).
		Str("error_kind", string(types.ErrorKindSupervision)).
		Msg("output still held open after exit, closing pipes")
	closeFiles(pipes...)
	<-drained
}

func closeFiles(files ...*os.File) {
	for _, file := range files {
		_ = file.Close()
	}
}

// openSink resolves the single output destination of a command. A log file
// that cannot be created degrades to discarding output.
func openSink(logger *zerolog.Logger, command types.Command) (io.Writer, func()) {
	if command.Console != nil {
		return &lockedWriter{w: command.Console}, func() {}
	}
	if strings.TrimSpace(command.LogFile) == "" {
		return io.Discard, func() {}
	}
	path := command.LogFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(command.Dir, path)
	}
	file, err := os.Create(path)
	if err != nil {
		logger.Warn().Err(err).Str("log_file", path).Msg("cannot open log file, output will be discarded")
		return io.Discard, func() {}
	}
	return &lockedWriter{w: file}, func() {
		_ = file.Close()
	}
}

// drainOutput copies src into dst until EOF. Read errors end the copy;
// write errors switch to discarding so the child never blocks on a full pipe.
func drainOutput(logger *zerolog.Logger, src io.Reader, dst io.Writer, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, outputChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 && dst != io.Discard {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				logger.Debug().
					Err(werr).
					Str("error_kind", string(types.ErrorKindSupervision)).
					Msg("output sink failed, discarding remaining output")
				dst = io.Discard
			}
		}
		if err != nil {
			return
		}
	}
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return 0, errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to wait for command").
		WithCause(err)
}

func commandName(command types.Command) string {
	if strings.TrimSpace(command.Name) != "" {
		return command.Name
	}
	return command.Line
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

var _ ports.ProcessRunnerPort = ProcessRunnerAdapter{}
