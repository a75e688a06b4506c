package adapters

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"skeditor/internal/ports"
	"skeditor/internal/types"
)

// ConsoleRegistryAdapter multiplexes named process consoles onto one
// writer. Every complete line is prefixed with "[name] "; when a directory
// is configured each console is also mirrored to <dir>/<name>.log.
type ConsoleRegistryAdapter struct {
	mu      sync.Mutex
	outMu   sync.Mutex
	out     io.Writer
	dir     string
	streams map[string]*consoleStream
}

func NewConsoleRegistryAdapter(out io.Writer, dir string) *ConsoleRegistryAdapter {
	if out == nil {
		out = io.Discard
	}
	return &ConsoleRegistryAdapter{
		out:     out,
		dir:     strings.TrimSpace(dir),
		streams: map[string]*consoleStream{},
	}
}

func (a *ConsoleRegistryAdapter) Open(name string) io.Writer {
	a.mu.Lock()
	defer a.mu.Unlock()
	if stream, ok := a.streams[name]; ok {
		return stream
	}
	stream := &consoleStream{
		prefix:   []byte("[" + name + "] "),
		registry: a,
		file:     a.openMirror(name),
	}
	a.streams[name] = stream
	return stream
}

// Close flushes unterminated lines and closes mirror files. Streams stay
// usable afterwards but no longer mirror to disk.
func (a *ConsoleRegistryAdapter) Close() error {
	a.mu.Lock()
	streams := make([]*consoleStream, 0, len(a.streams))
	for _, stream := range a.streams {
		streams = append(streams, stream)
	}
	a.mu.Unlock()

	var errs []error
	for _, stream := range streams {
		if err := stream.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *ConsoleRegistryAdapter) openMirror(name string) *os.File {
	if a.dir == "" {
		return nil
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", a.dir).Msg("cannot create console directory")
		return nil
	}
	fileName := strings.ReplaceAll(types.Slug(name), string(filepath.Separator), "_") + ".log"
	file, err := os.OpenFile(filepath.Join(a.dir, fileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Warn().Err(err).Str("console", name).Msg("cannot open console log")
		return nil
	}
	return file
}

func (a *ConsoleRegistryAdapter) writeLine(prefix []byte, line []byte) error {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	if _, err := a.out.Write(append(append([]byte{}, prefix...), line...)); err != nil {
		return err
	}
	return nil
}

// maxPendingLine caps an unterminated line, e.g. progress output that only
// uses carriage returns. Longer runs are emitted as a line of their own.
const maxPendingLine = 64 << 10

type consoleStream struct {
	mu       sync.Mutex
	prefix   []byte
	registry *ConsoleRegistryAdapter
	file     *os.File
	pending  []byte
}

func (s *consoleStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		if _, err := s.file.Write(p); err != nil {
			return 0, err
		}
	}
	s.pending = append(s.pending, p...)
	for {
		idx := bytes.IndexByte(s.pending, '\n')
		if idx < 0 {
			break
		}
		if err := s.registry.writeLine(s.prefix, s.pending[:idx+1]); err != nil {
			return 0, err
		}
		s.pending = s.pending[idx+1:]
	}
	if len(s.pending) >= maxPendingLine {
		if err := s.registry.writeLine(s.prefix, append(s.pending, '\n')); err != nil {
			return 0, err
		}
		s.pending = nil
	}
	return len(p), nil
}

func (s *consoleStream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if len(s.pending) > 0 {
		err = s.registry.writeLine(s.prefix, append(s.pending, '\n'))
		s.pending = nil
	}
	if s.file != nil {
		if closeErr := s.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		s.file = nil
	}
	return err
}

var _ ports.ConsolePort = (*ConsoleRegistryAdapter)(nil)
