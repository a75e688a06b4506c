package core

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"skeditor/internal/types"
)

// fakeRunner records every command. Lines listed in block run until their
// context is cancelled; lines in exitCodes return that code and lines in
// errs fail to run.
type fakeRunner struct {
	mu        sync.Mutex
	started   []types.Command
	block     map[string]bool
	delay     time.Duration
	exitCodes map[string]int
	errs      map[string]error
	panicOn   string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{block: map[string]bool{}, exitCodes: map[string]int{}, errs: map[string]error{}}
}

func (r *fakeRunner) Run(ctx context.Context, cmd types.Command) (int, error) {
	r.mu.Lock()
	r.started = append(r.started, cmd)
	blocking := r.block[cmd.Line]
	delay := r.delay
	code := r.exitCodes[cmd.Line]
	runErr := r.errs[cmd.Line]
	panicOn := r.panicOn
	r.mu.Unlock()

	if runErr != nil {
		return 0, runErr
	}
	if panicOn != "" && cmd.Line == panicOn {
		panic("runner exploded")
	}
	if cmd.Console != nil {
		_, _ = io.WriteString(cmd.Console, "output of "+cmd.Line+"\n")
	}
	if blocking {
		<-ctx.Done()
		return types.ExitInterrupted, nil
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return types.ExitInterrupted, nil
		}
	}
	return code, nil
}

func (r *fakeRunner) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, 0, len(r.started))
	for _, cmd := range r.started {
		lines = append(lines, cmd.Line)
	}
	return lines
}

func (r *fakeRunner) hasStarted(line string) bool {
	for _, started := range r.lines() {
		if started == line {
			return true
		}
	}
	return false
}

type fakeConsoles struct {
	mu      sync.Mutex
	streams map[string]*lockedBuffer
}

func newFakeConsoles() *fakeConsoles {
	return &fakeConsoles{streams: map[string]*lockedBuffer{}}
}

func (c *fakeConsoles) Open(name string) io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stream, ok := c.streams[name]; ok {
		return stream
	}
	stream := &lockedBuffer{}
	c.streams[name] = stream
	return stream
}

func (c *fakeConsoles) Close() error {
	return nil
}

func (c *fakeConsoles) text(name string) string {
	c.mu.Lock()
	stream, ok := c.streams[name]
	c.mu.Unlock()
	if !ok {
		return ""
	}
	return stream.String()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeTranslator struct {
	mu       sync.Mutex
	code     string
	err      error
	programs []string
	onCall   func()
}

func (f *fakeTranslator) Translate(ctx context.Context, hybridProgram string) (string, error) {
	f.mu.Lock()
	f.programs = append(f.programs, hybridProgram)
	onCall := f.onCall
	f.mu.Unlock()
	if onCall != nil {
		onCall()
	}
	if f.err != nil {
		return "", f.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.code, nil
}

type toolchainCall struct {
	Step     string
	Source   string
	BuildDir string
	LogFile  string
}

// fakeToolchain records calls. failOn makes the named step fail; onCompile
// runs after a successful compile so tests can drop build artifacts.
type fakeToolchain struct {
	mu         sync.Mutex
	calls      []toolchainCall
	failOn     map[string]error
	onCompile  func(buildDir string)
	version    string
	versionErr error
}

func (f *fakeToolchain) Configure(_ context.Context, sourceDir string, buildDir string, logFile string) error {
	f.record(toolchainCall{Step: "configure", Source: sourceDir, BuildDir: buildDir, LogFile: logFile})
	return f.failOn["configure"]
}

func (f *fakeToolchain) Compile(_ context.Context, buildDir string, logFile string) error {
	f.record(toolchainCall{Step: "compile", BuildDir: buildDir, LogFile: logFile})
	if err := f.failOn["compile"]; err != nil {
		return err
	}
	if f.onCompile != nil {
		f.onCompile(buildDir)
	}
	return nil
}

func (f *fakeToolchain) CheckVersion(_ context.Context, minVersion string) (string, error) {
	f.record(toolchainCall{Step: "version", Source: minVersion})
	return f.version, f.versionErr
}

func (f *fakeToolchain) record(call toolchainCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeToolchain) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		steps = append(steps, call.Step)
	}
	return steps
}

type fakeProjects struct {
	mu    sync.Mutex
	files map[string]string
	err   error
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{files: map[string]string{}}
}

func (p *fakeProjects) Materialize(dir string, name string) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for path := range p.files {
		if strings.HasPrefix(path, dir+"/") {
			delete(p.files, path)
		}
	}
	p.files[dir+"/package.xml"] = name
	return nil
}

func (p *fakeProjects) WriteFile(dir string, relPath string, content []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files[dir+"/"+relPath] = string(content)
	return nil
}

func (p *fakeProjects) file(path string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files[path]
}

// fakeManifests answers package names from fakeProjects' package.xml entries.
type fakeManifests struct {
	projects *fakeProjects
	names    map[string]string
}

func (m fakeManifests) ParsePackageNames(paths []string) ([]string, error) {
	var names []string
	for _, path := range paths {
		if name, ok := m.names[path]; ok {
			names = append(names, name)
			continue
		}
		if m.projects != nil {
			if name := m.projects.file(path); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}
