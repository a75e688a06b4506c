package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skeditor/internal/policies"
	"skeditor/internal/shared"
	"skeditor/internal/types"
)

type fakeGraphLoader struct {
	graph types.Graph
	err   error
}

func (f fakeGraphLoader) Load(string) (types.Graph, error) {
	return f.graph, f.err
}

type fakeWorkspace struct {
	manifests map[string][]string
}

func (f fakeWorkspace) FindPackageXML(root string) ([]string, error) {
	return f.manifests[root], nil
}

type sessionFixture struct {
	session    *Session
	runner     *fakeRunner
	consoles   *fakeConsoles
	translator *fakeTranslator
	toolchain  *fakeToolchain
	projects   *fakeProjects
	out        *lockedBuffer
	buildRoot  string

	sleepMu    sync.Mutex
	sleepCalls int
}

const (
	testCoreCommand  = "core-cmd"
	testWorldCommand = "world-cmd {world}"
	testWorldPath    = "/worlds/empty.world"
)

func newSessionFixture(t *testing.T, graph types.Graph) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		runner:     newFakeRunner(),
		consoles:   newFakeConsoles(),
		translator: &fakeTranslator{code: epController},
		toolchain:  &fakeToolchain{},
		projects:   newFakeProjects(),
		out:        &lockedBuffer{},
		buildRoot:  t.TempDir(),
	}
	generator := NewCodeGenerator(
		f.translator,
		f.toolchain,
		f.projects,
		fakeManifests{projects: f.projects},
		policies.NewParameterPolicy(types.ParameterPolicyFail, nil),
	)
	f.session = NewSession(SessionDeps{
		Graphs:     fakeGraphLoader{graph: graph},
		Generator:  generator,
		Toolchain:  f.toolchain,
		Workspace:  fakeWorkspace{},
		PackageXML: fakeManifests{},
		Scheduler:  NewTaskScheduler(context.Background(), f.runner, f.consoles),
		Out:        f.out,
	}, SessionSettings{
		Simulation: types.SimulationSettings{
			CoreCommand:  testCoreCommand,
			CoreSettle:   time.Second,
			WorldCommand: testWorldCommand,
			WorldSettle:  5 * time.Second,
		},
		DrainInterval: 50 * time.Millisecond,
	})
	// Each settle period ends once the process started just before it is
	// running, which keeps start order deterministic without real delays.
	f.session.Sleep = func(ctx context.Context, _ time.Duration) error {
		f.sleepMu.Lock()
		f.sleepCalls++
		want := f.sleepCalls
		f.sleepMu.Unlock()
		deadline := time.Now().Add(5 * time.Second)
		for len(f.runner.lines()) < want {
			if time.Now().After(deadline) {
				return errors.New("process did not start")
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			time.Sleep(5 * time.Millisecond)
		}
		return nil
	}
	return f
}

func (f *sessionFixture) launch(ctx context.Context) (types.LaunchReport, error) {
	return f.session.Launch(ctx, LaunchRequest{
		GraphPath: "graph.sked",
		BuildRoot: f.buildRoot,
		WorldPath: testWorldPath,
	})
}

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
}

func TestSessionLaunchesControllerAndExecutableNodes(t *testing.T) {
	program := filepath.Join(t.TempDir(), "lane_keeper")
	writeExecutable(t, program)
	f := newSessionFixture(t, types.Graph{
		Nodes: []types.SkillNode{
			{Name: "Follow Lane", Controllers: []string{"x' = v"}},
			{Name: "Lane Keeper", ProgramPath: program},
		},
		Parameters: []types.Parameter{{Name: "ep", Default: "0.5"}},
	})

	report, err := f.launch(context.Background())
	require.NoError(t, err)

	wantHistory := []types.LaunchState{
		types.LaunchStateInit,
		types.LaunchStateParsingGraph,
		types.LaunchStateBuildingHybridNodes,
		types.LaunchStateBuildingNativeNodes,
		types.LaunchStateStartingInfrastructure,
		types.LaunchStateRunningSkills,
		types.LaunchStateDraining,
		types.LaunchStateTerminated,
	}
	if diff := cmp.Diff(wantHistory, report.History); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}
	assert.Equal(t, types.LaunchStateTerminated, report.State)
	assert.Equal(t, 2, report.Released)
	assert.False(t, report.Cancelled)
	require.Len(t, report.Tasks, 2)
	assert.Equal(t, "Follow_Lane", report.Tasks[0].Name)
	assert.Equal(t, "Lane_Keeper", report.Tasks[1].Name)
	assert.Equal(t, shared.ShellQuote(program), report.Tasks[1].Command)

	lines := f.runner.lines()
	require.Len(t, lines, 4)
	assert.Equal(t, testCoreCommand, lines[0])
	assert.Equal(t, "world-cmd "+testWorldPath, lines[1])
	assert.ElementsMatch(t, []string{report.Tasks[0].Command, report.Tasks[1].Command}, lines[2:])

	driver := f.projects.file(filepath.Join(f.buildRoot, "kyx", "Follow_Lane", "src", "main.cpp"))
	assert.Contains(t, driver, "params.ep = 0.5;")

	out := f.out.String()
	assert.Contains(t, out, "===Attributes===\nsked: graph.sked\n")
	assert.Contains(t, out, "Parameter ep = 0.5\n")
	assert.Contains(t, out, "Lane_Keeper: Executable (lane_keeper)\n")
	assert.Contains(t, out, "Starting all Skills\n")
	assert.Contains(t, out, "All tasks are done, exiting launcher...\n")
	assert.Contains(t, f.consoles.text("roscore"), "roscore started\n")
	assert.Contains(t, f.consoles.text("gazebo"), "gazebo started\n")
}

func TestSessionSkipsNodesWithoutProgram(t *testing.T) {
	f := newSessionFixture(t, types.Graph{Nodes: []types.SkillNode{{Name: "Idle", Controllers: []string{"  "}}}})

	report, err := f.launch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "Idle: Skip\n")
	assert.Empty(t, report.Tasks)
	assert.Equal(t, 0, report.Released)
	assert.Empty(t, f.toolchain.steps())
}

func TestSessionNumbersExtraControllers(t *testing.T) {
	f := newSessionFixture(t, types.Graph{
		Nodes:      []types.SkillNode{{Name: "Brake", Controllers: []string{"a := -B;", "a := 0;"}}},
		Parameters: []types.Parameter{{Name: "ep", Default: "1"}},
	})

	report, err := f.launch(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tasks, 2)
	assert.Equal(t, "Brake", report.Tasks[0].Name)
	assert.Equal(t, "Brake_2", report.Tasks[1].Name)
	assert.Equal(t, []string{"a := -B;", "a := 0;"}, f.translator.programs)
}

func TestSessionBuildsNativeProject(t *testing.T) {
	source := t.TempDir()
	f := newSessionFixture(t, types.Graph{Nodes: []types.SkillNode{{Name: "Lane Keeper", ProgramPath: source}}})
	manifest := filepath.Join(source, "package.xml")
	f.session.Workspace = fakeWorkspace{manifests: map[string][]string{source: {manifest}}}
	f.session.PackageXML = fakeManifests{names: map[string]string{manifest: "lane_keeper"}}
	f.toolchain.onCompile = func(buildDir string) {
		writeExecutable(t, filepath.Join(buildDir, "devel", "lib", "lane_keeper", "lane_keeper"))
	}

	report, err := f.launch(context.Background())
	require.NoError(t, err)

	buildDir := filepath.Join(f.buildRoot, "Lane_Keeper")
	wantCalls := []toolchainCall{
		{Step: "configure", Source: source, BuildDir: buildDir, LogFile: "SKEDITOR_CMAKE.log"},
		{Step: "compile", BuildDir: buildDir, LogFile: "SKEDITOR_MAKE.log"},
	}
	if diff := cmp.Diff(wantCalls, f.toolchain.calls); diff != "" {
		t.Fatalf("unexpected toolchain calls (-want +got):\n%s", diff)
	}
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, shared.ShellQuote(filepath.Join(buildDir, "devel", "lib", "lane_keeper", "lane_keeper")), report.Tasks[0].Command)
	assert.Equal(t, buildDir, report.Tasks[0].Dir)
	assert.Contains(t, f.out.String(), "Lane_Keeper: CMAKE - MAKE - OK\n")
}

func TestSessionNativeBuildFailureSchedulesNothing(t *testing.T) {
	tests := []struct {
		name      string
		step      string
		wantSteps []string
	}{
		{name: "configure", step: "configure", wantSteps: []string{"configure"}},
		{name: "compile", step: "compile", wantSteps: []string{"configure", "compile"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := t.TempDir()
			f := newSessionFixture(t, types.Graph{Nodes: []types.SkillNode{{Name: "Lane Keeper", ProgramPath: source}}})
			f.toolchain.failOn = map[string]error{tt.step: fmt.Errorf("%s failed with exit code 2", tt.step)}

			report, err := f.launch(context.Background())
			require.Error(t, err)
			assert.Equal(t, types.ErrorKindGeneration, types.KindOf(err))
			assert.Empty(t, report.Tasks)
			assert.Equal(t, 0, report.Released)
			assert.Empty(t, f.runner.lines())
			assert.Equal(t, tt.wantSteps, f.toolchain.steps())
			assert.Contains(t, f.out.String(), "Build failed: failed to generate executable for Lane_Keeper")

			wantTail := []types.LaunchState{types.LaunchStateBuildingNativeNodes, types.LaunchStateDraining, types.LaunchStateTerminated}
			assert.Equal(t, wantTail, report.History[len(report.History)-3:])
		})
	}
}

func TestSessionRejectsNodesSharingASlug(t *testing.T) {
	f := newSessionFixture(t, types.Graph{
		Nodes: []types.SkillNode{
			{Name: "Follow Lane", Controllers: []string{"a := 1;"}},
			{Name: "Follow_Lane", Controllers: []string{"a := 2;"}},
		},
		Parameters: []types.Parameter{{Name: "ep", Default: "1"}},
	})

	report, err := f.launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindParse, types.KindOf(err))
	assert.Contains(t, err.Error(), "skill graph nodes share the name Follow_Lane")
	assert.Empty(t, f.translator.programs)
	assert.Empty(t, report.Tasks)
	assert.Equal(t, 0, report.Released)
}

func TestSessionExtraControllersAvoidOtherNodeNames(t *testing.T) {
	f := newSessionFixture(t, types.Graph{
		Nodes: []types.SkillNode{
			{Name: "Brake", Controllers: []string{"a := -B;", "a := 0;"}},
			{Name: "Brake 2", Controllers: []string{"a := 1;"}},
		},
		Parameters: []types.Parameter{{Name: "ep", Default: "1"}},
	})

	report, err := f.launch(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(report.Tasks))
	for _, task := range report.Tasks {
		names = append(names, task.Name)
	}
	if diff := cmp.Diff([]string{"Brake", "Brake_3", "Brake_2"}, names); diff != "" {
		t.Fatalf("unexpected project names (-want +got):\n%s", diff)
	}
}

func TestSessionProgramErrors(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.sh")
	require.NoError(t, os.WriteFile(plain, []byte("echo"), 0644))

	tests := []struct {
		name     string
		program  string
		wantKind types.ErrorKind
	}{
		{name: "missing", program: filepath.Join(dir, "absent"), wantKind: types.ErrorKindMissingExecutable},
		{name: "not executable", program: plain, wantKind: types.ErrorKindNotExecutable},
		{name: "build without executable", program: dir, wantKind: types.ErrorKindMissingExecutable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSessionFixture(t, types.Graph{Nodes: []types.SkillNode{{Name: "Node", ProgramPath: tt.program}}})
			report, err := f.launch(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, types.KindOf(err))
			assert.Equal(t, 0, report.Released)
			assert.Equal(t, types.LaunchStateTerminated, report.State)
		})
	}
}

func TestSessionParseError(t *testing.T) {
	f := newSessionFixture(t, types.Graph{})
	f.session.Graphs = fakeGraphLoader{err: errors.New("malformed")}

	report, err := f.launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindParse, types.KindOf(err))
	want := []types.LaunchState{
		types.LaunchStateInit,
		types.LaunchStateParsingGraph,
		types.LaunchStateDraining,
		types.LaunchStateTerminated,
	}
	if diff := cmp.Diff(want, report.History); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}
}

func TestSessionToolchainPreflight(t *testing.T) {
	f := newSessionFixture(t, types.Graph{Nodes: []types.SkillNode{{Name: "Brake", Controllers: []string{"a := 0;"}}}})
	f.session.Settings.MinToolchainVersion = "3.10"
	f.toolchain.versionErr = errors.New("toolchain version 3.5.1 is older than required 3.10")

	_, err := f.launch(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrorKindPrecondition, types.KindOf(err))
	assert.Equal(t, []string{"version"}, f.toolchain.steps())
	assert.Empty(t, f.translator.programs)
}

func TestSessionCancelledDuringHybridBuild(t *testing.T) {
	f := newSessionFixture(t, types.Graph{
		Nodes: []types.SkillNode{
			{Name: "A", Controllers: []string{"x' = v"}},
			{Name: "B", Controllers: []string{"x' = -v"}},
		},
		Parameters: []types.Parameter{{Name: "ep", Default: "1"}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.translator.onCall = cancel

	report, err := f.launch(ctx)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 0, report.Released)
	assert.Empty(t, f.runner.lines())
	assert.Len(t, f.translator.programs, 1)
	want := []types.LaunchState{
		types.LaunchStateInit,
		types.LaunchStateParsingGraph,
		types.LaunchStateBuildingHybridNodes,
		types.LaunchStateCancelled,
		types.LaunchStateDraining,
		types.LaunchStateTerminated,
	}
	if diff := cmp.Diff(want, report.History); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}
	assert.NotContains(t, f.out.String(), "Build failed")
}

func TestSessionCancelWhileRunningForcesShutdown(t *testing.T) {
	program := filepath.Join(t.TempDir(), "forever")
	writeExecutable(t, program)
	f := newSessionFixture(t, types.Graph{Nodes: []types.SkillNode{{Name: "Forever", ProgramPath: program}}})
	f.runner.block[shared.ShellQuote(program)] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type result struct {
		report types.LaunchReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := f.launch(ctx)
		done <- result{report: report, err: err}
	}()

	require.Eventually(t, func() bool {
		return f.runner.hasStarted(shared.ShellQuote(program))
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, types.LaunchStateDraining, f.session.State())
	cancel()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.True(t, res.report.Forced)
		assert.True(t, res.report.Cancelled)
		assert.Equal(t, 1, res.report.Released)
		wantTail := []types.LaunchState{
			types.LaunchStateRunningSkills,
			types.LaunchStateDraining,
			types.LaunchStateCancelled,
			types.LaunchStateDraining,
			types.LaunchStateTerminated,
		}
		require.GreaterOrEqual(t, len(res.report.History), len(wantTail))
		gotTail := res.report.History[len(res.report.History)-len(wantTail):]
		if diff := cmp.Diff(wantTail, gotTail); diff != "" {
			t.Fatalf("unexpected history (-want +got):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("launch did not return after cancellation")
	}
	assert.Contains(t, f.out.String(), "Launch cancelled\n")
	assert.Contains(t, f.out.String(), "Stopping all processes\n")
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(types.LaunchStateInit, types.LaunchStateParsingGraph))
	assert.True(t, CanTransition(types.LaunchStateBuildingHybridNodes, types.LaunchStateCancelled))
	assert.True(t, CanTransition(types.LaunchStateCancelled, types.LaunchStateDraining))
	assert.False(t, CanTransition(types.LaunchStateCancelled, types.LaunchStateRunningSkills))
	assert.True(t, CanTransition(types.LaunchStateRunningSkills, types.LaunchStateCancelled))
	assert.True(t, CanTransition(types.LaunchStateDraining, types.LaunchStateCancelled))
	assert.False(t, CanTransition(types.LaunchStateCancelled, types.LaunchStateTerminated))
	assert.False(t, CanTransition(types.LaunchStateTerminated, types.LaunchStateInit))
	assert.False(t, CanTransition(types.LaunchStateInit, types.LaunchStateRunningSkills))
}
