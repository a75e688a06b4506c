package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"skeditor/internal/ports"
	"skeditor/internal/shared"
	"skeditor/internal/types"
)

const (
	defaultDrainInterval = time.Second
	defaultCoreName      = "roscore"
	defaultWorldName     = "gazebo"
)

var errLaunchCancelled = errors.New("launch cancelled")

var allowedLaunchTransitions = map[types.LaunchState][]types.LaunchState{
	types.LaunchStateInit: {types.LaunchStateParsingGraph},
	types.LaunchStateParsingGraph: {
		types.LaunchStateBuildingHybridNodes,
		types.LaunchStateCancelled,
		types.LaunchStateDraining,
	},
	types.LaunchStateBuildingHybridNodes: {
		types.LaunchStateBuildingNativeNodes,
		types.LaunchStateCancelled,
		types.LaunchStateDraining,
	},
	types.LaunchStateBuildingNativeNodes: {
		types.LaunchStateStartingInfrastructure,
		types.LaunchStateCancelled,
		types.LaunchStateDraining,
	},
	types.LaunchStateStartingInfrastructure: {
		types.LaunchStateRunningSkills,
		types.LaunchStateCancelled,
		types.LaunchStateDraining,
	},
	types.LaunchStateRunningSkills: {types.LaunchStateCancelled, types.LaunchStateDraining},
	types.LaunchStateCancelled:     {types.LaunchStateDraining},
	types.LaunchStateDraining:      {types.LaunchStateCancelled, types.LaunchStateTerminated},
}

// CanTransition reports whether a launch may move from one state to another.
func CanTransition(from types.LaunchState, to types.LaunchState) bool {
	for _, allowed := range allowedLaunchTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type SessionSettings struct {
	Simulation          types.SimulationSettings
	DrainInterval       time.Duration
	MinToolchainVersion string
}

type LaunchRequest struct {
	GraphPath string
	BuildRoot string
	WorldPath string
}

type SessionDeps struct {
	Graphs     ports.GraphLoaderPort
	Generator  CodeGenerator
	Toolchain  ports.ToolchainPort
	Workspace  ports.WorkspacePort
	PackageXML ports.PackageXMLPort
	Scheduler  *TaskScheduler
	Out        io.Writer
}

// Session is one launch of a skill graph. It is single use.
type Session struct {
	ID         string
	Graphs     ports.GraphLoaderPort
	Generator  CodeGenerator
	Toolchain  ports.ToolchainPort
	Workspace  ports.WorkspacePort
	PackageXML ports.PackageXMLPort
	Scheduler  *TaskScheduler
	Out        io.Writer
	Settings   SessionSettings
	Sleep      func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     types.LaunchState
	history   []types.LaunchState
	tasks     []types.ScheduledTask
	released  int
	cancelled bool
	forced    bool
}

func NewSession(deps SessionDeps, settings SessionSettings) *Session {
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	if settings.DrainInterval <= 0 {
		settings.DrainInterval = defaultDrainInterval
	}
	if strings.TrimSpace(settings.Simulation.CoreName) == "" {
		settings.Simulation.CoreName = defaultCoreName
	}
	if strings.TrimSpace(settings.Simulation.WorldName) == "" {
		settings.Simulation.WorldName = defaultWorldName
	}
	return &Session{
		ID:         uuid.NewString(),
		Graphs:     deps.Graphs,
		Generator:  deps.Generator,
		Toolchain:  deps.Toolchain,
		Workspace:  deps.Workspace,
		PackageXML: deps.PackageXML,
		Scheduler:  deps.Scheduler,
		Out:        out,
		Settings:   settings,
		Sleep:      sleepContext,
		state:      types.LaunchStateInit,
		history:    []types.LaunchState{types.LaunchStateInit},
	}
}

// Launch builds every node of the graph, starts the simulation
// infrastructure, releases the skills and waits until all processes have
// exited. Cancelling ctx interrupts whatever phase is active. The returned
// error is the build failure, if any; cancellation is reported in the
// LaunchReport instead.
func (s *Session) Launch(ctx context.Context, req LaunchRequest) (types.LaunchReport, error) {
	logger := log.Ctx(ctx).With().Str("session", s.ID).Logger()
	ctx = logger.WithContext(ctx)
	s.printAttributes(req)

	err := s.build(ctx, req)
	switch {
	case errors.Is(err, errLaunchCancelled):
		err = nil
	case err != nil:
		discarded := s.Scheduler.Discard()
		logger.Error().Err(err).Int("discarded", discarded).Msg("launch failed")
		fmt.Fprintf(s.Out, "\nBuild failed: %s\n", errorMessage(err))
	}

	s.drain(ctx)
	s.transition(types.LaunchStateTerminated)
	fmt.Fprintln(s.Out, "All tasks are done, exiting launcher...")
	return s.Report(), err
}

func (s *Session) State() types.LaunchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Report() types.LaunchReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.LaunchReport{
		SessionID: s.ID,
		State:     s.state,
		History:   append([]types.LaunchState(nil), s.history...),
		Tasks:     append([]types.ScheduledTask(nil), s.tasks...),
		Released:  s.released,
		Cancelled: s.cancelled,
		Forced:    s.forced,
	}
}

func (s *Session) build(ctx context.Context, req LaunchRequest) error {
	logger := log.Ctx(ctx)
	s.transition(types.LaunchStateParsingGraph)
	graph, err := s.Graphs.Load(req.GraphPath)
	if err != nil {
		return types.NewLaunchError(types.ErrorKindParse, req.GraphPath, err)
	}
	if dups := graph.DuplicateSlugs(); len(dups) > 0 {
		return types.NewLaunchError(types.ErrorKindParse, req.GraphPath, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("skill graph nodes share the name %s", strings.Join(dups, ", "))))
	}
	for _, name := range graph.DuplicateParameters() {
		logger.Warn().Str("parameter", name).Msg("parameter declared more than once, last value wins")
	}
	params := graph.ParameterTable()
	s.printParameters(params)
	if err := s.checkToolchain(ctx, graph); err != nil {
		return s.buildFailure(ctx, err)
	}
	if s.interrupted(ctx) {
		return errLaunchCancelled
	}

	s.transition(types.LaunchStateBuildingHybridNodes)
	if err := s.buildControllerNodes(ctx, graph.Nodes, params, req.BuildRoot); err != nil {
		return s.buildFailure(ctx, err)
	}
	if s.interrupted(ctx) {
		return errLaunchCancelled
	}

	s.transition(types.LaunchStateBuildingNativeNodes)
	if err := s.buildProgramNodes(ctx, graph.Nodes, req.BuildRoot); err != nil {
		return s.buildFailure(ctx, err)
	}
	if s.interrupted(ctx) {
		return errLaunchCancelled
	}

	s.transition(types.LaunchStateStartingInfrastructure)
	if err := s.startInfrastructure(ctx, req); err != nil {
		return s.buildFailure(ctx, err)
	}
	if s.interrupted(ctx) {
		return errLaunchCancelled
	}

	s.transition(types.LaunchStateRunningSkills)
	fmt.Fprintln(s.Out, "Starting all Skills")
	released := s.Scheduler.ReleaseAll()
	s.mu.Lock()
	s.released = released
	s.mu.Unlock()
	logger.Info().Int("released", released).Msg("skills released")
	return nil
}

func (s *Session) checkToolchain(ctx context.Context, graph types.Graph) error {
	if strings.TrimSpace(s.Settings.MinToolchainVersion) == "" || s.Toolchain == nil {
		return nil
	}
	needsBuild := false
	for _, node := range graph.Nodes {
		if node.Kind() != types.NodeKindSkip {
			needsBuild = true
			break
		}
	}
	if !needsBuild {
		return nil
	}
	version, err := s.Toolchain.CheckVersion(ctx, s.Settings.MinToolchainVersion)
	if err != nil {
		return types.NewLaunchError(types.ErrorKindPrecondition, "toolchain", err)
	}
	log.Ctx(ctx).Debug().Str("version", version).Msg("toolchain version accepted")
	return nil
}

func (s *Session) startInfrastructure(ctx context.Context, req LaunchRequest) error {
	sim := s.Settings.Simulation
	if line := strings.TrimSpace(sim.CoreCommand); line != "" {
		s.Scheduler.Run(types.ScheduledTask{ID: uuid.NewString(), Name: sim.CoreName, Command: line, Dir: req.BuildRoot})
		if err := s.Sleep(ctx, sim.CoreSettle); err != nil {
			return err
		}
	}
	if line := strings.TrimSpace(sim.WorldCommand); line != "" {
		line = shared.ExpandCommand(line, map[string]string{"world": req.WorldPath})
		s.Scheduler.Run(types.ScheduledTask{ID: uuid.NewString(), Name: sim.WorldName, Command: line, Dir: req.BuildRoot})
		if err := s.Sleep(ctx, sim.WorldSettle); err != nil {
			return err
		}
	}
	return nil
}

// drain waits for every process to exit, polling once per drain interval.
// Cancellation while waiting forces all processes down.
func (s *Session) drain(ctx context.Context) {
	s.transition(types.LaunchStateDraining)
	for !s.Scheduler.ShutdownGraceful(ctx, s.Settings.DrainInterval) {
		if !s.interrupted(ctx) {
			continue
		}
		if s.State() == types.LaunchStateCancelled {
			s.transition(types.LaunchStateDraining)
		}
		fmt.Fprintln(s.Out, "Stopping all processes")
		s.Scheduler.ShutdownForced()
		s.mu.Lock()
		s.forced = true
		s.mu.Unlock()
		return
	}
}

// buildFailure reports failures caused by cancellation as a cancelled launch.
func (s *Session) buildFailure(ctx context.Context, err error) error {
	if s.interrupted(ctx) {
		return errLaunchCancelled
	}
	return err
}

func (s *Session) interrupted(ctx context.Context) bool {
	if ctx.Err() == nil {
		return false
	}
	s.mu.Lock()
	already := s.cancelled
	s.cancelled = true
	s.mu.Unlock()
	if !already {
		fmt.Fprintln(s.Out, "Launch cancelled")
		s.transition(types.LaunchStateCancelled)
	}
	return true
}

func (s *Session) transition(to types.LaunchState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanTransition(s.state, to) {
		panic(fmt.Sprintf("invalid launch transition %s -> %s", s.state, to))
	}
	s.state = to
	s.history = append(s.history, to)
}

func (s *Session) printAttributes(req LaunchRequest) {
	fmt.Fprintln(s.Out, "===Attributes===")
	fmt.Fprintf(s.Out, "sked: %s\n", req.GraphPath)
	fmt.Fprintf(s.Out, "build: %s\n", req.BuildRoot)
	fmt.Fprintf(s.Out, "world: %s\n", req.WorldPath)
	fmt.Fprintln(s.Out, "================")
}

func (s *Session) printParameters(params types.ParameterTable) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.Out, "Parameter %s = %s\n", name, params[name])
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
