package types

import (
	"io"
	"time"
)

// ExitInterrupted is returned instead of an exit code when the wait for a
// child process was interrupted. Real exit codes are never negative.
const ExitInterrupted = -1

// Command describes a single shell invocation. Output goes either to
// Console or to LogFile inside Dir, never both.
type Command struct {
	Name    string
	Line    string
	Dir     string
	LogFile string
	Console io.Writer
}

// ScheduledTask is a deferred run instruction for a built executable.
type ScheduledTask struct {
	ID      string
	Name    string
	Command string
	Dir     string
}

type LaunchState string

const (
	LaunchStateInit                   LaunchState = "init"
	LaunchStateParsingGraph           LaunchState = "parsing_graph"
	LaunchStateBuildingHybridNodes    LaunchState = "building_hybrid_nodes"
	LaunchStateBuildingNativeNodes    LaunchState = "building_native_nodes"
	LaunchStateStartingInfrastructure LaunchState = "starting_infrastructure"
	LaunchStateRunningSkills          LaunchState = "running_skills"
	LaunchStateCancelled              LaunchState = "cancelled"
	LaunchStateDraining               LaunchState = "draining"
	LaunchStateTerminated             LaunchState = "terminated"
)

// SimulationSettings describes the shared infrastructure started before
// any skill executable.
type SimulationSettings struct {
	CoreName     string
	CoreCommand  string
	CoreSettle   time.Duration
	WorldName    string
	WorldCommand string
	WorldSettle  time.Duration
}

type LaunchReport struct {
	SessionID string
	State     LaunchState
	History   []LaunchState
	Tasks     []ScheduledTask
	Released  int
	Cancelled bool
	Forced    bool
}
