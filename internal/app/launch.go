package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"skeditor/internal/core"
)

func (s Service) Launch(ctx context.Context, req LaunchRequest) (LaunchResult, error) {
	graphPath := strings.TrimSpace(req.GraphPath)
	if graphPath == "" {
		return LaunchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("skill graph path is required")
	}
	buildDir := strings.TrimSpace(req.BuildDir)
	if buildDir == "" {
		return LaunchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("build directory is required")
	}
	buildDir, err := filepath.Abs(buildDir)
	if err != nil {
		return LaunchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid build directory").
			WithCause(err)
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return LaunchResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create build directory").
			WithCause(err)
	}
	worldPath := strings.TrimSpace(req.WorldPath)
	if worldPath == "" && strings.Contains(s.Config.Simulation.WorldCommand, "{world}") {
		log.Ctx(ctx).Warn().Msg("no world file given, the simulator starts with an empty world path")
	}

	session := core.NewSession(core.SessionDeps{
		Graphs:     s.Graphs,
		Generator:  s.codeGenerator(),
		Toolchain:  s.Toolchain,
		Workspace:  s.Workspace,
		PackageXML: s.PackageXML,
		Scheduler:  core.NewTaskScheduler(ctx, s.Runner, s.Consoles),
		Out:        s.Consoles.Open("Skill"),
	}, core.SessionSettings{
		Simulation:          s.Config.Simulation,
		DrainInterval:       s.Config.DrainInterval,
		MinToolchainVersion: s.Config.MinToolchainVersion,
	})

	start := s.Clock()
	report, err := session.Launch(ctx, core.LaunchRequest{
		GraphPath: graphPath,
		BuildRoot: buildDir,
		WorldPath: worldPath,
	})
	return LaunchResult{Report: report, Duration: s.Clock().Sub(start)}, err
}
