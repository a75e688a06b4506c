package app

import (
	"io"
	"os"
	"time"

	"skeditor/internal/adapters"
	"skeditor/internal/types"
)

// Config carries the resolved settings the adapters are built from.
type Config struct {
	Shell               []string
	ParameterPolicy     types.ParameterPolicy
	BuiltinParameters   map[string]string
	TemplateDir         string
	ConsoleDir          string
	TranslatorCommand   string
	ConfigureCommand    string
	CompileCommand      string
	VersionCommand      string
	MinToolchainVersion string
	Simulation          types.SimulationSettings
	DrainInterval       time.Duration
	Output              io.Writer
}

func DefaultConfig() Config {
	return Config{
		Shell:             append([]string(nil), adapters.DefaultShell...),
		ParameterPolicy:   types.ParameterPolicyFail,
		TranslatorCommand: adapters.DefaultTranslatorCommand,
		ConfigureCommand:  adapters.DefaultConfigureCommand,
		CompileCommand:    adapters.DefaultCompileCommand,
		VersionCommand:    adapters.DefaultVersionCommand,
		Simulation: types.SimulationSettings{
			CoreName:     "roscore",
			CoreCommand:  "/opt/ros/noetic/bin/roscore",
			CoreSettle:   time.Second,
			WorldName:    "gazebo",
			WorldCommand: "rosrun gazebo_ros gazebo {world}",
			WorldSettle:  5 * time.Second,
		},
		DrainInterval: time.Second,
		Output:        os.Stdout,
	}
}
