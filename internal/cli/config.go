package cli

import (
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skeditor/internal/app"
	"skeditor/internal/policies"
	"skeditor/internal/types"
)

func setConfigDefaults() {
	defaults := app.DefaultConfig()
	viper.SetDefault("log_level", "info")
	viper.SetDefault("build", "build")
	viper.SetDefault("shell", defaults.Shell)
	viper.SetDefault("parameter_policy", string(defaults.ParameterPolicy))
	viper.SetDefault("builtin_parameters", map[string]string{})
	viper.SetDefault("translator.command", defaults.TranslatorCommand)
	viper.SetDefault("toolchain.configure", defaults.ConfigureCommand)
	viper.SetDefault("toolchain.compile", defaults.CompileCommand)
	viper.SetDefault("toolchain.version_command", defaults.VersionCommand)
	viper.SetDefault("simulation.core_name", defaults.Simulation.CoreName)
	viper.SetDefault("simulation.core_command", defaults.Simulation.CoreCommand)
	viper.SetDefault("simulation.core_settle", defaults.Simulation.CoreSettle)
	viper.SetDefault("simulation.world_name", defaults.Simulation.WorldName)
	viper.SetDefault("simulation.world_command", defaults.Simulation.WorldCommand)
	viper.SetDefault("simulation.world_settle", defaults.Simulation.WorldSettle)
	viper.SetDefault("drain_interval", defaults.DrainInterval)
}

// loadAppConfig resolves the application config from viper.
func loadAppConfig() (app.Config, error) {
	policy, err := policies.ParseParameterPolicy(viper.GetString("parameter_policy"))
	if err != nil {
		return app.Config{}, err
	}
	builtins := map[string]string{}
	for name, value := range viper.GetStringMapString("builtin_parameters") {
		builtins[strings.TrimSpace(name)] = value
	}
	interval := viper.GetDuration("drain_interval")
	if interval <= 0 {
		return app.Config{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("drain_interval must be positive")
	}
	return app.Config{
		Shell:               viper.GetStringSlice("shell"),
		ParameterPolicy:     policy,
		BuiltinParameters:   builtins,
		TemplateDir:         viper.GetString("template_dir"),
		ConsoleDir:          viper.GetString("console_dir"),
		TranslatorCommand:   viper.GetString("translator.command"),
		ConfigureCommand:    viper.GetString("toolchain.configure"),
		CompileCommand:      viper.GetString("toolchain.compile"),
		VersionCommand:      viper.GetString("toolchain.version_command"),
		MinToolchainVersion: viper.GetString("toolchain.min_version"),
		Simulation: types.SimulationSettings{
			CoreName:     viper.GetString("simulation.core_name"),
			CoreCommand:  viper.GetString("simulation.core_command"),
			CoreSettle:   viper.GetDuration("simulation.core_settle"),
			WorldName:    viper.GetString("simulation.world_name"),
			WorldCommand: viper.GetString("simulation.world_command"),
			WorldSettle:  viper.GetDuration("simulation.world_settle"),
		},
		DrainInterval: interval,
		Output:        os.Stdout,
	}, nil
}

func newAppService() (app.Service, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return app.Service{}, err
	}
	return app.NewService(cfg), nil
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
