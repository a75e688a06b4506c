package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"skeditor/internal/app"
)

type launchOptions struct {
	GraphPath string
	BuildDir  string
	WorldPath string
}

func newLaunchCommand() *cobra.Command {
	opts := launchOptions{}
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Build every skill of a graph and run them in simulation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLaunch(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.GraphPath, "sked", "", "Skill graph document")
	cmd.Flags().StringVar(&opts.BuildDir, "build", "build", "Build directory")
	cmd.Flags().StringVar(&opts.WorldPath, "world", "", "Simulator world file")

	_ = viper.BindPFlag("sked", cmd.Flags().Lookup("sked"))
	_ = viper.BindPFlag("build", cmd.Flags().Lookup("build"))
	_ = viper.BindPFlag("world", cmd.Flags().Lookup("world"))

	return cmd
}

func runLaunch(ctx context.Context, cmd *cobra.Command, opts launchOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Launch(ctx, app.LaunchRequest{
		GraphPath: resolveString(cmd, opts.GraphPath, "sked", "sked"),
		BuildDir:  resolveString(cmd, opts.BuildDir, "build", "build"),
		WorldPath: resolveString(cmd, opts.WorldPath, "world", "world"),
	})
	if closeErr := service.Close(); closeErr != nil {
		log.Ctx(ctx).Warn().Err(closeErr).Msg("failed to close consoles")
	}
	if err != nil {
		return err
	}

	report := result.Report
	fmt.Printf("Session %s: %d skills released in %s\n", report.SessionID, report.Released, result.Duration.Round(time.Millisecond))
	if report.Cancelled {
		if report.Forced {
			fmt.Println("Processes were stopped forcibly")
		}
		return errLaunchCancelled
	}
	return nil
}
