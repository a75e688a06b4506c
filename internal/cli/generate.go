package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"skeditor/internal/app"
)

type generateOptions struct {
	ProgramPath string
	Name        string
	OutputDir   string
	GraphPath   string
	Parameters  map[string]string
}

func newGenerateCommand() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a controller executable from a hybrid program",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ProgramPath, "program", "", "Hybrid program file (.kyx)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Skill name (defaults to the program file name)")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "", "Project output directory")
	cmd.Flags().StringVar(&opts.GraphPath, "sked", "", "Skill graph to take parameter defaults from")
	cmd.Flags().StringToStringVar(&opts.Parameters, "param", nil, "Parameter values (name=value)")
	return cmd
}

func runGenerate(ctx context.Context, cmd *cobra.Command, opts generateOptions) error {
	ctx = log.Logger.WithContext(ctx)
	service, err := newAppService()
	if err != nil {
		return err
	}
	defer service.Close()

	result, err := service.Generate(ctx, app.GenerateRequest{
		Name:        opts.Name,
		ProgramPath: opts.ProgramPath,
		OutputDir:   opts.OutputDir,
		GraphPath:   resolveString(cmd, opts.GraphPath, "sked", "sked"),
		Parameters:  opts.Parameters,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Executable: %s\n", result.Executable)
	return nil
}
