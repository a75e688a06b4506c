package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"skeditor/internal/app"
	"skeditor/internal/types"
)

type inspectOptions struct {
	GraphPath string
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the nodes and parameters of a skill graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.GraphPath, "sked", "", "Skill graph document")
	return cmd
}

func runInspect(cmd *cobra.Command, opts inspectOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Inspect(app.InspectRequest{
		GraphPath: resolveString(cmd, opts.GraphPath, "sked", "sked"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("nodes: %d\n", len(result.Nodes))
	for _, node := range result.Nodes {
		switch node.Kind {
		case types.NodeKindController:
			fmt.Printf("- %s (%s): %d controller(s)\n", node.Slug, node.Kind, node.Controllers)
		case types.NodeKindProgram:
			fmt.Printf("- %s (%s): %s\n", node.Slug, node.Kind, node.ProgramPath)
		default:
			fmt.Printf("- %s (%s)\n", node.Slug, node.Kind)
		}
	}
	fmt.Printf("parameters: %d\n", len(result.Parameters))
	for _, param := range result.Parameters {
		fmt.Printf("- %s = %s\n", param.Name, param.Default)
	}
	if len(result.Duplicates) > 0 {
		fmt.Printf("declared more than once: %s\n", strings.Join(result.Duplicates, ", "))
	}
	return nil
}
