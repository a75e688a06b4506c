package ports

import (
	"context"

	"skeditor/internal/types"
)

// ProcessRunnerPort runs one shell command to completion. Cancelling ctx
// terminates the child and yields types.ExitInterrupted.
type ProcessRunnerPort interface {
	Run(ctx context.Context, cmd types.Command) (int, error)
}
