package ports

import "context"

// ToolchainPort drives the native build tooling. Each step writes its
// output to logFile inside the directory it runs in.
type ToolchainPort interface {
	Configure(ctx context.Context, sourceDir string, buildDir string, logFile string) error
	Compile(ctx context.Context, buildDir string, logFile string) error

	// CheckVersion reports the detected toolchain version and fails when it
	// is older than minVersion. An empty minVersion skips the comparison.
	CheckVersion(ctx context.Context, minVersion string) (string, error)
}
