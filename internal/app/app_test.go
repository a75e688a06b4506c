package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skeditor/internal/shared"
	"skeditor/internal/types"
)

const fakeGeneratedController = `typedef struct parameters {
  long double ep;
} parameters;

typedef struct state {
  long double x;
} state;

typedef struct input {
  long double d;
} input;

state ctrlStep(state curr, const parameters* const params, const input* const in) {
  state state;
  state.x = curr.x + params->ep * in->d;
  return state;
}
`

// fakeCompile stands in for make: it derives the project name from the
// build directory's parent and drops an executable into the devel space.
const fakeCompile = `name=$(basename "$(dirname "$PWD")"); mkdir -p devel/lib/$name && printf '#!/bin/sh\necho hello from %s\n' $name > devel/lib/$name/$name && chmod +x devel/lib/$name/$name`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testConfig replaces every external tool with a shell stand-in.
func testConfig(t *testing.T, out *syncBuffer) Config {
	t.Helper()
	generated := filepath.Join(t.TempDir(), "controller.c")
	require.NoError(t, os.WriteFile(generated, []byte(fakeGeneratedController), 0644))

	cfg := DefaultConfig()
	cfg.Shell = []string{"sh", "-c"}
	cfg.TranslatorCommand = "cat " + shared.ShellQuote(generated) + " > {output}"
	cfg.ConfigureCommand = "echo configured {source}"
	cfg.CompileCommand = fakeCompile
	cfg.Simulation = types.SimulationSettings{
		CoreName:     "roscore",
		CoreCommand:  "echo core up",
		WorldName:    "gazebo",
		WorldCommand: "echo world {world}",
	}
	cfg.DrainInterval = 50 * time.Millisecond
	cfg.Output = out
	return cfg
}

func writeFile(t *testing.T, path string, content string, mode os.FileMode) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}
