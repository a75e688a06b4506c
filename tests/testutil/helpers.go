// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// WriteScript writes an executable shell script into dir and returns its path.
func WriteScript(t *testing.T, dir string, name string, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// ConfigureScript stands in for cmake: it records the package name of the
// source directory given as $1 in the build directory.
const ConfigureScript = `name=$(sed -n 's:.*<name>\(.*\)</name>.*:\1:p' "$1/package.xml" | head -n 1)
echo "$name" > skill-name.txt
echo "configured $name"
`

// CompileScript stands in for make: it installs an executable named after
// the recorded package into the devel space.
const CompileScript = `name=$(cat skill-name.txt)
mkdir -p "devel/lib/$name"
printf '#!/bin/sh\necho "%s running"\n' "$name" > "devel/lib/$name/$name"
chmod +x "devel/lib/$name/$name"
echo "built $name"
`

// GeneratedController is C text in the shape the hybrid-program translator
// emits.
const GeneratedController = `#include <math.h>

typedef struct parameters {
  long double B;
  long double ep;
} parameters;

typedef struct state {
  long double a;
  long double v;
} state;

typedef struct input {
  long double d;
} input;

state ctrlStep(state curr, const parameters* const params, const input* const in) {
  state state;
  state.a = -params->B;
  state.v = curr.v + params->ep * curr.a;
  return state;
}
`
