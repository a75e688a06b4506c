package adapters

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"skeditor/internal/ports"
)

type WorkspaceAdapter struct{}

func NewWorkspaceAdapter() WorkspaceAdapter {
	return WorkspaceAdapter{}
}

// FindPackageXML returns the package manifests below root, shallowest
// first. Build output directories are not searched.
func (a WorkspaceAdapter) FindPackageXML(root string) ([]string, error) {
	var paths []string
	if root == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("project root is empty")
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldSkipWorkspaceDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldSkipWorkspacePath(root, path) {
			return nil
		}
		if filepath.Base(path) == "package.xml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan project").
			WithCause(err)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return pathDepth(paths[i]) < pathDepth(paths[j])
	})
	return paths, nil
}

func shouldSkipWorkspaceDir(name string) bool {
	switch name {
	case "install", "build", "log", ".git", ".catkin_tools", ".ros", "devel":
		return true
	default:
		return false
	}
}

// shouldSkipWorkspacePath checks the part of path below root only, so a
// project that itself lives under a "build" directory is still searched.
func shouldSkipWorkspacePath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	for _, part := range parts {
		if part != "." && shouldSkipWorkspaceDir(part) {
			return true
		}
	}
	return false
}

func pathDepth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}

var _ ports.WorkspacePort = WorkspaceAdapter{}
