package adapters

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/afero"

	"skeditor/internal/ports"
)

// SkillNamePlaceholder is replaced with the project name in the build
// descriptors of the template.
const SkillNamePlaceholder = "SKILL_NAME"

//go:embed all:templates/project
var embeddedTemplates embed.FS

// substitutedFiles are the template files whose SKILL_NAME tokens are
// rewritten. Everything else is copied verbatim.
var substitutedFiles = []string{"CMakeLists.txt", "package.xml"}

// ProjectTemplateAdapter copies the native project template into a
// generated project directory.
type ProjectTemplateAdapter struct {
	Fs       afero.Fs
	Template fs.FS
}

// NewProjectTemplateAdapter uses templateDir as the template source when
// set and the built-in template otherwise.
func NewProjectTemplateAdapter(templateDir string) ProjectTemplateAdapter {
	return ProjectTemplateAdapter{
		Fs:       afero.NewOsFs(),
		Template: templateSource(templateDir),
	}
}

func templateSource(templateDir string) fs.FS {
	if strings.TrimSpace(templateDir) != "" {
		return os.DirFS(templateDir)
	}
	sub, err := fs.Sub(embeddedTemplates, "templates/project")
	if err != nil {
		panic(err)
	}
	return sub
}

func (a ProjectTemplateAdapter) Materialize(dir string, name string) error {
	if strings.TrimSpace(dir) == "" || strings.TrimSpace(name) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("project directory and name are required")
	}
	if err := a.Fs.RemoveAll(dir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to clear project directory").
			WithCause(err)
	}
	if err := a.Fs.MkdirAll(dir, 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create project directory").
			WithCause(err)
	}
	err := fs.WalkDir(a.Template, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return a.Fs.MkdirAll(target, 0o755)
		}
		content, err := fs.ReadFile(a.Template, path)
		if err != nil {
			return err
		}
		return afero.WriteFile(a.Fs, target, content, 0o644)
	})
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to copy project template").
			WithCause(err)
	}

	for _, rel := range substitutedFiles {
		path := filepath.Join(dir, rel)
		content, err := afero.ReadFile(a.Fs, path)
		if err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("project template is missing " + rel).
				WithCause(err)
		}
		content = bytes.ReplaceAll(content, []byte(SkillNamePlaceholder), []byte(name))
		if err := afero.WriteFile(a.Fs, path, content, 0o644); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to write " + rel).
				WithCause(err)
		}
	}
	return nil
}

func (a ProjectTemplateAdapter) WriteFile(dir string, relPath string, content []byte) error {
	target := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := a.Fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create directory for " + relPath).
			WithCause(err)
	}
	if err := afero.WriteFile(a.Fs, target, content, 0o644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + relPath).
			WithCause(err)
	}
	return nil
}

var _ ports.ProjectPort = ProjectTemplateAdapter{}
