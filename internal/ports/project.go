package ports

// ProjectPort materializes generated native projects on disk.
type ProjectPort interface {
	// Materialize wipes dir, copies the project template into it and
	// substitutes the skill name into the build descriptors.
	Materialize(dir string, name string) error

	// WriteFile writes content to relPath inside dir.
	WriteFile(dir string, relPath string, content []byte) error
}
