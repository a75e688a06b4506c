package ports

// PackageXMLPort reads package.xml manifests of native projects.
type PackageXMLPort interface {
	// ParsePackageNames returns the <name> element from each package.xml.
	ParsePackageNames(paths []string) ([]string, error)
}

// WorkspacePort discovers package.xml files within a project directory.
type WorkspacePort interface {
	FindPackageXML(root string) ([]string, error)
}
