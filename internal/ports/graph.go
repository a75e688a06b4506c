package ports

import "skeditor/internal/types"

// GraphLoaderPort reads a skill graph document. The document format is
// chosen by the implementation, usually from the file extension.
type GraphLoaderPort interface {
	Load(path string) (types.Graph, error)
}
