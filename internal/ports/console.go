package ports

import "io"

// ConsolePort hands out named, append-only output streams. Opening a name
// that is already open returns the existing stream.
type ConsolePort interface {
	Open(name string) io.Writer
	Close() error
}
