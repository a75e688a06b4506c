package ports

import "context"

// TranslatorPort turns hybrid-program text into procedural controller
// source. It is a black box: text in, generated code out, or an error.
type TranslatorPort interface {
	Translate(ctx context.Context, hybridProgram string) (string, error)
}
