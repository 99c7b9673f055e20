package port

import "context"

type Decompiler interface {
	Decompile(ctx context.Context, pexPath, outDir string) (string, error)
}
