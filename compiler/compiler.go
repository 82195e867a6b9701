package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/quill-lang/quill/compiler/mono"
	"github.com/quill-lang/quill/compiler/ssa"
	"github.com/quill-lang/quill/compiler/ssagen"
)

// GenerateFile loads a monomorphized program dump and lowers it to SSA.
func GenerateFile(ctx context.Context, name string) (*ssa.Package, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	p, err := mono.Load(text)
	if err != nil {
		return nil, errors.Wrap(err, "load program")
	}

	return Generate(ctx, p)
}

// Generate runs the SSA generation stage. The input is consumed read-only;
// the result is ready for the downstream constraint lowering.
func Generate(ctx context.Context, p *mono.Program) (*ssa.Package, error) {
	pkg, err := ssagen.Generate(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "generate ssa")
	}

	return pkg, nil
}
