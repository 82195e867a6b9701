package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/quill-lang/quill/compiler"
	"github.com/quill-lang/quill/compiler/ssa"
)

func main() {
	ssaCmd := &cli.Command{
		Name:        "ssa",
		Description: "generate ssa from a monomorphized program dump",
		Action:      ssaAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "quill",
		Description: "quill is a tool for working with quill compiler stages",
		Commands: []*cli.Command{
			ssaCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func ssaAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		pkg, err := compiler.GenerateFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "generate %v", a)
		}

		fmt.Printf("%s", ssa.Format(nil, pkg))
	}

	return nil
}
