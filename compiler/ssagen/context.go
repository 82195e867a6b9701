package ssagen

import (
	"tlog.app/go/errors"
	"tlog.app/go/loc"

	"github.com/quill-lang/quill/compiler/mono"
	"github.com/quill-lang/quill/compiler/ssa"
	"github.com/quill-lang/quill/compiler/tp"
)

type (
	// sharedContext is the per-program driver state: the input, the output
	// package, the source-to-target function id map and the worklist of
	// functions referenced by some call site but not yet translated.
	sharedContext struct {
		program *mono.Program

		pkg *ssa.Package

		funcs map[mono.FuncID]ssa.FuncID
		queue []queued

		from loc.PC
	}

	queued struct {
		src mono.FuncID
		dst ssa.FuncID
	}

	// funContext translates one function. It owns the insertion cursor and
	// the binding environment and is discarded when the body is done.
	funContext struct {
		*sharedContext

		b *ssa.FuncBuilder

		defs map[mono.LocalID]Values
	}
)

func newSharedContext(p *mono.Program) *sharedContext {
	return &sharedContext{
		program: p,
		pkg:     &ssa.Package{},
		funcs:   map[mono.FuncID]ssa.FuncID{},
		from:    loc.Caller(1),
	}
}

// reserve maps a source function to a fresh target id without queueing it.
func (c *sharedContext) reserve(fn *mono.Func) ssa.FuncID {
	id := c.pkg.NewFunc(fn.Name).ID
	c.funcs[fn.ID] = id

	return id
}

// funcID resolves a call target. The first reference to a source function
// reserves a target id and enqueues the function, so the id is usable
// before the body exists and recursion cycles terminate.
func (c *sharedContext) funcID(src mono.FuncID) ssa.FuncID {
	if id, ok := c.funcs[src]; ok {
		return id
	}

	fn := c.program.Func(src)
	if fn == nil {
		panic(errors.New("call of unknown function %d", src))
	}

	id := c.reserve(fn)
	c.queue = append(c.queue, queued{src: src, dst: id})

	return id
}

func (c *sharedContext) pop() (q queued, ok bool) {
	if len(c.queue) == 0 {
		return q, false
	}

	q = c.queue[0]
	c.queue = c.queue[1:]

	return q, true
}

func newFunContext(c *sharedContext, fn *ssa.Func) *funContext {
	return &funContext{
		sharedContext: c,
		b:             ssa.NewFuncBuilder(fn),
		defs:          map[mono.LocalID]Values{},
	}
}

func (fc *funContext) define(local mono.LocalID, v Values) {
	fc.defs[local] = v
}

func (fc *funContext) lookup(local mono.LocalID, name string) Values {
	v, ok := fc.defs[local]
	if !ok {
		panic(errors.New("unbound identifier %v (local %d)", name, local))
	}

	return v
}

// eval resolves a value for use in an instruction. A materialized value
// resolves to itself; a mutable slot is read with a single load and nothing
// else happens.
func (fc *funContext) eval(v Value) ssa.ExprID {
	if !v.mutable {
		return v.id
	}

	return fc.b.Load(v.id, fc.b.FieldConst(0), v.typ)
}

// evalTree flattens a value tree into leaf order and resolves every leaf.
func (fc *funContext) evalTree(t Values) (l []ssa.ExprID) {
	t.ForEach(func(v Value) {
		l = append(l, fc.eval(v))
	})

	return l
}

func (fc *funContext) unit() Values { return Branch[Value]() }

// offset is base+i folded for the common i == 0 case.
func (fc *funContext) offset(base ssa.ExprID, i uint64) ssa.ExprID {
	if i == 0 {
		return base
	}

	return fc.b.Binary(base, ssa.Add, fc.b.FieldConst(i))
}

// convertType mirrors a source type as a tree of scalar types. Arrays and
// strings convert to a single leaf: the address; their element shape lives
// in memory layout only.
func convertType(t tp.Type) Tree[ssa.Type] {
	switch t := t.(type) {
	case tp.Field:
		return Leaf(ssa.FieldType())
	case tp.Bool:
		return Leaf(ssa.BoolType())
	case tp.Int:
		if t.Signed {
			return Leaf(ssa.IntType(int(t.Bits)))
		}

		return Leaf(ssa.UintType(int(t.Bits)))
	case tp.Unit:
		return Branch[ssa.Type]()
	case tp.Array, tp.String:
		return Leaf(ssa.FieldType())
	case tp.Tuple:
		sub := make([]Tree[ssa.Type], len(t.Items))
		for i, it := range t.Items {
			sub[i] = convertType(it)
		}

		return Branch(sub...)
	default:
		panic(errors.New("unsupported type: %T", t))
	}
}

func convertScalar(t tp.Type) ssa.Type {
	return convertType(t).Leaf()
}
