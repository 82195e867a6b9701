// Package ssagen lowers a monomorphized program tree into a control flow
// graph in static single assignment form. Merge points are expressed as
// block parameters, so no separate phi insertion or dominance pass runs
// after it. No bounds checks are emitted for array accesses here; range
// proofs are the constraint stage's obligation.
package ssagen

import (
	"context"
	"math"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/quill-lang/quill/compiler/mono"
	"github.com/quill-lang/quill/compiler/ssa"
)

// Generate translates the whole program, entry function first, then every
// function discovered through call sites, each exactly once.
func Generate(ctx context.Context, p *mono.Program) (_ *ssa.Package, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "ssagen: generate", "funcs", len(p.Funcs))
	defer tr.Finish("err", &err)

	main := p.Func(p.Entry)
	if main == nil {
		return nil, errors.New("no entry function: %d", p.Entry)
	}

	c := newSharedContext(p)

	tr.V("ssagen").Printw("shared context", "from", c.from)

	c.translate(ctx, main, c.reserve(main))

	for q, ok := c.pop(); ok; q, ok = c.pop() {
		c.translate(ctx, p.Func(q.src), q.dst)
	}

	return c.pkg, nil
}

func (c *sharedContext) translate(ctx context.Context, fn *mono.Func, dst ssa.FuncID) {
	tlog.SpanFromContext(ctx).Printw("translate func", "name", fn.Name, "src", fn.ID, "dst", dst)

	fc := newFunContext(c, c.pkg.Func(dst))

	entry := fc.b.CurrentBlock()

	for _, p := range fn.Params {
		v := MapTree(convertType(p.Type), func(typ ssa.Type) Value {
			return materialized(fc.b.AddBlockParam(entry, typ))
		})

		fc.define(p.Local, v)
	}

	ret := fc.codegen(fn.Body)
	fc.b.Ret(fc.evalTree(ret))
}

// codegen is total over the expression kinds. It returns a value tree
// shaped exactly like the type tree of the expression's static type.
func (fc *funContext) codegen(x mono.Expr) Values {
	switch x := x.(type) {
	case mono.Ident:
		return fc.lookup(x.Local, x.Name)
	case mono.Int:
		return Leaf(materialized(fc.b.Const(x.Value, convertScalar(x.Type))))
	case mono.Bool:
		return fc.codegenBool(x)
	case mono.Str:
		return fc.codegenStr(x)
	case mono.ArrayLit:
		elems := make([]Values, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = fc.codegen(e)
		}

		return fc.codegenArray(elems, convertType(x.Elem))
	case mono.Block:
		return fc.codegenBlock(x)
	case mono.Unary:
		return fc.codegenUnary(x)
	case mono.Binary:
		return fc.codegenBinary(x)
	case mono.Index:
		return fc.codegenIndex(x)
	case mono.Cast:
		return Leaf(materialized(fc.b.Cast(fc.scalar(x.X), convertScalar(x.Type))))
	case mono.For:
		return fc.codegenFor(x)
	case mono.If:
		return fc.codegenIf(x)
	case mono.Tuple:
		sub := make([]Values, len(x))
		for i, e := range x {
			sub[i] = fc.codegen(e)
		}

		return Branch(sub...)
	case mono.Extract:
		return fc.codegen(x.Tuple).Sub()[x.Index]
	case mono.Call:
		return fc.codegenCall(x)
	case mono.Let:
		return fc.codegenLet(x)
	case mono.Constrain:
		fc.b.Constrain(fc.scalar(x.X))
		return fc.unit()
	case mono.Assign:
		fc.assign(x.Target, fc.codegen(x.Value))
		return fc.unit()
	case mono.Semi:
		fc.codegen(x.X)
		return fc.unit()
	default:
		panic(errors.New("unsupported expression: %T", x))
	}
}

// scalar translates an expression that must not be tuple shaped and
// resolves it to a single value usable as an instruction operand.
func (fc *funContext) scalar(x mono.Expr) ssa.ExprID {
	v := fc.codegen(x)
	if !v.IsLeaf() {
		panic(errors.New("scalar expected, got a branch: %T", x))
	}

	return fc.eval(v.Leaf())
}

func (fc *funContext) codegenBool(x mono.Bool) Values {
	v := uint64(0)
	if x.Value {
		v = 1
	}

	return Leaf(materialized(fc.b.Const(v, ssa.BoolType())))
}

// codegenStr lowers a string like a byte array: one field element per byte.
func (fc *funContext) codegenStr(x mono.Str) Values {
	elems := make([]Values, len(x.Value))
	for i := 0; i < len(x.Value); i++ {
		elems[i] = Leaf(materialized(fc.b.FieldConst(uint64(x.Value[i]))))
	}

	return fc.codegenArray(elems, Leaf(ssa.FieldType()))
}

// codegenArray allocates elemLeaves*len contiguous slots and stores every
// element's leaves at consecutive offsets, elements in source order, leaves
// depth first. The array value itself is one leaf: the base address.
func (fc *funContext) codegenArray(elems []Values, elemType Tree[ssa.Type]) Values {
	size := uint64(elemType.Count()) * uint64(len(elems))
	if size > math.MaxUint32 {
		panic(errors.New("array of %d slots does not fit the address range", size))
	}

	arr := fc.b.Alloc(uint32(size))

	i := uint64(0)
	for _, el := range elems {
		el.ForEach(func(v Value) {
			fc.b.Store(fc.offset(arr, i), fc.eval(v))
			i++
		})
	}

	return Leaf(materialized(arr))
}

func (fc *funContext) codegenBlock(x mono.Block) Values {
	res := fc.unit()

	for _, e := range x {
		res = fc.codegen(e)
	}

	return res
}

func (fc *funContext) codegenUnary(x mono.Unary) Values {
	rhs := fc.scalar(x.X)

	switch x.Op {
	case mono.Not:
		return Leaf(materialized(fc.b.Not(rhs)))
	case mono.Minus:
		// There is no negate instruction, minus is 0-x in the operand type.
		zero := fc.b.Const(0, fc.b.TypeOf(rhs))
		return Leaf(materialized(fc.b.Binary(zero, ssa.Sub, rhs)))
	default:
		panic(errors.New("unsupported unary op: %d", x.Op))
	}
}

// codegenBinary evaluates the left operand fully, side effects included,
// before the right one starts.
func (fc *funContext) codegenBinary(x mono.Binary) Values {
	l := fc.scalar(x.L)
	r := fc.scalar(x.R)

	return Leaf(materialized(fc.b.Binary(l, convertOp(x.Op), r)))
}

func (fc *funContext) codegenIndex(x mono.Index) Values {
	arr := fc.scalar(x.Array)
	idx := fc.scalar(x.Index)

	return fc.indexLoad(arr, idx, convertType(x.Elem))
}

// indexLoad loads the element's leaves from arr[idx*leafCount ...] in the
// same depth first order codegenArray stored them.
func (fc *funContext) indexLoad(arr, idx ssa.ExprID, elemType Tree[ssa.Type]) Values {
	base := fc.b.Binary(idx, ssa.Mul, fc.b.FieldConst(uint64(elemType.Count())))

	i := uint64(0)

	return MapTree(elemType, func(typ ssa.Type) Value {
		off := fc.offset(base, i)
		i++

		return materialized(fc.b.Load(arr, off, typ))
	})
}

// codegenFor lowers the loop onto three blocks: header holding the
// induction variable as a block parameter and the index < bound test, body
// jumping back with index+1, and exit. Bounds are evaluated once, before
// the header.
func (fc *funContext) codegenFor(x mono.For) Values {
	start := fc.scalar(x.Start)
	end := fc.scalar(x.End)

	header := fc.b.NewBlock()
	body := fc.b.NewBlock()
	exit := fc.b.NewBlock()

	idx := fc.b.AddBlockParam(header, fc.b.TypeOf(start))

	fc.b.Jmp(header, []ssa.ExprID{start})

	fc.b.SwitchTo(header)
	cond := fc.b.Binary(idx, ssa.Lt, end)
	fc.b.JmpIf(cond, body, exit)

	fc.b.SwitchTo(body)
	fc.define(x.Local, Leaf(materialized(idx)))
	fc.codegen(x.Body)

	one := fc.b.Const(1, fc.b.TypeOf(idx))
	next := fc.b.Binary(idx, ssa.Add, one)
	fc.b.Jmp(header, []ssa.ExprID{next})

	fc.b.SwitchTo(exit)

	return fc.unit()
}

// codegenIf lowers to then/else blocks plus, when an else branch exists, an
// end block with one parameter per leaf of the result type. Both branches
// jump to end with their result leaves as arguments; the parameters are the
// merge point, selected by whichever predecessor executed. Without an else
// branch the else block doubles as the end block, the then value is
// discarded and the result is unit.
func (fc *funContext) codegenIf(x mono.If) Values {
	cond := fc.scalar(x.Cond)

	then := fc.b.NewBlock()
	els := fc.b.NewBlock()

	fc.b.JmpIf(cond, then, els)

	fc.b.SwitchTo(then)
	thenVal := fc.codegen(x.Then)
	thenExit := fc.b.CurrentBlock()

	if x.Else == nil {
		fc.b.Jmp(els, nil)
		fc.b.SwitchTo(els)

		return fc.unit()
	}

	fc.b.SwitchTo(els)
	elseVal := fc.codegen(x.Else)

	end := fc.b.NewBlock()

	res := MapTree(convertType(x.Type), func(typ ssa.Type) Value {
		return materialized(fc.b.AddBlockParam(end, typ))
	})

	fc.b.Jmp(end, fc.evalTree(elseVal))

	fc.b.SwitchTo(thenExit)
	fc.b.Jmp(end, fc.evalTree(thenVal))

	fc.b.SwitchTo(end)

	return res
}

// codegenCall flattens the arguments in leaf order and rebuilds the result
// tree from the callee's declared return type. The callee id resolves even
// before its body is translated.
func (fc *funContext) codegenCall(x mono.Call) Values {
	fid := fc.funcID(x.Func)

	var args []ssa.ExprID
	for _, a := range x.Args {
		args = append(args, fc.evalTree(fc.codegen(a))...)
	}

	shape := convertType(x.Ret)
	res := fc.b.Call(fid, args, shape.Flatten())

	i := 0

	return MapTree(shape, func(ssa.Type) Value {
		v := materialized(res[i])
		i++

		return v
	})
}

// codegenLet installs the binding. A mutable binding is backed by one
// allocated slot per leaf so later assignments survive block boundaries;
// reads of it load on use.
func (fc *funContext) codegenLet(x mono.Let) Values {
	v := fc.codegen(x.Value)

	if x.Mutable {
		v = MapTree(v, func(val Value) Value {
			id := fc.eval(val)

			addr := fc.b.Alloc(1)
			fc.b.Store(addr, id)

			return slot(addr, fc.b.TypeOf(id))
		})
	}

	fc.define(x.Local, v)

	return fc.unit()
}

// assign rebinds a plain binding, stores through a mutable one and lowers
// an indexed target to stores at the element's existing addresses.
func (fc *funContext) assign(target mono.LValue, v Values) {
	switch t := target.(type) {
	case mono.Ident:
		old := fc.lookup(t.Local, t.Name)

		if !isMutable(old) {
			fc.define(t.Local, v)
			return
		}

		slots := old.Flatten()
		vals := v.Flatten()

		if len(slots) != len(vals) {
			panic(errors.New("assign to %v: %d slots, %d values", t.Name, len(slots), len(vals)))
		}

		for i, s := range slots {
			fc.b.Store(s.id, fc.eval(vals[i]))
		}
	case mono.LIndex:
		arr := fc.eval(fc.lvalueRead(t.Array).Leaf())
		idx := fc.scalar(t.Index)

		shape := convertType(t.Elem)
		base := fc.b.Binary(idx, ssa.Mul, fc.b.FieldConst(uint64(shape.Count())))

		i := uint64(0)
		v.ForEach(func(val Value) {
			addr := fc.b.Binary(arr, ssa.Add, fc.offset(base, i))
			i++

			fc.b.Store(addr, fc.eval(val))
		})
	default:
		panic(errors.New("unsupported assign target: %T", t))
	}
}

// lvalueRead evaluates the path to an assignment target, loading through
// any intermediate indexing.
func (fc *funContext) lvalueRead(lv mono.LValue) Values {
	switch t := lv.(type) {
	case mono.Ident:
		return fc.lookup(t.Local, t.Name)
	case mono.LIndex:
		arr := fc.eval(fc.lvalueRead(t.Array).Leaf())
		idx := fc.scalar(t.Index)

		return fc.indexLoad(arr, idx, convertType(t.Elem))
	default:
		panic(errors.New("unsupported lvalue: %T", t))
	}
}

func isMutable(t Values) (mut bool) {
	t.ForEach(func(v Value) {
		mut = mut || v.mutable
	})

	return mut
}

func convertOp(op mono.BinOp) ssa.Op {
	switch op {
	case mono.Add:
		return ssa.Add
	case mono.Sub:
		return ssa.Sub
	case mono.Mul:
		return ssa.Mul
	case mono.Div:
		return ssa.Div
	case mono.Mod:
		return ssa.Mod
	case mono.Eq:
		return ssa.Eq
	case mono.Ne:
		return ssa.Ne
	case mono.Lt:
		return ssa.Lt
	case mono.Le:
		return ssa.Le
	case mono.Gt:
		return ssa.Gt
	case mono.Ge:
		return ssa.Ge
	case mono.And:
		return ssa.And
	case mono.Or:
		return ssa.Or
	case mono.Xor:
		return ssa.Xor
	case mono.Shl:
		return ssa.Shl
	case mono.Shr:
		return ssa.Shr
	default:
		panic(errors.New("unsupported binary op: %d", op))
	}
}
