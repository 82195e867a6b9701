package ssa

import (
	"tlog.app/go/errors"
)

type (
	// FuncBuilder appends blocks and instructions to one Func. Every
	// instruction goes into the block the cursor designates at the moment
	// of insertion.
	FuncBuilder struct {
		Fn *Func

		cur BlockID
	}
)

// NewFunc reserves the next function id in the package. The id is valid
// as a call target immediately, before any of the body exists, which is
// what makes recursive and mutually recursive calls resolve.
func (p *Package) NewFunc(name string) *Func {
	f := &Func{
		ID:   FuncID(len(p.Funcs)),
		Name: name,
	}

	p.Funcs = append(p.Funcs, f)

	return f
}

func (p *Package) Func(id FuncID) *Func { return p.Funcs[id] }

// NewFuncBuilder creates the entry block and leaves the cursor on it.
func NewFuncBuilder(f *Func) *FuncBuilder {
	b := &FuncBuilder{Fn: f}
	b.NewBlock()

	return b
}

func (b *FuncBuilder) NewBlock() BlockID {
	b.Fn.Blocks = append(b.Fn.Blocks, &Block{})

	return BlockID(len(b.Fn.Blocks) - 1)
}

func (b *FuncBuilder) SwitchTo(bid BlockID) { b.cur = bid }

func (b *FuncBuilder) CurrentBlock() BlockID { return b.cur }

// AddBlockParam appends a typed parameter to a block and returns the fresh
// value it introduces. Parameters are supplied by predecessor jump
// arguments in the same order.
func (b *FuncBuilder) AddBlockParam(bid BlockID, typ Type) ExprID {
	blk := b.Fn.Blocks[bid]

	id := b.alloc(Param{Block: bid, Index: len(blk.In)}, typ)
	blk.In = append(blk.In, id)

	return id
}

func (b *FuncBuilder) Const(val uint64, typ Type) ExprID {
	return b.insert(Const{Value: val}, typ)
}

func (b *FuncBuilder) FieldConst(val uint64) ExprID {
	return b.Const(val, FieldType())
}

func (b *FuncBuilder) Alloc(size uint32) ExprID {
	return b.insert(Alloc{Size: size}, FieldType())
}

func (b *FuncBuilder) Store(addr, val ExprID) {
	b.insert(Store{Addr: addr, Val: val}, Type{})
}

func (b *FuncBuilder) Load(addr, offset ExprID, typ Type) ExprID {
	return b.insert(Load{Addr: addr, Offset: offset}, typ)
}

func (b *FuncBuilder) Binary(l ExprID, op Op, r ExprID) ExprID {
	typ := b.TypeOf(l)
	if op.IsCmp() {
		typ = BoolType()
	}

	return b.insert(Binary{L: l, Op: op, R: r}, typ)
}

func (b *FuncBuilder) Not(x ExprID) ExprID {
	return b.insert(Not{X: x}, b.TypeOf(x))
}

func (b *FuncBuilder) Cast(x ExprID, typ Type) ExprID {
	return b.insert(Cast{X: x}, typ)
}

func (b *FuncBuilder) Constrain(x ExprID) {
	b.insert(Constrain{X: x}, Type{})
}

// Call inserts a call and one result projection per entry of ret, in order.
func (b *FuncBuilder) Call(fn FuncID, args []ExprID, ret []Type) []ExprID {
	call := b.insert(Call{Func: fn, Args: args}, Type{})

	res := make([]ExprID, len(ret))
	for i, typ := range ret {
		res[i] = b.insert(Res{Call: call, Index: i}, typ)
	}

	return res
}

func (b *FuncBuilder) Jmp(to BlockID, args []ExprID) {
	if want := len(b.Fn.Blocks[to].In); len(args) != want {
		panic(errors.New("jmp to b%d: %d args for %d params", to, len(args), want))
	}

	b.terminate(Jmp{To: to, Args: args})
}

func (b *FuncBuilder) JmpIf(cond ExprID, then, els BlockID) {
	b.terminate(JmpIf{Cond: cond, Then: then, Else: els})
}

func (b *FuncBuilder) Ret(args []ExprID) {
	b.terminate(Ret{Args: args})
}

func (b *FuncBuilder) TypeOf(id ExprID) Type { return b.Fn.Types[id] }

func (b *FuncBuilder) alloc(x any, typ Type) ExprID {
	id := ExprID(len(b.Fn.Exprs))

	b.Fn.Exprs = append(b.Fn.Exprs, x)
	b.Fn.Types = append(b.Fn.Types, typ)

	return id
}

func (b *FuncBuilder) insert(x any, typ Type) ExprID {
	id := b.alloc(x, typ)

	blk := b.Fn.Blocks[b.cur]
	blk.Code = append(blk.Code, id)

	return id
}

func (b *FuncBuilder) terminate(term any) {
	blk := b.Fn.Blocks[b.cur]
	if blk.Term != nil {
		panic(errors.New("block b%d terminated twice", b.cur))
	}

	blk.Term = term
}
