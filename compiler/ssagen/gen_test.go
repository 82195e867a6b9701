package ssagen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-lang/quill/compiler/mono"
	"github.com/quill-lang/quill/compiler/ssa"
	"github.com/quill-lang/quill/compiler/tp"
)

func gen(t *testing.T, p *mono.Program) *ssa.Package {
	t.Helper()

	pkg, err := Generate(context.Background(), p)
	require.NoError(t, err)

	return pkg
}

func onefn(body mono.Expr, ret tp.Type, params ...mono.Param) *mono.Program {
	return &mono.Program{
		Funcs: []*mono.Func{
			{ID: 0, Name: "main", Params: params, Ret: ret, Body: body},
		},
	}
}

func u32() tp.Type { return tp.Int{Bits: 32} }

func exprsOf[T any](f *ssa.Func) (ids []ssa.ExprID) {
	for id, x := range f.Exprs {
		if _, ok := x.(T); ok {
			ids = append(ids, ssa.ExprID(id))
		}
	}

	return ids
}

func codeIndex(t *testing.T, blk *ssa.Block, id ssa.ExprID) int {
	t.Helper()

	for i, c := range blk.Code {
		if c == id {
			return i
		}
	}

	t.Fatalf("e%d is not in the block", id)

	return -1
}

func TestGenerateNoEntry(t *testing.T) {
	_, err := Generate(context.Background(), &mono.Program{Entry: 5})
	assert.Error(t, err)
}

func TestIfElseMergesOnEndBlockParams(t *testing.T) {
	// if true { 1 } else { 2 } of scalar type
	p := onefn(mono.If{
		Cond: mono.Bool{Value: true},
		Then: mono.Int{Value: 1, Type: tp.Field{}},
		Else: mono.Int{Value: 2, Type: tp.Field{}},
		Type: tp.Field{},
	}, tp.Field{})

	f := gen(t, p).Funcs[0]

	require.Len(t, f.Blocks, 4)

	entry, then, els, end := f.Blocks[0], f.Blocks[1], f.Blocks[2], f.Blocks[3]

	require.IsType(t, ssa.JmpIf{}, entry.Term)
	br := entry.Term.(ssa.JmpIf)
	assert.Equal(t, ssa.BlockID(1), br.Then)
	assert.Equal(t, ssa.BlockID(2), br.Else)
	assert.Equal(t, ssa.Const{Value: 1}, f.Exprs[br.Cond], "condition is the true constant")

	require.Len(t, end.In, 1)

	require.IsType(t, ssa.Jmp{}, then.Term)
	tj := then.Term.(ssa.Jmp)
	require.Equal(t, ssa.BlockID(3), tj.To)
	require.Len(t, tj.Args, 1)
	assert.Equal(t, ssa.Const{Value: 1}, f.Exprs[tj.Args[0]])

	ej := els.Term.(ssa.Jmp)
	require.Len(t, ej.Args, 1)
	assert.Equal(t, ssa.Const{Value: 2}, f.Exprs[ej.Args[0]])

	// the if result is the end block parameter
	ret := end.Term.(ssa.Ret)
	require.Len(t, ret.Args, 1)
	assert.Equal(t, end.In[0], ret.Args[0])
}

func TestIfTupleResultOneParamPerLeaf(t *testing.T) {
	two := tp.Tuple{Items: []tp.Type{tp.Field{}, tp.Bool{}}}

	p := onefn(mono.If{
		Cond: mono.Bool{Value: true},
		Then: mono.Tuple{mono.Int{Value: 1, Type: tp.Field{}}, mono.Bool{Value: true}},
		Else: mono.Tuple{mono.Int{Value: 2, Type: tp.Field{}}, mono.Bool{}},
		Type: two,
	}, two)

	f := gen(t, p).Funcs[0]

	end := f.Blocks[3]
	require.Len(t, end.In, 2)
	assert.Equal(t, ssa.FieldType(), f.Types[end.In[0]])
	assert.Equal(t, ssa.BoolType(), f.Types[end.In[1]])

	for _, bid := range []int{1, 2} {
		j := f.Blocks[bid].Term.(ssa.Jmp)
		assert.Len(t, j.Args, 2, "branch b%d jumps with one arg per leaf", bid)
	}

	ret := end.Term.(ssa.Ret)
	assert.Equal(t, []ssa.ExprID(end.In), ret.Args)
}

func TestIfWithoutElseSharesEndBlock(t *testing.T) {
	p := onefn(mono.If{
		Cond: mono.Bool{Value: true},
		Then: mono.Semi{X: mono.Int{Value: 1, Type: tp.Field{}}},
		Type: tp.Unit{},
	}, tp.Unit{})

	f := gen(t, p).Funcs[0]

	require.Len(t, f.Blocks, 3, "the else block doubles as the end block")

	j := f.Blocks[1].Term.(ssa.Jmp)
	assert.Equal(t, ssa.BlockID(2), j.To)
	assert.Empty(t, j.Args)

	assert.Equal(t, ssa.Ret{}, f.Blocks[2].Term)
}

func TestArrayLiteralLayout(t *testing.T) {
	// [1, 2, 3] indexed at 1
	arr := mono.ArrayLit{
		Elems: []mono.Expr{
			mono.Int{Value: 1, Type: u32()},
			mono.Int{Value: 2, Type: u32()},
			mono.Int{Value: 3, Type: u32()},
		},
		Elem: u32(),
	}

	p := onefn(mono.Block{
		mono.Let{Local: 0, Name: "a", Value: arr},
		mono.Index{
			Array: mono.Ident{Local: 0, Name: "a"},
			Index: mono.Int{Value: 1, Type: u32()},
			Elem:  u32(),
		},
	}, u32())

	f := gen(t, p).Funcs[0]

	allocs := exprsOf[ssa.Alloc](f)
	require.Len(t, allocs, 1)
	assert.Equal(t, ssa.Alloc{Size: 3}, f.Exprs[allocs[0]])

	stores := exprsOf[ssa.Store](f)
	require.Len(t, stores, 3)

	for i, id := range stores {
		st := f.Exprs[id].(ssa.Store)
		assert.Equal(t, ssa.Const{Value: uint64(i + 1)}, f.Exprs[st.Val])

		if i == 0 {
			assert.Equal(t, allocs[0], st.Addr, "first slot is the base address")
		} else {
			add := f.Exprs[st.Addr].(ssa.Binary)
			assert.Equal(t, ssa.Add, add.Op)
			assert.Equal(t, allocs[0], add.L)
			assert.Equal(t, ssa.Const{Value: uint64(i)}, f.Exprs[add.R])
		}
	}

	loads := exprsOf[ssa.Load](f)
	require.Len(t, loads, 1)

	ld := f.Exprs[loads[0]].(ssa.Load)
	assert.Equal(t, allocs[0], ld.Addr)
	assert.Equal(t, u32Type(), f.Types[loads[0]])

	// offset = index * leafCount(elem) = 1 * 1
	mul := f.Exprs[ld.Offset].(ssa.Binary)
	assert.Equal(t, ssa.Mul, mul.Op)
	assert.Equal(t, ssa.Const{Value: 1}, f.Exprs[mul.L])
	assert.Equal(t, ssa.Const{Value: 1}, f.Exprs[mul.R])

	ret := f.Blocks[0].Term.(ssa.Ret)
	require.Len(t, ret.Args, 1)
	assert.Equal(t, loads[0], ret.Args[0], "the indexed load is the result")
}

func u32Type() ssa.Type { return ssa.UintType(32) }

func TestArrayOfTuplesSlotFormula(t *testing.T) {
	// two elements of two leaves each: N*K = 4 slots,
	// leaf (i, j) lands at i*K + j
	pair := tp.Tuple{Items: []tp.Type{tp.Field{}, tp.Field{}}}

	elem := func(a, b uint64) mono.Expr {
		return mono.Tuple{
			mono.Int{Value: a, Type: tp.Field{}},
			mono.Int{Value: b, Type: tp.Field{}},
		}
	}

	p := onefn(mono.Block{
		mono.Let{Local: 0, Name: "a", Value: mono.ArrayLit{
			Elems: []mono.Expr{elem(10, 11), elem(20, 21)},
			Elem:  pair,
		}},
		mono.Index{
			Array: mono.Ident{Local: 0, Name: "a"},
			Index: mono.Int{Value: 1, Type: u32()},
			Elem:  pair,
		},
	}, pair)

	f := gen(t, p).Funcs[0]

	allocs := exprsOf[ssa.Alloc](f)
	require.Len(t, allocs, 1)
	assert.Equal(t, ssa.Alloc{Size: 4}, f.Exprs[allocs[0]])

	stores := exprsOf[ssa.Store](f)
	require.Len(t, stores, 4)

	want := []uint64{10, 11, 20, 21}
	for i, id := range stores {
		st := f.Exprs[id].(ssa.Store)
		assert.Equal(t, ssa.Const{Value: want[i]}, f.Exprs[st.Val], "slot %d", i)
	}

	// indexing loads K leaves off base = index*K, in storage order
	loads := exprsOf[ssa.Load](f)
	require.Len(t, loads, 2)

	base := f.Exprs[f.Exprs[loads[0]].(ssa.Load).Offset].(ssa.Binary)
	assert.Equal(t, ssa.Mul, base.Op)
	assert.Equal(t, ssa.Const{Value: 2}, f.Exprs[base.R], "element leaf count")

	second := f.Exprs[f.Exprs[loads[1]].(ssa.Load).Offset].(ssa.Binary)
	assert.Equal(t, ssa.Add, second.Op)
	assert.Equal(t, ssa.Const{Value: 1}, f.Exprs[second.R])

	ret := f.Blocks[0].Term.(ssa.Ret)
	assert.Equal(t, loads, ret.Args, "loads reassemble into the tuple leaves")
}

func TestStringIsAFieldByteArray(t *testing.T) {
	p := onefn(mono.Str{Value: "ab"}, tp.String{Len: 2})

	f := gen(t, p).Funcs[0]

	allocs := exprsOf[ssa.Alloc](f)
	require.Len(t, allocs, 1)
	assert.Equal(t, ssa.Alloc{Size: 2}, f.Exprs[allocs[0]])

	stores := exprsOf[ssa.Store](f)
	require.Len(t, stores, 2)

	for i, want := range []uint64{'a', 'b'} {
		st := f.Exprs[stores[i]].(ssa.Store)
		assert.Equal(t, ssa.Const{Value: want}, f.Exprs[st.Val])
		assert.Equal(t, ssa.FieldType(), f.Types[st.Val])
	}
}

func TestBinaryEvaluatesLeftBeforeRight(t *testing.T) {
	effect := func(flag bool, val uint64) mono.Expr {
		return mono.Block{
			mono.Constrain{X: mono.Bool{Value: flag}},
			mono.Int{Value: val, Type: tp.Field{}},
		}
	}

	p := onefn(mono.Binary{
		Op: mono.Add,
		L:  effect(true, 1),
		R:  effect(false, 2),
	}, tp.Field{})

	f := gen(t, p).Funcs[0]
	entry := f.Blocks[0]

	cons := exprsOf[ssa.Constrain](f)
	require.Len(t, cons, 2)

	left := f.Exprs[cons[0]].(ssa.Constrain)
	assert.Equal(t, ssa.Const{Value: 1}, f.Exprs[left.X], "first effect is the left one")

	assert.Less(t,
		codeIndex(t, entry, cons[0]),
		codeIndex(t, entry, cons[1]),
		"left operand effects precede right operand effects")
}

func TestUnaryMinusIsZeroSub(t *testing.T) {
	p := onefn(
		mono.Unary{Op: mono.Minus, X: mono.Ident{Local: 0, Name: "x"}},
		u32(),
		mono.Param{Local: 0, Name: "x", Type: u32()},
	)

	f := gen(t, p).Funcs[0]
	entry := f.Blocks[0]

	require.Len(t, entry.In, 1)
	require.Len(t, entry.Code, 2)

	zero := f.Exprs[entry.Code[0]].(ssa.Const)
	assert.Equal(t, uint64(0), zero.Value)
	assert.Equal(t, u32Type(), f.Types[entry.Code[0]], "zero is of the operand's own type")

	sub := f.Exprs[entry.Code[1]].(ssa.Binary)
	assert.Equal(t, ssa.Sub, sub.Op)
	assert.Equal(t, entry.Code[0], sub.L)
	assert.Equal(t, entry.In[0], sub.R)
}

func TestNotIsASingleInstruction(t *testing.T) {
	p := onefn(
		mono.Unary{Op: mono.Not, X: mono.Ident{Local: 0, Name: "b"}},
		tp.Bool{},
		mono.Param{Local: 0, Name: "b", Type: tp.Bool{}},
	)

	f := gen(t, p).Funcs[0]
	entry := f.Blocks[0]

	require.Len(t, entry.Code, 1)
	assert.Equal(t, ssa.Not{X: entry.In[0]}, f.Exprs[entry.Code[0]])
}

func TestForLoopShape(t *testing.T) {
	p := onefn(mono.For{
		Local: 0,
		Name:  "i",
		Index: u32(),
		Start: mono.Int{Value: 0, Type: u32()},
		End:   mono.Int{Value: 10, Type: u32()},
		Body:  mono.Semi{X: mono.Ident{Local: 0, Name: "i"}},
	}, tp.Unit{})

	f := gen(t, p).Funcs[0]

	require.Len(t, f.Blocks, 4)

	entry, header, body, exit := f.Blocks[0], f.Blocks[1], f.Blocks[2], f.Blocks[3]

	require.Len(t, header.In, 1, "induction variable is a header parameter")
	idx := header.In[0]
	assert.Equal(t, u32Type(), f.Types[idx])

	ej := entry.Term.(ssa.Jmp)
	assert.Equal(t, ssa.BlockID(1), ej.To)
	require.Len(t, ej.Args, 1)
	assert.Equal(t, ssa.Const{Value: 0}, f.Exprs[ej.Args[0]])

	br := header.Term.(ssa.JmpIf)
	assert.Equal(t, ssa.BlockID(2), br.Then)
	assert.Equal(t, ssa.BlockID(3), br.Else)

	lt := f.Exprs[br.Cond].(ssa.Binary)
	assert.Equal(t, ssa.Lt, lt.Op)
	assert.Equal(t, idx, lt.L)
	assert.Equal(t, ssa.Const{Value: 10}, f.Exprs[lt.R])

	bj := body.Term.(ssa.Jmp)
	assert.Equal(t, ssa.BlockID(1), bj.To)
	require.Len(t, bj.Args, 1)

	inc := f.Exprs[bj.Args[0]].(ssa.Binary)
	assert.Equal(t, ssa.Add, inc.Op)
	assert.Equal(t, idx, inc.L)
	assert.Equal(t, ssa.Const{Value: 1}, f.Exprs[inc.R])

	assert.Equal(t, ssa.Ret{}, exit.Term)
}

func TestMutualRecursionTranslatesEachOnce(t *testing.T) {
	call := func(id mono.FuncID, name string) mono.Expr {
		return mono.Semi{X: mono.Call{Func: id, Name: name, Ret: tp.Unit{}}}
	}

	p := &mono.Program{
		Funcs: []*mono.Func{
			{ID: 0, Name: "f", Ret: tp.Unit{}, Body: call(1, "g")},
			{ID: 1, Name: "g", Ret: tp.Unit{}, Body: call(0, "f")},
		},
	}

	pkg := gen(t, p)

	require.Len(t, pkg.Funcs, 2)

	for _, f := range pkg.Funcs {
		calls := exprsOf[ssa.Call](f)
		require.Len(t, calls, 1)
		assert.NotNil(t, f.Blocks[0].Term, "body fully translated")
	}

	assert.Equal(t, ssa.FuncID(1), pkg.Funcs[0].Exprs[exprsOf[ssa.Call](pkg.Funcs[0])[0]].(ssa.Call).Func)
	assert.Equal(t, ssa.FuncID(0), pkg.Funcs[1].Exprs[exprsOf[ssa.Call](pkg.Funcs[1])[0]].(ssa.Call).Func)
}

func TestRepeatedCallsQueueCalleeOnce(t *testing.T) {
	callG := mono.Semi{X: mono.Call{Func: 1, Name: "g", Ret: tp.Unit{}}}

	p := &mono.Program{
		Funcs: []*mono.Func{
			{ID: 0, Name: "main", Ret: tp.Unit{}, Body: mono.Block{callG, callG, callG}},
			{ID: 1, Name: "g", Ret: tp.Unit{}, Body: mono.Block{}},
		},
	}

	pkg := gen(t, p)

	require.Len(t, pkg.Funcs, 2)
	assert.Len(t, exprsOf[ssa.Call](pkg.Funcs[0]), 3)
}

func TestCallFlattensArgsAndRebuildsResult(t *testing.T) {
	pair := tp.Tuple{Items: []tp.Type{tp.Field{}, tp.Bool{}}}

	p := &mono.Program{
		Funcs: []*mono.Func{
			{ID: 0, Name: "main", Ret: tp.Field{}, Body: mono.Extract{
				Tuple: mono.Call{
					Func: 1,
					Name: "pair",
					Args: []mono.Expr{mono.Tuple{
						mono.Int{Value: 1, Type: tp.Field{}},
						mono.Bool{Value: true},
					}},
					Ret: pair,
				},
				Index: 0,
			}},
			{
				ID: 1, Name: "pair", Ret: pair,
				Params: []mono.Param{{Local: 0, Name: "x", Type: pair}},
				Body:   mono.Ident{Local: 0, Name: "x"},
			},
		},
	}

	pkg := gen(t, p)
	f := pkg.Funcs[0]

	calls := exprsOf[ssa.Call](f)
	require.Len(t, calls, 1)
	assert.Len(t, f.Exprs[calls[0]].(ssa.Call).Args, 2, "tuple argument flattens to leaves")

	res := exprsOf[ssa.Res](f)
	require.Len(t, res, 2, "one projection per return leaf")
	assert.Equal(t, ssa.FieldType(), f.Types[res[0]])
	assert.Equal(t, ssa.BoolType(), f.Types[res[1]])

	ret := f.Blocks[0].Term.(ssa.Ret)
	require.Len(t, ret.Args, 1)
	assert.Equal(t, res[0], ret.Args[0], "extract picks the first leaf")

	// the callee reassembles its composite parameter from entry params
	callee := pkg.Funcs[1]
	require.Len(t, callee.Blocks[0].In, 2)
	assert.Equal(t, []ssa.ExprID(callee.Blocks[0].In), callee.Blocks[0].Term.(ssa.Ret).Args)
}

func TestAssignRebindsPlainBinding(t *testing.T) {
	p := onefn(mono.Block{
		mono.Let{Local: 0, Name: "x", Value: mono.Int{Value: 1, Type: tp.Field{}}},
		mono.Assign{
			Target: mono.Ident{Local: 0, Name: "x"},
			Value:  mono.Int{Value: 2, Type: tp.Field{}},
		},
		mono.Ident{Local: 0, Name: "x"},
	}, tp.Field{})

	f := gen(t, p).Funcs[0]

	assert.Empty(t, exprsOf[ssa.Store](f), "plain bindings are renamed, not stored")

	ret := f.Blocks[0].Term.(ssa.Ret)
	require.Len(t, ret.Args, 1)
	assert.Equal(t, ssa.Const{Value: 2}, f.Exprs[ret.Args[0]])
}

func TestAssignStoresThroughMutableBinding(t *testing.T) {
	p := onefn(mono.Block{
		mono.Let{Local: 0, Name: "x", Mutable: true, Value: mono.Int{Value: 1, Type: tp.Field{}}},
		mono.Assign{
			Target: mono.Ident{Local: 0, Name: "x"},
			Value:  mono.Int{Value: 2, Type: tp.Field{}},
		},
		mono.Ident{Local: 0, Name: "x"},
	}, tp.Field{})

	f := gen(t, p).Funcs[0]

	allocs := exprsOf[ssa.Alloc](f)
	require.Len(t, allocs, 1)
	assert.Equal(t, ssa.Alloc{Size: 1}, f.Exprs[allocs[0]])

	stores := exprsOf[ssa.Store](f)
	require.Len(t, stores, 2, "initial value and the assignment")

	for _, id := range stores {
		assert.Equal(t, allocs[0], f.Exprs[id].(ssa.Store).Addr)
	}

	ret := f.Blocks[0].Term.(ssa.Ret)
	require.Len(t, ret.Args, 1)

	ld := f.Exprs[ret.Args[0]].(ssa.Load)
	assert.Equal(t, allocs[0], ld.Addr, "reads of a mutable binding load the slot")
}

func TestAssignToArraySlotStores(t *testing.T) {
	p := onefn(mono.Block{
		mono.Let{Local: 0, Name: "a", Value: mono.ArrayLit{
			Elems: []mono.Expr{
				mono.Int{Value: 1, Type: u32()},
				mono.Int{Value: 2, Type: u32()},
			},
			Elem: u32(),
		}},
		mono.Assign{
			Target: mono.LIndex{
				Array: mono.Ident{Local: 0, Name: "a"},
				Index: mono.Int{Value: 0, Type: u32()},
				Elem:  u32(),
			},
			Value: mono.Int{Value: 5, Type: u32()},
		},
	}, tp.Unit{})

	f := gen(t, p).Funcs[0]

	stores := exprsOf[ssa.Store](f)
	require.Len(t, stores, 3, "two init stores plus the assignment")

	last := f.Exprs[stores[2]].(ssa.Store)
	assert.Equal(t, ssa.Const{Value: 5}, f.Exprs[last.Val])

	addr := f.Exprs[last.Addr].(ssa.Binary)
	assert.Equal(t, ssa.Add, addr.Op)
	assert.Equal(t, exprsOf[ssa.Alloc](f)[0], addr.L, "store goes to the existing base address")
}

func TestBlockValueIsTheLastExpression(t *testing.T) {
	p := onefn(mono.Block{
		mono.Int{Value: 1, Type: tp.Field{}},
		mono.Int{Value: 2, Type: tp.Field{}},
	}, tp.Field{})

	f := gen(t, p).Funcs[0]

	ret := f.Blocks[0].Term.(ssa.Ret)
	require.Len(t, ret.Args, 1)
	assert.Equal(t, ssa.Const{Value: 2}, f.Exprs[ret.Args[0]])
}

func TestCastEmitsOneInstruction(t *testing.T) {
	p := onefn(
		mono.Cast{X: mono.Ident{Local: 0, Name: "x"}, Type: tp.Field{}},
		tp.Field{},
		mono.Param{Local: 0, Name: "x", Type: u32()},
	)

	f := gen(t, p).Funcs[0]
	entry := f.Blocks[0]

	require.Len(t, entry.Code, 1)
	assert.Equal(t, ssa.Cast{X: entry.In[0]}, f.Exprs[entry.Code[0]])
	assert.Equal(t, ssa.FieldType(), f.Types[entry.Code[0]])
}

func TestConstrainEmitsNoBranches(t *testing.T) {
	p := onefn(mono.Constrain{X: mono.Binary{
		Op: mono.Eq,
		L:  mono.Ident{Local: 0, Name: "x"},
		R:  mono.Int{Value: 3, Type: tp.Field{}},
	}}, tp.Unit{}, mono.Param{Local: 0, Name: "x", Type: tp.Field{}})

	f := gen(t, p).Funcs[0]

	require.Len(t, f.Blocks, 1)

	cons := exprsOf[ssa.Constrain](f)
	require.Len(t, cons, 1)

	eq := f.Exprs[f.Exprs[cons[0]].(ssa.Constrain).X].(ssa.Binary)
	assert.Equal(t, ssa.Eq, eq.Op)

	assert.Equal(t, ssa.Ret{}, f.Blocks[0].Term, "constrain result is unit")
}

func TestUnboundIdentPanics(t *testing.T) {
	p := onefn(mono.Ident{Local: 9, Name: "ghost"}, tp.Field{})

	assert.Panics(t, func() {
		_, _ = Generate(context.Background(), p)
	})
}

func TestExtractFromLeafPanics(t *testing.T) {
	p := onefn(mono.Extract{
		Tuple: mono.Int{Value: 1, Type: tp.Field{}},
		Index: 0,
	}, tp.Field{})

	assert.Panics(t, func() {
		_, _ = Generate(context.Background(), p)
	})
}
