package mono

import (
	"github.com/quill-lang/quill/compiler/tp"
)

type (
	FuncID  int
	LocalID int

	// Program is the monomorphized input: one concrete body per function,
	// no generics, all types resolved. It is consumed read-only.
	Program struct {
		Entry FuncID
		Funcs []*Func
	}

	Func struct {
		ID     FuncID
		Name   string
		Params []Param
		Ret    tp.Type
		Body   Expr
	}

	Param struct {
		Local LocalID
		Name  string
		Type  tp.Type
	}

	// Expr is one of the node structs below.
	Expr interface{}

	Ident struct {
		Local LocalID
		Name  string
	}

	// Block evaluates to its last expression, unit if empty.
	Block []Expr

	Int struct {
		Value uint64
		Type  tp.Type
	}

	Bool struct {
		Value bool
	}

	Str struct {
		Value string
	}

	ArrayLit struct {
		Elems []Expr
		Elem  tp.Type
	}

	Unary struct {
		Op UnOp
		X  Expr
	}

	Binary struct {
		Op   BinOp
		L, R Expr
	}

	Index struct {
		Array Expr
		Index Expr
		Elem  tp.Type
	}

	Cast struct {
		X    Expr
		Type tp.Type
	}

	// For iterates Local over [Start, End), Start and End evaluated once.
	For struct {
		Local      LocalID
		Name       string
		Index      tp.Type
		Start, End Expr
		Body       Expr
	}

	If struct {
		Cond Expr
		Then Expr
		Else Expr // nil if absent
		Type tp.Type
	}

	Tuple []Expr

	// Extract projects one field out of a tuple-typed expression.
	Extract struct {
		Tuple Expr
		Index int
	}

	Call struct {
		Func FuncID
		Name string
		Args []Expr
		Ret  tp.Type
	}

	Let struct {
		Local   LocalID
		Name    string
		Mutable bool
		Value   Expr
	}

	Constrain struct {
		X Expr
	}

	Assign struct {
		Target LValue
		Value  Expr
	}

	// Semi evaluates X for its effects and discards the result.
	Semi struct {
		X Expr
	}

	// LValue is Ident or LIndex.
	LValue interface{}

	LIndex struct {
		Array LValue
		Index Expr
		Elem  tp.Type
	}

	UnOp  int
	BinOp int
)

const (
	Not UnOp = iota
	Minus
)

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	And
	Or
	Xor
	Shl
	Shr
)

// Main is the designated entry function.
func (p *Program) Main() *Func { return p.Funcs[p.Entry] }

func (p *Program) Func(id FuncID) *Func {
	for _, f := range p.Funcs {
		if f.ID == id {
			return f
		}
	}

	return nil
}
