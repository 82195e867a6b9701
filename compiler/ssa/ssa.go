package ssa

type (
	FuncID  int
	BlockID int

	// ExprID is a typed SSA value reference: an index into Func.Exprs.
	// Each value is produced by exactly one expression and never reassigned.
	ExprID int

	Kind int8

	// Type is a scalar type. Composite shapes never reach this level:
	// tuples are flattened before instructions are built and arrays live
	// in linear memory behind an address.
	Type struct {
		Kind Kind
		Bits int16
	}

	Package struct {
		Funcs []*Func
	}

	Func struct {
		ID   FuncID
		Name string

		// Exprs is the value arena. Exprs[id] is the operation that
		// produced value id, one of the payload structs below.
		Exprs []any
		Types []Type

		Blocks []*Block
	}

	// Block holds instructions in insertion order. In are the block
	// parameters: values supplied by whichever predecessor branch jumped
	// here, the merge-point (phi) mechanism. Term is set exactly once.
	Block struct {
		In   []ExprID
		Code []ExprID
		Term any
	}

	Param struct {
		Block BlockID
		Index int
	}

	Const struct {
		Value uint64
	}

	// Alloc reserves Size contiguous storage slots and evaluates to the
	// base address of the run.
	Alloc struct {
		Size uint32
	}

	Store struct {
		Addr ExprID
		Val  ExprID
	}

	Load struct {
		Addr   ExprID
		Offset ExprID
	}

	Binary struct {
		L  ExprID
		Op Op
		R  ExprID
	}

	Not struct {
		X ExprID
	}

	Cast struct {
		X ExprID
	}

	Constrain struct {
		X ExprID
	}

	Call struct {
		Func FuncID
		Args []ExprID
	}

	// Res projects one scalar result out of a call. A call returning a
	// composite value yields one Res per leaf of the return type.
	Res struct {
		Call  ExprID
		Index int
	}

	Jmp struct {
		To   BlockID
		Args []ExprID
	}

	JmpIf struct {
		Cond ExprID
		Then BlockID
		Else BlockID
	}

	Ret struct {
		Args []ExprID
	}

	Op int8
)

const (
	Field Kind = iota
	Bool
	Uint
	Int
)

const (
	Add Op = iota
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

func FieldType() Type        { return Type{Kind: Field} }
func BoolType() Type         { return Type{Kind: Bool} }
func UintType(bits int) Type { return Type{Kind: Uint, Bits: int16(bits)} }
func IntType(bits int) Type  { return Type{Kind: Int, Bits: int16(bits)} }

// IsCmp reports whether the operator produces a bool regardless of the
// operand type.
func (op Op) IsCmp() bool {
	switch op {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	}

	return false
}
