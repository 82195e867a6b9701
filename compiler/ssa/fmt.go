package ssa

import (
	"fmt"

	"github.com/nikandfor/hacked/hfmt"
)

// Format renders the package as readable text, one function per section.
// It is a debug surface, not a serialization format.
func Format(b []byte, p *Package) []byte {
	for i, f := range p.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b = FormatFunc(b, f)
	}

	return b
}

func FormatFunc(b []byte, f *Func) []byte {
	b = hfmt.Appendf(b, "func %v() #%d\n", f.Name, f.ID)

	for bid, blk := range f.Blocks {
		b = hfmt.Appendf(b, "b%d(", bid)

		for i, in := range blk.In {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "e%d %v", in, f.Types[in])
		}

		b = append(b, "):\n"...)

		for _, id := range blk.Code {
			b = formatExpr(b, f, id)
		}

		b = formatTerm(b, blk.Term)
	}

	return b
}

func formatExpr(b []byte, f *Func, id ExprID) []byte {
	switch x := f.Exprs[id].(type) {
	case Const:
		b = hfmt.Appendf(b, "\te%d = const %d : %v\n", id, x.Value, f.Types[id])
	case Alloc:
		b = hfmt.Appendf(b, "\te%d = alloc %d\n", id, x.Size)
	case Store:
		b = hfmt.Appendf(b, "\tstore e%d <- e%d\n", x.Addr, x.Val)
	case Load:
		b = hfmt.Appendf(b, "\te%d = load e%d + e%d : %v\n", id, x.Addr, x.Offset, f.Types[id])
	case Binary:
		b = hfmt.Appendf(b, "\te%d = %v e%d, e%d : %v\n", id, x.Op, x.L, x.R, f.Types[id])
	case Not:
		b = hfmt.Appendf(b, "\te%d = not e%d\n", id, x.X)
	case Cast:
		b = hfmt.Appendf(b, "\te%d = cast e%d : %v\n", id, x.X, f.Types[id])
	case Constrain:
		b = hfmt.Appendf(b, "\tconstrain e%d\n", x.X)
	case Call:
		b = hfmt.Appendf(b, "\te%d = call #%d", id, x.Func)
		b = formatArgs(b, x.Args)
		b = append(b, '\n')
	case Res:
		b = hfmt.Appendf(b, "\te%d = res e%d.%d : %v\n", id, x.Call, x.Index, f.Types[id])
	default:
		b = hfmt.Appendf(b, "\te%d = %+v (%[2]T)\n", id, x)
	}

	return b
}

func formatTerm(b []byte, term any) []byte {
	switch x := term.(type) {
	case Jmp:
		b = hfmt.Appendf(b, "\tjmp b%d", x.To)
		b = formatArgs(b, x.Args)
		b = append(b, '\n')
	case JmpIf:
		b = hfmt.Appendf(b, "\tjmpif e%d -> b%d b%d\n", x.Cond, x.Then, x.Else)
	case Ret:
		b = append(b, "\tret"...)
		b = formatArgs(b, x.Args)
		b = append(b, '\n')
	case nil:
		b = append(b, "\tunterminated\n"...)
	default:
		b = hfmt.Appendf(b, "\t%+v (%[1]T)\n", x)
	}

	return b
}

func formatArgs(b []byte, args []ExprID) []byte {
	b = append(b, " ("...)

	for i, a := range args {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "e%d", a)
	}

	return append(b, ')')
}

func (t Type) String() string {
	switch t.Kind {
	case Field:
		return "field"
	case Bool:
		return "bool"
	case Uint:
		return fmt.Sprintf("u%d", t.Bits)
	case Int:
		return fmt.Sprintf("i%d", t.Bits)
	}

	return fmt.Sprintf("type(%d)", t.Kind)
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}

	return fmt.Sprintf("op(%d)", int(op))
}

var opNames = []string{
	Add: "add",
	Sub: "sub",
	Mul: "mul",
	Div: "div",
	Mod: "mod",
	Eq:  "eq",
	Ne:  "ne",
	Lt:  "lt",
	Le:  "le",
	Gt:  "gt",
	Ge:  "ge",
	And: "and",
	Or:  "or",
	Xor: "xor",
	Shl: "shl",
	Shr: "shr",
}
