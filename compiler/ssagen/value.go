package ssagen

import (
	"tlog.app/go/errors"

	"github.com/quill-lang/quill/compiler/ssa"
)

type (
	// Tree is either a single leaf or an ordered branch of subtrees. It is
	// used both for types (a tuple is a tree of scalar types) and for
	// values (a result mirrors the branching of its static type). An empty
	// branch is the unit value.
	Tree[T any] struct {
		leaf bool
		val  T
		sub  []Tree[T]
	}

	// Values is the result of translating one expression. Its shape and
	// leaf count match the type tree of the expression's static type.
	Values = Tree[Value]

	// Value is an SSA value reference: either already materialized, or a
	// deferred reference to a mutable storage slot that must be read
	// before use in any instruction.
	Value struct {
		id      ssa.ExprID
		typ     ssa.Type
		mutable bool
	}
)

func Leaf[T any](v T) Tree[T] { return Tree[T]{leaf: true, val: v} }

func Branch[T any](sub ...Tree[T]) Tree[T] { return Tree[T]{sub: sub} }

func (t Tree[T]) IsLeaf() bool { return t.leaf }

func (t Tree[T]) Leaf() T {
	if !t.leaf {
		panic(errors.New("leaf expected, got a branch of %d", len(t.sub)))
	}

	return t.val
}

func (t Tree[T]) Sub() []Tree[T] {
	if t.leaf {
		panic(errors.New("branch expected, got a leaf"))
	}

	return t.sub
}

// ForEach visits the leaves depth first, left to right. That order is the
// contract for everything flat: call arguments, jump arguments, array slot
// offsets.
func (t Tree[T]) ForEach(f func(T)) {
	if t.leaf {
		f(t.val)
		return
	}

	for _, s := range t.sub {
		s.ForEach(f)
	}
}

func (t Tree[T]) Flatten() (l []T) {
	t.ForEach(func(v T) {
		l = append(l, v)
	})

	return l
}

// Count is the number of leaves: the number of storage slots one value of
// the shape occupies, one per leaf regardless of scalar width.
func (t Tree[T]) Count() (n int) {
	if t.leaf {
		return 1
	}

	for _, s := range t.sub {
		n += s.Count()
	}

	return n
}

// MapTree transforms the leaves preserving the structure.
func MapTree[T, U any](t Tree[T], f func(T) U) Tree[U] {
	if t.leaf {
		return Leaf(f(t.val))
	}

	sub := make([]Tree[U], len(t.sub))
	for i, s := range t.sub {
		sub[i] = MapTree(s, f)
	}

	return Branch(sub...)
}

func materialized(id ssa.ExprID) Value { return Value{id: id} }

func slot(addr ssa.ExprID, typ ssa.Type) Value {
	return Value{id: addr, typ: typ, mutable: true}
}
