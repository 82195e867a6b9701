package tp

type (
	// Type is a concrete source type. The input program is monomorphized,
	// so no type variables are left at this point.
	Type interface {
		// Size is the number of flat storage slots one value of the type
		// occupies. Every scalar takes one slot regardless of bit width.
		// Arrays and strings count as one slot: the address.
		Size() int
	}

	Field struct{}

	Int struct {
		Bits   int16
		Signed bool
	}

	Bool struct{}

	Unit struct{}

	Array struct {
		Elem Type
		Len  int
	}

	Tuple struct {
		Items []Type
	}

	String struct {
		Len int
	}
)

func (x Field) Size() int  { return 1 }
func (x Int) Size() int    { return 1 }
func (x Bool) Size() int   { return 1 }
func (x Unit) Size() int   { return 0 }
func (x Array) Size() int  { return 1 }
func (x String) Size() int { return 1 }

func (x Tuple) Size() (s int) {
	for _, it := range x.Items {
		s += it.Size()
	}

	return s
}
