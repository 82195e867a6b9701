package mono

import (
	"encoding/json"

	"tlog.app/go/errors"

	"github.com/quill-lang/quill/compiler/tp"
)

// Load decodes a program dump produced by the monomorphization stage.
// Nodes are objects tagged with "kind". This is a debug surface for
// feeding the stage from a file, not a wire protocol.
func Load(data []byte) (*Program, error) {
	var raw struct {
		Entry int      `json:"entry"`
		Funcs []rawMsg `json:"funcs"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode program")
	}

	p := &Program{Entry: FuncID(raw.Entry)}

	for i, rf := range raw.Funcs {
		f, err := loadFunc(rf)
		if err != nil {
			return nil, errors.Wrap(err, "func %d", i)
		}

		p.Funcs = append(p.Funcs, f)
	}

	if p.Func(p.Entry) == nil {
		return nil, errors.New("entry function %d is not defined", p.Entry)
	}

	return p, nil
}

type rawMsg = json.RawMessage

func loadFunc(data rawMsg) (*Func, error) {
	var raw struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Params []struct {
			Local int    `json:"local"`
			Name  string `json:"name"`
			Type  rawMsg `json:"type"`
		} `json:"params"`
		Ret  rawMsg `json:"ret"`
		Body rawMsg `json:"body"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	f := &Func{
		ID:   FuncID(raw.ID),
		Name: raw.Name,
	}

	for i, rp := range raw.Params {
		typ, err := loadType(rp.Type)
		if err != nil {
			return nil, errors.Wrap(err, "param %d type", i)
		}

		f.Params = append(f.Params, Param{
			Local: LocalID(rp.Local),
			Name:  rp.Name,
			Type:  typ,
		})
	}

	f.Ret, err = loadType(raw.Ret)
	if err != nil {
		return nil, errors.Wrap(err, "return type")
	}

	f.Body, err = loadExpr(raw.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	return f, nil
}

func kindOf(data rawMsg) (string, error) {
	var raw struct {
		Kind string `json:"kind"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return "", errors.Wrap(err, "decode node")
	}

	return raw.Kind, nil
}

func loadExpr(data rawMsg) (Expr, error) {
	kind, err := kindOf(data)
	if err != nil {
		return nil, err
	}

	x, err := loadExprKind(kind, data)
	if err != nil {
		return nil, errors.Wrap(err, "%v", kind)
	}

	return x, nil
}

func loadExprKind(kind string, data rawMsg) (Expr, error) {
	switch kind {
	case "ident":
		var raw struct {
			Local int    `json:"local"`
			Name  string `json:"name"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		return Ident{Local: LocalID(raw.Local), Name: raw.Name}, nil
	case "int":
		var raw struct {
			Value uint64 `json:"value"`
			Type  rawMsg `json:"type"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		typ, err := loadType(raw.Type)
		if err != nil {
			return nil, err
		}

		return Int{Value: raw.Value, Type: typ}, nil
	case "bool":
		var raw struct {
			Value bool `json:"value"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		return Bool{Value: raw.Value}, nil
	case "str":
		var raw struct {
			Value string `json:"value"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		return Str{Value: raw.Value}, nil
	case "array":
		var raw struct {
			Elems []rawMsg `json:"elems"`
			Elem  rawMsg   `json:"elem"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		elem, err := loadType(raw.Elem)
		if err != nil {
			return nil, errors.Wrap(err, "elem type")
		}

		elems, err := loadExprs(raw.Elems)
		if err != nil {
			return nil, err
		}

		return ArrayLit{Elems: elems, Elem: elem}, nil
	case "block":
		var raw struct {
			Exprs []rawMsg `json:"exprs"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		exprs, err := loadExprs(raw.Exprs)
		if err != nil {
			return nil, err
		}

		return Block(exprs), nil
	case "unary":
		var raw struct {
			Op string `json:"op"`
			X  rawMsg `json:"x"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		op, err := loadUnOp(raw.Op)
		if err != nil {
			return nil, err
		}

		x, err := loadExpr(raw.X)
		if err != nil {
			return nil, err
		}

		return Unary{Op: op, X: x}, nil
	case "binary":
		var raw struct {
			Op string `json:"op"`
			L  rawMsg `json:"l"`
			R  rawMsg `json:"r"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		op, err := loadBinOp(raw.Op)
		if err != nil {
			return nil, err
		}

		l, err := loadExpr(raw.L)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		r, err := loadExpr(raw.R)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}

		return Binary{Op: op, L: l, R: r}, nil
	case "index":
		var raw struct {
			Array rawMsg `json:"array"`
			Index rawMsg `json:"index"`
			Elem  rawMsg `json:"elem"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		arr, err := loadExpr(raw.Array)
		if err != nil {
			return nil, errors.Wrap(err, "array")
		}

		idx, err := loadExpr(raw.Index)
		if err != nil {
			return nil, errors.Wrap(err, "index")
		}

		elem, err := loadType(raw.Elem)
		if err != nil {
			return nil, errors.Wrap(err, "elem type")
		}

		return Index{Array: arr, Index: idx, Elem: elem}, nil
	case "cast":
		var raw struct {
			X    rawMsg `json:"x"`
			Type rawMsg `json:"type"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		x, err := loadExpr(raw.X)
		if err != nil {
			return nil, err
		}

		typ, err := loadType(raw.Type)
		if err != nil {
			return nil, err
		}

		return Cast{X: x, Type: typ}, nil
	case "for":
		var raw struct {
			Local int    `json:"local"`
			Name  string `json:"name"`
			Index rawMsg `json:"index"`
			Start rawMsg `json:"start"`
			End   rawMsg `json:"end"`
			Body  rawMsg `json:"body"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		typ, err := loadType(raw.Index)
		if err != nil {
			return nil, errors.Wrap(err, "index type")
		}

		start, err := loadExpr(raw.Start)
		if err != nil {
			return nil, errors.Wrap(err, "start")
		}

		end, err := loadExpr(raw.End)
		if err != nil {
			return nil, errors.Wrap(err, "end")
		}

		body, err := loadExpr(raw.Body)
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}

		return For{
			Local: LocalID(raw.Local),
			Name:  raw.Name,
			Index: typ,
			Start: start,
			End:   end,
			Body:  body,
		}, nil
	case "if":
		var raw struct {
			Cond rawMsg `json:"cond"`
			Then rawMsg `json:"then"`
			Else rawMsg `json:"else"`
			Type rawMsg `json:"type"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		cond, err := loadExpr(raw.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		then, err := loadExpr(raw.Then)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		var els Expr
		if len(raw.Else) != 0 {
			els, err = loadExpr(raw.Else)
			if err != nil {
				return nil, errors.Wrap(err, "else")
			}
		}

		typ, err := loadType(raw.Type)
		if err != nil {
			return nil, errors.Wrap(err, "type")
		}

		return If{Cond: cond, Then: then, Else: els, Type: typ}, nil
	case "tuple":
		var raw struct {
			Elems []rawMsg `json:"elems"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		elems, err := loadExprs(raw.Elems)
		if err != nil {
			return nil, err
		}

		return Tuple(elems), nil
	case "extract":
		var raw struct {
			Tuple rawMsg `json:"tuple"`
			Index int    `json:"index"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		tup, err := loadExpr(raw.Tuple)
		if err != nil {
			return nil, err
		}

		return Extract{Tuple: tup, Index: raw.Index}, nil
	case "call":
		var raw struct {
			Func int      `json:"func"`
			Name string   `json:"name"`
			Args []rawMsg `json:"args"`
			Ret  rawMsg   `json:"ret"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		args, err := loadExprs(raw.Args)
		if err != nil {
			return nil, err
		}

		ret, err := loadType(raw.Ret)
		if err != nil {
			return nil, errors.Wrap(err, "return type")
		}

		return Call{Func: FuncID(raw.Func), Name: raw.Name, Args: args, Ret: ret}, nil
	case "let":
		var raw struct {
			Local   int    `json:"local"`
			Name    string `json:"name"`
			Mutable bool   `json:"mutable"`
			Value   rawMsg `json:"value"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		val, err := loadExpr(raw.Value)
		if err != nil {
			return nil, err
		}

		return Let{
			Local:   LocalID(raw.Local),
			Name:    raw.Name,
			Mutable: raw.Mutable,
			Value:   val,
		}, nil
	case "constrain":
		var raw struct {
			X rawMsg `json:"x"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		x, err := loadExpr(raw.X)
		if err != nil {
			return nil, err
		}

		return Constrain{X: x}, nil
	case "assign":
		var raw struct {
			Target rawMsg `json:"target"`
			Value  rawMsg `json:"value"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		target, err := loadLValue(raw.Target)
		if err != nil {
			return nil, errors.Wrap(err, "target")
		}

		val, err := loadExpr(raw.Value)
		if err != nil {
			return nil, errors.Wrap(err, "value")
		}

		return Assign{Target: target, Value: val}, nil
	case "semi":
		var raw struct {
			X rawMsg `json:"x"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		x, err := loadExpr(raw.X)
		if err != nil {
			return nil, err
		}

		return Semi{X: x}, nil
	default:
		return nil, errors.New("unsupported expr kind: %v", kind)
	}
}

func loadExprs(raw []rawMsg) ([]Expr, error) {
	l := make([]Expr, len(raw))

	for i, r := range raw {
		x, err := loadExpr(r)
		if err != nil {
			return nil, errors.Wrap(err, "elem %d", i)
		}

		l[i] = x
	}

	return l, nil
}

func loadLValue(data rawMsg) (LValue, error) {
	kind, err := kindOf(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "ident":
		var raw struct {
			Local int    `json:"local"`
			Name  string `json:"name"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		return Ident{Local: LocalID(raw.Local), Name: raw.Name}, nil
	case "index":
		var raw struct {
			Array rawMsg `json:"array"`
			Index rawMsg `json:"index"`
			Elem  rawMsg `json:"elem"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		arr, err := loadLValue(raw.Array)
		if err != nil {
			return nil, errors.Wrap(err, "array")
		}

		idx, err := loadExpr(raw.Index)
		if err != nil {
			return nil, errors.Wrap(err, "index")
		}

		elem, err := loadType(raw.Elem)
		if err != nil {
			return nil, errors.Wrap(err, "elem type")
		}

		return LIndex{Array: arr, Index: idx, Elem: elem}, nil
	default:
		return nil, errors.New("unsupported lvalue kind: %v", kind)
	}
}

func loadType(data rawMsg) (tp.Type, error) {
	kind, err := kindOf(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "field":
		return tp.Field{}, nil
	case "bool":
		return tp.Bool{}, nil
	case "unit":
		return tp.Unit{}, nil
	case "int":
		var raw struct {
			Bits   int16 `json:"bits"`
			Signed bool  `json:"signed"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		return tp.Int{Bits: raw.Bits, Signed: raw.Signed}, nil
	case "array":
		var raw struct {
			Elem rawMsg `json:"elem"`
			Len  int    `json:"len"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		elem, err := loadType(raw.Elem)
		if err != nil {
			return nil, errors.Wrap(err, "elem")
		}

		return tp.Array{Elem: elem, Len: raw.Len}, nil
	case "tuple":
		var raw struct {
			Items []rawMsg `json:"items"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		items := make([]tp.Type, len(raw.Items))
		for i, r := range raw.Items {
			items[i], err = loadType(r)
			if err != nil {
				return nil, errors.Wrap(err, "item %d", i)
			}
		}

		return tp.Tuple{Items: items}, nil
	case "string":
		var raw struct {
			Len int `json:"len"`
		}

		err := json.Unmarshal(data, &raw)
		if err != nil {
			return nil, err
		}

		return tp.String{Len: raw.Len}, nil
	default:
		return nil, errors.New("unsupported type kind: %v", kind)
	}
}

func loadUnOp(name string) (UnOp, error) {
	switch name {
	case "not":
		return Not, nil
	case "minus":
		return Minus, nil
	default:
		return 0, errors.New("unsupported unary op: %v", name)
	}
}

func loadBinOp(name string) (BinOp, error) {
	ops := map[string]BinOp{
		"add": Add, "sub": Sub, "mul": Mul, "div": Div, "mod": Mod,
		"eq": Eq, "ne": Ne, "lt": Lt, "le": Le, "gt": Gt, "ge": Ge,
		"and": And, "or": Or, "xor": Xor, "shl": Shl, "shr": Shr,
	}

	op, ok := ops[name]
	if !ok {
		return 0, errors.New("unsupported binary op: %v", name)
	}

	return op, nil
}
