package btfgraph

import "github.com/CaptWake/btf2json/internal/btf"

// TypeDescriptor is the recursive shape ISF uses inside struct/union
// fields and symbol types: §3's typeDescriptor.
type TypeDescriptor struct {
	Kind    string          `json:"kind"`
	Name    string          `json:"name,omitempty"`
	Subtype *TypeDescriptor `json:"subtype,omitempty"`
	Count   uint32          `json:"count,omitempty"`
}

func baseDescriptor(name string) *TypeDescriptor {
	return &TypeDescriptor{Kind: "base", Name: name}
}

var voidDescriptor = baseDescriptor("void")

// Describe lowers a BTF type id into the typeDescriptor used by struct
// fields and symbol entries. It never recurses through a pointer into a
// struct/union body — self-referential structs (e.g. a linked-list node
// holding a pointer to its own type) would otherwise recurse forever.
func (g *Graph) Describe(id uint32) *TypeDescriptor {
	t, ok := g.Spec.ByID(id)
	if !ok {
		g.markMissing(id)
		return voidDescriptor
	}
	if t == nil {
		return voidDescriptor
	}

	switch t.Kind {
	case btf.KindInt, btf.KindFloat:
		name, err := g.Name(id)
		if err != nil {
			g.markMissing(id)
			return voidDescriptor
		}
		return baseDescriptor(name)

	case btf.KindPtr:
		return &TypeDescriptor{Kind: "pointer", Subtype: g.Describe(t.RefType)}

	case btf.KindArray:
		return &TypeDescriptor{Kind: "array", Count: t.ArrayNelems, Subtype: g.Describe(t.ArrayElemType)}

	case btf.KindStruct:
		name, err := g.Name(id)
		if err != nil {
			g.markMissing(id)
			return voidDescriptor
		}
		return &TypeDescriptor{Kind: "struct", Name: name}

	case btf.KindUnion:
		name, err := g.Name(id)
		if err != nil {
			g.markMissing(id)
			return voidDescriptor
		}
		return &TypeDescriptor{Kind: "union", Name: name}

	case btf.KindEnum, btf.KindEnum64:
		name, err := g.Name(id)
		if err != nil {
			g.markMissing(id)
			return voidDescriptor
		}
		return &TypeDescriptor{Kind: "enum", Name: name}

	case btf.KindFuncProto:
		return &TypeDescriptor{Kind: "function"}

	case btf.KindTypedef, btf.KindConst, btf.KindVolatile, btf.KindRestrict, btf.KindTypeTag:
		peeled, err := g.Peel(id)
		if err != nil || peeled == id {
			g.markMissing(id)
			return voidDescriptor
		}
		return g.Describe(peeled)

	case btf.KindFwd:
		g.markMissing(id)
		return voidDescriptor

	default:
		g.markMissing(id)
		return voidDescriptor
	}
}
