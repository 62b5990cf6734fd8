// Package btfgraph walks a decoded BTF type table: stripping qualifier
// chains (Peel), computing effective sizes (SizeOf), and lowering a type
// id into an ISF typeDescriptor (Describe).
package btfgraph

import (
	"fmt"

	"github.com/CaptWake/btf2json/internal/arch"
	"github.com/CaptWake/btf2json/internal/btf"
	"github.com/CaptWake/btf2json/lib/containers"
)

// Graph wraps a decoded btf.Spec with the walks needed to lower it into
// an ISF document, plus the architecture table used for pointer sizing.
type Graph struct {
	Spec *btf.Spec
	Arch arch.Arch

	// Missing accumulates every type id that Describe or SizeOf could not
	// resolve to a concrete ISF entry (forward declarations left
	// un-backed, out-of-range ids). Read after the whole build completes.
	Missing containers.Set[uint32]

	// MissingRefs counts every Describe/SizeOf call that hit a missing
	// type, not deduplicated by id — spec.md §4.3's "{K} symbols reference
	// missing types" half of the build summary, where len(Missing) is U.
	MissingRefs int
}

func New(spec *btf.Spec, a arch.Arch) *Graph {
	return &Graph{Spec: spec, Arch: a, Missing: containers.NewSet[uint32]()}
}

// markMissing records a reference to a type id that could not be
// resolved, counting both the unique id (Missing) and the reference
// itself (MissingRefs).
func (g *Graph) markMissing(id uint32) {
	g.Missing.Insert(id)
	g.MissingRefs++
}

// Peel follows TYPEDEF / CONST / VOLATILE / RESTRICT / TYPE_TAG chains to
// the underlying type, stopping at id 0 (void) or any other kind. It
// guards against cycles by bounding the walk at len(Types)+1 steps.
func (g *Graph) Peel(id uint32) (uint32, error) {
	seen := 0
	limit := len(g.Spec.Types) + 1
	for {
		if seen > limit {
			return 0, fmt.Errorf("btfgraph: peel(%d): cycle detected", id)
		}
		seen++

		t, ok := g.Spec.ByID(id)
		if !ok {
			return 0, fmt.Errorf("btfgraph: peel(%d): type id out of range", id)
		}
		if t == nil { // void
			return id, nil
		}
		switch t.Kind {
		case btf.KindTypedef, btf.KindConst, btf.KindVolatile, btf.KindRestrict, btf.KindTypeTag:
			id = t.RefType
		default:
			return id, nil
		}
	}
}

// SizeOf computes the byte size of a type. Callers must not call SizeOf
// on id 0 (void); its size is undefined by definition.
func (g *Graph) SizeOf(id uint32) (uint32, error) {
	t, ok := g.Spec.ByID(id)
	if !ok {
		return 0, fmt.Errorf("btfgraph: size_of(%d): type id out of range", id)
	}
	if t == nil {
		return 0, fmt.Errorf("btfgraph: size_of(void) is undefined")
	}

	switch t.Kind {
	case btf.KindInt:
		return t.IntSize, nil
	case btf.KindFloat:
		return t.FloatSize, nil
	case btf.KindEnum:
		return t.Size, nil
	case btf.KindEnum64:
		return t.Size, nil
	case btf.KindStruct, btf.KindUnion:
		return t.Size, nil
	case btf.KindPtr:
		return uint32(g.Arch.PointerSize), nil
	case btf.KindArray:
		elemSize, err := g.SizeOf(t.ArrayElemType)
		if err != nil {
			return 0, err
		}
		return t.ArrayNelems * elemSize, nil
	case btf.KindTypedef, btf.KindConst, btf.KindVolatile, btf.KindRestrict, btf.KindTypeTag:
		peeled, err := g.Peel(id)
		if err != nil {
			return 0, err
		}
		if peeled == id {
			return 0, fmt.Errorf("btfgraph: size_of(%d): peel did not resolve", id)
		}
		return g.SizeOf(peeled)
	case btf.KindFwd:
		g.markMissing(id)
		return 0, nil
	case btf.KindFuncProto:
		return uint32(g.Arch.PointerSize), nil
	default:
		return 0, fmt.Errorf("btfgraph: size_of(%d): kind %s has no defined size", id, t.Kind)
	}
}

// AnonName synthesizes the ISF name for an anonymous STRUCT/UNION/ENUM:
// "unnamed_" followed by the lowercase hex type id.
func AnonName(id uint32) string {
	return fmt.Sprintf("unnamed_%x", id)
}

// Name resolves a type's display name: its own name if non-anonymous, or
// the synthetic anonymous name otherwise.
func (g *Graph) Name(id uint32) (string, error) {
	t, ok := g.Spec.ByID(id)
	if !ok {
		return "", fmt.Errorf("btfgraph: name(%d): type id out of range", id)
	}
	if t == nil {
		return "void", nil
	}
	if t.NameOff == 0 {
		return AnonName(id), nil
	}
	return g.Spec.Name(t.NameOff)
}
