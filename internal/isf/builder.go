package isf

import (
	"encoding/binary"
	"fmt"

	"github.com/CaptWake/btf2json/internal/arch"
	"github.com/CaptWake/btf2json/internal/btf"
	"github.com/CaptWake/btf2json/internal/btfgraph"
	"github.com/CaptWake/btf2json/internal/diagnostics"
	"github.com/CaptWake/btf2json/internal/symbolmap"
	"github.com/CaptWake/btf2json/lib/maps"
)

const (
	producerName    = "btf2json"
	producerVersion = "1.0.0"
)

// Build runs the five-step ISF construction order from spec.md §4.3:
// base types, enums, user types, symbols, metadata. banner overrides the
// symbol-derived linux_banner value when non-empty.
func Build(spec *btf.Spec, syms []symbolmap.Symbol, a arch.Arch, banner string, diag *diagnostics.Sink) (*Document, error) {
	g := btfgraph.New(spec, a)

	doc := &Document{
		BaseTypes: make(map[string]BaseType),
		UserTypes: make(map[string]UserType),
		Enums:     make(map[string]Enum),
		Symbols:   make(map[string]SymbolEntry),
	}

	if err := buildBaseTypes(g, doc, a); err != nil {
		return nil, err
	}
	if err := buildEnums(g, doc); err != nil {
		return nil, err
	}
	if err := buildUserTypes(g, doc, diag); err != nil {
		return nil, err
	}
	if err := buildSymbols(g, doc, syms); err != nil {
		return nil, err
	}
	buildMetadata(doc, syms, banner)

	if n := len(g.Missing); n > 0 {
		diag.Warnf("%d symbols reference missing types, %d unique types are missing: ids=%v", g.MissingRefs, n, maps.SortedKeys(g.Missing))
	}

	return doc, nil
}

// buildBaseTypes walks every INT and FLOAT record (step 1) and always
// registers the synthetic void and pointer bases. Endian comes from the
// decoded blob's own byte order (spec.md §8's round-trip property), not
// from --arch: --arch only ever selects a pointer width, never a byte
// order, so the blob is the only source of truth here.
func buildBaseTypes(g *btfgraph.Graph, doc *Document, a arch.Arch) error {
	endian := endianName(g.Spec.ByteOrder)

	doc.BaseTypes["void"] = BaseType{Size: 0, Signed: false, Kind: "void", Endian: endian}
	doc.BaseTypes["pointer"] = BaseType{Size: uint32(a.PointerSize), Signed: false, Kind: "int", Endian: endian}

	for _, t := range g.Spec.Types {
		switch t.Kind {
		case btf.KindInt:
			name, err := g.Name(t.ID)
			if err != nil {
				return fmt.Errorf("isf: base type %d: %w", t.ID, err)
			}
			doc.BaseTypes[name] = BaseType{
				Size:   t.IntSize,
				Signed: t.IsSigned(),
				Kind:   intBaseKind(t),
				Endian: endian,
			}
		case btf.KindFloat:
			name, err := g.Name(t.ID)
			if err != nil {
				return fmt.Errorf("isf: base type %d: %w", t.ID, err)
			}
			doc.BaseTypes[name] = BaseType{
				Size:   t.FloatSize,
				Signed: true,
				Kind:   "float",
				Endian: endian,
			}
		}
	}
	return nil
}

// endianName maps the blob's decoded byte order to ISF's endian string.
func endianName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}

func intBaseKind(t *btf.Type) string {
	switch {
	case t.IsBool():
		return "bool"
	case t.IsChar():
		return "char"
	default:
		return "int"
	}
}

// buildEnums implements step 2. ENUM64 constants combine lo32|(hi32<<32)
// as a signed 64-bit value.
func buildEnums(g *btfgraph.Graph, doc *Document) error {
	for _, t := range g.Spec.Types {
		switch t.Kind {
		case btf.KindEnum:
			name, err := g.Name(t.ID)
			if err != nil {
				return fmt.Errorf("isf: enum %d: %w", t.ID, err)
			}
			constants := make(map[string]int64, len(t.EnumValues))
			for _, v := range t.EnumValues {
				cname, err := g.Spec.Name(v.NameOff)
				if err != nil {
					return fmt.Errorf("isf: enum %d constant: %w", t.ID, err)
				}
				constants[cname] = int64(v.Value)
			}
			doc.Enums[name] = Enum{Size: t.Size, Base: enumBaseName(t.Size, doc), Constants: constants}
		case btf.KindEnum64:
			name, err := g.Name(t.ID)
			if err != nil {
				return fmt.Errorf("isf: enum64 %d: %w", t.ID, err)
			}
			constants := make(map[string]int64, len(t.Enum64Values))
			for _, v := range t.Enum64Values {
				cname, err := g.Spec.Name(v.NameOff)
				if err != nil {
					return fmt.Errorf("isf: enum64 %d constant: %w", t.ID, err)
				}
				constants[cname] = int64(uint64(v.Lo32) | (uint64(v.Hi32) << 32))
			}
			doc.Enums[name] = Enum{Size: t.Size, Base: enumBaseName(t.Size, doc), Constants: constants}
		}
	}
	return nil
}

// enumBaseName resolves spec.md §9's enum-base-type-name heuristic: ISF
// expects "int" or "long". An 8-byte enum prefers "long long" only if
// that name is already a registered base type; otherwise it falls back
// to "long". This is a heuristic, not a derivable fact from BTF alone.
func enumBaseName(size uint32, doc *Document) string {
	if size <= 4 {
		return "int"
	}
	if _, ok := doc.BaseTypes["long long"]; ok {
		return "long long"
	}
	return "long"
}

// buildUserTypes implements step 3.
func buildUserTypes(g *btfgraph.Graph, doc *Document, diag *diagnostics.Sink) error {
	for _, t := range g.Spec.Types {
		if t.Kind != btf.KindStruct && t.Kind != btf.KindUnion {
			continue
		}
		name, err := g.Name(t.ID)
		if err != nil {
			return fmt.Errorf("isf: user type %d: %w", t.ID, err)
		}

		fields := NewFields()
		for idx, m := range t.Members {
			fieldName, anon, err := memberName(g, m, idx, diag)
			if err != nil {
				return err
			}

			var offset uint32
			var bitField *BitField
			if t.BitfieldVlen {
				bitOffset := m.Offset & 0xffffff
				bitSize := (m.Offset >> 24) & 0xff
				offset = bitOffset / 8
				if bitSize > 0 {
					bitField = &BitField{BitPosition: bitOffset % 8, Length: bitSize}
				}
			} else {
				offset = m.Offset / 8
			}

			fields.Set(fieldName, Field{
				Type:      g.Describe(m.Type),
				Offset:    offset,
				Anonymous: anon,
				BitField:  bitField,
			})
		}

		kind := "struct"
		if t.Kind == btf.KindUnion {
			kind = "union"
		}
		doc.UserTypes[name] = UserType{Size: t.Size, Kind: kind, Fields: fields}
	}
	return nil
}

// memberName resolves a member's field name and anonymous flag per
// step 3: an empty name is only legal when the referenced type is itself
// an anonymous struct/union, in which case a synthetic
// "unnamed_field_<idx>" name is used and the field is flagged anonymous.
func memberName(g *btfgraph.Graph, m btf.Member, idx int, diag *diagnostics.Sink) (string, bool, error) {
	name, err := g.Spec.Name(m.NameOff)
	if err != nil {
		return "", false, fmt.Errorf("isf: member %d: %w", idx, err)
	}
	if name != "" {
		return name, false, nil
	}

	memberType, ok := g.Spec.ByID(m.Type)
	anonCarrier := ok && memberType != nil && (memberType.Kind == btf.KindStruct || memberType.Kind == btf.KindUnion) && memberType.NameOff == 0
	if !anonCarrier {
		diag.Warnf("member %d has no name and does not carry an anonymous struct/union", idx)
	}
	return fmt.Sprintf("unnamed_field_%d", idx), anonCarrier, nil
}

// buildSymbols implements step 4: merge the symbol map with BTF VAR/FUNC
// entries.
func buildSymbols(g *btfgraph.Graph, doc *Document, syms []symbolmap.Symbol) error {
	varsByName := make(map[string]*btf.Type)
	funcsByName := make(map[string]*btf.Type)
	for _, t := range g.Spec.Types {
		switch t.Kind {
		case btf.KindVar:
			name, err := g.Spec.Name(t.NameOff)
			if err != nil {
				return fmt.Errorf("isf: var %d: %w", t.ID, err)
			}
			varsByName[name] = t
		case btf.KindFunc:
			name, err := g.Spec.Name(t.NameOff)
			if err != nil {
				return fmt.Errorf("isf: func %d: %w", t.ID, err)
			}
			funcsByName[name] = t
		}
	}

	for _, s := range syms {
		entry := SymbolEntry{Address: s.Address}
		if v, ok := varsByName[s.Name]; ok {
			entry.Type = g.Describe(v.RefType)
		} else if _, ok := funcsByName[s.Name]; ok {
			entry.Type = &btfgraph.TypeDescriptor{Kind: "function"}
		}
		doc.Symbols[s.Name] = entry
	}
	return nil
}

// buildMetadata implements step 5. The banner argument wins when
// non-empty; otherwise the symbol named linux_banner supplies it, if
// present.
func buildMetadata(doc *Document, syms []symbolmap.Symbol, banner string) {
	if banner == "" {
		for _, s := range syms {
			if s.Name == "linux_banner" {
				banner = fmt.Sprintf("symbol at %#x", s.Address)
				break
			}
		}
	}
	doc.Metadata = NewMetadata(producerName, producerVersion, banner)
}
