// Package isf defines the Volatility 3 Intermediate Symbol File document
// shape and the builder that lowers a decoded BTF type graph plus a
// parsed symbol map into one.
package isf

import (
	"fmt"
	"io"

	"git.lukeshu.com/go/lowmemjson"

	"github.com/CaptWake/btf2json/internal/btfgraph"
)

const schemaFormat = "6.2.0"

type Producer struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type SourceDescriptor struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type KernelInfo struct {
	Banner string `json:"banner"`
}

type LinuxMetadata struct {
	Kernel KernelInfo `json:"kernel"`
}

type Metadata struct {
	Producer Producer           `json:"producer"`
	Format   string             `json:"format"`
	Symbols  []SourceDescriptor `json:"symbols"`
	Linux    LinuxMetadata      `json:"linux"`
}

func NewMetadata(producerName, producerVersion, banner string) Metadata {
	return Metadata{
		Producer: Producer{Name: producerName, Version: producerVersion},
		Format:   schemaFormat,
		Symbols: []SourceDescriptor{
			{Kind: "btf", Name: "btf"},
			{Kind: "system-map", Name: "map"},
		},
		Linux: LinuxMetadata{Kernel: KernelInfo{Banner: banner}},
	}
}

type BaseType struct {
	Size   uint32 `json:"size"`
	Signed bool   `json:"signed"`
	Kind   string `json:"kind"`
	Endian string `json:"endian"`
}

type BitField struct {
	BitPosition uint32 `json:"bit_position"`
	Length      uint32 `json:"length"`
}

type Field struct {
	Type      *btfgraph.TypeDescriptor `json:"type"`
	Offset    uint32                   `json:"offset"`
	Anonymous bool                     `json:"anonymous,omitempty"`
	BitField  *BitField                `json:"bit_field,omitempty"`
}

type UserType struct {
	Size   uint32  `json:"size"`
	Kind   string  `json:"kind"` // "struct" | "union" | "class"
	Fields *Fields `json:"fields"`
}

type Enum struct {
	Size      uint32           `json:"size"`
	Base      string           `json:"base"`
	Constants map[string]int64 `json:"constants"`
}

type SymbolEntry struct {
	Address uint64                   `json:"address"`
	Type    *btfgraph.TypeDescriptor `json:"type,omitempty"`
}

// Fields is user_types[T].fields: a JSON object whose key order is the
// BTF file's own member order (spec's "insertion order when preserved"),
// not the random order Go maps would give it. It implements
// lowmemjson.Encodable directly, the way lib/containers.Set[T] hand-rolls
// its own ordered encoding instead of delegating to a plain map.
type Fields struct {
	names  []string
	byName map[string]Field
}

func NewFields() *Fields {
	return &Fields{byName: make(map[string]Field)}
}

// Set appends name the first time it's seen and overwrites in place on a
// repeat, preserving the original position — duplicate member names
// should not happen in well-formed BTF, but a duplicate must not
// reorder the document.
func (f *Fields) Set(name string, field Field) {
	if _, ok := f.byName[name]; !ok {
		f.names = append(f.names, name)
	}
	f.byName[name] = field
}

func (f *Fields) Len() int { return len(f.names) }

// Get returns the field registered under name, if any.
func (f *Fields) Get(name string) (Field, bool) {
	field, ok := f.byName[name]
	return field, ok
}

var _ lowmemjson.Encodable = (*Fields)(nil)

func (f *Fields) EncodeJSON(w io.Writer) error {
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, name := range f.names {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := lowmemjson.Encode(w, name); err != nil {
			return fmt.Errorf("isf: encode field name %q: %w", name, err)
		}
		if _, err := io.WriteString(w, ":"); err != nil {
			return err
		}
		if err := lowmemjson.Encode(w, f.byName[name]); err != nil {
			return fmt.Errorf("isf: encode field %q: %w", name, err)
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

// Document is the complete ISF profile: the top-level maps are plain Go
// maps because lowmemjson, like encoding/json, always emits map[string]V
// keys in sorted order, which already satisfies spec.md §5's determinism
// requirement without hand-rolled bookkeeping.
type Document struct {
	Metadata  Metadata             `json:"metadata"`
	BaseTypes map[string]BaseType  `json:"base_types"`
	UserTypes map[string]UserType  `json:"user_types"`
	Enums     map[string]Enum      `json:"enums"`
	Symbols   map[string]SymbolEntry `json:"symbols"`
}
