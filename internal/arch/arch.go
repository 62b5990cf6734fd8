// Package arch holds the small per-architecture table (pointer width,
// default endian) that backs the CLI's --arch flag and the ISF builder's
// synthetic pointer base type.
package arch

import (
	"fmt"
	"strings"
)

// Arch names a target architecture for the emitted profile's pointer base
// type. It does not affect how the BTF blob itself is decoded: BTF carries
// its own endianness in its magic number.
type Arch struct {
	name        string
	PointerSize int // bytes
	Endian      string
}

var (
	X86_64 = Arch{name: "x86_64", PointerSize: 8, Endian: "little"}
	ARM64  = Arch{name: "arm64", PointerSize: 8, Endian: "little"}
	I386   = Arch{name: "i386", PointerSize: 4, Endian: "little"}
)

var byName = map[string]Arch{
	X86_64.name: X86_64,
	ARM64.name:  ARM64,
	I386.name:   I386,
}

func (a Arch) String() string { return a.name }

// Parse resolves an --arch flag value. Matching is case-insensitive.
func Parse(s string) (Arch, error) {
	a, ok := byName[strings.ToLower(s)]
	if !ok {
		return Arch{}, fmt.Errorf("unknown architecture %q (want one of x86_64, arm64, i386)", s)
	}
	return a, nil
}

// Flag is a pflag.Value wrapping Arch, in the shape of the teacher's
// logLevelFlag: a typed value with String/Set/Type, defaulting to x86_64.
type Flag struct {
	Arch
}

func NewFlag() Flag { return Flag{Arch: X86_64} }

func (f *Flag) Type() string { return "arch" }

func (f *Flag) Set(s string) error {
	a, err := Parse(s)
	if err != nil {
		return err
	}
	f.Arch = a
	return nil
}
