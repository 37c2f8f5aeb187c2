// Package ssz implements Simple Serialize (SSZ), the serialization and
// Merkleization format used by the Ethereum consensus layer.
//
// Unlike a code-generated SSZ library, this package is descriptor driven:
// callers build a Descriptor tree once (mirroring a consensus-spec type)
// and use it both to decode untrusted wire bytes into a zero-copy View and
// to encode a constructed Value tree back into bytes. The same descriptor
// also drives hash-tree-root computation and generalized-index resolution,
// so a single type definition is shared by the encoder, the hasher, and the
// Merkle-proof machinery in gindex.go and proof.go.
//
// Spec: https://github.com/ethereum/consensus-specs/blob/dev/ssz/simple-serialize.md
package ssz

import "errors"

// Common errors. DecodeFailed-class errors in the prover/verifier wrap one
// of these.
var (
	ErrSize           = errors.New("ssz: invalid size")
	ErrOffset         = errors.New("ssz: invalid or out-of-range offset")
	ErrOffsetOverlap  = errors.New("ssz: variable-size regions overlap")
	ErrListTooLong    = errors.New("ssz: value exceeds declared limit")
	ErrBufferTooSmall = errors.New("ssz: buffer too small for descriptor")
	ErrUnknownField   = errors.New("ssz: unknown container field")
	ErrIndexRange     = errors.New("ssz: index out of range")
	ErrBadPath        = errors.New("ssz: invalid gindex path element")
	ErrValueKind      = errors.New("ssz: value does not match descriptor kind")
)

// BytesPerLengthOffset is the width, in bytes, of an offset into a
// variable-size SSZ container or list (little-endian uint32).
const BytesPerLengthOffset = 4

// Kind discriminates the shape of a Descriptor.
type Kind int

const (
	KindBool Kind = iota
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindUint256
	KindBytes
	KindList
	KindVector
	KindContainer
	KindBitlist
	KindBitvector
	KindUnion
)

// Descriptor is implemented by every SSZ type node. Descriptors are
// immutable and safe for concurrent use once constructed.
type Descriptor interface {
	Kind() Kind
	// IsFixed reports whether every value of this type serializes to the
	// same number of bytes.
	IsFixed() bool
	// FixedSize returns the serialized size in bytes when IsFixed is true;
	// it is meaningless (and may be 0) otherwise.
	FixedSize() int
}

type basicDescriptor struct {
	kind Kind
	size int
}

func (d *basicDescriptor) Kind() Kind      { return d.kind }
func (d *basicDescriptor) IsFixed() bool   { return true }
func (d *basicDescriptor) FixedSize() int  { return d.size }

// Basic-type descriptors. These are the leaves of any type tree.
var (
	Bool    Descriptor = &basicDescriptor{KindBool, 1}
	Uint8   Descriptor = &basicDescriptor{KindUint8, 1}
	Uint16  Descriptor = &basicDescriptor{KindUint16, 2}
	Uint32  Descriptor = &basicDescriptor{KindUint32, 4}
	Uint64  Descriptor = &basicDescriptor{KindUint64, 8}
	Uint256 Descriptor = &basicDescriptor{KindUint256, 32}
)

// BytesDescriptor describes a fixed-length byte vector, e.g. Bytes(32) for a
// root, Bytes(48) for a BLS pubkey, Bytes(96) for a BLS signature.
type BytesDescriptor struct{ N int }

func Bytes(n int) *BytesDescriptor  { return &BytesDescriptor{N: n} }
func (d *BytesDescriptor) Kind() Kind     { return KindBytes }
func (d *BytesDescriptor) IsFixed() bool  { return true }
func (d *BytesDescriptor) FixedSize() int { return d.N }

// ListDescriptor describes a variable-length homogeneous sequence bounded by
// Limit elements.
type ListDescriptor struct {
	Elem  Descriptor
	Limit uint64
}

func List(elem Descriptor, limit uint64) *ListDescriptor { return &ListDescriptor{elem, limit} }
func (d *ListDescriptor) Kind() Kind     { return KindList }
func (d *ListDescriptor) IsFixed() bool  { return false }
func (d *ListDescriptor) FixedSize() int { return 0 }

// VectorDescriptor describes a fixed-length homogeneous sequence of exactly
// Length elements.
type VectorDescriptor struct {
	Elem   Descriptor
	Length uint64
}

func Vector(elem Descriptor, length uint64) *VectorDescriptor { return &VectorDescriptor{elem, length} }
func (d *VectorDescriptor) Kind() Kind    { return KindVector }
func (d *VectorDescriptor) IsFixed() bool { return d.Elem.IsFixed() }
func (d *VectorDescriptor) FixedSize() int {
	if !d.Elem.IsFixed() {
		return 0
	}
	return d.Elem.FixedSize() * int(d.Length)
}

// Field names one member of a Container, in declaration order. Field order
// is load-bearing: it determines both the wire layout and the generalized
// index of every field.
type Field struct {
	Name string
	Desc Descriptor
}

// ContainerDescriptor describes an ordered, heterogeneous struct-like type.
type ContainerDescriptor struct {
	Fields []Field
}

func Container(fields ...Field) *ContainerDescriptor { return &ContainerDescriptor{Fields: fields} }

func (d *ContainerDescriptor) Kind() Kind { return KindContainer }

func (d *ContainerDescriptor) IsFixed() bool {
	for _, f := range d.Fields {
		if !f.Desc.IsFixed() {
			return false
		}
	}
	return true
}

func (d *ContainerDescriptor) FixedSize() int {
	if !d.IsFixed() {
		return 0
	}
	n := 0
	for _, f := range d.Fields {
		n += f.Desc.FixedSize()
	}
	return n
}

// FieldIndex returns the declaration index of the named field, or -1.
func (d *ContainerDescriptor) FieldIndex(name string) int {
	for i, f := range d.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// BitlistDescriptor describes a variable-length bitfield bounded by Limit
// bits (e.g. an attestation aggregation bitfield).
type BitlistDescriptor struct{ Limit uint64 }

// BitlistDesc builds a BitlistDescriptor. Named distinctly from the
// Bitlist value type in bitfield.go, which a function of the same name
// would otherwise collide with.
func BitlistDesc(limit uint64) *BitlistDescriptor { return &BitlistDescriptor{limit} }
func (d *BitlistDescriptor) Kind() Kind     { return KindBitlist }
func (d *BitlistDescriptor) IsFixed() bool  { return false }
func (d *BitlistDescriptor) FixedSize() int { return 0 }

// BitvectorDescriptor describes a fixed-length bitfield of exactly N bits
// (e.g. the 512-bit sync-committee participation mask).
type BitvectorDescriptor struct{ N uint64 }

// BitvectorDesc builds a BitvectorDescriptor. Named distinctly from the
// Bitvector value type in bitfield.go for the same reason as BitlistDesc.
func BitvectorDesc(n uint64) *BitvectorDescriptor { return &BitvectorDescriptor{n} }
func (d *BitvectorDescriptor) Kind() Kind     { return KindBitvector }
func (d *BitvectorDescriptor) IsFixed() bool  { return true }
func (d *BitvectorDescriptor) FixedSize() int { return int((d.N + 7) / 8) }

// Variant names one arm of a Union, in selector order (variant i has
// selector i+1; selector 0 is the implicit None arm when AllowNone is set).
type Variant struct {
	Name string
	Desc Descriptor
}

// UnionDescriptor describes an SSZ union: a one-byte selector followed by
// the bytes of the selected variant.
type UnionDescriptor struct {
	Variants  []Variant
	AllowNone bool
}

func Union(allowNone bool, variants ...Variant) *UnionDescriptor {
	return &UnionDescriptor{Variants: variants, AllowNone: allowNone}
}

func (d *UnionDescriptor) Kind() Kind     { return KindUnion }
func (d *UnionDescriptor) IsFixed() bool  { return false }
func (d *UnionDescriptor) FixedSize() int { return 0 }

// VariantByName returns the 1-based selector for name, or 0 with ok=false.
func (d *UnionDescriptor) VariantByName(name string) (selector int, ok bool) {
	for i, v := range d.Variants {
		if v.Name == name {
			return i + 1, true
		}
	}
	return 0, false
}
