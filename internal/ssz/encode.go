package ssz

import (
	"encoding/binary"

	"github.com/holiman/uint256"
)

// Value is the prover-side constructor counterpart to View: a small tree of
// concrete Go values that Encode serializes against a Descriptor. Callers
// build a Value tree matching the shape of the target Descriptor and hand
// both to Encode to get the canonical wire bytes.
type Value interface{ isValue() }

type (
	BoolValue    bool
	Uint8Value   uint8
	Uint16Value  uint16
	Uint32Value  uint32
	Uint64Value  uint64
	BytesValue   []byte
	ListValue    []Value
	VectorValue  []Value
)

// Uint256Value wraps a uint256.Int for the Uint256 descriptor kind.
type Uint256Value struct{ X *uint256.Int }

// ContainerValue supplies one Value per declared field, keyed by name.
type ContainerValue struct{ Fields map[string]Value }

// BitlistValue and BitvectorValue wrap the corresponding bitfield types.
type BitlistValue Bitlist
type BitvectorValue Bitvector

// UnionValue selects one variant (1-based, matching Descriptor.Variants)
// or None when Selector is 0.
type UnionValue struct {
	Selector uint8
	Inner    Value
}

func (BoolValue) isValue()      {}
func (Uint8Value) isValue()     {}
func (Uint16Value) isValue()    {}
func (Uint32Value) isValue()    {}
func (Uint64Value) isValue()    {}
func (Uint256Value) isValue()   {}
func (BytesValue) isValue()     {}
func (ListValue) isValue()      {}
func (VectorValue) isValue()    {}
func (ContainerValue) isValue() {}
func (BitlistValue) isValue()   {}
func (BitvectorValue) isValue() {}
func (UnionValue) isValue()     {}

// Encode serializes v against desc, producing the canonical SSZ wire
// encoding. It is the inverse of Decode followed by reading every leaf.
func Encode(desc Descriptor, v Value) ([]byte, error) {
	switch d := desc.(type) {
	case *basicDescriptor:
		return encodeBasic(d, v)
	case *BytesDescriptor:
		bv, ok := v.(BytesValue)
		if !ok || len(bv) != d.N {
			return nil, ErrValueKind
		}
		out := make([]byte, d.N)
		copy(out, bv)
		return out, nil
	case *BitvectorDescriptor:
		bvv, ok := v.(BitvectorValue)
		if !ok || Bitvector(bvv).Len() != int(d.N) {
			return nil, ErrValueKind
		}
		return Bitvector(bvv).Bytes(), nil
	case *BitlistDescriptor:
		blv, ok := v.(BitlistValue)
		if !ok {
			return nil, ErrValueKind
		}
		if uint64(Bitlist(blv).Len()) > d.Limit {
			return nil, ErrListTooLong
		}
		return Bitlist(blv).Bytes(), nil
	case *ListDescriptor:
		elems, ok := asElements(v)
		if !ok {
			return nil, ErrValueKind
		}
		if uint64(len(elems)) > d.Limit {
			return nil, ErrListTooLong
		}
		return encodeSequence(d.Elem, elems)
	case *VectorDescriptor:
		elems, ok := asElements(v)
		if !ok || uint64(len(elems)) != d.Length {
			return nil, ErrValueKind
		}
		return encodeSequence(d.Elem, elems)
	case *ContainerDescriptor:
		cv, ok := v.(ContainerValue)
		if !ok {
			return nil, ErrValueKind
		}
		return encodeContainer(d, cv)
	case *UnionDescriptor:
		uv, ok := v.(UnionValue)
		if !ok {
			return nil, ErrValueKind
		}
		return encodeUnion(d, uv)
	default:
		return nil, ErrValueKind
	}
}

func asElements(v Value) ([]Value, bool) {
	switch t := v.(type) {
	case ListValue:
		return []Value(t), true
	case VectorValue:
		return []Value(t), true
	default:
		return nil, false
	}
}

func encodeBasic(d *basicDescriptor, v Value) ([]byte, error) {
	switch d.kind {
	case KindBool:
		bv, ok := v.(BoolValue)
		if !ok {
			return nil, ErrValueKind
		}
		if bv {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case KindUint8:
		uv, ok := v.(Uint8Value)
		if !ok {
			return nil, ErrValueKind
		}
		return []byte{byte(uv)}, nil
	case KindUint16:
		uv, ok := v.(Uint16Value)
		if !ok {
			return nil, ErrValueKind
		}
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(uv))
		return b, nil
	case KindUint32:
		uv, ok := v.(Uint32Value)
		if !ok {
			return nil, ErrValueKind
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(uv))
		return b, nil
	case KindUint64:
		uv, ok := v.(Uint64Value)
		if !ok {
			return nil, ErrValueKind
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(uv))
		return b, nil
	case KindUint256:
		uv, ok := v.(Uint256Value)
		if !ok || uv.X == nil {
			return nil, ErrValueKind
		}
		big := uv.X.Bytes32() // big-endian
		little := make([]byte, 32)
		for i := range big {
			little[i] = big[31-i]
		}
		return little, nil
	default:
		return nil, ErrValueKind
	}
}

// encodeSequence serializes a homogeneous sequence of elements, using the
// basic-type packing rule when elem is basic, fixed-size concatenation
// when elem is a fixed composite, and an offset table + variable bodies
// when elem is a variable-size composite.
func encodeSequence(elem Descriptor, elems []Value) ([]byte, error) {
	if isBasicKind(elem.Kind()) {
		var buf []byte
		for _, val := range elems {
			b, err := Encode(elem, val)
			if err != nil {
				return nil, err
			}
			buf = append(buf, b...)
		}
		return buf, nil
	}

	if elem.IsFixed() {
		var buf []byte
		for _, val := range elems {
			b, err := Encode(elem, val)
			if err != nil {
				return nil, err
			}
			if len(b) != elem.FixedSize() {
				return nil, ErrSize
			}
			buf = append(buf, b...)
		}
		return buf, nil
	}

	bodies := make([][]byte, len(elems))
	for i, val := range elems {
		b, err := Encode(elem, val)
		if err != nil {
			return nil, err
		}
		bodies[i] = b
	}
	fixedLen := len(elems) * BytesPerLengthOffset
	fixedPart := make([]byte, 0, fixedLen)
	var varPart []byte
	cursor := fixedLen
	for _, b := range bodies {
		off := make([]byte, BytesPerLengthOffset)
		binary.LittleEndian.PutUint32(off, uint32(cursor))
		fixedPart = append(fixedPart, off...)
		varPart = append(varPart, b...)
		cursor += len(b)
	}
	return append(fixedPart, varPart...), nil
}

func encodeContainer(d *ContainerDescriptor, cv ContainerValue) ([]byte, error) {
	bodies := make([][]byte, len(d.Fields))
	for i, f := range d.Fields {
		val, ok := cv.Fields[f.Name]
		if !ok {
			return nil, ErrUnknownField
		}
		b, err := Encode(f.Desc, val)
		if err != nil {
			return nil, err
		}
		if f.Desc.IsFixed() && len(b) != f.Desc.FixedSize() {
			return nil, ErrSize
		}
		bodies[i] = b
	}

	fixedLen := 0
	for i, f := range d.Fields {
		if f.Desc.IsFixed() {
			fixedLen += len(bodies[i])
		} else {
			fixedLen += BytesPerLengthOffset
		}
	}

	fixedPart := make([]byte, 0, fixedLen)
	var varPart []byte
	cursor := fixedLen
	for i, f := range d.Fields {
		if f.Desc.IsFixed() {
			fixedPart = append(fixedPart, bodies[i]...)
			continue
		}
		off := make([]byte, BytesPerLengthOffset)
		binary.LittleEndian.PutUint32(off, uint32(cursor))
		fixedPart = append(fixedPart, off...)
		varPart = append(varPart, bodies[i]...)
		cursor += len(bodies[i])
	}
	return append(fixedPart, varPart...), nil
}

func encodeUnion(d *UnionDescriptor, uv UnionValue) ([]byte, error) {
	if uv.Selector == 0 {
		if !d.AllowNone {
			return nil, ErrBadPath
		}
		return []byte{0}, nil
	}
	idx := int(uv.Selector) - 1
	if idx < 0 || idx >= len(d.Variants) {
		return nil, ErrBadPath
	}
	inner, err := Encode(d.Variants[idx].Desc, uv.Inner)
	if err != nil {
		return nil, err
	}
	return append([]byte{uv.Selector}, inner...), nil
}
