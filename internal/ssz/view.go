package ssz

import "encoding/binary"

// View is a zero-copy, lazily-navigated reference to a decoded SSZ value:
// a Descriptor paired with the exact byte range of the wire encoding it
// describes. Navigating into a field or element reslices the backing
// array rather than copying it; structural validation (offsets in range,
// sizes consistent with the descriptor) happens at each navigation step,
// not up front.
type View struct {
	desc Descriptor
	data []byte
}

// Decode wraps data as a View of desc. For fixed-size descriptors the
// overall length is checked immediately; deeper structural validation
// happens lazily as fields/elements are navigated or HashTreeRoot is
// computed.
func Decode(desc Descriptor, data []byte) (*View, error) {
	if desc.IsFixed() && len(data) != desc.FixedSize() {
		return nil, ErrSize
	}
	return &View{desc: desc, data: data}, nil
}

// Desc returns the descriptor this view was decoded against.
func (v *View) Desc() Descriptor { return v.desc }

// Bytes returns the raw serialized bytes backing this view.
func (v *View) Bytes() []byte { return v.data }

// Field navigates into the named field of a Container view.
func (v *View) Field(name string) (*View, error) {
	d, ok := v.desc.(*ContainerDescriptor)
	if !ok {
		return nil, ErrValueKind
	}
	idx := d.FieldIndex(name)
	if idx < 0 {
		return nil, ErrUnknownField
	}
	children, err := containerChildren(d, v.data)
	if err != nil {
		return nil, err
	}
	return &View{desc: d.Fields[idx].Desc, data: children[idx]}, nil
}

// At navigates into element i of a List or Vector view.
func (v *View) At(i int) (*View, error) {
	switch d := v.desc.(type) {
	case *VectorDescriptor:
		if i < 0 || uint64(i) >= d.Length {
			return nil, ErrIndexRange
		}
		children, err := splitFixedSequenceChildren(d.Elem, int(d.Length), v.data)
		if err != nil {
			return nil, err
		}
		return &View{desc: d.Elem, data: children[i]}, nil
	case *ListDescriptor:
		children, count, err := splitListChildren(d.Elem, v.data)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= count {
			return nil, ErrIndexRange
		}
		return &View{desc: d.Elem, data: children[i]}, nil
	default:
		return nil, ErrValueKind
	}
}

// Len reports the element/bit count of a List, Vector, Bitlist, or
// Bitvector view.
func (v *View) Len() (int, error) {
	switch d := v.desc.(type) {
	case *ListDescriptor:
		_, count, err := splitListChildren(d.Elem, v.data)
		return count, err
	case *VectorDescriptor:
		return int(d.Length), nil
	case *BitlistDescriptor:
		bl, err := BitlistFromBytes(v.data)
		if err != nil {
			return 0, err
		}
		return bl.Len(), nil
	case *BitvectorDescriptor:
		return int(d.N), nil
	default:
		return 0, ErrValueKind
	}
}

// Union navigates a Union view, returning its 1-based selector (0 for
// None) and the inner View (nil for None).
func (v *View) Union() (selector uint8, inner *View, err error) {
	d, ok := v.desc.(*UnionDescriptor)
	if !ok {
		return 0, nil, ErrValueKind
	}
	if len(v.data) == 0 {
		return 0, nil, ErrBufferTooSmall
	}
	sel := v.data[0]
	if sel == 0 {
		if !d.AllowNone {
			return 0, nil, ErrBadPath
		}
		return 0, nil, nil
	}
	idx := int(sel) - 1
	if idx < 0 || idx >= len(d.Variants) {
		return 0, nil, ErrBadPath
	}
	return sel, &View{desc: d.Variants[idx].Desc, data: v.data[1:]}, nil
}

// Bool reads a Bool-typed leaf view.
func (v *View) Bool() (bool, error) {
	if err := v.requireBasic(KindBool, 1); err != nil {
		return false, err
	}
	return v.data[0] != 0, nil
}

// Uint8 reads a Uint8-typed leaf view.
func (v *View) Uint8() (uint8, error) {
	if err := v.requireBasic(KindUint8, 1); err != nil {
		return 0, err
	}
	return v.data[0], nil
}

// Uint16 reads a Uint16-typed leaf view.
func (v *View) Uint16() (uint16, error) {
	if err := v.requireBasic(KindUint16, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v.data), nil
}

// Uint32 reads a Uint32-typed leaf view.
func (v *View) Uint32() (uint32, error) {
	if err := v.requireBasic(KindUint32, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v.data), nil
}

// Uint64 reads a Uint64-typed leaf view.
func (v *View) Uint64() (uint64, error) {
	if err := v.requireBasic(KindUint64, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v.data), nil
}

func (v *View) requireBasic(k Kind, size int) error {
	d, ok := v.desc.(*basicDescriptor)
	if !ok || d.kind != k {
		return ErrValueKind
	}
	if len(v.data) != size {
		return ErrSize
	}
	return nil
}

// HashTreeRoot computes the hash-tree-root of this view's value.
func (v *View) HashTreeRoot() ([32]byte, error) { return HashTreeRoot(v.desc, v.data) }
