package ssz

import "encoding/binary"

// isBasicKind reports whether k is one of the SSZ "basic" types (bool,
// uintN). Basic-typed elements of a List/Vector are packed multiple-per-
// chunk; every other element kind gets its own chunk via hash_tree_root.
func isBasicKind(k Kind) bool {
	switch k {
	case KindBool, KindUint8, KindUint16, KindUint32, KindUint64, KindUint256:
		return true
	default:
		return false
	}
}

func lengthChunk(n uint64) [32]byte {
	var c [32]byte
	binary.LittleEndian.PutUint64(c[:8], n)
	return c
}

func selectorChunk(sel byte) [32]byte {
	var c [32]byte
	c[0] = sel
	return c
}

// sliceByOffsets splits data into len(offsets) contiguous regions starting
// at fixedLen, validating that the offsets are within bounds and
// non-decreasing and that the first one lands exactly at fixedLen (no gap
// between the fixed/offset part and the first variable region).
func sliceByOffsets(data []byte, offsets []int, fixedLen int) ([][]byte, error) {
	n := len(offsets)
	if n == 0 {
		return nil, nil
	}
	if offsets[0] != fixedLen {
		return nil, ErrOffset
	}
	children := make([][]byte, n)
	for i, off := range offsets {
		if off < fixedLen || off > len(data) {
			return nil, ErrOffset
		}
		if i > 0 && off < offsets[i-1] {
			return nil, ErrOffset
		}
		end := len(data)
		if i+1 < n {
			end = offsets[i+1]
		}
		if end < off {
			return nil, ErrOffset
		}
		children[i] = data[off:end]
	}
	return children, nil
}

// splitFixedSequenceChildren splits the serialized bytes of a Vector (or a
// List whose element count is already known) of exactly n elements into
// per-element byte slices.
func splitFixedSequenceChildren(elem Descriptor, n int, data []byte) ([][]byte, error) {
	if elem.IsFixed() {
		sz := elem.FixedSize()
		if sz == 0 {
			sz = 1 // bool
		}
		want := sz * n
		if len(data) != want {
			return nil, ErrSize
		}
		children := make([][]byte, n)
		for i := 0; i < n; i++ {
			children[i] = data[i*sz : (i+1)*sz]
		}
		return children, nil
	}

	fixedLen := n * BytesPerLengthOffset
	if len(data) < fixedLen {
		return nil, ErrBufferTooSmall
	}
	offsets := make([]int, n)
	for i := 0; i < n; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return sliceByOffsets(data, offsets, fixedLen)
}

// splitListChildren splits the serialized bytes of a List of elem into
// per-element byte slices, inferring the element count from the data
// itself (basic elements: byte length; composite fixed elements: byte
// length; composite variable elements: the leading offset table).
func splitListChildren(elem Descriptor, data []byte) (children [][]byte, count int, err error) {
	if elem.IsFixed() {
		sz := elem.FixedSize()
		if sz == 0 {
			sz = 1
		}
		if len(data)%sz != 0 {
			return nil, 0, ErrSize
		}
		count = len(data) / sz
		children, err = splitFixedSequenceChildren(elem, count, data)
		return children, count, err
	}

	if len(data) == 0 {
		return nil, 0, nil
	}
	if len(data) < BytesPerLengthOffset {
		return nil, 0, ErrBufferTooSmall
	}
	off0 := binary.LittleEndian.Uint32(data[0:4])
	if off0%BytesPerLengthOffset != 0 {
		return nil, 0, ErrOffset
	}
	count = int(off0) / BytesPerLengthOffset
	fixedLen := count * BytesPerLengthOffset
	if fixedLen > len(data) {
		return nil, 0, ErrOffset
	}
	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	children, err = sliceByOffsets(data, offsets, fixedLen)
	return children, count, err
}

// containerChildren splits the serialized bytes of a Container into one
// byte slice per declared field, in declaration order.
func containerChildren(d *ContainerDescriptor, data []byte) ([][]byte, error) {
	n := len(d.Fields)
	fixedSizes := make([]int, n)
	isVar := make([]bool, n)
	fixedLen := 0
	for i, f := range d.Fields {
		if f.Desc.IsFixed() {
			fixedSizes[i] = f.Desc.FixedSize()
			fixedLen += fixedSizes[i]
		} else {
			isVar[i] = true
			fixedLen += BytesPerLengthOffset
		}
	}
	if len(data) < fixedLen {
		return nil, ErrBufferTooSmall
	}

	children := make([][]byte, n)
	var offsets []int
	var varIdx []int
	cursor := 0
	for i := range d.Fields {
		if isVar[i] {
			off := int(binary.LittleEndian.Uint32(data[cursor : cursor+4]))
			offsets = append(offsets, off)
			varIdx = append(varIdx, i)
			cursor += 4
		} else {
			children[i] = data[cursor : cursor+fixedSizes[i]]
			cursor += fixedSizes[i]
		}
	}

	sliced, err := sliceByOffsets(data, offsets, fixedLen)
	if err != nil {
		return nil, err
	}
	for j, idx := range varIdx {
		children[idx] = sliced[j]
	}
	return children, nil
}

// leafWidth returns the next-power-of-two chunk count and tree depth for a
// composite type with n direct children (fields or elements).
func leafWidth(n int) (limit int, depth int) {
	limit = nextPowerOfTwo(n)
	depth = treeDepth(limit)
	return
}
