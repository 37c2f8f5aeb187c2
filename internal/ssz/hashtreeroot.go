package ssz

// HashTreeRoot computes the SSZ hash-tree-root of data under desc. data must
// be the canonical serialized encoding of a value of that type (as produced
// by Encode, or as received over the wire and accepted by Decode).
func HashTreeRoot(desc Descriptor, data []byte) ([32]byte, error) {
	switch d := desc.(type) {
	case *basicDescriptor:
		return hashBasic(d, data)
	case *BytesDescriptor:
		if len(data) != d.N {
			return [32]byte{}, ErrSize
		}
		return MerkleizeCached(Pack(data), 0), nil
	case *BitvectorDescriptor:
		bv, err := BitvectorFromBytes(data, int(d.N))
		if err != nil {
			return [32]byte{}, err
		}
		return BitvectorHashTreeRoot(bv), nil
	case *BitlistDescriptor:
		bl, err := BitlistFromBytes(data)
		if err != nil {
			return [32]byte{}, err
		}
		if uint64(bl.Len()) > d.Limit {
			return [32]byte{}, ErrListTooLong
		}
		return BitlistHashTreeRoot(bl, int(d.Limit)), nil
	case *VectorDescriptor:
		return hashVector(d, data)
	case *ListDescriptor:
		return hashList(d, data)
	case *ContainerDescriptor:
		return hashContainer(d, data)
	case *UnionDescriptor:
		return hashUnion(d, data)
	default:
		return [32]byte{}, ErrValueKind
	}
}

func hashBasic(d *basicDescriptor, data []byte) ([32]byte, error) {
	if len(data) != d.size {
		return [32]byte{}, ErrSize
	}
	if d.kind == KindBool && data[0] > 1 {
		return [32]byte{}, ErrValueKind
	}
	var chunk [32]byte
	copy(chunk[:], data)
	return chunk, nil
}

func hashVector(d *VectorDescriptor, data []byte) ([32]byte, error) {
	if isBasicKind(d.Elem.Kind()) {
		sz := d.Elem.FixedSize()
		if sz == 0 {
			sz = 1
		}
		want := sz * int(d.Length)
		if len(data) != want {
			return [32]byte{}, ErrSize
		}
		return MerkleizeCached(Pack(data), 0), nil
	}
	children, err := splitFixedSequenceChildren(d.Elem, int(d.Length), data)
	if err != nil {
		return [32]byte{}, err
	}
	roots := make([][32]byte, len(children))
	for i, c := range children {
		roots[i], err = HashTreeRoot(d.Elem, c)
		if err != nil {
			return [32]byte{}, err
		}
	}
	return MerkleizeCached(roots, 0), nil
}

func hashList(d *ListDescriptor, data []byte) ([32]byte, error) {
	if isBasicKind(d.Elem.Kind()) {
		sz := d.Elem.FixedSize()
		if sz == 0 {
			sz = 1
		}
		if len(data)%sz != 0 {
			return [32]byte{}, ErrSize
		}
		count := len(data) / sz
		if uint64(count) > d.Limit {
			return [32]byte{}, ErrListTooLong
		}
		maxChunks := ChunkCountBasic(int(d.Limit), sz)
		root := MerkleizeCached(Pack(data), nextPowerOfTwo(maxChunks))
		return MixInLength(root, uint64(count)), nil
	}

	children, count, err := splitListChildren(d.Elem, data)
	if err != nil {
		return [32]byte{}, err
	}
	if uint64(count) > d.Limit {
		return [32]byte{}, ErrListTooLong
	}
	roots := make([][32]byte, count)
	for i, c := range children {
		roots[i], err = HashTreeRoot(d.Elem, c)
		if err != nil {
			return [32]byte{}, err
		}
	}
	root := MerkleizeCached(roots, nextPowerOfTwo(int(d.Limit)))
	return MixInLength(root, uint64(count)), nil
}

func hashContainer(d *ContainerDescriptor, data []byte) ([32]byte, error) {
	children, err := containerChildren(d, data)
	if err != nil {
		return [32]byte{}, err
	}
	roots := make([][32]byte, len(d.Fields))
	for i, f := range d.Fields {
		roots[i], err = HashTreeRoot(f.Desc, children[i])
		if err != nil {
			return [32]byte{}, err
		}
	}
	return MerkleizeCached(roots, 0), nil
}

func hashUnion(d *UnionDescriptor, data []byte) ([32]byte, error) {
	if len(data) == 0 {
		return [32]byte{}, ErrBufferTooSmall
	}
	selector := data[0]
	if selector == 0 {
		if !d.AllowNone {
			return [32]byte{}, ErrBadPath
		}
		return HashTreeRootUnion(ZeroHash(0), 0), nil
	}
	idx := int(selector) - 1
	if idx < 0 || idx >= len(d.Variants) {
		return [32]byte{}, ErrBadPath
	}
	innerRoot, err := HashTreeRoot(d.Variants[idx].Desc, data[1:])
	if err != nil {
		return [32]byte{}, err
	}
	return HashTreeRootUnion(innerRoot, selector), nil
}
