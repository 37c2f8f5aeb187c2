package ssz

import "sort"

// BuildTree recomputes every internal node hash of desc/data's Merkle tree,
// keyed by generalized index (root = 1), and returns the root. Proof
// generation is a thin wrapper around this: ProveSingle/ProveMulti call it
// once and read the sibling hashes they need out of the resulting map.
func BuildTree(desc Descriptor, data []byte) (root [32]byte, nodes map[uint64][32]byte, err error) {
	nodes = make(map[uint64][32]byte)
	root, err = buildTree(desc, data, 1, nodes)
	return root, nodes, err
}

func buildChunkTree(chunks [][32]byte, limit int, base uint64, out map[uint64][32]byte) [32]byte {
	count := len(chunks)
	if limit == 0 {
		limit = nextPowerOfTwo(count)
	}
	if limit < count {
		limit = nextPowerOfTwo(count)
	}
	limit = nextPowerOfTwo(limit)
	if count == 0 {
		chunks = [][32]byte{ZeroHash(0)}
		count = 1
	}
	depth := treeDepth(limit)

	layer := make([][32]byte, limit)
	copy(layer, chunks)
	for i := count; i < limit; i++ {
		layer[i] = ZeroHash(0)
	}

	leafBase := base << uint(depth)
	for i := 0; i < limit; i++ {
		out[leafBase+uint64(i)] = layer[i]
	}

	for d := 0; d < depth; d++ {
		newSize := len(layer) / 2
		newLayer := make([][32]byte, newSize)
		levelBase := base << uint(depth-d-1)
		for i := 0; i < newSize; i++ {
			newLayer[i] = hash(layer[2*i], layer[2*i+1])
			out[levelBase+uint64(i)] = newLayer[i]
		}
		layer = newLayer
	}
	return layer[0]
}

func buildTree(desc Descriptor, data []byte, base uint64, out map[uint64][32]byte) ([32]byte, error) {
	switch d := desc.(type) {
	case *basicDescriptor:
		root, err := hashBasic(d, data)
		if err != nil {
			return [32]byte{}, err
		}
		out[base] = root
		return root, nil

	case *BytesDescriptor:
		if len(data) != d.N {
			return [32]byte{}, ErrSize
		}
		return buildChunkTree(Pack(data), 0, base, out), nil

	case *BitvectorDescriptor:
		bv, err := BitvectorFromBytes(data, int(d.N))
		if err != nil {
			return [32]byte{}, err
		}
		return buildChunkTree(Pack(bv.Bytes()), 0, base, out), nil

	case *BitlistDescriptor:
		bl, err := BitlistFromBytes(data)
		if err != nil {
			return [32]byte{}, err
		}
		if uint64(bl.Len()) > d.Limit {
			return [32]byte{}, ErrListTooLong
		}
		maxChunks := ChunkCountBitlist(int(d.Limit))
		dataRoot := buildChunkTree(Pack(packBitsWithoutSentinel(bl)), nextPowerOfTwo(maxChunks), base*2, out)
		lenLeaf := lengthChunk(uint64(bl.Len()))
		out[base*2+1] = lenLeaf
		root := hash(dataRoot, lenLeaf)
		out[base] = root
		return root, nil

	case *VectorDescriptor:
		if isBasicKind(d.Elem.Kind()) {
			sz := d.Elem.FixedSize()
			if sz == 0 {
				sz = 1
			}
			if len(data) != sz*int(d.Length) {
				return [32]byte{}, ErrSize
			}
			return buildChunkTree(Pack(data), 0, base, out), nil
		}
		children, err := splitFixedSequenceChildren(d.Elem, int(d.Length), data)
		if err != nil {
			return [32]byte{}, err
		}
		limit, depth := leafWidth(int(d.Length))
		leafBase := base << uint(depth)
		roots := make([][32]byte, len(children))
		for i, c := range children {
			roots[i], err = buildTree(d.Elem, c, leafBase+uint64(i), out)
			if err != nil {
				return [32]byte{}, err
			}
		}
		return buildChunkTree(roots, limit, base, out), nil

	case *ListDescriptor:
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
			dataRoot := buildChunkTree(Pack(data), nextPowerOfTwo(maxChunks), base*2, out)
			lenLeaf := lengthChunk(uint64(count))
			out[base*2+1] = lenLeaf
			root := hash(dataRoot, lenLeaf)
			out[base] = root
			return root, nil
		}
		children, count, err := splitListChildren(d.Elem, data)
		if err != nil {
			return [32]byte{}, err
		}
		if uint64(count) > d.Limit {
			return [32]byte{}, ErrListTooLong
		}
		limit, depth := leafWidth(int(d.Limit))
		leafBase := (base * 2) << uint(depth)
		roots := make([][32]byte, count)
		for i, c := range children {
			roots[i], err = buildTree(d.Elem, c, leafBase+uint64(i), out)
			if err != nil {
				return [32]byte{}, err
			}
		}
		dataRoot := buildChunkTree(roots, limit, base*2, out)
		lenLeaf := lengthChunk(uint64(count))
		out[base*2+1] = lenLeaf
		root := hash(dataRoot, lenLeaf)
		out[base] = root
		return root, nil

	case *ContainerDescriptor:
		children, err := containerChildren(d, data)
		if err != nil {
			return [32]byte{}, err
		}
		limit, depth := leafWidth(len(d.Fields))
		leafBase := base << uint(depth)
		roots := make([][32]byte, len(d.Fields))
		for i, f := range d.Fields {
			roots[i], err = buildTree(f.Desc, children[i], leafBase+uint64(i), out)
			if err != nil {
				return [32]byte{}, err
			}
		}
		return buildChunkTree(roots, limit, base, out), nil

	case *UnionDescriptor:
		if len(data) == 0 {
			return [32]byte{}, ErrBufferTooSmall
		}
		selector := data[0]
		var innerRoot [32]byte
		if selector == 0 {
			if !d.AllowNone {
				return [32]byte{}, ErrBadPath
			}
			innerRoot = ZeroHash(0)
			out[base*2] = innerRoot
		} else {
			idx := int(selector) - 1
			if idx < 0 || idx >= len(d.Variants) {
				return [32]byte{}, ErrBadPath
			}
			var err error
			innerRoot, err = buildTree(d.Variants[idx].Desc, data[1:], base*2, out)
			if err != nil {
				return [32]byte{}, err
			}
		}
		selChunk := selectorChunk(selector)
		out[base*2+1] = selChunk
		root := hash(innerRoot, selChunk)
		out[base] = root
		return root, nil

	default:
		return [32]byte{}, ErrValueKind
	}
}

// ProveSingle builds a Merkle branch proving the node at gindex gi (as
// resolved by Gindex) against the root of desc/data: the sibling hash at
// every level from gi up to the root, ordered from the leaf upward.
func ProveSingle(desc Descriptor, data []byte, gi uint64) (root [32]byte, branch [][32]byte, err error) {
	root, nodes, err := BuildTree(desc, data)
	if err != nil {
		return [32]byte{}, nil, err
	}
	for g := gi; g > 1; g = Parent(g) {
		sib, ok := nodes[Sibling(g)]
		if !ok {
			return [32]byte{}, nil, ErrBadPath
		}
		branch = append(branch, sib)
	}
	return root, branch, nil
}

// VerifySingle recomputes the root implied by leaf at generalized index gi
// together with branch, and reports whether it equals root.
func VerifySingle(root [32]byte, leaf [32]byte, gi uint64, branch [][32]byte) bool {
	if len(branch) != DepthOfGI(gi) {
		return false
	}
	cur := leaf
	g := gi
	for _, sib := range branch {
		if IsLeft(g) {
			cur = hash(cur, sib)
		} else {
			cur = hash(sib, cur)
		}
		g = Parent(g)
	}
	return cur == root && g == 1
}

// ProveMulti builds a single combined multiproof for several generalized
// indices at once, deduplicating shared sibling nodes the way a real
// consensus-layer light client witness does (GeneralizedIndexes with a
// common ancestor path only need that ancestor's co-path once).
func ProveMulti(desc Descriptor, data []byte, gis []uint64) (root [32]byte, helperIndices []uint64, proof [][32]byte, err error) {
	root, nodes, err := BuildTree(desc, data)
	if err != nil {
		return [32]byte{}, nil, nil, err
	}

	provided := make(map[uint64]bool, len(gis))
	for _, gi := range gis {
		provided[gi] = true
	}
	needed := make(map[uint64]bool)
	for _, gi := range gis {
		g := gi
		for g > 1 {
			sib := Sibling(g)
			if !provided[sib] {
				needed[sib] = true
			}
			g = Parent(g)
			provided[g] = true
		}
	}

	sortedNeeded := make([]uint64, 0, len(needed))
	for gi := range needed {
		sortedNeeded = append(sortedNeeded, gi)
	}
	sort.Slice(sortedNeeded, func(i, j int) bool { return sortedNeeded[i] < sortedNeeded[j] })

	for _, gi := range sortedNeeded {
		h, ok := nodes[gi]
		if !ok {
			return [32]byte{}, nil, nil, ErrBadPath
		}
		helperIndices = append(helperIndices, gi)
		proof = append(proof, h)
	}
	return root, helperIndices, proof, nil
}

// VerifyMulti reconstructs the root from a set of known leaves (keyed by
// generalized index) plus the helper nodes from ProveMulti, and reports
// whether it equals root.
func VerifyMulti(root [32]byte, leaves map[uint64][32]byte, helperIndices []uint64, proof [][32]byte) bool {
	if len(helperIndices) != len(proof) {
		return false
	}
	known := make(map[uint64][32]byte, len(leaves)+len(proof))
	for gi, h := range leaves {
		known[gi] = h
	}
	for i, gi := range helperIndices {
		known[gi] = proof[i]
	}

	// Repeatedly collapse any node whose sibling is also known, until the
	// root is known or no more progress can be made.
	for {
		if _, ok := known[1]; ok {
			break
		}
		progressed := false
		for gi := range known {
			if gi == 1 {
				continue
			}
			sib := Sibling(gi)
			sibHash, ok := known[sib]
			if !ok {
				continue
			}
			parent := Parent(gi)
			if _, have := known[parent]; have {
				continue
			}
			var combined [32]byte
			if IsLeft(gi) {
				combined = hash(known[gi], sibHash)
			} else {
				combined = hash(sibHash, known[gi])
			}
			known[parent] = combined
			progressed = true
		}
		if !progressed {
			return false
		}
	}
	got, ok := known[1]
	return ok && got == root
}
