package ssz

import "errors"

// Gindex resolves a field/index path against desc to the generalized index
// (root = 1) of the node it names. path elements are field names (string)
// for Container and Union steps, or element indices (int) for List and
// Vector steps. Unions and Lists each introduce one extra tree level over
// their value/data subtree (for the selector and length mixins
// respectively); Gindex accounts for that automatically, so callers only
// ever name the logical field or element.
func Gindex(desc Descriptor, path ...any) (uint64, error) {
	cur := uint64(1)
	d := desc
	for _, p := range path {
		switch dd := d.(type) {
		case *ContainerDescriptor:
			name, ok := p.(string)
			if !ok {
				return 0, ErrBadPath
			}
			idx := dd.FieldIndex(name)
			if idx < 0 {
				return 0, ErrUnknownField
			}
			_, depth := leafWidth(len(dd.Fields))
			cur = cur<<uint(depth) + uint64(idx)
			d = dd.Fields[idx].Desc

		case *VectorDescriptor:
			idx, ok := toIndex(p)
			if !ok {
				return 0, ErrBadPath
			}
			if idx < 0 || uint64(idx) >= dd.Length {
				return 0, ErrIndexRange
			}
			if isBasicKind(dd.Elem.Kind()) {
				return 0, errors.New("ssz: cannot index into a packed basic vector element")
			}
			_, depth := leafWidth(int(dd.Length))
			cur = cur<<uint(depth) + uint64(idx)
			d = dd.Elem

		case *ListDescriptor:
			idx, ok := toIndex(p)
			if !ok {
				return 0, ErrBadPath
			}
			if idx < 0 || uint64(idx) >= dd.Limit {
				return 0, ErrIndexRange
			}
			if isBasicKind(dd.Elem.Kind()) {
				return 0, errors.New("ssz: cannot index into a packed basic list element")
			}
			cur = cur * 2 // data subtree is the left child of the length-mixin wrapper
			_, depth := leafWidth(int(dd.Limit))
			cur = cur<<uint(depth) + uint64(idx)
			d = dd.Elem

		case *UnionDescriptor:
			name, ok := p.(string)
			if !ok {
				return 0, ErrBadPath
			}
			sel, ok := dd.VariantByName(name)
			if !ok {
				return 0, ErrUnknownField
			}
			cur = cur * 2 // value subtree is the left child of the selector-mixin wrapper
			d = dd.Variants[sel-1].Desc

		default:
			return 0, ErrBadPath
		}
	}
	return cur, nil
}

func toIndex(p any) (int, bool) {
	switch v := p.(type) {
	case int:
		return v, true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}

// GindexAdd composes a subtree-relative generalized index (child, rooted at
// 1) onto an absolute generalized index of that subtree's root (parent),
// yielding the absolute generalized index of the node child names. This is
// how a proof through one SSZ type (e.g. a beacon block header) is chained
// onto a proof through a nested type (e.g. its body).
func GindexAdd(parent, child uint64) uint64 {
	depth := DepthOfGI(child)
	return parent<<uint(depth) + (child - (uint64(1) << uint(depth)))
}

// Parent returns the generalized index of gi's parent node.
func Parent(gi uint64) uint64 { return gi / 2 }

// Sibling returns the generalized index of gi's sibling node.
func Sibling(gi uint64) uint64 { return gi ^ 1 }

// IsLeft reports whether gi is the left child of its parent.
func IsLeft(gi uint64) bool { return gi%2 == 0 }

// DepthOfGI returns the depth of gi below the root (gindex 1 has depth 0).
func DepthOfGI(gi uint64) int {
	d := 0
	for gi > 1 {
		gi >>= 1
		d++
	}
	return d
}

// PathToRoot returns the sequence of generalized indices from gi up to
// (and including) the root, in that order.
func PathToRoot(gi uint64) []uint64 {
	var path []uint64
	for gi >= 1 {
		path = append(path, gi)
		if gi == 1 {
			break
		}
		gi = Parent(gi)
	}
	return path
}
