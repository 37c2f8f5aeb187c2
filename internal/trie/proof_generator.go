// proof_generator.go builds Merkle inclusion and exclusion proofs from an
// in-memory trie, and verifies them against a claimed root hash. Nothing
// outside this package calls it: the prover and verifier use Trie.Prove and
// VerifyProof directly. The wire encoding of a real proof request is the
// SSZ container the asyncreq/prover layers define, not a format of its own.
package trie

import (
	"bytes"
	"errors"

	"github.com/colibri-client/colibri/internal/crypto"
	"github.com/colibri-client/colibri/internal/ethtypes"
)

// Proof generation errors.
var (
	ErrProofGenNilKey    = errors.New("proof_generator: nil key")
	ErrProofGenEmptyTrie = errors.New("proof_generator: empty trie")
)

// ProofGenerator generates Merkle proofs from an in-memory trie.
type ProofGenerator struct {
	trie *Trie
}

// NewProofGenerator creates a proof generator for an in-memory trie.
func NewProofGenerator(t *Trie) *ProofGenerator {
	return &ProofGenerator{trie: t}
}

// GenerateProof produces a Merkle inclusion proof for the given key.
func (pg *ProofGenerator) GenerateProof(key []byte) (*InclusionProof, error) {
	if key == nil {
		return nil, ErrProofGenNilKey
	}
	if pg.trie.root == nil {
		return nil, ErrProofGenEmptyTrie
	}

	rootHash := pg.trie.Hash()
	proofNodes, err := pg.trie.Prove(key)
	if err != nil {
		return nil, err
	}
	value, _ := pg.trie.Get(key)

	return &InclusionProof{
		Key:        copySlice(key),
		Value:      value,
		ProofNodes: proofNodes,
		RootHash:   rootHash,
	}, nil
}

// GenerateExclusionProof produces a Merkle exclusion proof demonstrating
// that the given key does not exist in the trie.
func (pg *ProofGenerator) GenerateExclusionProof(key []byte) (*ExclusionProof, error) {
	if key == nil {
		return nil, ErrProofGenNilKey
	}

	rootHash := pg.trie.Hash()

	if pg.trie.root == nil {
		return &ExclusionProof{Key: copySlice(key), RootHash: rootHash}, nil
	}

	if val, _ := pg.trie.Get(key); val != nil {
		return nil, errors.New("proof_generator: key exists, cannot generate exclusion proof")
	}

	proofNodes, err := pg.trie.ProveAbsence(key)
	if err != nil {
		return nil, err
	}

	return &ExclusionProof{
		Key:        copySlice(key),
		ProofNodes: proofNodes,
		RootHash:   rootHash,
	}, nil
}

// GenerateMultiProof generates proofs for multiple keys in a single pass.
// Both existing and non-existing keys are handled: each result entry
// indicates whether the key was found (inclusion) or absent (exclusion).
func (pg *ProofGenerator) GenerateMultiProof(keys [][]byte) (*MultiProof, error) {
	if len(keys) == 0 {
		return nil, errors.New("proof_generator: empty key list")
	}

	rootHash := pg.trie.Hash()
	mp := &MultiProof{RootHash: rootHash, Items: make([]MultiProofEntry, len(keys))}

	for i, key := range keys {
		if key == nil {
			return nil, ErrProofGenNilKey
		}
		entry := MultiProofEntry{Key: copySlice(key)}
		val, _ := pg.trie.Get(key)
		if val != nil {
			entry.Exists = true
			entry.Value = val
			entry.ProofNodes, _ = pg.trie.Prove(key)
		} else {
			entry.ProofNodes, _ = pg.trie.ProveAbsence(key)
		}
		mp.Items[i] = entry
	}
	return mp, nil
}

// VerifyInclusionProof verifies an inclusion proof against its root hash.
func VerifyInclusionProof(proof *InclusionProof) error {
	if proof == nil {
		return errors.New("proof_generator: nil proof")
	}
	val, err := VerifyProof(proof.RootHash, proof.Key, proof.ProofNodes)
	if err != nil {
		return err
	}
	if !bytes.Equal(val, proof.Value) {
		return errors.New("proof_generator: value mismatch")
	}
	return nil
}

// VerifyExclusionProof verifies an exclusion proof against its root hash.
func VerifyExclusionProof(proof *ExclusionProof) error {
	if proof == nil {
		return errors.New("proof_generator: nil proof")
	}
	val, err := VerifyProof(proof.RootHash, proof.Key, proof.ProofNodes)
	if err != nil {
		return err
	}
	if val != nil {
		return errors.New("proof_generator: expected absence but key exists")
	}
	return nil
}

// VerifyMultiProofResult verifies all entries in a multi-proof.
func VerifyMultiProofResult(mp *MultiProof) error {
	if mp == nil || len(mp.Items) == 0 {
		return errors.New("proof_generator: nil or empty multi-proof")
	}
	for i, entry := range mp.Items {
		val, err := VerifyProof(mp.RootHash, entry.Key, entry.ProofNodes)
		if err != nil {
			return err
		}
		if entry.Exists {
			if val == nil || !bytes.Equal(val, entry.Value) {
				return errors.New("proof_generator: inclusion proof value mismatch at index " + itoa(i))
			}
		} else if val != nil {
			return errors.New("proof_generator: expected absence at index " + itoa(i))
		}
	}
	return nil
}

// --- Proof types ---

// InclusionProof proves that a key-value pair exists in a trie.
type InclusionProof struct {
	Key        []byte
	Value      []byte
	ProofNodes [][]byte
	RootHash   ethtypes.Hash
}

// ExclusionProof proves that a key does not exist in a trie.
type ExclusionProof struct {
	Key        []byte
	Value      []byte // always nil for exclusion proofs (present for API consistency)
	ProofNodes [][]byte
	RootHash   ethtypes.Hash
}

// MultiProofEntry is one entry in a multi-proof.
type MultiProofEntry struct {
	Key        []byte
	Value      []byte
	Exists     bool
	ProofNodes [][]byte
}

// MultiProof contains proofs for multiple keys against the same root.
type MultiProof struct {
	RootHash ethtypes.Hash
	Items    []MultiProofEntry
}

// HashProofNodes returns the keccak256 hash of concatenated proof node
// hashes, a compact commitment usable as a cache key for a proof.
func HashProofNodes(nodes [][]byte) ethtypes.Hash {
	var combined []byte
	for _, n := range nodes {
		h := crypto.Keccak256(n)
		combined = append(combined, h...)
	}
	if len(combined) == 0 {
		return ethtypes.Hash{}
	}
	return ethtypes.Hash(crypto.Keccak256Hash(combined))
}

func copySlice(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 0, 10)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
