// proof_verifier.go is the verifier's standalone entry point into the
// Patricia engine: no trie, database, or prover state is needed, only a
// claimed root hash and the ordered proof nodes a prover sent over the wire.
package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/colibri-client/colibri/internal/ethtypes"
)

// Proof verification errors.
var (
	ErrProofEmpty        = errors.New("proof_verifier: empty proof")
	ErrProofNilInput     = errors.New("proof_verifier: nil input")
	ErrMultiProofInvalid = errors.New("proof_verifier: multi-proof verification failed")
)

// MPTProofResult holds the result of a Patricia trie proof verification.
type MPTProofResult struct {
	Key    []byte
	Value  []byte // nil for absence proofs
	Exists bool
}

// VerifyMPTProof verifies a Merkle Patricia Trie inclusion or exclusion
// proof. It returns the value if the key exists, or a result with
// Exists=false if the proof demonstrates absence. An error is returned if
// the proof is structurally invalid.
func VerifyMPTProof(rootHash ethtypes.Hash, key []byte, proof [][]byte) (*MPTProofResult, error) {
	if key == nil {
		return nil, ErrProofNilInput
	}

	result := &MPTProofResult{Key: key}

	if len(proof) == 0 {
		if rootHash == ethtypes.Hash(emptyRoot) {
			return result, nil
		}
		return nil, ErrProofEmpty
	}

	val, err := VerifyProof(rootHash, key, proof)
	if err != nil {
		return nil, fmt.Errorf("proof_verifier: %w", err)
	}

	result.Value = val
	result.Exists = val != nil
	return result, nil
}

// MultiProofItem represents one key-value pair in a multi-proof request.
type MultiProofItem struct {
	Key   []byte
	Value []byte
	Proof [][]byte
}

// MultiProofResult holds per-key verification results.
type MultiProofResult struct {
	Results []MPTProofResult
}

// VerifyMultiProof verifies multiple MPT proofs against the same root hash.
// The verifier's eth_getLogs path does not call it; it checks each receipt
// with VerifyProof.
func VerifyMultiProof(rootHash ethtypes.Hash, items []MultiProofItem) (*MultiProofResult, error) {
	if len(items) == 0 {
		return nil, ErrProofEmpty
	}

	result := &MultiProofResult{Results: make([]MPTProofResult, len(items))}

	for i, item := range items {
		if item.Key == nil {
			return nil, fmt.Errorf("%w: item %d has nil key", ErrProofNilInput, i)
		}

		r, err := VerifyMPTProof(rootHash, item.Key, item.Proof)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d (%x): %v", ErrMultiProofInvalid, i, item.Key, err)
		}

		result.Results[i] = *r

		if item.Value != nil && r.Value != nil && !bytes.Equal(item.Value, r.Value) {
			return nil, fmt.Errorf("%w: item %d value mismatch", ErrMultiProofInvalid, i)
		}
	}

	return result, nil
}

// VerifyMPTAbsence is a convenience function to verify that a key does NOT
// exist in the trie. Returns nil on success (proven absent) or an error.
func VerifyMPTAbsence(rootHash ethtypes.Hash, key []byte, proof [][]byte) error {
	r, err := VerifyMPTProof(rootHash, key, proof)
	if err != nil {
		return err
	}
	if r.Exists {
		return errors.New("proof_verifier: key exists with value, expected absence")
	}
	return nil
}
