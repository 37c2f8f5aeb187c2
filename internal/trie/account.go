package trie

import (
	"errors"
	"math/big"

	"github.com/colibri-client/colibri/internal/crypto"
	"github.com/colibri-client/colibri/internal/ethtypes"
)

// EmptyCodeHash is Keccak256 of the empty byte string, the CodeHash of an
// externally-owned account.
var EmptyCodeHash = ethtypes.Hash(crypto.Keccak256Hash(nil))

// ErrAccountProofInvalid is returned when an eth_getProof-shaped account
// proof fails to verify against the claimed state root or declared fields.
var ErrAccountProofInvalid = errors.New("trie: account proof verification failed")

// Account mirrors the four-field state trie leaf: [nonce, balance,
// storageRoot, codeHash]. The prover never builds the state trie itself —
// account and storage proofs are fetched ready-made from the execution
// layer's eth_getProof — so this engine only verifies them, never generates
// them (grounded on the verification half of pkg/trie/account_proof.go).
type Account struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot ethtypes.Hash
	CodeHash    ethtypes.Hash
}

// VerifyAccountProof checks an eth_getProof account proof against stateRoot:
// the proof's nodes must hash correctly from leaf to root, and the decoded
// leaf must match the declared account fields. It returns (false, nil) when
// the proof validly demonstrates the account does not exist.
func VerifyAccountProof(stateRoot ethtypes.Hash, address ethtypes.Address, account Account, proof [][]byte) (bool, error) {
	addrHash := crypto.Keccak256(address[:])

	val, err := VerifyProof(stateRoot, addrHash, proof)
	if err != nil {
		return false, ErrAccountProofInvalid
	}

	if val == nil {
		if account.Nonce == 0 && (account.Balance == nil || account.Balance.Sign() == 0) &&
			account.StorageRoot == EmptyRoot() && account.CodeHash == EmptyCodeHash {
			return false, nil
		}
		return false, ErrAccountProofInvalid
	}

	decoded, err := DecodeAccountFields(val)
	if err != nil {
		return false, ErrAccountProofInvalid
	}
	if decoded.Nonce != account.Nonce ||
		decoded.Balance.Cmp(nonNilBig(account.Balance)) != 0 ||
		decoded.StorageRoot != account.StorageRoot ||
		decoded.CodeHash != account.CodeHash {
		return false, ErrAccountProofInvalid
	}
	return true, nil
}

// VerifyStorageProof checks an eth_getProof storage-slot proof against the
// account's storageRoot, returning the slot's stored value (nil for a
// validly-absent slot).
func VerifyStorageProof(storageRoot ethtypes.Hash, slot ethtypes.Hash, proof [][]byte) ([]byte, error) {
	slotHash := crypto.Keccak256(slot[:])
	val, err := VerifyProof(storageRoot, slotHash, proof)
	if err != nil {
		return nil, ErrAccountProofInvalid
	}
	return val, nil
}

// DecodeAccountFields decodes an RLP-encoded state trie leaf into its four
// fields: [nonce, balance, storageRoot, codeHash].
func DecodeAccountFields(data []byte) (Account, error) {
	items, err := decodeRLPList(data)
	if err != nil {
		return Account{}, err
	}
	if len(items) != 4 {
		return Account{}, errors.New("trie: invalid account encoding: expected 4 fields")
	}

	a := Account{Balance: new(big.Int)}
	a.Nonce = decodeBytesAsUint64(items[0])
	if len(items[1]) > 0 {
		a.Balance.SetBytes(items[1])
	}
	if len(items[2]) == 32 {
		a.StorageRoot = ethtypes.BytesToHash(items[2])
	}
	if len(items[3]) == 32 {
		a.CodeHash = ethtypes.BytesToHash(items[3])
	}
	return a, nil
}

func decodeBytesAsUint64(b []byte) uint64 {
	var val uint64
	for _, byt := range b {
		val = val<<8 | uint64(byt)
	}
	return val
}

func nonNilBig(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}
