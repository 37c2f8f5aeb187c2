// Package blsverify computes signing roots and verifies the BLS aggregate
// signature over a sync-committee attestation to a header.
//
// The actual pairing-based verification is delegated to internal/crypto's
// BLSBackend abstraction: the pure-Go backend is the default in every
// build, and a CGO build tagged "blst" adds a backend wrapping
// github.com/supranational/blst that a host installs with
// crypto.SetBLSBackend. This package only adds the consensus-layer framing
// (domain computation, signing root, sync-committee bit-to-pubkey mapping)
// on top of that interface.
package blsverify

import (
	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/crypto"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/ssz"
)

// DomainSyncCommittee is the domain type for sync-committee signatures
// (DOMAIN_SYNC_COMMITTEE in the consensus specs).
var DomainSyncCommittee = [4]byte{0x07, 0x00, 0x00, 0x00}

var forkDataDescriptor = ssz.Container(
	ssz.Field{Name: "current_version", Desc: ssz.Bytes(4)},
	ssz.Field{Name: "genesis_validators_root", Desc: ssz.Bytes(32)},
)

var signingDataDescriptor = ssz.Container(
	ssz.Field{Name: "object_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "domain", Desc: ssz.Bytes(32)},
)

// ComputeDomain derives a 32-byte signing domain from a domain type, a fork
// version, and the genesis validators root, per compute_domain in the
// consensus specs.
func ComputeDomain(domainType [4]byte, forkVersion [4]byte, genesisValidatorsRoot ethtypes.Hash) ([32]byte, error) {
	data, err := ssz.Encode(forkDataDescriptor, ssz.ContainerValue{Fields: map[string]ssz.Value{
		"current_version":         ssz.BytesValue(forkVersion[:]),
		"genesis_validators_root": ssz.BytesValue(genesisValidatorsRoot.Bytes()),
	}})
	if err != nil {
		return [32]byte{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	forkDataRoot, err := ssz.HashTreeRoot(forkDataDescriptor, data)
	if err != nil {
		return [32]byte{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	var domain [32]byte
	copy(domain[:4], domainType[:])
	copy(domain[4:], forkDataRoot[:28])
	return domain, nil
}

// ComputeSigningRoot mixes an object's hash-tree-root with a signing domain,
// per compute_signing_root in the consensus specs.
func ComputeSigningRoot(objectRoot [32]byte, domain [32]byte) ([32]byte, error) {
	data, err := ssz.Encode(signingDataDescriptor, ssz.ContainerValue{Fields: map[string]ssz.Value{
		"object_root": ssz.BytesValue(objectRoot[:]),
		"domain":      ssz.BytesValue(domain[:]),
	}})
	if err != nil {
		return [32]byte{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return ssz.HashTreeRoot(signingDataDescriptor, data)
}

// VerifySyncAggregate checks that sig is a valid BLS aggregate signature by
// the sync-committee members named by bits over signingRoot. Unlike a
// consensus client validating gossip, this does not enforce a 2/3
// participation quorum: the verifier's job is to check that the claimed
// participants actually signed, and to let the caller (internal/verifier)
// decide whether the resulting safety margin is acceptable for the
// operation being verified.
func VerifySyncAggregate(committee []ethtypes.BLSPubkey, bits ssz.Bitvector, signingRoot [32]byte, sig ethtypes.BLSSignature) error {
	if bits.Len() != len(committee) {
		return coreerr.New(coreerr.SignatureInvalid, "participation bitmask length does not match sync committee size")
	}

	var participants [][]byte
	for i, pk := range committee {
		if bits.Get(i) {
			participants = append(participants, pk.Bytes())
		}
	}
	if len(participants) == 0 {
		return coreerr.New(coreerr.SignatureInvalid, "sync aggregate has no participating signers")
	}

	backend := crypto.DefaultBLSBackend()
	if !backend.FastAggregateVerify(participants, signingRoot[:], sig.Bytes()) {
		return coreerr.New(coreerr.SignatureInvalid, "sync committee aggregate signature does not verify")
	}
	return nil
}
