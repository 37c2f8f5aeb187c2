package beacon

import (
	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/ssz"
)

// SyncCommitteeSize scales down the real 512-member sync committee the same
// way MaxTransactionsPerPayload scales down the real transaction limit:
// Merkleize materializes a full layer per call, and a correctness exercise
// needs the committee's Merkle shape (a fixed vector of pubkeys plus an
// aggregate pubkey), not its mainnet size.
const SyncCommitteeSize = 32

var syncCommitteePubkeysDescriptor = ssz.Vector(ssz.Bytes(ethtypes.BLSPubkeyLength), SyncCommitteeSize)

// SyncCommitteeDescriptor is the committee container a LightClientUpdate's
// next_sync_committee field (or the bootstrap's current_sync_committee
// field) commits to.
var SyncCommitteeDescriptor = ssz.Container(
	ssz.Field{Name: "pubkeys", Desc: syncCommitteePubkeysDescriptor},
	ssz.Field{Name: "aggregate_pubkey", Desc: ssz.Bytes(ethtypes.BLSPubkeyLength)},
)

// SyncCommittee is the decoded form of SyncCommitteeDescriptor.
type SyncCommittee struct {
	Pubkeys         [SyncCommitteeSize]ethtypes.BLSPubkey
	AggregatePubkey ethtypes.BLSPubkey
}

// EncodeSyncCommittee serializes c against SyncCommitteeDescriptor.
func EncodeSyncCommittee(c SyncCommittee) ([]byte, error) {
	pubkeys := make(ssz.VectorValue, SyncCommitteeSize)
	for i, pk := range c.Pubkeys {
		pubkeys[i] = ssz.BytesValue(pk[:])
	}
	return ssz.Encode(SyncCommitteeDescriptor, ssz.ContainerValue{Fields: map[string]ssz.Value{
		"pubkeys":          pubkeys,
		"aggregate_pubkey": ssz.BytesValue(c.AggregatePubkey[:]),
	}})
}

// DecodeSyncCommittee parses data (produced by EncodeSyncCommittee) back
// into a SyncCommittee.
func DecodeSyncCommittee(data []byte) (SyncCommittee, error) {
	view, err := ssz.Decode(SyncCommitteeDescriptor, data)
	if err != nil {
		return SyncCommittee{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	pubkeysField, err := view.Field("pubkeys")
	if err != nil {
		return SyncCommittee{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	var out SyncCommittee
	for i := 0; i < SyncCommitteeSize; i++ {
		elem, err := pubkeysField.At(i)
		if err != nil {
			return SyncCommittee{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		copy(out.Pubkeys[i][:], elem.Bytes())
	}
	aggField, err := view.Field("aggregate_pubkey")
	if err != nil {
		return SyncCommittee{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	copy(out.AggregatePubkey[:], aggField.Bytes())
	return out, nil
}

// Root computes the committee's hash-tree-root, the leaf a light client
// update's Merkle branch proves into the beacon state.
func (c SyncCommittee) Root() ([32]byte, error) {
	data, err := EncodeSyncCommittee(c)
	if err != nil {
		return [32]byte{}, err
	}
	return ssz.HashTreeRoot(SyncCommitteeDescriptor, data)
}

// HistoricalSummaryDescriptor mirrors the real beacon state's per-entry
// commitment: a root for the period's block-roots vector and one for its
// state-roots vector. Only the former is ever proved into by this module.
var HistoricalSummaryDescriptor = ssz.Container(
	ssz.Field{Name: "block_summary_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "state_summary_root", Desc: ssz.Bytes(32)},
)

// HistoricalSummariesLimit scales down the real HISTORICAL_ROOTS_LIMIT
// (2^24) for the same materialization-cost reason as the transaction
// limits above; 2^16 entries comfortably covers any test chain's history.
const HistoricalSummariesLimit = 1 << 16

var historicalSummariesDescriptor = ssz.List(HistoricalSummaryDescriptor, HistoricalSummariesLimit)

// BlockRootsPerSummary is the number of slots one historical summary's
// block-roots vector spans (SLOTS_PER_HISTORICAL_ROOT in the real spec;
// kept at its real size since 8192 32-byte roots is cheap to materialize).
const BlockRootsPerSummary = 8192

// BlockRootsVectorDescriptor is the per-period vector of block roots a
// historical summary's block_summary_root commits to.
var BlockRootsVectorDescriptor = ssz.Vector(ssz.Bytes(32), BlockRootsPerSummary)

// StateDescriptor is the beacon state container a light-client update's
// Merkle branches reach into. Only the fields this module's prover/
// verifier ever proves against (the two sync committees and the
// historical-summaries accumulator) carry their real shape; the rest of
// the real ~30-field beacon state is grouped into same-size opaque
// commitments, following the same placeholder technique BodyDescriptor
// uses for fields nobody proves into.
var StateDescriptor = ssz.Container(
	ssz.Field{Name: "genesis_validators_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "slot", Desc: ssz.Uint64},
	ssz.Field{Name: "fork_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "latest_block_header_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "historical_roots_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "eth1_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "validators_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "balances_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "randao_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "slashings_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "participation_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "justification_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "inactivity_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "current_sync_committee", Desc: SyncCommitteeDescriptor},
	ssz.Field{Name: "next_sync_committee", Desc: SyncCommitteeDescriptor},
	ssz.Field{Name: "latest_execution_payload_header_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "withdrawal_commitment", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "historical_summaries", Desc: historicalSummariesDescriptor},
)

// StateFieldGindex returns the generalized index of a plain (non-list)
// StateDescriptor field, rooted at the beacon state.
func StateFieldGindex(field string) (uint64, error) {
	gi, err := ssz.Gindex(StateDescriptor, field)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return gi, nil
}

// HistoricalSummaryFieldGindex returns the generalized index of one field
// of historical_summaries[i], rooted at the beacon state.
func HistoricalSummaryFieldGindex(i int, field string) (uint64, error) {
	gi, err := ssz.Gindex(StateDescriptor, "historical_summaries", i, field)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return gi, nil
}

// ProveBlockRootInSummary builds a single-leaf Merkle proof that slot
// offset's root within a period's reconstructed block-roots vector equals
// blockRoot, rooted at that vector's own Merkleization (i.e. rooted at the
// matching historical_summaries[i].block_summary_root, not at the state).
func ProveBlockRootInSummary(blockRoots [BlockRootsPerSummary][32]byte, offset int) (root [32]byte, branch [][32]byte, err error) {
	vv := make(ssz.VectorValue, BlockRootsPerSummary)
	for i, r := range blockRoots {
		vv[i] = ssz.BytesValue(r[:])
	}
	data, err := ssz.Encode(BlockRootsVectorDescriptor, vv)
	if err != nil {
		return [32]byte{}, nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	gi, err := ssz.Gindex(BlockRootsVectorDescriptor, offset)
	if err != nil {
		return [32]byte{}, nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	root, branch, perr := ssz.ProveSingle(BlockRootsVectorDescriptor, data, gi)
	if perr != nil {
		return [32]byte{}, nil, coreerr.Wrap(coreerr.ProofInvalid, perr)
	}
	return root, branch, nil
}

// VerifyBlockRootInSummary checks that blockRoot sits at offset within a
// block-roots vector whose own root is summaryRoot.
func VerifyBlockRootInSummary(summaryRoot [32]byte, offset int, blockRoot [32]byte, branch [][32]byte) (bool, error) {
	gi, err := ssz.Gindex(BlockRootsVectorDescriptor, offset)
	if err != nil {
		return false, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return ssz.VerifySingle(summaryRoot, blockRoot, gi, branch), nil
}
