// Package beacon holds the SSZ container shapes shared by the prover and
// verifier: the beacon block header that a sync aggregate signs over, and
// the execution-payload-bearing block body the prover's per-method Merkle
// chains descend into. Fields neither side ever proves
// (attestations, slashings, deposits, the sync aggregate's own wire
// encoding) are modeled as opaque 32-byte commitments rather than their
// full real container shape — their hash-tree-root is supplied directly as
// the field's content, which keeps the merkleization of the fields that
// matter (state root, receipts root, block number, transactions...)
// byte-identical to the real tree at no cost beyond honesty about the
// simplification.
package beacon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/ssz"
)

// MaxTransactionsPerPayload and MaxBytesPerTransaction bound the
// transactions list the same way the consensus specs do, so that a
// transaction's position in the list carries a stable generalized index.
// The real consensus-spec constants (2^20 transactions of up to 2^30 bytes)
// assume a sparse, zero-hash-cached merkleizer; this module's Merkleize
// materializes a full layer per call (ssz/merkle.go), so these are scaled
// down to limits no real execution block ever approaches while keeping the
// same list-of-byte-lists shape.
const (
	MaxTransactionsPerPayload = 1 << 12
	MaxBytesPerTransaction    = 1 << 17
)

var transactionDescriptor = ssz.List(ssz.Uint8, MaxBytesPerTransaction)
var transactionsDescriptor = ssz.List(transactionDescriptor, MaxTransactionsPerPayload)

// PayloadDescriptor is the execution payload container reached through a
// beacon block body. Only the fields a proof ever names as provable
// targets carry their real SSZ type; everything else is a same-size
// opaque placeholder.
var PayloadDescriptor = ssz.Container(
	ssz.Field{Name: "parent_hash", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "fee_recipient", Desc: ssz.Bytes(20)},
	ssz.Field{Name: "state_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "receipts_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "prev_randao", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "block_number", Desc: ssz.Uint64},
	ssz.Field{Name: "gas_limit", Desc: ssz.Uint64},
	ssz.Field{Name: "gas_used", Desc: ssz.Uint64},
	ssz.Field{Name: "timestamp", Desc: ssz.Uint64},
	ssz.Field{Name: "base_fee_per_gas", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "block_hash", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "withdrawals_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "blob_gas_used", Desc: ssz.Uint64},
	ssz.Field{Name: "transactions", Desc: transactionsDescriptor},
)

// BodyDescriptor is the beacon block body. execution_payload is the only
// field a Merkle chain ever descends past; the rest are opaque commitments.
var BodyDescriptor = ssz.Container(
	ssz.Field{Name: "randao_reveal", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "eth1_data", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "graffiti", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "proposer_slashings", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "attester_slashings", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "attestations", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "deposits", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "voluntary_exits", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "sync_aggregate", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "execution_payload", Desc: PayloadDescriptor},
)

// HeaderDescriptor is the beacon block header: the five-field container a
// sync aggregate's signing root attests to.
var HeaderDescriptor = ssz.Container(
	ssz.Field{Name: "slot", Desc: ssz.Uint64},
	ssz.Field{Name: "proposer_index", Desc: ssz.Uint64},
	ssz.Field{Name: "parent_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "state_root", Desc: ssz.Bytes(32)},
	ssz.Field{Name: "body_root", Desc: ssz.Bytes(32)},
)

// Header is the decoded form of HeaderDescriptor.
type Header struct {
	Slot          uint64
	ProposerIndex uint64
	ParentRoot    ethtypes.Hash
	StateRoot     ethtypes.Hash
	BodyRoot      ethtypes.Hash
}

// EncodeHeader serializes h against HeaderDescriptor.
func EncodeHeader(h Header) ([]byte, error) {
	return ssz.Encode(HeaderDescriptor, ssz.ContainerValue{Fields: map[string]ssz.Value{
		"slot":           ssz.Uint64Value(h.Slot),
		"proposer_index": ssz.Uint64Value(h.ProposerIndex),
		"parent_root":    ssz.BytesValue(h.ParentRoot.Bytes()),
		"state_root":     ssz.BytesValue(h.StateRoot.Bytes()),
		"body_root":      ssz.BytesValue(h.BodyRoot.Bytes()),
	}})
}

// DecodeHeader parses data (produced by EncodeHeader) back into a Header.
func DecodeHeader(data []byte) (Header, error) {
	view, err := ssz.Decode(HeaderDescriptor, data)
	if err != nil {
		return Header{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	slot, err := fieldUint64(view, "slot")
	if err != nil {
		return Header{}, err
	}
	idx, err := fieldUint64(view, "proposer_index")
	if err != nil {
		return Header{}, err
	}
	parent, err := fieldHash(view, "parent_root")
	if err != nil {
		return Header{}, err
	}
	state, err := fieldHash(view, "state_root")
	if err != nil {
		return Header{}, err
	}
	body, err := fieldHash(view, "body_root")
	if err != nil {
		return Header{}, err
	}
	return Header{Slot: slot, ProposerIndex: idx, ParentRoot: parent, StateRoot: state, BodyRoot: body}, nil
}

// Root computes the header's hash-tree-root, the leaf a sync aggregate
// signs over (once mixed with the DOMAIN_SYNC_COMMITTEE signing domain).
func (h Header) Root() ([32]byte, error) {
	data, err := EncodeHeader(h)
	if err != nil {
		return [32]byte{}, err
	}
	return ssz.HashTreeRoot(HeaderDescriptor, data)
}

func fieldUint64(v *ssz.View, name string) (uint64, error) {
	f, err := v.Field(name)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	n, err := f.Uint64()
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return n, nil
}

func fieldHash(v *ssz.View, name string) (ethtypes.Hash, error) {
	f, err := v.Field(name)
	if err != nil {
		return ethtypes.Hash{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return ethtypes.BytesToHash(f.Bytes()), nil
}

// Payload is the subset of execution payload fields the core ever reads
// directly (as opposed to reaching via a Merkle proof).
type Payload struct {
	ParentHash      ethtypes.Hash
	FeeRecipient    ethtypes.Address
	StateRoot       ethtypes.Hash
	ReceiptsRoot    ethtypes.Hash
	PrevRandao      ethtypes.Hash
	BlockNumber     uint64
	GasLimit        uint64
	GasUsed         uint64
	Timestamp       uint64
	BaseFeePerGas   [32]byte
	BlockHash       ethtypes.Hash
	WithdrawalsRoot ethtypes.Hash
	BlobGasUsed     uint64
	Transactions    [][]byte
}

// byteListValue packs raw bytes into the per-element Uint8Value form a
// List(Uint8, limit) descriptor's generic sequence encoder expects. Its
// serialized form is identical to b itself (a byte list's SSZ encoding is
// just its bytes), but Encode always walks a Value tree, so the element
// values still need to exist.
func byteListValue(b []byte) ssz.ListValue {
	lv := make(ssz.ListValue, len(b))
	for i, x := range b {
		lv[i] = ssz.Uint8Value(x)
	}
	return lv
}

func payloadContainerValue(p Payload) ssz.ContainerValue {
	txs := make(ssz.ListValue, len(p.Transactions))
	for i, tx := range p.Transactions {
		txs[i] = byteListValue(tx)
	}
	return ssz.ContainerValue{Fields: map[string]ssz.Value{
		"parent_hash":      ssz.BytesValue(p.ParentHash.Bytes()),
		"fee_recipient":    ssz.BytesValue(p.FeeRecipient.Bytes()),
		"state_root":       ssz.BytesValue(p.StateRoot.Bytes()),
		"receipts_root":    ssz.BytesValue(p.ReceiptsRoot.Bytes()),
		"prev_randao":      ssz.BytesValue(p.PrevRandao.Bytes()),
		"block_number":     ssz.Uint64Value(p.BlockNumber),
		"gas_limit":        ssz.Uint64Value(p.GasLimit),
		"gas_used":         ssz.Uint64Value(p.GasUsed),
		"timestamp":        ssz.Uint64Value(p.Timestamp),
		"base_fee_per_gas": ssz.BytesValue(p.BaseFeePerGas[:]),
		"block_hash":       ssz.BytesValue(p.BlockHash.Bytes()),
		"withdrawals_root": ssz.BytesValue(p.WithdrawalsRoot.Bytes()),
		"blob_gas_used":    ssz.Uint64Value(p.BlobGasUsed),
		"transactions":     txs,
	}}
}

// EncodePayload serializes p against PayloadDescriptor.
func EncodePayload(p Payload) ([]byte, error) {
	return ssz.Encode(PayloadDescriptor, payloadContainerValue(p))
}

// DecodePayload parses data (produced by EncodePayload) back into a Payload.
func DecodePayload(data []byte) (Payload, error) {
	view, err := ssz.Decode(PayloadDescriptor, data)
	if err != nil {
		return Payload{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	get := func(name string) (*ssz.View, error) { return view.Field(name) }

	parentHash, err := get("parent_hash")
	if err != nil {
		return Payload{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	feeRecipient, err := get("fee_recipient")
	if err != nil {
		return Payload{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	stateRoot, err := fieldHash(view, "state_root")
	if err != nil {
		return Payload{}, err
	}
	receiptsRoot, err := fieldHash(view, "receipts_root")
	if err != nil {
		return Payload{}, err
	}
	prevRandao, err := fieldHash(view, "prev_randao")
	if err != nil {
		return Payload{}, err
	}
	blockNumber, err := fieldUint64(view, "block_number")
	if err != nil {
		return Payload{}, err
	}
	gasLimit, err := fieldUint64(view, "gas_limit")
	if err != nil {
		return Payload{}, err
	}
	gasUsed, err := fieldUint64(view, "gas_used")
	if err != nil {
		return Payload{}, err
	}
	timestamp, err := fieldUint64(view, "timestamp")
	if err != nil {
		return Payload{}, err
	}
	baseFee, err := get("base_fee_per_gas")
	if err != nil {
		return Payload{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	blockHash, err := fieldHash(view, "block_hash")
	if err != nil {
		return Payload{}, err
	}
	withdrawalsRoot, err := fieldHash(view, "withdrawals_root")
	if err != nil {
		return Payload{}, err
	}
	blobGasUsed, err := fieldUint64(view, "blob_gas_used")
	if err != nil {
		return Payload{}, err
	}
	txsField, err := get("transactions")
	if err != nil {
		return Payload{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	n, err := txsField.Len()
	if err != nil {
		return Payload{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	txs := make([][]byte, n)
	for i := 0; i < n; i++ {
		elem, err := txsField.At(i)
		if err != nil {
			return Payload{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		txs[i] = append([]byte(nil), elem.Bytes()...)
	}

	var baseFeeArr [32]byte
	copy(baseFeeArr[:], baseFee.Bytes())
	var feeRecipientAddr ethtypes.Address
	copy(feeRecipientAddr[:], feeRecipient.Bytes())

	return Payload{
		ParentHash:      ethtypes.BytesToHash(parentHash.Bytes()),
		FeeRecipient:    feeRecipientAddr,
		StateRoot:       stateRoot,
		ReceiptsRoot:    receiptsRoot,
		PrevRandao:      prevRandao,
		BlockNumber:     blockNumber,
		GasLimit:        gasLimit,
		GasUsed:         gasUsed,
		Timestamp:       timestamp,
		BaseFeePerGas:   baseFeeArr,
		BlockHash:       blockHash,
		WithdrawalsRoot: withdrawalsRoot,
		BlobGasUsed:     blobGasUsed,
		Transactions:    txs,
	}, nil
}

// Body wraps the opaque commitments plus the payload, ready for encoding.
type Body struct {
	RandaoReveal           [32]byte
	Eth1Data               [32]byte
	Graffiti               [32]byte
	ProposerSlashingsRoot  [32]byte
	AttesterSlashingsRoot  [32]byte
	AttestationsRoot       [32]byte
	DepositsRoot           [32]byte
	VoluntaryExitsRoot     [32]byte
	SyncAggregateRoot      [32]byte
	ExecutionPayload       Payload
}

// EncodeBody serializes b against BodyDescriptor.
func EncodeBody(b Body) ([]byte, error) {
	return ssz.Encode(BodyDescriptor, ssz.ContainerValue{Fields: map[string]ssz.Value{
		"randao_reveal":      ssz.BytesValue(b.RandaoReveal[:]),
		"eth1_data":          ssz.BytesValue(b.Eth1Data[:]),
		"graffiti":           ssz.BytesValue(b.Graffiti[:]),
		"proposer_slashings": ssz.BytesValue(b.ProposerSlashingsRoot[:]),
		"attester_slashings": ssz.BytesValue(b.AttesterSlashingsRoot[:]),
		"attestations":       ssz.BytesValue(b.AttestationsRoot[:]),
		"deposits":           ssz.BytesValue(b.DepositsRoot[:]),
		"voluntary_exits":    ssz.BytesValue(b.VoluntaryExitsRoot[:]),
		"sync_aggregate":     ssz.BytesValue(b.SyncAggregateRoot[:]),
		"execution_payload":  payloadContainerValue(b.ExecutionPayload),
	}})
}

// PayloadFieldGindex returns the generalized index of one of the proven
// execution-payload fields, rooted at the block body.
func PayloadFieldGindex(field string) (uint64, error) {
	gi, err := ssz.Gindex(BodyDescriptor, "execution_payload", field)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return gi, nil
}

// TransactionGindex returns the generalized index of transaction i within
// the body's transactions list.
func TransactionGindex(i int) (uint64, error) {
	gi, err := ssz.Gindex(BodyDescriptor, "execution_payload", "transactions", i)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return gi, nil
}

// TransactionFieldName formats the synthetic field name FieldGindex and
// FieldDescriptor use to address transaction i within a FieldsProof.
func TransactionFieldName(i int) string { return fmt.Sprintf("transactions:%d", i) }

// PayloadFieldName is the synthetic field name used by the "block" proof
// variant, which proves the whole execution_payload container as a single
// leaf rather than one of its fields.
const PayloadFieldName = "execution_payload"

// PayloadGindex returns the generalized index of the whole execution_payload
// field, rooted at the block body.
func PayloadGindex() (uint64, error) {
	gi, err := ssz.Gindex(BodyDescriptor, "execution_payload")
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return gi, nil
}

// FieldGindex resolves a plain payload field name, PayloadFieldName, or a
// TransactionFieldName formatted name, to its generalized index rooted at
// the block body.
func FieldGindex(name string) (uint64, error) {
	if name == PayloadFieldName {
		return PayloadGindex()
	}
	if i, ok := parseTxFieldName(name); ok {
		return TransactionGindex(i)
	}
	return PayloadFieldGindex(name)
}

// FieldDescriptor resolves name (as FieldGindex does) to the SSZ descriptor
// a verifier must use to recompute that field's leaf hash from raw bytes.
func FieldDescriptor(name string) (ssz.Descriptor, error) {
	if name == PayloadFieldName {
		return PayloadDescriptor, nil
	}
	if _, ok := parseTxFieldName(name); ok {
		return transactionDescriptor, nil
	}
	idx := PayloadDescriptor.FieldIndex(name)
	if idx < 0 {
		return nil, coreerr.New(coreerr.DecodeFailed, "beacon: unknown payload field "+name)
	}
	return PayloadDescriptor.Fields[idx].Desc, nil
}

func parseTxFieldName(name string) (int, bool) {
	const prefix = "transactions:"
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	i, err := strconv.Atoi(name[len(prefix):])
	if err != nil {
		return 0, false
	}
	return i, true
}

// FieldsProof is a Merkle multi-proof reaching a named set of execution
// payload fields (plain field names, or TransactionFieldName(i) for a
// specific transaction) from the block body root. This is the shape every
// prover method family's dispatch table uses to bind its
// claimed result to the signed header's body_root.
type FieldsProof struct {
	Fields        map[string][]byte
	HelperIndices []uint64
	Branch        [][32]byte
}

// BuildFieldsProof constructs a FieldsProof over the named fields of a
// fully-encoded block body. It returns the body's own root alongside the
// proof so the caller can cross-check it against the claimed body_root.
func BuildFieldsProof(bodyData []byte, fieldValues map[string][]byte, names []string) (root [32]byte, fp FieldsProof, err error) {
	gis := make([]uint64, len(names))
	for i, name := range names {
		gi, gerr := FieldGindex(name)
		if gerr != nil {
			return [32]byte{}, FieldsProof{}, gerr
		}
		gis[i] = gi
	}
	root, helperIndices, branch, perr := ssz.ProveMulti(BodyDescriptor, bodyData, gis)
	if perr != nil {
		return [32]byte{}, FieldsProof{}, coreerr.Wrap(coreerr.ProofInvalid, perr)
	}
	fields := make(map[string][]byte, len(names))
	for _, name := range names {
		fields[name] = append([]byte(nil), fieldValues[name]...)
	}
	return root, FieldsProof{Fields: fields, HelperIndices: helperIndices, Branch: branch}, nil
}

// VerifyFieldsProof checks fp against a claimed body root, re-deriving each
// field's leaf hash from its raw bytes via the field's own SSZ descriptor.
func VerifyFieldsProof(bodyRoot [32]byte, fp FieldsProof) error {
	if len(fp.Fields) == 0 {
		return coreerr.New(coreerr.ProofInvalid, "beacon: fields proof has no leaves")
	}
	leaves := make(map[uint64][32]byte, len(fp.Fields))
	for name, raw := range fp.Fields {
		gi, err := FieldGindex(name)
		if err != nil {
			return err
		}
		desc, err := FieldDescriptor(name)
		if err != nil {
			return err
		}
		leaf, err := ssz.HashTreeRoot(desc, raw)
		if err != nil {
			return coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		leaves[gi] = leaf
	}
	if !ssz.VerifyMulti(bodyRoot, leaves, fp.HelperIndices, fp.Branch) {
		return coreerr.New(coreerr.ProofInvalid, "beacon: fields proof does not verify against body root")
	}
	return nil
}

// Field returns the raw bytes the prover claimed for name, or false if the
// proof did not include it.
func (fp FieldsProof) Field(name string) ([]byte, bool) {
	b, ok := fp.Fields[name]
	return b, ok
}
