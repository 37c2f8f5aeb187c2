package prover

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/colibri-client/colibri/internal/beacon"
	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/crypto"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/proofreq"
	"github.com/colibri-client/colibri/internal/ssz"
)

// maxForwardWalk bounds how many slots past a data block resolveByBeaconBlockID
// will scan looking for a successor whose sync_aggregate has any
// participation (empty slots carry no block and no aggregate to sign with).
const maxForwardWalk = 32

func hexBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return b, nil
}

func hexList(list []string) ([][]byte, error) {
	out := make([][]byte, len(list))
	for i, s := range list {
		b, err := hexBytes(s)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func hexQuantityToDecimal(s string) (string, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		s = "0"
	}
	n := new(big.Int)
	if _, ok := n.SetString(s, 16); !ok {
		return "", coreerr.New(coreerr.DecodeFailed, "prover: invalid hex quantity "+s)
	}
	return n.String(), nil
}

func uint64LE(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

func fixed32(b []byte) [32]byte {
	var out [32]byte
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

// executionPayloadJSON is the wire shape of an execution_payload field
// within a beacon block body, as this module's beacon API host serves it.
type executionPayloadJSON struct {
	ParentHash      string   `json:"parent_hash"`
	FeeRecipient    string   `json:"fee_recipient"`
	StateRoot       string   `json:"state_root"`
	ReceiptsRoot    string   `json:"receipts_root"`
	PrevRandao      string   `json:"prev_randao"`
	BlockNumber     string   `json:"block_number"`
	GasLimit        string   `json:"gas_limit"`
	GasUsed         string   `json:"gas_used"`
	Timestamp       string   `json:"timestamp"`
	BaseFeePerGas   string   `json:"base_fee_per_gas"`
	BlockHash       string   `json:"block_hash"`
	Transactions    []string `json:"transactions"`
	WithdrawalsRoot string   `json:"withdrawals_root"`
	BlobGasUsed     string   `json:"blob_gas_used"`
}

type syncAggregateJSON struct {
	SyncCommitteeBits      string `json:"sync_committee_bits"`
	SyncCommitteeSignature string `json:"sync_committee_signature"`
}

// beaconBodyJSON mirrors beacon.Body: the fields nobody ever proves into
// carry their hash-tree-root as a plain hex string rather than their real
// (unmodeled) container, matching BodyDescriptor's opaque-commitment
// placeholders.
type beaconBodyJSON struct {
	RandaoReveal          string               `json:"randao_reveal"`
	Eth1Data              string               `json:"eth1_data"`
	Graffiti              string               `json:"graffiti"`
	ProposerSlashingsRoot string               `json:"proposer_slashings_root"`
	AttesterSlashingsRoot string               `json:"attester_slashings_root"`
	AttestationsRoot      string               `json:"attestations_root"`
	DepositsRoot          string               `json:"deposits_root"`
	VoluntaryExitsRoot    string               `json:"voluntary_exits_root"`
	SyncAggregate         syncAggregateJSON    `json:"sync_aggregate"`
	ExecutionPayload      executionPayloadJSON `json:"execution_payload"`
}

type beaconMessageJSON struct {
	Slot          string         `json:"slot"`
	ProposerIndex string         `json:"proposer_index"`
	ParentRoot    string         `json:"parent_root"`
	StateRoot     string         `json:"state_root"`
	Body          beaconBodyJSON `json:"body"`
}

type signedBeaconBlockJSON struct {
	Message   beaconMessageJSON `json:"message"`
	Signature string            `json:"signature"`
}

type beaconBlockResponse struct {
	Data signedBeaconBlockJSON `json:"data"`
}

func decodeExecutionPayload(p executionPayloadJSON) (beacon.Payload, error) {
	blockNumber, err := parseDecimalUint64(p.BlockNumber)
	if err != nil {
		return beacon.Payload{}, err
	}
	gasLimit, err := parseDecimalUint64(p.GasLimit)
	if err != nil {
		return beacon.Payload{}, err
	}
	gasUsed, err := parseDecimalUint64(p.GasUsed)
	if err != nil {
		return beacon.Payload{}, err
	}
	timestamp, err := parseDecimalUint64(p.Timestamp)
	if err != nil {
		return beacon.Payload{}, err
	}
	blobGasUsed, err := parseDecimalUint64(p.BlobGasUsed)
	if err != nil {
		return beacon.Payload{}, err
	}
	baseFee, err := hexBytes(p.BaseFeePerGas)
	if err != nil {
		return beacon.Payload{}, err
	}
	txs := make([][]byte, len(p.Transactions))
	for i, t := range p.Transactions {
		b, err := hexBytes(t)
		if err != nil {
			return beacon.Payload{}, err
		}
		txs[i] = b
	}
	return beacon.Payload{
		ParentHash:      ethtypes.HexToHash(p.ParentHash),
		FeeRecipient:    ethtypes.HexToAddress(p.FeeRecipient),
		StateRoot:       ethtypes.HexToHash(p.StateRoot),
		ReceiptsRoot:    ethtypes.HexToHash(p.ReceiptsRoot),
		PrevRandao:      ethtypes.HexToHash(p.PrevRandao),
		BlockNumber:     blockNumber,
		GasLimit:        gasLimit,
		GasUsed:         gasUsed,
		Timestamp:       timestamp,
		BaseFeePerGas:   fixed32(baseFee),
		BlockHash:       ethtypes.HexToHash(p.BlockHash),
		WithdrawalsRoot: ethtypes.HexToHash(p.WithdrawalsRoot),
		BlobGasUsed:     blobGasUsed,
		Transactions:    txs,
	}, nil
}

// decodeBody builds a beacon.Body from its wire JSON, returning it alongside
// its own SSZ encoding and hash-tree-root (the body_root a sync aggregate
// one slot later signs, once wrapped in a Header).
func decodeBody(b beaconBodyJSON) (beacon.Body, []byte, [32]byte, error) {
	randao, err := hexBytes(b.RandaoReveal)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	eth1, err := hexBytes(b.Eth1Data)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	graffiti, err := hexBytes(b.Graffiti)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	propSlash, err := hexBytes(b.ProposerSlashingsRoot)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	attSlash, err := hexBytes(b.AttesterSlashingsRoot)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	attestations, err := hexBytes(b.AttestationsRoot)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	deposits, err := hexBytes(b.DepositsRoot)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	voluntary, err := hexBytes(b.VoluntaryExitsRoot)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	bits, err := hexBytes(b.SyncAggregate.SyncCommitteeBits)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	sig, err := hexBytes(b.SyncAggregate.SyncCommitteeSignature)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}
	payload, err := decodeExecutionPayload(b.ExecutionPayload)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, err
	}

	body := beacon.Body{
		RandaoReveal:          fixed32(randao),
		Eth1Data:              fixed32(eth1),
		Graffiti:              fixed32(graffiti),
		ProposerSlashingsRoot: fixed32(propSlash),
		AttesterSlashingsRoot: fixed32(attSlash),
		AttestationsRoot:      fixed32(attestations),
		DepositsRoot:          fixed32(deposits),
		VoluntaryExitsRoot:    fixed32(voluntary),
		SyncAggregateRoot:     crypto.Keccak256Hash(bits, sig),
		ExecutionPayload:      payload,
	}
	raw, err := beacon.EncodeBody(body)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	root, err := ssz.HashTreeRoot(beacon.BodyDescriptor, raw)
	if err != nil {
		return beacon.Body{}, nil, [32]byte{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return body, raw, root, nil
}

// resolvedBlock is one fetched and decoded beacon block.
type resolvedBlock struct {
	Header    beacon.Header
	Body      beacon.Body
	BodyRaw   []byte
	Bits      []byte
	Signature ethtypes.BLSSignature
}

func (c *Ctx) fetchBlock(blockID string) (*resolvedBlock, error) {
	raw, err := c.beaconGet("/eth/v2/beacon/blocks/" + blockID)
	if err != nil {
		return nil, err
	}
	var resp beaconBlockResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	slot, err := parseDecimalUint64(resp.Data.Message.Slot)
	if err != nil {
		return nil, err
	}
	proposerIndex, err := parseDecimalUint64(resp.Data.Message.ProposerIndex)
	if err != nil {
		return nil, err
	}
	body, bodyRaw, bodyRoot, err := decodeBody(resp.Data.Message.Body)
	if err != nil {
		return nil, err
	}
	bits, err := hexBytes(resp.Data.Message.Body.SyncAggregate.SyncCommitteeBits)
	if err != nil {
		return nil, err
	}
	sigBytes, err := hexBytes(resp.Data.Message.Body.SyncAggregate.SyncCommitteeSignature)
	if err != nil {
		return nil, err
	}
	header := beacon.Header{
		Slot:          slot,
		ProposerIndex: proposerIndex,
		ParentRoot:    ethtypes.HexToHash(resp.Data.Message.ParentRoot),
		StateRoot:     ethtypes.HexToHash(resp.Data.Message.StateRoot),
		BodyRoot:      ethtypes.BytesToHash(bodyRoot[:]),
	}
	return &resolvedBlock{
		Header:    header,
		Body:      body,
		BodyRaw:   bodyRaw,
		Bits:      bits,
		Signature: ethtypes.BytesToBLSSignature(sigBytes),
	}, nil
}

func hasParticipation(bits []byte) bool {
	for _, b := range bits {
		if b != 0 {
			return true
		}
	}
	return false
}

// resolvedPair is a data block (whose body a FieldsProof descends into)
// paired with the sync-committee signature over its header, taken from the
// nearest following non-empty, participating slot — per the Altair light
// client convention that a slot's sync_aggregate signs the previous slot's
// header, not its own.
type resolvedPair struct {
	DataHeader  beacon.Header
	DataBody    beacon.Body
	DataBodyRaw []byte
	Bits        []byte
	Signature   ethtypes.BLSSignature
	Period      uint64
}

func (c *Ctx) resolveByBeaconBlockID(blockID string) (*resolvedPair, error) {
	data, err := c.fetchBlock(blockID)
	if err != nil {
		return nil, err
	}

	var bits []byte
	var sig ethtypes.BLSSignature
	found := false
	for offset := uint64(0); offset < maxForwardWalk; offset++ {
		slot := data.Header.Slot + 1 + offset
		sign, ferr := c.fetchBlock(strconv.FormatUint(slot, 10))
		if ferr != nil {
			if errors.Is(ferr, errSuspended) {
				return nil, ferr
			}
			if coreerr.KindOf(ferr) == coreerr.FetchFailed {
				continue
			}
			return nil, ferr
		}
		if !hasParticipation(sign.Bits) {
			continue
		}
		bits, sig, found = sign.Bits, sign.Signature, true
		break
	}
	if !found {
		return nil, coreerr.New(coreerr.SyncGap, "prover: no participating successor block within forward-walk bound")
	}

	return &resolvedPair{
		DataHeader:  data.Header,
		DataBody:    data.Body,
		DataBodyRaw: data.BodyRaw,
		Bits:        bits,
		Signature:   sig,
		Period:      c.spec.Period(data.Header.Slot),
	}, nil
}

func signedHeaderFrom(pair *resolvedPair) proofreq.SignedHeader {
	return proofreq.SignedHeader{
		Header:    pair.DataHeader,
		Bits:      pair.Bits,
		Signature: pair.Signature,
		Period:    pair.Period,
	}
}

// buildFieldProof builds a single-field FieldsProof and cross-checks its
// reconstructed root against the signed header's body_root.
func (c *Ctx) buildFieldProof(pair *resolvedPair, name string, value []byte) (beacon.FieldsProof, error) {
	root, fp, err := beacon.BuildFieldsProof(pair.DataBodyRaw, map[string][]byte{name: value}, []string{name})
	if err != nil {
		return beacon.FieldsProof{}, err
	}
	if ethtypes.Hash(root) != pair.DataHeader.BodyRoot {
		return beacon.FieldsProof{}, coreerr.New(coreerr.IntegrityMismatch, "prover: reconstructed body root does not match signed header for field "+name)
	}
	return fp, nil
}

// resolveExecutionSelector maps an eth_*-style block selector (a tag, a
// hex block number, or an execution block hash) to a beacon API
// block_id. This module assumes a lock-step chain where beacon slot equals
// execution block number (documented in DESIGN.md): an execution hash
// selector is resolved to its block number via the execution layer first,
// after which number and slot selectors coincide.
func (c *Ctx) resolveExecutionSelector(selector string) (string, error) {
	switch selector {
	case "", "latest", "pending":
		return "head", nil
	case "safe", "finalized":
		return "finalized", nil
	case "earliest":
		return "0", nil
	}
	if strings.HasPrefix(selector, "0x") && len(selector) == 66 {
		raw, err := c.ethRPC("eth_getBlockByHash", selector, false)
		if err != nil {
			return "", err
		}
		var blk struct {
			Number string `json:"number"`
		}
		if err := json.Unmarshal(raw, &blk); err != nil {
			return "", coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		n, err := parseQuantity(blk.Number)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(n, 10), nil
	}
	n, err := parseQuantity(selector)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(n, 10), nil
}
