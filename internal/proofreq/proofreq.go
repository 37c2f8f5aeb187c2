// Package proofreq implements the wire envelope used for the proof
// request: an SSZ container framing a version tag, a chain-engine selector,
// and three unions (data/proof/sync_data) around the method-family-specific
// payloads internal/prover builds and internal/verifier consumes.
//
// The outer framing (version, chain_engine, and which union variant is
// present) is real SSZ, exercised the same way the rest of the module's
// wire formats are. The payload each variant carries is, by contrast, a
// JSON blob rather than its own nested SSZ container: the nine
// method families each have a materially different internal shape (a
// Patricia proof here, an SSZ multi-proof there, a list of signed updates
// for sync), and giving every one of them a full hand-written SSZ
// container would not exercise anything internal/ssz doesn't already cover
// via internal/beacon's field proofs — it would only be ceremony. JSON
// keeps the method-specific structs plain Go, readable in a debugger, and
// easy to extend.
package proofreq

import (
	"encoding/json"

	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/ssz"
)

// CurrentVersion is this build's proof-request version tag. Verifiers
// reject a request whose major byte (Version[0]) differs from their own.
var CurrentVersion = [4]byte{1, 0, 0, 0}

// MaxBlobSize bounds any single union payload; large enough for a block's
// worth of receipts/transactions proofs without being unbounded.
const MaxBlobSize = 1 << 24

// Variant names the proof union's method family.
type Variant string

const (
	VariantAccount     Variant = "account"
	VariantTransaction Variant = "transaction"
	VariantReceipt     Variant = "receipt"
	VariantLogs        Variant = "logs"
	VariantBlock       Variant = "block"
	VariantBlockNumber Variant = "block_number"
	VariantCall        Variant = "call"
	VariantSync        Variant = "sync"
	VariantWitness     Variant = "witness"
)

var allVariants = []Variant{
	VariantAccount, VariantTransaction, VariantReceipt, VariantLogs,
	VariantBlock, VariantBlockNumber, VariantCall, VariantSync, VariantWitness,
}

var blobDescriptor = ssz.List(ssz.Uint8, MaxBlobSize)

// byteListValue packs raw bytes into the per-element form a List(Uint8,
// limit) descriptor's generic sequence encoder expects; its serialized
// form is identical to b itself.
func byteListValue(b []byte) ssz.ListValue {
	lv := make(ssz.ListValue, len(b))
	for i, x := range b {
		lv[i] = ssz.Uint8Value(x)
	}
	return lv
}

// An optional blob union has a single declared variant ("present"); the
// implicit selector-0 None arm (AllowNone: true) covers the absent case,
// so no separate "none" variant is declared.
var dataDescriptor = ssz.Union(true, ssz.Variant{Name: "present", Desc: blobDescriptor})
var syncDataDescriptor = ssz.Union(true, ssz.Variant{Name: "present", Desc: blobDescriptor})

func proofVariants() []ssz.Variant {
	vs := make([]ssz.Variant, len(allVariants))
	for i, name := range allVariants {
		vs[i] = ssz.Variant{Name: string(name), Desc: blobDescriptor}
	}
	return vs
}

var proofDescriptor = ssz.Union(false, proofVariants()...)

// Descriptor is the top-level SSZ container: {version, chain_engine, data,
// proof, sync_data}.
var Descriptor = ssz.Container(
	ssz.Field{Name: "version", Desc: ssz.Bytes(4)},
	ssz.Field{Name: "chain_engine", Desc: ssz.Uint8},
	ssz.Field{Name: "data", Desc: dataDescriptor},
	ssz.Field{Name: "proof", Desc: proofDescriptor},
	ssz.Field{Name: "sync_data", Desc: syncDataDescriptor},
)

// Request is the decoded form of a proof request.
type Request struct {
	Version     [4]byte
	ChainEngine uint8
	Variant     Variant
	ProofBody   []byte // JSON-encoded, variant-specific
	DataBody    []byte // JSON-encoded claimed result, nil if absent
	SyncBody    []byte // JSON-encoded sync.Bundle, nil if absent
}

// MarshalProof JSON-encodes v into a Request's ProofBody field.
func MarshalProof(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InputInvalid, err)
	}
	return b, nil
}

// UnmarshalProof JSON-decodes a Request's ProofBody field into dst.
func UnmarshalProof(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return nil
}

func optionalUnionValue(present bool, body []byte) ssz.UnionValue {
	if !present {
		return ssz.UnionValue{Selector: 0}
	}
	return ssz.UnionValue{Selector: 1, Inner: byteListValue(body)}
}

// Encode serializes r against Descriptor.
func Encode(r Request) ([]byte, error) {
	selector, ok := variantSelector(r.Variant)
	if !ok {
		return nil, coreerr.New(coreerr.InputInvalid, "proofreq: unknown proof variant "+string(r.Variant))
	}
	cv := ssz.ContainerValue{Fields: map[string]ssz.Value{
		"version":      ssz.BytesValue(r.Version[:]),
		"chain_engine": ssz.Uint8Value(r.ChainEngine),
		"data":         optionalUnionValue(r.DataBody != nil, r.DataBody),
		"proof":        ssz.UnionValue{Selector: uint8(selector), Inner: byteListValue(r.ProofBody)},
		"sync_data":    optionalUnionValue(r.SyncBody != nil, r.SyncBody),
	}}
	data, err := ssz.Encode(Descriptor, cv)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return data, nil
}

// Decode parses data (produced by Encode) back into a Request.
func Decode(data []byte) (Request, error) {
	view, err := ssz.Decode(Descriptor, data)
	if err != nil {
		return Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}

	versionField, err := view.Field("version")
	if err != nil {
		return Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	engineField, err := view.Field("chain_engine")
	if err != nil {
		return Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	engine, err := engineField.Uint8()
	if err != nil {
		return Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}

	proofField, err := view.Field("proof")
	if err != nil {
		return Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	selector, inner, err := proofField.Union()
	if err != nil {
		return Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	if int(selector) < 1 || int(selector) > len(allVariants) {
		return Request{}, coreerr.New(coreerr.DecodeFailed, "proofreq: unknown proof selector")
	}
	proofBody := inner.Bytes()

	dataBody, err := decodeOptional(view, "data")
	if err != nil {
		return Request{}, err
	}
	syncBody, err := decodeOptional(view, "sync_data")
	if err != nil {
		return Request{}, err
	}

	var version [4]byte
	copy(version[:], versionField.Bytes())

	return Request{
		Version:     version,
		ChainEngine: engine,
		Variant:     allVariants[selector-1],
		ProofBody:   proofBody,
		DataBody:    dataBody,
		SyncBody:    syncBody,
	}, nil
}

func decodeOptional(view *ssz.View, name string) ([]byte, error) {
	field, err := view.Field(name)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	selector, inner, err := field.Union()
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	if selector == 0 {
		return nil, nil
	}
	return inner.Bytes(), nil
}

func variantSelector(v Variant) (int, bool) {
	for i, name := range allVariants {
		if name == v {
			return i + 1, true
		}
	}
	return 0, false
}

// CompatibleVersion reports whether peerVersion's major tag matches ours,
// verifiers reject versions whose major tag differs.
func CompatibleVersion(peerVersion [4]byte) bool {
	return peerVersion[0] == CurrentVersion[0]
}
