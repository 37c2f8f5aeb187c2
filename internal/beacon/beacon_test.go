package beacon

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/ssz"
)

func fieldRawUint64(v uint64) ([]byte, error) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b, nil
}

func samplePayload() Payload {
	return Payload{
		ParentHash:      ethtypes.HexToHash("0x01"),
		FeeRecipient:    ethtypes.HexToAddress("0x02"),
		StateRoot:       ethtypes.HexToHash("0x03"),
		ReceiptsRoot:    ethtypes.HexToHash("0x04"),
		PrevRandao:      ethtypes.HexToHash("0x05"),
		BlockNumber:     12345,
		GasLimit:        30_000_000,
		GasUsed:         21_000,
		Timestamp:       1_700_000_000,
		BlockHash:       ethtypes.HexToHash("0x06"),
		WithdrawalsRoot: ethtypes.HexToHash("0x07"),
		Transactions:    [][]byte{{0x01, 0x02}, {0x03}},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Slot:          100,
		ProposerIndex: 7,
		ParentRoot:    ethtypes.HexToHash("0xaa"),
		StateRoot:     ethtypes.HexToHash("0xbb"),
		BodyRoot:      ethtypes.HexToHash("0xcc"),
	}
	enc, err := EncodeHeader(h)
	if err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	got, err := DecodeHeader(enc)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
	if _, err := h.Root(); err != nil {
		t.Fatalf("Root: %v", err)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p := samplePayload()
	enc, err := EncodePayload(p)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	got, err := DecodePayload(enc)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got.BlockNumber != p.BlockNumber || got.Timestamp != p.Timestamp {
		t.Fatalf("scalar fields did not round trip: %+v", got)
	}
	if got.StateRoot != p.StateRoot || got.BlockHash != p.BlockHash {
		t.Fatalf("hash fields did not round trip: %+v", got)
	}
	if len(got.Transactions) != len(p.Transactions) || !bytes.Equal(got.Transactions[1], p.Transactions[1]) {
		t.Fatalf("transactions did not round trip: %+v", got.Transactions)
	}
}

func TestFieldsProofBuildAndVerify(t *testing.T) {
	p := samplePayload()
	body := Body{ExecutionPayload: p}
	bodyData, err := EncodeBody(body)
	if err != nil {
		t.Fatalf("EncodeBody: %v", err)
	}
	bodyRoot, err := ssz.HashTreeRoot(BodyDescriptor, bodyData)
	if err != nil {
		t.Fatalf("HashTreeRoot: %v", err)
	}

	numberBytes, _ := fieldRawUint64(p.BlockNumber)
	timestampBytes, _ := fieldRawUint64(p.Timestamp)
	names := []string{"block_number", "timestamp", TransactionFieldName(1)}
	values := map[string][]byte{
		"block_number":          numberBytes,
		"timestamp":             timestampBytes,
		TransactionFieldName(1): p.Transactions[1],
	}

	root, fp, err := BuildFieldsProof(bodyData, values, names)
	if err != nil {
		t.Fatalf("BuildFieldsProof: %v", err)
	}
	if root != bodyRoot {
		t.Fatalf("proof root = %x, want %x", root, bodyRoot)
	}
	if err := VerifyFieldsProof(bodyRoot, fp); err != nil {
		t.Fatalf("VerifyFieldsProof: %v", err)
	}

	tampered := fp
	tamperedFields := make(map[string][]byte, len(fp.Fields))
	for k, v := range fp.Fields {
		tamperedFields[k] = append([]byte(nil), v...)
	}
	tamperedFields["block_number"][0] ^= 0xFF
	tampered.Fields = tamperedFields
	if err := VerifyFieldsProof(bodyRoot, tampered); err == nil {
		t.Fatalf("VerifyFieldsProof accepted a tampered field")
	}
}
