package prover

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/colibri-client/colibri/internal/asyncreq"
	"github.com/colibri-client/colibri/internal/chainspec"
	"github.com/colibri-client/colibri/internal/proofreq"
	"github.com/colibri-client/colibri/internal/synccommittee"
)

func testSpec(t *testing.T) *chainspec.Spec {
	t.Helper()
	spec, ok := chainspec.MainnetRegistry().Get(chainspec.Mainnet)
	if !ok {
		t.Fatal("mainnet spec not registered")
	}
	return spec
}

func hexN(n int, fill byte) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return "0x" + hex.EncodeToString(b)
}

// sampleBlockJSON builds a beaconBlockResponse payload for slot with a
// syntactically valid execution payload and, when participating is true, a
// nonzero sync_committee_bits so it can serve as the forward-walk's signer.
func sampleBlockJSON(slot uint64, blockNumber uint64, participating bool) []byte {
	bits := "0x00"
	if participating {
		bits = "0x" + strings.Repeat("ff", 4)
	}
	payload := executionPayloadJSON{
		ParentHash:      hexN(32, 0x01),
		FeeRecipient:    hexN(20, 0x02),
		StateRoot:       hexN(32, 0x03),
		ReceiptsRoot:    hexN(32, 0x04),
		PrevRandao:      hexN(32, 0x05),
		BlockNumber:     strconv.FormatUint(blockNumber, 10),
		GasLimit:        "30000000",
		GasUsed:         "21000",
		Timestamp:       "1700000000",
		BaseFeePerGas:   hexN(32, 0x06),
		BlockHash:       hexN(32, 0x07),
		Transactions:    []string{"0x" + strings.Repeat("ab", 10)},
		WithdrawalsRoot: hexN(32, 0x08),
		BlobGasUsed:     "0",
	}
	body := beaconBodyJSON{
		RandaoReveal:          hexN(32, 0x10),
		Eth1Data:              hexN(32, 0x11),
		Graffiti:              hexN(32, 0x12),
		ProposerSlashingsRoot: hexN(32, 0x13),
		AttesterSlashingsRoot: hexN(32, 0x14),
		AttestationsRoot:      hexN(32, 0x15),
		DepositsRoot:          hexN(32, 0x16),
		VoluntaryExitsRoot:    hexN(32, 0x17),
		SyncAggregate: syncAggregateJSON{
			SyncCommitteeBits:      bits,
			SyncCommitteeSignature: hexN(96, 0x18),
		},
		ExecutionPayload: payload,
	}
	resp := beaconBlockResponse{
		Data: signedBeaconBlockJSON{
			Message: beaconMessageJSON{
				Slot:          strconv.FormatUint(slot, 10),
				ProposerIndex: "0",
				ParentRoot:    hexN(32, 0x20),
				StateRoot:     hexN(32, 0x21),
				Body:          body,
			},
			Signature: hexN(96, 0x22),
		},
	}
	raw, _ := json.Marshal(resp)
	return raw
}

// findPending returns the outstanding request in pending whose URL contains
// substr, failing the test if there isn't exactly one.
func findPending(t *testing.T, pending []asyncreq.Request, substr string) asyncreq.Request {
	t.Helper()
	var matches []asyncreq.Request
	for _, r := range pending {
		if strings.Contains(r.URL, substr) {
			matches = append(matches, r)
		}
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one pending request matching %q, got %d (pending=%v)", substr, len(matches), pending)
	}
	return matches[0]
}

func TestMethodSupportClassification(t *testing.T) {
	cases := map[string]Flag{
		"eth_chainId":        SupportLocal,
		"net_version":        SupportLocal,
		"eth_getBalance":      SupportProof,
		"eth_getLogs":         SupportProof,
		"c4_getSyncData":      SupportProof,
		"some_unknown_method": SupportUnsupported,
	}
	for method, want := range cases {
		if got := MethodSupport(method); got != want {
			t.Errorf("MethodSupport(%q) = %v, want %v", method, got, want)
		}
	}
}

func TestExecuteBlockNumberEndToEnd(t *testing.T) {
	ctx := NewCtx(testSpec(t), "eth_blockNumber", nil, synccommittee.Empty(), nil)

	res := ctx.Execute()
	if res.Status != StatusPending {
		t.Fatalf("first Execute() status = %v, want Pending", res.Status)
	}
	headReq := findPending(t, res.Pending, "/eth/v2/beacon/blocks/head")

	if err := ctx.SetResponse(headReq.ID, sampleBlockJSON(100, 100, false), 1); err != nil {
		t.Fatalf("SetResponse(head): %v", err)
	}

	res = ctx.Execute()
	if res.Status != StatusPending {
		t.Fatalf("second Execute() status = %v, want Pending (forward walk)", res.Status)
	}
	signerReq := findPending(t, res.Pending, "/eth/v2/beacon/blocks/101")
	if err := ctx.SetResponse(signerReq.ID, sampleBlockJSON(101, 101, true), 1); err != nil {
		t.Fatalf("SetResponse(101): %v", err)
	}

	res = ctx.Execute()
	if res.Status != StatusDone {
		t.Fatalf("third Execute() status = %v, want Done (err=%v)", res.Status, res.Err)
	}
	if res.Proof.Variant != proofreq.VariantBlockNumber {
		t.Fatalf("Variant = %v, want %v", res.Proof.Variant, proofreq.VariantBlockNumber)
	}
	if res.Proof.Version != proofreq.CurrentVersion {
		t.Fatalf("Version = %v, want CurrentVersion", res.Proof.Version)
	}

	var body proofreq.BlockNumberProofBody
	if err := proofreq.UnmarshalProof(res.Proof.ProofBody, &body); err != nil {
		t.Fatalf("UnmarshalProof: %v", err)
	}
	if body.Signed.Header.Slot != 100 {
		t.Errorf("signed header slot = %d, want 100", body.Signed.Header.Slot)
	}
	if _, ok := body.FieldsProof.Field("block_number"); !ok {
		t.Error("expected a block_number leaf in the fields proof")
	}

	if _, err := ctx.Proof(res.Proof); err != nil {
		t.Fatalf("Proof(): %v", err)
	}
}

func TestExecuteResumesWithoutRefetchingResolved(t *testing.T) {
	ctx := NewCtx(testSpec(t), "eth_blockNumber", nil, synccommittee.Empty(), nil)

	res := ctx.Execute()
	headReq := findPending(t, res.Pending, "/eth/v2/beacon/blocks/head")
	if err := ctx.SetResponse(headReq.ID, sampleBlockJSON(5, 5, false), 1); err != nil {
		t.Fatal(err)
	}

	// Re-entering before the forward-walk slot resolves should not re-issue
	// the already-resolved head request.
	res = ctx.Execute()
	if res.Status != StatusPending {
		t.Fatalf("status = %v, want Pending", res.Status)
	}
	for _, r := range res.Pending {
		if strings.Contains(r.URL, "/blocks/head") {
			t.Fatalf("head request reappeared as pending after being resolved")
		}
	}
}

func TestSetErrorTerminalFailureSurfacesViaExecuteError(t *testing.T) {
	ctx := NewCtx(testSpec(t), "eth_blockNumber", nil, synccommittee.Empty(), nil)

	res := ctx.Execute()
	headReq := findPending(t, res.Pending, "/eth/v2/beacon/blocks/head")

	// Non-retryable failure: Fail records it terminally; SetError must not
	// surface that as an operational error.
	if err := ctx.SetError(headReq.ID, "boom", 1, false); err != nil {
		t.Fatalf("SetError(non-retryable) = %v, want nil", err)
	}

	res = ctx.Execute()
	if res.Status != StatusError {
		t.Fatalf("status = %v, want Error", res.Status)
	}
}

func TestSetErrorUnknownRequestIsOperationalError(t *testing.T) {
	ctx := NewCtx(testSpec(t), "eth_blockNumber", nil, synccommittee.Empty(), nil)
	var bogusID [32]byte
	bogusID[0] = 0xff

	if err := ctx.SetError(bogusID, "boom", 1, false); err == nil {
		t.Fatal("expected an error for an unknown request id")
	}
}

func TestDestroyRejectsFurtherExecute(t *testing.T) {
	ctx := NewCtx(testSpec(t), "eth_blockNumber", nil, synccommittee.Empty(), nil)
	ctx.Destroy()

	res := ctx.Execute()
	if res.Status != StatusError {
		t.Fatalf("status = %v, want Error after Destroy", res.Status)
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"0x0", 0},
		{"0x10", 16},
		{"0X1F", 31},
		{"", 0},
	}
	for _, tt := range cases {
		got, err := parseQuantity(tt.in)
		if err != nil {
			t.Fatalf("parseQuantity(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseQuantity(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if _, err := parseQuantity("not-hex"); err == nil {
		t.Error("expected an error for a non-hex quantity")
	}
}

func TestParseDecimalUint64(t *testing.T) {
	got, err := parseDecimalUint64("12345")
	if err != nil {
		t.Fatalf("parseDecimalUint64: %v", err)
	}
	if got != 12345 {
		t.Errorf("parseDecimalUint64 = %d, want 12345", got)
	}
	if _, err := parseDecimalUint64("0xff"); err == nil {
		t.Error("expected an error for a hex-prefixed string")
	}
}

func TestHexQuantityToDecimal(t *testing.T) {
	got, err := hexQuantityToDecimal("0x3e8")
	if err != nil {
		t.Fatalf("hexQuantityToDecimal: %v", err)
	}
	if got != "1000" {
		t.Errorf("hexQuantityToDecimal(0x3e8) = %q, want %q", got, "1000")
	}
}

func TestUint64LERoundTrip(t *testing.T) {
	b := uint64LE(0x0102030405060708)
	if len(b) != 8 {
		t.Fatalf("uint64LE length = %d, want 8", len(b))
	}
	if b[0] != 0x08 || b[7] != 0x01 {
		t.Errorf("uint64LE(%x) = %x, not little-endian", uint64(0x0102030405060708), b)
	}
}
