package verifier

import (
	"encoding/json"
	"math/big"
	"testing"

	gethrlp "github.com/ethereum/go-ethereum/rlp"

	"github.com/colibri-client/colibri/internal/beacon"
	"github.com/colibri-client/colibri/internal/blsverify"
	"github.com/colibri-client/colibri/internal/chainspec"
	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/crypto"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/proofreq"
	"github.com/colibri-client/colibri/internal/ssz"
	"github.com/colibri-client/colibri/internal/synccommittee"
	"github.com/colibri-client/colibri/internal/trie"
)

func testSpec(t *testing.T) *chainspec.Spec {
	t.Helper()
	spec, ok := chainspec.MainnetRegistry().Get(chainspec.Mainnet)
	if !ok {
		t.Fatal("mainnet spec not registered")
	}
	return spec
}

// memStorage is a minimal in-memory synccommittee.StoragePlugin fixture.
type memStorage struct{ m map[string][]byte }

func newMemStorage() *memStorage { return &memStorage{m: map[string][]byte{}} }

func (s *memStorage) Get(key string) ([]byte, bool, error) {
	v, ok := s.m[key]
	return v, ok, nil
}
func (s *memStorage) Set(key string, value []byte) error { s.m[key] = value; return nil }
func (s *memStorage) Del(key string) error                { delete(s.m, key); return nil }
func (s *memStorage) MaxSyncStates() uint32                { return 16 }

// testCommittee builds beacon.SyncCommitteeSize BLS keypairs from small
// deterministic secrets, fast but real BLS12-381 arithmetic (the same
// pure-Go backend internal/blsverify checks against).
type testCommittee struct {
	secrets []*big.Int
	sc      beacon.SyncCommittee
}

func newTestCommittee() testCommittee {
	var tc testCommittee
	for i := 0; i < beacon.SyncCommitteeSize; i++ {
		secret := big.NewInt(int64(i) + 1)
		tc.secrets = append(tc.secrets, secret)
		pub := crypto.BLSPubkeyFromSecret(secret)
		tc.sc.Pubkeys[i] = ethtypes.BLSPubkey(pub)
	}
	return tc
}

// signAll signs signingRoot with every member (full participation) and
// returns the aggregate signature plus an all-ones bits bitmask.
func (tc testCommittee) signAll(signingRoot [32]byte) (bits []byte, sig ethtypes.BLSSignature) {
	var sigs [][96]byte
	for _, secret := range tc.secrets {
		sigs = append(sigs, crypto.BLSSign(secret, signingRoot[:]))
	}
	agg := crypto.AggregateSignatures(sigs)
	n := (beacon.SyncCommitteeSize + 7) / 8
	bits = make([]byte, n)
	for i := 0; i < n; i++ {
		bits[i] = 0xFF
	}
	return bits, ethtypes.BLSSignature(agg)
}

func encodeAccountLeaf(a trie.Account) ([]byte, error) {
	return gethrlp.EncodeToBytes(struct {
		Nonce       uint64
		Balance     *big.Int
		StorageRoot ethtypes.Hash
		CodeHash    ethtypes.Hash
	}{a.Nonce, a.Balance, a.StorageRoot, a.CodeHash})
}

// buildSignedAccountProof assembles a complete, internally-consistent
// account proof (SignedHeader + state-root fields proof + Patricia account
// proof) for an externally-owned account with the given balance, signed by
// tc at slot, returning the wire-encoded proofreq.Request bytes and the
// SyncCommittee that must be known to verify it.
func buildSignedAccountProof(t *testing.T, spec *chainspec.Spec, tc testCommittee, slot uint64, addr ethtypes.Address, nonce uint64, balance int64) []byte {
	t.Helper()

	account := trie.Account{Nonce: nonce, Balance: big.NewInt(balance), StorageRoot: trie.EmptyRoot(), CodeHash: trie.EmptyCodeHash}
	leaf, err := encodeAccountLeaf(account)
	if err != nil {
		t.Fatalf("encodeAccountLeaf: %v", err)
	}
	addrHash := crypto.Keccak256(addr[:])
	tr := trie.New()
	if err := tr.Set(addrHash, leaf); err != nil {
		t.Fatalf("trie.Set: %v", err)
	}
	stateRoot := tr.Hash()
	accountProof, err := tr.Prove(addrHash)
	if err != nil {
		t.Fatalf("trie.Prove: %v", err)
	}

	payload := beacon.Payload{StateRoot: stateRoot}
	body := beacon.Body{ExecutionPayload: payload}
	bodyData, err := beacon.EncodeBody(body)
	if err != nil {
		t.Fatalf("EncodeBody: %v", err)
	}
	bodyRoot, err := ssz.HashTreeRoot(beacon.BodyDescriptor, bodyData)
	if err != nil {
		t.Fatalf("HashTreeRoot(body): %v", err)
	}
	stateRootProof, fp, err := beacon.BuildFieldsProof(bodyData, map[string][]byte{"state_root": stateRoot.Bytes()}, []string{"state_root"})
	if err != nil {
		t.Fatalf("BuildFieldsProof: %v", err)
	}
	if stateRootProof != bodyRoot {
		t.Fatalf("fields proof root mismatch")
	}

	header := beacon.Header{Slot: slot, BodyRoot: ethtypes.Hash(bodyRoot)}
	headerRoot, err := header.Root()
	if err != nil {
		t.Fatalf("header.Root: %v", err)
	}

	epoch := spec.Epoch(slot)
	forkVersion, err := spec.ForkVersionForEpoch(epoch)
	if err != nil {
		t.Fatalf("ForkVersionForEpoch: %v", err)
	}
	domain, err := blsverify.ComputeDomain(spec.DomainSyncCommittee, forkVersion, spec.GenesisValidatorsRoot)
	if err != nil {
		t.Fatalf("ComputeDomain: %v", err)
	}
	signingRoot, err := blsverify.ComputeSigningRoot(headerRoot, domain)
	if err != nil {
		t.Fatalf("ComputeSigningRoot: %v", err)
	}
	bits, sig := tc.signAll(signingRoot)

	signed := proofreq.SignedHeader{Header: header, Bits: bits, Signature: sig, Period: spec.Period(slot)}
	accountBody := proofreq.AccountProofBody{
		Signed:         signed,
		StateRootProof: fp,
		Address:        addr,
		Nonce:          nonce,
		Balance:        account.Balance.String(),
		StorageRoot:    account.StorageRoot,
		CodeHash:       account.CodeHash,
		AccountProof:   accountProof,
	}
	proofBody, err := proofreq.MarshalProof(accountBody)
	if err != nil {
		t.Fatalf("MarshalProof: %v", err)
	}
	req := proofreq.Request{Version: proofreq.CurrentVersion, Variant: proofreq.VariantAccount, ProofBody: proofBody}
	wire, err := proofreq.Encode(req)
	if err != nil {
		t.Fatalf("proofreq.Encode: %v", err)
	}
	return wire
}

func TestExecuteAccountProofEndToEnd(t *testing.T) {
	spec := testSpec(t)
	tc := newTestCommittee()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	wire := buildSignedAccountProof(t, spec, tc, 100, addr, 3, 1_000_000)

	storage := newMemStorage()
	period := spec.Period(100)
	raw, err := beacon.EncodeSyncCommittee(tc.sc)
	if err != nil {
		t.Fatalf("EncodeSyncCommittee: %v", err)
	}
	if err := storage.Set(committeeKey(uint64(spec.ID), period), raw); err != nil {
		t.Fatalf("storage.Set: %v", err)
	}

	ctx := NewCtx(spec, wire, "eth_getBalance", nil, synccommittee.Empty(), storage, TrustedHint{})
	res := ctx.Execute()
	if res.Status != StatusDone {
		t.Fatalf("status = %v, want Done (err=%v)", res.Status, res.Err)
	}

	var out map[string]any
	if err := json.Unmarshal(res.Output, &out); err != nil {
		t.Fatalf("Unmarshal output: %v", err)
	}
	if out["exists"] != true {
		t.Errorf("exists = %v, want true", out["exists"])
	}
	if out["balance"] != "0xf4240" {
		t.Errorf("balance = %v, want 0xf4240", out["balance"])
	}
}

func TestExecuteAccountProofTamperedBalanceClaim(t *testing.T) {
	spec := testSpec(t)
	tc := newTestCommittee()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	wire := buildSignedAccountProof(t, spec, tc, 100, addr, 3, 1_000_000)

	req, err := proofreq.Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var body proofreq.AccountProofBody
	if err := proofreq.UnmarshalProof(req.ProofBody, &body); err != nil {
		t.Fatalf("UnmarshalProof: %v", err)
	}
	body.Balance = "999999999"
	req.ProofBody, err = proofreq.MarshalProof(body)
	if err != nil {
		t.Fatalf("MarshalProof: %v", err)
	}
	tampered, err := proofreq.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	storage := newMemStorage()
	period := spec.Period(100)
	raw, _ := beacon.EncodeSyncCommittee(tc.sc)
	storage.Set(committeeKey(uint64(spec.ID), period), raw)

	ctx := NewCtx(spec, tampered, "eth_getBalance", nil, synccommittee.Empty(), storage, TrustedHint{})
	res := ctx.Execute()
	if res.Status != StatusError {
		t.Fatalf("status = %v, want Error for a tampered balance claim", res.Status)
	}
}

func TestExecuteAccountProofUnknownCommitteeIsSyncGap(t *testing.T) {
	spec := testSpec(t)
	tc := newTestCommittee()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	wire := buildSignedAccountProof(t, spec, tc, 100, addr, 3, 1_000_000)

	ctx := NewCtx(spec, wire, "eth_getBalance", nil, synccommittee.Empty(), newMemStorage(), TrustedHint{})
	res := ctx.Execute()
	if res.Status != StatusError {
		t.Fatalf("status = %v, want Error with no known committee", res.Status)
	}
	if kind := coreerr.KindOf(res.Err); kind != coreerr.SyncGap {
		t.Fatalf("error kind = %v, want SyncGap (err=%v)", kind, res.Err)
	}
}

func TestExecuteAccountProofTrustedHeaderBypassesCommittee(t *testing.T) {
	spec := testSpec(t)
	tc := newTestCommittee()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	wire := buildSignedAccountProof(t, spec, tc, 100, addr, 3, 1_000_000)

	req, err := proofreq.Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var body proofreq.AccountProofBody
	if err := proofreq.UnmarshalProof(req.ProofBody, &body); err != nil {
		t.Fatalf("UnmarshalProof: %v", err)
	}
	headerRoot, err := body.Signed.Header.Root()
	if err != nil {
		t.Fatalf("Header.Root: %v", err)
	}

	// No committee ever registered in storage; the trusted header hint must
	// still let verification succeed by skipping the BLS aggregate check.
	ctx := NewCtx(spec, wire, "eth_getBalance", nil, synccommittee.Empty(), newMemStorage(), TrustedHint{TrustedHeaderRoots: []ethtypes.Hash{ethtypes.Hash(headerRoot)}})
	res := ctx.Execute()
	if res.Status != StatusDone {
		t.Fatalf("status = %v, want Done via trusted-header fast path (err=%v)", res.Status, res.Err)
	}
}

func TestExecuteRejectsMismatchedVariant(t *testing.T) {
	spec := testSpec(t)
	tc := newTestCommittee()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	wire := buildSignedAccountProof(t, spec, tc, 100, addr, 3, 1_000_000)

	ctx := NewCtx(spec, wire, "eth_getLogs", nil, synccommittee.Empty(), newMemStorage(), TrustedHint{})
	res := ctx.Execute()
	if res.Status != StatusError {
		t.Fatalf("status = %v, want Error for a method/variant mismatch", res.Status)
	}
}

func TestDestroyRejectsFurtherExecute(t *testing.T) {
	spec := testSpec(t)
	tc := newTestCommittee()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	wire := buildSignedAccountProof(t, spec, tc, 100, addr, 3, 1_000_000)

	ctx := NewCtx(spec, wire, "eth_getBalance", nil, synccommittee.Empty(), newMemStorage(), TrustedHint{})
	ctx.Destroy()
	res := ctx.Execute()
	if res.Status != StatusError {
		t.Fatalf("status = %v, want Error after Destroy", res.Status)
	}
}

func TestMethodSupportClassification(t *testing.T) {
	cases := map[string]Flag{
		"eth_chainId":         SupportLocal,
		"net_version":         SupportLocal,
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

func TestSetResponseAndSetErrorAreInert(t *testing.T) {
	spec := testSpec(t)
	tc := newTestCommittee()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	wire := buildSignedAccountProof(t, spec, tc, 100, addr, 3, 1_000_000)

	ctx := NewCtx(spec, wire, "eth_getBalance", nil, synccommittee.Empty(), newMemStorage(), TrustedHint{})
	var id [32]byte
	if err := ctx.SetResponse(id, nil, 0); err == nil {
		t.Error("SetResponse on a verifier context should report the id as unknown")
	}
	if err := ctx.SetError(id, "boom", 0, false); err == nil {
		t.Error("SetError on a verifier context should report the id as unknown")
	}
}
