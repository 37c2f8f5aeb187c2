package trie

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/colibri-client/colibri/internal/crypto"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/ethereum/go-ethereum/rlp"
)

func keccakForTest(b []byte) []byte { return crypto.Keccak256(b) }

func encodeAccountForTest(a Account) ([]byte, error) {
	return rlp.EncodeToBytes(struct {
		Nonce       uint64
		Balance     *big.Int
		StorageRoot ethtypes.Hash
		CodeHash    ethtypes.Hash
	}{a.Nonce, a.Balance, a.StorageRoot, a.CodeHash})
}

func TestEmptyTrieHash(t *testing.T) {
	tr := New()
	if !tr.Empty() {
		t.Fatalf("new trie should be empty")
	}
	if tr.Hash() != EmptyRoot() {
		t.Fatalf("empty trie hash mismatch")
	}
}

func TestSetGetDelete(t *testing.T) {
	tr := New()
	if err := tr.Set([]byte{0x01}, []byte("first")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := tr.Set([]byte{0x02}, []byte("second")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := tr.Set([]byte{0x01, 0x02}, []byte("nested")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, err := tr.Get([]byte{0x01})
	if err != nil || string(v) != "first" {
		t.Fatalf("Get(0x01) = %s, %v", v, err)
	}
	v, err = tr.Get([]byte{0x01, 0x02})
	if err != nil || string(v) != "nested" {
		t.Fatalf("Get(0x0102) = %s, %v", v, err)
	}

	if err := tr.Delete([]byte{0x02}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := tr.Get([]byte{0x02}); err != ErrNotFound {
		t.Fatalf("Get after Delete: got %v, want ErrNotFound", err)
	}
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
}

func TestHashDeterministicAndSensitiveToValue(t *testing.T) {
	build := func(v []byte) ethtypes.Hash {
		tr := New()
		tr.Set([]byte{0x01}, []byte("a"))
		tr.Set([]byte{0x02}, v)
		return tr.Hash()
	}
	h1 := build([]byte("b"))
	h2 := build([]byte("b"))
	h3 := build([]byte("c"))
	if h1 != h2 {
		t.Fatalf("hash not deterministic")
	}
	if h1 == h3 {
		t.Fatalf("changing a value did not change the root hash")
	}
}

func TestProveVerifyInclusion(t *testing.T) {
	tr := New()
	for i := byte(0); i < 20; i++ {
		tr.Set([]byte{i}, []byte{i, i})
	}
	root := tr.Hash()

	proof, err := tr.Prove([]byte{10})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	val, err := VerifyProof(root, []byte{10}, proof)
	if err != nil {
		t.Fatalf("VerifyProof: %v", err)
	}
	if !bytes.Equal(val, []byte{10, 10}) {
		t.Fatalf("VerifyProof value = %x, want 0a0a", val)
	}
}

func TestProveVerifyRejectsTamperedProof(t *testing.T) {
	tr := New()
	for i := byte(0); i < 20; i++ {
		tr.Set([]byte{i}, []byte{i, i})
	}
	root := tr.Hash()

	proof, err := tr.Prove([]byte{10})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	tampered := make([][]byte, len(proof))
	copy(tampered, proof)
	mutated := make([]byte, len(tampered[len(tampered)-1]))
	copy(mutated, tampered[len(tampered)-1])
	mutated[len(mutated)-1] ^= 0xFF
	tampered[len(tampered)-1] = mutated

	if _, err := VerifyProof(root, []byte{10}, tampered); err == nil {
		t.Fatalf("VerifyProof accepted a tampered node")
	}
}

func TestProveAbsenceAndVerify(t *testing.T) {
	tr := New()
	tr.Set([]byte{0x01}, []byte("a"))
	tr.Set([]byte{0x03}, []byte("c"))
	root := tr.Hash()

	proof, err := tr.ProveAbsence([]byte{0x02})
	if err != nil {
		t.Fatalf("ProveAbsence: %v", err)
	}
	val, err := VerifyProof(root, []byte{0x02}, proof)
	if err != nil {
		t.Fatalf("VerifyProof(absent): %v", err)
	}
	if val != nil {
		t.Fatalf("VerifyProof(absent) returned a value: %x", val)
	}
}

func TestProofGeneratorRoundTrip(t *testing.T) {
	tr := New()
	for i := byte(0); i < 8; i++ {
		tr.Set([]byte{i}, []byte{'v', i})
	}
	pg := NewProofGenerator(tr)

	inc, err := pg.GenerateProof([]byte{3})
	if err != nil {
		t.Fatalf("GenerateProof: %v", err)
	}
	if err := VerifyInclusionProof(inc); err != nil {
		t.Fatalf("VerifyInclusionProof: %v", err)
	}

	exc, err := pg.GenerateExclusionProof([]byte{200})
	if err != nil {
		t.Fatalf("GenerateExclusionProof: %v", err)
	}
	if err := VerifyExclusionProof(exc); err != nil {
		t.Fatalf("VerifyExclusionProof: %v", err)
	}
}

func TestGenerateMultiProof(t *testing.T) {
	tr := New()
	for i := byte(0); i < 8; i++ {
		tr.Set([]byte{i}, []byte{'v', i})
	}
	pg := NewProofGenerator(tr)

	mp, err := pg.GenerateMultiProof([][]byte{{1}, {2}, {200}})
	if err != nil {
		t.Fatalf("GenerateMultiProof: %v", err)
	}
	if err := VerifyMultiProofResult(mp); err != nil {
		t.Fatalf("VerifyMultiProofResult: %v", err)
	}
	if !mp.Items[0].Exists || !mp.Items[1].Exists || mp.Items[2].Exists {
		t.Fatalf("unexpected existence flags: %+v", mp.Items)
	}
}

func TestVerifyMPTProofWrapsCoreVerification(t *testing.T) {
	tr := New()
	tr.Set([]byte{0x05}, []byte("five"))
	root := tr.Hash()

	proof, err := tr.Prove([]byte{0x05})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	result, err := VerifyMPTProof(root, []byte{0x05}, proof)
	if err != nil {
		t.Fatalf("VerifyMPTProof: %v", err)
	}
	if !result.Exists || string(result.Value) != "five" {
		t.Fatalf("VerifyMPTProof result = %+v", result)
	}
}

func TestVerifyMultiProofAcrossItems(t *testing.T) {
	tr := New()
	for i := byte(0); i < 5; i++ {
		tr.Set([]byte{i}, []byte{'x', i})
	}
	root := tr.Hash()

	items := make([]MultiProofItem, 0, 5)
	for i := byte(0); i < 5; i++ {
		proof, err := tr.Prove([]byte{i})
		if err != nil {
			t.Fatalf("Prove(%d): %v", i, err)
		}
		items = append(items, MultiProofItem{Key: []byte{i}, Value: []byte{'x', i}, Proof: proof})
	}

	result, err := VerifyMultiProof(root, items)
	if err != nil {
		t.Fatalf("VerifyMultiProof: %v", err)
	}
	if len(result.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(result.Results))
	}
}

func TestVerifyAccountProof(t *testing.T) {
	tr := New()
	addr := ethtypes.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec")
	account := Account{
		Nonce:       3,
		Balance:     big.NewInt(1_000_000),
		StorageRoot: EmptyRoot(),
		CodeHash:    EmptyCodeHash,
	}
	enc, err := encodeAccountForTest(account)
	if err != nil {
		t.Fatalf("encodeAccountForTest: %v", err)
	}

	addrHash := keccakForTest(addr[:])
	if err := tr.Set(addrHash, enc); err != nil {
		t.Fatalf("Set: %v", err)
	}
	root := tr.Hash()

	proof, err := tr.Prove(addrHash)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	ok, err := VerifyAccountProof(root, addr, account, proof)
	if err != nil {
		t.Fatalf("VerifyAccountProof: %v", err)
	}
	if !ok {
		t.Fatalf("VerifyAccountProof rejected a valid account proof")
	}

	account.Nonce = 4
	if ok, err := VerifyAccountProof(root, addr, account, proof); ok || err == nil {
		t.Fatalf("VerifyAccountProof accepted a mismatched nonce")
	}
}

func TestVerifyAccountProofAbsence(t *testing.T) {
	tr := New()
	tr.Set([]byte{0x01}, []byte("occupied"))
	root := tr.Hash()

	addr := ethtypes.HexToAddress("0x0000000000000000000000000000000000dead")
	addrHash := keccakForTest(addr[:])
	proof, err := tr.ProveAbsence(addrHash)
	if err != nil {
		t.Fatalf("ProveAbsence: %v", err)
	}

	ok, err := VerifyAccountProof(root, addr, Account{Balance: big.NewInt(0), StorageRoot: EmptyRoot(), CodeHash: EmptyCodeHash}, proof)
	if err != nil {
		t.Fatalf("VerifyAccountProof(absent): %v", err)
	}
	if ok {
		t.Fatalf("VerifyAccountProof reported existence for an absent account")
	}
}
