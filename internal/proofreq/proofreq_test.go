package proofreq

import "testing"

type dummyProofBody struct {
	Foo string
	Bar int
}

func TestEncodeDecodeRoundTripWithoutOptionals(t *testing.T) {
	proofBody, err := MarshalProof(dummyProofBody{Foo: "x", Bar: 7})
	if err != nil {
		t.Fatalf("MarshalProof: %v", err)
	}

	req := Request{
		Version:     CurrentVersion,
		ChainEngine: 1,
		Variant:     VariantAccount,
		ProofBody:   proofBody,
	}
	enc, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Version != req.Version || got.ChainEngine != req.ChainEngine || got.Variant != req.Variant {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if string(got.ProofBody) != string(proofBody) {
		t.Fatalf("proof body mismatch: got %s, want %s", got.ProofBody, proofBody)
	}
	if got.DataBody != nil || got.SyncBody != nil {
		t.Fatalf("expected absent data/sync, got %+v", got)
	}

	var decoded dummyProofBody
	if err := UnmarshalProof(got.ProofBody, &decoded); err != nil {
		t.Fatalf("UnmarshalProof: %v", err)
	}
	if decoded.Foo != "x" || decoded.Bar != 7 {
		t.Fatalf("decoded proof body = %+v", decoded)
	}
}

func TestEncodeDecodeRoundTripWithOptionals(t *testing.T) {
	req := Request{
		Version:     CurrentVersion,
		ChainEngine: 0,
		Variant:     VariantSync,
		ProofBody:   []byte("proof-blob"),
		DataBody:    []byte("data-blob"),
		SyncBody:    []byte("sync-blob"),
	}
	enc, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got.DataBody) != "data-blob" || string(got.SyncBody) != "sync-blob" {
		t.Fatalf("optional fields did not round trip: %+v", got)
	}
	if got.Variant != VariantSync {
		t.Fatalf("variant mismatch: got %s", got.Variant)
	}
}

func TestEncodeRejectsUnknownVariant(t *testing.T) {
	_, err := Encode(Request{Version: CurrentVersion, Variant: "bogus", ProofBody: []byte("x")})
	if err == nil {
		t.Fatalf("expected error for unknown variant")
	}
}

func TestCompatibleVersion(t *testing.T) {
	if !CompatibleVersion(CurrentVersion) {
		t.Fatalf("current version should be compatible with itself")
	}
	if CompatibleVersion([4]byte{9, 0, 0, 0}) {
		t.Fatalf("mismatched major version reported compatible")
	}
}
