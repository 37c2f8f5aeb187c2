package chainspec

import "testing"

func TestEpochAndPeriodDerivation(t *testing.T) {
	r := MainnetRegistry()
	spec, ok := r.Get(Mainnet)
	if !ok {
		t.Fatalf("mainnet spec not registered")
	}
	// 32 slots/epoch, 256 epochs/period.
	if got := spec.Epoch(32 * 5); got != 5 {
		t.Fatalf("Epoch(160) = %d, want 5", got)
	}
	if got := spec.Period(32 * 256 * 3); got != 3 {
		t.Fatalf("Period = %d, want 3", got)
	}
}

func TestForkAtResolvesLatestActivated(t *testing.T) {
	r := MainnetRegistry()
	spec, _ := r.Get(Mainnet)

	fork, ok := spec.ForkAt(300000)
	if !ok || fork != ForkDeneb {
		t.Fatalf("ForkAt(300000) = %v, %v, want ForkDeneb", fork, ok)
	}

	fork, ok = spec.ForkAt(0)
	if ok {
		t.Fatalf("ForkAt(0) = %v, %v, want no fork (epoch 0 precedes bellatrix)", fork, ok)
	}
}

func TestForkVersionForEpoch(t *testing.T) {
	r := MainnetRegistry()
	spec, _ := r.Get(Mainnet)

	v, err := spec.ForkVersionForEpoch(400000)
	if err != nil {
		t.Fatalf("ForkVersionForEpoch: %v", err)
	}
	if v != spec.ForkVersion[ForkElectra] {
		t.Fatalf("got %x, want electra version %x", v, spec.ForkVersion[ForkElectra])
	}
}

func TestSupportsDeneb(t *testing.T) {
	r := MainnetRegistry()
	spec, _ := r.Get(Mainnet)

	if spec.SupportsDeneb(spec.ForkEpoch[ForkDeneb] - 1) {
		t.Fatalf("pre-Deneb epoch incorrectly reported as supporting Deneb")
	}
	if !spec.SupportsDeneb(spec.ForkEpoch[ForkDeneb]) {
		t.Fatalf("Deneb activation epoch should support Deneb")
	}
}

func TestRegistryUnknownChain(t *testing.T) {
	r := MainnetRegistry()
	if _, ok := r.Get(ID(999)); ok {
		t.Fatalf("expected unknown chain id to miss")
	}
}

func TestSepoliaRegistryDistinctFromMainnet(t *testing.T) {
	m, _ := MainnetRegistry().Get(Mainnet)
	s, _ := SepoliaRegistry().Get(Sepolia)
	if m.GenesisValidatorsRoot == s.GenesisValidatorsRoot {
		t.Fatalf("mainnet and sepolia must not share a genesis validators root")
	}
	if m.HistoricalSummaryGindexBase == s.HistoricalSummaryGindexBase {
		t.Fatalf("per-chain gindex base calibration should differ between mainnet and sepolia")
	}
}
