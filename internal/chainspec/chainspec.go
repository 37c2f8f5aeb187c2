// Package chainspec holds the per-chain constants a Prover/Verifier context
// needs: fork schedule, slot/epoch/period bit-shifts, genesis parameters,
// domain type constants, and the historical-summaries gindex base used by
// cross-period proofs.
package chainspec

import (
	"fmt"
	"sync"

	"github.com/colibri-client/colibri/internal/ethtypes"
)

// ID identifies a chain the core knows how to prove/verify against.
type ID uint64

const (
	Mainnet ID = 1
	Sepolia ID = 11155111
	Holesky ID = 17000
)

// Fork names an activation boundary in the consensus fork schedule.
type Fork uint8

const (
	ForkBellatrix Fork = iota
	ForkCapella
	ForkDeneb
	ForkElectra
)

func (f Fork) String() string {
	switch f {
	case ForkBellatrix:
		return "bellatrix"
	case ForkCapella:
		return "capella"
	case ForkDeneb:
		return "deneb"
	case ForkElectra:
		return "electra"
	default:
		return fmt.Sprintf("fork(%d)", f)
	}
}

// Spec is the fixed set of chain parameters a core context needs. All
// fields are immutable after construction by a Registry.
type Spec struct {
	ID   ID
	Name string

	// SlotsPerEpochBits / EpochsPerPeriodBits encode the standard 32 and 256
	// constants as bit-shifts: epoch = slot >> bits,
	// period = slot >> (slots bits + epoch bits).
	SlotsPerEpochBits   uint
	EpochsPerPeriodBits uint

	GenesisValidatorsRoot ethtypes.Hash
	GenesisForkVersion    [4]byte

	// ForkEpoch maps each known fork to its activation epoch. A fork absent
	// from this map is treated as not yet scheduled on this chain.
	ForkEpoch map[Fork]uint64

	// ForkVersion maps each known fork to its 4-byte version tag, used by
	// ComputeDomain once the attested slot's epoch is resolved to a fork.
	ForkVersion map[Fork][4]byte

	// DomainSyncCommittee is DOMAIN_SYNC_COMMITTEE for this chain (constant
	// across forks in every network this module supports).
	DomainSyncCommittee [4]byte

	// HistoricalSummaryGindexBase is the sync-committee period offset
	// subtracted from a block's period to get its index within
	// historical_summaries (758 periods on mainnet). It is not the
	// generalized index of the historical_summaries field itself, and it
	// is calibrated per chain rather than hardcoded.
	HistoricalSummaryGindexBase uint64
}

// Epoch derives the epoch containing slot.
func (s *Spec) Epoch(slot uint64) uint64 { return slot >> s.SlotsPerEpochBits }

// Period derives the sync-committee period containing slot.
func (s *Spec) Period(slot uint64) uint64 {
	return slot >> (s.SlotsPerEpochBits + s.EpochsPerPeriodBits)
}

// ForkAt returns the latest fork whose activation epoch is <= epoch.
func (s *Spec) ForkAt(epoch uint64) (Fork, bool) {
	best, found := Fork(0), false
	bestEpoch := uint64(0)
	for f, act := range s.ForkEpoch {
		if act <= epoch && (!found || act >= bestEpoch) {
			best, bestEpoch, found = f, act, true
		}
	}
	return best, found
}

// ForkVersionForEpoch resolves the fork-version tag active at epoch, for use
// in compute_domain (fork_version_for_epoch).
func (s *Spec) ForkVersionForEpoch(epoch uint64) ([4]byte, error) {
	fork, ok := s.ForkAt(epoch)
	if !ok {
		return [4]byte{}, fmt.Errorf("chainspec: no fork scheduled at or before epoch %d", epoch)
	}
	v, ok := s.ForkVersion[fork]
	if !ok {
		return [4]byte{}, fmt.Errorf("chainspec: no fork version recorded for %s", fork)
	}
	return v, nil
}

// SupportsDeneb reports whether epoch falls on or after this chain's Deneb
// activation. No prover or verifier path calls it: blocks from before
// Deneb are not rejected by this module.
func (s *Spec) SupportsDeneb(epoch uint64) bool {
	act, ok := s.ForkEpoch[ForkDeneb]
	return ok && epoch >= act
}

// Registry looks up a Spec by chain id.
type Registry struct {
	mu    sync.RWMutex
	specs map[ID]*Spec
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[ID]*Spec)}
}

// Register adds or replaces the Spec for spec.ID.
func (r *Registry) Register(spec *Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.ID] = spec
}

// Get returns the Spec for id, or false if unknown.
func (r *Registry) Get(id ID) (*Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[id]
	return s, ok
}

var domainSyncCommittee = [4]byte{0x07, 0x00, 0x00, 0x00}

// MainnetRegistry returns a Registry seeded with the Ethereum mainnet spec.
func MainnetRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Spec{
		ID:                    Mainnet,
		Name:                  "mainnet",
		SlotsPerEpochBits:     5, // 32 slots/epoch
		EpochsPerPeriodBits:   8, // 256 epochs/period
		GenesisValidatorsRoot: ethtypes.HexToHash("0x4b363db94e286120d76eb905340fdd4e54bfe9f06bf33ff6cf5ad27f511bfe95"),
		GenesisForkVersion:    [4]byte{0x00, 0x00, 0x00, 0x00},
		ForkEpoch: map[Fork]uint64{
			ForkBellatrix: 144896,
			ForkCapella:   194048,
			ForkDeneb:     269568,
			ForkElectra:   364032,
		},
		ForkVersion: map[Fork][4]byte{
			ForkBellatrix: {0x02, 0x00, 0x00, 0x00},
			ForkCapella:   {0x03, 0x00, 0x00, 0x00},
			ForkDeneb:     {0x04, 0x00, 0x00, 0x00},
			ForkElectra:   {0x05, 0x00, 0x00, 0x00},
		},
		DomainSyncCommittee:         domainSyncCommittee,
		HistoricalSummaryGindexBase: 758, // periods since Capella genesis
	})
	return r
}

// SepoliaRegistry returns a Registry seeded with the Sepolia testnet spec.
func SepoliaRegistry() *Registry {
	r := NewRegistry()
	r.Register(&Spec{
		ID:                    Sepolia,
		Name:                  "sepolia",
		SlotsPerEpochBits:     5,
		EpochsPerPeriodBits:   8,
		GenesisValidatorsRoot: ethtypes.HexToHash("0xd8ea171f3c94aea21ebc42a1ed61052acf3f9209c00e4efbaaddac09ed9b8078"),
		GenesisForkVersion:    [4]byte{0x90, 0x00, 0x00, 0x69},
		ForkEpoch: map[Fork]uint64{
			ForkBellatrix: 100,
			ForkCapella:   56832,
			ForkDeneb:     132608,
			ForkElectra:   222464,
		},
		ForkVersion: map[Fork][4]byte{
			ForkBellatrix: {0x90, 0x00, 0x00, 0x71},
			ForkCapella:   {0x90, 0x00, 0x00, 0x72},
			ForkDeneb:     {0x90, 0x00, 0x00, 0x73},
			ForkElectra:   {0x90, 0x00, 0x00, 0x74},
		},
		DomainSyncCommittee:         domainSyncCommittee,
		HistoricalSummaryGindexBase: 246, // Sepolia's Capella genesis is much later than mainnet's
	})
	return r
}
