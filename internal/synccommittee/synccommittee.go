// Package synccommittee implements the verifier's persisted trust state:
// a chain starts with no trust (Empty), activates
// via a single trusted block root (Checkpoint) that a bootstrap fetch
// resolves into a known sync-committee period, and from there accumulates
// a set of Periods whose next-sync-committee has been checked by a chain
// of LightClientUpdates.
package synccommittee

import (
	"errors"
	"fmt"
	"sort"

	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/ssz"
)

// Kind discriminates the SyncState variant.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindCheckpoint
	KindPeriods
)

// State is the tagged union of a chain's sync trust state. Only the field
// matching Kind is meaningful.
type State struct {
	Kind       Kind
	BlockRoot  ethtypes.Hash // Kind == KindCheckpoint
	Periods    []uint64      // Kind == KindPeriods, sorted ascending, deduplicated
}

// Empty returns the initial, untrusted state.
func Empty() State { return State{Kind: KindEmpty} }

// NewCheckpoint returns a state trusting a single block root pending
// bootstrap.
func NewCheckpoint(root ethtypes.Hash) State {
	return State{Kind: KindCheckpoint, BlockRoot: root}
}

// NewPeriods returns a state that already knows the next-sync-committee
// for the given periods.
func NewPeriods(periods ...uint64) State {
	s := State{Kind: KindPeriods}
	for _, p := range periods {
		s = s.WithPeriod(p)
	}
	return s
}

// Covers reports whether period is a known period (only meaningful for
// KindPeriods; Empty and Checkpoint cover nothing until bootstrapped).
func (s State) Covers(period uint64) bool {
	if s.Kind != KindPeriods {
		return false
	}
	i := sort.Search(len(s.Periods), func(i int) bool { return s.Periods[i] >= period })
	return i < len(s.Periods) && s.Periods[i] == period
}

// Latest returns the highest known period and true, or 0/false if none.
func (s State) Latest() (uint64, bool) {
	if s.Kind != KindPeriods || len(s.Periods) == 0 {
		return 0, false
	}
	return s.Periods[len(s.Periods)-1], true
}

// WithPeriod returns a copy of s with period added to the known set,
// transitioning Empty/Checkpoint into KindPeriods (bootstrap completing).
func (s State) WithPeriod(period uint64) State {
	periods := append([]uint64(nil), s.Periods...)
	i := sort.Search(len(periods), func(i int) bool { return periods[i] >= period })
	if i < len(periods) && periods[i] == period {
		return State{Kind: KindPeriods, Periods: periods}
	}
	periods = append(periods, 0)
	copy(periods[i+1:], periods[i:])
	periods[i] = period
	return State{Kind: KindPeriods, Periods: periods}
}

// Validate checks internal consistency of the state.
func (s State) Validate() error {
	switch s.Kind {
	case KindEmpty:
		return nil
	case KindCheckpoint:
		if s.BlockRoot.IsZero() {
			return errors.New("synccommittee: checkpoint block root must not be zero")
		}
		return nil
	case KindPeriods:
		for i := 1; i < len(s.Periods); i++ {
			if s.Periods[i] <= s.Periods[i-1] {
				return errors.New("synccommittee: periods must be strictly ascending and deduplicated")
			}
		}
		return nil
	default:
		return fmt.Errorf("synccommittee: unknown state kind %d", s.Kind)
	}
}

var periodsListDescriptor = ssz.List(ssz.Uint64, 1<<16)

var stateDescriptor = ssz.Union(true,
	ssz.Variant{Name: "checkpoint", Desc: ssz.Bytes(32)},
	ssz.Variant{Name: "periods", Desc: periodsListDescriptor},
)

// Serialize encodes s as an SSZ union for persistence under the
// StoragePlugin's "state/<chain_id>" key.
func Serialize(s State) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, coreerr.Wrap(coreerr.InputInvalid, err)
	}
	var uv ssz.UnionValue
	switch s.Kind {
	case KindEmpty:
		uv = ssz.UnionValue{Selector: 0}
	case KindCheckpoint:
		uv = ssz.UnionValue{Selector: 1, Inner: ssz.BytesValue(s.BlockRoot.Bytes())}
	case KindPeriods:
		elems := make(ssz.ListValue, len(s.Periods))
		for i, p := range s.Periods {
			elems[i] = ssz.Uint64Value(p)
		}
		uv = ssz.UnionValue{Selector: 2, Inner: elems}
	}
	data, err := ssz.Encode(stateDescriptor, uv)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return data, nil
}

// Deserialize decodes bytes produced by Serialize back into a State.
func Deserialize(data []byte) (State, error) {
	view, err := ssz.Decode(stateDescriptor, data)
	if err != nil {
		return State{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	selector, inner, err := view.Union()
	if err != nil {
		return State{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	switch selector {
	case 0:
		return Empty(), nil
	case 1:
		b := inner.Bytes()
		return NewCheckpoint(ethtypes.BytesToHash(b)), nil
	case 2:
		n, err := inner.Len()
		if err != nil {
			return State{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		periods := make([]uint64, n)
		for i := 0; i < n; i++ {
			elem, err := inner.At(i)
			if err != nil {
				return State{}, coreerr.Wrap(coreerr.DecodeFailed, err)
			}
			v, err := elem.Uint64()
			if err != nil {
				return State{}, coreerr.Wrap(coreerr.DecodeFailed, err)
			}
			periods[i] = v
		}
		return State{Kind: KindPeriods, Periods: periods}, nil
	default:
		return State{}, coreerr.New(coreerr.DecodeFailed, "synccommittee: unknown selector")
	}
}

// StoragePlugin is the external key/value surface the host supplies, per
// get(key) -> bytes?, set(key, bytes), del(key), plus a
// maximum sync-state count the host enforces.
type StoragePlugin interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Del(key string) error
	MaxSyncStates() uint32
}

// StateKey returns the storage key for a chain's persisted sync state.
func StateKey(chainID uint64) string {
	return fmt.Sprintf("state/%d", chainID)
}

// Store loads and saves a chain's State through a StoragePlugin.
type Store struct {
	plugin  StoragePlugin
	chainID uint64
}

// NewStore binds a Store to one chain's key within plugin.
func NewStore(plugin StoragePlugin, chainID uint64) *Store {
	return &Store{plugin: plugin, chainID: chainID}
}

// Load reads and decodes the persisted state, returning Empty() if no
// entry exists yet.
func (s *Store) Load() (State, error) {
	raw, ok, err := s.plugin.Get(StateKey(s.chainID))
	if err != nil {
		return State{}, coreerr.Wrap(coreerr.FetchFailed, err)
	}
	if !ok {
		return Empty(), nil
	}
	return Deserialize(raw)
}

// Save encodes and persists state.
func (s *Store) Save(state State) error {
	data, err := Serialize(state)
	if err != nil {
		return err
	}
	if err := s.plugin.Set(StateKey(s.chainID), data); err != nil {
		return coreerr.Wrap(coreerr.FetchFailed, err)
	}
	return nil
}
