package synccommittee

import (
	"testing"

	"github.com/colibri-client/colibri/internal/ethtypes"
)

type memPlugin struct {
	data map[string][]byte
}

func newMemPlugin() *memPlugin { return &memPlugin{data: make(map[string][]byte)} }

func (m *memPlugin) Get(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}
func (m *memPlugin) Set(key string, value []byte) error { m.data[key] = value; return nil }
func (m *memPlugin) Del(key string) error                { delete(m.data, key); return nil }
func (m *memPlugin) MaxSyncStates() uint32               { return 256 }

func TestEmptyStateRoundTrip(t *testing.T) {
	data, err := Serialize(Empty())
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Kind != KindEmpty {
		t.Fatalf("got Kind=%v, want KindEmpty", got.Kind)
	}
}

func TestCheckpointStateRoundTrip(t *testing.T) {
	root := ethtypes.HexToHash("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	data, err := Serialize(NewCheckpoint(root))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Kind != KindCheckpoint || got.BlockRoot != root {
		t.Fatalf("got %+v, want checkpoint at %x", got, root)
	}
}

func TestPeriodsStateRoundTrip(t *testing.T) {
	state := NewPeriods(5, 6, 7)
	data, err := Serialize(state)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Kind != KindPeriods || len(got.Periods) != 3 {
		t.Fatalf("got %+v", got)
	}
	if !got.Covers(6) || got.Covers(8) {
		t.Fatalf("Covers() mismatch: %+v", got)
	}
}

func TestWithPeriodRatchetsForward(t *testing.T) {
	state := NewPeriods(5)
	state = state.WithPeriod(6)
	state = state.WithPeriod(7)
	latest, ok := state.Latest()
	if !ok || latest != 7 {
		t.Fatalf("Latest() = %d, %v, want 7", latest, ok)
	}
	for _, p := range []uint64{5, 6, 7} {
		if !state.Covers(p) {
			t.Fatalf("expected state to cover period %d after ratcheting, got %+v", p, state)
		}
	}
}

func TestWithPeriodDeduplicates(t *testing.T) {
	state := NewPeriods(5)
	state = state.WithPeriod(5)
	if len(state.Periods) != 1 {
		t.Fatalf("WithPeriod should deduplicate, got %+v", state.Periods)
	}
}

func TestValidateRejectsZeroCheckpointRoot(t *testing.T) {
	if err := (State{Kind: KindCheckpoint}).Validate(); err == nil {
		t.Fatalf("expected validation error for zero checkpoint root")
	}
}

func TestStoreLoadMissingReturnsEmpty(t *testing.T) {
	store := NewStore(newMemPlugin(), 1)
	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Kind != KindEmpty {
		t.Fatalf("Load() of missing key = %+v, want Empty", state)
	}
}

func TestStoreSaveThenLoad(t *testing.T) {
	store := NewStore(newMemPlugin(), 1)
	want := NewPeriods(10, 11)
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Covers(10) || !got.Covers(11) {
		t.Fatalf("Load() after Save = %+v, want covering 10 and 11", got)
	}
}

func TestRatchetCompletenessAcrossPeriods(t *testing.T) {
	// PERIODS({p}) plus a chain of valid updates for p..q-1 reaches
	// PERIODS(superset of {q}), per the ratchet-completeness property.
	state := NewPeriods(100)
	for p := uint64(101); p <= 104; p++ {
		state = state.WithPeriod(p)
	}
	if !state.Covers(104) {
		t.Fatalf("ratchet did not reach target period 104: %+v", state)
	}
	for p := uint64(100); p <= 104; p++ {
		if !state.Covers(p) {
			t.Fatalf("ratchet lost coverage of intermediate period %d", p)
		}
	}
}
