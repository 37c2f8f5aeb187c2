// Package verifier replays a prover's work in reverse: given a serialized
// proof request, the claimed method/args, a chain id, and whatever the
// caller's synccommittee.Store already knows, it checks every
// cryptographic link the proof claims instead of fetching the data that
// produced it, and either returns the verified result or the first error
// on the chain.
//
// Unlike the prover, a Ctx never suspends: a verifier never uses wall time
// and never reads from the network directly, so every input it needs
// arrives at construction time and Execute always resolves in a single
// call. Its Result keeps the same three-way Status shape as the prover's
// for API symmetry, but Pending is always empty and SetResponse/SetError
// have nothing to attach to.
package verifier

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/colibri-client/colibri/internal/asyncreq"
	"github.com/colibri-client/colibri/internal/beacon"
	"github.com/colibri-client/colibri/internal/blsverify"
	"github.com/colibri-client/colibri/internal/chainspec"
	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/proofreq"
	"github.com/colibri-client/colibri/internal/ssz"
	"github.com/colibri-client/colibri/internal/synccommittee"
	"github.com/colibri-client/colibri/internal/workerpool"
)

// Status is the three-way outcome of a call to Execute, mirroring
// internal/prover's Result shape for API symmetry.
type Status uint8

const (
	StatusPending Status = iota
	StatusDone
	StatusError
)

// Result is what Execute returns. Output carries the verified method
// result as JSON, valid only when Status is StatusDone.
type Result struct {
	Status  Status
	Pending []asyncreq.Request // always empty; a verifier never suspends
	Output  []byte
	Err     error
}

// TrustedHint is the fast-path trust anchor a caller can supply: a list of
// beacon header roots the caller already trusts (typically because a
// previous Execute on this chain verified them). If the proof's own
// attested header root is among them, Execute skips the sync-committee
// consumption and BLS aggregate check (steps 3-4) entirely and goes
// straight to the Merkle/Patricia walk.
//
// The original design phrased this hint as "a list of trusted execution
// block hashes"; this module verifies execution block hashes only for the
// "transaction" and "block" variants (the only two whose proof exposes
// one as a field), so the fast path is keyed on the attested beacon
// header root instead, which every variant's SignedHeader carries
// uniformly. This is a deliberate simplification, recorded in DESIGN.md.
type TrustedHint struct {
	CheckpointRoot     *ethtypes.Hash
	TrustedHeaderRoots []ethtypes.Hash
}

func (h TrustedHint) trusts(root [32]byte) bool {
	for _, r := range h.TrustedHeaderRoots {
		if ethtypes.Hash(root) == r {
			return true
		}
	}
	return false
}

// Ctx is one in-flight verification attempt over a single proof request.
type Ctx struct {
	mu        sync.Mutex
	chainID   uint64
	spec      *chainspec.Spec
	method    string
	args      []any
	proof     []byte
	state     synccommittee.State
	storage   synccommittee.StoragePlugin
	trusted   TrustedHint
	parallel  workerpool.ParallelFor
	destroyed bool
}

// NewCtx builds a verifier context. proof is the SSZ-encoded proofreq.Request
// wire bytes; method/args are the claimed RPC call being proved; sync is
// whatever the caller's synccommittee.Store currently knows for this chain.
//
// storage, if non-nil, backs a committee cache keyed under
// "committee/<chain_id>/<period>" (via beacon.EncodeSyncCommittee), a
// second use of the same StoragePlugin interface synccommittee.Store uses
// for state/<chain_id>. The prover never needs this: it only ever reads
// committees forward out of freshly-fetched updates. The verifier does,
// because two separate Ctx instances, verifying two different proofs hours
// apart, must be able to check a CommitteeUpdate's signature against a
// committee learned by an earlier Ctx without re-walking the whole update
// chain from bootstrap every time — and synccommittee.State itself stores
// only period numbers, never committee keys. storage may be nil; the
// committee cache then lives only as long as the single Execute call.
func NewCtx(spec *chainspec.Spec, proof []byte, method string, args []any, sync synccommittee.State, storage synccommittee.StoragePlugin, trusted TrustedHint) *Ctx {
	if sync.Kind == synccommittee.KindEmpty && trusted.CheckpointRoot != nil {
		sync = synccommittee.NewCheckpoint(*trusted.CheckpointRoot)
	}
	return &Ctx{
		chainID:  uint64(spec.ID),
		spec:     spec,
		method:   method,
		args:     args,
		proof:    proof,
		state:    sync,
		storage:  storage,
		trusted:  trusted,
		parallel: workerpool.Sequential,
	}
}

// SetParallelFor registers a host-provided fan-out hook for batch account
// verification (currently the call variant's touched-account loop, the only
// variant whose proof carries more than one independent Patricia check).
// Unset, a Ctx verifies sequentially; this never changes the result, only
// how it's computed.
func (c *Ctx) SetParallelFor(pf workerpool.ParallelFor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pf != nil {
		c.parallel = pf
	}
}

// State returns the sync state as of the last Execute call, for the host
// to persist via its own synccommittee.Store.Save.
func (c *Ctx) State() synccommittee.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Execute runs the full verification pipeline. It always resolves to
// StatusDone or StatusError.
func (c *Ctx) Execute() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return Result{Status: StatusError, Err: coreerr.New(coreerr.InputInvalid, "verifier: context destroyed")}
	}

	out, err := c.run()
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}
	return Result{Status: StatusDone, Output: out}
}

// SetResponse exists only for API symmetry with ProverCtx; a verifier never
// registers a pending request, so there is never an id to fulfil.
func (c *Ctx) SetResponse(id [32]byte, response []byte, nodeIndex uint16) error {
	return asyncreq.ErrUnknownRequest
}

// SetError exists only for API symmetry with ProverCtx; see SetResponse.
func (c *Ctx) SetError(id [32]byte, message string, nodeIndex uint16, retryable bool) error {
	return asyncreq.ErrUnknownRequest
}

// Destroy releases ctx. Any further Execute call returns an error.
func (c *Ctx) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
}

// run implements the seven-step parse/consume-sync/verify-signature/
// walk-proof/reconstruct pipeline.
func (c *Ctx) run() ([]byte, error) {
	// Step 1: parse, validate version and chain-engine selector.
	req, err := proofreq.Decode(c.proof)
	if err != nil {
		return nil, err
	}
	if !proofreq.CompatibleVersion(req.Version) {
		return nil, coreerr.New(coreerr.InputInvalid, "verifier: incompatible proof version")
	}
	// This build only ever emits chain_engine 0 (a single generic
	// execution-RPC family); a proof built for this chain's chainspec.Spec
	// but a different chain_id still carries chain_engine 0, so rejecting
	// on this field alone cannot catch a cross-chain submission. That case
	// is caught downstream instead: the BLS domain mixes in the verifier's
	// own chainspec.Spec.GenesisValidatorsRoot/fork version, so a proof
	// signed under a different chain's domain fails step 4 with
	// SignatureInvalid rather than failing here with InputInvalid. See
	// DESIGN.md for the full rationale.
	if req.ChainEngine != 0 {
		return nil, coreerr.New(coreerr.InputInvalid, "verifier: unsupported chain_engine selector")
	}
	if wantVariant, ok := methodVariant(c.method); !ok || wantVariant != req.Variant {
		return nil, coreerr.New(coreerr.InputInvalid, "verifier: proof variant does not match claimed method")
	}

	if req.Variant == proofreq.VariantSync {
		return c.runSync(req)
	}

	// Step 2: consume any piggy-backed sync_data before checking the main
	// variant's signature.
	if req.SyncBody != nil {
		var body proofreq.SyncProofBody
		if err := proofreq.UnmarshalProof(req.SyncBody, &body); err != nil {
			return nil, err
		}
		if _, err := c.applySyncProofBody(body); err != nil {
			return nil, err
		}
	}

	switch req.Variant {
	case proofreq.VariantAccount:
		return c.verifyAccount(req)
	case proofreq.VariantTransaction:
		return c.verifyTransaction(req)
	case proofreq.VariantReceipt:
		return c.verifyReceipt(req)
	case proofreq.VariantLogs:
		return c.verifyLogs(req)
	case proofreq.VariantBlock:
		return c.verifyBlock(req)
	case proofreq.VariantBlockNumber:
		return c.verifyBlockNumber(req)
	case proofreq.VariantCall:
		return c.verifyCall(req)
	case proofreq.VariantWitness:
		return c.verifyWitness(req)
	default:
		return nil, coreerr.New(coreerr.InputInvalid, "verifier: unsupported proof variant "+string(req.Variant))
	}
}

func (c *Ctx) runSync(req proofreq.Request) ([]byte, error) {
	var body proofreq.SyncProofBody
	if err := proofreq.UnmarshalProof(req.ProofBody, &body); err != nil {
		return nil, err
	}
	state, err := c.applySyncProofBody(body)
	if err != nil {
		return nil, err
	}
	latest, _ := state.Latest()
	return []byte(fmt.Sprintf(`{"periods":%d,"latest":%d}`, len(state.Periods), latest)), nil
}

// applySyncProofBody runs the checkpoint trust ratchet: a
// bootstrap (establishing period p), followed by zero or more period-
// ordered CommitteeUpdates, each verified against the committee of the
// period it extends. It updates c.state and the committee cache as it
// goes, and returns the resulting state.
func (c *Ctx) applySyncProofBody(body proofreq.SyncProofBody) (synccommittee.State, error) {
	known := make(map[uint64]beacon.SyncCommittee)
	state := c.state

	if body.Bootstrap != nil {
		bs := body.Bootstrap
		if state.Kind == synccommittee.KindCheckpoint {
			root, err := bs.Header.Root()
			if err != nil {
				return state, err
			}
			if ethtypes.Hash(root) != state.BlockRoot {
				return state, coreerr.New(coreerr.IntegrityMismatch, "verifier: bootstrap header does not match the trusted checkpoint root")
			}
		}
		committeeRoot, err := bs.CurrentCommittee.Root()
		if err != nil {
			return state, err
		}
		gi, err := beacon.StateFieldGindex("current_sync_committee")
		if err != nil {
			return state, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		if !ssz.VerifySingle(bs.Header.StateRoot, committeeRoot, gi, toBranch(bs.CommitteeProof)) {
			return state, coreerr.New(coreerr.ProofInvalid, "verifier: bootstrap committee proof does not verify against the header state root")
		}
		period := c.spec.Period(bs.Header.Slot)
		state = state.WithPeriod(period)
		known[period] = bs.CurrentCommittee
		if err := c.saveCommittee(period, bs.CurrentCommittee); err != nil {
			return state, err
		}
	} else if state.Kind != synccommittee.KindPeriods {
		return state, coreerr.New(coreerr.SyncGap, "verifier: sync_data has no bootstrap and no known period to extend")
	}

	for _, upd := range body.Updates {
		period := upd.Signed.Period
		committee, ok := known[period]
		if !ok {
			loaded, found, err := c.loadCommittee(period)
			if err != nil {
				return state, err
			}
			if !found {
				return state, coreerr.New(coreerr.SyncGap, "verifier: no known committee for period required by update chain")
			}
			committee = loaded
		}

		headerRoot, err := upd.Signed.Header.Root()
		if err != nil {
			return state, err
		}
		if err := c.verifyAggregate(committee, upd.Signed, headerRoot); err != nil {
			return state, err
		}

		nextRoot, err := upd.NextCommittee.Root()
		if err != nil {
			return state, err
		}
		gi, err := beacon.StateFieldGindex("next_sync_committee")
		if err != nil {
			return state, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		if !ssz.VerifySingle(upd.Signed.Header.StateRoot, nextRoot, gi, toBranch(upd.CommitteeProof)) {
			return state, coreerr.New(coreerr.ProofInvalid, "verifier: committee update's next-committee proof does not verify")
		}

		state = state.WithPeriod(upd.Period)
		known[upd.Period] = upd.NextCommittee
		if err := c.saveCommittee(upd.Period, upd.NextCommittee); err != nil {
			return state, err
		}
	}

	c.state = state
	return state, nil
}

// verifyAggregate computes the attested
// header's signing root under this chain's domain and check the sync
// aggregate against committee.
func (c *Ctx) verifyAggregate(committee beacon.SyncCommittee, signed proofreq.SignedHeader, headerRoot [32]byte) error {
	epoch := c.spec.Epoch(signed.Header.Slot)
	forkVersion, err := c.spec.ForkVersionForEpoch(epoch)
	if err != nil {
		return coreerr.Wrap(coreerr.InputInvalid, err)
	}
	domain, err := blsverify.ComputeDomain(c.spec.DomainSyncCommittee, forkVersion, c.spec.GenesisValidatorsRoot)
	if err != nil {
		return err
	}
	signingRoot, err := blsverify.ComputeSigningRoot(headerRoot, domain)
	if err != nil {
		return err
	}
	bits, err := ssz.BitvectorFromBytes(signed.Bits, beacon.SyncCommitteeSize)
	if err != nil {
		return coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return blsverify.VerifySyncAggregate(committee.Pubkeys[:], bits, signingRoot, signed.Signature)
}

// verifyHeaderChain performs steps 3-4 for one of the "normal" variants: it
// recovers the attested header, and either short-circuits via the
// TrustedHint fast path or consumes the committee the header's period
// needs.
func (c *Ctx) verifyHeaderChain(signed proofreq.SignedHeader) error {
	headerRoot, err := signed.Header.Root()
	if err != nil {
		return err
	}
	if c.trusted.trusts(headerRoot) {
		return nil
	}

	committee, found := c.knownCommittee(signed.Period)
	if !found {
		return coreerr.New(coreerr.SyncGap, "verifier: no known committee for the attested header's period; supply sync_data")
	}
	return c.verifyAggregate(committee, signed, headerRoot)
}

func (c *Ctx) knownCommittee(period uint64) (beacon.SyncCommittee, bool) {
	committee, found, err := c.loadCommittee(period)
	if err != nil || !found {
		return beacon.SyncCommittee{}, false
	}
	return committee, true
}

func committeeKey(chainID uint64, period uint64) string {
	return fmt.Sprintf("committee/%d/%d", chainID, period)
}

func (c *Ctx) loadCommittee(period uint64) (beacon.SyncCommittee, bool, error) {
	if c.storage == nil {
		return beacon.SyncCommittee{}, false, nil
	}
	raw, ok, err := c.storage.Get(committeeKey(c.chainID, period))
	if err != nil {
		return beacon.SyncCommittee{}, false, coreerr.Wrap(coreerr.FetchFailed, err)
	}
	if !ok {
		return beacon.SyncCommittee{}, false, nil
	}
	sc, err := beacon.DecodeSyncCommittee(raw)
	if err != nil {
		return beacon.SyncCommittee{}, false, err
	}
	return sc, true, nil
}

func (c *Ctx) saveCommittee(period uint64, sc beacon.SyncCommittee) error {
	if c.storage == nil {
		return nil
	}
	raw, err := beacon.EncodeSyncCommittee(sc)
	if err != nil {
		return err
	}
	if err := c.storage.Set(committeeKey(c.chainID, period), raw); err != nil {
		return coreerr.Wrap(coreerr.FetchFailed, err)
	}
	return nil
}

func toBranch(proof [][]byte) [][32]byte {
	out := make([][32]byte, len(proof))
	for i, p := range proof {
		copy(out[i][:], p)
	}
	return out
}

// methodVariant mirrors internal/prover's methodVariants table; kept as a
// separate copy (rather than an exported prover symbol) since the verifier
// must never import the prover package — proving and verifying are
// independently invoked by a host and never share process state.
var methodVariants = map[string]proofreq.Variant{
	"eth_getBalance":                          proofreq.VariantAccount,
	"eth_getCode":                             proofreq.VariantAccount,
	"eth_getStorageAt":                        proofreq.VariantAccount,
	"eth_getProof":                            proofreq.VariantAccount,
	"eth_getTransactionByHash":                proofreq.VariantTransaction,
	"eth_getTransactionByBlockHashAndIndex":   proofreq.VariantTransaction,
	"eth_getTransactionByBlockNumberAndIndex": proofreq.VariantTransaction,
	"eth_getTransactionReceipt":               proofreq.VariantReceipt,
	"eth_getLogs":                             proofreq.VariantLogs,
	"eth_getBlockByHash":                      proofreq.VariantBlock,
	"eth_getBlockByNumber":                    proofreq.VariantBlock,
	"eth_blockNumber":                         proofreq.VariantBlockNumber,
	"eth_call":                                proofreq.VariantCall,
	"eth_estimateGas":                         proofreq.VariantCall,
	"c4_getSyncData":                          proofreq.VariantSync,
	"c4_witness":                              proofreq.VariantWitness,
}

func methodVariant(method string) (proofreq.Variant, bool) {
	v, ok := methodVariants[method]
	return v, ok
}

// Flag classifies a method the way a host's dispatch table needs to.
// Mirrors internal/prover.Flag/MethodSupport
// for the same reason methodVariants is duplicated above.
type Flag uint8

const (
	SupportProof Flag = iota
	SupportLocal
	SupportUnsupported
)

var localMethods = map[string]bool{
	"eth_chainId":        true,
	"net_version":        true,
	"web3_clientVersion": true,
}

// MethodSupport classifies method for a verifying host.
func MethodSupport(method string) Flag {
	if localMethods[method] {
		return SupportLocal
	}
	if _, ok := methodVariants[method]; ok {
		return SupportProof
	}
	return SupportUnsupported
}

// compareClaimed checks a caller-claimed JSON result (if any) against the
// result independently reconstructed from the proof: it must
// equal byte-for-byte the result this Ctx independently reconstructed from
// the verified proof.
func compareClaimed(req proofreq.Request, reconstructed []byte) ([]byte, error) {
	if req.DataBody == nil {
		return reconstructed, nil
	}
	if !bytes.Equal(bytes.TrimSpace(req.DataBody), bytes.TrimSpace(reconstructed)) {
		return nil, coreerr.New(coreerr.IntegrityMismatch, "verifier: claimed result does not match the proof")
	}
	return reconstructed, nil
}
