package proofreq

import (
	"github.com/colibri-client/colibri/internal/beacon"
	"github.com/colibri-client/colibri/internal/ethtypes"
)

// SignedHeader pairs a beacon block header with the sync aggregate a
// verifier checks it against: the minimal unit a verifier needs to recover
// an attested header and verify its signature.
type SignedHeader struct {
	Header    beacon.Header
	Bits      []byte // raw sync-committee participation bitvector bytes
	Signature ethtypes.BLSSignature
	Period    uint64 // sync-committee period the Bits/Signature are checked against
}

// AccountProofBody backs the "account" variant: eth_getBalance,
// eth_getCode, eth_getStorageAt, eth_getProof.
type AccountProofBody struct {
	Signed         SignedHeader
	StateRootProof beacon.FieldsProof // reaches execution_payload.state_root
	Address        ethtypes.Address
	Nonce          uint64
	Balance        string // decimal big.Int
	StorageRoot    ethtypes.Hash
	CodeHash       ethtypes.Hash
	AccountProof   [][]byte
	HasStorage     bool
	StorageKey     ethtypes.Hash
	StorageProof   [][]byte
	Code           []byte
}

// TransactionProofBody backs the "transaction" variant.
type TransactionProofBody struct {
	Signed      SignedHeader
	FieldsProof beacon.FieldsProof // block_number, block_hash, base_fee_per_gas, transactions:i
	Index       int
	RawTx       []byte
}

// ReceiptProofBody backs the "receipt" variant (and is reused once per
// block inside LogsProofBody for "logs").
type ReceiptProofBody struct {
	Signed            SignedHeader
	ReceiptsRootProof beacon.FieldsProof // reaches execution_payload.receipts_root
	Index             int
	ReceiptProof      [][]byte
	RawReceipt        []byte
}

// LogsProofBody backs the "logs" variant: one ReceiptProofBody per
// log-producing receipt, batched per block.
type LogsProofBody struct {
	Receipts []ReceiptProofBody
}

// BlockProofBody backs the "block" variant: a multi-proof isolating the
// whole execution_payload field.
type BlockProofBody struct {
	Signed       SignedHeader
	PayloadProof beacon.FieldsProof // reaches execution_payload as one leaf
	PayloadData  []byte
}

// BlockNumberProofBody backs the "block_number" variant (eth_blockNumber).
type BlockNumberProofBody struct {
	Signed      SignedHeader
	FieldsProof beacon.FieldsProof // block_number, timestamp
}

// TouchedAccount is one account an eth_call/eth_estimateGas trace read,
// proved against the same state_root as the rest of CallProofBody.
type TouchedAccount struct {
	Address      ethtypes.Address
	Nonce        uint64
	Balance      string
	StorageRoot  ethtypes.Hash
	CodeHash     ethtypes.Hash
	AccountProof [][]byte
	Code         []byte
}

// CallProofBody backs the "call" variant: eth_call, eth_estimateGas.
type CallProofBody struct {
	Signed         SignedHeader
	StateRootProof beacon.FieldsProof // reaches execution_payload.state_root
	Accounts       []TouchedAccount
	TraceResult    []byte // JSON result of debug_traceCall/eth_estimateGas, as claimed by the prover
}

// BootstrapUpdate backs the sync variant's initial trust establishment: a
// checkpoint header plus the committee in power at its period, with a
// Merkle branch proving that committee against the header's own state
// root.
type BootstrapUpdate struct {
	Header           beacon.Header
	CurrentCommittee beacon.SyncCommittee
	CommitteeProof   [][]byte
}

// CommitteeUpdate backs one step of the sync variant's period-by-period
// advance: an attested header signed by the previous period's committee,
// carrying the next period's committee and a Merkle branch proving it
// against the attested header's state root.
type CommitteeUpdate struct {
	Signed         SignedHeader
	NextCommittee  beacon.SyncCommittee
	CommitteeProof [][]byte
	Period         uint64
}

// SyncProofBody backs the "sync" (internal getSyncData) variant: a
// bootstrap when a context has no committee yet, followed by zero or more
// period-ordered committee updates.
type SyncProofBody struct {
	Bootstrap *BootstrapUpdate
	Updates   []CommitteeUpdate
}

// WitnessProofBody backs the "witness" variant (c4_witness/signer mode): a
// signed attestation over the fetched fields instead of a sync-committee
// Merkle proof, for deployments without a live light client.
type WitnessProofBody struct {
	Signed      SignedHeader
	FieldsProof beacon.FieldsProof
	AttestorKey ethtypes.BLSPubkey
	AttestorSig ethtypes.BLSSignature
}
