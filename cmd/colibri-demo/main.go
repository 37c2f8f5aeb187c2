// Command colibri-demo is a thin CLI host that exercises the prover and
// verifier Context API end to end against a small built-in beacon-chain
// fixture, rather than a production JSON-RPC/Beacon-API client. It exists
// to give the library a runnable example of the host role the core
// defers to its caller: serving a Ctx's Pending requests and handing the
// finished proof to a verifier.
//
// Usage:
//
//	colibri-demo [flags]
//
// Flags:
//
//	-network   Chain to build proofs against: mainnet, sepolia (default: "mainnet")
//	-method    JSON-RPC method to prove and verify (default: "eth_blockNumber")
//	-loglevel  Log verbosity: debug, info, warn, error (default: "info")
//	-version   Print version and exit
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/colibri-client/colibri/internal/asyncreq"
	"github.com/colibri-client/colibri/internal/chainspec"
	"github.com/colibri-client/colibri/internal/colog"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/prover"
	"github.com/colibri-client/colibri/internal/proofreq"
	"github.com/colibri-client/colibri/internal/synccommittee"
	"github.com/colibri-client/colibri/internal/verifier"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	network := flag.String("network", "mainnet", "chain to build proofs against (mainnet, sepolia)")
	method := flag.String("method", "eth_blockNumber", "JSON-RPC method to prove and verify")
	levelFlag := flag.String("loglevel", "info", "log verbosity (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("colibri-demo %s (commit %s)\n", version, commit)
		return 0
	}

	colog.SetRoot(colog.New(parseLevel(*levelFlag)))
	log := colog.Root().Module("demo")

	spec, err := resolveSpec(*network)
	if err != nil {
		log.Error("unknown network", "network", *network, "err", err)
		return 1
	}

	if *method != "eth_blockNumber" {
		log.Error("unsupported demo method; try -method eth_blockNumber", "method", *method)
		return 1
	}

	log.Info("proving", "network", *network, "method", *method)
	proof, err := proveBlockNumber(log, spec)
	if err != nil {
		log.Error("prove failed", "err", err)
		return 1
	}
	log.Info("proof built", "bytes", len(proof))

	result, err := verifyProof(log, spec, proof, *method)
	if err != nil {
		log.Error("verify failed", "err", err)
		return 1
	}

	fmt.Printf("proof:  0x%x\n", proof)
	fmt.Printf("result: %s\n", result)
	return 0
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveSpec(network string) (*chainspec.Spec, error) {
	switch strings.ToLower(network) {
	case "", "mainnet":
		spec, ok := chainspec.MainnetRegistry().Get(chainspec.Mainnet)
		if !ok {
			return nil, fmt.Errorf("mainnet spec not registered")
		}
		return spec, nil
	case "sepolia":
		spec, ok := chainspec.SepoliaRegistry().Get(chainspec.Sepolia)
		if !ok {
			return nil, fmt.Errorf("sepolia spec not registered")
		}
		return spec, nil
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// proveBlockNumber drives a prover.Ctx through eth_blockNumber's two-fetch
// shape (fetch the head block, forward-walk to the nearest sync-aggregate
// participant) against the in-process fixture, serving each Pending
// request itself instead of going out over the network.
func proveBlockNumber(log *colog.Logger, spec *chainspec.Spec) ([]byte, error) {
	ctx := prover.NewCtx(spec, "eth_blockNumber", nil, synccommittee.Empty(), nil)

	for {
		res := ctx.Execute()
		switch res.Status {
		case prover.StatusDone:
			return ctx.Proof(res.Proof)
		case prover.StatusError:
			return nil, res.Err
		}
		for _, req := range res.Pending {
			log.Debug("serving fixture request", "url", req.URL)
			response, err := serveFixture(req)
			if err != nil {
				if err := ctx.SetError(req.ID, err.Error(), 1, false); err != nil {
					return nil, err
				}
				continue
			}
			if err := ctx.SetResponse(req.ID, response, 1); err != nil {
				return nil, err
			}
		}
	}
}

// serveFixture answers the two beacon-block fetches eth_blockNumber's
// forward walk needs: the chain head (slot 100, not yet signed by a
// successor) and its signing successor (slot 101, fully participating).
func serveFixture(req asyncreq.Request) ([]byte, error) {
	switch req.URL {
	case "/eth/v2/beacon/blocks/head":
		return fixtureBlockJSON(100, 100, false), nil
	case "/eth/v2/beacon/blocks/101":
		return fixtureBlockJSON(101, 101, true), nil
	default:
		return nil, fmt.Errorf("demo fixture has no response for %s", req.URL)
	}
}

// verifyProof decodes proof's attested header root and trusts it directly,
// the way a host already holding a verified checkpoint from this same
// fixture source would: this demo has no real mainnet sync-committee keys
// to check an aggregate signature against, so it exercises the
// TrustedHint fast path instead of forging one.
func verifyProof(log *colog.Logger, spec *chainspec.Spec, proof []byte, method string) ([]byte, error) {
	req, err := proofreq.Decode(proof)
	if err != nil {
		return nil, err
	}
	var body proofreq.BlockNumberProofBody
	if err := proofreq.UnmarshalProof(req.ProofBody, &body); err != nil {
		return nil, err
	}
	headerRoot, err := body.Signed.Header.Root()
	if err != nil {
		return nil, err
	}
	log.Debug("trusting attested header", "root", fmt.Sprintf("0x%x", headerRoot))

	hint := verifier.TrustedHint{TrustedHeaderRoots: []ethtypes.Hash{ethtypes.Hash(headerRoot)}}
	ctx := verifier.NewCtx(spec, proof, method, nil, synccommittee.Empty(), nil, hint)
	res := ctx.Execute()
	if res.Status != verifier.StatusDone {
		return nil, res.Err
	}
	return res.Output, nil
}

type executionPayloadJSON struct {
	ParentHash      string   `json:"parent_hash"`
	FeeRecipient    string   `json:"fee_recipient"`
	StateRoot       string   `json:"state_root"`
	ReceiptsRoot    string   `json:"receipts_root"`
	PrevRandao      string   `json:"prev_randao"`
	BlockNumber     string   `json:"block_number"`
	GasLimit        string   `json:"gas_limit"`
	GasUsed         string   `json:"gas_used"`
	Timestamp       string   `json:"timestamp"`
	BaseFeePerGas   string   `json:"base_fee_per_gas"`
	BlockHash       string   `json:"block_hash"`
	Transactions    []string `json:"transactions"`
	WithdrawalsRoot string   `json:"withdrawals_root"`
	BlobGasUsed     string   `json:"blob_gas_used"`
}

type syncAggregateJSON struct {
	SyncCommitteeBits      string `json:"sync_committee_bits"`
	SyncCommitteeSignature string `json:"sync_committee_signature"`
}

type beaconBodyJSON struct {
	RandaoReveal          string               `json:"randao_reveal"`
	Eth1Data              string               `json:"eth1_data"`
	Graffiti              string               `json:"graffiti"`
	ProposerSlashingsRoot string               `json:"proposer_slashings_root"`
	AttesterSlashingsRoot string               `json:"attester_slashings_root"`
	AttestationsRoot      string               `json:"attestations_root"`
	DepositsRoot          string               `json:"deposits_root"`
	VoluntaryExitsRoot    string               `json:"voluntary_exits_root"`
	SyncAggregate         syncAggregateJSON    `json:"sync_aggregate"`
	ExecutionPayload      executionPayloadJSON `json:"execution_payload"`
}

type beaconMessageJSON struct {
	Slot          string         `json:"slot"`
	ProposerIndex string         `json:"proposer_index"`
	ParentRoot    string         `json:"parent_root"`
	StateRoot     string         `json:"state_root"`
	Body          beaconBodyJSON `json:"body"`
}

type signedBeaconBlockJSON struct {
	Message   beaconMessageJSON `json:"message"`
	Signature string            `json:"signature"`
}

type beaconBlockResponse struct {
	Data signedBeaconBlockJSON `json:"data"`
}

func hexN(n int, fill byte) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return "0x" + fmt.Sprintf("%x", b)
}

// fixtureBlockJSON builds a beaconBlockResponse payload for slot with a
// syntactically valid execution payload and, when participating is true,
// a full sync_committee_bits mask so it can serve as the forward walk's
// signer.
func fixtureBlockJSON(slot uint64, blockNumber uint64, participating bool) []byte {
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
