// Package prover implements the prove side of proof generation: given a
// chain id, a JSON-RPC-shaped method and params, and a synccommittee.State
// describing what the caller already trusts, it drives the execution/
// consensus fetches a method family needs and assembles the resulting
// proofreq.Request.
//
// A Ctx follows a cooperative suspend/resume model:
// Execute re-enters the method's builder from the top on every call. Each
// builder is a straight-line function that calls fetch (or beaconGet/
// ethRPC, its two thin wrappers) at every data dependency; the first
// unresolved dependency returns errSuspended, which Execute turns into a
// Pending result carrying the table's outstanding request list. Already-
// resolved fetches return their cached response instead of re-issuing a
// request, so re-entry costs a re-walk of the builder, not a re-fetch.
package prover

import (
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/colibri-client/colibri/internal/asyncreq"
	"github.com/colibri-client/colibri/internal/cache"
	"github.com/colibri-client/colibri/internal/chainspec"
	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/proofreq"
	"github.com/colibri-client/colibri/internal/synccommittee"
)

// errSuspended is the sentinel a builder returns when it hit a fetch whose
// data is not yet available. It is never wrapped in a *coreerr.Error, since
// coreerr.KindOf's conservative default (DecodeFailed) would misclassify it;
// callers must test for it with errors.Is before inspecting a builder
// error's Kind.
var errSuspended = errors.New("prover: suspended pending data")

// Status is the three-way outcome of a call to Execute, mirroring
// execute_prover's result shape.
type Status uint8

const (
	StatusPending Status = iota
	StatusDone
	StatusError
)

// Result is what Execute returns.
type Result struct {
	Status  Status
	Pending []asyncreq.Request
	Proof   proofreq.Request
	Err     error
}

// Flag classifies a method for the host's dispatch.
type Flag uint8

const (
	SupportProof Flag = iota
	SupportLocal
	SupportUnsupported
)

// localMethods answer directly from chain id/client metadata, never from a
// proof; a host serves them without ever constructing a Ctx.
var localMethods = map[string]bool{
	"eth_chainId":        true,
	"net_version":        true,
	"web3_clientVersion": true,
}

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

// MethodSupport classifies method the way a host's dispatch table needs to:
// served locally, servable via a proof this package can build, or unknown.
func MethodSupport(method string) Flag {
	if localMethods[method] {
		return SupportLocal
	}
	if _, ok := methodVariants[method]; ok {
		return SupportProof
	}
	return SupportUnsupported
}

// Ctx is one in-flight proving attempt: one method call, replayed from the
// top on every Execute until every fetch it needs has resolved.
type Ctx struct {
	mu        sync.Mutex
	chainID   uint64
	spec      *chainspec.Spec
	method    string
	params    []any
	sync      synccommittee.State
	table     *asyncreq.Table
	cache     *cache.Cache
	signerKey *big.Int
	destroyed bool
}

// NewCtx builds a prover context for one method call. sync describes what
// the caller's synccommittee.Store already knows, consulted by the "sync"
// variant to decide whether a bootstrap or an incremental update chain is
// needed. cacheStore may be nil; a Ctx that never reads execution-layer
// data it has already fetched this call still works without one.
func NewCtx(spec *chainspec.Spec, method string, params []any, sync synccommittee.State, cacheStore *cache.Cache) *Ctx {
	return &Ctx{
		chainID: uint64(spec.ID),
		spec:    spec,
		method:  method,
		params:  params,
		sync:    sync,
		table:   asyncreq.NewTable(),
		cache:   cacheStore,
	}
}

// SetSigner configures the BLS secret used by the "witness" variant
// (c4_witness). Methods other than c4_witness never consult it.
func (c *Ctx) SetSigner(secret *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signerKey = secret
}

// Execute re-enters the method's builder from the top.
func (c *Ctx) Execute() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return Result{Status: StatusError, Err: coreerr.New(coreerr.InputInvalid, "prover: context destroyed")}
	}

	req, err := c.build()
	if err != nil {
		if errors.Is(err, errSuspended) {
			return Result{Status: StatusPending, Pending: c.table.Pending()}
		}
		return Result{Status: StatusError, Err: err}
	}
	req.Version = proofreq.CurrentVersion
	return Result{Status: StatusDone, Proof: req}
}

// SetResponse records a successful fetch response. The next Execute call
// will see it and proceed past the fetch that requested it.
func (c *Ctx) SetResponse(id [32]byte, response []byte, nodeIndex uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Fulfil(id, response, nodeIndex)
}

// SetError records a failed fetch, per set_error's
// Retryable propagation policy. A retryable failure with room left in the
// exclusion mask re-registers the request under a fresh pending entry
// instead of failing the call outright; the caller sees no error from
// SetError in that case, only a continued Pending result from the next
// Execute. A terminal failure (table.Fail's non-nil error return) is the
// recorded-successfully signal, not an operational failure of SetError
// itself — only ErrUnknownRequest/ErrAlreadyResolved are surfaced.
func (c *Ctx) SetError(id [32]byte, message string, nodeIndex uint16, retryable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	retried, err := c.table.Fail(id, message, nodeIndex, retryable)
	if retried != nil {
		c.table.Send(retried)
		return nil
	}
	if errors.Is(err, asyncreq.ErrUnknownRequest) || errors.Is(err, asyncreq.ErrAlreadyResolved) {
		return err
	}
	return nil
}

// Proof encodes a finished Result's proof as the wire bytes the
// get_proof returns.
func (c *Ctx) Proof(req proofreq.Request) ([]byte, error) {
	return proofreq.Encode(req)
}

// Destroy releases ctx, per destroy_prover's contract. Any further
// Execute call returns an error.
func (c *Ctx) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
}

func (c *Ctx) build() (proofreq.Request, error) {
	switch c.method {
	case "eth_getBalance", "eth_getCode", "eth_getStorageAt", "eth_getProof":
		return c.buildAccount()
	case "eth_getTransactionByHash", "eth_getTransactionByBlockHashAndIndex", "eth_getTransactionByBlockNumberAndIndex":
		return c.buildTransaction()
	case "eth_getTransactionReceipt":
		return c.buildReceipt()
	case "eth_getLogs":
		return c.buildLogs()
	case "eth_getBlockByHash", "eth_getBlockByNumber":
		return c.buildBlock()
	case "eth_blockNumber":
		return c.buildBlockNumber()
	case "eth_call", "eth_estimateGas":
		return c.buildCall()
	case "c4_getSyncData":
		return c.buildSync()
	case "c4_witness":
		return c.buildWitness()
	default:
		return proofreq.Request{}, coreerr.New(coreerr.InputInvalid, "prover: unsupported method "+c.method)
	}
}

// fetch registers (or attaches to) the request identified by transport/
// method/url/payload and returns its resolved response, or errSuspended if
// it is not resolved yet.
func (c *Ctx) fetch(transport asyncreq.Transport, method asyncreq.Method, url string, payload []byte) ([]byte, error) {
	id := asyncreq.Fingerprint(c.chainID, transport, method, url, payload)
	req := &asyncreq.Request{
		ID:        id,
		ChainID:   c.chainID,
		Transport: transport,
		Encoding:  asyncreq.EncodingJSON,
		Method:    method,
		URL:       url,
		Payload:   payload,
	}
	status, stored := c.table.Send(req)
	if status == asyncreq.Pending {
		return nil, errSuspended
	}
	if resp, ok := c.table.Response(stored.ID); ok {
		return resp, nil
	}
	msg, _ := c.table.Err(stored.ID)
	return nil, coreerr.New(coreerr.FetchFailed, msg)
}

// beaconGet issues a GET against the consensus beacon API.
func (c *Ctx) beaconGet(path string) ([]byte, error) {
	return c.fetch(asyncreq.BeaconAPI, asyncreq.MethodGet, path, nil)
}

type rpcEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// ethRPC issues a JSON-RPC call against the execution layer.
func (c *Ctx) ethRPC(method string, params ...any) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcEnvelope{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InputInvalid, err)
	}
	raw, err := c.fetch(asyncreq.EthRPC, asyncreq.MethodPost, method, payload)
	if err != nil {
		return nil, err
	}
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	if resp.Error != nil {
		return nil, coreerr.New(coreerr.FetchFailed, resp.Error.Message)
	}
	return resp.Result, nil
}

func (c *Ctx) paramStr(i int) (string, error) {
	if i < 0 || i >= len(c.params) {
		return "", coreerr.New(coreerr.InputInvalid, "prover: missing parameter")
	}
	s, ok := c.params[i].(string)
	if !ok {
		return "", coreerr.New(coreerr.InputInvalid, "prover: parameter is not a string")
	}
	return s, nil
}

func (c *Ctx) paramIndex(i int) (uint64, error) {
	s, err := c.paramStr(i)
	if err != nil {
		return 0, err
	}
	return parseQuantity(s)
}

// parseQuantity parses a 0x-prefixed hex quantity, the JSON-RPC convention
// for numeric params/results.
func parseQuantity(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		s = "0"
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return n, nil
}

// parseDecimalUint64 parses a plain decimal string, the beacon API's
// convention for slot/index/period fields.
func parseDecimalUint64(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	return n, nil
}
