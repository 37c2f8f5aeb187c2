package prover

import (
	"encoding/json"
	"strconv"

	"github.com/colibri-client/colibri/internal/beacon"
	"github.com/colibri-client/colibri/internal/coreerr"
	"github.com/colibri-client/colibri/internal/crypto"
	"github.com/colibri-client/colibri/internal/ethtypes"
	"github.com/colibri-client/colibri/internal/proofreq"
	"github.com/colibri-client/colibri/internal/synccommittee"
	"github.com/colibri-client/colibri/internal/trie"
	"github.com/ethereum/go-ethereum/rlp"
)

type storageProofEntryJSON struct {
	Key   string   `json:"key"`
	Value string   `json:"value"`
	Proof []string `json:"proof"`
}

type accountProofJSON struct {
	AccountProof []string                `json:"accountProof"`
	Balance      string                  `json:"balance"`
	CodeHash     string                  `json:"codeHash"`
	Nonce        string                  `json:"nonce"`
	StorageHash  string                  `json:"storageHash"`
	StorageProof []storageProofEntryJSON `json:"storageProof"`
}

// buildAccount backs eth_getBalance, eth_getCode, eth_getStorageAt, and
// eth_getProof: one eth_getProof call supplies the account (and, if
// relevant, one storage slot), proved against the signed header's
// execution_payload.state_root.
func (c *Ctx) buildAccount() (proofreq.Request, error) {
	address, err := c.paramStr(0)
	if err != nil {
		return proofreq.Request{}, err
	}

	hasStorage := false
	var storageKeyStr string
	selectorIdx := 1
	switch c.method {
	case "eth_getStorageAt":
		sk, err := c.paramStr(1)
		if err != nil {
			return proofreq.Request{}, err
		}
		storageKeyStr, hasStorage = sk, true
		selectorIdx = 2
	case "eth_getProof":
		if len(c.params) > 1 {
			if keys, ok := c.params[1].([]any); ok && len(keys) > 0 {
				if sk, ok := keys[0].(string); ok {
					storageKeyStr, hasStorage = sk, true
				}
			}
		}
		selectorIdx = 2
	}

	selector := "latest"
	if s, err := c.paramStr(selectorIdx); err == nil {
		selector = s
	}
	blockID, err := c.resolveExecutionSelector(selector)
	if err != nil {
		return proofreq.Request{}, err
	}
	pair, err := c.resolveByBeaconBlockID(blockID)
	if err != nil {
		return proofreq.Request{}, err
	}

	stateRootProof, err := c.buildFieldProof(pair, "state_root", pair.DataBody.ExecutionPayload.StateRoot.Bytes())
	if err != nil {
		return proofreq.Request{}, err
	}

	keys := []string{}
	if hasStorage {
		keys = []string{storageKeyStr}
	}
	raw, err := c.ethRPC("eth_getProof", address, keys, blockID)
	if err != nil {
		return proofreq.Request{}, err
	}
	var ap accountProofJSON
	if err := json.Unmarshal(raw, &ap); err != nil {
		return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	nonce, err := parseQuantity(ap.Nonce)
	if err != nil {
		return proofreq.Request{}, err
	}
	balance, err := hexQuantityToDecimal(ap.Balance)
	if err != nil {
		return proofreq.Request{}, err
	}
	accountProof, err := hexList(ap.AccountProof)
	if err != nil {
		return proofreq.Request{}, err
	}

	body := proofreq.AccountProofBody{
		Signed:         signedHeaderFrom(pair),
		StateRootProof: stateRootProof,
		Address:        ethtypes.HexToAddress(address),
		Nonce:          nonce,
		Balance:        balance,
		StorageRoot:    ethtypes.HexToHash(ap.StorageHash),
		CodeHash:       ethtypes.HexToHash(ap.CodeHash),
		AccountProof:   accountProof,
		HasStorage:     hasStorage,
	}
	if hasStorage && len(ap.StorageProof) > 0 {
		sp := ap.StorageProof[0]
		body.StorageKey = ethtypes.HexToHash(sp.Key)
		proof, err := hexList(sp.Proof)
		if err != nil {
			return proofreq.Request{}, err
		}
		body.StorageProof = proof
	}
	if c.method == "eth_getCode" {
		raw, err := c.ethRPC("eth_getCode", address, blockID)
		if err != nil {
			return proofreq.Request{}, err
		}
		var codeHex string
		if err := json.Unmarshal(raw, &codeHex); err != nil {
			return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		code, err := hexBytes(codeHex)
		if err != nil {
			return proofreq.Request{}, err
		}
		body.Code = code
	}

	proofBody, err := proofreq.MarshalProof(body)
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantAccount, ProofBody: proofBody}, nil
}

type txJSON struct {
	BlockNumber      string `json:"blockNumber"`
	TransactionIndex string `json:"transactionIndex"`
}

// buildTransaction backs eth_getTransactionByHash and its by-block-and-index
// siblings: the raw transaction bytes are proved as one leaf of a multi-proof
// that also carries block_number/block_hash/base_fee_per_gas, so a verifier
// can bind the transaction to a specific, signed block.
func (c *Ctx) buildTransaction() (proofreq.Request, error) {
	var blockSelector string
	var index uint64

	switch c.method {
	case "eth_getTransactionByHash":
		txHash, err := c.paramStr(0)
		if err != nil {
			return proofreq.Request{}, err
		}
		raw, err := c.ethRPC("eth_getTransactionByHash", txHash)
		if err != nil {
			return proofreq.Request{}, err
		}
		var tx txJSON
		if err := json.Unmarshal(raw, &tx); err != nil {
			return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		idx, err := parseQuantity(tx.TransactionIndex)
		if err != nil {
			return proofreq.Request{}, err
		}
		blockSelector, index = tx.BlockNumber, idx
	default:
		sel, err := c.paramStr(0)
		if err != nil {
			return proofreq.Request{}, err
		}
		idx, err := c.paramIndex(1)
		if err != nil {
			return proofreq.Request{}, err
		}
		blockSelector, index = sel, idx
	}

	blockID, err := c.resolveExecutionSelector(blockSelector)
	if err != nil {
		return proofreq.Request{}, err
	}
	pair, err := c.resolveByBeaconBlockID(blockID)
	if err != nil {
		return proofreq.Request{}, err
	}
	if int(index) >= len(pair.DataBody.ExecutionPayload.Transactions) {
		return proofreq.Request{}, coreerr.New(coreerr.InputInvalid, "prover: transaction index out of range")
	}
	rawTx := pair.DataBody.ExecutionPayload.Transactions[index]

	txField := beacon.TransactionFieldName(int(index))
	fieldValues := map[string][]byte{
		"block_number":     uint64LE(pair.DataBody.ExecutionPayload.BlockNumber),
		"block_hash":       pair.DataBody.ExecutionPayload.BlockHash.Bytes(),
		"base_fee_per_gas": pair.DataBody.ExecutionPayload.BaseFeePerGas[:],
		txField:            rawTx,
	}
	fieldNames := []string{"block_number", "block_hash", "base_fee_per_gas", txField}
	root, fp, err := beacon.BuildFieldsProof(pair.DataBodyRaw, fieldValues, fieldNames)
	if err != nil {
		return proofreq.Request{}, err
	}
	if ethtypes.Hash(root) != pair.DataHeader.BodyRoot {
		return proofreq.Request{}, coreerr.New(coreerr.IntegrityMismatch, "prover: reconstructed body root does not match signed header")
	}

	body := proofreq.TransactionProofBody{
		Signed:      signedHeaderFrom(pair),
		FieldsProof: fp,
		Index:       int(index),
		RawTx:       rawTx,
	}
	proofBody, err := proofreq.MarshalProof(body)
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantTransaction, ProofBody: proofBody}, nil
}

type receiptLogJSON struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

type receiptJSON struct {
	TransactionIndex  string           `json:"transactionIndex"`
	BlockNumber       string           `json:"blockNumber"`
	CumulativeGasUsed string           `json:"cumulativeGasUsed"`
	LogsBloom         string           `json:"logsBloom"`
	Status            string           `json:"status"`
	Type              string           `json:"type"`
	Logs              []receiptLogJSON `json:"logs"`
}

// rlpLog and rlpReceipt are the RLP encodings the real receipts trie keys
// on: a receipt's trie value is its RLP-encoded fields (prefixed by a raw
// type byte for EIP-2718 typed receipts), keyed by the RLP encoding of its
// position within the block.
type rlpLog struct {
	Address []byte
	Topics  [][]byte
	Data    []byte
}

type rlpReceipt struct {
	PostStateOrStatus []byte
	CumulativeGasUsed uint64
	LogsBloom         []byte
	Logs              []rlpLog
}

func (r receiptJSON) encodeForTrie() ([]byte, error) {
	cumGas, err := parseQuantity(r.CumulativeGasUsed)
	if err != nil {
		return nil, err
	}
	bloom, err := hexBytes(r.LogsBloom)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	status, err := parseQuantity(r.Status)
	if err != nil {
		return nil, err
	}
	logs := make([]rlpLog, len(r.Logs))
	for i, l := range r.Logs {
		addr, err := hexBytes(l.Address)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		topics := make([][]byte, len(l.Topics))
		for j, t := range l.Topics {
			tb, err := hexBytes(t)
			if err != nil {
				return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
			}
			topics[j] = tb
		}
		data, err := hexBytes(l.Data)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		logs[i] = rlpLog{Address: addr, Topics: topics, Data: data}
	}
	encoded, err := rlp.EncodeToBytes(rlpReceipt{
		PostStateOrStatus: []byte{byte(status)},
		CumulativeGasUsed: cumGas,
		LogsBloom:         bloom,
		Logs:              logs,
	})
	if err != nil {
		return nil, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	typ, err := parseQuantity(r.Type)
	if err != nil || typ == 0 {
		return encoded, nil
	}
	return append([]byte{byte(typ)}, encoded...), nil
}

// buildReceiptProofBody fetches a block's full receipt list, reconstructs
// its receipts trie locally (there is no eth_getProof equivalent for
// receipts), and proves index's entry against it.
func (c *Ctx) buildReceiptProofBody(blockSelector string, index int) (proofreq.ReceiptProofBody, error) {
	blockID, err := c.resolveExecutionSelector(blockSelector)
	if err != nil {
		return proofreq.ReceiptProofBody{}, err
	}
	pair, err := c.resolveByBeaconBlockID(blockID)
	if err != nil {
		return proofreq.ReceiptProofBody{}, err
	}

	receiptsRootProof, err := c.buildFieldProof(pair, "receipts_root", pair.DataBody.ExecutionPayload.ReceiptsRoot.Bytes())
	if err != nil {
		return proofreq.ReceiptProofBody{}, err
	}

	raw, err := c.ethRPC("eth_getBlockReceipts", blockID)
	if err != nil {
		return proofreq.ReceiptProofBody{}, err
	}
	var receipts []receiptJSON
	if err := json.Unmarshal(raw, &receipts); err != nil {
		return proofreq.ReceiptProofBody{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	if index < 0 || index >= len(receipts) {
		return proofreq.ReceiptProofBody{}, coreerr.New(coreerr.InputInvalid, "prover: receipt index out of range")
	}

	t := trie.New()
	var targetKey, targetValue []byte
	for i, r := range receipts {
		key, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return proofreq.ReceiptProofBody{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		value, err := r.encodeForTrie()
		if err != nil {
			return proofreq.ReceiptProofBody{}, err
		}
		if err := t.Set(key, value); err != nil {
			return proofreq.ReceiptProofBody{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		if i == index {
			targetKey, targetValue = key, value
		}
	}
	if t.Hash() != pair.DataBody.ExecutionPayload.ReceiptsRoot {
		return proofreq.ReceiptProofBody{}, coreerr.New(coreerr.IntegrityMismatch, "prover: reconstructed receipts root does not match payload")
	}
	receiptProof, err := t.Prove(targetKey)
	if err != nil {
		return proofreq.ReceiptProofBody{}, coreerr.Wrap(coreerr.ProofInvalid, err)
	}

	return proofreq.ReceiptProofBody{
		Signed:            signedHeaderFrom(pair),
		ReceiptsRootProof: receiptsRootProof,
		Index:             index,
		ReceiptProof:      receiptProof,
		RawReceipt:        targetValue,
	}, nil
}

// buildReceipt backs eth_getTransactionReceipt.
func (c *Ctx) buildReceipt() (proofreq.Request, error) {
	txHash, err := c.paramStr(0)
	if err != nil {
		return proofreq.Request{}, err
	}
	raw, err := c.ethRPC("eth_getTransactionReceipt", txHash)
	if err != nil {
		return proofreq.Request{}, err
	}
	var r receiptJSON
	if err := json.Unmarshal(raw, &r); err != nil {
		return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	index, err := parseQuantity(r.TransactionIndex)
	if err != nil {
		return proofreq.Request{}, err
	}
	body, err := c.buildReceiptProofBody(r.BlockNumber, int(index))
	if err != nil {
		return proofreq.Request{}, err
	}
	proofBody, err := proofreq.MarshalProof(body)
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantReceipt, ProofBody: proofBody}, nil
}

type receiptLogEntryJSON struct {
	BlockNumber      string `json:"blockNumber"`
	TransactionIndex string `json:"transactionIndex"`
}

// buildLogs backs eth_getLogs: the matching logs are grouped by the
// (block, transaction index) pair that produced them, and one
// ReceiptProofBody is built per distinct pair. Only the first requested
// storage key an eth_getLogs filter spans is bounded by this; the filter
// object itself is passed straight through to eth_getLogs unmodified.
func (c *Ctx) buildLogs() (proofreq.Request, error) {
	var filter any = map[string]any{}
	if len(c.params) > 0 {
		filter = c.params[0]
	}
	raw, err := c.ethRPC("eth_getLogs", filter)
	if err != nil {
		return proofreq.Request{}, err
	}
	var logs []receiptLogEntryJSON
	if err := json.Unmarshal(raw, &logs); err != nil {
		return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}

	type seenKey struct {
		block string
		index int
	}
	seen := map[seenKey]bool{}
	var receipts []proofreq.ReceiptProofBody
	for _, l := range logs {
		idx, err := parseQuantity(l.TransactionIndex)
		if err != nil {
			return proofreq.Request{}, err
		}
		k := seenKey{block: l.BlockNumber, index: int(idx)}
		if seen[k] {
			continue
		}
		seen[k] = true
		body, err := c.buildReceiptProofBody(l.BlockNumber, int(idx))
		if err != nil {
			return proofreq.Request{}, err
		}
		receipts = append(receipts, body)
	}

	proofBody, err := proofreq.MarshalProof(proofreq.LogsProofBody{Receipts: receipts})
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantLogs, ProofBody: proofBody}, nil
}

// buildBlock backs eth_getBlockByHash/eth_getBlockByNumber: the whole
// execution_payload container is proved as a single leaf, and its raw SSZ
// encoding is carried alongside so a verifier can decode it with
// beacon.DecodePayload.
func (c *Ctx) buildBlock() (proofreq.Request, error) {
	selector, err := c.paramStr(0)
	if err != nil {
		return proofreq.Request{}, err
	}
	blockID, err := c.resolveExecutionSelector(selector)
	if err != nil {
		return proofreq.Request{}, err
	}
	pair, err := c.resolveByBeaconBlockID(blockID)
	if err != nil {
		return proofreq.Request{}, err
	}

	payloadRaw, err := beacon.EncodePayload(pair.DataBody.ExecutionPayload)
	if err != nil {
		return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	fp, err := c.buildFieldProof(pair, beacon.PayloadFieldName, payloadRaw)
	if err != nil {
		return proofreq.Request{}, err
	}

	body := proofreq.BlockProofBody{
		Signed:       signedHeaderFrom(pair),
		PayloadProof: fp,
		PayloadData:  payloadRaw,
	}
	proofBody, err := proofreq.MarshalProof(body)
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantBlock, ProofBody: proofBody}, nil
}

// buildBlockNumber backs eth_blockNumber: a two-field multi-proof over the
// head block's block_number and timestamp.
func (c *Ctx) buildBlockNumber() (proofreq.Request, error) {
	blockID, err := c.resolveExecutionSelector("latest")
	if err != nil {
		return proofreq.Request{}, err
	}
	pair, err := c.resolveByBeaconBlockID(blockID)
	if err != nil {
		return proofreq.Request{}, err
	}

	fieldValues := map[string][]byte{
		"block_number": uint64LE(pair.DataBody.ExecutionPayload.BlockNumber),
		"timestamp":    uint64LE(pair.DataBody.ExecutionPayload.Timestamp),
	}
	root, fp, err := beacon.BuildFieldsProof(pair.DataBodyRaw, fieldValues, []string{"block_number", "timestamp"})
	if err != nil {
		return proofreq.Request{}, err
	}
	if ethtypes.Hash(root) != pair.DataHeader.BodyRoot {
		return proofreq.Request{}, coreerr.New(coreerr.IntegrityMismatch, "prover: reconstructed body root does not match signed header")
	}

	body := proofreq.BlockNumberProofBody{Signed: signedHeaderFrom(pair), FieldsProof: fp}
	proofBody, err := proofreq.MarshalProof(body)
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantBlockNumber, ProofBody: proofBody}, nil
}

// buildCall backs eth_call/eth_estimateGas: every account an
// eth_createAccessList trace touched is proved against the call's own
// state_root, and the trace/estimate result itself is carried as an
// unverified claim (there is no Merkle proof over EVM execution; a verifier
// can only check that the touched accounts existed in the claimed state).
func (c *Ctx) buildCall() (proofreq.Request, error) {
	if len(c.params) < 1 {
		return proofreq.Request{}, coreerr.New(coreerr.InputInvalid, "prover: call variant requires a call object")
	}
	callObj := c.params[0]
	selector := "latest"
	if len(c.params) > 1 {
		if s, ok := c.params[1].(string); ok {
			selector = s
		}
	}
	blockID, err := c.resolveExecutionSelector(selector)
	if err != nil {
		return proofreq.Request{}, err
	}
	pair, err := c.resolveByBeaconBlockID(blockID)
	if err != nil {
		return proofreq.Request{}, err
	}

	stateRootProof, err := c.buildFieldProof(pair, "state_root", pair.DataBody.ExecutionPayload.StateRoot.Bytes())
	if err != nil {
		return proofreq.Request{}, err
	}

	traceMethod := "debug_traceCall"
	if c.method == "eth_estimateGas" {
		traceMethod = "eth_estimateGas"
	}
	traceRaw, err := c.ethRPC(traceMethod, callObj, blockID)
	if err != nil {
		return proofreq.Request{}, err
	}

	accessListRaw, err := c.ethRPC("eth_createAccessList", callObj, blockID)
	if err != nil {
		return proofreq.Request{}, err
	}
	var accessList struct {
		AccessList []struct {
			Address     string   `json:"address"`
			StorageKeys []string `json:"storageKeys"`
		} `json:"accessList"`
	}
	if err := json.Unmarshal(accessListRaw, &accessList); err != nil {
		return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}

	var touched []proofreq.TouchedAccount
	for _, entry := range accessList.AccessList {
		keys := []string{}
		if len(entry.StorageKeys) > 0 {
			keys = entry.StorageKeys[:1]
		}
		proofRaw, err := c.ethRPC("eth_getProof", entry.Address, keys, blockID)
		if err != nil {
			return proofreq.Request{}, err
		}
		var ap accountProofJSON
		if err := json.Unmarshal(proofRaw, &ap); err != nil {
			return proofreq.Request{}, coreerr.Wrap(coreerr.DecodeFailed, err)
		}
		nonce, err := parseQuantity(ap.Nonce)
		if err != nil {
			return proofreq.Request{}, err
		}
		balance, err := hexQuantityToDecimal(ap.Balance)
		if err != nil {
			return proofreq.Request{}, err
		}
		accountProof, err := hexList(ap.AccountProof)
		if err != nil {
			return proofreq.Request{}, err
		}
		touched = append(touched, proofreq.TouchedAccount{
			Address:      ethtypes.HexToAddress(entry.Address),
			Nonce:        nonce,
			Balance:      balance,
			StorageRoot:  ethtypes.HexToHash(ap.StorageHash),
			CodeHash:     ethtypes.HexToHash(ap.CodeHash),
			AccountProof: accountProof,
		})
	}

	body := proofreq.CallProofBody{
		Signed:         signedHeaderFrom(pair),
		StateRootProof: stateRootProof,
		Accounts:       touched,
		TraceResult:    traceRaw,
	}
	proofBody, err := proofreq.MarshalProof(body)
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantCall, ProofBody: proofBody}, nil
}

type committeeJSON struct {
	Pubkeys         []string `json:"pubkeys"`
	AggregatePubkey string   `json:"aggregate_pubkey"`
}

func decodeSyncCommitteeJSON(c committeeJSON) (beacon.SyncCommittee, error) {
	if len(c.Pubkeys) != beacon.SyncCommitteeSize {
		return beacon.SyncCommittee{}, coreerr.New(coreerr.DecodeFailed, "prover: sync committee pubkey count mismatch")
	}
	var sc beacon.SyncCommittee
	for i, s := range c.Pubkeys {
		b, err := hexBytes(s)
		if err != nil {
			return beacon.SyncCommittee{}, err
		}
		sc.Pubkeys[i] = ethtypes.BytesToBLSPubkey(b)
	}
	agg, err := hexBytes(c.AggregatePubkey)
	if err != nil {
		return beacon.SyncCommittee{}, err
	}
	sc.AggregatePubkey = ethtypes.BytesToBLSPubkey(agg)
	return sc, nil
}

// buildBootstrap fetches the Altair light_client/bootstrap object for root:
// the header at that root plus the committee in power at its period and a
// Merkle branch proving it into that same header's state_root.
func (c *Ctx) buildBootstrap(root ethtypes.Hash) (*proofreq.BootstrapUpdate, uint64, error) {
	raw, err := c.beaconGet("/eth/v1/beacon/light_client/bootstrap/" + root.Hex())
	if err != nil {
		return nil, 0, err
	}
	var resp struct {
		Data struct {
			Header struct {
				Beacon struct {
					Slot          string `json:"slot"`
					ProposerIndex string `json:"proposer_index"`
					ParentRoot    string `json:"parent_root"`
					StateRoot     string `json:"state_root"`
					BodyRoot      string `json:"body_root"`
				} `json:"beacon"`
			} `json:"header"`
			CurrentSyncCommittee       committeeJSON `json:"current_sync_committee"`
			CurrentSyncCommitteeBranch []string      `json:"current_sync_committee_branch"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, coreerr.Wrap(coreerr.DecodeFailed, err)
	}

	slot, err := parseDecimalUint64(resp.Data.Header.Beacon.Slot)
	if err != nil {
		return nil, 0, err
	}
	proposerIndex, err := parseDecimalUint64(resp.Data.Header.Beacon.ProposerIndex)
	if err != nil {
		return nil, 0, err
	}
	header := beacon.Header{
		Slot:          slot,
		ProposerIndex: proposerIndex,
		ParentRoot:    ethtypes.HexToHash(resp.Data.Header.Beacon.ParentRoot),
		StateRoot:     ethtypes.HexToHash(resp.Data.Header.Beacon.StateRoot),
		BodyRoot:      ethtypes.HexToHash(resp.Data.Header.Beacon.BodyRoot),
	}
	committee, err := decodeSyncCommitteeJSON(resp.Data.CurrentSyncCommittee)
	if err != nil {
		return nil, 0, err
	}
	branch, err := hexList(resp.Data.CurrentSyncCommitteeBranch)
	if err != nil {
		return nil, 0, err
	}

	return &proofreq.BootstrapUpdate{
		Header:           header,
		CurrentCommittee: committee,
		CommitteeProof:   branch,
	}, c.spec.Period(slot), nil
}

// buildCommitteeUpdate fetches the Altair light_client/updates entry for
// period: an attested header signed by period's committee, carrying
// period+1's committee and a branch proving it into the attested header's
// state_root.
func (c *Ctx) buildCommitteeUpdate(period uint64) (proofreq.CommitteeUpdate, error) {
	path := "/eth/v1/beacon/light_client/updates?start_period=" + strconv.FormatUint(period, 10) + "&count=1"
	raw, err := c.beaconGet(path)
	if err != nil {
		return proofreq.CommitteeUpdate{}, err
	}
	var resp []struct {
		Data struct {
			AttestedHeader struct {
				Beacon struct {
					Slot          string `json:"slot"`
					ProposerIndex string `json:"proposer_index"`
					ParentRoot    string `json:"parent_root"`
					StateRoot     string `json:"state_root"`
					BodyRoot      string `json:"body_root"`
				} `json:"beacon"`
			} `json:"attested_header"`
			NextSyncCommittee       committeeJSON      `json:"next_sync_committee"`
			NextSyncCommitteeBranch []string           `json:"next_sync_committee_branch"`
			SyncAggregate           syncAggregateJSON  `json:"sync_aggregate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return proofreq.CommitteeUpdate{}, coreerr.Wrap(coreerr.DecodeFailed, err)
	}
	if len(resp) == 0 {
		return proofreq.CommitteeUpdate{}, coreerr.New(coreerr.SyncGap, "prover: no light client update available for period")
	}
	d := resp[0].Data

	slot, err := parseDecimalUint64(d.AttestedHeader.Beacon.Slot)
	if err != nil {
		return proofreq.CommitteeUpdate{}, err
	}
	proposerIndex, err := parseDecimalUint64(d.AttestedHeader.Beacon.ProposerIndex)
	if err != nil {
		return proofreq.CommitteeUpdate{}, err
	}
	header := beacon.Header{
		Slot:          slot,
		ProposerIndex: proposerIndex,
		ParentRoot:    ethtypes.HexToHash(d.AttestedHeader.Beacon.ParentRoot),
		StateRoot:     ethtypes.HexToHash(d.AttestedHeader.Beacon.StateRoot),
		BodyRoot:      ethtypes.HexToHash(d.AttestedHeader.Beacon.BodyRoot),
	}
	bits, err := hexBytes(d.SyncAggregate.SyncCommitteeBits)
	if err != nil {
		return proofreq.CommitteeUpdate{}, err
	}
	sig, err := hexBytes(d.SyncAggregate.SyncCommitteeSignature)
	if err != nil {
		return proofreq.CommitteeUpdate{}, err
	}
	committee, err := decodeSyncCommitteeJSON(d.NextSyncCommittee)
	if err != nil {
		return proofreq.CommitteeUpdate{}, err
	}
	branch, err := hexList(d.NextSyncCommitteeBranch)
	if err != nil {
		return proofreq.CommitteeUpdate{}, err
	}

	return proofreq.CommitteeUpdate{
		Signed: proofreq.SignedHeader{
			Header:    header,
			Bits:      bits,
			Signature: ethtypes.BytesToBLSSignature(sig),
			Period:    period,
		},
		NextCommittee:  committee,
		CommitteeProof: branch,
		Period:         period + 1,
	}, nil
}

// buildSync backs the internal c4_getSyncData method: a bootstrap when the
// caller's sync.State has no committee yet, followed by one CommitteeUpdate
// per period between what the caller already knows and the chain's head.
func (c *Ctx) buildSync() (proofreq.Request, error) {
	var bootstrap *proofreq.BootstrapUpdate
	var startPeriod uint64

	switch c.sync.Kind {
	case synccommittee.KindCheckpoint:
		bu, period, err := c.buildBootstrap(c.sync.BlockRoot)
		if err != nil {
			return proofreq.Request{}, err
		}
		bootstrap, startPeriod = bu, period+1
	case synccommittee.KindPeriods:
		latest, ok := c.sync.Latest()
		if !ok {
			return proofreq.Request{}, coreerr.New(coreerr.SyncGap, "prover: periods state has no known period")
		}
		startPeriod = latest + 1
	default:
		return proofreq.Request{}, coreerr.New(coreerr.SyncGap, "prover: sync state is empty; bootstrap required first")
	}

	headID, err := c.resolveExecutionSelector("latest")
	if err != nil {
		return proofreq.Request{}, err
	}
	head, err := c.fetchBlock(headID)
	if err != nil {
		return proofreq.Request{}, err
	}
	targetPeriod := c.spec.Period(head.Header.Slot)

	var updates []proofreq.CommitteeUpdate
	for period := startPeriod; period <= targetPeriod; period++ {
		cu, err := c.buildCommitteeUpdate(period)
		if err != nil {
			return proofreq.Request{}, err
		}
		updates = append(updates, cu)
	}

	proofBody, err := proofreq.MarshalProof(proofreq.SyncProofBody{Bootstrap: bootstrap, Updates: updates})
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantSync, ProofBody: proofBody}, nil
}

// buildWitness backs c4_witness: a locally-configured BLS key signs the
// resolved block's body_root directly, for deployments that want a proof
// shape without running a live sync-committee light client.
func (c *Ctx) buildWitness() (proofreq.Request, error) {
	if c.signerKey == nil {
		return proofreq.Request{}, coreerr.New(coreerr.InputInvalid, "prover: c4_witness requires a configured signer key")
	}
	selector := "latest"
	if len(c.params) > 0 {
		if s, ok := c.params[0].(string); ok {
			selector = s
		}
	}
	blockID, err := c.resolveExecutionSelector(selector)
	if err != nil {
		return proofreq.Request{}, err
	}
	pair, err := c.resolveByBeaconBlockID(blockID)
	if err != nil {
		return proofreq.Request{}, err
	}

	fp, err := c.buildFieldProof(pair, "state_root", pair.DataBody.ExecutionPayload.StateRoot.Bytes())
	if err != nil {
		return proofreq.Request{}, err
	}

	msg := pair.DataHeader.BodyRoot.Bytes()
	sig := crypto.BLSSign(c.signerKey, msg)
	pubkey := crypto.BLSPubkeyFromSecret(c.signerKey)

	body := proofreq.WitnessProofBody{
		Signed:      signedHeaderFrom(pair),
		FieldsProof: fp,
		AttestorKey: ethtypes.BytesToBLSPubkey(pubkey[:]),
		AttestorSig: ethtypes.BytesToBLSSignature(sig[:]),
	}
	proofBody, err := proofreq.MarshalProof(body)
	if err != nil {
		return proofreq.Request{}, err
	}
	return proofreq.Request{Variant: proofreq.VariantWitness, ProofBody: proofBody}, nil
}
