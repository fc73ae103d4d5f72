package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	"github.com/imkira/go-ttlmap"
)

const (
	heightPath = "/v1/query/height"
	feePath    = "/v1/query/fee-params"
	submitPath = "/v1/tx"

	feeCacheKey = "fee-params"
	feeCacheTTL = 30 * time.Second
)

// FeeParams is the native ledger's current fee schedule.
type FeeParams struct {
	SendFee uint64 `json:"sendFee"`
}

// LockFee returns the fee a lock/close indexing transaction must carry.
func (p FeeParams) LockFee() uint64 {
	return p.SendFee * common.FeeMultiplier
}

// LedgerClient reads heights and fee parameters from the native ledger's HTTP
// API and submits signed indexing transactions to it. It is a thin accessor:
// transport failures surface as NetworkError with no retry built in.
type LedgerClient struct {
	baseURL  string
	http     *http.Client
	feeCache *ttlmap.Map
	logger   *log.Logger
}

func NewLedgerClient(baseURL string, logger *log.Logger) *LedgerClient {
	options := &ttlmap.Options{
		InitialCapacity: 4,
		OnWillExpire: func(key string, item ttlmap.Item) {
			logger.Printf("fee cache expired: [%s]", key)
		},
	}

	return &LedgerClient{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		feeCache: ttlmap.New(options),
		logger:   logger,
	}
}

// Height fetches the current block height of the given committee chain.
func (c *LedgerClient) Height(ctx context.Context, chainID uint64) (uint64, error) {
	var out struct {
		Height uint64 `json:"height"`
	}

	req := map[string]uint64{"chainId": chainID}
	if err := c.post(ctx, heightPath, req, &out); err != nil {
		return 0, &common.NetworkError{Op: "fetch chain height", Err: err}
	}

	return out.Height, nil
}

// FeeParams fetches the current fee schedule, serving a briefly cached copy
// when one is fresh.
func (c *LedgerClient) FeeParams(ctx context.Context) (FeeParams, error) {
	if item, err := c.feeCache.Get(feeCacheKey); err == nil {
		if params, ok := item.Value().(FeeParams); ok {
			return params, nil
		}
	}

	var params FeeParams
	if err := c.post(ctx, feePath, map[string]any{}, &params); err != nil {
		return FeeParams{}, &common.NetworkError{Op: "fetch fee params", Err: err}
	}

	if err := c.feeCache.Set(feeCacheKey, ttlmap.NewItem(params, ttlmap.WithTTL(feeCacheTTL)), nil); err != nil {
		c.logger.Printf("failed to cache fee params: %v", err)
	}

	return params, nil
}

// SubmitTransaction broadcasts a signed native-ledger transaction and returns
// the hash reported by the node.
func (c *LedgerClient) SubmitTransaction(ctx context.Context, signed []byte) (string, error) {
	var out struct {
		TxHash string `json:"txHash"`
	}

	req := map[string]string{"tx": hex.EncodeToString(signed)}
	if err := c.post(ctx, submitPath, req, &out); err != nil {
		return "", &common.NetworkError{Op: "submit transaction", Err: err}
	}

	return out.TxHash, nil
}

func (c *LedgerClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
