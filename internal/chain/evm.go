package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// PendingTx is the handle returned by a submission before confirmation.
type PendingTx struct {
	Hash ethcommon.Hash
}

// Receipt is the confirmation result of a submitted EVM transaction.
type Receipt struct {
	Success     bool
	Hash        ethcommon.Hash
	BlockNumber uint64
}

// Wallet is the EVM wallet connection this core submits through. The real
// implementation wraps an RPC endpoint and a signing key; tests substitute
// fakes.
type Wallet interface {
	// ConnectedAddress returns the active account, or false when no wallet
	// is connected.
	ConnectedAddress() (ethcommon.Address, bool)

	// ActiveNetworkID is the chain ID of the network the wallet is on.
	ActiveNetworkID() common.ChainID

	// SendTransaction broadcasts calldata to the given contract and returns
	// a pending handle. It does not wait for inclusion.
	SendTransaction(ctx context.Context, to ethcommon.Address, data []byte) (PendingTx, error)

	// WaitForReceipt blocks until the pending transaction is mined or ctx
	// expires.
	WaitForReceipt(ctx context.Context, tx PendingTx) (Receipt, error)
}

// RPCWallet submits transactions through an Ethereum JSON-RPC endpoint with a
// locally held key.
type RPCWallet struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	address ethcommon.Address
	chainID *big.Int
	logger  *log.Logger

	pollInterval time.Duration
}

type RPCWalletConfig struct {
	RPCURL        string
	PrivateKeyHex string
}

func NewRPCWallet(ctx context.Context, cfg RPCWalletConfig, logger *log.Logger) (*RPCWallet, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for submitting transactions")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	return &RPCWallet{
		client:       cli,
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		chainID:      chainID,
		logger:       logger,
		pollInterval: 2 * time.Second,
	}, nil
}

func (w *RPCWallet) ConnectedAddress() (ethcommon.Address, bool) {
	return w.address, true
}

func (w *RPCWallet) ActiveNetworkID() common.ChainID {
	return common.ChainID(w.chainID.Int64())
}

func (w *RPCWallet) SendTransaction(ctx context.Context, to ethcommon.Address, data []byte) (PendingTx, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return PendingTx{}, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return PendingTx{}, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
		From: w.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return PendingTx{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return PendingTx{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return PendingTx{}, err
	}

	w.logger.Printf("submitted tx %s to %s", signed.Hash().Hex(), to.Hex())
	return PendingTx{Hash: signed.Hash()}, nil
}

func (w *RPCWallet) WaitForReceipt(ctx context.Context, tx PendingTx) (Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, tx.Hash)
		if err == nil {
			return Receipt{
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
				Hash:        tx.Hash,
				BlockNumber: receipt.BlockNumber.Uint64(),
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return Receipt{}, fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
