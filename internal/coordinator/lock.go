package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/canopy-network/canopy-frontend-sub008/internal/chain"
	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	"github.com/canopy-network/canopy-frontend-sub008/internal/payload"
	"github.com/canopy-network/canopy-frontend-sub008/internal/tracker"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SendLockOrder runs the lock phase for an order: it submits the zero-value
// EVM signaling transaction carrying the lock intent, then, once confirmed,
// mirrors the intent onto the native ledger for indexing.
//
// The signaling transfer is addressed to the buyer's own address and moves no
// value; the committee reads who is locking from the calldata alone.
func (c *Coordinator) SendLockOrder(ctx context.Context, order common.Order, buyerNativeAddress string) error {
	buyerEvmAddr, err := c.connectedWallet()
	if err != nil {
		return err
	}
	if buyerNativeAddress == "" {
		return common.Preconditionf("a native-ledger receive address is required to lock order %s", order.ID)
	}

	if entry, ok := c.tracker.Get(order.ID); ok {
		switch entry.Status {
		case common.StatusLocking, common.StatusLocked, common.StatusClosing, common.StatusClosed:
			return common.Preconditionf("order %s is already %s", order.ID, entry.Status)
		}
	}

	// Address.Hex() is EIP-55 mixed case; the wire form is uppercased so the
	// same wallet always produces identical intent bytes.
	intent := common.LockOrderData{
		OrderID:             order.ID,
		ChainID:             order.Committee,
		BuyerSendAddress:    strings.ToUpper(common.StripHexPrefix(buyerEvmAddr.Hex())),
		BuyerReceiveAddress: common.StripHexPrefix(buyerNativeAddress),
		BuyerChainDeadline:  c.lockDeadline(ctx, order.Committee),
	}

	data, err := payload.Encode(buyerEvmAddr, uint256.NewInt(0), intent)
	if err != nil {
		return fmt.Errorf("encode lock payload: %w", err)
	}

	status := common.StatusLocking
	if _, err := c.tracker.Upsert(order.ID, tracker.Patch{Order: &order, Status: &status}); err != nil {
		return err
	}

	pending, err := c.wallet.SendTransaction(ctx, buyerEvmAddr, data)
	if err != nil {
		subErr := &common.SubmissionError{Err: err}
		c.markError(order.ID, subErr)
		return subErr
	}

	c.logger.Printf("lock signaling tx %s submitted for order %s", pending.Hash.Hex(), order.ID)
	go c.awaitLockConfirmation(order, intent, pending)
	return nil
}

// lockDeadline computes the height-based deadline. When the height oracle is
// unreachable the fixed fallback constant is used and the degradation logged.
func (c *Coordinator) lockDeadline(ctx context.Context, chainID uint64) uint64 {
	height, err := c.ledger.Height(ctx, chainID)
	if err != nil {
		c.logger.Printf("height oracle unavailable, using fallback lock deadline: %v", err)
		return common.DefaultLockDeadline
	}
	return height + common.DeadlineBlockOffset
}

func (c *Coordinator) awaitLockConfirmation(order common.Order, intent common.LockOrderData, pending chain.PendingTx) {
	ctx, cancel := context.WithTimeout(context.Background(), confirmWait)
	defer cancel()

	receipt, err := c.wallet.WaitForReceipt(ctx, pending)
	if err != nil {
		c.markError(order.ID, &common.SubmissionError{Err: err})
		return
	}
	if !receipt.Success {
		c.markError(order.ID, &common.SubmissionError{Err: fmt.Errorf("lock transaction %s reverted", receipt.Hash.Hex())})
		return
	}

	c.OnLockConfirmed(order, intent, receipt.Hash)
}

// OnLockConfirmed runs the indexing leg for a confirmed lock transaction. It
// is safe to call more than once for the same hash: re-delivered confirmation
// events are skipped by the processed-hash guard. Indexing failures are
// logged and never roll back the EVM leg, which is protocol-authoritative.
func (c *Coordinator) OnLockConfirmed(order common.Order, intent common.LockOrderData, evmHash ethcommon.Hash) {
	if !c.markProcessed(evmHash) {
		c.logger.Printf("lock confirmation for %s already handled, skipping", evmHash.Hex())
		return
	}

	hashHex := evmHash.Hex()
	if _, err := c.tracker.Upsert(order.ID, tracker.Patch{EvmTxHash: &hashHex}); err != nil {
		c.logger.Printf("failed to record lock tx hash on order %s: %v", order.ID, err)
	}
	c.setIndexing(order.ID, common.IndexingInFlight)

	memo, err := json.Marshal(intent)
	if err != nil {
		c.logger.Printf("order %s: %v", order.ID, &common.IndexingError{Err: err})
		c.setIndexing(order.ID, common.IndexingSkipped)
		return
	}

	// The mirror is a minimal self-transfer whose memo carries the intent,
	// existing only so the native chain's indexers display the activity.
	msg := c.signer.CreateSendMessage(intent.BuyerReceiveAddress, intent.BuyerReceiveAddress, common.IndexingSendAmount)

	ctx, cancel := context.WithTimeout(context.Background(), confirmWait)
	defer cancel()

	if err := c.submitIndexing(ctx, order.ID, msg, memo, order.Committee); err != nil {
		c.logger.Printf("order %s: %v", order.ID, err)
		c.setIndexing(order.ID, common.IndexingSkipped)
		return
	}

	c.setIndexing(order.ID, common.IndexingDone)
}
