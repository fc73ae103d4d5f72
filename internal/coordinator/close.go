package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/canopy-network/canopy-frontend-sub008/internal/chain"
	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	"github.com/canopy-network/canopy-frontend-sub008/internal/payload"
	"github.com/canopy-network/canopy-frontend-sub008/internal/tracker"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SendCloseOrder runs the close phase: the EVM transfer that actually pays
// the seller the requested stablecoin amount, followed by the native-ledger
// indexing mirror. The order must already be locked, which the committee
// signals by populating the buyer's native receive address.
func (c *Coordinator) SendCloseOrder(ctx context.Context, order common.Order) error {
	if !order.Locked() {
		return common.Preconditionf("order %s is not locked yet", order.ID)
	}
	if order.SellerReceiveAddress == "" {
		return common.Preconditionf("order %s carries no seller address", order.ID)
	}

	if _, err := c.connectedWallet(); err != nil {
		return err
	}

	if entry, ok := c.tracker.Get(order.ID); ok {
		switch entry.Status {
		case common.StatusClosing:
			return common.Preconditionf("order %s is already closing", order.ID)
		case common.StatusClosed:
			return common.Preconditionf("order %s is already closed", order.ID)
		case common.StatusLocking:
			// The committee populated the buyer's receive address, which is
			// the same truth an order_update frame carries. Settle the local
			// entry on locked before entering the close phase; the realtime
			// channel only delivers it earlier, it is not required.
			locked := common.StatusLocked
			if _, err := c.tracker.Upsert(order.ID, tracker.Patch{Order: &order, Status: &locked}); err != nil {
				return err
			}
		}
	}

	// The requested amount is already in the stablecoin's smallest unit.
	// It is used exactly as given: no rounding, no unit conversion.
	usdcAmount, err := uint256.FromDecimal(order.RequestedAmount)
	if err != nil {
		return common.Preconditionf("order %s has an invalid requested amount %q", order.ID, order.RequestedAmount)
	}

	intent := common.CloseOrderData{
		OrderID:    order.ID,
		ChainID:    order.Committee,
		CloseOrder: true,
	}

	sellerEvmAddr := ethcommon.HexToAddress(common.EnsureHexPrefix(order.SellerReceiveAddress))
	data, err := payload.Encode(sellerEvmAddr, usdcAmount, intent)
	if err != nil {
		return fmt.Errorf("encode close payload: %w", err)
	}

	status := common.StatusClosing
	if _, err := c.tracker.Upsert(order.ID, tracker.Patch{Order: &order, Status: &status}); err != nil {
		return err
	}

	pending, err := c.wallet.SendTransaction(ctx, sellerEvmAddr, data)
	if err != nil {
		subErr := &common.SubmissionError{Err: err}
		c.markError(order.ID, subErr)
		return subErr
	}

	c.logger.Printf("close payment tx %s submitted for order %s", pending.Hash.Hex(), order.ID)
	go c.awaitCloseConfirmation(order, intent, pending)
	return nil
}

func (c *Coordinator) awaitCloseConfirmation(order common.Order, intent common.CloseOrderData, pending chain.PendingTx) {
	ctx, cancel := context.WithTimeout(context.Background(), confirmWait)
	defer cancel()

	receipt, err := c.wallet.WaitForReceipt(ctx, pending)
	if err != nil {
		c.markError(order.ID, &common.SubmissionError{Err: err})
		return
	}
	if !receipt.Success {
		c.markError(order.ID, &common.SubmissionError{Err: fmt.Errorf("close transaction %s reverted", receipt.Hash.Hex())})
		return
	}

	c.OnCloseConfirmed(order, intent, receipt.Hash)
}

// OnCloseConfirmed marks the order closed and runs the close indexing leg:
// a native-ledger send moving the amount for sale from the buyer's native
// address to the seller's, with the close intent in the memo. The payment
// already succeeded on the EVM side, so indexing failures never reverse the
// closed status.
func (c *Coordinator) OnCloseConfirmed(order common.Order, intent common.CloseOrderData, evmHash ethcommon.Hash) {
	if !c.markProcessed(evmHash) {
		c.logger.Printf("close confirmation for %s already handled, skipping", evmHash.Hex())
		return
	}

	hashHex := evmHash.Hex()
	status := common.StatusClosed
	if _, err := c.tracker.Upsert(order.ID, tracker.Patch{Status: &status, EvmTxHash: &hashHex}); err != nil {
		c.logger.Printf("failed to mark order %s closed: %v", order.ID, err)
	}
	c.setIndexing(order.ID, common.IndexingInFlight)

	memo, err := json.Marshal(intent)
	if err != nil {
		c.logger.Printf("order %s: %v", order.ID, &common.IndexingError{Err: err})
		c.setIndexing(order.ID, common.IndexingSkipped)
		return
	}

	amountForSale, err := strconv.ParseUint(order.AmountForSale, 10, 64)
	if err != nil {
		c.logger.Printf("order %s: %v", order.ID, &common.IndexingError{Err: fmt.Errorf("invalid amount for sale %q: %w", order.AmountForSale, err)})
		c.setIndexing(order.ID, common.IndexingSkipped)
		return
	}

	msg := c.signer.CreateSendMessage(
		common.StripHexPrefix(order.BuyerReceiveAddress),
		common.StripHexPrefix(order.SellerReceiveAddress),
		amountForSale,
	)

	ctx, cancel := context.WithTimeout(context.Background(), confirmWait)
	defer cancel()

	if err := c.submitIndexing(ctx, order.ID, msg, memo, order.Committee); err != nil {
		c.logger.Printf("order %s: %v", order.ID, err)
		c.setIndexing(order.ID, common.IndexingSkipped)
		return
	}

	c.setIndexing(order.ID, common.IndexingDone)
}
