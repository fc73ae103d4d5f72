package coordinator

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/chain"
	"github.com/canopy-network/canopy-frontend-sub008/internal/channel"
	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	"github.com/canopy-network/canopy-frontend-sub008/internal/tracker"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/imkira/go-ttlmap"
)

const (
	// seenHashTTL bounds how long processed EVM hashes are remembered for
	// the at-most-once indexing guard. Confirmation re-deliveries arrive
	// within moments of each other; an hour is far past any re-fetch.
	seenHashTTL = time.Hour

	// confirmWait bounds how long a spawned confirmation watcher polls for
	// a receipt before giving up.
	confirmWait = 10 * time.Minute
)

// Ledger is the slice of the native-ledger client the coordinator consumes.
type Ledger interface {
	Height(ctx context.Context, chainID uint64) (uint64, error)
	FeeParams(ctx context.Context) (chain.FeeParams, error)
	SubmitTransaction(ctx context.Context, signed []byte) (string, error)
}

// Config fixes the network the protocol runs on.
type Config struct {
	// RequiredNetwork is the EVM chain hosting the settlement stablecoin.
	// Signaling and payment transactions on any other network are
	// misdirected and cannot be recalled, so it is validated up front.
	RequiredNetwork common.ChainID
}

// Coordinator drives the lock and close phases of the cross-chain swap
// protocol: it submits the EVM leg, waits for confirmation, then mirrors the
// intent onto the native ledger as a best-effort indexing transaction.
type Coordinator struct {
	cfg     Config
	wallet  chain.Wallet
	ledger  Ledger
	signer  chain.Signer
	tracker *tracker.Tracker
	logger  *log.Logger

	// seen keys confirmed EVM tx hashes so the indexing leg runs at most
	// once per hash, however many confirmation events arrive.
	seen   *ttlmap.Map
	seenMu sync.Mutex
}

func New(cfg Config, wallet chain.Wallet, ledger Ledger, signer chain.Signer, tr *tracker.Tracker, logger *log.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		wallet:  wallet,
		ledger:  ledger,
		signer:  signer,
		tracker: tr,
		logger:  logger,
		seen:    ttlmap.New(&ttlmap.Options{InitialCapacity: 32}),
	}
}

// Tracker exposes the order tracker for the UI-facing query surface.
func (c *Coordinator) Tracker() *tracker.Tracker {
	return c.tracker
}

// markProcessed records an EVM hash and reports whether it was already
// handled. First caller wins.
func (c *Coordinator) markProcessed(hash ethcommon.Hash) bool {
	c.seenMu.Lock()
	defer c.seenMu.Unlock()

	key := hash.Hex()
	if _, err := c.seen.Get(key); err == nil {
		return false
	}
	if err := c.seen.Set(key, ttlmap.NewItem(struct{}{}, ttlmap.WithTTL(seenHashTTL)), nil); err != nil {
		c.logger.Printf("failed to record processed hash %s: %v", key, err)
	}
	return true
}

// connectedWallet validates the EVM-side preconditions shared by lock and
// close: a connected wallet on the protocol's required network.
func (c *Coordinator) connectedWallet() (ethcommon.Address, error) {
	if c.wallet == nil {
		return ethcommon.Address{}, common.Preconditionf("no EVM wallet is connected")
	}

	addr, ok := c.wallet.ConnectedAddress()
	if !ok {
		return ethcommon.Address{}, common.Preconditionf("no EVM wallet is connected")
	}

	if network := c.wallet.ActiveNetworkID(); network != c.cfg.RequiredNetwork {
		return ethcommon.Address{}, common.Preconditionf("wrong network: connected to chain %d, protocol requires chain %d", network, c.cfg.RequiredNetwork)
	}

	return addr, nil
}

// markError records a failed phase on the tracker entry so the UI can offer
// an explicit retry.
func (c *Coordinator) markError(orderID string, cause error) {
	status := common.StatusError
	msg := cause.Error()
	if _, err := c.tracker.Upsert(orderID, tracker.Patch{Status: &status, ErrorMessage: &msg}); err != nil {
		c.logger.Printf("failed to record error on order %s: %v", orderID, err)
	}
}

// Retry re-runs the failed phase of an errored entry. Preconditions are
// re-validated in full and the same entry transitions back through
// locking/closing; no second entry is ever created. nativeAddress is required
// only when retrying a lock.
func (c *Coordinator) Retry(ctx context.Context, orderID, nativeAddress string) error {
	entry, ok := c.tracker.Get(orderID)
	if !ok {
		return common.Preconditionf("order %s is not tracked", orderID)
	}
	if entry.Status != common.StatusError {
		return common.Preconditionf("order %s is not in error state", orderID)
	}

	if entry.Order.Locked() {
		return c.SendCloseOrder(ctx, entry.Order)
	}
	return c.SendLockOrder(ctx, entry.Order, nativeAddress)
}

// BindChannel wires realtime backend events into the tracker. order_update
// frames are authoritative and override local optimistic state; transaction
// and notification frames are logged for diagnosis.
func (c *Coordinator) BindChannel(ch *channel.Client) {
	ch.On(channel.MsgOrderUpdate, func(msg channel.Message) {
		var update channel.OrderUpdate
		if err := json.Unmarshal(msg.Payload, &update); err != nil {
			c.logger.Printf("dropping malformed order_update: %v", err)
			return
		}
		c.applyOrderUpdate(update)
	})

	ch.On(channel.MsgTransaction, func(msg channel.Message) {
		c.logger.Printf("transaction event: %s", msg.Payload)
	})

	ch.On(channel.MsgNotification, func(msg channel.Message) {
		c.logger.Printf("notification: %s", msg.Payload)
	})
}

func (c *Coordinator) applyOrderUpdate(update channel.OrderUpdate) {
	entry, ok := c.tracker.Get(update.OrderID)
	if !ok {
		return
	}

	patch := tracker.Patch{}
	switch common.OrderStatus(update.Status) {
	case common.StatusLocked:
		status := common.StatusLocked
		patch.Status = &status
		if update.BuyerReceiveAddress != "" {
			order := entry.Order
			order.BuyerReceiveAddress = update.BuyerReceiveAddress
			patch.Order = &order
		}
	case common.StatusClosed:
		status := common.StatusClosed
		patch.Status = &status
	default:
		return
	}

	if _, err := c.tracker.Upsert(update.OrderID, patch); err != nil {
		c.logger.Printf("order_update for %s not applied: %v", update.OrderID, err)
	}
}

// submitIndexing signs and broadcasts the native-ledger mirror transaction.
// Shared by the lock and close confirmation paths.
func (c *Coordinator) submitIndexing(ctx context.Context, orderID string, msg chain.SendMessage, memo []byte, chainID uint64) error {
	fees, err := c.ledger.FeeParams(ctx)
	if err != nil {
		return &common.IndexingError{Err: err}
	}

	height, err := c.ledger.Height(ctx, chainID)
	if err != nil {
		return &common.IndexingError{Err: err}
	}

	signed, err := c.signer.CreateAndSignTransaction(ctx, chain.TxParams{
		Msg:    msg,
		Fee:    fees.LockFee(),
		Memo:   string(memo),
		Height: height,
	})
	if err != nil {
		return &common.IndexingError{Err: err}
	}

	txHash, err := c.ledger.SubmitTransaction(ctx, signed)
	if err != nil {
		return &common.IndexingError{Err: err}
	}

	c.logger.Printf("indexing transaction %s submitted for order %s", txHash, orderID)
	return nil
}

// setIndexing updates the entry's indexing sub-state without touching its
// lifecycle status.
func (c *Coordinator) setIndexing(orderID string, state common.IndexingState) {
	// The entry may already have been swept (closed entries are short-lived);
	// never resurrect one just to record indexing progress.
	if _, ok := c.tracker.Get(orderID); !ok {
		return
	}
	if _, err := c.tracker.Upsert(orderID, tracker.Patch{Indexing: &state}); err != nil {
		c.logger.Printf("failed to set indexing state on order %s: %v", orderID, err)
	}
}
