package common

import (
	"strings"
	"time"
)

// Order is the order-book record this subsystem coordinates against. It is
// created and owned externally; this core only reads it.
type Order struct {
	ID                   string `json:"id"`
	Committee            uint64 `json:"committee"`
	SellerReceiveAddress string `json:"sellerReceiveAddress"`
	BuyerReceiveAddress  string `json:"buyerReceiveAddress,omitempty"`
	RequestedAmount      string `json:"requestedAmount"`
	AmountForSale        string `json:"amountForSale"`
}

// Locked reports whether the settlement committee has observed the lock for
// this order. The committee populates BuyerReceiveAddress when it does.
func (o *Order) Locked() bool {
	return o.BuyerReceiveAddress != ""
}

// LockOrderData is the wire payload a buyer embeds in the signaling
// transaction. All addresses are hex strings without a "0x" prefix; the
// prefix is reserved for the enclosing transfer-call encoding.
type LockOrderData struct {
	OrderID             string `json:"orderId"`
	ChainID             uint64 `json:"chain_id"`
	BuyerSendAddress    string `json:"buyerSendAddress"`
	BuyerReceiveAddress string `json:"buyerReceiveAddress"`
	BuyerChainDeadline  uint64 `json:"buyerChainDeadline"`
}

// CloseOrderData is the wire payload embedded in the payment transaction.
// It carries no addresses: the enclosing transfer's destination is the
// seller and its amount is the payment.
type CloseOrderData struct {
	OrderID    string `json:"orderId"`
	ChainID    uint64 `json:"chain_id"`
	CloseOrder bool   `json:"closeOrder"`
}

// OrderStatus is the lifecycle state of a tracked order entry.
type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusLocking OrderStatus = "locking"
	StatusLocked  OrderStatus = "locked"
	StatusClosing OrderStatus = "closing"
	StatusClosed  OrderStatus = "closed"
	StatusError   OrderStatus = "error"
)

// IndexingState tracks the best-effort native-ledger mirror leg for an entry.
type IndexingState string

const (
	IndexingNotStarted IndexingState = "not-started"
	IndexingInFlight   IndexingState = "in-flight"
	IndexingDone       IndexingState = "done"
	IndexingSkipped    IndexingState = "skipped"
)

// LockedOrderEntry is the tracker's record of what this client is currently
// attempting on an order. Owned exclusively by the tracker; coordinators and
// the UI go through its API.
type LockedOrderEntry struct {
	OrderID      string        `json:"orderId"`
	Order        Order         `json:"orderData"`
	Status       OrderStatus   `json:"status"`
	Indexing     IndexingState `json:"indexing"`
	EvmTxHash    string        `json:"evmTxHash,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// StripHexPrefix removes a leading "0x" or "0X" from an address or hash.
func StripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// EnsureHexPrefix adds a leading "0x" if the string does not carry one.
func EnsureHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}
