package channel

import "encoding/json"

// MessageType tags inbound and outbound frames.
type MessageType string

const (
	MsgOrderUpdate  MessageType = "order_update"
	MsgPriceUpdate  MessageType = "price_update"
	MsgTransaction  MessageType = "transaction"
	MsgNotification MessageType = "notification"

	// MsgUnknown is the fallback for parseable frames whose type this core
	// does not know. The raw payload is preserved on the message.
	MsgUnknown MessageType = "unknown"

	// Wildcard handlers receive every parsed inbound message.
	Wildcard MessageType = "*"

	msgSubscribe   MessageType = "subscribe"
	msgUnsubscribe MessageType = "unsubscribe"
)

var knownTypes = map[MessageType]struct{}{
	MsgOrderUpdate:  {},
	MsgPriceUpdate:  {},
	MsgTransaction:  {},
	MsgNotification: {},
}

// Envelope is the wire frame exchanged with the backend.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is a parsed inbound frame handed to handlers.
type Message struct {
	Type    MessageType
	Channel string
	Payload json.RawMessage
}

// Handler consumes an inbound message. Handlers run synchronously on the
// receive path, in registration order.
type Handler func(Message)

// OrderUpdate is the payload of an order_update frame: the backend's
// authoritative view of an order, which overrides local optimistic state.
type OrderUpdate struct {
	OrderID             string `json:"orderId"`
	Status              string `json:"status"`
	BuyerReceiveAddress string `json:"buyerReceiveAddress,omitempty"`
}
